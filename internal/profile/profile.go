// Package profile maps camera pixel formats to rendering profiles: the
// shader pair, preprocessor defines, texture layout per plane and sampling
// parameters needed to display the format on the GPU.
package profile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/viewfinder/colorspace"
	"github.com/gogpu/viewfinder/format"
)

// Errors returned by Select and CheckSize.
var (
	ErrUnsupported    = errors.New("profile: unsupported pixel format")
	ErrOddWidth       = errors.New("profile: packed YUV requires an even width")
	ErrDegenerateSize = errors.New("profile: degenerate frame size")
	// ErrStrideAlignment is returned when the stride does not split into
	// whole texels for every plane.
	ErrStrideAlignment = errors.New("profile: stride not aligned to the plane texel size")
)

// Shader asset names.
const (
	VertexIdentity = "identity.vert"
	VertexBayer8   = "bayer_8.vert"

	FragmentYUV2Planes    = "yuv_2_planes.frag"
	FragmentYUV3Planes    = "yuv_3_planes.frag"
	FragmentYUVPacked     = "yuv_packed.frag"
	FragmentRGB           = "rgb.frag"
	FragmentRGB24         = "rgb_24.frag"
	FragmentBayer8        = "bayer_8.frag"
	FragmentBayer1xPacked = "bayer_1x_packed.frag"
)

// Texture slots, in binding order.
const (
	SlotY = iota
	SlotU
	SlotV

	MaxSlots = 3
)

// SlotNames are the shader names of the texture slots.
var SlotNames = [MaxSlots]string{"tex_y", "tex_u", "tex_v"}

// Category groups formats that share upload and uniform rules.
type Category int

const (
	CategorySemiPlanar Category = iota
	CategoryPlanar
	CategoryPackedYUV
	CategoryRGB
	CategoryRGB24
	CategoryBayer8
	CategoryBayerPacked
)

var categoryNames = [...]string{
	CategorySemiPlanar:  "semi-planar YUV",
	CategoryPlanar:      "planar YUV",
	CategoryPackedYUV:   "packed YUV",
	CategoryRGB:         "RGB",
	CategoryRGB24:       "RGB 24-bit",
	CategoryBayer8:      "Bayer 8-bit",
	CategoryBayerPacked: "Bayer packed",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// PlaneLayout describes how one frame plane is uploaded.
type PlaneLayout struct {
	// Slot is the texture slot the plane is bound to.
	Slot int
	// Source is the index of the plane in the frame.
	Source int
	// Format is the texture format the raw bytes are interpreted as.
	Format gputypes.TextureFormat
	// BytesPerTexel is the size of one texel of Format.
	BytesPerTexel uint32
	// StrideDivisor converts the luma stride in bytes to the texture width
	// in texels.
	StrideDivisor uint32
	// HeightDivisor is the vertical subsampling of the plane.
	HeightDivisor uint32
}

// TextureSize returns the texture dimensions of the plane for a frame with
// the given luma stride and height.
func (pl PlaneLayout) TextureSize(stride, height uint32) (width, rows uint32) {
	return stride / pl.StrideDivisor, (height + pl.HeightDivisor - 1) / pl.HeightDivisor
}

// Aligned reports whether stride maps to a whole number of texels.
func (pl PlaneLayout) Aligned(stride uint32) bool {
	return stride%pl.StrideDivisor == 0
}

// RowBytes returns the byte pitch of one plane row for the given luma
// stride. It equals the uploaded row size when the stride is aligned.
func (pl PlaneLayout) RowBytes(stride uint32) uint32 {
	return stride / pl.StrideDivisor * pl.BytesPerTexel
}

// Profile is the rendering recipe for one pixel format.
type Profile struct {
	Format   format.PixelFormat
	Category Category

	VertexShader   string
	FragmentShader string
	// Defines are prepended to the fragment source, one per line.
	Defines []string

	HorizSubsample uint32
	VertSubsample  uint32

	// Filter is used for both minification and magnification.
	Filter gputypes.FilterMode

	// FirstRed is the position of the first red pixel of a Bayer pattern.
	FirstRed [2]uint32

	// Planes lists the planes in slot order.
	Planes []PlaneLayout

	// StridePixelsDivisor converts the stride in bytes to pixels for the
	// stride factor. Zero means the stride is handled in the shader and
	// the active width is used.
	StridePixelsDivisor uint32
}

// SlotCount returns the number of populated texture slots.
func (p Profile) SlotCount() int { return len(p.Planes) }

// IsBayer reports whether the profile demosaics raw data.
func (p Profile) IsBayer() bool {
	return p.Category == CategoryBayer8 || p.Category == CategoryBayerPacked
}

// SameProgram reports whether p and q compile to the same shader program.
func (p Profile) SameProgram(q Profile) bool {
	return p.VertexShader == q.VertexShader &&
		p.FragmentShader == q.FragmentShader &&
		slices.Equal(p.Defines, q.Defines) &&
		slices.Equal(p.Planes, q.Planes) &&
		p.Filter == q.Filter
}

// WithColorSpace returns a copy of p with the colour conversion defines
// for cs appended.
func (p Profile) WithColorSpace(cs colorspace.ColorSpace) Profile {
	p.Defines = append(slices.Clone(p.Defines), colorspace.Defines(cs)...)
	return p
}

// MinStride returns the stride in bytes of a tightly packed row of width
// pixels.
func (p Profile) MinStride(width uint32) uint32 {
	switch p.Category {
	case CategoryPackedYUV:
		return width * 2
	case CategoryRGB:
		return width * 4
	case CategoryRGB24:
		return width * 3
	case CategoryBayerPacked:
		if slices.Contains(p.Defines, "#define RAW12P") {
			return (width*3 + 1) / 2
		}
		return (width*5 + 3) / 4
	}
	return width
}

// StridePixels returns the stride in pixels used by the stride factor.
func (p Profile) StridePixels(width, stride uint32) uint32 {
	if p.StridePixelsDivisor == 0 {
		return width
	}
	return stride / p.StridePixelsDivisor
}

// CheckSize validates a frame geometry against the profile. A zero stride
// is accepted; such frames are skipped at upload time.
func (p Profile) CheckSize(width, height, stride uint32) error {
	if width <= 1 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrDegenerateSize, width, height)
	}
	if p.Category == CategoryPackedYUV && width%2 != 0 {
		return fmt.Errorf("%w: %s width %d", ErrOddWidth, p.Format, width)
	}
	if p.IsBayer() && height <= 1 {
		return fmt.Errorf("%w: %s height %d", ErrDegenerateSize, p.Format, height)
	}
	if p.Category == CategoryPackedYUV && width/2 <= 1 {
		return fmt.Errorf("%w: %s width %d", ErrDegenerateSize, p.Format, width)
	}
	if stride == 0 {
		return nil
	}
	if sp := p.StridePixels(width, stride); sp <= 1 {
		return fmt.Errorf("%w: stride %d is %d pixels", ErrDegenerateSize, stride, sp)
	}
	for _, pl := range p.Planes {
		if !pl.Aligned(stride) {
			return fmt.Errorf("%w: %s stride %d, %s needs a multiple of %d",
				ErrStrideAlignment, p.Format, stride, SlotNames[pl.Slot], pl.StrideDivisor)
		}
	}
	return nil
}

// StrideFactor returns the horizontal texture coordinate scale that maps
// the active width onto a texture row of stridePixels pixels.
// Degenerate inputs yield 1.
func StrideFactor(activeWidth, stridePixels uint32) float32 {
	if activeWidth == 0 || stridePixels <= 1 {
		return 1
	}
	return float32(activeWidth-1) / float32(stridePixels-1)
}

// Uniforms are the per-frame shader parameters.
type Uniforms struct {
	TexStep      [2]float32
	TexSize      [2]float32
	FirstRed     [2]float32
	StrideFactor float32
}

// Uniforms computes the shader parameters for a frame geometry.
func (p Profile) Uniforms(width, height, stride uint32) Uniforms {
	u := Uniforms{
		StrideFactor: StrideFactor(width, p.StridePixels(width, stride)),
	}
	switch p.Category {
	case CategoryPackedYUV:
		if half := width / 2; half > 1 {
			u.TexStep = [2]float32{1 / float32(half-1), 1}
		}
	case CategoryBayer8, CategoryBayerPacked:
		u.TexSize = [2]float32{float32(width), float32(height)}
		u.FirstRed = [2]float32{float32(p.FirstRed[0]), float32(p.FirstRed[1])}
		if stride > 1 && height > 1 {
			u.TexStep = [2]float32{1 / float32(stride-1), 1 / float32(height-1)}
		}
	}
	return u
}

// Select returns the profile for f.
func Select(f format.PixelFormat) (Profile, error) {
	p, ok := table[f]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnsupported, f)
	}
	p.Format = f
	p.Defines = slices.Clone(p.Defines)
	p.Planes = slices.Clone(p.Planes)
	return p, nil
}

// Supported reports whether f has a profile.
func Supported(f format.PixelFormat) bool {
	_, ok := table[f]
	return ok
}

// Formats returns the supported formats in catalog order.
func Formats() []format.PixelFormat {
	var out []format.PixelFormat
	for _, f := range format.All() {
		if Supported(f) {
			out = append(out, f)
		}
	}
	return out
}
