package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/viewfinder/internal/profile"
)

var (
	// ErrEmptyFrame is returned for frames with a zero stride or height.
	// Nothing is uploaded for such frames.
	ErrEmptyFrame = errors.New("gpu: empty frame")
	// ErrPlaneData is returned when a plane is missing or shorter than
	// its texture requires.
	ErrPlaneData = errors.New("gpu: plane data too short")
)

// slotTexture is one texture slot and the size and format it was created with.
type slotTexture struct {
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
	format gputypes.TextureFormat
}

// TextureUploader owns up to three plane textures and re-specifies them
// from frame data. Textures are recreated only when a plane's size or
// format changes; every recreation bumps the generation so bind groups
// referring to the old views can be rebuilt.
type TextureUploader struct {
	device hal.Device
	queue  hal.Queue

	slots      [profile.MaxSlots]slotTexture
	generation uint64
}

// NewTextureUploader creates an uploader with all slots empty.
func NewTextureUploader(device hal.Device, queue hal.Queue) *TextureUploader {
	return &TextureUploader{device: device, queue: queue}
}

// Generation changes whenever a slot texture is created or released.
func (u *TextureUploader) Generation() uint64 { return u.generation }

// View returns the view of slot, or nil if the slot is empty.
func (u *TextureUploader) View(slot int) hal.TextureView {
	if slot < 0 || slot >= profile.MaxSlots {
		return nil
	}
	return u.slots[slot].view
}

// Populated returns the number of slots holding a texture.
func (u *TextureUploader) Populated() int {
	n := 0
	for i := range u.slots {
		if u.slots[i].tex != nil {
			n++
		}
	}
	return n
}

// SlotSize returns the texture size of slot.
func (u *TextureUploader) SlotSize(slot int) (width, height uint32) {
	if slot < 0 || slot >= profile.MaxSlots {
		return 0, 0
	}
	return u.slots[slot].width, u.slots[slot].height
}

// Upload copies the planes of one frame into the slot textures described
// by p and returns the shader parameters for the frame. Frames with a zero
// stride or height return ErrEmptyFrame. A stride that splits a texel of
// any plane returns profile.ErrStrideAlignment. All planes are checked before
// anything is written, so a short plane leaves the textures untouched.
func (u *TextureUploader) Upload(planes [][]byte, p profile.Profile, width, height, stride uint32) (profile.Uniforms, error) {
	if stride == 0 || height == 0 {
		return profile.Uniforms{}, ErrEmptyFrame
	}

	type planeCopy struct {
		layout      profile.PlaneLayout
		data        []byte
		w, h        uint32
		bytesPerRow uint32
	}
	copies := make([]planeCopy, 0, len(p.Planes))
	for _, pl := range p.Planes {
		if pl.Source >= len(planes) {
			return profile.Uniforms{}, fmt.Errorf("%w: plane %d missing", ErrPlaneData, pl.Source)
		}
		w, h := pl.TextureSize(stride, height)
		if w == 0 || h == 0 {
			return profile.Uniforms{}, ErrEmptyFrame
		}
		if !pl.Aligned(stride) {
			return profile.Uniforms{}, fmt.Errorf("%w: stride %d for %s",
				profile.ErrStrideAlignment, stride, profile.SlotNames[pl.Slot])
		}
		bpr := pl.RowBytes(stride)
		need := uint64(bpr) * uint64(h)
		data := planes[pl.Source]
		if uint64(len(data)) < need {
			return profile.Uniforms{}, fmt.Errorf("%w: plane %d has %d bytes, need %d",
				ErrPlaneData, pl.Source, len(data), need)
		}
		copies = append(copies, planeCopy{layout: pl, data: data[:need], w: w, h: h, bytesPerRow: bpr})
	}

	var used [profile.MaxSlots]bool
	for _, c := range copies {
		slot := c.layout.Slot
		used[slot] = true
		if err := u.ensureSlot(slot, c.w, c.h, c.layout.Format); err != nil {
			return profile.Uniforms{}, err
		}
		err := u.queue.WriteTexture(
			&hal.ImageCopyTexture{
				Texture:  u.slots[slot].tex,
				MipLevel: 0,
				Aspect:   gputypes.TextureAspectAll,
			},
			c.data,
			&hal.ImageDataLayout{
				Offset:       0,
				BytesPerRow:  c.bytesPerRow,
				RowsPerImage: c.h,
			},
			&hal.Extent3D{Width: c.w, Height: c.h, DepthOrArrayLayers: 1},
		)
		if err != nil {
			return profile.Uniforms{}, fmt.Errorf("gpu: write %s: %w", profile.SlotNames[slot], err)
		}
	}
	for slot := range u.slots {
		if !used[slot] && u.slots[slot].tex != nil {
			u.releaseSlot(slot)
		}
	}

	return p.Uniforms(width, height, stride), nil
}

// ensureSlot makes sure slot holds a texture of the given size and format.
func (u *TextureUploader) ensureSlot(slot int, w, h uint32, tf gputypes.TextureFormat) error {
	s := &u.slots[slot]
	if s.tex != nil && s.width == w && s.height == h && s.format == tf {
		return nil
	}
	u.releaseSlot(slot)

	label := "viewfinder_" + profile.SlotNames[slot]
	tex, err := u.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        tf,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create %s texture: %w", profile.SlotNames[slot], err)
	}
	view, err := u.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        tf,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		u.device.DestroyTexture(tex)
		return fmt.Errorf("gpu: create %s view: %w", profile.SlotNames[slot], err)
	}
	*s = slotTexture{tex: tex, view: view, width: w, height: h, format: tf}
	u.generation++
	slogger().Debug("textures: slot specified",
		"slot", profile.SlotNames[slot],
		"width", w,
		"height", h,
		"format", tf.String())
	return nil
}

func (u *TextureUploader) releaseSlot(slot int) {
	s := &u.slots[slot]
	if s.view != nil {
		u.device.DestroyTextureView(s.view)
	}
	if s.tex != nil {
		u.device.DestroyTexture(s.tex)
		u.generation++
	}
	*s = slotTexture{}
}

// Destroy releases all slot textures.
func (u *TextureUploader) Destroy() {
	for slot := range u.slots {
		u.releaseSlot(slot)
	}
}
