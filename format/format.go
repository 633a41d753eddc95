// Package format defines the camera pixel formats understood by the
// viewfinder renderer.
//
// A PixelFormat is a DRM four-character code plus a format modifier. The
// modifier separates bit-packed raw layouts (MIPI CSI-2) from their
// unpacked counterparts that share the same fourcc.
package format

import (
	"fmt"
	"strings"
)

// PixelFormat identifies a camera buffer layout.
// The zero value is not a valid format.
type PixelFormat struct {
	FourCC   uint32
	Modifier uint64
}

// ModifierCSI2Packed marks raw Bayer formats packed as in MIPI CSI-2
// (4 pixels in 5 bytes for 10-bit, 2 pixels in 3 bytes for 12-bit).
const ModifierCSI2Packed uint64 = 0x0b<<56 | 1

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// Semi-planar YUV.
var (
	NV12 = PixelFormat{FourCC: fourcc('N', 'V', '1', '2')}
	NV21 = PixelFormat{FourCC: fourcc('N', 'V', '2', '1')}
	NV16 = PixelFormat{FourCC: fourcc('N', 'V', '1', '6')}
	NV61 = PixelFormat{FourCC: fourcc('N', 'V', '6', '1')}
	NV24 = PixelFormat{FourCC: fourcc('N', 'V', '2', '4')}
	NV42 = PixelFormat{FourCC: fourcc('N', 'V', '4', '2')}
)

// Fully planar YUV.
var (
	YUV420 = PixelFormat{FourCC: fourcc('Y', 'U', '1', '2')}
	YVU420 = PixelFormat{FourCC: fourcc('Y', 'V', '1', '2')}
)

// Packed YUV 4:2:2.
var (
	UYVY = PixelFormat{FourCC: fourcc('U', 'Y', 'V', 'Y')}
	VYUY = PixelFormat{FourCC: fourcc('V', 'Y', 'U', 'Y')}
	YUYV = PixelFormat{FourCC: fourcc('Y', 'U', 'Y', 'V')}
	YVYU = PixelFormat{FourCC: fourcc('Y', 'V', 'Y', 'U')}
)

// Packed RGB. Names follow DRM: the channel order is listed from the most
// significant byte of a little-endian word, so RGB888 is stored B, G, R.
var (
	ABGR8888 = PixelFormat{FourCC: fourcc('A', 'B', '2', '4')}
	ARGB8888 = PixelFormat{FourCC: fourcc('A', 'R', '2', '4')}
	BGRA8888 = PixelFormat{FourCC: fourcc('B', 'A', '2', '4')}
	RGBA8888 = PixelFormat{FourCC: fourcc('R', 'A', '2', '4')}
	BGR888   = PixelFormat{FourCC: fourcc('B', 'G', '2', '4')}
	RGB888   = PixelFormat{FourCC: fourcc('R', 'G', '2', '4')}
)

// Raw Bayer, 8 bits per sample.
var (
	SBGGR8 = PixelFormat{FourCC: fourcc('B', 'A', '8', '1')}
	SGBRG8 = PixelFormat{FourCC: fourcc('G', 'B', 'R', 'G')}
	SGRBG8 = PixelFormat{FourCC: fourcc('G', 'R', 'B', 'G')}
	SRGGB8 = PixelFormat{FourCC: fourcc('R', 'G', 'G', 'B')}
)

// Raw Bayer, CSI-2 packed 10 and 12 bits per sample.
var (
	SBGGR10CSI2P = PixelFormat{FourCC: fourcc('B', 'G', '1', '0'), Modifier: ModifierCSI2Packed}
	SGBRG10CSI2P = PixelFormat{FourCC: fourcc('G', 'B', '1', '0'), Modifier: ModifierCSI2Packed}
	SGRBG10CSI2P = PixelFormat{FourCC: fourcc('B', 'A', '1', '0'), Modifier: ModifierCSI2Packed}
	SRGGB10CSI2P = PixelFormat{FourCC: fourcc('R', 'G', '1', '0'), Modifier: ModifierCSI2Packed}
	SBGGR12CSI2P = PixelFormat{FourCC: fourcc('B', 'G', '1', '2'), Modifier: ModifierCSI2Packed}
	SGBRG12CSI2P = PixelFormat{FourCC: fourcc('G', 'B', '1', '2'), Modifier: ModifierCSI2Packed}
	SGRBG12CSI2P = PixelFormat{FourCC: fourcc('B', 'A', '1', '2'), Modifier: ModifierCSI2Packed}
	SRGGB12CSI2P = PixelFormat{FourCC: fourcc('R', 'G', '1', '2'), Modifier: ModifierCSI2Packed}
)

type entry struct {
	format PixelFormat
	name   string
}

// catalog lists every known format in display order.
var catalog = []entry{
	{NV12, "NV12"},
	{NV21, "NV21"},
	{NV16, "NV16"},
	{NV61, "NV61"},
	{NV24, "NV24"},
	{NV42, "NV42"},
	{YUV420, "YUV420"},
	{YVU420, "YVU420"},
	{UYVY, "UYVY"},
	{VYUY, "VYUY"},
	{YUYV, "YUYV"},
	{YVYU, "YVYU"},
	{ABGR8888, "ABGR8888"},
	{ARGB8888, "ARGB8888"},
	{BGRA8888, "BGRA8888"},
	{RGBA8888, "RGBA8888"},
	{BGR888, "BGR888"},
	{RGB888, "RGB888"},
	{SBGGR8, "SBGGR8"},
	{SGBRG8, "SGBRG8"},
	{SGRBG8, "SGRBG8"},
	{SRGGB8, "SRGGB8"},
	{SBGGR10CSI2P, "SBGGR10_CSI2P"},
	{SGBRG10CSI2P, "SGBRG10_CSI2P"},
	{SGRBG10CSI2P, "SGRBG10_CSI2P"},
	{SRGGB10CSI2P, "SRGGB10_CSI2P"},
	{SBGGR12CSI2P, "SBGGR12_CSI2P"},
	{SGBRG12CSI2P, "SGBRG12_CSI2P"},
	{SGRBG12CSI2P, "SGRBG12_CSI2P"},
	{SRGGB12CSI2P, "SRGGB12_CSI2P"},
}

// All returns the known formats in a stable order.
func All() []PixelFormat {
	out := make([]PixelFormat, len(catalog))
	for i, e := range catalog {
		out[i] = e.format
	}
	return out
}

// IsValid reports whether f has a non-zero fourcc.
func (f PixelFormat) IsValid() bool {
	return f.FourCC != 0
}

// String returns the catalog name of f, or the raw fourcc and modifier
// for formats outside the catalog.
func (f PixelFormat) String() string {
	for _, e := range catalog {
		if e.format == f {
			return e.name
		}
	}
	if !f.IsValid() {
		return "<invalid>"
	}
	var b strings.Builder
	for i := 0; i < 4; i++ {
		c := byte(f.FourCC >> (8 * i))
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		b.WriteByte(c)
	}
	if f.Modifier != 0 {
		fmt.Fprintf(&b, "-0x%016x", f.Modifier)
	}
	return b.String()
}

// Parse returns the catalog format with the given name.
// Matching is case-insensitive.
func Parse(name string) (PixelFormat, error) {
	for _, e := range catalog {
		if strings.EqualFold(e.name, name) {
			return e.format, nil
		}
	}
	return PixelFormat{}, fmt.Errorf("format: unknown pixel format %q", name)
}
