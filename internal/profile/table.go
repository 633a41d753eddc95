package profile

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/viewfinder/format"
)

var table = map[format.PixelFormat]Profile{
	format.NV12: semiPlanar(2, 2, "UV"),
	format.NV21: semiPlanar(2, 2, "VU"),
	format.NV16: semiPlanar(2, 1, "UV"),
	format.NV61: semiPlanar(2, 1, "VU"),
	format.NV24: semiPlanar(1, 1, "UV"),
	format.NV42: semiPlanar(1, 1, "VU"),

	format.YUV420: planar(2, 2, false),
	format.YVU420: planar(2, 2, true),

	format.UYVY: packedYUV("UYVY"),
	format.VYUY: packedYUV("VYUY"),
	format.YUYV: packedYUV("YUYV"),
	format.YVYU: packedYUV("YVYU"),

	format.ABGR8888: rgb32("rgb"),
	format.ARGB8888: rgb32("bgr"),
	format.BGRA8888: rgb32("gba"),
	format.RGBA8888: rgb32("abg"),
	format.BGR888:   rgb24("rgb"),
	format.RGB888:   rgb24("bgr"),

	format.SBGGR8: bayer8(1, 1),
	format.SGBRG8: bayer8(0, 1),
	format.SGRBG8: bayer8(1, 0),
	format.SRGGB8: bayer8(0, 0),

	format.SBGGR10CSI2P: bayerPacked(1, 1, "RAW10P"),
	format.SGBRG10CSI2P: bayerPacked(0, 1, "RAW10P"),
	format.SGRBG10CSI2P: bayerPacked(1, 0, "RAW10P"),
	format.SRGGB10CSI2P: bayerPacked(0, 0, "RAW10P"),
	format.SBGGR12CSI2P: bayerPacked(1, 1, "RAW12P"),
	format.SGBRG12CSI2P: bayerPacked(0, 1, "RAW12P"),
	format.SGRBG12CSI2P: bayerPacked(1, 0, "RAW12P"),
	format.SRGGB12CSI2P: bayerPacked(0, 0, "RAW12P"),
}

func luma(tf gputypes.TextureFormat, bpt uint32) PlaneLayout {
	return PlaneLayout{
		Slot:          SlotY,
		Source:        0,
		Format:        tf,
		BytesPerTexel: bpt,
		StrideDivisor: bpt,
		HeightDivisor: 1,
	}
}

func semiPlanar(h, v uint32, pattern string) Profile {
	return Profile{
		Category:       CategorySemiPlanar,
		VertexShader:   VertexIdentity,
		FragmentShader: FragmentYUV2Planes,
		Defines:        []string{"#define YUV_PATTERN_" + pattern},
		HorizSubsample: h,
		VertSubsample:  v,
		Filter:         gputypes.FilterModeLinear,
		Planes: []PlaneLayout{
			luma(gputypes.TextureFormatR8Unorm, 1),
			{
				Slot:          SlotU,
				Source:        1,
				Format:        gputypes.TextureFormatRG8Unorm,
				BytesPerTexel: 2,
				StrideDivisor: h,
				HeightDivisor: v,
			},
		},
		StridePixelsDivisor: 1,
	}
}

// planar describes three-plane YUV. With swapped set the frame stores V
// before U, so the sources of the chroma slots are exchanged.
func planar(h, v uint32, swapped bool) Profile {
	u, vv := 1, 2
	if swapped {
		u, vv = 2, 1
	}
	chroma := func(slot, source int) PlaneLayout {
		return PlaneLayout{
			Slot:          slot,
			Source:        source,
			Format:        gputypes.TextureFormatR8Unorm,
			BytesPerTexel: 1,
			StrideDivisor: h,
			HeightDivisor: v,
		}
	}
	return Profile{
		Category:       CategoryPlanar,
		VertexShader:   VertexIdentity,
		FragmentShader: FragmentYUV3Planes,
		HorizSubsample: h,
		VertSubsample:  v,
		Filter:         gputypes.FilterModeLinear,
		Planes: []PlaneLayout{
			luma(gputypes.TextureFormatR8Unorm, 1),
			chroma(SlotU, u),
			chroma(SlotV, vv),
		},
		StridePixelsDivisor: 1,
	}
}

func packedYUV(pattern string) Profile {
	return Profile{
		Category:            CategoryPackedYUV,
		VertexShader:        VertexIdentity,
		FragmentShader:      FragmentYUVPacked,
		Defines:             []string{"#define YUV_PATTERN_" + pattern},
		HorizSubsample:      1,
		VertSubsample:       1,
		Filter:              gputypes.FilterModeLinear,
		Planes:              []PlaneLayout{luma(gputypes.TextureFormatRGBA8Unorm, 4)},
		StridePixelsDivisor: 2,
	}
}

func rgb32(pattern string) Profile {
	return Profile{
		Category:            CategoryRGB,
		VertexShader:        VertexIdentity,
		FragmentShader:      FragmentRGB,
		Defines:             []string{"#define RGB_PATTERN " + pattern},
		HorizSubsample:      1,
		VertSubsample:       1,
		Filter:              gputypes.FilterModeLinear,
		Planes:              []PlaneLayout{luma(gputypes.TextureFormatRGBA8Unorm, 4)},
		StridePixelsDivisor: 4,
	}
}

// rgb24 uploads the row bytes as a single-channel texture; the shader
// gathers the three bytes of each pixel.
func rgb24(pattern string) Profile {
	return Profile{
		Category:            CategoryRGB24,
		VertexShader:        VertexIdentity,
		FragmentShader:      FragmentRGB24,
		Defines:             []string{"#define RGB_PATTERN " + pattern},
		HorizSubsample:      1,
		VertSubsample:       1,
		Filter:              gputypes.FilterModeLinear,
		Planes:              []PlaneLayout{luma(gputypes.TextureFormatR8Unorm, 1)},
		StridePixelsDivisor: 3,
	}
}

func bayer8(x, y uint32) Profile {
	return Profile{
		Category:            CategoryBayer8,
		VertexShader:        VertexBayer8,
		FragmentShader:      FragmentBayer8,
		HorizSubsample:      1,
		VertSubsample:       1,
		Filter:              gputypes.FilterModeNearest,
		FirstRed:            [2]uint32{x, y},
		Planes:              []PlaneLayout{luma(gputypes.TextureFormatR8Unorm, 1)},
		StridePixelsDivisor: 1,
	}
}

func bayerPacked(x, y uint32, depth string) Profile {
	return Profile{
		Category:       CategoryBayerPacked,
		VertexShader:   VertexIdentity,
		FragmentShader: FragmentBayer1xPacked,
		Defines:        []string{"#define " + depth},
		HorizSubsample: 1,
		VertSubsample:  1,
		Filter:         gputypes.FilterModeNearest,
		FirstRed:       [2]uint32{x, y},
		Planes:         []PlaneLayout{luma(gputypes.TextureFormatR8Unorm, 1)},
	}
}
