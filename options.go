package viewfinder

import (
	"io/fs"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/viewfinder/internal/shader"
)

// Config holds the resolved renderer configuration.
type Config struct {
	// TargetFormat is the texture format of the views passed to RenderFrame.
	TargetFormat gputypes.TextureFormat

	// Background is the colour the target is cleared to every frame.
	Background gputypes.Color

	// OverlayColor is the colour of overlay outlines.
	OverlayColor gputypes.Color

	// Release is called with every frame buffer the renderer is done with:
	// after RenderFrame, and for frames dropped or discarded by the slot.
	Release func(*FrameBuffer)

	// Shaders is the WGSL source tree. Defaults to the embedded shaders.
	Shaders fs.FS

	// SPIRV hands SPIR-V generated by naga to the device instead of WGSL.
	SPIRV bool
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		TargetFormat: gputypes.TextureFormatBGRA8Unorm,
		Background:   gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		OverlayColor: gputypes.Color{R: 1, G: 1, B: 1, A: 1},
		Shaders:      shader.Assets(),
	}
}

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := viewfinder.New(device, queue,
//	    viewfinder.WithTargetFormat(gputypes.TextureFormatRGBA8Unorm),
//	    viewfinder.WithBackground(gputypes.Color{A: 1}))
type Option func(*Config)

// WithTargetFormat sets the format of the render target views.
func WithTargetFormat(f gputypes.TextureFormat) Option {
	return func(c *Config) {
		if f != gputypes.TextureFormatUndefined {
			c.TargetFormat = f
		}
	}
}

// WithBackground sets the clear colour.
func WithBackground(color gputypes.Color) Option {
	return func(c *Config) {
		c.Background = color
	}
}

// WithOverlayColor sets the colour of overlay outlines.
func WithOverlayColor(color gputypes.Color) Option {
	return func(c *Config) {
		c.OverlayColor = color
	}
}

// WithReleaseFunc sets the function that returns consumed frame buffers
// to their owner. It is called synchronously on the goroutine that
// finished with the buffer.
func WithReleaseFunc(fn func(*FrameBuffer)) Option {
	return func(c *Config) {
		c.Release = fn
	}
}

// WithShaders replaces the embedded shader sources. The tree must contain
// the same asset names.
func WithShaders(fsys fs.FS) Option {
	return func(c *Config) {
		if fsys != nil {
			c.Shaders = fsys
		}
	}
}

// WithSPIRV makes the renderer pass SPIR-V to the device instead of WGSL.
func WithSPIRV(on bool) Option {
	return func(c *Config) {
		c.SPIRV = on
	}
}
