package viewfinder

import (
	"errors"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/viewfinder/colorspace"
	"github.com/gogpu/viewfinder/format"
	"github.com/gogpu/viewfinder/internal/gpu"
	"github.com/gogpu/viewfinder/internal/profile"
)

// Renderer displays camera frames on a GPU render target.
//
// Renderer is safe for concurrent use; GPU work is serialized internally.
// Producers on other goroutines should hand frames over through Slot.
type Renderer struct {
	mu     sync.Mutex
	config Config
	frames *gpu.FrameRenderer
	slot   *FrameSlot

	format     format.PixelFormat
	colorSpace colorspace.ColorSpace
	width      uint32
	height     uint32
	stride     uint32
	profile    profile.Profile
	hasFormat  bool

	rendered uint64
	closed   bool
}

// New creates a renderer drawing with device and queue.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Renderer, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Renderer{
		config: cfg,
		frames: gpu.NewFrameRenderer(device, queue, gpu.RendererConfig{
			Shaders:      cfg.Shaders,
			TargetFormat: cfg.TargetFormat,
			Background:   cfg.Background,
			OverlayColor: cfg.OverlayColor,
			SPIRV:        cfg.SPIRV,
		}),
	}
	r.slot = NewFrameSlot(r.release)
	Logger().Info("viewfinder: renderer created", "target", cfg.TargetFormat.String())
	return r, nil
}

// Config returns the resolved configuration.
func (r *Renderer) Config() Config { return r.config }

// Slot returns the frame hand-off slot consumed by RenderPending.
func (r *Renderer) Slot() *FrameSlot { return r.slot }

// Format returns the active pixel format and colour space. ok is false
// before the first successful SetFormat.
func (r *Renderer) Format() (f format.PixelFormat, cs colorspace.ColorSpace, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format, r.colorSpace, r.hasFormat
}

// Size returns the active frame geometry.
func (r *Renderer) Size() (width, height, stride uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height, r.stride
}

// SetFormat configures the renderer for frames of the given format and
// geometry. An unsupported format or an invalid geometry returns an error
// and leaves the previous configuration active. Calling SetFormat again
// with the same format and colour space only updates the geometry; the
// shader program is rebuilt lazily on the next frame otherwise.
func (r *Renderer) SetFormat(f format.PixelFormat, width, height uint32, cs colorspace.ColorSpace, stride uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	p, err := profile.Select(f)
	if err != nil {
		Logger().Warn("viewfinder: unsupported format", "format", f.String())
		return err
	}
	p = p.WithColorSpace(cs)
	if err := p.CheckSize(width, height, stride); err != nil {
		Logger().Warn("viewfinder: invalid frame geometry",
			"format", f.String(), "width", width, "height", height, "stride", stride, "err", err)
		return err
	}

	sameProgram := r.hasFormat && r.format == f && r.colorSpace == cs
	r.width, r.height, r.stride = width, height, stride
	if sameProgram {
		return nil
	}

	r.format = f
	r.colorSpace = cs
	r.profile = p
	r.hasFormat = true
	r.frames.SetProfile(p)
	Logger().Debug("viewfinder: format set",
		"format", f.String(),
		"colorspace", cs.String(),
		"category", p.Category.String(),
		"width", width,
		"height", height,
		"stride", stride)
	return nil
}

// RenderFrame clears target and draws img with the overlay outlines on
// top. A nil img, or a frame with a zero stride or height, only clears
// the target. buf is handed to the release function when RenderFrame
// returns, whether or not the frame was drawn.
func (r *Renderer) RenderFrame(target hal.TextureView, buf *FrameBuffer, img *Image, overlays []Rect) error {
	defer r.release(buf)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renderLocked(target, img, overlays)
}

// RenderPending renders the frame waiting in the slot, if any. It reports
// whether a frame was consumed. Without a pending frame nothing is drawn.
func (r *Renderer) RenderPending(target hal.TextureView, overlays []Rect) (bool, error) {
	f, ok := r.slot.Take()
	if !ok {
		return false, nil
	}
	return true, r.RenderFrame(target, f.Buffer, f.Image, overlays)
}

func (r *Renderer) renderLocked(target hal.TextureView, img *Image, overlays []Rect) error {
	if r.closed {
		return ErrClosed
	}
	if target == nil {
		return ErrNilTarget
	}

	var frame *gpu.Frame
	if img != nil {
		if !r.hasFormat {
			return ErrNoFormat
		}
		frame = &gpu.Frame{
			Planes: img.Planes,
			Width:  r.width,
			Height: r.height,
			Stride: r.stride,
		}
	}

	stats, err := r.frames.Render(target, frame, overlays)
	if err != nil {
		if errors.Is(err, gpu.ErrRendererClosed) {
			return ErrClosed
		}
		Logger().Warn("viewfinder: frame not drawn", "format", r.format.String(), "err", err)
		return err
	}
	if stats.Drawn {
		r.rendered++
	}
	return nil
}

// Rendered returns the number of frames drawn.
func (r *Renderer) Rendered() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered
}

// Builds returns how many times a fragment shader has been compiled.
func (r *Renderer) Builds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames.Pipeline().Builds()
}

// Stop releases the frame held by the slot, for example when the camera
// stops streaming. The renderer stays usable: frames put afterwards are
// rendered as before.
func (r *Renderer) Stop() {
	if r.slot.Flush() {
		Logger().Debug("viewfinder: pending frame released on stop")
	}
}

// Close stops the slot and releases all GPU resources. It is safe to call
// more than once.
func (r *Renderer) Close() error {
	r.slot.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.frames.Destroy()
	Logger().Info("viewfinder: renderer closed", "rendered", r.rendered)
	return nil
}

func (r *Renderer) release(buf *FrameBuffer) {
	if buf != nil && r.config.Release != nil {
		r.config.Release(buf)
	}
}

// NativeFormats returns the pixel formats the renderer can display, in
// catalog order.
func NativeFormats() []format.PixelFormat {
	return profile.Formats()
}

// IsSupported reports whether f can be displayed.
func IsSupported(f format.PixelFormat) bool {
	return profile.Supported(f)
}
