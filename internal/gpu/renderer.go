package gpu

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/viewfinder/internal/profile"
)

// ErrRendererClosed is returned when rendering after Destroy.
var ErrRendererClosed = errors.New("gpu: renderer closed")

// RendererConfig configures a FrameRenderer.
type RendererConfig struct {
	// Shaders is the shader source tree.
	Shaders fs.FS
	// TargetFormat is the format of the views passed to Render.
	TargetFormat gputypes.TextureFormat
	// Background clears the target before the frame is drawn.
	Background gputypes.Color
	// OverlayColor is the colour of the overlay outlines.
	OverlayColor gputypes.Color
	// SPIRV hands SPIR-V to the device instead of WGSL.
	SPIRV bool
}

// Frame is one frame ready for upload.
type Frame struct {
	Planes [][]byte
	Width  uint32
	Height uint32
	Stride uint32
}

// RenderStats reports what a Render call did.
type RenderStats struct {
	// Drawn is true when the frame quad was drawn.
	Drawn bool
	// Overlays is the number of outlines drawn.
	Overlays int
}

// pendingSubmit is a command buffer waiting for its submission to finish.
type pendingSubmit struct {
	index uint64
	cmd   hal.CommandBuffer
}

// FrameRenderer owns every GPU object used to display frames: the shader
// pipeline, the plane textures, the quad and the overlay. It is bound to
// one device and queue for its whole life.
//
// FrameRenderer is not safe for concurrent use.
type FrameRenderer struct {
	device hal.Device
	queue  hal.Queue
	config RendererConfig

	pipeline *ShaderPipeline
	textures *TextureUploader
	overlay  *OverlayRenderer
	quad     hal.Buffer

	pending []pendingSubmit
	closed  bool
}

// NewFrameRenderer creates a renderer on device and queue.
func NewFrameRenderer(device hal.Device, queue hal.Queue, cfg RendererConfig) *FrameRenderer {
	pipeline := NewShaderPipeline(device, cfg.Shaders, cfg.TargetFormat)
	pipeline.UseSPIRV(cfg.SPIRV)
	overlay := NewOverlayRenderer(device, cfg.Shaders, cfg.TargetFormat, cfg.OverlayColor)
	overlay.UseSPIRV(cfg.SPIRV)
	return &FrameRenderer{
		device:   device,
		queue:    queue,
		config:   cfg,
		pipeline: pipeline,
		textures: NewTextureUploader(device, queue),
		overlay:  overlay,
	}
}

// Pipeline returns the shader pipeline.
func (r *FrameRenderer) Pipeline() *ShaderPipeline { return r.pipeline }

// Textures returns the texture uploader.
func (r *FrameRenderer) Textures() *TextureUploader { return r.textures }

// SetProfile selects the profile used for subsequent frames.
func (r *FrameRenderer) SetProfile(p profile.Profile) {
	r.pipeline.SetProfile(p)
}

// Render builds the pipeline if a profile is set, clears target and, when
// frame is non-nil, draws it followed by the overlay outlines. The target
// is cleared even when the build fails. Frames with a zero
// stride or height are not drawn and do not report an error.
func (r *FrameRenderer) Render(target hal.TextureView, frame *Frame, overlays []Rect) (RenderStats, error) {
	var stats RenderStats
	if r.closed {
		return stats, ErrRendererClosed
	}
	r.reclaim()

	draw, err := r.prepareFrame(frame)
	if draw {
		n, oerr := r.overlay.Prepare(r.queue, overlays)
		if oerr != nil {
			slogger().Warn("overlay: prepare failed", "err", oerr)
		}
		stats.Overlays = n
	}

	if serr := r.submit(target, draw); serr != nil {
		return RenderStats{}, serr
	}
	stats.Drawn = draw
	return stats, err
}

// prepareFrame builds the pipeline and uploads frame. It reports whether
// the quad can be drawn. The pipeline is built as soon as a profile is
// set, even for a nil frame.
func (r *FrameRenderer) prepareFrame(frame *Frame) (bool, error) {
	_, hasProfile := r.pipeline.Profile()
	if hasProfile {
		if err := r.pipeline.Ensure(); err != nil {
			return false, err
		}
	}
	if frame == nil {
		return false, nil
	}
	if !hasProfile {
		return false, ErrNoProfile
	}
	if r.quad == nil {
		quad, err := createQuadBuffer(r.device, r.queue)
		if err != nil {
			return false, err
		}
		r.quad = quad
	}

	p, _ := r.pipeline.Profile()
	u, err := r.textures.Upload(frame.Planes, p, frame.Width, frame.Height, frame.Stride)
	if errors.Is(err, ErrEmptyFrame) {
		slogger().Debug("frame: empty, skipped", "stride", frame.Stride, "height", frame.Height)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := r.pipeline.Prepare(r.queue, r.textures, u); err != nil {
		return false, err
	}
	return true, nil
}

func (r *FrameRenderer) submit(target hal.TextureView, draw bool) error {
	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "viewfinder_encoder",
	})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("viewfinder_frame"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "viewfinder_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: r.config.Background,
		}},
	})
	if draw {
		r.pipeline.Record(pass, r.quad)
		r.overlay.Record(pass)
	}
	pass.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	index, err := r.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		r.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("gpu: submit: %w", err)
	}
	r.pending = append(r.pending, pendingSubmit{index: index, cmd: cmd})
	return nil
}

// reclaim frees command buffers of finished submissions.
func (r *FrameRenderer) reclaim() {
	if len(r.pending) == 0 {
		return
	}
	done := r.queue.PollCompleted()
	keep := r.pending[:0]
	for _, p := range r.pending {
		if p.index <= done {
			r.device.FreeCommandBuffer(p.cmd)
			continue
		}
		keep = append(keep, p)
	}
	clear(r.pending[len(keep):])
	r.pending = keep
}

// Pending returns the number of submissions not yet reclaimed.
func (r *FrameRenderer) Pending() int { return len(r.pending) }

// Destroy waits for the GPU and releases every object. It is safe to call
// more than once.
func (r *FrameRenderer) Destroy() {
	if r.closed {
		return
	}
	r.closed = true
	if err := r.device.WaitIdle(); err != nil {
		slogger().Warn("renderer: wait idle failed", "err", err)
	}
	for _, p := range r.pending {
		r.device.FreeCommandBuffer(p.cmd)
	}
	r.pending = nil

	r.overlay.Destroy()
	if r.quad != nil {
		r.device.DestroyBuffer(r.quad)
		r.quad = nil
	}
	r.textures.Destroy()
	r.pipeline.Destroy()
}
