package gpu

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/viewfinder/internal/shader"
)

// Rect is an overlay rectangle in normalized frame coordinates: (0, 0) is
// the top-left corner of the frame and (1, 1) the bottom-right.
type Rect struct {
	X, Y, W, H float32
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// overlayVerticesPerRect is the number of line-list vertices per outline.
const overlayVerticesPerRect = 8

// OverlayRenderer draws rectangle outlines over the frame as 1-pixel lines.
type OverlayRenderer struct {
	device  hal.Device
	shaders fs.FS
	target  gputypes.TextureFormat
	color   gputypes.Color
	spirv   bool

	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	uniform    hal.Buffer
	bindGroup  hal.BindGroup

	vertexBuf      hal.Buffer
	vertexCapacity uint64
	vertexCount    uint32
}

// NewOverlayRenderer creates an overlay renderer. GPU objects are created
// on the first Prepare.
func NewOverlayRenderer(device hal.Device, shaders fs.FS, target gputypes.TextureFormat, color gputypes.Color) *OverlayRenderer {
	return &OverlayRenderer{device: device, shaders: shaders, target: target, color: color}
}

// UseSPIRV selects SPIR-V instead of WGSL for the shader module. It takes
// effect the next time the pipeline is created.
func (o *OverlayRenderer) UseSPIRV(on bool) { o.spirv = on }

// Prepare uploads the outlines of rects. Empty rectangles are skipped.
// It returns the number of rectangles that will be drawn.
func (o *OverlayRenderer) Prepare(queue hal.Queue, rects []Rect) (int, error) {
	o.vertexCount = 0
	verts := overlayVertices(rects)
	if len(verts) == 0 {
		return 0, nil
	}
	if err := o.ensurePipeline(queue); err != nil {
		return 0, err
	}

	data := floatsToBytes(verts)
	if err := o.ensureVertexBuffer(uint64(len(data))); err != nil {
		return 0, err
	}
	if err := queue.WriteBuffer(o.vertexBuf, 0, data); err != nil {
		return 0, fmt.Errorf("gpu: write overlay vertices: %w", err)
	}
	o.vertexCount = uint32(len(verts) / 2)
	return int(o.vertexCount / overlayVerticesPerRect), nil
}

// Record records the outlines prepared by the last Prepare into pass.
func (o *OverlayRenderer) Record(pass hal.RenderPassEncoder) {
	if o.vertexCount == 0 || o.pipeline == nil {
		return
	}
	pass.SetPipeline(o.pipeline)
	pass.SetBindGroup(0, o.bindGroup, nil)
	pass.SetVertexBuffer(0, o.vertexBuf, 0)
	pass.Draw(o.vertexCount, 1, 0, 0)
}

// overlayVertices converts rects into clip-space line-list vertices.
func overlayVertices(rects []Rect) []float32 {
	var out []float32
	for _, r := range rects {
		if r.Empty() {
			continue
		}
		x0, y0 := 2*r.X-1, 1-2*r.Y
		x1, y1 := 2*(r.X+r.W)-1, 1-2*(r.Y+r.H)
		out = append(out,
			x0, y0, x1, y0,
			x1, y0, x1, y1,
			x1, y1, x0, y1,
			x0, y1, x0, y0,
		)
	}
	return out
}

func (o *OverlayRenderer) ensurePipeline(queue hal.Queue) error {
	if o.pipeline != nil {
		return nil
	}
	if err := o.createPipeline(queue); err != nil {
		o.Destroy()
		return err
	}
	return nil
}

func (o *OverlayRenderer) createPipeline(queue hal.Queue) error {
	vs, err := shader.Compile(o.shaders, shader.Overlay, shader.StageVertex, nil)
	if err != nil {
		return err
	}
	frag, err := shader.Compile(o.shaders, shader.Overlay, shader.StageFragment, nil)
	if err != nil {
		return err
	}
	iface, err := frag.Reflect()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLink, err)
	}
	if iface.Uniform == nil {
		return fmt.Errorf("%w: %s: no uniform block", ErrLink, frag.Name)
	}

	o.module, err = createShaderModule(o.device, vs, o.spirv)
	if err != nil {
		return err
	}

	o.bindLayout, err = o.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "overlay_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    iface.Uniform.Binding,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: create overlay bind group layout: %w", ErrLink, err)
	}
	o.pipeLayout, err = o.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "overlay_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{o.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("%w: create overlay pipeline layout: %w", ErrLink, err)
	}
	o.pipeline, err = o.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "overlay_pipeline",
		Layout: o.pipeLayout,
		Vertex: hal.VertexState{
			Module:     o.module,
			EntryPoint: vs.Entry,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: 8,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				},
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     o.module,
			EntryPoint: frag.Entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    o.target,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyLineList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("%w: create overlay pipeline: %w", ErrLink, err)
	}

	o.uniform, err = o.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overlay_uniforms",
		Size:  uint64(iface.Uniform.Size),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: create overlay uniforms: %w", ErrBind, err)
	}
	color := make([]byte, iface.Uniform.Size)
	for i, c := range []float64{o.color.R, o.color.G, o.color.B, o.color.A} {
		binary.LittleEndian.PutUint32(color[i*4:], math.Float32bits(float32(c)))
	}
	if err := queue.WriteBuffer(o.uniform, 0, color); err != nil {
		return fmt.Errorf("%w: write overlay colour: %w", ErrBind, err)
	}

	o.bindGroup, err = o.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "overlay_bind_group",
		Layout: o.bindLayout,
		Entries: []gputypes.BindGroupEntry{{
			Binding: iface.Uniform.Binding,
			Resource: gputypes.BufferBinding{
				Buffer: o.uniform.NativeHandle(),
				Size:   uint64(iface.Uniform.Size),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: create overlay bind group: %w", ErrBind, err)
	}
	return nil
}

func (o *OverlayRenderer) ensureVertexBuffer(size uint64) error {
	if o.vertexBuf != nil && o.vertexCapacity >= size {
		return nil
	}
	if o.vertexBuf != nil {
		o.device.DestroyBuffer(o.vertexBuf)
		o.vertexBuf = nil
	}
	capacity := max(size, 2*o.vertexCapacity)
	buf, err := o.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overlay_vertices",
		Size:  capacity,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		o.vertexCapacity = 0
		return fmt.Errorf("gpu: create overlay vertex buffer: %w", err)
	}
	o.vertexBuf = buf
	o.vertexCapacity = capacity
	return nil
}

// Destroy releases all GPU objects in reverse creation order.
func (o *OverlayRenderer) Destroy() {
	if o.vertexBuf != nil {
		o.device.DestroyBuffer(o.vertexBuf)
		o.vertexBuf = nil
		o.vertexCapacity = 0
	}
	if o.bindGroup != nil {
		o.device.DestroyBindGroup(o.bindGroup)
		o.bindGroup = nil
	}
	if o.uniform != nil {
		o.device.DestroyBuffer(o.uniform)
		o.uniform = nil
	}
	if o.pipeline != nil {
		o.device.DestroyRenderPipeline(o.pipeline)
		o.pipeline = nil
	}
	if o.pipeLayout != nil {
		o.device.DestroyPipelineLayout(o.pipeLayout)
		o.pipeLayout = nil
	}
	if o.bindLayout != nil {
		o.device.DestroyBindGroupLayout(o.bindLayout)
		o.bindLayout = nil
	}
	if o.module != nil {
		o.device.DestroyShaderModule(o.module)
		o.module = nil
	}
	o.vertexCount = 0
}
