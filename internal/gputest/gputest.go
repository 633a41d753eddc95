// Package gputest provides a noop GPU device and call-counting wrappers
// for tests.
package gputest

import (
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// NoopDevice opens a device on the noop backend. The device is destroyed
// when the test finishes.
func NoopDevice(t testing.TB) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("noop backend exposes no adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// Target creates a render target view of the given size and format.
func Target(t testing.TB, device hal.Device, format gputypes.TextureFormat, width, height uint32) hal.TextureView {
	t.Helper()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "test_target",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "test_target_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		t.Fatalf("CreateTextureView failed: %v", err)
	}
	t.Cleanup(func() {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	})
	return view
}

// Counts is a snapshot of recorded calls.
type Counts struct {
	ShaderModules   int
	SPIRVModules    int
	RenderPipelines int
	Textures        int
	Samplers        int
	BindGroups      int
	WriteTextures   int
	WriteBuffers    int
	Submits         int
	Passes          int
	Draws           int
}

// Recorder collects call counts shared by the wrappers.
type Recorder struct {
	mu           sync.Mutex
	counts       Counts
	drawVertices []uint32
	rowPitches   []uint32
}

// Counts returns a snapshot of the counters.
func (r *Recorder) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

// DrawVertices returns the vertex counts of all recorded draws.
func (r *Recorder) DrawVertices() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.drawVertices...)
}

// RowPitches returns the BytesPerRow of every recorded texture write.
func (r *Recorder) RowPitches() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.rowPitches...)
}

// Reset zeroes all counters.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = Counts{}
	r.drawVertices = nil
	r.rowPitches = nil
}

func (r *Recorder) add(f func(c *Counts)) {
	r.mu.Lock()
	f(&r.counts)
	r.mu.Unlock()
}

// Device counts resource creation and wraps command encoders so that
// passes and draws are recorded.
type Device struct {
	hal.Device
	rec *Recorder

	// FailShaderModule, if set, is returned by CreateShaderModule.
	FailShaderModule error
	// FailRenderPipeline, if set, is returned by CreateRenderPipeline.
	FailRenderPipeline error
	// FailSampler, if set, is returned by CreateSampler.
	FailSampler error
}

// Queue counts writes and submissions.
type Queue struct {
	hal.Queue
	rec *Recorder
}

// Wrap returns counting wrappers around device and queue.
func Wrap(device hal.Device, queue hal.Queue) (*Device, *Queue, *Recorder) {
	rec := &Recorder{}
	return &Device{Device: device, rec: rec}, &Queue{Queue: queue, rec: rec}, rec
}

// Counting opens a noop device and wraps it.
func Counting(t testing.TB) (*Device, *Queue, *Recorder) {
	t.Helper()
	device, queue := NoopDevice(t)
	return Wrap(device, queue)
}

func (d *Device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if d.FailShaderModule != nil {
		return nil, d.FailShaderModule
	}
	d.rec.add(func(c *Counts) {
		c.ShaderModules++
		if len(desc.Source.SPIRV) > 0 {
			c.SPIRVModules++
		}
	})
	return d.Device.CreateShaderModule(desc)
}

func (d *Device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	if d.FailRenderPipeline != nil {
		return nil, d.FailRenderPipeline
	}
	d.rec.add(func(c *Counts) { c.RenderPipelines++ })
	return d.Device.CreateRenderPipeline(desc)
}

func (d *Device) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	d.rec.add(func(c *Counts) { c.Textures++ })
	return d.Device.CreateTexture(desc)
}

func (d *Device) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	if d.FailSampler != nil {
		return nil, d.FailSampler
	}
	d.rec.add(func(c *Counts) { c.Samplers++ })
	return d.Device.CreateSampler(desc)
}

func (d *Device) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.rec.add(func(c *Counts) { c.BindGroups++ })
	return d.Device.CreateBindGroup(desc)
}

func (d *Device) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &encoder{CommandEncoder: enc, rec: d.rec}, nil
}

func (q *Queue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.rec.mu.Lock()
	q.rec.counts.WriteTextures++
	if layout != nil {
		q.rec.rowPitches = append(q.rec.rowPitches, layout.BytesPerRow)
	}
	q.rec.mu.Unlock()
	return q.Queue.WriteTexture(dst, data, layout, size)
}

func (q *Queue) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	q.rec.add(func(c *Counts) { c.WriteBuffers++ })
	return q.Queue.WriteBuffer(buffer, offset, data)
}

func (q *Queue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	q.rec.add(func(c *Counts) { c.Submits++ })
	return q.Queue.Submit(cmds)
}

type encoder struct {
	hal.CommandEncoder
	rec *Recorder
}

func (e *encoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.rec.add(func(c *Counts) { c.Passes++ })
	return &pass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), rec: e.rec}
}

type pass struct {
	hal.RenderPassEncoder
	rec *Recorder
}

func (p *pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.rec.mu.Lock()
	p.rec.counts.Draws++
	p.rec.drawVertices = append(p.rec.drawVertices, vertexCount)
	p.rec.mu.Unlock()
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}
