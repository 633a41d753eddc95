// Command vfdemo streams synthetic camera frames through the viewfinder
// renderer on the noop GPU backend and reports what was drawn.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/viewfinder"
	"github.com/gogpu/viewfinder/colorspace"
	"github.com/gogpu/viewfinder/format"
	"github.com/gogpu/viewfinder/internal/profile"
)

var colorSpaces = map[string]colorspace.ColorSpace{
	"raw":       colorspace.Raw,
	"sycc":      colorspace.Sycc,
	"smpte170m": colorspace.Smpte170m,
	"rec709":    colorspace.Rec709,
	"rec2020":   colorspace.Rec2020,
}

func main() {
	var (
		formatName = flag.String("format", "NV12", "pixel format (see -list)")
		width      = flag.Uint("width", 640, "frame width")
		height     = flag.Uint("height", 480, "frame height")
		frames     = flag.Int("frames", 30, "number of frames to stream")
		buffers    = flag.Int("buffers", 3, "number of capture buffers")
		csName     = flag.String("colorspace", "rec709", "colour space: raw, sycc, smpte170m, rec709, rec2020")
		spirv      = flag.Bool("spirv", false, "hand SPIR-V to the device instead of WGSL")
		verbose    = flag.Bool("v", false, "debug logging")
		list       = flag.Bool("list", false, "list supported formats and exit")
	)
	flag.Parse()

	if *list {
		for _, f := range viewfinder.NativeFormats() {
			fmt.Println(f)
		}
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	viewfinder.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	f, err := format.Parse(*formatName)
	if err != nil {
		log.Fatal(err)
	}
	cs, ok := colorSpaces[strings.ToLower(*csName)]
	if !ok {
		log.Fatalf("unknown colour space %q", *csName)
	}

	if err := run(f, uint32(*width), uint32(*height), cs, *frames, *buffers, *spirv); err != nil {
		log.Fatal(err)
	}
}

func run(f format.PixelFormat, width, height uint32, cs colorspace.ColorSpace, frames, buffers int, spirv bool) error {
	device, queue, cleanup, err := openNoop()
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := profile.Select(f)
	if err != nil {
		return err
	}
	stride := p.MinStride(width)

	pool := newBufferPool(p, stride, height, buffers)
	r, err := viewfinder.New(device, queue,
		viewfinder.WithTargetFormat(gputypes.TextureFormatBGRA8Unorm),
		viewfinder.WithReleaseFunc(pool.put),
		viewfinder.WithSPIRV(spirv))
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.SetFormat(f, width, height, cs, stride); err != nil {
		return err
	}
	target, err := createTarget(device, width, height)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer r.Slot().Stop()
		for i := range frames {
			buf := pool.get()
			fillPattern(buf.mem, i)
			img, err := viewfinder.NewImage(buf.fb, buf.mem)
			if err != nil {
				slog.Error("vfdemo: bad frame", "err", err)
				pool.put(buf.fb)
				return
			}
			r.Slot().Put(viewfinder.Frame{Buffer: buf.fb, Image: img})
		}
	}()

	overlays := []viewfinder.Rect{{X: 0.1, Y: 0.1, W: 0.3, H: 0.3}}
	for {
		fr, ok := r.Slot().Next()
		if !ok {
			break
		}
		if err := r.RenderFrame(target, fr.Buffer, fr.Image, overlays); err != nil {
			return err
		}
	}
	wg.Wait()

	slog.Info("vfdemo: done",
		"format", f.String(),
		"colorspace", cs.String(),
		"rendered", r.Rendered(),
		"dropped", r.Slot().Dropped(),
		"builds", r.Builds())
	return nil
}

// openNoop opens a device on the noop backend.
func openNoop() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("no adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("open device: %w", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup, nil
}

func createTarget(device hal.Device, width, height uint32) (hal.TextureView, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "vfdemo_target",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}
	return device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "vfdemo_target_view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
}

// captureBuffer is one frame buffer and its backing memory.
type captureBuffer struct {
	fb  *viewfinder.FrameBuffer
	mem []byte
}

// bufferPool hands out a fixed set of capture buffers, like a camera
// driver queue.
type bufferPool struct {
	free  chan *captureBuffer
	owner map[*viewfinder.FrameBuffer]*captureBuffer
}

func newBufferPool(p profile.Profile, stride, height uint32, n int) *bufferPool {
	var planes []viewfinder.Plane
	for _, pl := range p.Planes {
		w, h := pl.TextureSize(stride, height)
		for len(planes) <= pl.Source {
			planes = append(planes, viewfinder.Plane{})
		}
		planes[pl.Source].BytesUsed = int(w * pl.BytesPerTexel * h)
	}
	size := 0
	for i := range planes {
		planes[i].Offset = size
		size += planes[i].BytesUsed
	}

	pool := &bufferPool{
		free:  make(chan *captureBuffer, n),
		owner: make(map[*viewfinder.FrameBuffer]*captureBuffer, n),
	}
	for range n {
		b := &captureBuffer{
			fb:  &viewfinder.FrameBuffer{Planes: append([]viewfinder.Plane(nil), planes...)},
			mem: make([]byte, size),
		}
		pool.owner[b.fb] = b
		pool.free <- b
	}
	return pool
}

func (p *bufferPool) get() *captureBuffer { return <-p.free }

func (p *bufferPool) put(fb *viewfinder.FrameBuffer) {
	if b, ok := p.owner[fb]; ok {
		p.free <- b
	}
}

// fillPattern writes a diagonal ramp that scrolls with the frame index.
func fillPattern(mem []byte, frame int) {
	for i := range mem {
		mem[i] = byte(i + frame*4)
	}
}
