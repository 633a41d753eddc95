package gpu

import (
	"errors"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/viewfinder/format"
	"github.com/gogpu/viewfinder/internal/gputest"
	"github.com/gogpu/viewfinder/internal/profile"
	"github.com/gogpu/viewfinder/internal/shader"
)

func newTestRenderer(t *testing.T, shaders fstest.MapFS) (*FrameRenderer, *gputest.Recorder, *gputest.Device) {
	t.Helper()
	device, queue, rec := gputest.Counting(t)
	cfg := RendererConfig{
		Shaders:      shader.Assets(),
		TargetFormat: gputypes.TextureFormatBGRA8Unorm,
		OverlayColor: gputypes.Color{R: 1, G: 1, B: 1, A: 1},
	}
	if shaders != nil {
		cfg.Shaders = shaders
	}
	r := NewFrameRenderer(device, queue, cfg)
	t.Cleanup(r.Destroy)
	return r, rec, device
}

func testFrame(p profile.Profile, width, height, stride uint32) *Frame {
	return &Frame{
		Planes: planesFor(p, stride, height),
		Width:  width,
		Height: height,
		Stride: stride,
	}
}

func TestRenderNilFrameClearsOnly(t *testing.T) {
	r, rec, device := newTestRenderer(t, nil)
	r.SetProfile(selectProfile(t, format.NV12))
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	stats, err := r.Render(target, nil, []Rect{{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}})
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if stats.Drawn || stats.Overlays != 0 {
		t.Errorf("stats = %+v, want nothing drawn", stats)
	}
	c := rec.Counts()
	if c.Passes != 1 || c.Submits != 1 {
		t.Errorf("counts = %+v, want one pass and one submit", c)
	}
	if c.Draws != 0 || c.WriteTextures != 0 {
		t.Errorf("counts = %+v, want no draws or texture writes", c)
	}
	if got := r.Pipeline().State(); got != StateBound {
		t.Errorf("pipeline state = %s, want bound", got)
	}
	if got := r.Pipeline().Builds(); got != 1 {
		t.Errorf("Builds() = %d, want 1", got)
	}
}

func TestRenderNilFrameWithoutProfile(t *testing.T) {
	r, rec, device := newTestRenderer(t, nil)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	if _, err := r.Render(target, nil, nil); err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if got := r.Pipeline().State(); got != StateUninitialized {
		t.Errorf("pipeline state = %s, want uninitialized", got)
	}
	if c := rec.Counts(); c.Passes != 1 || c.ShaderModules != 0 {
		t.Errorf("counts = %+v, want one clearing pass and no shaders", c)
	}
}

func TestRenderNilFrameBuildFailureStillClears(t *testing.T) {
	shaders := assetsCopy(t)
	shaders[profile.FragmentYUV2Planes+shader.Ext] = &fstest.MapFile{Data: []byte("fn (")}
	r, rec, device := newTestRenderer(t, shaders)
	r.SetProfile(selectProfile(t, format.NV12))
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	_, err := r.Render(target, nil, nil)
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("Render() = %v, want ErrCompile", err)
	}
	if c := rec.Counts(); c.Passes != 1 || c.Draws != 0 {
		t.Errorf("counts = %+v, want one clearing pass", c)
	}
}

func TestRenderFrame(t *testing.T) {
	r, rec, device := newTestRenderer(t, nil)
	p := selectProfile(t, format.NV12)
	r.SetProfile(p)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 640, 480)

	stats, err := r.Render(target, testFrame(p, 640, 480, 640), nil)
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if !stats.Drawn {
		t.Error("frame not drawn")
	}
	if got := rec.DrawVertices(); !slices.Equal(got, []uint32{quadVertexCount}) {
		t.Errorf("draws = %v, want [%d]", got, quadVertexCount)
	}
	if got := rec.Counts().WriteTextures; got != 2 {
		t.Errorf("WriteTexture calls = %d, want 2", got)
	}
}

func TestRenderOverlays(t *testing.T) {
	r, rec, device := newTestRenderer(t, nil)
	p := selectProfile(t, format.NV12)
	r.SetProfile(p)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	rects := []Rect{
		{X: 0.1, Y: 0.1, W: 0.2, H: 0.2},
		{X: 0.5, Y: 0.5, W: 0, H: 0.2},
		{X: 0.5, Y: 0.5, W: 0.4, H: 0.4},
	}
	stats, err := r.Render(target, testFrame(p, 64, 48, 64), rects)
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if stats.Overlays != 2 {
		t.Errorf("Overlays = %d, want 2", stats.Overlays)
	}
	want := []uint32{quadVertexCount, 2 * overlayVerticesPerRect}
	if got := rec.DrawVertices(); !slices.Equal(got, want) {
		t.Errorf("draws = %v, want %v", got, want)
	}
}

func TestRenderSPIRVCoversOverlay(t *testing.T) {
	device, queue, rec := gputest.Counting(t)
	r := NewFrameRenderer(device, queue, RendererConfig{
		Shaders:      shader.Assets(),
		TargetFormat: gputypes.TextureFormatBGRA8Unorm,
		OverlayColor: gputypes.Color{R: 1, A: 1},
		SPIRV:        true,
	})
	t.Cleanup(r.Destroy)
	p := selectProfile(t, format.NV12)
	r.SetProfile(p)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	stats, err := r.Render(target, testFrame(p, 64, 48, 64), []Rect{{X: 0.2, Y: 0.2, W: 0.5, H: 0.5}})
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if stats.Overlays != 1 {
		t.Fatalf("Overlays = %d, want 1", stats.Overlays)
	}
	c := rec.Counts()
	if c.ShaderModules != 3 || c.SPIRVModules != c.ShaderModules {
		t.Errorf("modules = %d, SPIR-V modules = %d; want 3 SPIR-V modules", c.ShaderModules, c.SPIRVModules)
	}
}

func TestRenderEmptyFrame(t *testing.T) {
	r, rec, device := newTestRenderer(t, nil)
	p := selectProfile(t, format.NV12)
	r.SetProfile(p)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	frame := testFrame(p, 64, 48, 64)
	frame.Stride = 0
	stats, err := r.Render(target, frame, nil)
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	if stats.Drawn {
		t.Error("empty frame drawn")
	}
	if c := rec.Counts(); c.Draws != 0 || c.WriteTextures != 0 || c.Passes != 1 {
		t.Errorf("counts = %+v, want a clear pass only", c)
	}
}

func TestRenderCompileFailure(t *testing.T) {
	assets := assetsCopy(t)
	good := assets[profile.FragmentYUV2Planes+shader.Ext]
	assets[profile.FragmentYUV2Planes+shader.Ext] = &fstest.MapFile{Data: []byte("@fragment fn fs_main(")}

	r, rec, device := newTestRenderer(t, assets)
	p := selectProfile(t, format.NV12)
	r.SetProfile(p)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	_, err := r.Render(target, testFrame(p, 64, 48, 64), nil)
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("Render() = %v, want ErrCompile", err)
	}
	if c := rec.Counts(); c.Draws != 0 || c.Passes != 1 {
		t.Errorf("counts = %+v, want a clear pass only", c)
	}

	assets[profile.FragmentYUV2Planes+shader.Ext] = good
	stats, err := r.Render(target, testFrame(p, 64, 48, 64), nil)
	if err != nil {
		t.Fatalf("Render() after fix = %v", err)
	}
	if !stats.Drawn {
		t.Error("frame not drawn after recovery")
	}
}

func TestRenderProfileSwitch(t *testing.T) {
	r, _, device := newTestRenderer(t, nil)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	semi := selectProfile(t, format.NV12)
	r.SetProfile(semi)
	if _, err := r.Render(target, testFrame(semi, 64, 48, 64), nil); err != nil {
		t.Fatal(err)
	}
	if got := r.Textures().Populated(); got != 2 {
		t.Fatalf("Populated() = %d, want 2", got)
	}

	planar := selectProfile(t, format.YUV420)
	r.SetProfile(planar)
	if _, err := r.Render(target, testFrame(planar, 64, 48, 64), nil); err != nil {
		t.Fatal(err)
	}
	if got := r.Textures().Populated(); got != 3 {
		t.Errorf("Populated() = %d, want 3", got)
	}
	if got := r.Pipeline().Builds(); got != 2 {
		t.Errorf("Builds() = %d, want 2", got)
	}
}

func TestRenderReclaimsCommandBuffers(t *testing.T) {
	r, _, device := newTestRenderer(t, nil)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)

	for range 3 {
		if _, err := r.Render(target, nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	// The noop queue completes submissions immediately, so only the last
	// one is still pending.
	if got := r.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}
}

func TestRenderAfterDestroy(t *testing.T) {
	r, _, device := newTestRenderer(t, nil)
	target := gputest.Target(t, device, gputypes.TextureFormatBGRA8Unorm, 64, 48)
	r.Destroy()
	r.Destroy()
	if _, err := r.Render(target, nil, nil); !errors.Is(err, ErrRendererClosed) {
		t.Fatalf("Render() = %v, want ErrRendererClosed", err)
	}
}

func TestOverlayVertices(t *testing.T) {
	got := overlayVertices([]Rect{{X: 0, Y: 0, W: 1, H: 1}, {W: -1, H: 1}})
	want := []float32{
		-1, 1, 1, 1,
		1, 1, 1, -1,
		1, -1, -1, -1,
		-1, -1, -1, 1,
	}
	if !slices.Equal(got, want) {
		t.Errorf("overlayVertices() = %v, want %v", got, want)
	}
}
