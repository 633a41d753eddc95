// Package viewfinder renders live camera frames on the GPU.
//
// # Overview
//
// Frames arrive as raw plane buffers in one of the camera pixel formats
// listed by [NativeFormats]: semi-planar, planar and packed YUV, packed RGB
// and raw Bayer at 8, 10 and 12 bits. For each format the renderer selects
// a texture layout, a WGSL shader pair and a uniform set that convert the
// format to displayable colour in the fragment shader. Pixels are never
// converted on the CPU.
//
// # Quick Start
//
//	r, err := viewfinder.New(device, queue,
//	    viewfinder.WithTargetFormat(gputypes.TextureFormatBGRA8Unorm),
//	    viewfinder.WithReleaseFunc(func(b *viewfinder.FrameBuffer) { pool.Put(b) }))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	if err := r.SetFormat(format.NV12, 1280, 720, colorspace.Rec709, 1280); err != nil {
//	    return err
//	}
//	img, err := viewfinder.NewImage(buf, mem)
//	if err != nil {
//	    return err
//	}
//	err = r.RenderFrame(view, buf, img, nil)
//
// # Frame hand-off
//
// Capture goroutines publish frames through the renderer's [FrameSlot]; the
// render goroutine consumes the latest one with [Renderer.RenderPending].
// Frames overwritten before they are rendered are released through the
// release function.
//
// # Pipeline
//
// Shader programs are built lazily on the first frame after a format
// change: the vertex stage, then the fragment stage and render pipeline,
// then the sampler and uniform buffer. A failed step is retried on the
// next frame.
//
// # Logging
//
// The package is silent by default. Use [SetLogger] to route diagnostics
// to a [log/slog] logger.
package viewfinder
