// Package gpu renders camera frames with WebGPU through the gogpu/wgpu
// hardware abstraction layer.
//
// A FrameRenderer owns all GPU objects for one device:
//
//   - ShaderPipeline: compiles the profile's WGSL stages with naga, checks
//     their interface and builds the render pipeline in three steps
//     (vertex, link, bind)
//   - TextureUploader: up to three plane textures, re-specified per frame
//   - OverlayRenderer: rectangle outlines drawn as 1-pixel lines
//
// The package is internal; the public API lives in the viewfinder package.
package gpu
