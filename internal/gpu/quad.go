package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/viewfinder/internal/profile"
)

// quadVertices holds the full-screen quad: four clip-space positions
// followed by their texture coordinates, in triangle strip order.
// The top row of the frame maps to texture v = 0.
var quadVertices = [16]float32{
	-1, -1,
	-1, 1,
	1, -1,
	1, 1,

	0, 1,
	0, 0,
	1, 1,
	1, 0,
}

const (
	quadVertexCount    = 4
	quadPositionOffset = 0
	quadTexCoordOffset = 4 * 2 * 4
	quadAttrStride     = 2 * 4
)

// quadVertexLayouts describes the two attribute regions of the quad buffer
// as separate vertex buffers.
func quadVertexLayouts(positionLoc, texCoordLoc uint32) []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadAttrStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: positionLoc},
			},
		},
		{
			ArrayStride: quadAttrStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: texCoordLoc},
			},
		},
	}
}

// createQuadBuffer uploads quadVertices into a new vertex buffer.
func createQuadBuffer(device hal.Device, queue hal.Queue) (hal.Buffer, error) {
	data := floatsToBytes(quadVertices[:])
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "viewfinder_quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create quad buffer: %w", err)
	}
	if err := queue.WriteBuffer(buf, 0, data); err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("gpu: upload quad buffer: %w", err)
	}
	return buf, nil
}

func floatsToBytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// encodeUniforms serializes u at the offsets resolved from the shaders.
func encodeUniforms(l uniformLayout, u profile.Uniforms) []byte {
	buf := make([]byte, l.size)
	putVec2 := func(name string, v [2]float32) {
		off := l.offsets[name]
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(v[1]))
	}
	putVec2(UniformTexStep, u.TexStep)
	putVec2(UniformTexSize, u.TexSize)
	putVec2(UniformFirstRed, u.FirstRed)
	binary.LittleEndian.PutUint32(buf[l.offsets[UniformStrideFactor]:], math.Float32bits(u.StrideFactor))
	return buf
}
