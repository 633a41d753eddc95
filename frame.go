package viewfinder

import (
	"fmt"

	"github.com/gogpu/viewfinder/internal/gpu"
)

// Plane locates one plane of a frame inside the buffer memory.
type Plane struct {
	// Offset is the byte offset of the plane in the buffer memory.
	Offset int
	// BytesUsed is the number of valid bytes in the plane.
	BytesUsed int
}

// FrameBuffer is a captured frame owned by the capture pipeline. The
// renderer borrows it for one render call and hands it back through the
// release function.
type FrameBuffer struct {
	Planes []Plane
	// Cookie is an opaque caller value, typically identifying the buffer
	// in the capture pool.
	Cookie any
}

// Image is the CPU-visible data of a FrameBuffer, one slice per plane.
// It is valid for one render call.
type Image struct {
	Planes [][]byte
}

// NewImage slices mem according to the plane layout of buf. All planes
// must lie inside mem.
func NewImage(buf *FrameBuffer, mem []byte) (*Image, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrPlaneBounds)
	}
	img := &Image{Planes: make([][]byte, len(buf.Planes))}
	for i, p := range buf.Planes {
		if p.Offset < 0 || p.BytesUsed < 0 || p.Offset > len(mem) || p.BytesUsed > len(mem)-p.Offset {
			return nil, fmt.Errorf("%w: plane %d at %d+%d, memory is %d bytes",
				ErrPlaneBounds, i, p.Offset, p.BytesUsed, len(mem))
		}
		img.Planes[i] = mem[p.Offset : p.Offset+p.BytesUsed : p.Offset+p.BytesUsed]
	}
	return img, nil
}

// Rect is an overlay rectangle in normalized frame coordinates: (0, 0) is
// the top-left corner and (1, 1) the bottom-right. Rectangles are drawn
// as 1-pixel outlines.
type Rect = gpu.Rect
