package viewfinder

import (
	"errors"

	"github.com/gogpu/viewfinder/internal/gpu"
	"github.com/gogpu/viewfinder/internal/profile"
)

// Errors returned by the renderer. Errors from the internal layers are the
// same values, so errors.Is works on wrapped errors from any layer.
var (
	// ErrUnsupportedFormat is returned by SetFormat for formats outside the
	// catalog. The previous format stays active.
	ErrUnsupportedFormat = profile.ErrUnsupported

	// ErrDegenerateSize is returned by SetFormat when the geometry leaves
	// no pixels to interpolate between.
	ErrDegenerateSize = profile.ErrDegenerateSize

	// ErrOddWidth is returned by SetFormat for packed YUV with an odd width.
	ErrOddWidth = profile.ErrOddWidth

	// ErrStrideAlignment is returned by SetFormat when the stride does not
	// hold a whole number of texels for every plane.
	ErrStrideAlignment = profile.ErrStrideAlignment

	// ErrShaderCompile is returned when a shader stage fails to compile.
	ErrShaderCompile = gpu.ErrCompile

	// ErrShaderLink is returned when the shader stages cannot be linked.
	ErrShaderLink = gpu.ErrLink

	// ErrShaderBind is returned when the pipeline resources cannot be bound.
	ErrShaderBind = gpu.ErrBind

	// ErrEmptyFrame marks frames with a zero stride or height. It is
	// handled internally and never returned by RenderFrame.
	ErrEmptyFrame = gpu.ErrEmptyFrame

	// ErrPlaneData is returned when an image plane is missing or too short.
	ErrPlaneData = gpu.ErrPlaneData

	// ErrNoFormat is returned when a frame is rendered before SetFormat.
	ErrNoFormat = errors.New("viewfinder: no format set")

	// ErrNilDevice is returned by New when the device or queue is nil.
	ErrNilDevice = errors.New("viewfinder: nil device or queue")

	// ErrNilProvider is returned by NewFromProvider for a nil provider or
	// one that does not expose HAL objects.
	ErrNilProvider = errors.New("viewfinder: provider does not expose a HAL device")

	// ErrNilTarget is returned by RenderFrame for a nil target view.
	ErrNilTarget = errors.New("viewfinder: nil render target")

	// ErrClosed is returned when using a closed renderer.
	ErrClosed = errors.New("viewfinder: renderer closed")

	// ErrPlaneBounds is returned by NewImage when a plane lies outside the
	// mapped memory.
	ErrPlaneBounds = errors.New("viewfinder: plane outside buffer memory")
)
