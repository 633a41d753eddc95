// Package colorspace derives the YUV to RGB conversion used by the
// viewfinder shaders from a colour space descriptor.
package colorspace

import (
	"strconv"
	"strings"
)

// Encoding is the Y'CbCr encoding standard.
type Encoding int

const (
	// EncodingNone means the samples are not Y'CbCr encoded.
	EncodingNone Encoding = iota
	// EncodingRec601 is ITU-R BT.601.
	EncodingRec601
	// EncodingRec709 is ITU-R BT.709.
	EncodingRec709
	// EncodingRec2020 is ITU-R BT.2020 non-constant luminance.
	EncodingRec2020
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingNone:
		return "None"
	case EncodingRec601:
		return "Rec601"
	case EncodingRec709:
		return "Rec709"
	case EncodingRec2020:
		return "Rec2020"
	default:
		return "Encoding(" + strconv.Itoa(int(e)) + ")"
	}
}

// Range is the quantization range of the samples.
type Range int

const (
	// RangeFull uses 0-255 for 8-bit samples.
	RangeFull Range = iota
	// RangeLimited uses 16-235 for luma and 16-240 for chroma.
	RangeLimited
)

// String returns the range name.
func (r Range) String() string {
	switch r {
	case RangeFull:
		return "Full"
	case RangeLimited:
		return "Limited"
	default:
		return "Range(" + strconv.Itoa(int(r)) + ")"
	}
}

// ColorSpace describes how frame samples map to display colour.
type ColorSpace struct {
	Encoding Encoding
	Range    Range
}

// Common colour spaces reported by camera pipelines.
var (
	Raw       = ColorSpace{Encoding: EncodingNone, Range: RangeFull}
	Sycc      = ColorSpace{Encoding: EncodingRec601, Range: RangeFull}
	Smpte170m = ColorSpace{Encoding: EncodingRec601, Range: RangeLimited}
	Rec709    = ColorSpace{Encoding: EncodingRec709, Range: RangeLimited}
	Rec2020   = ColorSpace{Encoding: EncodingRec2020, Range: RangeLimited}
)

// String returns "Encoding/Range".
func (c ColorSpace) String() string {
	return c.Encoding.String() + "/" + c.Range.String()
}

// Matrix is a 3x3 matrix stored column-major: column c holds the
// contribution of input component c of (Y, Cb, Cr) to (R, G, B).
type Matrix [9]float64

// Identity is the 3x3 identity matrix.
var Identity = Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}

// At returns the element at row r, column c.
func (m Matrix) At(r, c int) float64 {
	return m[c*3+r]
}

// Apply multiplies m by v.
func (m Matrix) Apply(v [3]float64) [3]float64 {
	var out [3]float64
	for r := 0; r < 3; r++ {
		out[r] = m.At(r, 0)*v[0] + m.At(r, 1)*v[1] + m.At(r, 2)*v[2]
	}
	return out
}

var baseMatrices = map[Encoding]Matrix{
	EncodingNone:    Identity,
	EncodingRec601:  {1.0000, 1.0000, 1.0000, 0.0000, -0.3441, 1.7720, 1.4020, -0.7141, 0.0000},
	EncodingRec709:  {1.0000, 1.0000, 1.0000, 0.0000, -0.1873, 1.8856, 1.5748, -0.4681, 0.0000},
	EncodingRec2020: {1.0000, 1.0000, 1.0000, 0.0000, -0.1646, 1.8814, 1.4746, -0.5714, 0.0000},
}

// Limited range scale factors for the luma and chroma columns.
const (
	LumaScale   = 255.0 / 219.0
	ChromaScale = 255.0 / 224.0
)

// DeriveMatrix returns the YUV to RGB matrix and the luma offset (in 8-bit
// code values) for cs. Unknown encodings fall back to the identity.
func DeriveMatrix(cs ColorSpace) (Matrix, float64) {
	m, ok := baseMatrices[cs.Encoding]
	if !ok {
		m = Identity
	}
	if cs.Range != RangeLimited {
		return m, 0
	}
	for i := 0; i < 3; i++ {
		m[i] *= LumaScale
	}
	for i := 3; i < 9; i++ {
		m[i] *= ChromaScale
	}
	return m, 16
}

// Defines returns the shader preprocessor lines carrying the conversion
// for cs: YUV2RGB_MATRIX with nine column-major literals and
// YUV2RGB_Y_OFFSET.
func Defines(cs ColorSpace) []string {
	m, offset := DeriveMatrix(cs)
	coeffs := make([]string, len(m))
	for i, v := range m {
		coeffs[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return []string{
		"#define YUV2RGB_MATRIX " + strings.Join(coeffs, ", "),
		"#define YUV2RGB_Y_OFFSET " + strconv.FormatFloat(offset, 'f', 1, 64),
	}
}
