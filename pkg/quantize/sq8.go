// Package quantize implements scalar 8-bit quantization (SQ-8) of f32
// vectors, per spec.md §4.2. Each vector is encoded independently: a
// per-vector (min, scale) pair plus one byte per dimension, bringing
// memory usage to roughly 1/4 of the raw f32 representation (4 bytes per
// dimension down to ~1.03 bytes: 1 byte + amortized 8 bytes of header).
//
// Example:
//
//	enc := quantize.Encode(vec)
//	approx := enc.Decode()
//	// max_i |vec[i] - approx[i]| <= (max(vec) - min(vec)) / 255
package quantize

import "math"

// Encoded holds the SQ-8 representation of a single vector.
type Encoded struct {
	Min   float32
	Scale float32
	Bytes []byte
}

// Encode quantizes v to SQ-8. A constant vector (max == min) encodes with
// Scale == 0 and every byte 0; Decode reconstructs the constant exactly.
func Encode(v []float32) Encoded {
	if len(v) == 0 {
		return Encoded{}
	}

	mn, mx := v[0], v[0]
	for _, x := range v[1:] {
		if x < mn {
			mn = x
		}
		if x > mx {
			mx = x
		}
	}

	scale := (mx - mn) / 255.0
	bytes := make([]byte, len(v))
	if scale == 0 {
		return Encoded{Min: mn, Scale: 0, Bytes: bytes}
	}

	for i, x := range v {
		q := math.Round(float64((x - mn) / scale))
		if q < 0 {
			q = 0
		}
		if q > 255 {
			q = 255
		}
		bytes[i] = byte(q)
	}
	return Encoded{Min: mn, Scale: scale, Bytes: bytes}
}

// Decode reconstructs an approximate f32 vector from the SQ-8 encoding.
func (e Encoded) Decode() []float32 {
	out := make([]float32, len(e.Bytes))
	for i, b := range e.Bytes {
		out[i] = e.Min + e.Scale*float32(b)
	}
	return out
}

// Len reports the number of dimensions encoded.
func (e Encoded) Len() int { return len(e.Bytes) }

// MaxError returns the worst-case per-dimension reconstruction error,
// (max(v)-min(v))/255, i.e. Scale itself — exposed for tests asserting
// spec.md §8 invariant 3.
func (e Encoded) MaxError() float32 {
	return e.Scale
}

// IsSQ8 is a tag interface for backing stores that already hold quantized
// data (idempotence, spec.md §4.2: "Requantize-in-place ... idempotent if
// already sq8"). Requantize does not take it; callers pass the equivalent
// flag as its alreadyQuantized argument.
type IsSQ8 interface {
	AlreadySQ8() bool
}

// Requantize returns the encoding to store for one vector, applying the
// idempotence rule: when alreadyQuantized is true, current is returned
// unchanged; otherwise raw is encoded afresh.
func Requantize(current Encoded, alreadyQuantized bool, raw []float32) Encoded {
	if alreadyQuantized {
		return current
	}
	return Encode(raw)
}
