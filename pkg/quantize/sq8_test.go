package quantize

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTripWithinTolerance(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 100; trial++ {
		dim := 1 + r.Intn(256)
		v := make([]float32, dim)
		for i := range v {
			v[i] = float32(r.Float64()*200 - 100)
		}

		enc := Encode(v)
		got := enc.Decode()
		require := enc.MaxError()

		var mn, mx float32 = v[0], v[0]
		for _, x := range v {
			if x < mn {
				mn = x
			}
			if x > mx {
				mx = x
			}
		}
		tolerance := (mx - mn) / 255.0
		assert.InDelta(t, float64(tolerance), float64(require), 1e-6)

		for i := range v {
			diff := v[i] - got[i]
			if diff < 0 {
				diff = -diff
			}
			assert.LessOrEqual(t, diff, tolerance+1e-4)
		}
	}
}

func TestEncodeConstantVector(t *testing.T) {
	v := []float32{5, 5, 5, 5}
	enc := Encode(v)
	got := enc.Decode()
	for _, x := range got {
		assert.Equal(t, float32(5), x)
	}
}

func TestRequantizeIdempotent(t *testing.T) {
	v := []float32{1, 2, 3, 4}
	enc := Encode(v)
	again := Requantize(enc, true, v)
	assert.Equal(t, enc, again)
}
