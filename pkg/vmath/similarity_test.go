package vmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarityBasic(t *testing.T) {
	a := []float32{1, 0, 0, 0}
	b := []float32{1, 0, 0, 0}
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)

	c := []float32{0, 1, 0, 0}
	assert.InDelta(t, 0.0, CosineSimilarity(a, c), 1e-6)
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	assert.Equal(t, 0.0, CosineSimilarity(a, b))
}

func TestEuclideanScoreIdentical(t *testing.T) {
	a := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, EuclideanScore(a, a), 1e-9)
}

// Cross-precision check on random inputs of dimension <= 4096: the
// float32-native CosineF32/DotF32 agree with the float64-accumulated
// CosineSimilarity/DotProduct to within 1e-3 relative error.
func TestDistanceKernelsAgreeAcrossPrecision(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		dim := 1 + r.Intn(4096)
		a := randVec(r, dim)
		b := randVec(r, dim)

		cos64 := CosineSimilarity(a, b)
		cos32 := float64(CosineF32(a, b))
		if math.Abs(cos64) > 1e-6 {
			require.InEpsilon(t, cos64, cos32, 1e-3)
		}

		dot64 := DotProduct(a, b)
		dot32 := float64(DotF32(a, b))
		if math.Abs(dot64) > 1e-3 {
			require.InEpsilon(t, dot64, dot32, 1e-3)
		}
	}
}

func TestNormalizeProducesUnitVector(t *testing.T) {
	v := []float32{3, 4}
	n := Normalize(v)
	assert.InDelta(t, float32(0.6), n[0], 1e-6)
	assert.InDelta(t, float32(0.8), n[1], 1e-6)
	// original untouched
	assert.Equal(t, float32(3), v[0])
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite([]float32{1, 2, 3}))
	assert.False(t, Finite([]float32{1, float32(math.NaN())}))
	assert.False(t, Finite([]float32{float32(math.Inf(1))}))
}

func randVec(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.Float64()*2 - 1)
	}
	return v
}
