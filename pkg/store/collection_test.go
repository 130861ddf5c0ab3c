package store

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
	"github.com/vantari/vecengine/pkg/vmath"
)

func defaultConfig(dim int) vecmodel.CollectionConfig {
	return vecmodel.CollectionConfig{
		Dimension: dim,
		Metric:    vmath.Cosine,
		HNSW:      vecmodel.DefaultHNSWConfig(),
	}
}

func TestInsertAndGet(t *testing.T) {
	c, err := New("t1", defaultConfig(4))
	require.Nil(t, err)

	v := vecmodel.Vector{ID: "a", Data: []float32{1, 0, 0, 0}}
	require.Nil(t, c.Insert(v))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, v.Data, got.Data)
}

func TestInsertDimensionMismatch(t *testing.T) {
	c, _ := New("t1", defaultConfig(4))
	v := vecmodel.Vector{ID: "a", Data: []float32{1, 0}}
	err := c.Insert(v)
	require.NotNil(t, err)
	assert.Equal(t, vecerr.DimensionMismatch, err.Kind)
}

func TestUpsertBatchPartialSuccess(t *testing.T) {
	c, _ := New("t1", defaultConfig(2))
	vectors := []vecmodel.Vector{
		{ID: "a", Data: []float32{1, 0}},
		{ID: "bad", Data: []float32{1}}, // wrong dimension
		{ID: "b", Data: []float32{0, 1}},
	}
	outcomes := c.UpsertBatch(vectors)
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.True(t, outcomes[2].Success)
	assert.Equal(t, 2, c.Len())
}

func TestDeleteRemovesFromStorageAndSearch(t *testing.T) {
	c, _ := New("t1", defaultConfig(2))
	require.Nil(t, c.Insert(vecmodel.Vector{ID: "a", Data: []float32{1, 0}}))
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	res, err := c.Search(context.Background(), []float32{1, 0}, 5)
	require.Nil(t, err)
	assert.Empty(t, res)
}

// Scenario S2: quantization round-trip.
func TestQuantizationRoundTrip(t *testing.T) {
	cfg := defaultConfig(128)
	cfg.Quantization = vecmodel.QuantizationSQ8
	c, err := New("t2", cfg)
	require.Nil(t, err)

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		v := make([]float32, 128)
		var mn, mx float32
		for j := range v {
			v[j] = r.Float32()*20 - 10
			if j == 0 || v[j] < mn {
				mn = v[j]
			}
			if j == 0 || v[j] > mx {
				mx = v[j]
			}
		}
		id := string(rune('a' + i%26))
		require.Nil(t, c.Insert(vecmodel.Vector{ID: id + string(rune(i)), Data: v}))

		got, ok := c.Get(id + string(rune(i)))
		require.True(t, ok)

		tolerance := (mx - mn) / 255.0
		for k := range v {
			diff := v[k] - got.Data[k]
			if diff < 0 {
				diff = -diff
			}
			assert.LessOrEqual(t, diff, tolerance+1e-3)
		}
	}
}

func TestRequantizeIsIdempotent(t *testing.T) {
	cfg := defaultConfig(4)
	cfg.Quantization = vecmodel.QuantizationSQ8
	c, _ := New("t2", cfg)
	require.Nil(t, c.Insert(vecmodel.Vector{ID: "a", Data: []float32{1, 2, 3, 4}}))

	before, _ := c.Get("a")
	c.Requantize()
	after, _ := c.Get("a")
	assert.Equal(t, before.Data, after.Data)
}

func TestSetEfSearch(t *testing.T) {
	c, _ := New("t1", defaultConfig(2))
	c.SetEfSearch(500)
	assert.Equal(t, 500, c.Config().HNSW.EfSearch)
}

func TestIndexingStatusTransitions(t *testing.T) {
	c, _ := New("t1", defaultConfig(2))
	assert.Equal(t, vecmodel.StatusCreated, c.Metadata().IndexingStatus)

	require.Nil(t, c.Transition(vecmodel.StatusProcessing, 10))
	err := c.Transition(vecmodel.StatusCompleted, 0)
	require.Nil(t, err)

	// no direct created -> completed
	c2, _ := New("t2", defaultConfig(2))
	badErr := c2.Transition(vecmodel.StatusCompleted, 0)
	require.NotNil(t, badErr)
}
