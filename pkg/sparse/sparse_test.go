package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantari/vecengine/pkg/vecmodel"
)

func TestSparseSearchCosine(t *testing.T) {
	idx := New()
	idx.Upsert("d1", &vecmodel.SparseVector{Indices: []uint32{1, 2}, Values: []float32{1, 1}})
	idx.Upsert("d2", &vecmodel.SparseVector{Indices: []uint32{1}, Values: []float32{1}})
	idx.Upsert("d3", &vecmodel.SparseVector{Indices: []uint32{3}, Values: []float32{1}})

	res := idx.Search(&vecmodel.SparseVector{Indices: []uint32{1, 2}, Values: []float32{1, 1}}, 10)
	require.NotEmpty(t, res)
	assert.Equal(t, "d1", res[0].ID)
}

func TestSparseDeleteRemovesPostings(t *testing.T) {
	idx := New()
	idx.Upsert("d1", &vecmodel.SparseVector{Indices: []uint32{1}, Values: []float32{1}})
	idx.Delete("d1")
	res := idx.Search(&vecmodel.SparseVector{Indices: []uint32{1}, Values: []float32{1}}, 10)
	assert.Empty(t, res)
}

func TestSparseUpsertReplaces(t *testing.T) {
	idx := New()
	idx.Upsert("d1", &vecmodel.SparseVector{Indices: []uint32{1}, Values: []float32{1}})
	idx.Upsert("d1", &vecmodel.SparseVector{Indices: []uint32{2}, Values: []float32{1}})
	assert.Equal(t, 1, idx.Len())

	res := idx.Search(&vecmodel.SparseVector{Indices: []uint32{1}, Values: []float32{1}}, 10)
	assert.Empty(t, res)
	res = idx.Search(&vecmodel.SparseVector{Indices: []uint32{2}, Values: []float32{1}}, 10)
	assert.Len(t, res, 1)
}
