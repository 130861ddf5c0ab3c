package hybrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantari/vecengine/pkg/vecmodel"
)

func dense() []vecmodel.SearchResult {
	return []vecmodel.SearchResult{
		{ID: "d1", Score: 0.9},
		{ID: "d2", Score: 0.8},
		{ID: "d3", Score: 0.7},
	}
}

func sparseList() []vecmodel.SearchResult {
	return []vecmodel.SearchResult{
		{ID: "d2", Score: 0.85},
		{ID: "d1", Score: 0.75},
		{ID: "d4", Score: 0.65},
	}
}

// Scenario S4: hybrid fusion.
func TestFuseRRFScenarioS4(t *testing.T) {
	res := Fuse(Request{Dense: dense(), Sparse: sparseList(), Alpha: 0.7, Algorithm: RRF, FinalK: 2})
	require.Len(t, res, 2)

	top2 := map[string]bool{res[0].ID: true, res[1].ID: true}
	assert.True(t, top2["d1"])
	assert.True(t, top2["d2"])
	assert.False(t, top2["d3"])
	assert.False(t, top2["d4"])
}

// Invariant 9: alpha=1.0 equals dense ranking.
func TestAlphaOneEqualsDenseRanking(t *testing.T) {
	res := Fuse(Request{Dense: dense(), Sparse: sparseList(), Alpha: 1.0, Algorithm: RRF, FinalK: 3})
	require.Len(t, res, 3)
	assert.Equal(t, []string{"d1", "d2", "d3"}, []string{res[0].ID, res[1].ID, res[2].ID})
}

// Invariant 9: alpha=0.0 equals sparse ranking.
func TestAlphaZeroEqualsSparseRanking(t *testing.T) {
	res := Fuse(Request{Dense: dense(), Sparse: sparseList(), Alpha: 0.0, Algorithm: RRF, FinalK: 3})
	require.Len(t, res, 3)
	assert.Equal(t, []string{"d2", "d1", "d4"}, []string{res[0].ID, res[1].ID, res[2].ID})
}

// Invariant 9: RRF with either list empty equals the other ranking.
func TestRRFEmptySparseEqualsDense(t *testing.T) {
	res := Fuse(Request{Dense: dense(), Sparse: nil, Alpha: 0.5, Algorithm: RRF, FinalK: 3})
	require.Len(t, res, 3)
	assert.Equal(t, []string{"d1", "d2", "d3"}, []string{res[0].ID, res[1].ID, res[2].ID})
}

func TestRRFEmptyDenseEqualsSparse(t *testing.T) {
	res := Fuse(Request{Dense: nil, Sparse: sparseList(), Alpha: 0.5, Algorithm: RRF, FinalK: 3})
	require.Len(t, res, 3)
	assert.Equal(t, []string{"d2", "d1", "d4"}, []string{res[0].ID, res[1].ID, res[2].ID})
}

func TestWeightedCombination(t *testing.T) {
	res := Fuse(Request{Dense: dense(), Sparse: sparseList(), Alpha: 0.5, Algorithm: Weighted, FinalK: 10})
	require.NotEmpty(t, res)
	// d1: 0.5*0.9 + 0.5*0.75 = 0.825; d2: 0.5*0.8+0.5*0.85=0.825; both top
	assert.Contains(t, []string{"d1", "d2"}, res[0].ID)
}

func TestAlphaBlendNormalizes(t *testing.T) {
	res := Fuse(Request{Dense: dense(), Sparse: sparseList(), Alpha: 0.5, Algorithm: AlphaBlend, FinalK: 10})
	require.NotEmpty(t, res)
}
