package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteVectorDeterministic(t *testing.T) {
	r1 := NewRouter(8)
	r1.AddShard("s0", 1)
	r1.AddShard("s1", 1)
	r1.AddShard("s2", 1)

	r2 := NewRouter(8)
	r2.AddShard("s0", 1)
	r2.AddShard("s1", 1)
	r2.AddShard("s2", 1)

	for _, id := range []string{"a", "b", "c", "vector-1234", "xyz"} {
		got1, ok1 := r1.RouteVector(id)
		got2, ok2 := r2.RouteVector(id)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, got1, got2)
	}
}

func TestRouteSearchAllShardsOrSubset(t *testing.T) {
	r := NewRouter(4)
	r.AddShard("s0", 1)
	r.AddShard("s1", 1)

	all := r.RouteSearch(nil)
	assert.ElementsMatch(t, []string{"s0", "s1"}, all)

	subset := r.RouteSearch([]string{"s0"})
	assert.Equal(t, []string{"s0"}, subset)
}

func TestNeedsRebalancing(t *testing.T) {
	r := NewRouter(4)
	r.AddShard("s0", 1)
	r.AddShard("s1", 1)
	r.ObserveCount("s0", 100)
	r.ObserveCount("s1", 100)
	assert.False(t, r.NeedsRebalancing(0.2))

	r.ObserveCount("s0", 1000)
	assert.True(t, r.NeedsRebalancing(0.2))
}

func TestRemoveShardDoesNotMigrate(t *testing.T) {
	r := NewRouter(4)
	r.AddShard("s0", 1)
	r.AddShard("s1", 1)
	id := "some-vector"
	before, _ := r.RouteVector(id)
	r.RemoveShard("s1")
	if before == "s1" {
		// removed shard's points gone; routing must land elsewhere now
		after, _ := r.RouteVector(id)
		assert.NotEqual(t, "s1", after)
	}
}
