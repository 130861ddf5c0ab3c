// Package shard implements the consistent-hash ring and the sharded
// collection composition of spec.md §4.6.
package shard

import (
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
)

// point is one virtual-node position on the ring.
type point struct {
	hash    uint64
	shardID string
}

// Router maintains a consistent-hash ring over a set of shards, each
// represented by virtual_nodes_per_shard * weight points (shard_count *
// virtual_nodes_per_shard in total at weight 1). Routing key is the vector
// id.
type Router struct {
	mu     sync.RWMutex
	points []point
	counts map[string]int // observed vector counts per shard, for rebalance advice
	weight map[string]int
	vnodes int
}

// NewRouter creates a router with virtualNodesPerShard virtual points per
// shard added via AddShard.
func NewRouter(virtualNodesPerShard int) *Router {
	if virtualNodesPerShard <= 0 {
		virtualNodesPerShard = 1
	}
	return &Router{
		counts: make(map[string]int),
		weight: make(map[string]int),
		vnodes: virtualNodesPerShard,
	}
}

func hashKey(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// AddShard registers shardID with the ring, adding weight*vnodes virtual
// points. Existing vectors are not automatically migrated (spec.md §4.6).
func (r *Router) AddShard(shardID string, weight int) {
	if weight <= 0 {
		weight = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.weight[shardID] = weight
	n := r.vnodes * weight
	for i := 0; i < n; i++ {
		key := shardID + "#" + strconv.Itoa(i)
		r.points = append(r.points, point{hash: hashKey(key), shardID: shardID})
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i].hash < r.points[j].hash })
	if _, ok := r.counts[shardID]; !ok {
		r.counts[shardID] = 0
	}
}

// RemoveShard removes shardID's points from the ring.
func (r *Router) RemoveShard(shardID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	filtered := r.points[:0]
	for _, p := range r.points {
		if p.shardID != shardID {
			filtered = append(filtered, p)
		}
	}
	r.points = filtered
	delete(r.weight, shardID)
	delete(r.counts, shardID)
}

// RouteVector deterministically maps id to its owning shard. Deterministic
// across process restarts given the same shard set and weights (spec.md §8
// invariant 5), since the ring is rebuilt identically from the same inputs
// and hashKey is a pure function.
func (r *Router) RouteVector(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return "", false
	}
	h := hashKey(id)
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if i == len(r.points) {
		i = 0
	}
	return r.points[i].shardID, true
}

// RouteSearch returns the shards to fan a query out to: shardKeys if
// provided (a caller-supplied subset), otherwise every shard.
func (r *Router) RouteSearch(shardKeys []string) []string {
	if len(shardKeys) > 0 {
		return shardKeys
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.weight))
	out := make([]string, 0, len(r.weight))
	for _, p := range r.points {
		if !seen[p.shardID] {
			seen[p.shardID] = true
			out = append(out, p.shardID)
		}
	}
	return out
}

// ObserveCount records the current vector count for a shard, used by
// NeedsRebalancing.
func (r *Router) ObserveCount(shardID string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[shardID] = count
}

// NeedsRebalancing reports imbalance using max/avg - 1 > threshold
// (spec.md §3's shard ring definition). Rebalance is advised, never
// automatic.
func (r *Router) NeedsRebalancing(threshold float64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.counts) == 0 {
		return false
	}
	var total, max int
	for _, c := range r.counts {
		total += c
		if c > max {
			max = c
		}
	}
	avg := float64(total) / float64(len(r.counts))
	if avg == 0 {
		return false
	}
	return float64(max)/avg-1 > threshold
}

// ShardIDs returns the set of shard ids currently on the ring.
func (r *Router) ShardIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.weight))
	for id := range r.weight {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
