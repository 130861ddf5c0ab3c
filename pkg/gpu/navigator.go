package gpu

import (
	"container/heap"
	"sort"

	"github.com/vantari/vecengine/pkg/vmath"
)

// KernelParams is the uniform struct passed to the navigation kernel
// (spec.md §4.7): dimension, k, ef_search, max_connections, node_count and
// metric_type are read-only for the whole dispatch.
type KernelParams struct {
	Dimension      int
	K              int
	EfSearch       int
	MaxConnections int
	NodeCount      int
	Metric         vmath.Metric
}

// candScore pairs an arena id with a score, used by both frontier and
// result heaps during the kernel's graph walk.
type candScore struct {
	id    uint32
	score float64
}

type maxCandHeap []candScore

func (h maxCandHeap) Len() int            { return len(h) }
func (h maxCandHeap) Less(i, j int) bool  { return h[i].score > h[j].score }
func (h maxCandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxCandHeap) Push(x interface{}) { *h = append(*h, x.(candScore)) }
func (h *maxCandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

type minCandHeap []candScore

func (h minCandHeap) Len() int            { return len(h) }
func (h minCandHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minCandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minCandHeap) Push(x interface{}) { *h = append(*h, x.(candScore)) }
func (h *minCandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Navigate implements the navigation kernel's graph-traversal stage,
// reading directly from the arena buffers and writing only a final
// top-k read-back (spec.md §4.7: "a single host read-back of the final
// top-k" — no per-step transfer back to the host).
//
// This is the softNavigator referenced in SPEC_FULL.md's resolution of
// Open Question (ii): it runs as a plain Go loop today, at the exact
// seam (Backend.Navigate) where a real compute-shader dispatch would
// plug in without changing any caller.
func Navigate(params KernelParams, nodes *NodeBuffer, vectors *VectorBuffer, conns *ConnectionBuffer, entry uint32, hasEntry bool, query []float32, isLive func(uint32) bool) []candScore {
	if !hasEntry || params.NodeCount == 0 || params.K <= 0 {
		return nil
	}

	score := func(id uint32) float64 {
		rec := nodes.Get(id)
		return vmath.Score(params.Metric, query, vectors.At(rec.VectorRef))
	}

	// The device-resident graph mirrors only the base layer (spec.md
	// §4.7's kernel operates on the flattened adjacency arena); the
	// greedy multi-level descend the host HNSW index performs is not
	// reproduced here, so the beam starts directly from entry.
	current := entry
	currentScore := score(current)

	visited := make(map[uint32]bool)
	visited[current] = true

	candidates := &maxCandHeap{{id: current, score: currentScore}}
	heap.Init(candidates)
	results := &minCandHeap{}
	if isLive == nil || isLive(current) {
		heap.Push(results, candScore{id: current, score: currentScore})
	}

	ef := params.EfSearch
	if ef < params.K {
		ef = params.K
	}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candScore)
		if results.Len() >= ef {
			worst := (*results)[0]
			if c.score < worst.score {
				break
			}
		}
		rec := nodes.Get(c.id)
		for _, nb := range neighborsAt(rec, conns) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			s := score(nb)
			heap.Push(candidates, candScore{id: nb, score: s})
			if isLive == nil || isLive(nb) {
				heap.Push(results, candScore{id: nb, score: s})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candScore, results.Len())
	copy(out, *results)
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	if len(out) > params.K {
		out = out[:params.K]
	}
	return out
}

func neighborsAt(rec NodeRecord, conns *ConnectionBuffer) []uint32 {
	out := make([]uint32, 0, rec.ConnectionCount)
	n := rec.ConnectionCount
	if n > MaxConnectionsPerNode {
		n = MaxConnectionsPerNode
	}
	out = append(out, rec.Connections[:n]...)
	out = append(out, conns.Overflow(rec.ID)...)
	return out
}
