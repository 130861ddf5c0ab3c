// Package hnsw implements the Hierarchical Navigable Small World graph
// used for approximate nearest neighbor search (spec.md §4.4).
//
// Nodes are addressed internally by a dense uint32 arena index rather than
// by their string id, so the same adjacency layout this package builds can
// be mirrored byte-for-byte into the GPU node/connection buffers described
// in spec.md §4.7 (see pkg/gpu) — "arenas referenced by u32 indices" per
// spec.md §9's design notes on the GPU path, applied uniformly here too.
//
// Example:
//
//	idx := hnsw.New(128, vmath.Cosine, vecmodel.DefaultHNSWConfig())
//	idx.Insert("doc-1", embedding)
//	results, err := idx.Search(ctx, query, 10)
package hnsw

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
	"github.com/vantari/vecengine/pkg/vmath"
)

// node is one HNSW graph node, addressed by its arena index. connections[l]
// holds arena indices of neighbors at level l; len(connections) == level+1.
type node struct {
	id          string
	vector      []float32
	level       int
	connections [][]uint32
	mu          sync.RWMutex
	tombstoned  bool
}

// Index is a concurrency-safe HNSW graph for one collection. Structural
// mutation (Insert) is serialized by idxMu; Search takes a read lock for
// the duration of one query so it observes a consistent entry point
// (spec.md §5's "read-side epoch" requirement, implemented here as a plain
// RWMutex rather than copy-on-write, which is sufficient given insert is
// already globally serialized).
type Index struct {
	dimension int
	metric    vmath.Metric
	config    vecmodel.HNSWConfig
	rng       *rand.Rand
	rngMu     sync.Mutex

	idxMu      sync.RWMutex
	nodes      []*node // arena; index == arena id
	byID       map[string]uint32
	freeList   []uint32
	entryPoint uint32
	hasEntry   bool
	maxLevel   int
}

// New constructs an empty HNSW index for the given dimension and metric.
// A zero Seed draws from the global math/rand source; a non-zero Seed
// makes level sampling (and therefore graph shape) reproducible across
// runs (spec.md §4.4: "Seeded RNG for reproducible builds when seed is
// set").
func New(dimension int, metric vmath.Metric, config vecmodel.HNSWConfig) *Index {
	if config.M <= 0 {
		config = vecmodel.DefaultHNSWConfig()
	}
	var src rand.Source
	if config.Seed != 0 {
		src = rand.NewSource(config.Seed)
	} else {
		src = rand.NewSource(rand.Int63())
	}
	return &Index{
		dimension: dimension,
		metric:    metric,
		config:    config,
		rng:       rand.New(src),
		byID:      make(map[string]uint32),
	}
}

func (idx *Index) levelMultiplier() float64 {
	if idx.config.M <= 1 {
		return 1
	}
	return 1.0 / math.Log(float64(idx.config.M))
}

func (idx *Index) randomLevel() int {
	idx.rngMu.Lock()
	r := idx.rng.Float64()
	idx.rngMu.Unlock()
	// avoid log(0)
	if r <= 0 {
		r = 1e-12
	}
	return int(math.Floor(-math.Log(r) * idx.levelMultiplier()))
}

func (idx *Index) maxConnections(level int) int {
	if level == 0 {
		return 2 * idx.config.M
	}
	return idx.config.M
}

func (idx *Index) score(query, candidate []float32) float64 {
	return vmath.Score(idx.metric, query, candidate)
}

// Insert adds vec under id. A duplicate id is treated as an update: the
// old node is removed (tombstoned, stripped from its neighbors' adjacency
// lists, and its arena slot freed) and the new node reuses that slot,
// matching spec.md §4.4's
// "duplicate id -> treat as update (delete+insert at ingest boundary)"
// guidance applied at the index boundary for callers that insert directly.
func (idx *Index) Insert(id string, vec []float32) *vecerr.Error {
	if len(vec) != idx.dimension {
		return vecerr.Newf(vecerr.DimensionMismatch, "expected dimension %d, got %d", idx.dimension, len(vec)).WithID(id)
	}
	if !vmath.Finite(vec) {
		return vecerr.New(vecerr.InvalidVector, "vector contains non-finite components").WithID(id)
	}

	idx.idxMu.Lock()
	defer idx.idxMu.Unlock()

	if existing, ok := idx.byID[id]; ok {
		idx.removeLocked(existing)
	}

	level := idx.randomLevel()
	n := &node{
		id:          id,
		vector:      vec,
		level:       level,
		connections: make([][]uint32, level+1),
	}
	for l := range n.connections {
		n.connections[l] = make([]uint32, 0, idx.maxConnections(l))
	}

	var arenaID uint32
	if len(idx.freeList) > 0 {
		arenaID = idx.freeList[len(idx.freeList)-1]
		idx.freeList = idx.freeList[:len(idx.freeList)-1]
		idx.nodes[arenaID] = n
	} else {
		arenaID = uint32(len(idx.nodes))
		idx.nodes = append(idx.nodes, n)
	}
	idx.byID[id] = arenaID

	if !idx.hasEntry {
		idx.entryPoint = arenaID
		idx.hasEntry = true
		idx.maxLevel = level
		return nil
	}

	ep := idx.entryPoint
	epLevel := idx.nodes[ep].level

	for l := epLevel; l > level; l-- {
		ep = idx.greedyDescend(vec, ep, l)
	}

	top := level
	if epLevel < top {
		top = epLevel
	}
	for l := top; l >= 0; l-- {
		candidates := idx.searchLayer(vec, ep, maxInt(idx.config.EfConstruction, idx.maxConnections(l)), l)
		selected := idx.selectNeighborsHeuristic(vec, candidates, idx.maxConnections(l))
		n.connections[l] = selected

		for _, neighborArena := range selected {
			idx.addBidirectional(neighborArena, arenaID, l)
		}
		if len(candidates) > 0 {
			ep = candidates[0]
		}
	}

	if level > idx.maxLevel {
		idx.entryPoint = arenaID
		idx.maxLevel = level
	}
	return nil
}

// addBidirectional adds arenaID as a neighbor of `of` at level l, shrinking
// `of`'s neighbor list with the heuristic rule if it would exceed capacity
// (spec.md §4.4 step 4).
func (idx *Index) addBidirectional(of, arenaID uint32, l int) {
	neighbor := idx.nodes[of]
	neighbor.mu.Lock()
	defer neighbor.mu.Unlock()
	if l >= len(neighbor.connections) {
		return
	}
	cap := idx.maxConnections(l)
	if len(neighbor.connections[l]) < cap {
		neighbor.connections[l] = append(neighbor.connections[l], arenaID)
		return
	}
	all := append(append([]uint32{}, neighbor.connections[l]...), arenaID)
	neighbor.connections[l] = idx.selectNeighborsHeuristic(neighbor.vector, all, cap)
}

// Delete tombstones id: the node is removed from the id index and from its
// neighbors' adjacency lists, but is *not* rewired (spec.md §4.3: "The
// HNSW graph is not rewired on delete in the default mode (tombstoned); a
// rebuild is required to reclaim edges").
func (idx *Index) Delete(id string) {
	idx.idxMu.Lock()
	defer idx.idxMu.Unlock()
	arena, ok := idx.byID[id]
	if !ok {
		return
	}
	idx.removeLocked(arena)
}

func (idx *Index) removeLocked(arena uint32) {
	n := idx.nodes[arena]
	n.tombstoned = true
	delete(idx.byID, n.id)

	for l := 0; l <= n.level; l++ {
		for _, neighborArena := range n.connections[l] {
			neighbor := idx.nodes[neighborArena]
			neighbor.mu.Lock()
			if l < len(neighbor.connections) {
				filtered := neighbor.connections[l][:0]
				for _, a := range neighbor.connections[l] {
					if a != arena {
						filtered = append(filtered, a)
					}
				}
				neighbor.connections[l] = filtered
			}
			neighbor.mu.Unlock()
		}
	}
	idx.freeList = append(idx.freeList, arena)

	if idx.hasEntry && idx.entryPoint == arena {
		idx.hasEntry = false
		idx.maxLevel = 0
		for i, nn := range idx.nodes {
			if nn == nil || nn.tombstoned {
				continue
			}
			if !idx.hasEntry || nn.level > idx.maxLevel {
				idx.entryPoint = uint32(i)
				idx.maxLevel = nn.level
				idx.hasEntry = true
			}
		}
	}
}

// TombstoneRatio reports the fraction of arena slots that are tombstoned,
// surfaced so a caller can decide when to force a rebuild (spec.md §9's
// open question on recall decay after many deletes is left unspecified;
// this is the hook a caller needs to make that call themselves).
func (idx *Index) TombstoneRatio() float64 {
	idx.idxMu.RLock()
	defer idx.idxMu.RUnlock()
	if len(idx.nodes) == 0 {
		return 0
	}
	dead := 0
	for _, n := range idx.nodes {
		if n == nil || n.tombstoned {
			dead++
		}
	}
	return float64(dead) / float64(len(idx.nodes))
}

// SearchResult is one ranked result from Search.
type SearchResult struct {
	ID    string
	Score float64
}

// Search returns the top-k nearest neighbors of query by the index's
// metric. An empty index returns ([], nil) without error (spec.md §4.4).
// k == 0 also returns an empty slice.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]SearchResult, *vecerr.Error) {
	return idx.SearchEf(ctx, query, k, idx.config.EfSearch)
}

// SearchEf is Search with an explicit ef_search override (spec.md §6:
// search_dense(..., ef_search?)).
func (idx *Index) SearchEf(ctx context.Context, query []float32, k, efSearch int) ([]SearchResult, *vecerr.Error) {
	if len(query) != idx.dimension {
		return nil, vecerr.Newf(vecerr.DimensionMismatch, "expected dimension %d, got %d", idx.dimension, len(query))
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	idx.idxMu.RLock()
	defer idx.idxMu.RUnlock()

	if !idx.hasEntry {
		return []SearchResult{}, nil
	}

	ep := idx.entryPoint
	for l := idx.maxLevel; l > 0; l-- {
		ep = idx.greedyDescend(query, ep, l)
	}

	ef := efSearch
	if ef < k {
		ef = k
	}
	candidates := idx.searchLayer(query, ep, ef, 0)

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if ctx != nil && ctx.Err() != nil {
			break
		}
		n := idx.nodes[c]
		if n == nil || n.tombstoned {
			continue
		}
		results = append(results, SearchResult{ID: n.id, Score: idx.score(query, n.vector)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID // deterministic tie-break (spec.md §4.4)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Size returns the number of live (non-tombstoned) nodes.
func (idx *Index) Size() int {
	idx.idxMu.RLock()
	defer idx.idxMu.RUnlock()
	return len(idx.byID)
}

// greedyDescend performs one layer's greedy walk from entry toward query,
// returning the closest node found (spec.md §4.4 step 2).
func (idx *Index) greedyDescend(query []float32, entry uint32, level int) uint32 {
	current := entry
	currentScore := idx.score(query, idx.nodes[current].vector)

	for {
		changed := false
		n := idx.nodes[current]
		n.mu.RLock()
		var neighbors []uint32
		if level < len(n.connections) {
			neighbors = append(neighbors, n.connections[level]...)
		}
		n.mu.RUnlock()

		for _, neighborArena := range neighbors {
			nb := idx.nodes[neighborArena]
			if nb == nil || nb.tombstoned {
				continue
			}
			s := idx.score(query, nb.vector)
			if s > currentScore {
				current = neighborArena
				currentScore = s
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return current
}

// searchLayer runs the ef-beam search at one level and returns up to ef
// candidate arena ids, best score first (spec.md §4.4 step 3 / §4.4
// Search step 2).
func (idx *Index) searchLayer(query []float32, entry uint32, ef, level int) []uint32 {
	visited := bitset.New(uint(len(idx.nodes)))
	visited.Set(uint(entry))

	candidates := &maxHeap{} // best-first pop (max-heap on score)
	results := &minHeap{}    // worst-first at top, so we can evict it

	entryScore := idx.score(query, idx.nodes[entry].vector)
	heap.Push(candidates, item{arena: entry, score: entryScore})
	heap.Push(results, item{arena: entry, score: entryScore})

	for candidates.Len() > 0 {
		best := heap.Pop(candidates).(item)

		if results.Len() >= ef {
			worst := (*results)[0]
			if best.score < worst.score {
				break
			}
		}

		n := idx.nodes[best.arena]
		if n == nil {
			continue
		}
		n.mu.RLock()
		var neighbors []uint32
		if level < len(n.connections) {
			neighbors = append(neighbors, n.connections[level]...)
		}
		n.mu.RUnlock()

		for _, neighborArena := range neighbors {
			if visited.Test(uint(neighborArena)) {
				continue
			}
			visited.Set(uint(neighborArena))

			nb := idx.nodes[neighborArena]
			if nb == nil || nb.tombstoned {
				continue
			}
			s := idx.score(query, nb.vector)

			if results.Len() < ef || s > (*results)[0].score {
				heap.Push(candidates, item{arena: neighborArena, score: s})
				heap.Push(results, item{arena: neighborArena, score: s})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]uint32, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(item).arena
	}
	return out
}

// selectNeighborsHeuristic implements the "heuristic" neighbor-selection
// rule of spec.md §4.4 step 3: sort candidates by distance to the query,
// then greedily keep a candidate only if it is closer to the query than it
// is to every neighbor already accepted (pruning), falling back to plain
// closest-M once the candidate pool can't fill M under that rule.
func (idx *Index) selectNeighborsHeuristic(query []float32, candidates []uint32, m int) []uint32 {
	if len(candidates) <= m {
		out := make([]uint32, len(candidates))
		copy(out, candidates)
		return out
	}

	type scored struct {
		arena uint32
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{arena: c, score: idx.score(query, idx.nodes[c].vector)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	selected := make([]uint32, 0, m)
	for _, cand := range ranked {
		if len(selected) >= m {
			break
		}
		candVec := idx.nodes[cand.arena].vector
		keep := true
		for _, s := range selected {
			if idx.score(candVec, idx.nodes[s].vector) > cand.score {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, cand.arena)
		}
	}

	// Pruning may reject candidates even when fewer than m were selected;
	// fill remaining slots with the next-best unselected candidates so the
	// cap is still used (plain closest-M fallback).
	if len(selected) < m {
		chosen := make(map[uint32]bool, len(selected))
		for _, s := range selected {
			chosen[s] = true
		}
		for _, cand := range ranked {
			if len(selected) >= m {
				break
			}
			if !chosen[cand.arena] {
				selected = append(selected, cand.arena)
				chosen[cand.arena] = true
			}
		}
	}
	return selected
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// item is one entry in a search-layer heap: an arena id and its score
// against the current query.
type item struct {
	arena uint32
	score float64
}

// maxHeap pops the highest-score item first (used for the candidate
// frontier: always expand the most promising unexplored node).
type maxHeap []item

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].score > h[j].score }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(item)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// minHeap pops the lowest-score item first (used for the result set so the
// worst-scoring member is the one evicted when the set exceeds ef).
type minHeap []item

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].score < h[j].score }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(item)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
