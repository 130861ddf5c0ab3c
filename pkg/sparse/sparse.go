// Package sparse implements the inverted postings index used for sparse
// (lexical) vectors, per spec.md §4.5. Sparse query scoring is cosine of
// sparse vectors: dot product over shared indices divided by the product
// of stored L2 norms.
package sparse

import (
	"math"
	"sort"
	"sync"

	"github.com/vantari/vecengine/pkg/vecmodel"
)

type posting struct {
	vectorID string
	weight   float32
}

// Index is a thread-safe inverted index of term-id -> postings, with a
// per-vector L2 norm cache so repeated queries don't recompute it.
type Index struct {
	mu       sync.RWMutex
	postings map[uint32][]posting
	norms    map[string]float64
	vectors  map[string]*vecmodel.SparseVector
}

// New creates an empty sparse index.
func New() *Index {
	return &Index{
		postings: make(map[uint32][]posting),
		norms:    make(map[string]float64),
		vectors:  make(map[string]*vecmodel.SparseVector),
	}
}

// Upsert indexes (or replaces) the sparse vector for id.
func (idx *Index) Upsert(id string, sv *vecmodel.SparseVector) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.vectors[id]; exists {
		idx.removeLocked(id)
	}

	idx.vectors[id] = sv
	var sumSq float64
	for i, termID := range sv.Indices {
		w := sv.Values[i]
		idx.postings[termID] = append(idx.postings[termID], posting{vectorID: id, weight: w})
		sumSq += float64(w) * float64(w)
	}
	idx.norms[id] = math.Sqrt(sumSq)
}

// Delete removes id from the index.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) {
	sv, ok := idx.vectors[id]
	if !ok {
		return
	}
	for _, termID := range sv.Indices {
		list := idx.postings[termID]
		filtered := list[:0]
		for _, p := range list {
			if p.vectorID != id {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(idx.postings, termID)
		} else {
			idx.postings[termID] = filtered
		}
	}
	delete(idx.vectors, id)
	delete(idx.norms, id)
}

// Search returns the top-k vectors by cosine similarity of sparse vectors
// against the query.
func (idx *Index) Search(query *vecmodel.SparseVector, k int) []vecmodel.SearchResult {
	if k <= 0 || query == nil {
		return []vecmodel.SearchResult{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var queryNorm float64
	for _, v := range query.Values {
		queryNorm += float64(v) * float64(v)
	}
	queryNorm = math.Sqrt(queryNorm)
	if queryNorm == 0 {
		return []vecmodel.SearchResult{}
	}

	dot := make(map[string]float64)
	for i, termID := range query.Indices {
		qw := float64(query.Values[i])
		for _, p := range idx.postings[termID] {
			dot[p.vectorID] += qw * float64(p.weight)
		}
	}

	results := make([]vecmodel.SearchResult, 0, len(dot))
	for id, d := range dot {
		norm := idx.norms[id]
		if norm == 0 {
			continue
		}
		results = append(results, vecmodel.SearchResult{ID: id, Score: d / (queryNorm * norm)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Len returns the number of indexed sparse vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}
