// Package hybrid combines a dense and a sparse result list into one ranked
// list, per spec.md §4.5. Three algorithms are selectable per request;
// Reciprocal Rank Fusion is the default.
package hybrid

import (
	"sort"

	"github.com/vantari/vecengine/pkg/vecmodel"
)

// Algorithm selects the fusion strategy.
type Algorithm string

const (
	RRF        Algorithm = "rrf"
	Weighted   Algorithm = "weighted"
	AlphaBlend Algorithm = "alpha_blend"
)

// rrfK is the rank-shift constant from spec.md §4.5's RRF formula.
const rrfK = 60

// Request bundles the pre-sized dense/sparse lists and fusion parameters.
type Request struct {
	Dense     []vecmodel.SearchResult
	Sparse    []vecmodel.SearchResult
	Alpha     float64
	Algorithm Algorithm
	FinalK    int
}

// Fuse combines req.Dense and req.Sparse per req.Algorithm and returns the
// top req.FinalK results.
func Fuse(req Request) []vecmodel.SearchResult {
	algo := req.Algorithm
	if algo == "" {
		algo = RRF
	}

	var combined map[string]float64
	switch algo {
	case Weighted:
		combined = fuseWeighted(req.Dense, req.Sparse, req.Alpha)
	case AlphaBlend:
		combined = fuseAlphaBlend(req.Dense, req.Sparse, req.Alpha)
	default:
		combined = fuseRRF(req.Dense, req.Sparse, req.Alpha)
	}

	payloads := make(map[string]vecmodel.Payload, len(combined))
	for _, r := range req.Dense {
		payloads[r.ID] = r.Payload
	}
	for _, r := range req.Sparse {
		if _, ok := payloads[r.ID]; !ok {
			payloads[r.ID] = r.Payload
		}
	}

	out := make([]vecmodel.SearchResult, 0, len(combined))
	for id, score := range combined {
		out = append(out, vecmodel.SearchResult{ID: id, Score: score, Payload: payloads[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	k := req.FinalK
	if k <= 0 || k > len(out) {
		k = len(out)
	}
	return out[:k]
}

func rankOf(list []vecmodel.SearchResult) map[string]int {
	ranks := make(map[string]int, len(list))
	for i, r := range list {
		ranks[r.ID] = i + 1 // 1-based rank
	}
	return ranks
}

// fuseRRF implements spec.md §4.5's RRF: score(d) = α·(1/(K+rank_dense)) +
// (1-α)·(1/(K+rank_sparse)), plus the original scores scaled by α/(1-α).
// With either list empty, the formula degenerates to the other list's
// ranking alone (spec.md §8 invariant 9).
func fuseRRF(dense, sparse []vecmodel.SearchResult, alpha float64) map[string]float64 {
	denseRank := rankOf(dense)
	sparseRank := rankOf(sparse)
	denseScore := scoreOf(dense)
	sparseScore := scoreOf(sparse)

	ids := unionIDs(dense, sparse)
	out := make(map[string]float64, len(ids))
	for id := range ids {
		var s float64
		if r, ok := denseRank[id]; ok {
			s += alpha * (1.0/float64(rrfK+r) + denseScore[id])
		}
		if r, ok := sparseRank[id]; ok {
			s += (1 - alpha) * (1.0/float64(rrfK+r) + sparseScore[id])
		}
		out[id] = s
	}
	return out
}

// fuseWeighted implements spec.md §4.5's weighted combination: α·dense +
// (1-α)·sparse, zero for the missing side.
func fuseWeighted(dense, sparse []vecmodel.SearchResult, alpha float64) map[string]float64 {
	denseScore := scoreOf(dense)
	sparseScore := scoreOf(sparse)
	ids := unionIDs(dense, sparse)

	out := make(map[string]float64, len(ids))
	for id := range ids {
		out[id] = alpha*denseScore[id] + (1-alpha)*sparseScore[id]
	}
	return out
}

// fuseAlphaBlend normalizes each list to [0,1] by its max score, then
// applies the weighted combination (spec.md §4.5).
func fuseAlphaBlend(dense, sparse []vecmodel.SearchResult, alpha float64) map[string]float64 {
	nDense := normalize(dense)
	nSparse := normalize(sparse)
	ids := unionIDs(dense, sparse)

	out := make(map[string]float64, len(ids))
	for id := range ids {
		out[id] = alpha*nDense[id] + (1-alpha)*nSparse[id]
	}
	return out
}

func normalize(list []vecmodel.SearchResult) map[string]float64 {
	out := make(map[string]float64, len(list))
	if len(list) == 0 {
		return out
	}
	max := list[0].Score
	for _, r := range list {
		if r.Score > max {
			max = r.Score
		}
	}
	if max == 0 {
		for _, r := range list {
			out[r.ID] = 0
		}
		return out
	}
	for _, r := range list {
		out[r.ID] = r.Score / max
	}
	return out
}

func scoreOf(list []vecmodel.SearchResult) map[string]float64 {
	out := make(map[string]float64, len(list))
	for _, r := range list {
		out[r.ID] = r.Score
	}
	return out
}

func unionIDs(a, b []vecmodel.SearchResult) map[string]struct{} {
	ids := make(map[string]struct{}, len(a)+len(b))
	for _, r := range a {
		ids[r.ID] = struct{}{}
	}
	for _, r := range b {
		ids[r.ID] = struct{}{}
	}
	return ids
}
