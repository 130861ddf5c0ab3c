// Command vecbench runs the recall/throughput benchmark spec.md §8
// scenario S3 names: insert N random unit vectors, compute brute-force
// top-k ground truth for a query sample, run the same queries through
// HNSW, and report recall@k and search throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/vantari/vecengine/pkg/embedport"
	"github.com/vantari/vecengine/pkg/logging"
	"github.com/vantari/vecengine/pkg/vecengine"
	"github.com/vantari/vecengine/pkg/vecmodel"
	"github.com/vantari/vecengine/pkg/vmath"
)

func main() {
	dimension := flag.Int("dimension", 64, "Vector dimension")
	count := flag.Int("count", 10000, "Number of vectors to index")
	queries := flag.Int("queries", 100, "Number of queries to evaluate")
	k := flag.Int("k", 10, "Neighbors per query")
	m := flag.Int("m", 16, "HNSW M parameter")
	efConstruction := flag.Int("ef-construction", 200, "HNSW ef_construction parameter")
	efSearch := flag.Int("ef-search", 64, "HNSW ef_search parameter")
	seed := flag.Int64("seed", 42, "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	fmt.Printf("generating %d random %d-d vectors (seed=%d)...\n", *count, *dimension, *seed)
	vectors := make([]vecmodel.Vector, *count)
	for i := range vectors {
		vectors[i] = vecmodel.Vector{ID: fmt.Sprintf("v%d", i), Data: randomUnitVector(rng, *dimension)}
	}

	logger, _ := logging.New(logging.DefaultConfig())
	eng := vecengine.New(logger, embedport.NewDeterministic(*dimension), nil)

	cfg := vecmodel.CollectionConfig{
		Dimension: *dimension,
		Metric:    vmath.Cosine,
		HNSW: vecmodel.HNSWConfig{
			M:              *m,
			EfConstruction: *efConstruction,
			EfSearch:       *efSearch,
			Seed:           *seed,
		},
		Storage: vecmodel.StorageMemory,
	}
	if err := eng.CreateCollection("bench", cfg); err != nil {
		fmt.Fprintf(os.Stderr, "creating collection: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("indexing...")
	start := time.Now()
	if _, err := eng.Upsert("bench", vectors); err != nil {
		fmt.Fprintf(os.Stderr, "indexing: %v\n", err)
		os.Exit(1)
	}
	indexDuration := time.Since(start)
	fmt.Printf("indexed %d vectors in %v (%.0f vectors/sec)\n", *count, indexDuration, float64(*count)/indexDuration.Seconds())

	queryVectors := make([][]float32, *queries)
	for i := range queryVectors {
		queryVectors[i] = randomUnitVector(rng, *dimension)
	}

	fmt.Println("computing brute-force ground truth...")
	groundTruth := make([][]string, *queries)
	for i, q := range queryVectors {
		groundTruth[i] = bruteForceTopK(vectors, q, *k)
	}

	fmt.Printf("running %d ANN queries at ef_search=%d...\n", *queries, *efSearch)
	ctx := context.Background()
	searchStart := time.Now()
	totalRecall := 0.0
	for i, q := range queryVectors {
		results, err := eng.SearchDense(ctx, "bench", q, *k, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "search: %v\n", err)
			os.Exit(1)
		}
		totalRecall += recallAt(groundTruth[i], results)
	}
	searchDuration := time.Since(searchStart)

	avgRecall := totalRecall / float64(*queries)
	qps := float64(*queries) / searchDuration.Seconds()

	fmt.Println()
	fmt.Println("results:")
	fmt.Printf("  recall@%d:     %.4f\n", *k, avgRecall)
	fmt.Printf("  search time:   %v (%.0f queries/sec)\n", searchDuration, qps)
	if avgRecall < 0.9 {
		fmt.Println("  status:        BELOW target (spec.md §8 invariant 4 requires >= 0.90)")
		os.Exit(1)
	}
	fmt.Println("  status:        OK")
}

func randomUnitVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return vmath.Normalize(v)
}

func bruteForceTopK(vectors []vecmodel.Vector, query []float32, k int) []string {
	type scored struct {
		id    string
		score float64
	}
	scores := make([]scored, len(vectors))
	for i, v := range vectors {
		scores[i] = scored{id: v.ID, score: vmath.Score(vmath.Cosine, query, v.Data)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if len(scores) > k {
		scores = scores[:k]
	}
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = s.id
	}
	return out
}

func recallAt(groundTruth []string, results []vecmodel.SearchResult) float64 {
	if len(groundTruth) == 0 {
		return 0
	}
	expected := make(map[string]bool, len(groundTruth))
	for _, id := range groundTruth {
		expected[id] = true
	}
	hits := 0
	for _, r := range results {
		if expected[r.ID] {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}
