// Package embedport defines the inbound "text → vector" port spec.md
// §6 names: `embed(text) → [f32]` and `build_vocabulary([text])`. Real
// providers (BM25, TF-IDF, BERT, MiniLM, SVD, char n-gram,
// bag-of-words) are explicitly out of scope per spec.md §1; this
// package only defines the seam the rest of vecengine programs against,
// plus a deterministic stub for tests.
package embedport

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// maxEmbedConcurrency bounds BaseEmbedder.EmbedBatch's fan-out, matching
// the bounded-worker pattern pkg/batch.Run uses via errgroup.SetLimit
// rather than running every input at once.
const maxEmbedConcurrency = 8

// DenseEmbedder converts text to dense vectors.
type DenseEmbedder interface {
	// Embed converts a single text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch converts multiple texts into vectors in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dim returns the dimension of vectors this embedder produces.
	Dim() int
}

// VocabularyBuilder fits a sparse embedder's vocabulary (terms, idf
// weights, or similar) over a text corpus before first use.
type VocabularyBuilder interface {
	BuildVocabulary(ctx context.Context, texts []string) error
}

// Port is the full embedding seam vecengine's façade accepts: dense
// embedding plus the vocabulary-fitting step sparse providers need.
type Port interface {
	DenseEmbedder
	VocabularyBuilder
}

// BaseEmbedder provides EmbedBatch for free from a single-text Embed
// function, fanning out one goroutine per text and preserving input
// order in the result slice.
type BaseEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
	dim     int
}

// NewBaseEmbedder wraps embedFn with a default EmbedBatch implementation.
func NewBaseEmbedder(dim int, embedFn func(ctx context.Context, text string) ([]float32, error)) *BaseEmbedder {
	return &BaseEmbedder{embedFn: embedFn, dim: dim}
}

// Embed calls the wrapped embed function for a single text.
func (b *BaseEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return b.embedFn(ctx, text)
}

// EmbedBatch embeds every text concurrently (bounded to
// maxEmbedConcurrency in flight at once), returning results in the same
// order as the input regardless of completion order.
func (b *BaseEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxEmbedConcurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := b.embedFn(gctx, text)
			if err != nil {
				return err
			}
			results[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Dim returns the configured vector dimension.
func (b *BaseEmbedder) Dim() int { return b.dim }

// BuildVocabulary is a no-op for dense embedders, which need no fitted
// vocabulary; embedded so BaseEmbedder alone satisfies Port for callers
// that don't need sparse fitting.
func (b *BaseEmbedder) BuildVocabulary(ctx context.Context, texts []string) error { return nil }
