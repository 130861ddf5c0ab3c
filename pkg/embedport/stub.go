package embedport

import (
	"context"
	"math"
)

// Deterministic generates reproducible, non-random vectors from text
// content — useful for tests and local development, never a real
// embedding. Mirrors the teacher pack's DummyEmbedder pattern.
type Deterministic struct {
	dim int
}

// NewDeterministic returns a Deterministic embedder producing dim-length
// vectors.
func NewDeterministic(dim int) *Deterministic {
	return &Deterministic{dim: dim}
}

// Embed hashes text's bytes into a unit vector. Not a real embedding.
func (d *Deterministic) Embed(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, d.dim)
	for i := range vector {
		seed := 0.0
		for j, b := range text {
			seed += float64(b) * float64(j+1) * float64(i+1)
		}
		vector[i] = float32(math.Sin(seed * 0.001))
	}

	var norm float32
	for _, v := range vector {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vector {
			vector[i] /= norm
		}
	}
	return vector, nil
}

// EmbedBatch embeds each text via Embed, preserving order.
func (d *Deterministic) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := d.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dim returns the configured vector dimension.
func (d *Deterministic) Dim() int { return d.dim }

// BuildVocabulary is a no-op: Deterministic needs no fitted vocabulary.
func (d *Deterministic) BuildVocabulary(ctx context.Context, texts []string) error { return nil }
