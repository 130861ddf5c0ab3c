package embedport

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicEmbedIsReproducible(t *testing.T) {
	d := NewDeterministic(8)
	v1, err := d.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := d.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 8)
}

func TestDeterministicEmbedDiffersByText(t *testing.T) {
	d := NewDeterministic(8)
	v1, _ := d.Embed(context.Background(), "alpha")
	v2, _ := d.Embed(context.Background(), "beta")
	assert.NotEqual(t, v1, v2)
}

func TestDeterministicEmbedBatchPreservesOrder(t *testing.T) {
	d := NewDeterministic(4)
	texts := []string{"one", "two", "three"}
	batch, err := d.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, _ := d.Embed(context.Background(), text)
		assert.Equal(t, single, batch[i])
	}
}

func TestBaseEmbedderEmbedBatchPreservesOrderAcrossGoroutines(t *testing.T) {
	base := NewBaseEmbedder(2, func(ctx context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text)), 0}, nil
	})
	texts := []string{"a", "bb", "ccc", "dddd"}
	batch, err := base.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), batch[i][0])
	}
}

func TestBaseEmbedderPropagatesFirstError(t *testing.T) {
	base := NewBaseEmbedder(2, func(ctx context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, assert.AnError
		}
		return []float32{1, 2}, nil
	})
	_, err := base.EmbedBatch(context.Background(), []string{"ok", "bad"})
	require.Error(t, err)
}

func TestBaseEmbedderEmbedBatchBoundsConcurrency(t *testing.T) {
	var inFlight, maxInFlight int64
	block := make(chan struct{})
	var once sync.Once

	base := NewBaseEmbedder(1, func(ctx context.Context, text string) ([]float32, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt64(&maxInFlight, old, n) {
				break
			}
		}
		if n == maxEmbedConcurrency {
			once.Do(func() { close(block) })
		}
		<-block
		atomic.AddInt64(&inFlight, -1)
		return []float32{0}, nil
	})

	texts := make([]string, maxEmbedConcurrency*4)
	_, err := base.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(maxEmbedConcurrency))
}

func TestPortInterfaceSatisfiedByDeterministicAndBaseEmbedder(t *testing.T) {
	var _ Port = NewDeterministic(4)
	var _ Port = NewBaseEmbedder(4, func(ctx context.Context, text string) ([]float32, error) { return nil, nil })
}
