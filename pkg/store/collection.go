// Package store implements the per-collection vector store (spec.md §4.3):
// a sharded concurrent map of id -> (vector, payload) backed by an HNSW
// index for approximate search. Vector storage uses fine-grained per-bucket
// locking (spec.md §5: "readers never block readers"); the HNSW insert
// path remains the serialization point for structural graph mutation.
package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/vantari/vecengine/pkg/hnsw"
	"github.com/vantari/vecengine/pkg/quantize"
	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

const bucketCount = 32

type bucket struct {
	mu      sync.RWMutex
	vectors map[string]*entry
}

type entry struct {
	vector vecmodel.Vector
	sq8    *quantize.Encoded // non-nil when the collection quantizes
}

// Collection owns exactly one vector store, one HNSW index, and the
// metadata describing both (spec.md §3: "Each collection exclusively owns
// its vectors, index").
type Collection struct {
	name    string
	config  vecmodel.CollectionConfig
	buckets [bucketCount]*bucket
	index   *hnsw.Index

	metaMu   sync.RWMutex
	metadata vecmodel.CollectionMetadata
}

// New creates an empty collection. The HNSW index is constructed eagerly
// here but remains empty until the first insert (spec.md §4.4: "Constructed
// lazily on first insert" — satisfied because an empty index costs nothing
// beyond the struct itself).
func New(name string, config vecmodel.CollectionConfig) (*Collection, *vecerr.Error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Collection{
		name:   name,
		config: config,
		index:  hnsw.New(config.Dimension, config.Metric, config.HNSW),
	}
	for i := range c.buckets {
		c.buckets[i] = &bucket{vectors: make(map[string]*entry)}
	}
	now := time.Now()
	c.metadata = vecmodel.CollectionMetadata{
		Name:           name,
		Config:         config,
		CreatedAt:      now,
		UpdatedAt:      now,
		IndexingStatus: vecmodel.StatusCreated,
	}
	return c, nil
}

func (c *Collection) bucketFor(id string) *bucket {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return c.buckets[h.Sum32()%bucketCount]
}

// Insert adds a single vector, failing with DimensionMismatch or
// InvalidVector per spec.md §4.3.
func (c *Collection) Insert(v vecmodel.Vector) *vecerr.Error {
	if err := v.Validate(c.config.Dimension); err != nil {
		return err
	}

	b := c.bucketFor(v.ID)
	e := &entry{vector: v}
	if c.config.Quantization == vecmodel.QuantizationSQ8 {
		enc := quantize.Encode(v.Data)
		e.sq8 = &enc
	}

	b.mu.Lock()
	_, existed := b.vectors[v.ID]
	b.vectors[v.ID] = e
	b.mu.Unlock()

	if hErr := c.index.Insert(v.ID, v.Data); hErr != nil {
		return hErr
	}

	c.metaMu.Lock()
	if !existed {
		c.metadata.VectorCount++
	}
	c.metadata.UpdatedAt = time.Now()
	c.metaMu.Unlock()
	return nil
}

// UpsertOutcome is the per-item result of UpsertBatch.
type UpsertOutcome struct {
	ID      string
	Success bool
	Err     *vecerr.Error
}

// UpsertBatch inserts each vector independently: one failing item does not
// abort the others (spec.md §4.3: "atomic per-vector; partial success
// allowed").
func (c *Collection) UpsertBatch(vectors []vecmodel.Vector) []UpsertOutcome {
	out := make([]UpsertOutcome, len(vectors))
	for i, v := range vectors {
		err := c.Insert(v)
		out[i] = UpsertOutcome{ID: v.ID, Success: err == nil, Err: err}
	}
	return out
}

// Delete removes id from storage and tombstones it in the HNSW graph
// (spec.md §4.3/§4.4).
func (c *Collection) Delete(id string) {
	b := c.bucketFor(id)
	b.mu.Lock()
	_, existed := b.vectors[id]
	delete(b.vectors, id)
	b.mu.Unlock()

	if existed {
		c.index.Delete(id)
		c.metaMu.Lock()
		c.metadata.VectorCount--
		c.metadata.UpdatedAt = time.Now()
		c.metaMu.Unlock()
	}
}

// Get returns the stored vector for id, decoding from SQ-8 if the
// collection is quantized.
func (c *Collection) Get(id string) (vecmodel.Vector, bool) {
	b := c.bucketFor(id)
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.vectors[id]
	if !ok {
		return vecmodel.Vector{}, false
	}
	return c.materialize(e), true
}

func (c *Collection) materialize(e *entry) vecmodel.Vector {
	v := e.vector
	if e.sq8 != nil {
		v.Data = e.sq8.Decode()
	}
	return v
}

// GetAllVectors returns every stored vector (read-only snapshot).
func (c *Collection) GetAllVectors() []vecmodel.Vector {
	out := make([]vecmodel.Vector, 0, c.Len())
	for _, b := range c.buckets {
		b.mu.RLock()
		for _, e := range b.vectors {
			out = append(out, c.materialize(e))
		}
		b.mu.RUnlock()
	}
	return out
}

// Len returns the live vector count.
func (c *Collection) Len() int {
	n := 0
	for _, b := range c.buckets {
		b.mu.RLock()
		n += len(b.vectors)
		b.mu.RUnlock()
	}
	return n
}

// Search delegates to the HNSW index and maps node ids back to
// (id, score, payload) in the metric's natural ordering (spec.md §4.3).
func (c *Collection) Search(ctx context.Context, query []float32, k int) ([]vecmodel.SearchResult, *vecerr.Error) {
	hits, err := c.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]vecmodel.SearchResult, 0, len(hits))
	for _, h := range hits {
		b := c.bucketFor(h.ID)
		b.mu.RLock()
		e, ok := b.vectors[h.ID]
		b.mu.RUnlock()
		if !ok {
			continue // tombstoned between index search and lookup; skip rather than error
		}
		out = append(out, vecmodel.SearchResult{ID: h.ID, Score: h.Score, Payload: e.vector.Payload})
	}
	return out, nil
}

// SearchDense is Search under the name the façade's uniform collection
// interface expects, so plain and sharded collections share one search
// method name.
func (c *Collection) SearchDense(ctx context.Context, query []float32, k int) ([]vecmodel.SearchResult, *vecerr.Error) {
	return c.Search(ctx, query, k)
}

// SearchEf is Search with an explicit ef_search override.
func (c *Collection) SearchEf(ctx context.Context, query []float32, k, efSearch int) ([]vecmodel.SearchResult, *vecerr.Error) {
	hits, err := c.index.SearchEf(ctx, query, k, efSearch)
	if err != nil {
		return nil, err
	}
	out := make([]vecmodel.SearchResult, 0, len(hits))
	for _, h := range hits {
		b := c.bucketFor(h.ID)
		b.mu.RLock()
		e, ok := b.vectors[h.ID]
		b.mu.RUnlock()
		if !ok {
			continue
		}
		out = append(out, vecmodel.SearchResult{ID: h.ID, Score: h.Score, Payload: e.vector.Payload})
	}
	return out, nil
}

// Metadata returns a copy of the collection's current metadata.
func (c *Collection) Metadata() vecmodel.CollectionMetadata {
	c.metaMu.RLock()
	defer c.metaMu.RUnlock()
	return c.metadata
}

// SetEfSearch updates the only mutable field of CollectionConfig after
// creation (spec.md §3).
func (c *Collection) SetEfSearch(ef int) {
	c.metaMu.Lock()
	c.config.HNSW.EfSearch = ef
	c.metadata.Config.HNSW.EfSearch = ef
	c.metaMu.Unlock()
}

// Transition drives the indexing status state machine (spec.md §4.15).
func (c *Collection) Transition(to vecmodel.IndexingStatus, progress int) *vecerr.Error {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()
	return c.metadata.Transition(to, progress)
}

// TombstoneRatio exposes the HNSW index's tombstone fraction.
func (c *Collection) TombstoneRatio() float64 {
	return c.index.TombstoneRatio()
}

// Config returns the collection's immutable configuration.
func (c *Collection) Config() vecmodel.CollectionConfig {
	return c.config
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Requantize walks every stored vector and replaces its backing with the
// SQ-8 triple, idempotent if already SQ-8 (spec.md §4.2).
func (c *Collection) Requantize() {
	for _, b := range c.buckets {
		b.mu.Lock()
		for _, e := range b.vectors {
			if e.sq8 != nil {
				continue // already sq8: no-op
			}
			enc := quantize.Encode(e.vector.Data)
			e.sq8 = &enc
		}
		b.mu.Unlock()
	}
}
