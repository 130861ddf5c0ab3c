// Package vecmodel defines the data model shared across the engine:
// Vector, Payload, CollectionConfig, and CollectionMetadata, per spec.md
// §3. Other packages (store, hnsw, sparse, shard, gpu) operate on these
// types rather than each defining their own.
package vecmodel

import (
	"time"

	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vmath"
)

// MaxIDLength is the maximum byte length of a Vector.ID (spec.md §3).
const MaxIDLength = 255

// SparseVector is the (indices, values) pair used for lexical retrieval.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Payload is a free-form tree of scalar|array|object values, queried by
// dotted paths such as "user.profile.age".
type Payload map[string]any

// Get resolves a dotted path against the payload tree, returning (value,
// true) on success. Intermediate non-map values terminate the walk with
// (nil, false).
func (p Payload) Get(path string) (any, bool) {
	if p == nil {
		return nil, false
	}
	cur := any(map[string]any(p))
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			key := path[start:i]
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			cur = v
			start = i + 1
		}
	}
	return cur, true
}

// Vector is the engine's core unit of data: an id, a dense payload, an
// optional sparse payload, and an optional structured Payload.
type Vector struct {
	ID       string
	Data     []float32
	Sparse   *SparseVector
	Payload  Payload
	Metadata map[string]any // chunk metadata for pkg/fileops (file_path, chunk_index, ...)
}

// Validate enforces the invariants of spec.md §3: non-empty id no longer
// than MaxIDLength, data length equal to dimension, and every component
// finite.
func (v *Vector) Validate(dimension int) *vecerr.Error {
	if v.ID == "" || len(v.ID) > MaxIDLength {
		return vecerr.New(vecerr.InvalidVector, "vector id must be non-empty and at most 255 bytes").WithID(v.ID)
	}
	if len(v.Data) != dimension {
		return vecerr.Newf(vecerr.DimensionMismatch, "expected dimension %d, got %d", dimension, len(v.Data)).WithID(v.ID)
	}
	if !vmath.Finite(v.Data) {
		return vecerr.New(vecerr.InvalidVector, "vector contains non-finite components").WithID(v.ID)
	}
	if v.Sparse != nil && len(v.Sparse.Indices) != len(v.Sparse.Values) {
		return vecerr.New(vecerr.InvalidVector, "sparse indices/values length mismatch").WithID(v.ID)
	}
	return nil
}

// QuantizationMode selects how a collection stores dense vectors.
type QuantizationMode string

const (
	QuantizationNone QuantizationMode = "none"
	QuantizationSQ8  QuantizationMode = "sq8"
)

// StorageKind selects the persistence backend for a collection.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageMmap   StorageKind = "mmap"
)

// CompressionConfig configures optional segment compression, wired to
// klauspost/compress in pkg/diskstore.
type CompressionConfig struct {
	Enabled        bool
	ThresholdBytes int
	Algorithm      string // "zstd" (only algorithm wired today)
}

// HNSWConfig mirrors spec.md §3's {M, ef_construction, ef_search, seed}.
type HNSWConfig struct {
	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64 // 0 means unseeded (time-derived)
}

// DefaultHNSWConfig returns the parameters used by spec.md §8 invariant 4.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 64}
}

// ShardingConfig mirrors spec.md §3's optional sharding block.
type ShardingConfig struct {
	ShardCount           int
	VirtualNodesPerShard int
	RebalanceThreshold   float64
}

// CollectionConfig is immutable after creation except for HNSW.EfSearch
// (spec.md §3).
type CollectionConfig struct {
	Dimension    int
	Metric       vmath.Metric
	HNSW         HNSWConfig
	Quantization QuantizationMode
	Compression  CompressionConfig
	Storage      StorageKind
	Sharding     *ShardingConfig
}

// Validate checks the configuration is internally consistent.
func (c *CollectionConfig) Validate() *vecerr.Error {
	if c.Dimension <= 0 {
		return vecerr.New(vecerr.InvalidConfiguration, "dimension must be positive")
	}
	switch c.Metric {
	case vmath.Cosine, vmath.Euclidean, vmath.Dot:
	default:
		return vecerr.Newf(vecerr.InvalidConfiguration, "unknown metric %q", c.Metric)
	}
	switch c.Quantization {
	case "", QuantizationNone, QuantizationSQ8:
	default:
		return vecerr.Newf(vecerr.InvalidConfiguration, "unknown quantization mode %q", c.Quantization)
	}
	switch c.Storage {
	case "", StorageMemory, StorageMmap:
	default:
		return vecerr.Newf(vecerr.InvalidConfiguration, "unknown storage kind %q", c.Storage)
	}
	if c.Sharding != nil {
		if c.Sharding.ShardCount <= 0 {
			return vecerr.New(vecerr.InvalidConfiguration, "shard_count must be positive")
		}
		if c.Sharding.VirtualNodesPerShard <= 0 {
			return vecerr.New(vecerr.InvalidConfiguration, "virtual_nodes_per_shard must be positive")
		}
	}
	return nil
}

// IndexingStatus is the per-collection state machine of spec.md §4.15.
type IndexingStatus string

const (
	StatusCreated    IndexingStatus = "created"
	StatusProcessing IndexingStatus = "processing"
	StatusCompleted  IndexingStatus = "completed"
	StatusFailed     IndexingStatus = "failed"
)

// CollectionMetadata is the descriptive summary returned by
// get_collection_metadata (spec.md §6).
type CollectionMetadata struct {
	Name           string
	VectorCount    int
	DocumentCount  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Config         CollectionConfig
	IndexingStatus IndexingStatus
	Progress       int // 0..100, meaningful only while Processing
}

// SearchResult is the result shape returned by every search operation:
// node id, score in the metric's higher-is-better ordering, and payload.
type SearchResult struct {
	ID      string
	Score   float64
	Payload Payload
}
