// Package vecengine is the in-process façade spec.md §6 names: a typed
// API covering collections, vectors, search, embeddings, snapshots, file
// operations, and batch/file-watch control, wired over the independent
// pkg/store, pkg/shard, pkg/sparse, pkg/hybrid, pkg/alias, pkg/snapshot,
// pkg/fileops, pkg/batch and pkg/filewatch packages.
package vecengine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vantari/vecengine/pkg/alias"
	"github.com/vantari/vecengine/pkg/embedport"
	"github.com/vantari/vecengine/pkg/fileops"
	"github.com/vantari/vecengine/pkg/hybrid"
	"github.com/vantari/vecengine/pkg/shard"
	"github.com/vantari/vecengine/pkg/snapshot"
	"github.com/vantari/vecengine/pkg/sparse"
	"github.com/vantari/vecengine/pkg/store"
	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// denseCollection is the uniform shape both a plain store.Collection and
// a sharded shard.Collection satisfy, letting the façade treat either
// kind the same way for everything except shard-targeted search.
type denseCollection interface {
	Name() string
	Config() vecmodel.CollectionConfig
	Metadata() vecmodel.CollectionMetadata
	GetAllVectors() []vecmodel.Vector
	Get(id string) (vecmodel.Vector, bool)
	Delete(id string)
	UpsertBatch(vectors []vecmodel.Vector) []store.UpsertOutcome
	SearchDense(ctx context.Context, query []float32, k int) ([]vecmodel.SearchResult, *vecerr.Error)
}

// entry bundles one collection's dense store with its sparse index and
// lazily-built file operations, since both are derived state over the
// same chunk vectors rather than independently persisted.
type entry struct {
	dense  denseCollection
	sparse *sparse.Index

	fileopsOnce sync.Once
	fileopsOps  *fileops.Ops
}

func newEntry(dense denseCollection) *entry {
	return &entry{dense: dense, sparse: sparse.New()}
}

// sourceAdapter gives an entry's dense collection the narrower Search
// method name pkg/fileops.Source expects.
type sourceAdapter struct{ dense denseCollection }

func (s sourceAdapter) GetAllVectors() []vecmodel.Vector { return s.dense.GetAllVectors() }
func (s sourceAdapter) Search(ctx context.Context, query []float32, k int) ([]vecmodel.SearchResult, *vecerr.Error) {
	return s.dense.SearchDense(ctx, query, k)
}

func (e *entry) files(embed fileops.EmbedFunc) *fileops.Ops {
	e.fileopsOnce.Do(func() {
		e.fileopsOps = fileops.New(sourceAdapter{dense: e.dense}, embed)
	})
	return e.fileopsOps
}

// Engine is the top-level façade (spec.md §6). Zero value is not usable;
// construct with New.
type Engine struct {
	logger   *zap.Logger
	embedder embedport.Port

	mu          sync.RWMutex
	collections map[string]*entry
	aliases     *alias.Table

	snapshots *snapshot.Store

	watcherMu sync.Mutex
	watcher   *watcherHandle
}

// New creates an Engine. embedder may be nil if the caller never calls
// Embed/BuildVocabulary or the file operations that need text embedding.
// snapshots may be nil to disable create/list/delete/restore/import.
func New(logger *zap.Logger, embedder embedport.Port, snapshots *snapshot.Store) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	eng := &Engine{
		logger:      logger,
		embedder:    embedder,
		collections: make(map[string]*entry),
		snapshots:   snapshots,
	}
	eng.aliases = alias.New(eng.collectionExists)
	return eng
}

func (e *Engine) collectionExists(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.collections[name]
	return ok
}

// resolve looks up name in the live collection table, falling back to a
// single alias indirection hop (spec.md §4.13).
func (e *Engine) resolve(name string) (*entry, *vecerr.Error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c, ok := e.collections[name]; ok {
		return c, nil
	}
	if target, ok := e.aliases.Resolve(name); ok {
		if c, ok := e.collections[target]; ok {
			return c, nil
		}
	}
	return nil, vecerr.Newf(vecerr.CollectionNotFound, "collection %q not found", name)
}

// --- Collections ---

// CreateCollection creates a new collection, sharded or plain depending
// on whether config.Sharding is set (spec.md §4.6).
func (e *Engine) CreateCollection(name string, config vecmodel.CollectionConfig) *vecerr.Error {
	if err := config.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.collections[name]; exists {
		return vecerr.Newf(vecerr.CollectionAlreadyExists, "collection %q already exists", name)
	}

	var dense denseCollection
	if config.Sharding != nil {
		c, err := shard.New(name, config, "", e.logger)
		if err != nil {
			return err
		}
		dense = c
	} else {
		c, err := store.New(name, config)
		if err != nil {
			return err
		}
		dense = c
	}
	e.collections[name] = newEntry(dense)
	e.logger.Info("collection created", zap.String("collection", name))
	return nil
}

// DeleteCollection removes a collection and any aliases pointing at it.
func (e *Engine) DeleteCollection(name string) *vecerr.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.collections[name]; !ok {
		return vecerr.Newf(vecerr.CollectionNotFound, "collection %q not found", name)
	}
	delete(e.collections, name)
	for _, a := range e.aliases.ListForCollection(name) {
		e.aliases.Delete(a)
	}
	e.logger.Info("collection deleted", zap.String("collection", name))
	return nil
}

// ListCollections returns every live collection name (aliases excluded).
func (e *Engine) ListCollections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.collections))
	for name := range e.collections {
		out = append(out, name)
	}
	return out
}

// GetCollectionMetadata resolves name (through an alias if needed) and
// returns its descriptive metadata.
func (e *Engine) GetCollectionMetadata(name string) (vecmodel.CollectionMetadata, *vecerr.Error) {
	c, err := e.resolve(name)
	if err != nil {
		return vecmodel.CollectionMetadata{}, err
	}
	return c.dense.Metadata(), nil
}

// CreateAlias registers alias -> target (spec.md §4.13).
func (e *Engine) CreateAlias(aliasName, target string) *vecerr.Error {
	return e.aliases.Create(aliasName, target)
}

// DeleteAlias removes an alias.
func (e *Engine) DeleteAlias(aliasName string) {
	e.aliases.Delete(aliasName)
}

// ListAliases returns every registered alias name, sorted.
func (e *Engine) ListAliases() []string {
	return e.aliases.List()
}

// --- Vectors ---

// Insert validates and inserts vectors into collection, indexing any
// sparse component alongside the dense store.
func (e *Engine) Insert(collection string, vectors []vecmodel.Vector) ([]store.UpsertOutcome, *vecerr.Error) {
	return e.Upsert(collection, vectors)
}

// Upsert is Insert's alias: both paths share the same idempotent-by-id
// semantics as pkg/store.Collection.UpsertBatch (spec.md §4.3).
func (e *Engine) Upsert(collection string, vectors []vecmodel.Vector) ([]store.UpsertOutcome, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return nil, err
	}
	outcomes := c.dense.UpsertBatch(vectors)
	for _, v := range vectors {
		if v.Sparse != nil {
			c.sparse.Upsert(v.ID, v.Sparse)
		}
	}
	c.files(e.embedFunc()).Invalidate()
	return outcomes, nil
}

// Delete removes id from collection, scrubbing it from the sparse index
// too.
func (e *Engine) Delete(collection, id string) *vecerr.Error {
	c, err := e.resolve(collection)
	if err != nil {
		return err
	}
	c.dense.Delete(id)
	c.sparse.Delete(id)
	c.files(e.embedFunc()).Invalidate()
	return nil
}

// Get fetches one vector by id.
func (e *Engine) Get(collection, id string) (vecmodel.Vector, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return vecmodel.Vector{}, err
	}
	v, ok := c.dense.Get(id)
	if !ok {
		return vecmodel.Vector{}, vecerr.Newf(vecerr.VectorNotFound, "vector %q not found", id).WithID(id)
	}
	return v, nil
}

// GetAll returns every live vector in collection.
func (e *Engine) GetAll(collection string) ([]vecmodel.Vector, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return nil, err
	}
	return c.dense.GetAllVectors(), nil
}

// --- Search ---

// SearchDense runs a k-NN dense query, optionally at a caller-supplied
// ef_search override.
func (e *Engine) SearchDense(ctx context.Context, collection string, query []float32, k int, efSearch int) ([]vecmodel.SearchResult, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return nil, err
	}
	if efSearch > 0 {
		if plain, ok := c.dense.(*store.Collection); ok {
			return plain.SearchEf(ctx, query, k, efSearch)
		}
	}
	return c.dense.SearchDense(ctx, query, k)
}

// SearchSparse runs a lexical query over collection's sparse index.
func (e *Engine) SearchSparse(collection string, query *vecmodel.SparseVector, k int) ([]vecmodel.SearchResult, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return nil, err
	}
	return c.sparse.Search(query, k), nil
}

// HybridRequest bundles the parameters of search_hybrid (spec.md §6):
// a dense query, an optional sparse query, and fusion parameters.
type HybridRequest struct {
	DenseQuery  []float32
	SparseQuery *vecmodel.SparseVector
	Alpha       float64
	Algorithm   hybrid.Algorithm
	DenseK      int
	SparseK     int
	FinalK      int
}

// SearchHybrid runs a dense and (if requested) a sparse search, then
// fuses them per req.Algorithm (spec.md §4.5).
func (e *Engine) SearchHybrid(ctx context.Context, collection string, req HybridRequest) ([]vecmodel.SearchResult, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return nil, err
	}

	var dense, sparseResults []vecmodel.SearchResult
	if req.DenseQuery != nil {
		dense, err = c.dense.SearchDense(ctx, req.DenseQuery, req.DenseK)
		if err != nil {
			return nil, err
		}
	}
	if req.SparseQuery != nil {
		sparseResults = c.sparse.Search(req.SparseQuery, req.SparseK)
	}

	return hybrid.Fuse(hybrid.Request{
		Dense:     dense,
		Sparse:    sparseResults,
		Alpha:     req.Alpha,
		Algorithm: req.Algorithm,
		FinalK:    req.FinalK,
	}), nil
}

// SearchShards runs a dense query restricted to shardKeys (nil means
// every shard), only valid against a sharded collection.
func (e *Engine) SearchShards(ctx context.Context, collection string, query []float32, k int, shardKeys []string) ([]vecmodel.SearchResult, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return nil, err
	}
	sharded, ok := c.dense.(*shard.Collection)
	if !ok {
		return nil, vecerr.Newf(vecerr.InvalidConfiguration, "collection %q is not sharded", collection)
	}
	return sharded.Search(ctx, query, k, shardKeys)
}

// --- Embeddings ---

func (e *Engine) embedFunc() fileops.EmbedFunc {
	if e.embedder == nil {
		return nil
	}
	return e.embedder.Embed
}

// Embed converts text to a dense vector via the configured embedding
// port (spec.md §1: the port is consumed here, never implemented).
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.embedder == nil {
		return nil, vecerr.New(vecerr.InvalidConfiguration, "no embedder configured")
	}
	return e.embedder.Embed(ctx, text)
}

// BuildVocabulary fits a sparse embedder's vocabulary over a text corpus.
func (e *Engine) BuildVocabulary(ctx context.Context, texts []string) error {
	if e.embedder == nil {
		return vecerr.New(vecerr.InvalidConfiguration, "no embedder configured")
	}
	return e.embedder.BuildVocabulary(ctx, texts)
}

// --- Snapshots ---

// CreateSnapshot captures every named collection (or all, if names is
// empty) into a new snapshot manifest.
func (e *Engine) CreateSnapshot(names []string) (snapshot.Summary, *vecerr.Error) {
	if e.snapshots == nil {
		return snapshot.Summary{}, vecerr.New(vecerr.InvalidConfiguration, "snapshots are not enabled")
	}
	e.mu.RLock()
	var sources []snapshot.CollectionSource
	if len(names) == 0 {
		for _, c := range e.collections {
			sources = append(sources, c.dense)
		}
	} else {
		for _, n := range names {
			if c, ok := e.collections[n]; ok {
				sources = append(sources, c.dense)
			}
		}
	}
	e.mu.RUnlock()
	return e.snapshots.Create(sources)
}

// ListSnapshots returns every stored snapshot's lightweight summary.
func (e *Engine) ListSnapshots() ([]snapshot.Summary, *vecerr.Error) {
	if e.snapshots == nil {
		return nil, vecerr.New(vecerr.InvalidConfiguration, "snapshots are not enabled")
	}
	return e.snapshots.List()
}

// DeleteSnapshot removes a stored snapshot manifest.
func (e *Engine) DeleteSnapshot(id string) *vecerr.Error {
	if e.snapshots == nil {
		return vecerr.New(vecerr.InvalidConfiguration, "snapshots are not enabled")
	}
	return e.snapshots.Delete(id)
}

// RestoreSnapshot recreates every collection captured in snapshot id,
// replaying its vectors through CreateCollection + Upsert rather than
// deserializing the HNSW graph byte-for-byte (see DESIGN.md).
func (e *Engine) RestoreSnapshot(id string) *vecerr.Error {
	if e.snapshots == nil {
		return vecerr.New(vecerr.InvalidConfiguration, "snapshots are not enabled")
	}
	manifest, err := e.snapshots.Get(id)
	if err != nil {
		return err
	}
	for _, cs := range manifest.Collections {
		e.mu.Lock()
		_, exists := e.collections[cs.Name]
		e.mu.Unlock()
		if !exists {
			if err := e.CreateCollection(cs.Name, cs.Config); err != nil {
				return err
			}
		}
		if _, err := e.Upsert(cs.Name, cs.Vectors); err != nil {
			return err
		}
	}
	return nil
}

// ImportSnapshot decodes a raw exported snapshot payload and stores it
// under a fresh id, without restoring it.
func (e *Engine) ImportSnapshot(payload []byte) (snapshot.Summary, *vecerr.Error) {
	if e.snapshots == nil {
		return snapshot.Summary{}, vecerr.New(vecerr.InvalidConfiguration, "snapshots are not enabled")
	}
	return e.snapshots.Import(payload)
}

// ExportSnapshot serializes a stored snapshot back to raw bytes.
func (e *Engine) ExportSnapshot(id string) ([]byte, *vecerr.Error) {
	if e.snapshots == nil {
		return nil, vecerr.New(vecerr.InvalidConfiguration, "snapshots are not enabled")
	}
	return e.snapshots.Export(id)
}

// --- File operations (spec.md §4.14) ---

// Files returns the file-content operations surface for collection,
// building it lazily on first use.
func (e *Engine) Files(collection string) (*fileops.Ops, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return nil, err
	}
	return c.files(e.embedFunc()), nil
}
