package shard

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vantari/vecengine/pkg/store"
	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// Collection owns one inner *store.Collection per shard, fanning inserts
// and searches out across them (spec.md §4.6).
type Collection struct {
	name    string
	router  *Router
	ownerID string
	logger  *zap.Logger

	mu     sync.RWMutex
	shards map[string]*store.Collection
	config vecmodel.CollectionConfig

	createdAt time.Time
}

// New creates a sharded collection with shard_count shards, each an
// independent *store.Collection with the given per-shard config. logger
// is consulted when a shard search fails during fan-out; a nil logger
// defaults to zap.NewNop().
func New(name string, config vecmodel.CollectionConfig, ownerID string, logger *zap.Logger) (*Collection, *vecerr.Error) {
	if config.Sharding == nil {
		return nil, vecerr.New(vecerr.InvalidConfiguration, "sharding config required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	router := NewRouter(config.Sharding.VirtualNodesPerShard)
	shards := make(map[string]*store.Collection, config.Sharding.ShardCount)
	for i := 0; i < config.Sharding.ShardCount; i++ {
		shardName := shardID(name, i)
		c, err := store.New(shardName, config)
		if err != nil {
			return nil, err
		}
		shards[shardName] = c
		router.AddShard(shardName, 1)
	}
	return &Collection{name: name, router: router, shards: shards, config: config, ownerID: ownerID, logger: logger, createdAt: time.Now()}, nil
}

// Name returns the logical (unsharded) collection name.
func (c *Collection) Name() string { return c.name }

// Config returns the per-shard configuration every shard shares.
func (c *Collection) Config() vecmodel.CollectionConfig { return c.config }

// Metadata aggregates vector counts across every shard into one
// CollectionMetadata, matching spec.md §3's shape for the façade.
func (c *Collection) Metadata() vecmodel.CollectionMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, coll := range c.shards {
		total += coll.Len()
	}
	return vecmodel.CollectionMetadata{
		Name:           c.name,
		VectorCount:    total,
		CreatedAt:      c.createdAt,
		UpdatedAt:      time.Now(),
		Config:         c.config,
		IndexingStatus: vecmodel.StatusCompleted,
	}
}

// GetAllVectors concatenates every shard's live vectors.
func (c *Collection) GetAllVectors() []vecmodel.Vector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []vecmodel.Vector
	for _, coll := range c.shards {
		out = append(out, coll.GetAllVectors()...)
	}
	return out
}

// Get routes id to its owning shard and looks it up there; other shards
// are not searched.
func (c *Collection) Get(id string) (vecmodel.Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if sid, ok := c.router.RouteVector(id); ok {
		if coll, ok := c.shards[sid]; ok {
			if v, ok := coll.Get(id); ok {
				return v, true
			}
		}
	}
	return vecmodel.Vector{}, false
}

// Delete routes to the owning shard and deletes there.
func (c *Collection) Delete(id string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if sid, ok := c.router.RouteVector(id); ok {
		if coll, ok := c.shards[sid]; ok {
			coll.Delete(id)
		}
	}
}

// UpsertBatch is Insert under the name the façade's uniform collection
// interface expects.
func (c *Collection) UpsertBatch(vectors []vecmodel.Vector) []store.UpsertOutcome {
	return c.Insert(vectors)
}

// SearchDense fans a query out to every shard, giving shard.Collection
// the same search signature as a plain store.Collection so the façade
// can treat both uniformly; Search itself remains available for callers
// that need to target specific shard keys.
func (c *Collection) SearchDense(ctx context.Context, query []float32, k int) ([]vecmodel.SearchResult, *vecerr.Error) {
	return c.Search(ctx, query, k, nil)
}

func shardID(collection string, i int) string {
	return collection + "#shard" + strconv.Itoa(i)
}

// Insert groups vectors by shard (spec.md §4.6: "groups inserts by
// shard") and inserts each group into its owning shard collection.
func (c *Collection) Insert(vectors []vecmodel.Vector) []store.UpsertOutcome {
	byShard := make(map[string][]vecmodel.Vector)
	for _, v := range vectors {
		sid, ok := c.router.RouteVector(v.ID)
		if !ok {
			continue
		}
		byShard[sid] = append(byShard[sid], v)
	}

	out := make([]store.UpsertOutcome, 0, len(vectors))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for sid, group := range byShard {
		coll, ok := c.shards[sid]
		if !ok {
			continue
		}
		out = append(out, coll.UpsertBatch(group)...)
		c.router.ObserveCount(sid, coll.Len())
	}
	return out
}

// Search fans a query out to every shard in parallel (or a caller-supplied
// subset via shardKeys), merges by metric ordering, and truncates to k
// (spec.md §4.6).
func (c *Collection) Search(ctx context.Context, query []float32, k int, shardKeys []string) ([]vecmodel.SearchResult, *vecerr.Error) {
	targets := c.router.RouteSearch(shardKeys)

	c.mu.RLock()
	defer c.mu.RUnlock()

	type partial struct {
		results []vecmodel.SearchResult
	}
	partials := make([]partial, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, sid := range targets {
		i, sid := i, sid
		coll, ok := c.shards[sid]
		if !ok {
			continue
		}
		g.Go(func() error {
			res, err := coll.Search(gctx, query, k)
			if err != nil {
				// spec.md §7: a failing shard is logged and skipped, partial
				// results returned — never abort the whole fan-out.
				c.logger.Warn("shard search failed, skipping",
					zap.String("collection", c.name), zap.String("shard", sid), zap.Error(err))
				return nil
			}
			partials[i] = partial{results: res}
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]vecmodel.SearchResult, 0, k*len(targets))
	for _, p := range partials {
		merged = append(merged, p.results...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// NeedsRebalancing reports imbalance per spec.md §3.
func (c *Collection) NeedsRebalancing() bool {
	return c.router.NeedsRebalancing(c.config.Sharding.RebalanceThreshold)
}

// BelongsTo is a pure check against the tenant-scoped owner id (spec.md
// §4.6).
func (c *Collection) BelongsTo(owner string) bool {
	return c.ownerID == owner
}

// ShardCounts returns the live vector count observed per shard.
func (c *Collection) ShardCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int, len(c.shards))
	for sid, coll := range c.shards {
		out[sid] = coll.Len()
	}
	return out
}
