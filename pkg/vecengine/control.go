package vecengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vantari/vecengine/pkg/batch"
	"github.com/vantari/vecengine/pkg/filewatch"
	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// watcherHandle tracks the one file-watch pipeline an Engine may run at a
// time (spec.md §4.10 describes a single watcher per data root).
type watcherHandle struct {
	w      *filewatch.Watcher
	cancel context.CancelFunc
}

// fileWatchTarget adapts an Engine + collection name into the
// filewatch.Target surface, lazily creating the destination collection
// on first write.
type fileWatchTarget struct {
	eng        *Engine
	collection string
}

func (t fileWatchTarget) EnsureCollection(ctx context.Context, dimension int) error {
	if t.eng.collectionExists(t.collection) {
		return nil
	}
	cfg := vecmodel.CollectionConfig{
		Dimension: dimension,
		Metric:    "cosine",
		HNSW:      vecmodel.DefaultHNSWConfig(),
		Storage:   vecmodel.StorageMemory,
	}
	if err := t.eng.CreateCollection(t.collection, cfg); err != nil {
		return err
	}
	return nil
}

func (t fileWatchTarget) UpsertFile(ctx context.Context, vectorID string, vec []float32, filePath string, content string) error {
	v := vecmodel.Vector{
		ID:       vectorID,
		Data:     vec,
		Metadata: map[string]any{"file_path": filePath, "content": content},
	}
	if _, err := t.eng.Upsert(t.collection, []vecmodel.Vector{v}); err != nil {
		return err
	}
	return nil
}

func (t fileWatchTarget) DeleteByID(ctx context.Context, vectorID string) error {
	if err := t.eng.Delete(t.collection, vectorID); err != nil {
		return err
	}
	return nil
}

// StartFileWatch starts the file-watch ingestion pipeline over cfg.Roots,
// indexing into collection. Only one watcher may run at a time.
func (e *Engine) StartFileWatch(cfg filewatch.Config, collection string) *vecerr.Error {
	e.watcherMu.Lock()
	defer e.watcherMu.Unlock()
	if e.watcher != nil {
		return vecerr.New(vecerr.InvalidConfiguration, "a file watcher is already running")
	}
	if e.embedder == nil {
		return vecerr.New(vecerr.InvalidConfiguration, "no embedder configured for file watching")
	}

	w, err := filewatch.New(cfg, fileWatchTarget{eng: e, collection: collection}, e.embedder.Embed, e.logger)
	if err != nil {
		return vecerr.Wrap(vecerr.IOErr, err, "starting file watcher")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.watcher = &watcherHandle{w: w, cancel: cancel}
	go w.Start(ctx)
	e.logger.Info("file watcher started", zap.Strings("roots", cfg.Roots), zap.String("collection", collection))
	return nil
}

// StopFileWatch halts the running file watcher, if any.
func (e *Engine) StopFileWatch() {
	e.watcherMu.Lock()
	defer e.watcherMu.Unlock()
	if e.watcher == nil {
		return
	}
	e.watcher.cancel()
	e.watcher.w.Stop()
	e.watcher = nil
	e.logger.Info("file watcher stopped")
}

// FileWatchStatus reports whether a file watcher is currently running.
func (e *Engine) FileWatchStatus() bool {
	e.watcherMu.Lock()
	defer e.watcherMu.Unlock()
	return e.watcher != nil
}

// RunBatchInsert drives vectors through the bounded-worker batch pipeline
// (spec.md §4.9), validating each against collection's dimension before
// upserting it, and reports aggregate progress/outcome.
func (e *Engine) RunBatchInsert(ctx context.Context, collection string, vectors []vecmodel.Vector, cfg batch.Config, progress chan<- batch.Progress) (batch.Result, *vecerr.Error) {
	c, err := e.resolve(collection)
	if err != nil {
		return batch.Result{}, err
	}
	dim := c.dense.Config().Dimension

	items := make([]batch.Item[vecmodel.Vector], len(vectors))
	for i, v := range vectors {
		v := v
		items[i] = batch.Item[vecmodel.Vector]{
			Value: v,
			Validate: func(vec vecmodel.Vector) error {
				if verr := vec.Validate(dim); verr != nil {
					return fmt.Errorf("%s", verr.Message)
				}
				return nil
			},
			Process: func(ctx context.Context, vec vecmodel.Vector) error {
				if _, uerr := e.Upsert(collection, []vecmodel.Vector{vec}); uerr != nil {
					return fmt.Errorf("%s", uerr.Message)
				}
				return nil
			},
		}
	}

	return batch.Run(ctx, cfg, items, progress), nil
}
