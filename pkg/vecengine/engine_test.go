package vecengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantari/vecengine/pkg/embedport"
	"github.com/vantari/vecengine/pkg/hybrid"
	"github.com/vantari/vecengine/pkg/snapshot"
	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

func denseConfig(dim int) vecmodel.CollectionConfig {
	return vecmodel.CollectionConfig{
		Dimension: dim,
		Metric:    "cosine",
		HNSW:      vecmodel.DefaultHNSWConfig(),
		Storage:   vecmodel.StorageMemory,
	}
}

func shardedConfig(dim int) vecmodel.CollectionConfig {
	cfg := denseConfig(dim)
	cfg.Sharding = &vecmodel.ShardingConfig{ShardCount: 2, VirtualNodesPerShard: 8, RebalanceThreshold: 0.5}
	return cfg
}

func TestCreateCollectionRejectsDuplicate(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(4))))
	err := eng.CreateCollection("docs", denseConfig(4))
	require.Error(t, toErr(err))
	assert.Equal(t, vecerr.CollectionAlreadyExists, err.Kind)
}

func toErr(e *vecerr.Error) error {
	if e == nil {
		return nil
	}
	return e
}

func TestUpsertGetDeleteRoundTrip(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(3))))

	_, err := eng.Upsert("docs", []vecmodel.Vector{{ID: "a", Data: []float32{1, 0, 0}}})
	require.NoError(t, toErr(err))

	v, err := eng.Get("docs", "a")
	require.NoError(t, toErr(err))
	assert.Equal(t, "a", v.ID)

	require.NoError(t, toErr(eng.Delete("docs", "a")))
	_, err = eng.Get("docs", "a")
	require.Error(t, toErr(err))
	assert.Equal(t, vecerr.VectorNotFound, err.Kind)
}

func TestSearchDenseAgainstPlainCollection(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(2))))
	_, err := eng.Upsert("docs", []vecmodel.Vector{
		{ID: "close", Data: []float32{1, 0}},
		{ID: "far", Data: []float32{0, 1}},
	})
	require.NoError(t, toErr(err))

	results, err := eng.SearchDense(context.Background(), "docs", []float32{1, 0}, 1, 0)
	require.NoError(t, toErr(err))
	require.Len(t, results, 1)
	assert.Equal(t, "close", results[0].ID)
}

func TestSearchShardsRequiresShardedCollection(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(2))))
	_, err := eng.SearchShards(context.Background(), "docs", []float32{1, 0}, 1, nil)
	require.Error(t, toErr(err))
	assert.Equal(t, vecerr.InvalidConfiguration, err.Kind)
}

func TestSearchShardsAgainstShardedCollection(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("sharded", shardedConfig(2))))
	vectors := make([]vecmodel.Vector, 0, 20)
	for i := 0; i < 20; i++ {
		vectors = append(vectors, vecmodel.Vector{ID: idFor(i), Data: []float32{float32(i), 0}})
	}
	_, err := eng.Upsert("sharded", vectors)
	require.NoError(t, toErr(err))

	results, err := eng.SearchShards(context.Background(), "sharded", []float32{0, 0}, 3, nil)
	require.NoError(t, toErr(err))
	assert.Len(t, results, 3)
}

func idFor(i int) string {
	return "v" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestSearchSparseAndHybridFusion(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(2))))

	_, err := eng.Upsert("docs", []vecmodel.Vector{
		{ID: "a", Data: []float32{1, 0}, Sparse: &vecmodel.SparseVector{Indices: []uint32{1, 2}, Values: []float32{1, 1}}},
		{ID: "b", Data: []float32{0, 1}, Sparse: &vecmodel.SparseVector{Indices: []uint32{2, 3}, Values: []float32{1, 1}}},
	})
	require.NoError(t, toErr(err))

	sparseResults, err := eng.SearchSparse("docs", &vecmodel.SparseVector{Indices: []uint32{1, 2}, Values: []float32{1, 1}}, 2)
	require.NoError(t, toErr(err))
	require.NotEmpty(t, sparseResults)
	assert.Equal(t, "a", sparseResults[0].ID)

	hybridResults, err := eng.SearchHybrid(context.Background(), "docs", HybridRequest{
		DenseQuery:  []float32{1, 0},
		SparseQuery: &vecmodel.SparseVector{Indices: []uint32{1, 2}, Values: []float32{1, 1}},
		Algorithm:   hybrid.RRF,
		DenseK:      2,
		SparseK:     2,
		FinalK:      2,
	})
	require.NoError(t, toErr(err))
	assert.NotEmpty(t, hybridResults)
}

func TestAliasResolutionAndCollision(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(2))))
	require.NoError(t, toErr(eng.CreateAlias("prod", "docs")))

	_, err := eng.Upsert("prod", []vecmodel.Vector{{ID: "a", Data: []float32{1, 0}}})
	require.NoError(t, toErr(err))

	v, err := eng.Get("docs", "a")
	require.NoError(t, toErr(err))
	assert.Equal(t, "a", v.ID)

	assert.Contains(t, eng.ListAliases(), "prod")
	err = eng.CreateAlias("docs", "docs")
	require.Error(t, toErr(err))
}

func TestDeleteCollectionRemovesAliases(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(2))))
	require.NoError(t, toErr(eng.CreateAlias("prod", "docs")))

	require.NoError(t, toErr(eng.DeleteCollection("docs")))
	assert.Empty(t, eng.ListAliases())
}

func TestEmbedDelegatesToConfiguredPort(t *testing.T) {
	eng := New(nil, embedport.NewDeterministic(4), nil)
	vec, err := eng.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbedWithoutPortConfiguredFails(t *testing.T) {
	eng := New(nil, nil, nil)
	_, err := eng.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestFilesSurfaceOverIndexedChunks(t *testing.T) {
	eng := New(nil, embedport.NewDeterministic(4), nil)
	require.NoError(t, toErr(eng.CreateCollection("repo", denseConfig(4))))
	_, err := eng.Upsert("repo", []vecmodel.Vector{
		{ID: "repo/main.go#0", Data: []float32{1, 0, 0, 0}, Metadata: map[string]any{
			"file_path": "main.go", "chunk_index": 0, "content": "package main\n",
		}},
	})
	require.NoError(t, toErr(err))

	ops, ferr := eng.Files("repo")
	require.NoError(t, toErr(ferr))
	content, cerr := ops.GetFileContent("main.go", 1024)
	require.Nil(t, cerr)
	assert.Contains(t, content, "package main")
}

func TestSnapshotCreateListDeleteRestore(t *testing.T) {
	store, serr := snapshot.Open(t.TempDir())
	require.NoError(t, toErr(serr))
	defer store.Close()

	eng := New(nil, nil, store)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(2))))
	_, err := eng.Upsert("docs", []vecmodel.Vector{{ID: "a", Data: []float32{1, 0}}})
	require.NoError(t, toErr(err))

	summary, serr2 := eng.CreateSnapshot(nil)
	require.NoError(t, toErr(serr2))

	list, serr3 := eng.ListSnapshots()
	require.NoError(t, toErr(serr3))
	require.Len(t, list, 1)
	assert.Equal(t, summary.ID, list[0].ID)

	require.NoError(t, toErr(eng.DeleteCollection("docs")))
	require.NoError(t, toErr(eng.RestoreSnapshot(summary.ID)))
	v, gerr := eng.Get("docs", "a")
	require.NoError(t, toErr(gerr))
	assert.Equal(t, "a", v.ID)

	require.NoError(t, toErr(eng.DeleteSnapshot(summary.ID)))
}

func TestSaveAndLoadAliasesRoundTrip(t *testing.T) {
	root := t.TempDir()

	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(2))))
	require.NoError(t, toErr(eng.CreateAlias("prod", "docs")))
	require.NoError(t, toErr(eng.SaveAliases(root)))

	restored := New(nil, nil, nil)
	require.NoError(t, toErr(restored.LoadAliases(root)))
	assert.Equal(t, []string{"prod"}, restored.ListAliases())
}

func TestLoadAliasesMissingFileIsNoop(t *testing.T) {
	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.LoadAliases(t.TempDir())))
	assert.Empty(t, eng.ListAliases())
}

func TestSnapshotOperationsDisabledWithoutStore(t *testing.T) {
	eng := New(nil, nil, nil)
	_, err := eng.CreateSnapshot(nil)
	require.Error(t, toErr(err))
}

func TestSaveAndLoadCollectionRoundTrip(t *testing.T) {
	root := t.TempDir()

	eng := New(nil, nil, nil)
	require.NoError(t, toErr(eng.CreateCollection("docs", denseConfig(2))))
	_, err := eng.Upsert("docs", []vecmodel.Vector{
		{ID: "a", Data: []float32{1, 0}},
		{ID: "b", Data: []float32{0, 1}},
	})
	require.NoError(t, toErr(err))
	require.NoError(t, toErr(eng.SaveCollection("docs", root)))

	restored := New(nil, nil, nil)
	require.NoError(t, toErr(restored.LoadCollection("docs", root)))
	vectors, gerr := restored.GetAll("docs")
	require.NoError(t, toErr(gerr))
	assert.Len(t, vectors, 2)
}
