package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantari/vecengine/pkg/vecmodel"
	"github.com/vantari/vecengine/pkg/vmath"
)

type fakeCollection struct {
	name    string
	config  vecmodel.CollectionConfig
	vectors []vecmodel.Vector
	meta    vecmodel.CollectionMetadata
}

func (f fakeCollection) Name() string                          { return f.name }
func (f fakeCollection) Config() vecmodel.CollectionConfig     { return f.config }
func (f fakeCollection) GetAllVectors() []vecmodel.Vector      { return f.vectors }
func (f fakeCollection) Metadata() vecmodel.CollectionMetadata { return f.meta }

func testCollection() fakeCollection {
	cfg := vecmodel.CollectionConfig{Dimension: 4, Metric: vmath.Cosine, HNSW: vecmodel.DefaultHNSWConfig()}
	return fakeCollection{
		name:   "col1",
		config: cfg,
		vectors: []vecmodel.Vector{
			{ID: "a", Data: []float32{1, 0, 0, 0}, Payload: vecmodel.Payload{"k": "v"}},
			{ID: "b", Data: []float32{0, 1, 0, 0}},
		},
		meta: vecmodel.CollectionMetadata{Name: "col1", VectorCount: 2, Config: cfg},
	}
}

func TestCreateListGetDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.Nil(t, err)
	defer store.Close()

	summary, cerr := store.Create([]CollectionSource{testCollection()})
	require.Nil(t, cerr)
	assert.NotEmpty(t, summary.ID)
	assert.Greater(t, summary.SizeBytes, int64(0))

	list, lerr := store.List()
	require.Nil(t, lerr)
	require.Len(t, list, 1)
	assert.Equal(t, summary.ID, list[0].ID)

	manifest, gerr := store.Get(summary.ID)
	require.Nil(t, gerr)
	require.Len(t, manifest.Collections, 1)
	assert.Equal(t, "col1", manifest.Collections[0].Name)
	assert.Len(t, manifest.Collections[0].Vectors, 2)
	assert.Equal(t, "v", manifest.Collections[0].Vectors[0].Payload["k"])

	require.Nil(t, store.Delete(summary.ID))
	_, gerr2 := store.Get(summary.ID)
	require.NotNil(t, gerr2)
}

func TestImportRejectsEmptyPayload(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.Nil(t, err)
	defer store.Close()

	_, ierr := store.Import(nil)
	require.NotNil(t, ierr)
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.Nil(t, err)
	defer store.Close()

	summary, cerr := store.Create([]CollectionSource{testCollection()})
	require.Nil(t, cerr)

	data, eerr := store.Export(summary.ID)
	require.Nil(t, eerr)
	require.NotEmpty(t, data)

	imported, ierr := store.Import(data)
	require.Nil(t, ierr)
	assert.NotEqual(t, summary.ID, imported.ID)

	manifest, gerr := store.Get(imported.ID)
	require.Nil(t, gerr)
	assert.Len(t, manifest.Collections, 1)
}
