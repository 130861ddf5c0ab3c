package fileops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

type fakeSource struct {
	vectors []vecmodel.Vector
	results []vecmodel.SearchResult
}

func (f *fakeSource) GetAllVectors() []vecmodel.Vector { return f.vectors }
func (f *fakeSource) Search(ctx context.Context, query []float32, k int) ([]vecmodel.SearchResult, *vecerr.Error) {
	return f.results, nil
}

func chunkVector(id, path string, idx int, content string) vecmodel.Vector {
	return vecmodel.Vector{
		ID:   id,
		Data: []float32{float32(idx), 0, 0, 0},
		Metadata: map[string]any{
			"file_path":   path,
			"chunk_index": idx,
			"content":     content,
		},
	}
}

func fakeEmbed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 0, 0, 0}, nil
}

func newTestOps() (*Ops, *fakeSource) {
	src := &fakeSource{
		vectors: []vecmodel.Vector{
			chunkVector("v1", "docs/readme.md", 1, "Second chunk. This has more than twenty characters."),
			chunkVector("v2", "docs/readme.md", 0, "# Title\nFirst chunk here. It is important to note: read this."),
			chunkVector("v3", "src/main.go", 0, "package main\nfunc main() {}\n"),
		},
	}
	return New(src, fakeEmbed), src
}

func TestGetFileContentJoinsChunksInOrder(t *testing.T) {
	ops, _ := newTestOps()
	content, err := ops.GetFileContent("docs/readme.md", 0)
	require.Nil(t, err)
	assert.Contains(t, content, "# Title")
	assert.True(t, len(content) > 0)
	assert.Equal(t, 0, indexOf(content, "# Title"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestGetFileContentRejectsPathTraversal(t *testing.T) {
	ops, _ := newTestOps()
	_, err := ops.GetFileContent("../etc/passwd", 0)
	require.NotNil(t, err)

	_, err2 := ops.GetFileContent("/etc/passwd", 0)
	require.NotNil(t, err2)

	_, err3 := ops.GetFileContent("", 0)
	require.NotNil(t, err3)
}

func TestGetFileContentEnforcesSizeLimit(t *testing.T) {
	ops, _ := newTestOps()
	_, err := ops.GetFileContent("docs/readme.md", 0) // 0 means unlimited
	require.Nil(t, err)

	ops2, _ := newTestOps()
	_, err2 := ops2.GetFileContent("docs/readme.md", 1) // 1 KB ceiling, well above the small readme content
	require.Nil(t, err2)

	ops3, src3 := newTestOps()
	src3.vectors = []vecmodel.Vector{chunkVector("big", "big.txt", 0, string(make([]byte, 2048)))}
	_, err3 := ops3.GetFileContent("big.txt", 1)
	require.NotNil(t, err3)
	assert.Equal(t, vecerr.FileTooLarge, err3.Kind)
}

func TestGetFileContentCachesResult(t *testing.T) {
	ops, src := newTestOps()
	_, err := ops.GetFileContent("docs/readme.md", 0)
	require.Nil(t, err)

	src.vectors = nil // drop the backing vectors; a cache hit must still succeed
	content, err2 := ops.GetFileContent("docs/readme.md", 0)
	require.Nil(t, err2)
	assert.NotEmpty(t, content)
}

func TestListFilesInCollectionGroupsAndFilters(t *testing.T) {
	ops, _ := newTestOps()
	files := ops.ListFilesInCollection(ListFilter{})
	require.Len(t, files, 2)

	goFiles := ops.ListFilesInCollection(ListFilter{ByType: "go"})
	require.Len(t, goFiles, 1)
	assert.Equal(t, "src/main.go", goFiles[0].FilePath)

	limited := ops.ListFilesInCollection(ListFilter{MaxResults: 1, SortBy: "name"})
	require.Len(t, limited, 1)
}

func TestGetFileSummaryExtractiveAndStructural(t *testing.T) {
	ops, _ := newTestOps()
	extractive, err := ops.GetFileSummary("docs/readme.md", SummaryExtractive, 5)
	require.Nil(t, err)
	assert.NotEmpty(t, extractive)

	structural, err2 := ops.GetFileSummary("docs/readme.md", SummaryStructural, 0)
	require.Nil(t, err2)
	assert.Contains(t, structural, "# Title")
	assert.Contains(t, structural, "note:")
}

func TestGetFileChunksOrderedPaginatesWithContext(t *testing.T) {
	ops, _ := newTestOps()
	page := ops.GetFileChunksOrdered("docs/readme.md", 0, 1, true)
	assert.Equal(t, 2, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Chunks, 1)

	page2 := ops.GetFileChunksOrdered("docs/readme.md", 1, 1, false)
	assert.False(t, page2.HasMore)
	require.Len(t, page2.Chunks, 1)
}

func TestGetProjectOutlineHighlightsKeyFiles(t *testing.T) {
	ops, src := newTestOps()
	src.vectors = append(src.vectors, chunkVector("v4", "go.mod", 0, "module example\n"))
	ops.Invalidate()

	outline := ops.GetProjectOutline(0, false, true)
	require.NotNil(t, outline)

	var found bool
	var walk func(n *OutlineNode)
	walk = func(n *OutlineNode) {
		if n.Name == "go.mod" && n.IsKey {
			found = true
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(outline)
	assert.True(t, found)
}

// Both GetRelatedFiles and SearchByFileType resolve a result's file_path
// via the source's vectors' Metadata, not via SearchResult.Payload — that
// is what the real store/shard Search implementations populate
// (Payload only ever comes from Vector.Payload, never Vector.Metadata).
// src.results below deliberately carries no "file_path" in Payload, so
// these tests fail the way production would if the lookup regressed to
// reading Payload again.
func TestGetRelatedFilesGroupsAndAverages(t *testing.T) {
	ops, src := newTestOps()
	src.vectors = append(src.vectors, chunkVector("v3b", "src/main.go", 1, "more content"))
	src.results = []vecmodel.SearchResult{
		{ID: "v3", Score: 0.9},
		{ID: "v3b", Score: 0.7},
		{ID: "v1", Score: 0.1},
	}
	related, err := ops.GetRelatedFiles(context.Background(), "docs/readme.md", 5, 0.5, true)
	require.Nil(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "src/main.go", related[0].FilePath)
	assert.InDelta(t, 0.8, related[0].AverageScore, 1e-9)
	assert.NotEmpty(t, related[0].Reason)
}

func TestSearchByFileTypeFiltersByExtension(t *testing.T) {
	ops, src := newTestOps()
	src.results = []vecmodel.SearchResult{
		{ID: "v3", Score: 0.9},
		{ID: "v1", Score: 0.8},
	}
	results, err := ops.SearchByFileType(context.Background(), "query", []string{"go"}, 10, false)
	require.Nil(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v3", results[0].ID)
}

// TestSearchByFileTypeThroughRealIngestionPipeline exercises
// chunkFromVector/Metadata end to end via a source built the way
// pkg/vecengine's fileWatchTarget.UpsertFile actually populates vectors,
// rather than a hand-built fakeSource.results, so a regression to reading
// Payload["file_path"] instead of Metadata["file_path"] fails here too.
func TestSearchByFileTypeThroughRealIngestionPipeline(t *testing.T) {
	ingested := []vecmodel.Vector{
		{
			ID:   "repo/main.go#0",
			Data: []float32{1, 0, 0, 0},
			Metadata: map[string]any{
				"file_path": "main.go", "chunk_index": 0, "content": "package main\n",
			},
		},
		{
			ID:   "repo/readme.md#0",
			Data: []float32{0, 1, 0, 0},
			Metadata: map[string]any{
				"file_path": "README.md", "chunk_index": 0, "content": "# docs\n",
			},
		},
	}
	src := &fakeSource{
		vectors: ingested,
		results: []vecmodel.SearchResult{
			{ID: "repo/main.go#0", Score: 0.95},
			{ID: "repo/readme.md#0", Score: 0.5},
		},
	}
	ops := New(src, fakeEmbed)

	results, err := ops.SearchByFileType(context.Background(), "query", []string{"go"}, 10, false)
	require.Nil(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "repo/main.go#0", results[0].ID)
}

func TestInvalidateClearsCaches(t *testing.T) {
	ops, src := newTestOps()
	_, err := ops.GetFileContent("docs/readme.md", 0)
	require.Nil(t, err)

	src.vectors = nil
	ops.Invalidate()

	_, err2 := ops.GetFileContent("docs/readme.md", 0)
	require.NotNil(t, err2)
}
