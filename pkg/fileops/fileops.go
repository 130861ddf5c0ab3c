// Package fileops implements the file-content operations of spec.md
// §4.14: reconstructing, listing, summarizing, and searching indexed
// chunks, each chunk carried as a vecmodel.Vector whose Metadata holds
// {file_path, chunk_index, line_start?, line_end?, content}.
package fileops

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// chunkCacheTTL, summaryCacheTTL, and listCacheTTL mirror spec.md §4.14's
// per-cache retention: "file content (10 min), summaries (30 min), file
// lists (5 min)".
const (
	chunkCacheTTL   = 10 * time.Minute
	summaryCacheTTL = 30 * time.Minute
	listCacheTTL    = 5 * time.Minute
	cacheCapacity   = 512
)

// Chunk is the typed view over a vector's file-chunk metadata.
type Chunk struct {
	VectorID   string
	FilePath   string
	ChunkIndex int
	LineStart  int
	LineEnd    int
	Content    string
}

func chunkFromVector(v vecmodel.Vector) (Chunk, bool) {
	if v.Metadata == nil {
		return Chunk{}, false
	}
	path, ok := v.Metadata["file_path"].(string)
	if !ok || path == "" {
		return Chunk{}, false
	}
	c := Chunk{VectorID: v.ID, FilePath: path}
	if idx, ok := v.Metadata["chunk_index"].(int); ok {
		c.ChunkIndex = idx
	} else if f, ok := v.Metadata["chunk_index"].(float64); ok {
		c.ChunkIndex = int(f)
	}
	if ls, ok := v.Metadata["line_start"].(int); ok {
		c.LineStart = ls
	}
	if le, ok := v.Metadata["line_end"].(int); ok {
		c.LineEnd = le
	}
	if content, ok := v.Metadata["content"].(string); ok {
		c.Content = content
	}
	return c, true
}

// Source supplies the chunk vectors of a collection and a dense search
// primitive, keeping this package decoupled from pkg/store/pkg/shard.
type Source interface {
	GetAllVectors() []vecmodel.Vector
	Search(ctx context.Context, query []float32, k int) ([]vecmodel.SearchResult, *vecerr.Error)
}

// EmbedFunc embeds text for get_related_files / search_by_file_type.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Ops provides the file-content operations over one collection's
// indexed chunks, with per-collection LRU/TTL caches invalidated on
// Invalidate (called by the caller on any write to the collection).
type Ops struct {
	source Source
	embed  EmbedFunc

	contentCache *lru.LRU[string, string]
	summaryCache *lru.LRU[string, string]
	listCache    *lru.LRU[string, []FileSummary]
}

// New creates file-content operations over source.
func New(source Source, embed EmbedFunc) *Ops {
	return &Ops{
		source:       source,
		embed:        embed,
		contentCache: lru.NewLRU[string, string](cacheCapacity, nil, chunkCacheTTL),
		summaryCache: lru.NewLRU[string, string](cacheCapacity, nil, summaryCacheTTL),
		listCache:    lru.NewLRU[string, []FileSummary](cacheCapacity, nil, listCacheTTL),
	}
}

// Invalidate clears every cache; callers invoke this on any write to the
// underlying collection (spec.md §4.14: "invalidated on any write").
func (o *Ops) Invalidate() {
	o.contentCache.Purge()
	o.summaryCache.Purge()
	o.listCache.Purge()
}

// ErrPathTraversal is returned for absolute paths, empty paths, or paths
// containing "..".
var ErrPathTraversal = errors.New("fileops: path rejected (absolute, empty, or contains '..')")

func validatePath(path string) error {
	if path == "" {
		return ErrPathTraversal
	}
	if filepath.IsAbs(path) {
		return ErrPathTraversal
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return ErrPathTraversal
		}
	}
	return nil
}

// filePathsByID maps vector ID -> file_path, read from each vector's
// Metadata rather than a SearchResult's Payload: ingestion (chunkFromVector,
// pkg/vecengine's fileWatchTarget.UpsertFile) stores file_path on
// Metadata, and store/shard collections never copy Metadata into
// SearchResult.Payload, so Payload["file_path"] is always empty for
// chunks indexed through the real file-watch pipeline.
func (o *Ops) filePathsByID() map[string]string {
	out := make(map[string]string)
	for _, v := range o.source.GetAllVectors() {
		if c, ok := chunkFromVector(v); ok {
			out[v.ID] = c.FilePath
		}
	}
	return out
}

func (o *Ops) chunksForFile(path string) []Chunk {
	var chunks []Chunk
	for _, v := range o.source.GetAllVectors() {
		c, ok := chunkFromVector(v)
		if ok && c.FilePath == path {
			chunks = append(chunks, c)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	return chunks
}

// GetFileContent gathers all chunks with file_path == path, sorted by
// chunk_index, joined with newline; rejects on size limit or path
// traversal (spec.md §4.14).
func (o *Ops) GetFileContent(path string, maxSizeKB int) (string, *vecerr.Error) {
	if err := validatePath(path); err != nil {
		return "", vecerr.Wrap(vecerr.InvalidPath, err, "validating file path").WithID(path)
	}
	if cached, ok := o.contentCache.Get(path); ok {
		return cached, nil
	}

	chunks := o.chunksForFile(path)
	if len(chunks) == 0 {
		return "", vecerr.New(vecerr.VectorNotFound, "no chunks found for file").WithID(path)
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	content := strings.Join(parts, "\n")
	if maxSizeKB > 0 && len(content) > maxSizeKB*1024 {
		return "", vecerr.Newf(vecerr.FileTooLarge, "file content %d bytes exceeds limit %d KB", len(content), maxSizeKB).WithID(path)
	}

	o.contentCache.Add(path, content)
	return content, nil
}

// FileSummary is one entry of list_files_in_collection's grouped output.
type FileSummary struct {
	FilePath       string
	Type           string
	ChunkCount     int
	SizeEstimateKB float64
}

// ListFilter configures list_files_in_collection (spec.md §4.14).
type ListFilter struct {
	ByType     string
	MinChunks  int
	MaxResults int
	SortBy     string // name, size, chunks, recent
}

// ListFilesInCollection groups vectors by file_path and applies filter.
func (o *Ops) ListFilesInCollection(filter ListFilter) []FileSummary {
	cacheKey := filter.ByType + "|" + filter.SortBy
	if cached, ok := o.listCache.Get(cacheKey); ok {
		return applyListLimits(cached, filter)
	}

	grouped := make(map[string][]Chunk)
	for _, v := range o.source.GetAllVectors() {
		c, ok := chunkFromVector(v)
		if !ok {
			continue
		}
		grouped[c.FilePath] = append(grouped[c.FilePath], c)
	}

	summaries := make([]FileSummary, 0, len(grouped))
	for path, chunks := range grouped {
		size := 0
		for _, c := range chunks {
			size += len(c.Content)
		}
		summaries = append(summaries, FileSummary{
			FilePath:       path,
			Type:           strings.TrimPrefix(filepath.Ext(path), "."),
			ChunkCount:     len(chunks),
			SizeEstimateKB: float64(size) / 1024.0,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].FilePath < summaries[j].FilePath })
	o.listCache.Add(cacheKey, summaries)

	return applyListLimits(summaries, filter)
}

func applyListLimits(summaries []FileSummary, filter ListFilter) []FileSummary {
	out := make([]FileSummary, 0, len(summaries))
	for _, s := range summaries {
		if filter.ByType != "" && s.Type != filter.ByType {
			continue
		}
		if s.ChunkCount < filter.MinChunks {
			continue
		}
		out = append(out, s)
	}
	switch filter.SortBy {
	case "size":
		sort.Slice(out, func(i, j int) bool { return out[i].SizeEstimateKB > out[j].SizeEstimateKB })
	case "chunks":
		sort.Slice(out, func(i, j int) bool { return out[i].ChunkCount > out[j].ChunkCount })
	default: // "name", "recent" (recency is not tracked by this model; falls back to name)
		sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	}
	if filter.MaxResults > 0 && len(out) > filter.MaxResults {
		out = out[:filter.MaxResults]
	}
	return out
}

// SummaryType selects get_file_summary's extraction strategy.
type SummaryType int

const (
	SummaryExtractive SummaryType = iota
	SummaryStructural
	SummaryBoth
)

var keyPointPattern = regexp.MustCompile(`(?i)important|note:|warning:|critical|must|required|TODO|FIXME`)
var headerPattern = regexp.MustCompile(`^#{1,6}\s+.+`)
var sentenceSplit = regexp.MustCompile(`[.!?]\s+`)

// GetFileSummary builds an extractive and/or structural summary of path
// (spec.md §4.14).
func (o *Ops) GetFileSummary(path string, kind SummaryType, maxSentences int) (string, *vecerr.Error) {
	if err := validatePath(path); err != nil {
		return "", vecerr.Wrap(vecerr.InvalidPath, err, "validating file path").WithID(path)
	}
	cacheKey := path + "|" + strings.TrimSpace(string(rune('0'+int(kind))))
	if cached, ok := o.summaryCache.Get(cacheKey); ok {
		return cached, nil
	}

	content, err := o.GetFileContent(path, 0)
	if err != nil {
		return "", err
	}

	var parts []string
	if kind == SummaryExtractive || kind == SummaryBoth {
		parts = append(parts, extractiveSummary(content, maxSentences))
	}
	if kind == SummaryStructural || kind == SummaryBoth {
		parts = append(parts, structuralSummary(content))
	}
	summary := strings.Join(parts, "\n\n")
	o.summaryCache.Add(cacheKey, summary)
	return summary, nil
}

func extractiveSummary(content string, maxSentences int) string {
	sentences := sentenceSplit.Split(content, -1)
	var picked []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) > 20 {
			picked = append(picked, s)
		}
		if maxSentences > 0 && len(picked) >= maxSentences {
			break
		}
	}
	return strings.Join(picked, ". ")
}

func structuralSummary(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if headerPattern.MatchString(trimmed) || keyPointPattern.MatchString(trimmed) {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}

// OrderedChunksResult is get_file_chunks_ordered's page.
type OrderedChunksResult struct {
	Chunks  []Chunk
	Total   int
	HasMore bool
}

// GetFileChunksOrdered paginates ordered chunks, optionally including
// 50-char hints of the neighboring chunks (spec.md §4.14).
func (o *Ops) GetFileChunksOrdered(path string, start, limit int, includeContext bool) OrderedChunksResult {
	chunks := o.chunksForFile(path)
	total := len(chunks)
	if start < 0 {
		start = 0
	}
	if start >= total {
		return OrderedChunksResult{Total: total}
	}
	end := start + limit
	if limit <= 0 || end > total {
		end = total
	}
	page := make([]Chunk, end-start)
	copy(page, chunks[start:end])

	if includeContext {
		for i := range page {
			idx := start + i
			if idx > 0 {
				page[i].Content = hint(chunks[idx-1].Content) + "\n" + page[i].Content
			}
			if idx < total-1 {
				page[i].Content = page[i].Content + "\n" + hint(chunks[idx+1].Content)
			}
		}
	}
	return OrderedChunksResult{Chunks: page, Total: total, HasMore: end < total}
}

func hint(content string) string {
	if len(content) <= 50 {
		return content
	}
	return content[:50]
}

// OutlineNode is one entry of get_project_outline's path trie.
type OutlineNode struct {
	Name     string
	IsDir    bool
	IsKey    bool
	Summary  string
	Children []*OutlineNode
}

var keyFiles = map[string]bool{
	"README": true, "LICENSE": true, "Cargo.toml": true, "package.json": true,
	"pyproject.toml": true, "go.mod": true,
}

// GetProjectOutline builds a path trie over every indexed file, flagging
// key files and optionally attaching extractive summaries (spec.md
// §4.14). maxDepth <= 0 means unlimited.
func (o *Ops) GetProjectOutline(maxDepth int, includeSummaries bool, highlightKeyFiles bool) *OutlineNode {
	root := &OutlineNode{Name: "/", IsDir: true}
	files := o.ListFilesInCollection(ListFilter{})
	for _, f := range files {
		insertPath(root, strings.Split(filepath.ToSlash(f.FilePath), "/"), maxDepth, highlightKeyFiles)
	}
	if includeSummaries {
		attachSummaries(root, o, "")
	}
	return root
}

func insertPath(node *OutlineNode, parts []string, maxDepth int, highlightKeyFiles bool) {
	if len(parts) == 0 {
		return
	}
	if maxDepth > 0 && maxDepth == 1 && len(parts) > 1 {
		return
	}
	name := parts[0]
	var child *OutlineNode
	for _, c := range node.Children {
		if c.Name == name {
			child = c
			break
		}
	}
	if child == nil {
		isDir := len(parts) > 1
		child = &OutlineNode{Name: name, IsDir: isDir, IsKey: highlightKeyFiles && keyFiles[name]}
		node.Children = append(node.Children, child)
	}
	nextDepth := maxDepth
	if nextDepth > 0 {
		nextDepth--
	}
	insertPath(child, parts[1:], nextDepth, highlightKeyFiles)
}

func attachSummaries(node *OutlineNode, o *Ops, path string) {
	if !node.IsDir {
		if summary, err := o.GetFileSummary(path, SummaryExtractive, 2); err == nil {
			node.Summary = summary
		}
		return
	}
	for _, c := range node.Children {
		childPath := c.Name
		if path != "" {
			childPath = path + "/" + c.Name
		}
		attachSummaries(c, o, childPath)
	}
}

// RelatedFile is get_related_files' output entry.
type RelatedFile struct {
	FilePath     string
	AverageScore float64
	Reason       string
}

// GetRelatedFiles embeds the first 1000 chars of sourcePath, searches,
// groups by file_path, averages scores, and filters by threshold (spec.md
// §4.14).
func (o *Ops) GetRelatedFiles(ctx context.Context, sourcePath string, limit int, threshold float64, includeReason bool) ([]RelatedFile, *vecerr.Error) {
	content, err := o.GetFileContent(sourcePath, 0)
	if err != nil {
		return nil, err
	}
	preview := content
	if len(preview) > 1000 {
		preview = preview[:1000]
	}
	embedding, embErr := o.embed(ctx, preview)
	if embErr != nil {
		return nil, vecerr.Wrap(vecerr.SearchFailed, embErr, "embedding source file preview").WithID(sourcePath)
	}

	results, serr := o.source.Search(ctx, embedding, limit*4)
	if serr != nil {
		return nil, serr
	}
	paths := o.filePathsByID()

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range results {
		path := paths[r.ID]
		if path == "" || path == sourcePath {
			continue
		}
		sums[path] += r.Score
		counts[path]++
	}

	var out []RelatedFile
	for path, sum := range sums {
		avg := sum / float64(counts[path])
		if avg < threshold {
			continue
		}
		rf := RelatedFile{FilePath: path, AverageScore: avg}
		if includeReason {
			rf.Reason = "shares semantic content with " + sourcePath
		}
		out = append(out, rf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AverageScore > out[j].AverageScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchByFileType embeds query, searches, and filters matches whose
// file_path extension is in types (spec.md §4.14). When
// returnFullFiles is true, each match's whole reconstructed file content
// replaces the chunk content.
func (o *Ops) SearchByFileType(ctx context.Context, query string, types []string, limit int, returnFullFiles bool) ([]vecmodel.SearchResult, *vecerr.Error) {
	embedding, err := o.embed(ctx, query)
	if err != nil {
		return nil, vecerr.Wrap(vecerr.SearchFailed, err, "embedding query")
	}
	results, serr := o.source.Search(ctx, embedding, limit*4)
	if serr != nil {
		return nil, serr
	}
	paths := o.filePathsByID()

	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.TrimPrefix(strings.ToLower(t), ".")] = true
	}

	var out []vecmodel.SearchResult
	for _, r := range results {
		path := paths[r.ID]
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if len(allowed) > 0 && !allowed[ext] {
			continue
		}
		if returnFullFiles {
			if full, ferr := o.GetFileContent(path, 0); ferr == nil {
				payload := make(vecmodel.Payload, len(r.Payload)+1)
				for k, v := range r.Payload {
					payload[k] = v
				}
				payload["content"] = full
				r.Payload = payload
			}
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
