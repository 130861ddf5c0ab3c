// Package diskstore implements the advanced on-disk storage tier of
// spec.md §4.8: memory-mapped vector segments, rewrite-on-optimize, and a
// stats surface tracking cache/read/write/compaction activity.
package diskstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/mmap"

	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// manifestVersion guards the on-disk blob format; bumped on incompatible
// layout changes.
const manifestVersion = 1

// segmentRecord is the serialized form of one stored vector, gob-encoded
// sequentially into the blob named "<name>_vectors.bin" (spec.md §4.8).
type segmentRecord struct {
	ID      string
	Data    []float32
	Sparse  *vecmodel.SparseVector
	Payload vecmodel.Payload
}

// Stats mirrors the field set spec.md §4.8 names verbatim.
type Stats struct {
	TotalVectors   int64
	TotalSizeBytes int64
	MmapFilesCount int64
	CacheHits      int64
	CacheMisses    int64
	ReadOps        int64
	WriteOps       int64
	CompactionOps  int64
}

// mapping is a cached memory-mapped segment file. It must be closed
// (unmapped) before the file it backs is rewritten.
type mapping struct {
	reader *mmap.ReaderAt
	path   string
}

// Store manages one root directory of per-collection vector segment files.
type Store struct {
	root        string
	compression vecmodel.CompressionConfig

	mu       sync.Mutex
	mappings map[string]*mapping

	totalVectors   atomic.Int64
	totalSizeBytes atomic.Int64
	mmapFilesCount atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	readOps        atomic.Int64
	writeOps       atomic.Int64
	compactionOps  atomic.Int64
}

// New creates a disk store rooted at dir, creating it if absent. Segment
// blobs are compressed per compression when the blob's uncompressed size
// exceeds compression.ThresholdBytes.
func New(dir string, compression vecmodel.CompressionConfig) (*Store, *vecerr.Error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, vecerr.Wrap(vecerr.IOErr, err, "creating disk store root")
	}
	return &Store{root: dir, compression: compression, mappings: make(map[string]*mapping)}, nil
}

// blobFlagCompressed marks byte 4 of the segment file, right after the
// manifest version, indicating the remainder is zstd-compressed.
const blobFlagCompressed = 1

func compressBlob(raw []byte) ([]byte, *vecerr.Error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, vecerr.Wrap(vecerr.SerializationError, err, "creating zstd encoder")
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decompressBlob(compressed []byte) ([]byte, *vecerr.Error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, vecerr.Wrap(vecerr.DeserializationError, err, "creating zstd decoder")
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, vecerr.Wrap(vecerr.DeserializationError, err, "decompressing segment blob")
	}
	return out, nil
}

func (s *Store) segmentPath(name string) string {
	return filepath.Join(s.root, fmt.Sprintf("%s_vectors.bin", name))
}

// StoreVectors rewrites a collection's segment blob (spec.md §4.8:
// "used during optimization and initial persistence"). It writes to a
// temp file and renames atomically into place, matching the WAL
// snapshotting discipline this store's persistence model follows.
func (s *Store) StoreVectors(name string, vectors []vecmodel.Vector) *vecerr.Error {
	path := s.segmentPath(name)

	var payloadBuf bytes.Buffer
	enc := gob.NewEncoder(&payloadBuf)
	records := make([]segmentRecord, len(vectors))
	for i, v := range vectors {
		records[i] = segmentRecord{ID: v.ID, Data: v.Data, Sparse: v.Sparse, Payload: v.Payload}
	}
	if err := enc.Encode(records); err != nil {
		return vecerr.Wrap(vecerr.SerializationError, err, "encoding vector segment")
	}

	payload := payloadBuf.Bytes()
	compressed := byte(0)
	if s.compression.Enabled && len(payload) > s.compression.ThresholdBytes {
		out, cerr := compressBlob(payload)
		if cerr != nil {
			return cerr
		}
		payload = out
		compressed = blobFlagCompressed
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(manifestVersion)); err != nil {
		return vecerr.Wrap(vecerr.SerializationError, err, "writing manifest version")
	}
	buf.WriteByte(compressed)
	buf.Write(payload)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return vecerr.Wrap(vecerr.IOErr, err, "writing temp segment file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return vecerr.Wrap(vecerr.IOErr, err, "renaming segment file into place")
	}

	s.writeOps.Add(1)
	info, statErr := os.Stat(path)
	if statErr == nil {
		s.totalSizeBytes.Add(info.Size())
	}
	s.totalVectors.Add(int64(len(vectors)))
	return nil
}

// LoadVectors memory-maps the segment file on first access and returns the
// deserialized vectors; subsequent calls reuse the cached mapping (spec.md
// §4.8).
func (s *Store) LoadVectors(name string) ([]vecmodel.Vector, *vecerr.Error) {
	path := s.segmentPath(name)

	s.mu.Lock()
	m, cached := s.mappings[name]
	if !cached {
		reader, err := mmap.Open(path)
		if err != nil {
			s.mu.Unlock()
			s.cacheMisses.Add(1)
			return nil, vecerr.Wrap(vecerr.IOErr, err, "mapping segment file").WithID(name)
		}
		m = &mapping{reader: reader, path: path}
		s.mappings[name] = m
		s.mmapFilesCount.Add(1)
		s.cacheMisses.Add(1)
	} else {
		s.cacheHits.Add(1)
	}
	s.mu.Unlock()

	s.readOps.Add(1)
	data := make([]byte, m.reader.Len())
	if _, err := m.reader.ReadAt(data, 0); err != nil {
		return nil, vecerr.Wrap(vecerr.IOErr, err, "reading mapped segment").WithID(name)
	}
	return decodeSegment(data)
}

func decodeSegment(data []byte) ([]vecmodel.Vector, *vecerr.Error) {
	if len(data) < 5 {
		return nil, vecerr.New(vecerr.DeserializationError, "segment file too small")
	}
	buf := bytes.NewReader(data)
	var version uint32
	if err := binary.Read(buf, binary.LittleEndian, &version); err != nil {
		return nil, vecerr.Wrap(vecerr.DeserializationError, err, "reading manifest version")
	}
	if version != manifestVersion {
		return nil, vecerr.Newf(vecerr.DeserializationError, "unsupported segment version %d", version)
	}
	compressedFlag, err := buf.ReadByte()
	if err != nil {
		return nil, vecerr.Wrap(vecerr.DeserializationError, err, "reading compression flag")
	}
	payload := data[5:]
	if compressedFlag == blobFlagCompressed {
		decompressed, derr := decompressBlob(payload)
		if derr != nil {
			return nil, derr
		}
		payload = decompressed
	}
	var records []segmentRecord
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&records); err != nil {
		return nil, vecerr.Wrap(vecerr.DeserializationError, err, "decoding vector segment")
	}
	vectors := make([]vecmodel.Vector, len(records))
	for i, r := range records {
		vectors[i] = vecmodel.Vector{ID: r.ID, Data: r.Data, Sparse: r.Sparse, Payload: r.Payload}
	}
	return vectors, nil
}

// OptimizeStorage drops the cached mapping before rewriting the blob, as
// spec.md §4.8 requires ("must drop the cached mapping before rewriting to
// avoid 'file with a user-mapped section open' on platforms that forbid
// it"), then rewrites with the current vector set.
func (s *Store) OptimizeStorage(name string, vectors []vecmodel.Vector) *vecerr.Error {
	s.mu.Lock()
	if m, ok := s.mappings[name]; ok {
		_ = m.reader.Close()
		delete(s.mappings, name)
		s.mmapFilesCount.Add(-1)
	}
	s.mu.Unlock()

	if err := s.StoreVectors(name, vectors); err != nil {
		return err
	}
	s.compactionOps.Add(1)
	return nil
}

// CloseMapping drops a cached mapping without rewriting, releasing its
// file descriptor (used on collection drop).
func (s *Store) CloseMapping(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.mappings[name]; ok {
		_ = m.reader.Close()
		delete(s.mappings, name)
		s.mmapFilesCount.Add(-1)
	}
}

// Stats returns a point-in-time snapshot of the statistics spec.md §4.8
// names.
func (s *Store) Stats() Stats {
	return Stats{
		TotalVectors:   s.totalVectors.Load(),
		TotalSizeBytes: s.totalSizeBytes.Load(),
		MmapFilesCount: s.mmapFilesCount.Load(),
		CacheHits:      s.cacheHits.Load(),
		CacheMisses:    s.cacheMisses.Load(),
		ReadOps:        s.readOps.Load(),
		WriteOps:       s.writeOps.Load(),
		CompactionOps:  s.compactionOps.Load(),
	}
}
