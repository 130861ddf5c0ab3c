// Package snapshot implements the snapshot manager of spec.md §4.12:
// point-in-time serialization of one or more collections, with a
// badger-backed manifest for create/list/delete/restore/import.
package snapshot

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// CollectionSnapshot is the persisted per-collection payload. The HNSW
// graph itself is not byte-serialized; restore replays Vectors through a
// fresh index built from Config (including its HNSW seed). Vectors are in
// GetAllVectors order, not the original insert order, so the rebuilt graph
// holds the same vectors but its shape can differ — see DESIGN.md's
// resolution of this engineering tradeoff.
type CollectionSnapshot struct {
	Name     string
	Config   vecmodel.CollectionConfig
	Vectors  []vecmodel.Vector
	Metadata vecmodel.CollectionMetadata
}

// Manifest is one named snapshot: one or more collection snapshots plus
// the envelope metadata create_snapshot() returns.
type Manifest struct {
	ID          string
	CreatedAt   time.Time
	SizeBytes   int64
	Collections []CollectionSnapshot
}

// Summary is the lightweight listing shape, avoiding a full manifest
// decode for list_snapshots().
type Summary struct {
	ID        string
	CreatedAt time.Time
	SizeBytes int64
}

func init() {
	// Payload values are arbitrary JSON-shaped data (vecmodel.Payload is
	// map[string]any); gob needs every concrete type that flows through an
	// any-typed field registered up front.
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

const manifestKeyPrefix = "snapshot:"

func manifestKey(id string) []byte {
	return []byte(manifestKeyPrefix + id)
}

// Store persists snapshot manifests in a badger database, keyed by
// snapshot id.
type Store struct {
	db *badger.DB
}

// Open creates or opens a badger-backed snapshot store rooted at dir.
func Open(dir string) (*Store, *vecerr.Error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, vecerr.Wrap(vecerr.IOErr, err, "opening snapshot store")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying badger handles.
func (s *Store) Close() error {
	return s.db.Close()
}

// CollectionSource supplies the live collections a snapshot should
// capture, keeping this package decoupled from pkg/store/pkg/shard.
type CollectionSource interface {
	Name() string
	Config() vecmodel.CollectionConfig
	GetAllVectors() []vecmodel.Vector
	Metadata() vecmodel.CollectionMetadata
}

// Create serializes the given collections into a new manifest (spec.md
// §4.12: "atomic serialization of all (or named) collections with their
// configs, vectors, HNSW graph, and metadata").
func (s *Store) Create(collections []CollectionSource) (Summary, *vecerr.Error) {
	id := uuid.NewString()
	manifest := Manifest{
		ID:        id,
		CreatedAt: time.Now(),
	}
	for _, c := range collections {
		manifest.Collections = append(manifest.Collections, CollectionSnapshot{
			Name:     c.Name(),
			Config:   c.Config(),
			Vectors:  c.GetAllVectors(),
			Metadata: c.Metadata(),
		})
	}

	// Re-encode until SizeBytes equals the length of the encoding that
	// carries it (gob omits a zero SizeBytes, so the first pass is
	// shorter), so a restored manifest's reported size matches what was
	// actually written.
	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := gob.NewEncoder(&buf).Encode(manifest); err != nil {
			return Summary{}, vecerr.Wrap(vecerr.SerializationError, err, "encoding snapshot manifest")
		}
		if int64(buf.Len()) == manifest.SizeBytes {
			break
		}
		manifest.SizeBytes = int64(buf.Len())
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(id), buf.Bytes())
	}); err != nil {
		return Summary{}, vecerr.Wrap(vecerr.IOErr, err, "persisting snapshot manifest")
	}

	return Summary{ID: id, CreatedAt: manifest.CreatedAt, SizeBytes: manifest.SizeBytes}, nil
}

// List returns all stored snapshots as lightweight summaries.
func (s *Store) List() ([]Summary, *vecerr.Error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(manifestKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			var m Manifest
			if decodeErr := item.Value(func(val []byte) error {
				return gob.NewDecoder(bytes.NewReader(val)).Decode(&m)
			}); decodeErr != nil {
				return decodeErr
			}
			out = append(out, Summary{ID: m.ID, CreatedAt: m.CreatedAt, SizeBytes: m.SizeBytes})
		}
		return nil
	})
	if err != nil {
		return nil, vecerr.Wrap(vecerr.IOErr, err, "listing snapshots")
	}
	return out, nil
}

// Get retrieves the full manifest for a snapshot id.
func (s *Store) Get(id string) (Manifest, *vecerr.Error) {
	var m Manifest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&m)
		})
	})
	if err == badger.ErrKeyNotFound {
		return Manifest{}, vecerr.New(vecerr.SnapshotInvalid, "snapshot not found").WithID(id)
	}
	if err != nil {
		return Manifest{}, vecerr.Wrap(vecerr.IOErr, err, "reading snapshot manifest").WithID(id)
	}
	return m, nil
}

// Delete removes a snapshot manifest. A no-op if the id is unknown.
func (s *Store) Delete(id string) *vecerr.Error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(manifestKey(id))
	}); err != nil {
		return vecerr.Wrap(vecerr.IOErr, err, "deleting snapshot manifest").WithID(id)
	}
	return nil
}

// Import validates a non-empty payload and reconstructs a Manifest from
// raw gob-encoded bytes (spec.md §4.12's import_snapshot), persisting it
// under a freshly-minted id so re-importing the same export never
// collides with the original.
func (s *Store) Import(payload []byte) (Summary, *vecerr.Error) {
	if len(payload) == 0 {
		return Summary{}, vecerr.New(vecerr.SnapshotInvalid, "import payload is empty")
	}
	var m Manifest
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&m); err != nil {
		return Summary{}, vecerr.Wrap(vecerr.DeserializationError, err, "decoding imported snapshot")
	}
	m.ID = uuid.NewString()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return Summary{}, vecerr.Wrap(vecerr.SerializationError, err, "re-encoding imported snapshot")
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(m.ID), buf.Bytes())
	}); err != nil {
		return Summary{}, vecerr.Wrap(vecerr.IOErr, err, "persisting imported snapshot")
	}
	return Summary{ID: m.ID, CreatedAt: m.CreatedAt, SizeBytes: int64(buf.Len())}, nil
}

// Export serializes a stored manifest back to raw bytes, the counterpart
// to Import.
func (s *Store) Export(id string) ([]byte, *vecerr.Error) {
	m, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if encErr := gob.NewEncoder(&buf).Encode(m); encErr != nil {
		return nil, vecerr.Wrap(vecerr.SerializationError, encErr, "encoding snapshot export")
	}
	return buf.Bytes(), nil
}
