package vecengine

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/vantari/vecengine/pkg/diskstore"
	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// segmentName is the fixed diskstore segment key every collection is
// stored under; rooting one diskstore.Store per collection directory
// means the resulting blob is "<dataRoot>/collections/<name>/vectors_vectors.bin"
// rather than a literal "vectors.bin" — this reuses pkg/diskstore's
// existing segment-naming convention instead of a parallel one (see
// DESIGN.md).
const segmentName = "vectors"

func collectionDir(dataRoot, name string) string {
	return filepath.Join(dataRoot, "collections", name)
}

// SaveCollection persists collection's config, vectors, and metadata
// under dataRoot/collections/<name>/ (spec.md §6's persisted state
// layout): config.json and metadata.json as plain JSON, vectors via
// pkg/diskstore's compressed, memory-mappable segment blob.
func (e *Engine) SaveCollection(collection, dataRoot string) *vecerr.Error {
	c, err := e.resolve(collection)
	if err != nil {
		return err
	}
	dir := collectionDir(dataRoot, collection)
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return vecerr.Wrap(vecerr.IOErr, mkErr, "creating collection directory")
	}

	config := c.dense.Config()
	if writeErr := writeJSON(filepath.Join(dir, "config.json"), config); writeErr != nil {
		return writeErr
	}
	if writeErr := writeJSON(filepath.Join(dir, "metadata.json"), c.dense.Metadata()); writeErr != nil {
		return writeErr
	}

	ds, dsErr := diskstore.New(dir, config.Compression)
	if dsErr != nil {
		return dsErr
	}
	return ds.StoreVectors(segmentName, c.dense.GetAllVectors())
}

// LoadCollection reconstructs a collection from dataRoot/collections/<name>/
// (the SaveCollection layout), replaying its vectors through
// CreateCollection + Upsert.
func (e *Engine) LoadCollection(collection, dataRoot string) *vecerr.Error {
	dir := collectionDir(dataRoot, collection)

	var config vecmodel.CollectionConfig
	if readErr := readJSON(filepath.Join(dir, "config.json"), &config); readErr != nil {
		return readErr
	}

	if !e.collectionExists(collection) {
		if cerr := e.CreateCollection(collection, config); cerr != nil {
			return cerr
		}
	}

	ds, dsErr := diskstore.New(dir, config.Compression)
	if dsErr != nil {
		return dsErr
	}
	vectors, loadErr := ds.LoadVectors(segmentName)
	if loadErr != nil {
		return loadErr
	}
	_, upsertErr := e.Upsert(collection, vectors)
	return upsertErr
}

// SaveAliases persists the alias table as dataRoot/aliases.json. spec.md
// §6 describes a badger-backed index for aliases and snapshot manifests;
// snapshot manifests already get one via pkg/snapshot.Store, but the
// alias table is small and changes rarely, so a plain JSON file mirrors
// config.json/metadata.json's treatment rather than standing up a second
// badger database for a handful of key/value pairs (see DESIGN.md).
func (e *Engine) SaveAliases(dataRoot string) *vecerr.Error {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return vecerr.Wrap(vecerr.IOErr, err, "creating data root")
	}
	return writeJSON(filepath.Join(dataRoot, "aliases.json"), e.aliases.All())
}

// LoadAliases restores the alias table from dataRoot/aliases.json,
// written by SaveAliases. A missing file is not an error — a fresh data
// root simply has no aliases yet.
func (e *Engine) LoadAliases(dataRoot string) *vecerr.Error {
	path := filepath.Join(dataRoot, "aliases.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	var entries map[string]string
	if err := readJSON(path, &entries); err != nil {
		return err
	}
	e.aliases.LoadAll(entries)
	return nil
}

func writeJSON(path string, v any) *vecerr.Error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return vecerr.Wrap(vecerr.SerializationError, err, "encoding "+filepath.Base(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return vecerr.Wrap(vecerr.IOErr, err, "writing "+filepath.Base(path))
	}
	return nil
}

func readJSON(path string, v any) *vecerr.Error {
	data, err := os.ReadFile(path)
	if err != nil {
		return vecerr.Wrap(vecerr.IOErr, err, "reading "+filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return vecerr.Wrap(vecerr.DeserializationError, err, "decoding "+filepath.Base(path))
	}
	return nil
}
