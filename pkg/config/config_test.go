package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantari/vecengine/pkg/cluster"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.Nil(t, cfg.Validate())
}

func TestLoadConfigAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vecengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  type: memory
  root_path: /tmp/vecdata
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "/tmp/vecdata", cfg.Storage.RootPath)
	assert.Equal(t, 4, cfg.Batch.MaxWorkers) // untouched by the file, defaults preserved
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/vecengine.yaml")
	require.Error(t, err)
}

func TestLoadFromEnvOrFileFallsBackToDefaultsOnMissingFile(t *testing.T) {
	cfg := LoadFromEnvOrFile("/nonexistent/path/vecengine.yaml")
	assert.Equal(t, "mmap", cfg.Storage.Type)
}

func TestLoadFromEnvOrFileEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vecengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  type: memory
batch:
  max_workers: 2
`), 0644))

	t.Setenv("VECENGINE_STORAGE_TYPE", "mmap")
	t.Setenv("VECENGINE_BATCH_MAX_WORKERS", "9")

	cfg := LoadFromEnvOrFile(path)
	assert.Equal(t, "mmap", cfg.Storage.Type)
	assert.Equal(t, 9, cfg.Batch.MaxWorkers)
}

func TestValidateRejectsUnknownStorageType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "postgres"
	require.NotNil(t, cfg.Validate())
}

func TestValidateRejectsUnknownQuantizationMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quantization.Mode = "pq4"
	require.NotNil(t, cfg.Validate())
}

func TestValidateDelegatesClusterChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster.Enabled = true
	cfg.Storage.Type = "memory" // cluster mode requires mmap
	require.NotNil(t, cfg.Validate())
}

func TestToBatchConfigProjectsFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.MaxWorkers = 8
	cfg.Batch.OperationTimeout = 5
	bc := cfg.ToBatchConfig()
	assert.Equal(t, 8, bc.MaxWorkers)
	assert.Equal(t, 5*time.Second, bc.OperationTimeout)
	assert.True(t, bc.EnableParallel)
}

func TestToClusterConfigMapsStorageType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "mmap"
	cc := cfg.ToClusterConfig()
	assert.Equal(t, cluster.StorageMmap, cc.StorageType)

	cfg.Storage.Type = "memory"
	cc2 := cfg.ToClusterConfig()
	assert.Equal(t, cluster.StorageMemory, cc2.StorageType)
}
