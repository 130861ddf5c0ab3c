// Package config loads vecengine's top-level configuration: a YAML
// document matching spec.md §6's abstract config surface, with
// VECENGINE_*-prefixed environment variables layered on top. Mirrors
// the teacher's apoc.LoadConfig/LoadFromEnv/LoadFromEnvOrFile two-step
// pattern (config file first, environment overrides second).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vantari/vecengine/pkg/batch"
	"github.com/vantari/vecengine/pkg/cluster"
	"github.com/vantari/vecengine/pkg/filewatch"
	"github.com/vantari/vecengine/pkg/vecerr"
	"github.com/vantari/vecengine/pkg/vecmodel"
)

// CompressionSettings mirrors spec.md §6's storage.compression block.
type CompressionSettings struct {
	Enabled        bool   `yaml:"enabled"`
	ThresholdBytes int    `yaml:"threshold_bytes"`
	Algorithm      string `yaml:"algorithm"`
}

// StorageSettings mirrors spec.md §6's storage block.
type StorageSettings struct {
	Type        string              `yaml:"type"` // memory|mmap
	RootPath    string              `yaml:"root_path"`
	Compression CompressionSettings `yaml:"compression"`
}

// ClusterMemorySettings mirrors spec.md §6's cluster.memory block.
type ClusterMemorySettings struct {
	MaxCacheMemoryBytes   int64 `yaml:"max_cache_memory_bytes"`
	CacheWarningThreshold int   `yaml:"cache_warning_threshold"`
	EnforceMmapStorage    bool  `yaml:"enforce_mmap_storage"`
	DisableFileWatcher    bool  `yaml:"disable_file_watcher"`
	StrictValidation      bool  `yaml:"strict_validation"`
}

// ClusterSettings mirrors spec.md §6's cluster block.
type ClusterSettings struct {
	Enabled bool                  `yaml:"enabled"`
	NodeID  string                `yaml:"node_id"`
	Servers []string              `yaml:"servers"`
	Memory  ClusterMemorySettings `yaml:"memory"`
}

// FileWatcherSettings mirrors spec.md §6's file_watcher block.
type FileWatcherSettings struct {
	Enabled        bool     `yaml:"enabled"`
	Roots          []string `yaml:"roots"`
	DebounceMs     int      `yaml:"debounce_ms"`
	CollectionName string   `yaml:"collection_name"`
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
}

// GPUSettings mirrors spec.md §6's gpu block.
type GPUSettings struct {
	Enabled       bool   `yaml:"enabled"`
	DeviceID      int    `yaml:"device_id"`
	MemoryLimitMB int64  `yaml:"memory_limit_mb"`
	Backend       string `yaml:"backend"` // auto|metal|dx12|vulkan|cuda|cpu
}

// BatchSettings mirrors spec.md §6's batch block.
type BatchSettings struct {
	MaxWorkers       int `yaml:"max_workers"`
	BatchSize        int `yaml:"batch_size"`
	MaxRetries       int `yaml:"max_retries"`
	OperationTimeout int `yaml:"operation_timeout_seconds"`
	MemoryLimitMB    int `yaml:"memory_limit_mb"`
}

// QuantizationSettings mirrors spec.md §6's quantization block.
type QuantizationSettings struct {
	Mode string `yaml:"mode"` // none|sq8
}

// Config is the root document loaded from YAML, matching spec.md §6's
// "Config surface (abstract)" verbatim at the top level.
type Config struct {
	Storage      StorageSettings      `yaml:"storage"`
	Cluster      ClusterSettings      `yaml:"cluster"`
	FileWatcher  FileWatcherSettings  `yaml:"file_watcher"`
	GPU          GPUSettings          `yaml:"gpu"`
	Batch        BatchSettings        `yaml:"batch"`
	Quantization QuantizationSettings `yaml:"quantization"`
}

// DefaultConfig returns the configuration a fresh, non-clustered,
// non-GPU, non-watched engine starts with.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageSettings{
			Type:     "mmap",
			RootPath: "./data",
			Compression: CompressionSettings{
				Enabled:        false,
				ThresholdBytes: 4096,
				Algorithm:      "zstd",
			},
		},
		Cluster: ClusterSettings{
			Enabled: false,
			Memory: ClusterMemorySettings{
				MaxCacheMemoryBytes:   1 << 30,
				CacheWarningThreshold: 80,
				EnforceMmapStorage:    true,
				DisableFileWatcher:    true,
				StrictValidation:      true,
			},
		},
		FileWatcher: FileWatcherSettings{
			Enabled:    false,
			DebounceMs: 300,
		},
		GPU: GPUSettings{
			Enabled:       false,
			MemoryLimitMB: 4096,
			Backend:       "auto",
		},
		Batch: BatchSettings{
			MaxWorkers:       4,
			BatchSize:        64,
			MaxRetries:       2,
			OperationTimeout: 10,
		},
		Quantization: QuantizationSettings{Mode: "none"},
	}
}

// LoadConfig reads and parses a YAML document from path, applying
// DefaultConfig for any field the document omits.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnvOrFile loads config from path (falling back to defaults if
// the file is absent or unreadable), then overrides with VECENGINE_*
// environment variables, following the teacher's LoadFromEnvOrFile
// precedence: environment beats file, file beats built-in defaults.
func LoadFromEnvOrFile(path string) *Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		cfg = DefaultConfig()
	}
	applyEnvOverrides(cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VECENGINE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("VECENGINE_STORAGE_ROOT_PATH"); v != "" {
		cfg.Storage.RootPath = v
	}
	if v := os.Getenv("VECENGINE_STORAGE_COMPRESSION_ENABLED"); v != "" {
		cfg.Storage.Compression.Enabled = parseBool(v, cfg.Storage.Compression.Enabled)
	}
	if v := os.Getenv("VECENGINE_STORAGE_COMPRESSION_THRESHOLD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Compression.ThresholdBytes = n
		}
	}

	if v := os.Getenv("VECENGINE_CLUSTER_ENABLED"); v != "" {
		cfg.Cluster.Enabled = parseBool(v, cfg.Cluster.Enabled)
	}
	if v := os.Getenv("VECENGINE_CLUSTER_NODE_ID"); v != "" {
		cfg.Cluster.NodeID = v
	}
	if v := os.Getenv("VECENGINE_CLUSTER_SERVERS"); v != "" {
		cfg.Cluster.Servers = splitCSV(v)
	}
	if v := os.Getenv("VECENGINE_CLUSTER_MEMORY_MAX_CACHE_MEMORY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Cluster.Memory.MaxCacheMemoryBytes = n
		}
	}
	if v := os.Getenv("VECENGINE_CLUSTER_MEMORY_CACHE_WARNING_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cluster.Memory.CacheWarningThreshold = n
		}
	}
	if v := os.Getenv("VECENGINE_CLUSTER_MEMORY_STRICT_VALIDATION"); v != "" {
		cfg.Cluster.Memory.StrictValidation = parseBool(v, cfg.Cluster.Memory.StrictValidation)
	}

	if v := os.Getenv("VECENGINE_FILE_WATCHER_ENABLED"); v != "" {
		cfg.FileWatcher.Enabled = parseBool(v, cfg.FileWatcher.Enabled)
	}
	if v := os.Getenv("VECENGINE_FILE_WATCHER_ROOTS"); v != "" {
		cfg.FileWatcher.Roots = splitCSV(v)
	}
	if v := os.Getenv("VECENGINE_FILE_WATCHER_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FileWatcher.DebounceMs = n
		}
	}
	if v := os.Getenv("VECENGINE_FILE_WATCHER_COLLECTION_NAME"); v != "" {
		cfg.FileWatcher.CollectionName = v
	}

	if v := os.Getenv("VECENGINE_GPU_ENABLED"); v != "" {
		cfg.GPU.Enabled = parseBool(v, cfg.GPU.Enabled)
	}
	if v := os.Getenv("VECENGINE_GPU_DEVICE_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GPU.DeviceID = n
		}
	}
	if v := os.Getenv("VECENGINE_GPU_MEMORY_LIMIT_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.GPU.MemoryLimitMB = n
		}
	}
	if v := os.Getenv("VECENGINE_GPU_BACKEND"); v != "" {
		cfg.GPU.Backend = v
	}

	if v := os.Getenv("VECENGINE_BATCH_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.MaxWorkers = n
		}
	}
	if v := os.Getenv("VECENGINE_BATCH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.BatchSize = n
		}
	}
	if v := os.Getenv("VECENGINE_BATCH_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.MaxRetries = n
		}
	}
	if v := os.Getenv("VECENGINE_BATCH_OPERATION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.OperationTimeout = n
		}
	}

	if v := os.Getenv("VECENGINE_QUANTIZATION_MODE"); v != "" {
		cfg.Quantization.Mode = v
	}
}

func parseBool(s string, defaultVal bool) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultVal
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks the loaded configuration for internal consistency,
// delegating cluster-mode checks to pkg/cluster.Validate.
func (c *Config) Validate() *vecerr.Error {
	switch c.Storage.Type {
	case "memory", "mmap":
	default:
		return vecerr.Newf(vecerr.InvalidConfiguration, "unknown storage.type %q", c.Storage.Type)
	}
	switch c.Quantization.Mode {
	case "none", "sq8":
	default:
		return vecerr.Newf(vecerr.InvalidConfiguration, "unknown quantization.mode %q", c.Quantization.Mode)
	}
	if res := cluster.Validate(c.ToClusterConfig()); !res.OK() {
		return vecerr.Newf(vecerr.ClusterValidation, "cluster configuration invalid: %s", res.Violations[0].Error())
	}
	return nil
}

// ToClusterConfig projects the loaded document onto pkg/cluster.Config.
func (c *Config) ToClusterConfig() cluster.Config {
	storageType := cluster.StorageMemory
	if c.Storage.Type == "mmap" {
		storageType = cluster.StorageMmap
	}
	return cluster.Config{
		Enabled:               c.Cluster.Enabled,
		StorageType:           storageType,
		CacheMemoryLimitBytes: c.Cluster.Memory.MaxCacheMemoryBytes,
		CacheWarningThreshold: c.Cluster.Memory.CacheWarningThreshold,
		NodeID:                c.Cluster.NodeID,
		Servers:               c.Cluster.Servers,
		FileWatcherEnabled:    c.FileWatcher.Enabled,
		StrictValidation:      c.Cluster.Memory.StrictValidation,
	}
}

// ToBatchConfig projects the loaded document onto pkg/batch.Config.
func (c *Config) ToBatchConfig() batch.Config {
	return batch.Config{
		MaxWorkers:       c.Batch.MaxWorkers,
		BatchSize:        c.Batch.BatchSize,
		MaxRetries:       c.Batch.MaxRetries,
		OperationTimeout: time.Duration(c.Batch.OperationTimeout) * time.Second,
		EnableParallel:   c.Batch.MaxWorkers > 1,
		MemoryLimitMB:    c.Batch.MemoryLimitMB,
	}
}

// ToFileWatchConfig projects the loaded document onto
// pkg/filewatch.Config.
func (c *Config) ToFileWatchConfig() filewatch.Config {
	fw := filewatch.DefaultConfig()
	fw.Roots = c.FileWatcher.Roots
	if c.FileWatcher.DebounceMs > 0 {
		fw.DebounceWindow = time.Duration(c.FileWatcher.DebounceMs) * time.Millisecond
	}
	return fw
}

// ToCompressionConfig projects the loaded document onto
// vecmodel.CompressionConfig.
func (c *Config) ToCompressionConfig() vecmodel.CompressionConfig {
	return vecmodel.CompressionConfig{
		Enabled:        c.Storage.Compression.Enabled,
		ThresholdBytes: c.Storage.Compression.ThresholdBytes,
		Algorithm:      c.Storage.Compression.Algorithm,
	}
}
