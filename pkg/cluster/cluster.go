// Package cluster implements the cluster-mode configuration validator of
// spec.md §4.11: a set of hard constraints that must hold before a node
// may join cluster mode, plus non-fatal advisory warnings.
package cluster

import "fmt"

// ViolationKind enumerates the typed cluster validation errors spec.md
// §4.11 names.
type ViolationKind int

const (
	MemoryStorageNotAllowed ViolationKind = iota
	CacheMemoryLimitTooHigh
	CacheMemoryLimitZero
	FileWatcherEnabled
	NoServersConfigured
	NodeIdMissing
	InvalidCacheWarningThreshold
)

// Violation is a fatal configuration problem; Limit/Max/Threshold are
// populated only for the kinds that carry them.
type Violation struct {
	Kind      ViolationKind
	Limit     int64
	Max       int64
	Threshold int
}

func (v Violation) Error() string {
	switch v.Kind {
	case MemoryStorageNotAllowed:
		return "cluster mode requires storage_type=mmap, not memory"
	case CacheMemoryLimitTooHigh:
		return fmt.Sprintf("cache memory limit %d exceeds maximum %d", v.Limit, v.Max)
	case CacheMemoryLimitZero:
		return "cache memory limit must be greater than zero"
	case FileWatcherEnabled:
		return "file-watcher must be disabled in cluster mode"
	case NoServersConfigured:
		return "at least one server must be configured"
	case NodeIdMissing:
		return "node_id must be set in cluster mode"
	case InvalidCacheWarningThreshold:
		return fmt.Sprintf("cache warning threshold %d out of range [0,100]", v.Threshold)
	default:
		return "cluster configuration violation"
	}
}

// WarningKind enumerates the non-fatal advisories spec.md §4.11 names.
type WarningKind int

const (
	CacheMemoryLimitLow WarningKind = iota
	StrictValidationDisabled
	CacheWarningThresholdMax
	SingleServerCluster
)

func (k WarningKind) String() string {
	switch k {
	case CacheMemoryLimitLow:
		return "cache memory limit is low and may cause frequent evictions"
	case StrictValidationDisabled:
		return "strict validation is disabled for this cluster"
	case CacheWarningThresholdMax:
		return "cache warning threshold is set to its maximum value"
	case SingleServerCluster:
		return "cluster has only a single server configured"
	default:
		return "cluster configuration warning"
	}
}

// maxCacheMemoryBytes is the 10 GiB ceiling spec.md §4.11 names.
const maxCacheMemoryBytes = 10 << 30

// lowCacheMemoryBytes is the threshold below which CacheMemoryLimitLow is
// advised; chosen as a round, conservative floor for a cluster deployment.
const lowCacheMemoryBytes = 64 << 20

// StorageType mirrors vecmodel.StorageKind without importing it, so this
// package stays a leaf validator callable from config loading before the
// rest of the engine is constructed.
type StorageType int

const (
	StorageMemory StorageType = iota
	StorageMmap
)

// Config is the subset of cluster-relevant settings spec.md §4.11
// validates.
type Config struct {
	Enabled               bool
	StorageType           StorageType
	CacheMemoryLimitBytes int64
	CacheWarningThreshold int
	NodeID                string
	Servers               []string
	FileWatcherEnabled    bool
	StrictValidation      bool
}

// Result carries both fatal violations and advisory warnings. Validate
// never partially applies: any non-empty Violations means the
// configuration must be rejected.
type Result struct {
	Violations []Violation
	Warnings   []WarningKind
}

// Validate checks cfg against spec.md §4.11's cluster-mode constraints.
// When cfg.Enabled is false, validation is a no-op (cluster mode is opt-in;
// non-cluster configurations never trigger these constraints).
func Validate(cfg Config) Result {
	var res Result
	if !cfg.Enabled {
		return res
	}

	if cfg.StorageType != StorageMmap {
		res.Violations = append(res.Violations, Violation{Kind: MemoryStorageNotAllowed})
	}
	if cfg.CacheMemoryLimitBytes <= 0 {
		res.Violations = append(res.Violations, Violation{Kind: CacheMemoryLimitZero})
	} else if cfg.CacheMemoryLimitBytes > maxCacheMemoryBytes {
		res.Violations = append(res.Violations, Violation{Kind: CacheMemoryLimitTooHigh, Limit: cfg.CacheMemoryLimitBytes, Max: maxCacheMemoryBytes})
	} else if cfg.CacheMemoryLimitBytes < lowCacheMemoryBytes {
		res.Warnings = append(res.Warnings, CacheMemoryLimitLow)
	}
	if cfg.CacheWarningThreshold < 0 || cfg.CacheWarningThreshold > 100 {
		res.Violations = append(res.Violations, Violation{Kind: InvalidCacheWarningThreshold, Threshold: cfg.CacheWarningThreshold})
	} else if cfg.CacheWarningThreshold == 100 {
		res.Warnings = append(res.Warnings, CacheWarningThresholdMax)
	}
	if cfg.NodeID == "" {
		res.Violations = append(res.Violations, Violation{Kind: NodeIdMissing})
	}
	if len(cfg.Servers) == 0 {
		res.Violations = append(res.Violations, Violation{Kind: NoServersConfigured})
	} else if len(cfg.Servers) == 1 {
		res.Warnings = append(res.Warnings, SingleServerCluster)
	}
	if cfg.FileWatcherEnabled {
		res.Violations = append(res.Violations, Violation{Kind: FileWatcherEnabled})
	}
	if !cfg.StrictValidation {
		res.Warnings = append(res.Warnings, StrictValidationDisabled)
	}

	return res
}

// OK reports whether the configuration has no fatal violations.
func (r Result) OK() bool { return len(r.Violations) == 0 }
