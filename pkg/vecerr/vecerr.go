// Package vecerr defines the error taxonomy shared across the vector
// engine. The vecengine.Engine collection, vector, search and snapshot
// operations return either nil or a *vecerr.Error so callers can branch on
// Kind without string matching; Embed and BuildVocabulary pass an
// embedder's own error through unchanged.
//
// Example:
//
//	if err := store.Insert(v); err != nil {
//		var e *vecerr.Error
//		if errors.As(err, &e) && e.Kind == vecerr.DimensionMismatch {
//			// handle dimension mismatch specifically
//		}
//	}
package vecerr

import "fmt"

// Kind is a closed enum of error categories, mirroring the taxonomy in
// spec.md §7. Keep this list in sync with that section.
type Kind string

const (
	// Input / contract
	CollectionNotFound      Kind = "collection_not_found"
	CollectionAlreadyExists Kind = "collection_already_exists"
	VectorNotFound          Kind = "vector_not_found"
	DimensionMismatch       Kind = "dimension_mismatch"
	InvalidVector           Kind = "invalid_vector"
	InvalidConfiguration    Kind = "invalid_configuration"
	InvalidPath             Kind = "invalid_path"
	FileTooLarge            Kind = "file_too_large"

	// Resource
	MemoryErr              Kind = "memory_error"
	VramLimitExceeded      Kind = "vram_limit_exceeded"
	BufferAllocationFailed Kind = "buffer_allocation_failed"
	DeviceInitFailed       Kind = "device_initialization_failed"
	IOErr                  Kind = "io"

	// Concurrency / time
	Timeout   Kind = "timeout"
	Cancelled Kind = "cancelled"

	// Integrity
	SerializationError   Kind = "serialization_error"
	DeserializationError Kind = "deserialization_error"
	SnapshotInvalid      Kind = "snapshot_invalid"

	// Cluster (ClusterValidationError variants, see pkg/cluster)
	ClusterValidation Kind = "cluster_validation_error"

	// Backend
	SearchFailed    Kind = "search_failed"
	InsertionFailed Kind = "insertion_failed"
	UpdateFailed    Kind = "update_failed"
	DeletionFailed  Kind = "deletion_failed"

	Unknown Kind = "unknown"
)

// Error is the concrete error type returned throughout the engine. Code is
// a short machine-readable token (often equal to string(Kind), but kept
// distinct so cluster/batch errors can carry a more specific code such as
// "cache_memory_limit_too_high"). ID, when known, names the offending
// collection/vector/snapshot id.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	ID      string
	Wrapped error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s[%s] (id=%s): %s", e.Kind, e.Code, e.ID, e.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an *Error with Code defaulted to string(kind).
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: fmt.Sprintf(format, args...)}
}

// WithID attaches an offending id and returns the receiver for chaining.
func (e *Error) WithID(id string) *Error {
	e.ID = id
	return e
}

// Wrap attaches an underlying cause, preserving Kind/Code/Message.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: message, Wrapped: cause}
}

// IsRetryable classifies a kind as transient (resource/timeout errors,
// true) or structural/validation (false). pkg/batch does not call it: the
// batch pipeline retries every Process error.
func IsRetryable(k Kind) bool {
	switch k {
	case Timeout, IOErr, SearchFailed, MemoryErr, VramLimitExceeded:
		return true
	default:
		return false
	}
}
