package vecmodel

import "github.com/vantari/vecengine/pkg/vecerr"

// ValidTransition reports whether moving a collection's IndexingStatus
// from `from` to `to` is legal under spec.md §4.15:
//
//	created -> processing
//	processing -> completed | failed
//	completed -> processing (re-index)
//	failed -> processing (retry)
//
// There is no direct created -> completed transition.
func ValidTransition(from, to IndexingStatus) bool {
	switch from {
	case StatusCreated:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted, StatusFailed:
		return to == StatusProcessing
	default:
		return false
	}
}

// Transition validates and applies a status change to metadata, returning
// an error for illegal transitions (e.g. created -> completed directly).
func (m *CollectionMetadata) Transition(to IndexingStatus, progress int) *vecerr.Error {
	if !ValidTransition(m.IndexingStatus, to) {
		return vecerr.Newf(vecerr.InvalidConfiguration, "illegal indexing status transition %s -> %s", m.IndexingStatus, to)
	}
	m.IndexingStatus = to
	if to == StatusProcessing {
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		m.Progress = progress
	} else {
		m.Progress = 0
	}
	return nil
}
