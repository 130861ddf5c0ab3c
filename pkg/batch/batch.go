// Package batch implements the bounded-worker batch processing pipeline of
// spec.md §4.9: chunked dispatch, per-item validate/process/retry under a
// timeout, and progress reporting.
package batch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrorKind enumerates the batch-specific error taxonomy of spec.md §4.9.
// It is a narrower, pipeline-scoped classification than vecerr.Kind,
// reported per item alongside the retry count.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindMemoryError
	KindValidationError
	KindNetworkError
	KindCollectionNotFound
	KindInsertionFailed
	KindUpdateFailed
	KindDeletionFailed
	KindSearchFailed
	KindUnknown
)

// Error is the BatchError record spec.md §4.9 names.
type Error struct {
	ItemIndex  int
	Kind       ErrorKind
	Message    string
	RetryCount int
}

// Config is the pipeline's configurable knob set (spec.md §4.9).
type Config struct {
	MaxWorkers       int
	BatchSize        int
	MaxRetries       int
	OperationTimeout time.Duration
	EnableParallel   bool
	MemoryLimitMB    int
}

// DefaultConfig mirrors sane defaults used across the pack's worker-pool
// examples: one worker per available core, small chunks, a couple of
// retries.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:       runtime.GOMAXPROCS(0),
		BatchSize:        64,
		MaxRetries:       2,
		OperationTimeout: 10 * time.Second,
		EnableParallel:   true,
		MemoryLimitMB:    0,
	}
}

// MemoryStats reports coarse heap usage observed around the run, matching
// the memory_stats field spec.md §4.9's result struct names.
type MemoryStats struct {
	HeapAllocBytes uint64
	HeapSysBytes   uint64
}

// Progress is emitted on the optional progress channel (spec.md §4.9).
type Progress struct {
	Total          int
	Processed      int
	Successful     int
	Failed         int
	ProcessingRate float64 // items/sec
	ETASeconds     float64
}

// Result is the pipeline's final outcome.
type Result struct {
	Successful       int
	Failed           int
	ProcessingTimeMs int64
	RetryCount       int
	Errors           []Error
	MemoryStats      MemoryStats
}

// Item is one unit of work; Validate is terminal (no retries) and Process
// is retried up to config.MaxRetries+1 attempts under OperationTimeout.
type Item[T any] struct {
	Value    T
	Validate func(T) error
	Process  func(ctx context.Context, v T) error
}

// classify maps a Process error to an ErrorKind: context deadline ⇒
// Timeout, everything else ⇒ Unknown. It does not inspect *vecerr.Error
// kinds, so a wrapped error's Kind is not carried into the batch record.
func classify(err error) ErrorKind {
	if err == context.DeadlineExceeded {
		return KindTimeout
	}
	return KindUnknown
}

// Run splits items into chunks of config.BatchSize and dispatches them
// serially or concurrently (bounded by config.MaxWorkers) per spec.md
// §4.9. Progress, if non-nil, is offered one update per completed item;
// the send never blocks, so updates are dropped while the channel is full.
func Run[T any](ctx context.Context, config Config, items []Item[T], progress chan<- Progress) Result {
	start := time.Now()
	total := len(items)

	var mu sync.Mutex
	var successful, failed, retryTotal int
	var errs []Error

	recordSuccess := func() {
		mu.Lock()
		successful++
		mu.Unlock()
	}
	recordFailure := func(idx int, kind ErrorKind, msg string, retries int) {
		mu.Lock()
		failed++
		retryTotal += retries
		errs = append(errs, Error{ItemIndex: idx, Kind: kind, Message: msg, RetryCount: retries})
		mu.Unlock()
	}

	processed := 0
	reportProgress := func() {
		if progress == nil {
			return
		}
		mu.Lock()
		p := Progress{Total: total, Processed: processed, Successful: successful, Failed: failed}
		mu.Unlock()
		elapsed := time.Since(start).Seconds()
		if elapsed > 0 {
			p.ProcessingRate = float64(p.Processed) / elapsed
		}
		if p.ProcessingRate > 0 {
			p.ETASeconds = float64(total-p.Processed) / p.ProcessingRate
		}
		select {
		case progress <- p:
		default:
		}
	}

	runOne := func(idx int, it Item[T]) {
		defer func() {
			mu.Lock()
			processed++
			mu.Unlock()
			reportProgress()
		}()

		if it.Validate != nil {
			if err := it.Validate(it.Value); err != nil {
				recordFailure(idx, KindValidationError, err.Error(), 0)
				return
			}
		}

		var lastErr error
		attempts := config.MaxRetries + 1
		for attempt := 0; attempt < attempts; attempt++ {
			opCtx, cancel := context.WithTimeout(ctx, config.OperationTimeout)
			err := it.Process(opCtx, it.Value)
			cancel()
			if err == nil {
				recordSuccess()
				return
			}
			lastErr = err
			if opCtx.Err() == context.DeadlineExceeded {
				lastErr = context.DeadlineExceeded
			}
		}
		recordFailure(idx, classify(lastErr), lastErr.Error(), attempts-1)
	}

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	for chunkStart := 0; chunkStart < total; chunkStart += config.BatchSize {
		chunkEnd := chunkStart + config.BatchSize
		if chunkEnd > total {
			chunkEnd = total
		}
		chunk := items[chunkStart:chunkEnd]

		if !config.EnableParallel {
			for i, it := range chunk {
				runOne(chunkStart+i, it)
			}
			continue
		}

		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(maxWorkers)
		for i, it := range chunk {
			i, it := i, it
			g.Go(func() error {
				runOne(chunkStart+i, it)
				return nil
			})
		}
		_ = g.Wait()
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Result{
		Successful:       successful,
		Failed:           failed,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		RetryCount:       retryTotal,
		Errors:           errs,
		MemoryStats:      MemoryStats{HeapAllocBytes: ms.HeapAlloc, HeapSysBytes: ms.HeapSys},
	}
}
