package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunAllSucceed(t *testing.T) {
	items := make([]Item[int], 20)
	for i := range items {
		items[i] = Item[int]{
			Value:   i,
			Process: func(ctx context.Context, v int) error { return nil },
		}
	}
	cfg := Config{MaxWorkers: 4, BatchSize: 5, MaxRetries: 1, OperationTimeout: time.Second, EnableParallel: true}
	res := Run(context.Background(), cfg, items, nil)
	assert.Equal(t, 20, res.Successful)
	assert.Equal(t, 0, res.Failed)
}

func TestRunValidationFailureIsTerminal(t *testing.T) {
	attempts := 0
	items := []Item[int]{
		{
			Value:    1,
			Validate: func(v int) error { return errors.New("bad item") },
			Process: func(ctx context.Context, v int) error {
				attempts++
				return nil
			},
		},
	}
	cfg := Config{MaxWorkers: 1, BatchSize: 10, MaxRetries: 3, OperationTimeout: time.Second, EnableParallel: false}
	res := Run(context.Background(), cfg, items, nil)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, attempts)
	assert.Equal(t, KindValidationError, res.Errors[0].Kind)
	assert.Equal(t, 0, res.Errors[0].RetryCount)
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	calls := 0
	items := []Item[int]{
		{
			Value: 1,
			Process: func(ctx context.Context, v int) error {
				calls++
				if calls < 3 {
					return errors.New("transient")
				}
				return nil
			},
		},
	}
	cfg := Config{MaxWorkers: 1, BatchSize: 10, MaxRetries: 3, OperationTimeout: time.Second, EnableParallel: false}
	res := Run(context.Background(), cfg, items, nil)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 3, calls)
}

func TestRunExhaustsRetriesAndRecordsBatchError(t *testing.T) {
	items := []Item[int]{
		{
			Value:   1,
			Process: func(ctx context.Context, v int) error { return errors.New("always fails") },
		},
	}
	cfg := Config{MaxWorkers: 1, BatchSize: 10, MaxRetries: 2, OperationTimeout: time.Second, EnableParallel: false}
	res := Run(context.Background(), cfg, items, nil)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Errors[0].RetryCount)
}

func TestRunOperationTimeoutCountsAsRetry(t *testing.T) {
	items := []Item[int]{
		{
			Value: 1,
			Process: func(ctx context.Context, v int) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}
	cfg := Config{MaxWorkers: 1, BatchSize: 10, MaxRetries: 1, OperationTimeout: 10 * time.Millisecond, EnableParallel: false}
	res := Run(context.Background(), cfg, items, nil)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, KindTimeout, res.Errors[0].Kind)
	assert.Equal(t, 1, res.Errors[0].RetryCount)
}

func TestRunProgressChannelReportsCompletion(t *testing.T) {
	items := make([]Item[int], 10)
	for i := range items {
		items[i] = Item[int]{Value: i, Process: func(ctx context.Context, v int) error { return nil }}
	}
	progress := make(chan Progress, 100)
	cfg := Config{MaxWorkers: 2, BatchSize: 5, MaxRetries: 0, OperationTimeout: time.Second, EnableParallel: true}
	res := Run(context.Background(), cfg, items, progress)
	close(progress)

	var last Progress
	for p := range progress {
		last = p
	}
	assert.Equal(t, 10, res.Successful)
	assert.Equal(t, 10, last.Total)
}
