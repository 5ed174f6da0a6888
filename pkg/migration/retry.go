package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/gsbingo17/csv-to-salesforce/pkg/logger"
	"github.com/gsbingo17/csv-to-salesforce/pkg/salesforce"
)

// BatchWriteFunc submits one batch and returns per-record results. Transport
// failures are errors; per-record rejections are results.
type BatchWriteFunc func(batch []salesforce.Record) ([]salesforce.RecordResult, error)

// RetryManager retries failed batch submissions with exponential backoff,
// optionally splitting a failing batch in half so one poisoned record cannot
// sink a whole batch
type RetryManager struct {
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	enableSplit  bool
	minBatchSize int
	log          *logger.Logger
}

// NewRetryManager creates a new retry manager
func NewRetryManager(maxRetries int, baseDelay, maxDelay time.Duration, enableSplit bool, minBatchSize int, log *logger.Logger) *RetryManager {
	return &RetryManager{
		maxRetries:   maxRetries,
		baseDelay:    baseDelay,
		maxDelay:     maxDelay,
		enableSplit:  enableSplit,
		minBatchSize: minBatchSize,
		log:          log,
	}
}

// SubmitWithRetry submits a batch, retrying with backoff and falling back to
// batch splitting once retries are exhausted
func (r *RetryManager) SubmitWithRetry(ctx context.Context, batch []salesforce.Record, write BatchWriteFunc) ([]salesforce.RecordResult, error) {
	var lastErr error

	delay := r.baseDelay
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.log.Debugf("Retrying batch of %d records (attempt %d/%d) after %v",
				len(batch), attempt, r.maxRetries, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			// Exponential backoff capped at maxDelay
			delay *= 2
			if delay > r.maxDelay {
				delay = r.maxDelay
			}
		}

		results, err := write(batch)
		if err == nil {
			return results, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	// Retries exhausted; try splitting the batch so the healthy half survives
	if r.enableSplit && len(batch) > r.minBatchSize {
		r.log.Warnf("Batch of %d records failed after %d retries, splitting: %v",
			len(batch), r.maxRetries, lastErr)

		mid := len(batch) / 2
		left, err := r.SubmitWithRetry(ctx, batch[:mid], write)
		if err != nil {
			return nil, err
		}
		right, err := r.SubmitWithRetry(ctx, batch[mid:], write)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}

	return nil, fmt.Errorf("batch of %d records failed after %d retries: %w", len(batch), r.maxRetries, lastErr)
}
