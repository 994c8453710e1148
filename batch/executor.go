package batch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/wqyuan/batchrun/internal/backoff"
)

// runWithRetry drives one task to settlement or retry exhaustion.
// R+1 attempts total for a retry limit of R; between failed attempts it sleeps
// according to the configured backoff strategy. Every error is treated the
// same — callers needing error-kind-specific retry policy classify inside the
// task function and return nil to stop retrying.
func (r *Runner[R]) runWithRetry(ctx context.Context, id int, task Task[R]) (R, error) {
	r.markRunning(id)
	r.conf.logger.Info("task started", "task_id", id)

	strategy := backoff.New(r.conf.backoffType, r.conf.backoffBase, maxBackoffDelay, jitterFactor)
	strategy.Reset()

	var zero R
	var lastErr error

	for attempt := 0; attempt <= r.conf.retryLimit; attempt++ {
		if attempt > 0 {
			if !r.markRetrying(id, attempt) {
				// Record went terminal (timed out) while we were backing off.
				return zero, lastErr
			}
			r.conf.logger.Info("task retrying", "task_id", id, "attempt", attempt)
		}

		value, err := invoke(ctx, task)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt < r.conf.retryLimit {
			r.conf.logger.Warn("task attempt failed",
				"task_id", id, "attempt", attempt+1, "error", err)
			select {
			case <-time.After(strategy.NextDelay(attempt, err)):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		} else {
			r.conf.logger.Error("task exhausted retries",
				"task_id", id, "retries", r.conf.retryLimit, "error", err)
		}
	}

	return zero, lastErr
}

// invoke executes one attempt with panic recovery, so a panicking task turns
// into a failed attempt instead of crashing the worker.
func invoke[R any](ctx context.Context, task Task[R]) (result R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("task panic: %v\nstack trace:\n%s", rec, buf[:n])
		}
	}()

	return task(ctx)
}
