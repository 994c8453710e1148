package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestRunner[R any](t *testing.T, opts ...Option) *Runner[R] {
	t.Helper()
	r, err := New[R](opts...)
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}
	return r
}

func TestRunner_Retry_SuccessOnFirstAttempt(t *testing.T) {
	runner := newTestRunner[int](t, WithMaxWorkers(1), WithRetry(3), WithBackoff(BackoffLinear, 10*time.Millisecond))

	var attempts atomic.Int32
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) {
			attempts.Add(1)
			return 42, nil
		},
	}

	results := runner.Run(context.Background(), tasks)

	if results[0] != 42 {
		t.Errorf("expected result 42, got %d", results[0])
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}

	rec := runner.TaskStatus()[0]
	if rec.Status != StatusCompleted {
		t.Errorf("expected status completed, got %v", rec.Status)
	}
	if rec.RetryCount != 0 {
		t.Errorf("expected retry count 0, got %d", rec.RetryCount)
	}
}

func TestRunner_Retry_SuccessAfterRetries(t *testing.T) {
	runner := newTestRunner[int](t, WithRetry(3), WithBackoff(BackoffLinear, 10*time.Millisecond))

	var attempts atomic.Int32
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) {
			if attempts.Add(1) < 3 {
				return 0, errors.New("temporary failure")
			}
			return 7, nil
		},
	}

	results := runner.Run(context.Background(), tasks)

	if results[0] != 7 {
		t.Errorf("expected result 7, got %d", results[0])
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}

	rec := runner.TaskStatus()[0]
	if rec.Status != StatusCompleted {
		t.Errorf("expected status completed, got %v", rec.Status)
	}
	if rec.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", rec.RetryCount)
	}
}

func TestRunner_Retry_AllAttemptsFail(t *testing.T) {
	runner := newTestRunner[int](t, WithRetry(2), WithBackoff(BackoffLinear, 5*time.Millisecond))

	var attempts atomic.Int32
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) {
			attempts.Add(1)
			return 0, errors.New("permanent failure")
		},
	}

	results := runner.Run(context.Background(), tasks)

	if results[0] != 0 {
		t.Errorf("expected zero value result, got %d", results[0])
	}
	// 1 initial attempt + 2 retries
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}

	rec := runner.TaskStatus()[0]
	if rec.Status != StatusFailed {
		t.Errorf("expected status failed, got %v", rec.Status)
	}
	if rec.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", rec.RetryCount)
	}
	if rec.ErrMessage != "permanent failure" {
		t.Errorf("expected last error message recorded, got %q", rec.ErrMessage)
	}
}

func TestRunner_Retry_LinearBackoffDelays(t *testing.T) {
	runner := newTestRunner[int](t, WithRetry(2), WithBackoff(BackoffLinear, 20*time.Millisecond))

	tasks := []Task[int]{
		func(ctx context.Context) (int, error) {
			return 0, errors.New("fail")
		},
	}

	start := time.Now()
	runner.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// Linear backoff with 20ms base: 20ms before the first retry,
	// 40ms before the second, 60ms in total.
	expectedMinDelay := 60 * time.Millisecond
	if elapsed < expectedMinDelay {
		t.Errorf("expected at least %v elapsed time for backoff, got %v", expectedMinDelay, elapsed)
	}
}

func TestRunner_Retry_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	runner := newTestRunner[int](t, WithRetry(0))

	var attempts atomic.Int32
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) {
			attempts.Add(1)
			return 0, errors.New("fail")
		},
	}

	runner.Run(context.Background(), tasks)

	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", attempts.Load())
	}
	if rec := runner.TaskStatus()[0]; rec.Status != StatusFailed || rec.RetryCount != 0 {
		t.Errorf("expected failed with retry count 0, got %v retries=%d", rec.Status, rec.RetryCount)
	}
}

func TestRunner_Retry_PanicBecomesFailedAttempt(t *testing.T) {
	runner := newTestRunner[string](t, WithRetry(1), WithBackoff(BackoffLinear, 5*time.Millisecond))

	tasks := []Task[string]{
		func(ctx context.Context) (string, error) {
			panic("boom")
		},
	}

	results := runner.Run(context.Background(), tasks)

	if results[0] != "" {
		t.Errorf("expected zero value result, got %q", results[0])
	}

	rec := runner.TaskStatus()[0]
	if rec.Status != StatusFailed {
		t.Errorf("expected status failed, got %v", rec.Status)
	}
	if rec.RetryCount != 1 {
		t.Errorf("expected the panicking task to be retried once, got %d", rec.RetryCount)
	}
}
