package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// timeoutMessage is recorded on every record that times out, regardless of
// what the underlying attempt was doing.
const timeoutMessage = "execution timed out"

// Runner executes a batch of independent tasks across a bounded worker pool,
// tracking each task's lifecycle, retrying failures with backoff, and
// enforcing a per-task settlement timeout.
//
// A Runner is safe for concurrent observation (TaskStatus, Statistics) while
// Run is in flight, but only one Run may be active at a time.
//
// Type parameters:
//   - R: The result type produced by the tasks
type Runner[R any] struct {
	conf config

	mu        sync.Mutex
	records   map[int]*Record[R]
	total     int
	completed int
}

// New creates a Runner with the given options. Malformed configuration
// (workers < 1, negative retry limit, non-positive timeout) is rejected here,
// before any task runs.
//
// Defaults: 5 workers, 2 retries, 10s task timeout, linear backoff with a
// 100ms base, no rate limit, discard logger.
func New[R any](opts ...Option) (*Runner[R], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.logger == nil {
		cfg.logger = noopLogger()
	}

	return &Runner[R]{conf: cfg}, nil
}

// Run executes all tasks and blocks until every one of them has reached a
// terminal status. It returns a slice of length len(tasks) ordered by task id
// (input order), holding the produced value for completed tasks and the zero
// value of R at failed or timed-out positions; per-task detail is available
// via TaskStatus.
//
// Individual failures and timeouts never abort the batch. Cancelling ctx is
// cooperative: it cancels in-flight attempts and skips further retries, and
// the affected tasks settle as failed with the context error.
func (r *Runner[R]) Run(ctx context.Context, tasks []Task[R]) []R {
	n := len(tasks)

	r.mu.Lock()
	r.records = make(map[int]*Record[R], n)
	for i := range tasks {
		r.records[i] = &Record[R]{ID: i, Status: StatusPending}
	}
	r.total = n
	r.completed = 0
	r.mu.Unlock()

	if n == 0 {
		return []R{}
	}

	r.conf.logger.Info("starting batch",
		"tasks", n, "max_workers", r.conf.maxWorkers,
		"retry", r.conf.retryLimit, "task_timeout", r.conf.taskTimeout)
	batchStart := time.Now()

	taskChan := make(chan indexedTask[R], n)
	for i, t := range tasks {
		taskChan <- indexedTask[R]{id: i, task: t}
	}
	close(taskChan)

	outcomes := make(chan outcome[R], n)

	var g errgroup.Group
	numWorkers := min(r.conf.maxWorkers, n)
	for range numWorkers {
		g.Go(func() error {
			return r.worker(ctx, taskChan, outcomes)
		})
	}

	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	// Outcomes arrive in settlement order; the returned slice is re-indexed
	// by task id so callers get input order back.
	results := make([]R, n)
	for out := range outcomes {
		if out.completed {
			results[out.id] = out.value
		}
	}

	r.conf.logger.Info("batch finished", "tasks", n, "took", time.Since(batchStart))
	return results
}

// TaskStatus returns a snapshot of every task record at the time of the call.
// The snapshot is a copy; mutating it has no effect on the engine.
func (r *Runner[R]) TaskStatus() map[int]Record[R] {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[int]Record[R], len(r.records))
	for id, rec := range r.records {
		snapshot[id] = *rec
	}
	return snapshot
}

// Statistics summarizes the current run: totals, a count-by-status breakdown,
// and the wall-clock span from the first attempt start to the last settlement
// (zero when no task has started).
func (r *Runner[R]) Statistics() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		Total:     r.total,
		Completed: r.completed,
		ByStatus:  make(map[Status]int, len(r.records)),
	}

	var minStart, maxEnd time.Time
	for _, rec := range r.records {
		stats.ByStatus[rec.Status]++

		if !rec.StartTime.IsZero() && (minStart.IsZero() || rec.StartTime.Before(minStart)) {
			minStart = rec.StartTime
		}
		if rec.EndTime.After(maxEnd) {
			maxEnd = rec.EndTime
		}
	}

	if !minStart.IsZero() && !maxEnd.IsZero() {
		stats.WallClock = maxEnd.Sub(minStart)
	}
	return stats
}

type indexedTask[R any] struct {
	id   int
	task Task[R]
}

// outcome is one settled task as exposed to the collection loop. The record
// is already terminal by the time an outcome is sent.
type outcome[R any] struct {
	id        int
	value     R
	completed bool
}

// worker drains the task channel, running each task to settlement under the
// per-task timeout. It never returns early: individual outcomes are recorded
// per task and must not abort the batch.
func (r *Runner[R]) worker(ctx context.Context, taskChan <-chan indexedTask[R], outcomes chan<- outcome[R]) error {
	for t := range taskChan {
		if r.conf.rateLimiter != nil {
			if err := r.conf.rateLimiter.Wait(ctx); err != nil {
				outcomes <- r.settleFailed(t.id, err)
				continue
			}
		}
		outcomes <- r.await(ctx, t)
	}
	return nil
}

// await starts the retry chain for one task and waits up to the configured
// timeout for it to settle. On timeout the task's context is cancelled so
// cooperative work functions stop, but the attempt goroutine is not forcibly
// killed: it may keep running in the background with its result discarded.
func (r *Runner[R]) await(ctx context.Context, t indexedTask[R]) outcome[R] {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type settled struct {
		value R
		err   error
	}
	done := make(chan settled, 1)

	go func() {
		value, err := r.runWithRetry(taskCtx, t.id, t.task)
		done <- settled{value: value, err: err}
	}()

	timer := time.NewTimer(r.conf.taskTimeout)
	defer timer.Stop()

	select {
	case s := <-done:
		if s.err != nil {
			return r.settleFailed(t.id, s.err)
		}
		return r.settleCompleted(t.id, s.value)
	case <-timer.C:
		return r.settleTimeout(t.id)
	}
}

func (r *Runner[R]) settleCompleted(id int, value R) outcome[R] {
	r.finalize(id, func(rec *Record[R]) {
		rec.Status = StatusCompleted
		rec.Result = value
	})
	return outcome[R]{id: id, value: value, completed: true}
}

func (r *Runner[R]) settleFailed(id int, err error) outcome[R] {
	r.conf.logger.Error("task failed", "task_id", id, "error", err)
	r.finalize(id, func(rec *Record[R]) {
		rec.Status = StatusFailed
		rec.ErrMessage = err.Error()
	})
	return outcome[R]{id: id}
}

func (r *Runner[R]) settleTimeout(id int) outcome[R] {
	r.conf.logger.Warn("task timed out", "task_id", id, "timeout", r.conf.taskTimeout)
	r.finalize(id, func(rec *Record[R]) {
		rec.Status = StatusTimeout
		rec.ErrMessage = timeoutMessage
	})
	return outcome[R]{id: id}
}

// finalize moves one record to a terminal status exactly once, stamps its end
// time, bumps the completion counter, and emits the progress notification —
// all under the lock, so the outcome is never exposed before the record and
// counter agree.
func (r *Runner[R]) finalize(id int, mutate func(*Record[R])) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.records[id]
	if !rec.Status.Terminal() {
		mutate(rec)
		rec.EndTime = time.Now()
	}

	r.completed++
	percent := float64(r.completed) / float64(r.total) * 100

	r.conf.logger.Info("progress",
		"completed", r.completed, "total", r.total,
		"percent", fmt.Sprintf("%.1f", percent), "task_id", id, "status", rec.Status)

	if r.conf.onProgress != nil {
		r.conf.onProgress(r.completed, r.total, percent)
	}
}

// markRunning stamps the start time on the first attempt.
func (r *Runner[R]) markRunning(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.records[id]
	if rec.Status.Terminal() {
		return
	}
	if rec.StartTime.IsZero() {
		rec.StartTime = time.Now()
	}
	rec.Status = StatusRunning
}

// markRetrying records the retry attempt about to run. It returns false when
// the record is already terminal, which tells the retry chain to stop.
func (r *Runner[R]) markRetrying(id, attempt int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.records[id]
	if rec.Status.Terminal() {
		return false
	}
	rec.Status = StatusRetrying
	rec.RetryCount = attempt
	return true
}
