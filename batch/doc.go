// Package batch provides a bounded-concurrency executor for batches of
// independent tasks, with per-task lifecycle tracking, retry with backoff,
// per-task timeouts, and execution statistics.
//
// The primary type is Runner[R], which runs a slice of Task[R] work functions
// across a fixed number of workers and records each task's journey through
// pending → running → retrying → {completed | failed | timeout}.
//
// # Basic Usage
//
//	runner, err := batch.New[string](
//	    batch.WithMaxWorkers(3),
//	    batch.WithRetry(2),
//	    batch.WithTaskTimeout(5*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tasks := []batch.Task[string]{
//	    func(ctx context.Context) (string, error) { return "ok", nil },
//	}
//	results := runner.Run(context.Background(), tasks)
//
// Results come back indexed by task id (input order), with the zero value of
// R at positions whose task failed or timed out. The full detail for every
// task — status, error message, retry count, timing — is available afterwards:
//
//	for id, rec := range runner.TaskStatus() {
//	    fmt.Println(id, rec.Status, rec.RetryCount)
//	}
//	stats := runner.Statistics()
//
// # Retry and Backoff
//
// A task that returns an error is retried up to the configured limit, with a
// delay between attempts. The default is linear backoff: with a 100ms base the
// waits are 100ms, 200ms, 300ms, ... Exponential and jittered strategies can
// be selected with WithBackoff. Every error is retried the same way; tasks
// that want to give up early handle the classification themselves.
//
// # Timeouts
//
// Each task gets a settlement timeout covering its whole retry chain. A task
// that exceeds it is recorded as timed out and its context is cancelled, but
// the engine does not forcibly kill the attempt: a work function that ignores
// its context may keep running in the background, its eventual result
// discarded. Timeouts and failures never abort the rest of the batch.
//
// # Observability
//
// The engine logs task starts, retries, failures, timeouts, and per-task
// progress through an injected *slog.Logger (discarded by default — there is
// no global logger), and optionally calls a progress hook once per settlement.
package batch
