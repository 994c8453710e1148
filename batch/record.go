package batch

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of one submitted task.
type Status int

const (
	// StatusPending means the task has been registered but no attempt has started.
	StatusPending Status = iota
	// StatusRunning means the first attempt is executing.
	StatusRunning
	// StatusRetrying means a previous attempt failed and a retry attempt is executing.
	StatusRetrying
	// StatusCompleted means the task produced a result.
	StatusCompleted
	// StatusFailed means every attempt failed and the retry budget is exhausted.
	StatusFailed
	// StatusTimeout means the task did not settle within the per-task timeout.
	StatusTimeout
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusRetrying:
		return "retrying"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the status is final. A record never transitions
// out of a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// Record tracks the lifecycle of one submitted task: its status, timing,
// retry count, and final result or error message.
//
// Once the status is terminal, exactly one of Result and ErrMessage is
// populated and EndTime is set.
//
// Type parameters:
//   - R: The result type produced by the task
type Record[R any] struct {
	// ID is the task's position in the input batch (0..N-1), stable for lookup.
	ID int
	// Status is the current lifecycle state, see the Status constants.
	Status Status
	// Result holds the produced value; only valid when Status is StatusCompleted.
	Result R
	// ErrMessage holds the failure or timeout message; only set when Status is
	// StatusFailed or StatusTimeout.
	ErrMessage string
	// StartTime is set once, when the first attempt begins.
	StartTime time.Time
	// EndTime is set once, when the task reaches a terminal status.
	EndTime time.Time
	// RetryCount is the number of retry attempts consumed
	// (0 = settled on the first attempt).
	RetryCount int
}

// ExecutionTime returns the wall-clock duration between the first attempt and
// settlement. The second return value is false while either endpoint is unset.
func (r Record[R]) ExecutionTime() (time.Duration, bool) {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0, false
	}
	return r.EndTime.Sub(r.StartTime), true
}

// String returns a one-line human-readable summary of the record.
func (r Record[R]) String() string {
	if d, ok := r.ExecutionTime(); ok {
		return fmt.Sprintf("task %d: status=%s retries=%d took=%s", r.ID, r.Status, r.RetryCount, d.Round(time.Millisecond))
	}
	return fmt.Sprintf("task %d: status=%s retries=%d", r.ID, r.Status, r.RetryCount)
}
