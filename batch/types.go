package batch

import (
	"context"
	"time"
)

// Task is one independently executable unit of work: it either produces a
// value of type R or returns an error. The engine places no constraint on R.
//
// The context is cancelled when the task's per-run context ends or when the
// task's timeout expires. Honouring it is cooperative: a task that ignores the
// context may keep running in the background after being reported as timed out.
type Task[R any] func(ctx context.Context) (R, error)

// ProgressFunc receives one notification per task settlement, in settlement
// order. completed is the number of settled tasks so far, total the batch size,
// and percent = completed/total*100.
type ProgressFunc func(completed, total int, percent float64)

// Stats summarizes the last completed run.
type Stats struct {
	// Total is the number of tasks in the batch.
	Total int
	// Completed is the number of tasks that reached a terminal status.
	Completed int
	// ByStatus counts records per status; the counts sum to Total.
	ByStatus map[Status]int
	// WallClock is max(EndTime) - min(StartTime) over all records,
	// or zero when no task has started.
	WallClock time.Duration
}
