package batch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/wqyuan/batchrun/internal/backoff"
)

// Configuration errors returned by New. Malformed configuration is rejected
// at construction, never silently coerced.
var (
	ErrInvalidWorkerCount = errors.New("max workers must be at least 1")
	ErrInvalidRetryLimit  = errors.New("retry limit must not be negative")
	ErrInvalidTimeout     = errors.New("task timeout must be positive")
	ErrInvalidBackoffBase = errors.New("backoff base delay must be positive")
)

const (
	defaultMaxWorkers  = 5
	defaultRetryLimit  = 2
	defaultTaskTimeout = 10 * time.Second
	defaultBackoffBase = 100 * time.Millisecond
	maxBackoffDelay    = 5 * time.Second
	jitterFactor       = 0.1
)

// BackoffType selects the retry backoff algorithm, see WithBackoff.
type BackoffType = backoff.Type

const (
	// BackoffLinear waits base*(attempt+1) before each retry (default).
	BackoffLinear = backoff.Linear
	// BackoffExponential doubles the wait on every retry.
	BackoffExponential = backoff.Exponential
	// BackoffJittered adds random jitter to exponential waits.
	BackoffJittered = backoff.Jittered
)

// Option is a functional option for configuring a Runner.
type Option func(*config)

type config struct {
	maxWorkers  int
	retryLimit  int
	taskTimeout time.Duration
	backoffType backoff.Type
	backoffBase time.Duration
	logger      *slog.Logger
	onProgress  ProgressFunc
	rateLimiter *rate.Limiter
}

func defaultConfig() config {
	return config{
		maxWorkers:  defaultMaxWorkers,
		retryLimit:  defaultRetryLimit,
		taskTimeout: defaultTaskTimeout,
		backoffType: backoff.Linear,
		backoffBase: defaultBackoffBase,
	}
}

func (c *config) validate() error {
	if c.maxWorkers < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidWorkerCount, c.maxWorkers)
	}
	if c.retryLimit < 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidRetryLimit, c.retryLimit)
	}
	if c.taskTimeout <= 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidTimeout, c.taskTimeout)
	}
	if c.backoffBase <= 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidBackoffBase, c.backoffBase)
	}
	return nil
}

// WithMaxWorkers sets the number of concurrent execution slots.
// Defaults to 5. Values below 1 are rejected by New.
func WithMaxWorkers(count int) Option {
	return func(cfg *config) {
		cfg.maxWorkers = count
	}
}

// WithRetry sets the maximum number of retry attempts after the first attempt
// fails (0 = a single attempt, no retries). Defaults to 2.
func WithRetry(limit int) Option {
	return func(cfg *config) {
		cfg.retryLimit = limit
	}
}

// WithTaskTimeout sets the per-task settlement timeout, measured from the
// moment the pool starts waiting on that task. It covers the whole retry
// chain, not a single attempt. Defaults to 10s.
func WithTaskTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.taskTimeout = d
	}
}

// WithBackoff selects the backoff algorithm and its base delay.
// The default is linear backoff with a 100ms base: the wait before retry a
// (0-indexed) is base*(a+1). Exponential and jittered variants are available
// for workloads where contention matters more than total wall-clock time.
func WithBackoff(t BackoffType, base time.Duration) Option {
	return func(cfg *config) {
		cfg.backoffType = t
		cfg.backoffBase = base
	}
}

// WithLogger injects a structured logger for the engine's observational
// output (task start, retry, failure, timeout, progress). The default
// discards everything; the engine never writes to a global logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithOnProgress registers a hook invoked once per task settlement with the
// running completion percentage. The hook is called while the completion
// counter's lock is held, so it must not call back into the Runner.
func WithOnProgress(fn ProgressFunc) Option {
	return func(cfg *config) {
		cfg.onProgress = fn
	}
}

// WithRateLimit throttles task starts to tasksPerSecond with the given burst.
// Useful when the work functions hit an external service. No limit by default.
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
