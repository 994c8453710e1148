package backoff

import (
	"cmp"
	"math/rand"
	"sync"
	"time"
)

const (
	maxShiftAttempts = 63 // Prevent overflow in exponential delay calculation
)

// Strategy defines how the delay between a failed attempt and the next retry
// attempt is calculated.
//
// attemptNumber is 0-indexed (0 = first retry after the initial failure).
// lastError is the error that triggered the retry; adaptive strategies may
// inspect it, the built-in ones ignore it.
type Strategy interface {
	// NextDelay returns the duration to wait before the next retry attempt.
	NextDelay(attemptNumber int, lastError error) time.Duration

	// Reset clears any internal state. It must be called before a strategy
	// instance is reused for a new task.
	Reset()
}

// linearBackoff grows the delay by one initialDelay per attempt.
// Delay formula: initialDelay * (attemptNumber + 1)
//
// Attempt 0: 1x initialDelay
// Attempt 1: 2x initialDelay
// Attempt 2: 3x initialDelay
// ...until maxDelay is reached.
//
// This is the default strategy: for short retry chains it keeps the total
// wall-clock cost predictable and much lower than exponential growth.
type linearBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func newLinearBackoff(initialDelay, maxDelay time.Duration) *linearBackoff {
	return &linearBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// NextDelay calculates the linear backoff delay for the given attempt number.
func (lb *linearBackoff) NextDelay(attemptNumber int, lastError error) time.Duration {
	if attemptNumber < 0 {
		return 0
	}

	delay := time.Duration(attemptNumber+1) * lb.initialDelay
	if delay > lb.maxDelay || delay < 0 {
		return lb.maxDelay
	}
	return delay
}

// Reset does nothing for linear backoff as it has no internal state.
func (lb *linearBackoff) Reset() {}

// exponentialBackoff implements simple exponential backoff.
// Delay formula: initialDelay * 2^attemptNumber, capped at maxDelay.
type exponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func newExponentialBackoff(initialDelay, maxDelay time.Duration) *exponentialBackoff {
	return &exponentialBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// NextDelay calculates the exponential backoff delay for the given attempt number.
// Uses bit shifting (2^n) instead of math.Pow.
func (eb *exponentialBackoff) NextDelay(attemptNumber int, lastError error) time.Duration {
	return calcExponentialDelay(attemptNumber, eb.initialDelay, eb.maxDelay)
}

// Reset does nothing for exponential backoff as it has no internal state.
func (eb *exponentialBackoff) Reset() {}

// jitteredBackoff adds randomization to exponential backoff to prevent
// thundering herd: when many tasks fail at once, jitter spreads their retries
// out instead of letting them all re-fire on the same tick.
//
// Delay formula: exponentialDelay * (1 ± jitterFactor)
type jitteredBackoff struct {
	initialDelay, maxDelay time.Duration
	jitterFactor           float64 // 0.0 to 1.0 (e.g., 0.1 = ±10% jitter)
	rng                    *rand.Rand
	mu                     sync.Mutex // Protect RNG access for thread-safety
}

func newJitteredBackoff(initialDelay, maxDelay time.Duration, jitterFactor float64) *jitteredBackoff {
	return &jitteredBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		jitterFactor: clamp(jitterFactor, 0, 1),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- crypto rand not needed for backoff jitter
	}
}

// NextDelay calculates the jittered exponential backoff delay.
func (jb *jitteredBackoff) NextDelay(attemptNumber int, lastError error) time.Duration {
	if attemptNumber < 0 {
		return 0
	}

	baseDelay := calcExponentialDelay(attemptNumber, jb.initialDelay, jb.maxDelay)

	jb.mu.Lock()
	jitterMultiplier := 1.0 + (jb.rng.Float64()*2-1)*jb.jitterFactor
	jb.mu.Unlock()

	actualDelay := time.Duration(float64(baseDelay) * jitterMultiplier)
	return clamp(actualDelay, 0, jb.maxDelay)
}

// Reset does nothing for jittered backoff (RNG state doesn't need reset).
func (jb *jitteredBackoff) Reset() {}

func calcExponentialDelay(attemptNumber int, initialDelay, maxDelay time.Duration) time.Duration {
	if attemptNumber < 0 {
		return 0
	}

	if attemptNumber >= maxShiftAttempts {
		return maxDelay
	}

	backoffFactor := int64(1) << uint(attemptNumber)
	delay := time.Duration(backoffFactor) * initialDelay

	if delay > maxDelay || delay < 0 {
		return maxDelay
	}

	return delay
}

func clamp[T cmp.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
