package backoff

import "time"

// Type selects the retry backoff algorithm.
type Type int

const (
	// Linear grows the delay by one base unit per attempt (default).
	Linear Type = iota
	// Exponential doubles the delay on every attempt.
	Exponential
	// Jittered adds random jitter to exponential backoff.
	Jittered
)

// New creates a backoff strategy for the given type and parameters.
// This is the internal factory used by the batch package.
func New(t Type, initialDelay, maxDelay time.Duration, jitterFactor float64) Strategy {
	switch t {
	case Exponential:
		return newExponentialBackoff(initialDelay, maxDelay)

	case Jittered:
		return newJitteredBackoff(initialDelay, maxDelay, jitterFactor)

	default:
		return newLinearBackoff(initialDelay, maxDelay)
	}
}
