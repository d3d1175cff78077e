// Package backoff provides exponential backoff with jitter and the retry
// engine used by the tool pipeline. Errors carrying a non-retryable kind
// short-circuit the loop.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the exponential backoff parameters.
type Policy struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
	// Factor is the exponential factor applied per attempt.
	Factor float64
	// Jitter is the multiplicative randomization factor (0.0 to 1.0).
	Jitter float64
}

// Delay calculates the backoff duration for a given attempt number.
// base = BaseDelay * Factor^(attempt-1), jitter = base * Jitter * random().
// Returns min(MaxDelay, base + jitter). Attempt numbers start at 1.
func (p Policy) Delay(attempt int) time.Duration {
	return p.DelayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// DelayWithRand computes the delay with a provided random value in
// [0.0, 1.0), for deterministic tests.
func (p Policy) DelayWithRand(attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.BaseDelay) * math.Pow(p.Factor, exp)
	jitter := base * p.Jitter * randomValue
	total := math.Min(float64(p.MaxDelay), base+jitter)
	return time.Duration(total)
}

// DefaultPolicy is the pipeline default: 100ms base, 30s cap, factor 2,
// 10% jitter.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  30 * time.Second,
		Factor:    2,
		Jitter:    0.1,
	}
}
