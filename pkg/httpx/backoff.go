package httpx

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy calculates the delay before a retry attempt.
// Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	// NextInterval returns the delay before the given retry attempt.
	// Attempt starts at 1 for the first retry.
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically with bounded random
// jitter, spreading retries from concurrent callers apart.
type ExponentialBackoff struct {
	Base         time.Duration
	Max          time.Duration
	Multiplier   float64
	JitterFactor float64
}

// NextInterval returns min(Base * Multiplier^(attempt-1) * (1 ± JitterFactor), Max).
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := e.Base
	if base == 0 {
		base = time.Second
	}
	max := e.Max
	if max == 0 {
		max = 30 * time.Second
	}
	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(base) * math.Pow(multiplier, float64(attempt-1))

	// Zero jitter stays deterministic, which the tests rely on.
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}

	if interval > float64(max) {
		interval = float64(max)
	}
	return time.Duration(interval)
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff struct {
	Interval time.Duration
}

// NextInterval returns the fixed interval regardless of attempt number.
func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// DefaultBackoff returns the exponential backoff used when no strategy is
// configured: 1s base doubling up to 30s with 10% jitter.
func DefaultBackoff() BackoffStrategy {
	return ExponentialBackoff{
		Base:         time.Second,
		Max:          30 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}
