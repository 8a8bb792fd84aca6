package httpx

import (
	"sync"
	"time"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed allows requests to pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks all requests until the cool-down elapses.
	CircuitOpen
	// CircuitHalfOpen allows a single probe request to test recovery.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker protects a failing upstream from sustained call pressure.
// After tripThreshold failures within failureWindow the circuit opens and
// calls fail fast. Once coolDown elapses a single probe request is let
// through: success closes the circuit, failure reopens it. Safe for
// concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	tripThreshold    int
	failureWindow    time.Duration
	coolDown         time.Duration
	successThreshold int

	state           CircuitState
	failures        int
	windowStart     time.Time
	lastFailureTime time.Time
	successes       int
	probeInFlight   bool
}

// NewCircuitBreaker creates a circuit breaker. Non-positive arguments fall
// back to conservative defaults.
func NewCircuitBreaker(tripThreshold int, coolDown, failureWindow time.Duration) *CircuitBreaker {
	if tripThreshold <= 0 {
		tripThreshold = 5
	}
	if coolDown <= 0 {
		coolDown = 30 * time.Second
	}
	// Zero failureWindow means failures are counted until the next success.

	return &CircuitBreaker{
		tripThreshold:    tripThreshold,
		failureWindow:    failureWindow,
		coolDown:         coolDown,
		successThreshold: 1,
		state:            CircuitClosed,
	}
}

// Allow reports whether a request may proceed. In the open state it
// transitions to half-open once the cool-down has elapsed and admits
// exactly one probe; concurrent callers are rejected until the probe
// completes via RecordSuccess, RecordFailure, or Release.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true

	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.coolDown {
			cb.state = CircuitHalfOpen
			cb.successes = 0
			cb.probeInFlight = true
			return true
		}
		return false

	case CircuitHalfOpen:
		if cb.probeInFlight {
			return false
		}
		cb.probeInFlight = true
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful request outcome. In half-open state a
// success closes the circuit and resets the failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0

	case CircuitHalfOpen:
		cb.probeInFlight = false
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure records a failed request outcome. In closed state the
// failure counter trips the circuit once it reaches the threshold within
// the failure window; in half-open state a failure reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.lastFailureTime = now

	switch cb.state {
	case CircuitClosed:
		if cb.failureWindow > 0 && (cb.failures == 0 || now.Sub(cb.windowStart) > cb.failureWindow) {
			// Stale window: start counting from this failure.
			cb.failures = 0
			cb.windowStart = now
		}
		cb.failures++
		if cb.failures >= cb.tripThreshold {
			cb.state = CircuitOpen
		}

	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.failures = cb.tripThreshold
		cb.successes = 0
		cb.probeInFlight = false
	}
}

// Release frees the half-open probe slot without recording an outcome.
// Used when a request terminates in a way that says nothing about upstream
// health, such as a domain-level 4xx response.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.probeInFlight = false
	}
}

// State returns the current state, accounting for the automatic
// open-to-half-open transition that Allow would perform.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastFailureTime) > cb.coolDown {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset returns the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.probeInFlight = false
	cb.lastFailureTime = time.Time{}
	cb.windowStart = time.Time{}
}

// CircuitStats exposes circuit breaker internals for monitoring.
type CircuitStats struct {
	State           string
	Failures        int
	LastFailureTime time.Time
}

// Stats returns a snapshot of the circuit breaker state.
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitStats{
		State:           cb.state.String(),
		Failures:        cb.failures,
		LastFailureTime: cb.lastFailureTime,
	}
}
