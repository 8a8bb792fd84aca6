package httpx

import (
	"errors"
	"fmt"
)

// Stable error identities for transport outcomes. Callers classify failures
// with errors.Is; the concrete HTTP status, when one was received, is
// available through StatusError via errors.As.
var (
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrTimeout          = errors.New("request timed out")
	ErrTemporaryFailure = errors.New("temporary upstream failure")
	ErrPermanentFailure = errors.New("permanent upstream failure")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrAuthFailed       = errors.New("upstream authentication failed")
	ErrInvalidRequest   = errors.New("invalid request")
)

// StatusError carries the HTTP status and response body of a terminal
// non-2xx response.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	body := string(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, body)
}

// IsCircuitOpen reports whether the error indicates a fast-failed call on
// an open circuit.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
