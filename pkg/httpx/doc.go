// Package httpx provides a resilient HTTP client for talking to a single
// upstream API: pooled connections, bearer-token injection, bounded retries
// with exponential backoff, and a circuit breaker that fails fast while the
// upstream is down.
//
// # Request lifecycle
//
// A logical call through Client.Do runs the following pipeline:
//
//  1. The circuit breaker gate. An open circuit rejects the call with
//     ErrCircuitOpen before any network activity.
//  2. Up to RetryPolicy.MaxAttempts dispatches. Each dispatch snapshots the
//     current credential, so a concurrent token refresh never affects an
//     in-flight request.
//  3. A 401 response triggers exactly one credential refresh followed by an
//     immediate re-dispatch that does not consume a retry attempt. A second
//     401 terminates the call with ErrAuthFailed.
//  4. Network errors, timeouts, and retryable statuses (5xx, 408, 425, 429)
//     consume attempts, sleeping per the backoff strategy between them.
//  5. Any other 4xx terminates immediately with ErrPermanentFailure and has
//     no effect on circuit breaker bookkeeping.
//
// One terminal outcome per logical call is reported to the breaker: success
// on 2xx, failure on exhausted retries or auth failure.
//
// # Usage
//
//	cb := httpx.NewCircuitBreaker(5, 30*time.Second, time.Minute)
//	client := httpx.New("https://panel.example.com",
//		httpx.WithCredentials(tokens),
//		httpx.WithCircuitBreaker(cb),
//		httpx.WithTimeout(10*time.Second),
//	)
//
//	resp, err := client.Do(ctx, httpx.Request{
//		Method: http.MethodGet,
//		Path:   "/api/user/alice",
//	})
//
// # Error handling
//
// Terminal errors wrap one of the package sentinels (ErrCircuitOpen,
// ErrTimeout, ErrTemporaryFailure, ErrPermanentFailure, ErrRetriesExhausted,
// ErrAuthFailed) for errors.Is matching. When an HTTP response was received,
// the status and body are recoverable with errors.As on *StatusError.
package httpx
