package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Response bodies larger than this are truncated to bound memory use.
const maxResponseBytes = 1 << 20

// CredentialProvider supplies the bearer token injected into outbound
// requests. RefreshToken is invoked once per logical call when the upstream
// rejects the current credential with 401.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
}

// RetryPolicy controls how many attempts a logical call makes and how long
// to wait between them. Immutable once configured; share it freely.
type RetryPolicy struct {
	// MaxAttempts is the total number of dispatches, including the first.
	MaxAttempts int
	// Backoff computes the delay before each retry.
	Backoff BackoffStrategy
	// RetryableStatuses extends the built-in retryable set (5xx, 408, 425,
	// 429) with additional status codes.
	RetryableStatuses []int
}

// DefaultRetryPolicy returns the policy used when none is configured:
// three attempts with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     DefaultBackoff(),
	}
}

// retryable reports whether a status code is worth another attempt.
// Most 4xx responses reflect the request itself and will not change.
func (p RetryPolicy) retryable(status int) bool {
	if status >= 500 {
		return true
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	for _, s := range p.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Request describes a single upstream call. Body, when non-nil, is
// marshaled to JSON once and replayed across retry attempts.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header map[string]string
}

// Response holds the status and fully read body of a completed call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client executes HTTP calls against a single upstream with credential
// injection, bounded retries with backoff, and circuit breaking. The
// underlying transport pools connections per host, so one Client should be
// constructed per upstream and reused.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      CredentialProvider
	policy     RetryPolicy
	breaker    *CircuitBreaker
	timeout    time.Duration
	userAgent  string
}

// New creates a client for the given upstream base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:   baseURL,
		policy:    DefaultRetryPolicy(),
		timeout:   30 * time.Second,
		userAgent: "marzkit/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breaker returns the configured circuit breaker, or nil.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// Do executes the request with the configured retry policy. The caller's
// context bounds the whole call including backoff sleeps; each dispatch is
// additionally capped by the per-attempt timeout.
//
// Outcome rules: a 2xx response returns normally. A 401 triggers one
// credential refresh and an immediate re-dispatch; a second 401 terminates
// the call. Retryable failures (network errors, timeouts, 5xx) consume
// attempts and, once exhausted, count as a single circuit breaker failure.
// Other 4xx responses terminate immediately and leave the breaker alone.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %w", ErrInvalidRequest, err)
		}
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	resp, err := c.doAttempts(ctx, req, payload)

	if c.breaker != nil {
		switch {
		case err == nil:
			c.breaker.RecordSuccess()
		case errors.Is(err, ErrPermanentFailure):
			// The upstream answered; nothing to learn about its health.
			c.breaker.Release()
		default:
			c.breaker.RecordFailure()
		}
	}

	return resp, err
}

func (c *Client) doAttempts(ctx context.Context, req Request, payload []byte) (*Response, error) {
	maxAttempts := c.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	refreshed := false
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(0)
			if c.policy.Backoff != nil {
				delay = c.policy.Backoff.NextInterval(attempt - 1)
			}
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := c.attempt(ctx, req, payload)

		// One refresh-and-retry per logical call keeps a misbehaving
		// auth endpoint from looping.
		if err == nil && resp.StatusCode == http.StatusUnauthorized && c.creds != nil {
			if refreshed {
				return nil, fmt.Errorf("%w: credential rejected after refresh", ErrAuthFailed)
			}
			refreshed = true
			if _, rerr := c.creds.RefreshToken(ctx); rerr != nil {
				return nil, fmt.Errorf("%w: refresh: %w", ErrAuthFailed, rerr)
			}
			resp, err = c.attempt(ctx, req, payload)
			if err == nil && resp.StatusCode == http.StatusUnauthorized {
				return nil, fmt.Errorf("%w: credential rejected after refresh", ErrAuthFailed)
			}
		}

		if err != nil {
			if errors.Is(err, ErrAuthFailed) {
				return nil, err
			}
			lastErr = err
			if ctx.Err() != nil {
				// The caller's deadline bounds the whole call.
				return nil, lastErr
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		statusErr := &StatusError{Code: resp.StatusCode, Body: resp.Body}
		if !c.policy.retryable(resp.StatusCode) {
			return nil, fmt.Errorf("%w: %w", ErrPermanentFailure, statusErr)
		}
		lastErr = fmt.Errorf("%w: %w", ErrTemporaryFailure, statusErr)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, lastErr)
}

// attempt performs a single dispatch. The credential is captured here, at
// dispatch time, so a concurrent refresh never swaps the token under an
// in-flight request.
func (c *Client) attempt(ctx context.Context, req Request, payload []byte) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	if c.creds != nil {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if reqCtx.Err() != nil || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTemporaryFailure, err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
