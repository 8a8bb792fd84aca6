package httpx

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Useful for custom
// transports, proxies, or testing.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-attempt timeout. The caller's context still
// bounds the whole call including retries. Default is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetryPolicy sets the retry policy. Default is three attempts with
// exponential backoff.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithCircuitBreaker attaches a circuit breaker. Reuse the same instance
// for every client talking to the same upstream.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithCredentials sets the provider whose token is injected as a bearer
// Authorization header on every dispatch.
func WithCredentials(provider CredentialProvider) Option {
	return func(c *Client) {
		c.creds = provider
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}
