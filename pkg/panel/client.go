package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/marzkit/marzkit/pkg/httpx"
)

const maxResponseBytes = 1 << 20

// Client maps panel user operations onto resilient HTTP calls. It is a
// pure translation layer: no caching and no business policy, just resource
// paths, payload shapes, and error kinds.
type Client struct {
	transport *httpx.Client
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a panel client on top of the given transport. Panics if
// transport is nil to fail fast during initialization.
func New(transport *httpx.Client, opts ...Option) *Client {
	if transport == nil {
		panic("panel: transport is required")
	}
	c := &Client{
		transport: transport,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateUser provisions a new account with a vless proxy, the given data
// limit, and expiry. Returns ErrConflict if the username is taken.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	body := map[string]any{
		"username":   req.Username,
		"proxies":    map[string]any{"vless": map[string]any{}},
		"data_limit": req.DataLimit,
		"expire":     req.ExpireAt.Unix(),
		"status":     string(UserStatusActive),
	}

	resp, err := c.transport.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   "/api/user",
		Body:   body,
	})
	if err != nil {
		return nil, translate(err)
	}

	user, err := decodeUser(resp.Body)
	if err != nil {
		return nil, err
	}
	c.log.InfoContext(ctx, "panel user created", slog.String("username", user.Username))
	return user, nil
}

// GetUser fetches an account by username. Returns ErrNotFound for unknown
// usernames.
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	resp, err := c.transport.Do(ctx, httpx.Request{
		Method: http.MethodGet,
		Path:   "/api/user/" + url.PathEscape(username),
	})
	if err != nil {
		return nil, translate(err)
	}
	return decodeUser(resp.Body)
}

// UpdateUser applies a partial update and returns the resulting account
// state. An empty update is rejected without an upstream call.
func (c *Client) UpdateUser(ctx context.Context, username string, req UpdateUserRequest) (*User, error) {
	body := req.body()
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty update", httpx.ErrInvalidRequest)
	}

	resp, err := c.transport.Do(ctx, httpx.Request{
		Method: http.MethodPut,
		Path:   "/api/user/" + url.PathEscape(username),
		Body:   body,
	})
	if err != nil {
		return nil, translate(err)
	}

	user, err := decodeUser(resp.Body)
	if err != nil {
		return nil, err
	}
	c.log.InfoContext(ctx, "panel user updated", slog.String("username", username))
	return user, nil
}

// DeleteUser removes an account. Returns ErrNotFound for unknown usernames.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	_, err := c.transport.Do(ctx, httpx.Request{
		Method: http.MethodDelete,
		Path:   "/api/user/" + url.PathEscape(username),
	})
	if err != nil {
		return translate(err)
	}
	c.log.InfoContext(ctx, "panel user deleted", slog.String("username", username))
	return nil
}

// HealthCheck probes the panel with an authenticated system call.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.transport.Do(ctx, httpx.Request{
		Method: http.MethodGet,
		Path:   "/api/system",
	})
	return translate(err)
}

func decodeUser(data []byte) (*User, error) {
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, errors.Join(ErrInvalidResponse, err)
	}
	if user.Username == "" {
		return nil, fmt.Errorf("%w: missing username", ErrInvalidResponse)
	}
	return &user, nil
}
