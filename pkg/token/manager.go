package token

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Credential is an immutable snapshot of an upstream bearer token. A
// refresh replaces the whole value; in-flight requests keep the snapshot
// they captured at dispatch.
type Credential struct {
	AccessToken string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Valid reports whether the credential can still sign requests at the
// given instant. A zero ExpiresAt never expires.
func (c Credential) Valid(now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// AuthFunc performs the blocking authentication call against the upstream
// and returns a fresh credential.
type AuthFunc func(ctx context.Context) (Credential, error)

// Manager owns the current credential for one upstream. It refreshes on
// demand when the credential expires and coalesces concurrent refreshes so
// at most one authentication call is in flight at any time.
type Manager struct {
	authenticate AuthFunc
	skew         time.Duration
	log          *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	current Credential
}

// Option configures a Manager.
type Option func(*Manager)

// WithExpirySkew refreshes the credential this long before its declared
// expiry, so requests never dispatch with a token about to lapse.
// Default is 30 seconds.
func WithExpirySkew(skew time.Duration) Option {
	return func(m *Manager) {
		if skew >= 0 {
			m.skew = skew
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a manager around the given authentication call.
// Panics if authenticate is nil to fail fast during initialization.
func NewManager(authenticate AuthFunc, opts ...Option) *Manager {
	if authenticate == nil {
		panic("token: AuthFunc is required")
	}
	m := &Manager{
		authenticate: authenticate,
		skew:         30 * time.Second,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the current credential, authenticating first if none is held
// or the held one is expired. Concurrent callers share a single
// authentication flight and receive its result.
func (m *Manager) Get(ctx context.Context) (Credential, error) {
	if cred, ok := m.fresh(); ok {
		return cred, nil
	}
	return m.refresh(ctx)
}

// ForceRefresh discards the current credential and authenticates again.
// Used by the 401-retry path. Concurrent force-refreshes are coalesced
// into one authentication call.
func (m *Manager) ForceRefresh(ctx context.Context) (Credential, error) {
	return m.refresh(ctx)
}

// Token implements the credential-provider contract of pkg/httpx.
func (m *Manager) Token(ctx context.Context) (string, error) {
	cred, err := m.Get(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// RefreshToken implements the credential-provider contract of pkg/httpx.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	cred, err := m.ForceRefresh(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Current returns the held credential without triggering authentication.
func (m *Manager) Current() Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) fresh() (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.Valid(time.Now().Add(m.skew)) {
		return m.current, true
	}
	return Credential{}, false
}

func (m *Manager) refresh(ctx context.Context) (Credential, error) {
	// All refresh demand funnels into one flight keyed per manager.
	v, err, _ := m.group.Do("authenticate", func() (any, error) {
		cred, err := m.authenticate(ctx)
		if err != nil {
			m.log.ErrorContext(ctx, "upstream authentication failed", slog.Any("error", err))
			return Credential{}, err
		}
		if cred.IssuedAt.IsZero() {
			cred.IssuedAt = time.Now()
		}

		m.mu.Lock()
		m.current = cred
		m.mu.Unlock()

		m.log.DebugContext(ctx, "credential refreshed",
			slog.Time("expires_at", cred.ExpiresAt))
		return cred, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}
