package subscription

import (
	"log/slog"
	"time"

	"github.com/marzkit/marzkit/pkg/ttlcache"
)

// ServiceOption configures optional service settings.
type ServiceOption func(*service)

// WithCache replaces the status cache, e.g. to share one across services
// or to attach a sweeper-managed instance.
func WithCache(cache *ttlcache.Cache[int64, StatusInfo]) ServiceOption {
	return func(s *service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUsernameGenerator overrides how panel usernames are derived from
// external user ids.
func WithUsernameGenerator(gen func(userID int64, now time.Time) string) ServiceOption {
	return func(s *service) {
		if gen != nil {
			s.genUsername = gen
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}
