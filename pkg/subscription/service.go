package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marzkit/marzkit/pkg/panel"
	"github.com/marzkit/marzkit/pkg/ttlcache"
)

// PanelAPI is the slice of the panel client the service depends on.
type PanelAPI interface {
	CreateUser(ctx context.Context, req panel.CreateUserRequest) (*panel.User, error)
	GetUser(ctx context.Context, username string) (*panel.User, error)
	UpdateUser(ctx context.Context, username string, req panel.UpdateUserRequest) (*panel.User, error)
	DeleteUser(ctx context.Context, username string) error
}

// Service defines the public interface for subscription management.
type Service interface {
	// CreateTrial grants the one-time trial subscription for a user.
	CreateTrial(ctx context.Context, userID int64) (*Record, error)

	// GetStatus returns the effective subscription status, cache-first.
	GetStatus(ctx context.Context, userID int64) (StatusInfo, error)

	// Renew extends the subscription by the given number of days from
	// max(now, current expiry).
	Renew(ctx context.Context, userID int64, days int) (*Record, error)

	// ApplyPlan renews per a purchased plan: its duration and data limit.
	ApplyPlan(ctx context.Context, userID int64, plan Plan) (*Record, error)

	// Suspend and Activate flip the upstream account state.
	Suspend(ctx context.Context, userID int64) error
	Activate(ctx context.Context, userID int64) error

	// Remove deletes the upstream account and the stored record.
	Remove(ctx context.Context, userID int64) error

	// Sync pulls live usage from the panel into the stored record.
	Sync(ctx context.Context, userID int64) (*Record, error)

	// ExpiringSoon lists active subscriptions expiring within the window.
	ExpiringSoon(ctx context.Context, within time.Duration) ([]*Record, error)
}

type service struct {
	panel PanelAPI
	store Store
	cache *ttlcache.Cache[int64, StatusInfo]
	group singleflight.Group

	cfg         Config
	now         func() time.Time
	genUsername func(userID int64, now time.Time) string
	log         *slog.Logger
}

// NewService creates a subscription service. Panics if panelAPI or store
// is nil to fail fast during initialization.
func NewService(panelAPI PanelAPI, store Store, cfg Config, opts ...ServiceOption) Service {
	if panelAPI == nil {
		panic("subscription: PanelAPI is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}

	s := &service{
		panel: panelAPI,
		store: store,
		cache: ttlcache.New[int64, StatusInfo](),
		cfg:   cfg,
		now:   time.Now,
		genUsername: func(userID int64, now time.Time) string {
			return fmt.Sprintf("user_%d_%d", userID, now.Unix())
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTrial is intentionally not idempotent: a repeated call without an
// intervening expiry is rejected so a user cannot collect trials.
func (s *service) CreateTrial(ctx context.Context, userID int64) (*Record, error) {
	now := s.now()

	rec, err := s.store.Load(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if rec != nil {
		if rec.Status == StatusActive || rec.Status == StatusDisabled {
			return nil, ErrAlreadyExists
		}
		if rec.TrialUsed {
			return nil, ErrTrialAlreadyUsed
		}
	}

	username := s.genUsername(userID, now)
	expireAt := now.Add(time.Duration(s.cfg.TrialExpireDays) * 24 * time.Hour)

	user, err := s.panel.CreateUser(ctx, panel.CreateUserRequest{
		Username:  username,
		DataLimit: s.cfg.TrialDataLimit,
		ExpireAt:  expireAt,
	})
	if err != nil {
		return nil, err
	}

	record := &Record{
		UserID:          userID,
		PanelUsername:   user.Username,
		DataLimit:       s.cfg.TrialDataLimit,
		ExpireAt:        expireAt,
		Status:          StatusActive,
		SubscriptionURL: user.SubscriptionURL,
		TrialUsed:       true,
		UpdatedAt:       now,
	}
	if err := s.store.Save(ctx, record); err != nil {
		// Roll back the upstream account so a failed save does not leave
		// a trial the store knows nothing about.
		if derr := s.panel.DeleteUser(ctx, username); derr != nil {
			s.log.WarnContext(ctx, "orphaned panel user after failed save",
				slog.String("username", username), slog.Any("error", derr))
		}
		return nil, err
	}

	s.cache.Invalidate(userID)
	s.log.InfoContext(ctx, "trial subscription created",
		slog.Int64("user_id", userID), slog.String("username", username))
	return record, nil
}

// GetStatus is always safe to repeat. Concurrent lookups for the same
// user during a cache miss are coalesced into one upstream fetch.
func (s *service) GetStatus(ctx context.Context, userID int64) (StatusInfo, error) {
	if info, ok := s.cache.Get(userID); ok {
		return info, nil
	}

	v, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		// A concurrent flight may have populated the cache already.
		if info, ok := s.cache.Get(userID); ok {
			return info, nil
		}

		rec, err := s.store.Load(ctx, userID)
		if err != nil {
			return StatusInfo{}, err
		}

		user, err := s.panel.GetUser(ctx, rec.PanelUsername)
		if err != nil {
			return StatusInfo{}, err
		}

		info := StatusInfo{
			UserID:          userID,
			PanelUsername:   user.Username,
			Status:          deriveStatus(user, s.now()),
			DataLimit:       user.DataLimit,
			UsedTraffic:     user.UsedTraffic,
			ExpireAt:        user.ExpireAt(),
			SubscriptionURL: user.SubscriptionURL,
		}
		s.cache.Set(userID, info, s.cfg.CacheTTLMedium)
		return info, nil
	})
	if err != nil {
		return StatusInfo{}, err
	}
	return v.(StatusInfo), nil
}

func (s *service) Renew(ctx context.Context, userID int64, days int) (*Record, error) {
	return s.renew(ctx, userID, days, nil)
}

func (s *service) ApplyPlan(ctx context.Context, userID int64, plan Plan) (*Record, error) {
	return s.renew(ctx, userID, plan.Days, &plan.DataLimit)
}

// renew recomputes the expiry as max(now, current expiry) + days and
// pushes it upstream before touching the store: an upstream failure must
// leave the stored record unchanged.
func (s *service) renew(ctx context.Context, userID int64, days int, dataLimit *int64) (*Record, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidDuration, days)
	}

	rec, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	base := rec.ExpireAt
	if base.Before(now) {
		base = now
	}
	newExpire := base.AddDate(0, 0, days)

	status := panel.UserStatusActive
	if _, err := s.panel.UpdateUser(ctx, rec.PanelUsername, panel.UpdateUserRequest{
		ExpireAt:  &newExpire,
		DataLimit: dataLimit,
		Status:    &status,
	}); err != nil {
		return nil, err
	}

	rec.ExpireAt = newExpire
	rec.Status = StatusActive
	if dataLimit != nil {
		rec.DataLimit = *dataLimit
	}
	rec.UpdatedAt = now
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	s.cache.Invalidate(userID)
	s.log.InfoContext(ctx, "subscription renewed",
		slog.Int64("user_id", userID), slog.Time("expire_at", newExpire))
	return rec, nil
}

func (s *service) Suspend(ctx context.Context, userID int64) error {
	return s.setState(ctx, userID, panel.UserStatusDisabled, StatusDisabled)
}

func (s *service) Activate(ctx context.Context, userID int64) error {
	return s.setState(ctx, userID, panel.UserStatusActive, StatusActive)
}

func (s *service) setState(ctx context.Context, userID int64, upstream panel.UserStatus, local Status) error {
	rec, err := s.store.Load(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.panel.UpdateUser(ctx, rec.PanelUsername, panel.UpdateUserRequest{
		Status: &upstream,
	}); err != nil {
		return err
	}

	rec.Status = local
	rec.UpdatedAt = s.now()
	if err := s.store.Save(ctx, rec); err != nil {
		return err
	}

	s.cache.Invalidate(userID)
	return nil
}

func (s *service) Remove(ctx context.Context, userID int64) error {
	rec, err := s.store.Load(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.panel.DeleteUser(ctx, rec.PanelUsername); err != nil && !errors.Is(err, panel.ErrNotFound) {
		return err
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		return err
	}

	s.cache.Invalidate(userID)
	s.log.InfoContext(ctx, "subscription removed", slog.Int64("user_id", userID))
	return nil
}

func (s *service) Sync(ctx context.Context, userID int64) (*Record, error) {
	rec, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err := s.panel.GetUser(ctx, rec.PanelUsername)
	if err != nil {
		return nil, err
	}

	rec.UsedTraffic = user.UsedTraffic
	rec.DataLimit = user.DataLimit
	rec.ExpireAt = user.ExpireAt()
	rec.Status = deriveStatus(user, s.now())
	rec.UpdatedAt = s.now()
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	s.cache.Invalidate(userID)
	return rec, nil
}

func (s *service) ExpiringSoon(ctx context.Context, within time.Duration) ([]*Record, error) {
	return s.store.ExpiringBefore(ctx, s.now().Add(within))
}

// deriveStatus computes the effective status from live upstream state: a
// subscription is active only while it is not disabled, not past its
// expiry, and not over its traffic limit.
func deriveStatus(u *panel.User, now time.Time) Status {
	if u.Status == panel.UserStatusDisabled {
		return StatusDisabled
	}
	if exp := u.ExpireAt(); !exp.IsZero() && !now.Before(exp) {
		return StatusExpired
	}
	if u.DataLimit > 0 && u.UsedTraffic >= u.DataLimit {
		return StatusExpired
	}
	return StatusActive
}
