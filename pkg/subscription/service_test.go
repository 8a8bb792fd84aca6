package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marzkit/marzkit/pkg/panel"
	"github.com/marzkit/marzkit/pkg/subscription"
)

type fakePanel struct {
	mu    sync.Mutex
	users map[string]*panel.User

	createErr error
	getErr    error
	updateErr error
	deleteErr error

	createCalls int
	getCalls    int
	updateCalls int
	deleteCalls int

	getDelay time.Duration
}

func newFakePanel() *fakePanel {
	return &fakePanel{users: map[string]*panel.User{}}
}

func (f *fakePanel) CreateUser(_ context.Context, req panel.CreateUserRequest) (*panel.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.users[req.Username]; ok {
		return nil, panel.ErrConflict
	}
	exp := req.ExpireAt.Unix()
	u := &panel.User{
		Username:        req.Username,
		DataLimit:       req.DataLimit,
		Expire:          &exp,
		Status:          panel.UserStatusActive,
		SubscriptionURL: "https://panel.example.com/sub/" + req.Username,
	}
	f.users[req.Username] = u
	cp := *u
	return &cp, nil
}

func (f *fakePanel) GetUser(_ context.Context, username string) (*panel.User, error) {
	if f.getDelay > 0 {
		time.Sleep(f.getDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, panel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakePanel) UpdateUser(_ context.Context, username string, req panel.UpdateUserRequest) (*panel.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, panel.ErrNotFound
	}
	if req.DataLimit != nil {
		u.DataLimit = *req.DataLimit
	}
	if req.ExpireAt != nil {
		exp := req.ExpireAt.Unix()
		u.Expire = &exp
	}
	if req.Status != nil {
		u.Status = *req.Status
	}
	cp := *u
	return &cp, nil
}

func (f *fakePanel) DeleteUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.users[username]; !ok {
		return panel.ErrNotFound
	}
	delete(f.users, username)
	return nil
}

type failingStore struct {
	subscription.Store
	saveErr error
}

func (s *failingStore) Save(ctx context.Context, record *subscription.Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.Save(ctx, record)
}

func testConfig() subscription.Config {
	return subscription.Config{
		TrialDataLimit:  5_368_709_120,
		TrialExpireDays: 3,
		CacheTTLShort:   5 * time.Minute,
		CacheTTLMedium:  30 * time.Minute,
		CacheTTLLong:    time.Hour,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestService_CreateTrial(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("grants trial once", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		rec, err := svc.CreateTrial(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), rec.UserID)
		assert.Equal(t, int64(5_368_709_120), rec.DataLimit)
		assert.Equal(t, now.Add(72*time.Hour), rec.ExpireAt)
		assert.Equal(t, subscription.StatusActive, rec.Status)
		assert.True(t, rec.TrialUsed)
		assert.NotEmpty(t, rec.SubscriptionURL)

		stored, err := store.Load(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, rec.PanelUsername, stored.PanelUsername)
		assert.Equal(t, 1, api.createCalls)
	})

	t.Run("second call rejected while live", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		svc := subscription.NewService(api, subscription.NewMemoryStore(), testConfig(),
			subscription.WithClock(fixedClock(now)))

		_, err := svc.CreateTrial(context.Background(), 42)
		require.NoError(t, err)

		_, err = svc.CreateTrial(context.Background(), 42)
		assert.ErrorIs(t, err, subscription.ErrAlreadyExists)

		// No duplicate upstream user was created.
		assert.Equal(t, 1, api.createCalls)
	})

	t.Run("trial not regranted after expiry", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		require.NoError(t, store.Save(context.Background(), &subscription.Record{
			UserID:        42,
			PanelUsername: "user_42_1",
			Status:        subscription.StatusExpired,
			TrialUsed:     true,
		}))

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		_, err := svc.CreateTrial(context.Background(), 42)
		assert.ErrorIs(t, err, subscription.ErrTrialAlreadyUsed)
		assert.Equal(t, 0, api.createCalls)
	})

	t.Run("upstream failure passes through", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		api.createErr = panel.ErrUpstreamUnavailable
		store := subscription.NewMemoryStore()
		svc := subscription.NewService(api, store, testConfig())

		_, err := svc.CreateTrial(context.Background(), 42)
		assert.ErrorIs(t, err, panel.ErrUpstreamUnavailable)

		// Nothing persisted on failure.
		_, err = store.Load(context.Background(), 42)
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("rolls back panel user when save fails", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := &failingStore{
			Store:   subscription.NewMemoryStore(),
			saveErr: errors.New("store down"),
		}
		svc := subscription.NewService(api, store, testConfig())

		_, err := svc.CreateTrial(context.Background(), 42)
		require.Error(t, err)
		assert.Equal(t, 1, api.deleteCalls)
		assert.Empty(t, api.users)
	})
}

func TestService_GetStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, api *fakePanel, store subscription.Store, used int64, expire time.Time) {
		t.Helper()
		exp := expire.Unix()
		api.users["user_42_1"] = &panel.User{
			Username:        "user_42_1",
			DataLimit:       5_368_709_120,
			UsedTraffic:     used,
			Expire:          &exp,
			Status:          panel.UserStatusActive,
			SubscriptionURL: "https://panel.example.com/sub/user_42_1",
		}
		require.NoError(t, store.Save(context.Background(), &subscription.Record{
			UserID:        42,
			PanelUsername: "user_42_1",
			Status:        subscription.StatusActive,
		}))
	}

	t.Run("active under limit and before expiry", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		seed(t, api, store, 5_000_000_000, now.Add(time.Hour))

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		info, err := svc.GetStatus(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, info.Status)
		assert.Equal(t, int64(5_000_000_000), info.UsedTraffic)
	})

	t.Run("expired when traffic exceeds limit", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		seed(t, api, store, 5_400_000_000, now.Add(time.Hour))

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		info, err := svc.GetStatus(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, info.Status)
	})

	t.Run("expired when past expiry", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		seed(t, api, store, 0, now.Add(-time.Minute))

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		info, err := svc.GetStatus(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, info.Status)
	})

	t.Run("disabled upstream wins", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		seed(t, api, store, 0, now.Add(time.Hour))
		api.users["user_42_1"].Status = panel.UserStatusDisabled

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		info, err := svc.GetStatus(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusDisabled, info.Status)
	})

	t.Run("cache hit skips upstream", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		seed(t, api, store, 0, now.Add(time.Hour))

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		_, err := svc.GetStatus(context.Background(), 42)
		require.NoError(t, err)
		_, err = svc.GetStatus(context.Background(), 42)
		require.NoError(t, err)

		assert.Equal(t, 1, api.getCalls)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(newFakePanel(), subscription.NewMemoryStore(), testConfig())

		_, err := svc.GetStatus(context.Background(), 7)
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})
}

func TestService_GetStatus_CoalescesConcurrentMisses(t *testing.T) {
	t.Parallel()

	now := time.Now()
	api := newFakePanel()
	api.getDelay = 50 * time.Millisecond
	exp := now.Add(time.Hour).Unix()
	api.users["user_42_1"] = &panel.User{
		Username:  "user_42_1",
		DataLimit: 1000,
		Expire:    &exp,
		Status:    panel.UserStatusActive,
	}
	store := subscription.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID:        42,
		PanelUsername: "user_42_1",
		Status:        subscription.StatusActive,
	}))

	svc := subscription.NewService(api, store, testConfig())

	const goroutines = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	results := make([]subscription.StatusInfo, goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			info, err := svc.GetStatus(context.Background(), 42)
			assert.NoError(t, err)
			results[i] = info
		}(i)
	}
	wg.Wait()

	// One upstream fetch served every caller the same result.
	assert.Equal(t, 1, api.getCalls)
	for _, info := range results {
		assert.Equal(t, results[0], info)
	}
}

func TestService_Renew(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, api *fakePanel, store subscription.Store, expire time.Time) {
		t.Helper()
		exp := expire.Unix()
		api.users["user_42_1"] = &panel.User{
			Username: "user_42_1",
			Expire:   &exp,
			Status:   panel.UserStatusActive,
		}
		require.NoError(t, store.Save(context.Background(), &subscription.Record{
			UserID:        42,
			PanelUsername: "user_42_1",
			ExpireAt:      expire,
			Status:        subscription.StatusActive,
		}))
	}

	t.Run("past expiry renews from now", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		seed(t, api, store, now.Add(-48*time.Hour))

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		rec, err := svc.Renew(context.Background(), 42, 30)
		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, 30), rec.ExpireAt)
		assert.Equal(t, subscription.StatusActive, rec.Status)
	})

	t.Run("future expiry extends from expiry", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		current := now.Add(120 * time.Hour)
		seed(t, api, store, current)

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		rec, err := svc.Renew(context.Background(), 42, 30)
		require.NoError(t, err)
		assert.Equal(t, current.AddDate(0, 0, 30), rec.ExpireAt)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(newFakePanel(), subscription.NewMemoryStore(), testConfig())

		_, err := svc.Renew(context.Background(), 42, 30)
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("non-positive days rejected", func(t *testing.T) {
		t.Parallel()

		svc := subscription.NewService(newFakePanel(), subscription.NewMemoryStore(), testConfig())

		_, err := svc.Renew(context.Background(), 42, 0)
		assert.ErrorIs(t, err, subscription.ErrInvalidDuration)
	})

	t.Run("upstream failure leaves store unchanged", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		original := now.Add(24 * time.Hour)
		seed(t, api, store, original)
		api.updateErr = panel.ErrUpstreamUnavailable

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		_, err := svc.Renew(context.Background(), 42, 30)
		require.ErrorIs(t, err, panel.ErrUpstreamUnavailable)

		rec, err := store.Load(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, original, rec.ExpireAt)
	})

	t.Run("renew invalidates cached status", func(t *testing.T) {
		t.Parallel()

		api := newFakePanel()
		store := subscription.NewMemoryStore()
		seed(t, api, store, now.Add(24*time.Hour))

		svc := subscription.NewService(api, store, testConfig(),
			subscription.WithClock(fixedClock(now)))

		_, err := svc.GetStatus(context.Background(), 42)
		require.NoError(t, err)

		_, err = svc.Renew(context.Background(), 42, 30)
		require.NoError(t, err)

		_, err = svc.GetStatus(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, 2, api.getCalls)
	})
}

func TestService_ApplyPlan(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	api := newFakePanel()
	store := subscription.NewMemoryStore()
	exp := now.Add(-time.Hour).Unix()
	api.users["user_42_1"] = &panel.User{
		Username: "user_42_1",
		Expire:   &exp,
		Status:   panel.UserStatusExpired,
	}
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID:        42,
		PanelUsername: "user_42_1",
		ExpireAt:      now.Add(-time.Hour),
		Status:        subscription.StatusExpired,
	}))

	svc := subscription.NewService(api, store, testConfig(),
		subscription.WithClock(fixedClock(now)))

	plan, err := subscription.PlanByID(subscription.DefaultPlans(), "3")
	require.NoError(t, err)

	rec, err := svc.ApplyPlan(context.Background(), 42, plan)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 90), rec.ExpireAt)
	assert.Equal(t, int64(322_122_547_200), rec.DataLimit)
	assert.Equal(t, subscription.StatusActive, rec.Status)

	// The upstream account was updated too.
	assert.Equal(t, int64(322_122_547_200), api.users["user_42_1"].DataLimit)
	assert.Equal(t, panel.UserStatusActive, api.users["user_42_1"].Status)
}

func TestService_SuspendActivate(t *testing.T) {
	t.Parallel()

	api := newFakePanel()
	store := subscription.NewMemoryStore()
	api.users["user_42_1"] = &panel.User{Username: "user_42_1", Status: panel.UserStatusActive}
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID:        42,
		PanelUsername: "user_42_1",
		Status:        subscription.StatusActive,
	}))

	svc := subscription.NewService(api, store, testConfig())

	require.NoError(t, svc.Suspend(context.Background(), 42))
	rec, err := store.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusDisabled, rec.Status)
	assert.Equal(t, panel.UserStatusDisabled, api.users["user_42_1"].Status)

	require.NoError(t, svc.Activate(context.Background(), 42))
	rec, err = store.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, rec.Status)
	assert.Equal(t, panel.UserStatusActive, api.users["user_42_1"].Status)
}

func TestService_Remove(t *testing.T) {
	t.Parallel()

	api := newFakePanel()
	store := subscription.NewMemoryStore()
	api.users["user_42_1"] = &panel.User{Username: "user_42_1"}
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID:        42,
		PanelUsername: "user_42_1",
	}))

	svc := subscription.NewService(api, store, testConfig())

	require.NoError(t, svc.Remove(context.Background(), 42))
	assert.Empty(t, api.users)

	_, err := store.Load(context.Background(), 42)
	assert.ErrorIs(t, err, subscription.ErrNotFound)

	// Removing a user whose panel account is already gone still cleans up.
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID:        43,
		PanelUsername: "user_43_1",
	}))
	require.NoError(t, svc.Remove(context.Background(), 43))
}

func TestService_Sync(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	api := newFakePanel()
	store := subscription.NewMemoryStore()
	exp := now.Add(time.Hour).Unix()
	api.users["user_42_1"] = &panel.User{
		Username:    "user_42_1",
		DataLimit:   1000,
		UsedTraffic: 900,
		Expire:      &exp,
		Status:      panel.UserStatusActive,
	}
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID:        42,
		PanelUsername: "user_42_1",
		Status:        subscription.StatusActive,
	}))

	svc := subscription.NewService(api, store, testConfig(),
		subscription.WithClock(fixedClock(now)))

	rec, err := svc.Sync(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(900), rec.UsedTraffic)
	assert.Equal(t, int64(1000), rec.DataLimit)
	assert.Equal(t, time.Unix(exp, 0), rec.ExpireAt)
}

func TestService_ExpiringSoon(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID: 1, ExpireAt: now.Add(24 * time.Hour), Status: subscription.StatusActive,
	}))
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID: 2, ExpireAt: now.Add(240 * time.Hour), Status: subscription.StatusActive,
	}))
	require.NoError(t, store.Save(context.Background(), &subscription.Record{
		UserID: 3, ExpireAt: now.Add(12 * time.Hour), Status: subscription.StatusDisabled,
	}))

	svc := subscription.NewService(newFakePanel(), store, testConfig(),
		subscription.WithClock(fixedClock(now)))

	recs, err := svc.ExpiringSoon(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].UserID)
}

func TestNewService_RequiresDependencies(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		subscription.NewService(nil, subscription.NewMemoryStore(), testConfig())
	})
	assert.Panics(t, func() {
		subscription.NewService(newFakePanel(), nil, testConfig())
	})
}
