package subscription

import (
	"context"
	"sync"
	"time"
)

// Store is the external user-record store. Implementations must provide
// read-your-writes consistency within a single process. Load returns
// ErrNotFound for unknown user ids.
type Store interface {
	Load(ctx context.Context, userID int64) (*Record, error)
	Save(ctx context.Context, record *Record) error
	Delete(ctx context.Context, userID int64) error

	// ExpiringBefore lists active records whose expiry falls before the
	// given instant, for proactive renewal reminders.
	ExpiringBefore(ctx context.Context, t time.Time) ([]*Record, error)
}

// MemoryStore is an in-process Store backed by a map. Suitable for tests
// and single-instance deployments without persistence requirements.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record)}
}

func (s *MemoryStore) Load(_ context.Context, userID int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy so callers cannot mutate stored state in place.
	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = *record
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *MemoryStore) ExpiringBefore(_ context.Context, t time.Time) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.Status == StatusActive && !rec.ExpireAt.IsZero() && rec.ExpireAt.Before(t) {
			cp := rec
			out = append(out, &cp)
		}
	}
	return out, nil
}
