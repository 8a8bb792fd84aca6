package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for deployments where records
// must survive process restarts or be shared across instances. Records are
// stored as JSON under a common key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on top of an established Redis client.
// Panics if client is nil to fail fast during initialization.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		panic("subscription: redis client is required")
	}
	if prefix == "" {
		prefix = "subscription:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Load(ctx context.Context, userID int64) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load record %d: %w", userID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %d: %w", userID, err)
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %d: %w", record.UserID, err)
	}
	if err := s.client.Set(ctx, s.key(record.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("save record %d: %w", record.UserID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete record %d: %w", userID, err)
	}
	return nil
}

// ExpiringBefore scans the key space under the store prefix. The key space
// is bounded by the user base, so a full scan stays cheap; switch to a
// sorted-set index if that assumption breaks.
func (s *RedisStore) ExpiringBefore(ctx context.Context, t time.Time) ([]*Record, error) {
	var out []*Record

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // deleted between scan and read
		}
		if err != nil {
			return nil, fmt.Errorf("scan records: %w", err)
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode record at %s: %w", iter.Val(), err)
		}
		if rec.Status == StatusActive && !rec.ExpireAt.IsZero() && rec.ExpireAt.Before(t) {
			out = append(out, &rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return out, nil
}
