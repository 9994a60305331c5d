// Package budget persists encoder token counters per period.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/matsearch/internal/db"
	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/usage"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps one counter per (provider, period, bucket) with a TTL that
// outlives the period, so stale buckets disappear on their own.
type Store struct {
	store    store
	prefix   string
	provider string
	ttls     map[usage.Period]time.Duration
}

// New creates a budget store for one encoder provider.
// dailyTTL should exceed a day (48h), monthTTL a month (62 days).
func New(s store, prefix, provider string, dailyTTL, monthTTL time.Duration) *Store {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Store{
		store:    s,
		prefix:   prefix,
		provider: provider,
		ttls: map[usage.Period]time.Duration{
			usage.PeriodDay:   dailyTTL,
			usage.PeriodMonth: monthTTL,
		},
	}
}

func (s *Store) key(period usage.Period, bucket string) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s", s.prefix, s.provider, period, bucket)
}

// Add increments the bucket counter. The TTL is set on first write only.
func (s *Store) Add(ctx context.Context, period usage.Period, bucket string, tokens int64) error {
	key := s.key(period, bucket)
	if err := s.store.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}
	if err := s.store.Expire(ctx, key, s.ttls[period], true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Used returns the bucket counter, 0 when the bucket does not exist.
func (s *Store) Used(ctx context.Context, period usage.Period, bucket string) (int64, error) {
	key := s.key(period, bucket)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}
