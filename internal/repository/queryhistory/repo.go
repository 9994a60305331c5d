// Package queryhistory records enhanced queries for later analysis.
package queryhistory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/matsearch/internal/db"
	"github.com/kailas-cloud/matsearch/internal/domain"
)

// store is the consumer interface for history writes (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Entry is one recorded query.
type Entry struct {
	Query     string
	Enhanced  string
	Embedding []float32
	UserID    string
	Domain    string
	Timestamp time.Time
}

// Repo writes query history entries as hashes with a TTL.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a query history repository.
func New(s store, prefix string, ttl time.Duration) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix, ttl: ttl}
}

// Record stores e and returns the generated entry id.
func (r *Repo) Record(ctx context.Context, e Entry) (string, error) {
	id := uuid.NewString()
	key := r.prefix + "history:" + id

	fields := map[string]string{
		"query":     e.Query,
		"timestamp": strconv.FormatInt(e.Timestamp.UnixMilli(), 10),
	}
	if e.Enhanced != "" {
		fields["enhanced"] = e.Enhanced
	}
	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if e.Domain != "" {
		fields["domain"] = e.Domain
	}
	if len(e.Embedding) > 0 {
		fields[db.VectorField] = db.EncodeVector(e.Embedding)
	}

	if err := r.store.HSet(ctx, key, fields); err != nil {
		return "", fmt.Errorf("hset history: %w", err)
	}
	if r.ttl > 0 {
		if err := r.store.Expire(ctx, key, r.ttl, false); err != nil {
			return "", fmt.Errorf("expire history: %w", err)
		}
	}
	return id, nil
}
