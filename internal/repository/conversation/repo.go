// Package conversation persists conversation contexts as JSON documents with a TTL.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/matsearch/internal/db"
	"github.com/kailas-cloud/matsearch/internal/domain"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
)

// store is the consumer interface for session persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
}

// Repo implements conversation persistence.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a conversation repository. Each save refreshes the ttl.
func New(s store, prefix string, ttl time.Duration) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix, ttl: ttl}
}

func (r *Repo) key(sessionID string) string { return r.prefix + "session:" + sessionID }

// GetByID loads a context. A missing session yields domain.ErrNotFound.
func (r *Repo) GetByID(ctx context.Context, sessionID string) (*domconv.Context, error) {
	data, err := r.store.Get(ctx, r.key(sessionID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.E(domain.KindNotFound, "conversation.get", nil)
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var c domconv.Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if c.Entities == nil {
		c.Entities = make(map[string]string)
	}
	return &c, nil
}

// Upsert writes the whole context. Concurrent writers to one session are
// not serialized; the last write wins.
func (r *Repo) Upsert(ctx context.Context, c *domconv.Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", c.SessionID, err)
	}
	if err := r.store.SetWithTTL(ctx, r.key(c.SessionID), data, r.ttl); err != nil {
		return fmt.Errorf("set session %s: %w", c.SessionID, err)
	}
	return nil
}

// Delete removes a session and reports whether it existed.
func (r *Repo) Delete(ctx context.Context, sessionID string) (bool, error) {
	key := r.key(sessionID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", sessionID, err)
	}
	if !exists {
		return false, nil
	}
	if err := r.store.Del(ctx, key); err != nil {
		return false, fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return true, nil
}
