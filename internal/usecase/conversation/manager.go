// Package conversation manages per-session dialogue state across turns.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/matsearch/internal/domain"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/logger"
	"github.com/kailas-cloud/matsearch/internal/metrics"
)

// Options bounds the in-process session cache.
type Options struct {
	MaxSessions int64
	TTL         time.Duration
}

// Manager caches sessions in process and persists them through Repository.
// The cache holds at most MaxSessions contexts (one cost unit each) and
// drops entries after TTL; the repository stays authoritative.
// Concurrent turns on one session are not serialized: the last Save wins.
type Manager struct {
	repo   Repository
	cache  *ristretto.Cache[string, *domconv.Context]
	ttl    time.Duration
	loads  singleflight.Group
	now    func() time.Time
	logger *zap.Logger
}

// NewManager creates a conversation manager.
func NewManager(repo Repository, opts Options, logger *zap.Logger) (*Manager, error) {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10000
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *domconv.Context]{
		NumCounters: opts.MaxSessions * 10,
		MaxCost:     opts.MaxSessions,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		repo:   repo,
		cache:  cache,
		ttl:    opts.TTL,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Close releases the cache.
func (m *Manager) Close() { m.cache.Close() }

// GetOrCreate returns the session for sessionID, or a fresh one when the id is
// empty or unknown. A fresh session opens with the welcome message.
// Storage failures are logged and answered with a fresh session under the
// requested id. The returned context is a private copy.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*domconv.Context, bool) {
	if sessionID == "" {
		return m.create(uuid.NewString()), true
	}

	c, err := m.Load(ctx, sessionID)
	switch {
	case err == nil:
		return c, false
	case errors.Is(err, domain.ErrNotFound):
	default:
		logger.FromContextOr(ctx, m.logger).Warn("load session failed, starting fresh",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	return m.create(sessionID), true
}

// Load returns the session from cache, else from the repository.
// An unknown session yields domain.ErrNotFound.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domconv.Context, error) {
	if c, ok := m.cache.Get(sessionID); ok {
		metrics.ConversationCacheTotal.WithLabelValues("hit").Inc()
		return c.Clone(), nil
	}
	metrics.ConversationCacheTotal.WithLabelValues("miss").Inc()

	v, err, _ := m.loads.Do(sessionID, func() (any, error) {
		c, err := m.repo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		m.cache.SetWithTTL(sessionID, c.Clone(), 1, m.ttl)
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return v.(*domconv.Context).Clone(), nil
}

// Append adds msg to c, assigning an id and timestamp when missing.
func (m *Manager) Append(c *domconv.Context, msg domconv.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now()
	}
	c.Append(msg)
}

// Save caches c and persists it. The cache is updated even when persistence fails.
func (m *Manager) Save(ctx context.Context, c *domconv.Context) error {
	c.UpdatedAt = m.now()
	m.cache.SetWithTTL(c.SessionID, c.Clone(), 1, m.ttl)
	m.cache.Wait()

	if err := m.repo.Upsert(ctx, c); err != nil {
		return domain.E(domain.KindPersistence, "conversation.save", err)
	}
	return nil
}

// Clear forgets a session. Reports whether it existed in storage.
func (m *Manager) Clear(ctx context.Context, sessionID string) (bool, error) {
	m.cache.Del(sessionID)
	ok, err := m.repo.Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return ok, nil
}

func (m *Manager) create(sessionID string) *domconv.Context {
	metrics.ConversationCacheTotal.WithLabelValues("created").Inc()
	now := m.now()
	c := domconv.New(sessionID, now)
	c.Append(domconv.Message{
		ID:        uuid.NewString(),
		Role:      domconv.RoleSystem,
		Content:   domconv.WelcomeMessage,
		Timestamp: now,
	})
	return c
}
