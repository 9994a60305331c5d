package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/matsearch/internal/domain"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu        sync.Mutex
	sessions  map[string]*domconv.Context
	gets      int
	getErr    error
	upsertErr error
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: make(map[string]*domconv.Context)}
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domconv.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.getErr != nil {
		return nil, r.getErr
	}
	c, ok := r.sessions[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "test.get", nil)
	}
	return c.Clone(), nil
}

func (r *memRepo) Upsert(_ context.Context, c *domconv.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.sessions[c.SessionID] = c.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok, nil
}

func newTestManager(t *testing.T, repo Repository) *Manager {
	t.Helper()
	m, err := NewManager(repo, Options{MaxSessions: 100, TTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.now = func() time.Time { return testTime }
	t.Cleanup(m.Close)
	return m
}
