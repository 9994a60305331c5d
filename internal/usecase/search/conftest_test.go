package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/concept"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/material"
	"github.com/kailas-cloud/matsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
	"github.com/kailas-cloud/matsearch/internal/retry"
	"github.com/kailas-cloud/matsearch/internal/usecase/conversation"
	"github.com/kailas-cloud/matsearch/internal/usecase/understanding"
)

var errUnavailable = errors.New("service unavailable")

// mockRemote replays scripted outcomes, one per Search call.
type mockRemote struct {
	mu      sync.Mutex
	pingErr error
	pings   int
	script  []error
	calls   int
	env     *result.Envelope
}

func (m *mockRemote) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pings++
	return m.pingErr
}

func (m *mockRemote) Search(_ context.Context, _ *request.Request) (*result.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.script) && m.script[i] != nil {
		return nil, m.script[i]
	}
	env := &result.Envelope{Materials: []material.Scored{{Material: material.Material{ID: "remote-1"}, Score: 0.9}}}
	if m.env != nil {
		cp := *m.env
		env = &cp
	}
	return env, nil
}

func retryable() error {
	return domain.E(domain.KindRetryableTransport, "remote.search", errUnavailable)
}

type consumeCall struct {
	userID, operation string
	units             int64
}

type mockMeter struct {
	checkErr   error
	consumeErr error
	checks     int
	consumed   []consumeCall
}

func (m *mockMeter) Check(_ context.Context, _, _ string, _ int64) error {
	m.checks++
	return m.checkErr
}

func (m *mockMeter) Consume(
	_ context.Context, userID, operation string, units int64, _ string, _ map[string]string,
) error {
	m.consumed = append(m.consumed, consumeCall{userID: userID, operation: operation, units: units})
	return m.consumeErr
}

// echoUnderstander returns the query unchanged with a fixed embedding.
type echoUnderstander struct {
	embedding []float32
	extra     string
	matches   []concept.Match
	calls     int
}

func (u *echoUnderstander) Enhance(
	_ context.Context, query string, _ understanding.Params, _ *domconv.Context,
) understanding.Enhancement {
	u.calls++
	enhanced := query
	if u.extra != "" {
		enhanced += " " + u.extra
	}
	return understanding.Enhancement{
		OriginalQuery: query,
		EnhancedQuery: enhanced,
		RelatedTerms:  []string{},
		Embedding:     u.embedding,
		Confidence:    0.8,
		Matches:       u.matches,
	}
}

type mockImages struct {
	vec []float32
	err error
}

func (m *mockImages) EmbedImage(context.Context, []byte) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockMaterials struct {
	mu        sync.Mutex
	knn       []material.Scored
	text      []material.Scored
	knnErr    error
	textErr   error
	knnCalls  int
	textCalls int
	lastText  string
	lastVec   []float32
	filters   filter.Set
}

func (m *mockMaterials) SearchSimilar(_ context.Context, vec []float32, f filter.Set, k int) ([]material.Scored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knnCalls++
	m.lastVec = vec
	m.filters = f
	if m.knnErr != nil {
		return nil, m.knnErr
	}
	return limit(m.knn, k), nil
}

func (m *mockMaterials) SearchText(
	_ context.Context, query string, f filter.Set, _, k int,
) ([]material.Scored, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textCalls++
	m.lastText = query
	m.filters = f
	if m.textErr != nil {
		return nil, 0, m.textErr
	}
	return limit(m.text, k), len(m.text), nil
}

func limit(in []material.Scored, k int) []material.Scored {
	out := append([]material.Scored(nil), in...)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// memRepo is an in-memory session store.
type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*domconv.Context
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domconv.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "test.get", nil)
	}
	return c.Clone(), nil
}

func (r *memRepo) Upsert(_ context.Context, c *domconv.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func newConversations(t *testing.T) *conversation.Manager {
	t.Helper()
	m, err := conversation.NewManager(&memRepo{sessions: map[string]*domconv.Context{}},
		conversation.Options{MaxSessions: 100, TTL: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func noSleep(context.Context, time.Duration) error { return nil }

func testPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Sleep: noSleep}
}

func scored(id, name string, score float64) material.Scored {
	return material.Scored{Material: material.Material{ID: id, Name: name}, Score: score}
}

func mustRequest(t *testing.T, r request.Request) request.Request {
	t.Helper()
	if r.Limit == 0 {
		r.Limit = 10
	}
	if r.TextWeight == 0 && r.ImageWeight == 0 {
		r.TextWeight, r.ImageWeight = 0.5, 0.5
	}
	if strings.TrimSpace(string(r.Kind)) == "" {
		t.Fatal("request kind is required")
	}
	return r
}
