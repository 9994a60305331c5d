package chi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/matsearch/internal/domain"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/material"
	"github.com/kailas-cloud/matsearch/internal/domain/search/kind"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
	domusage "github.com/kailas-cloud/matsearch/internal/domain/usage"
	healthuc "github.com/kailas-cloud/matsearch/internal/usecase/health"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockSearcher struct {
	got         request.Request
	err         error
	tokens      int
	invalidated bool
}

func (m *mockSearcher) Search(ctx context.Context, req request.Request) (*result.Envelope, error) {
	m.got = req
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &result.Envelope{
		Materials: []material.Scored{{Material: material.Material{ID: "m1", Name: "Oak"}, Score: 0.9}},
		Metadata:  result.Metadata{SearchStrategy: req.Kind.LocalStrategy()},
	}, nil
}

func (m *mockSearcher) InvalidateRemote() { m.invalidated = true }

type mockSessions struct {
	sessions map[string]*domconv.Context
	cleared  string
}

func (m *mockSessions) Load(_ context.Context, id string) (*domconv.Context, error) {
	c, ok := m.sessions[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "conversation.get", nil)
	}
	return c, nil
}

func (m *mockSessions) Clear(_ context.Context, id string) (bool, error) {
	m.cleared = id
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok, nil
}

type mockUsage struct {
	userID string
	period domusage.Period
}

func (m *mockUsage) GetReport(_ context.Context, userID string, period domusage.Period) (domusage.Report, error) {
	m.userID, m.period = userID, period
	return domusage.Report{Credits: domusage.Credits{UserID: userID, Balance: 10}}, nil
}

type mockHealth struct{ status healthuc.Status }

func (m *mockHealth) Check(context.Context) healthuc.Report {
	return healthuc.Report{Status: m.status, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}}
}

type fixture struct {
	search   *mockSearcher
	sessions *mockSessions
	usage    *mockUsage
	health   *mockHealth
	handler  http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		search: &mockSearcher{},
		sessions: &mockSessions{sessions: map[string]*domconv.Context{
			"s1": domconv.New("s1", testTime),
		}},
		usage:  &mockUsage{},
		health: &mockHealth{status: healthuc.Healthy},
	}
	srv := NewServer(f.search, f.sessions, f.usage, f.health, request.Limits{Default: 20, Max: 50}, nil)
	f.handler = HandlerWithOptions(srv, ChiServerOptions{})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestSearch_OK(t *testing.T) {
	f := newFixture()
	rr := f.do("POST", "/v1/search/domain",
		`{"query":"oak flooring","domain":"retail","filters":{"color":"brown"},"limit":500}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	got := f.search.got
	if got.Kind != kind.Domain || got.Query != "oak flooring" || got.Domain != "retail" {
		t.Errorf("request = %+v", got)
	}
	if got.UserID != "anonymous" {
		t.Errorf("user = %q, want anonymous", got.UserID)
	}
	if got.Limit != 50 {
		t.Errorf("limit = %d, want clamp to 50", got.Limit)
	}
	if !got.Filters.Has("color") {
		t.Error("filters not forwarded")
	}

	var env result.Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Materials) != 1 || env.Metadata.SearchStrategy != "direct-domain" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestSearch_EmbeddingHeaders(t *testing.T) {
	f := newFixture()
	rr := f.do("POST", "/v1/search/multimodal", `{"query":"tile"}`)
	if rr.Header().Get("X-Embedding-Tokens") != "" {
		t.Error("expected no usage headers without encoder calls")
	}

	f.search.tokens = 7
	rr = f.do("POST", "/v1/search/multimodal", `{"query":"tile"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "7" {
		t.Errorf("X-Embedding-Tokens = %q, want 7", got)
	}
	if got := rr.Header().Get("X-Embedding-Calls"); got != "1" {
		t.Errorf("X-Embedding-Calls = %q, want 1", got)
	}
}

func TestSearch_UnknownKind(t *testing.T) {
	rr := newFixture().do("POST", "/v1/search/hybrid", `{"query":"oak"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestSearch_ValidationError(t *testing.T) {
	rr := newFixture().do("POST", "/v1/search/conversational", `{"session_id":"s1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != ErrorResponseCodeValidationFailed || resp.Message != "query is required" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSearch_InvalidBody(t *testing.T) {
	rr := newFixture().do("POST", "/v1/search/multimodal", `{"query":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestSearch_Image(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	f := newFixture()
	rr := f.do("POST", "/v1/search/multimodal",
		`{"image_base64":"data:image/png;base64,`+base64.StdEncoding.EncodeToString(png)+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if string(f.search.got.Image) != string(png) {
		t.Error("image bytes not forwarded")
	}

	rr = f.do("POST", "/v1/search/multimodal",
		`{"image_base64":"`+base64.StdEncoding.EncodeToString([]byte("plain text"))+`"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non-image status = %d", rr.Code)
	}

	rr = f.do("POST", "/v1/search/multimodal", `{"image_base64":"%%%"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad base64 status = %d", rr.Code)
	}
}

func TestSearch_QuotaExceeded(t *testing.T) {
	f := newFixture()
	f.search.err = &domain.QuotaError{UserID: "u1", Operation: "search.domain", Required: 2, Available: 1}

	rr := f.do("POST", "/v1/search/multimodal", `{"query":"oak","user_id":"u1"}`)
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != ErrorResponseCodeInsufficientCredits {
		t.Errorf("code = %s", resp.Code)
	}
	if resp.Required == nil || *resp.Required != 2 || resp.Available == nil || *resp.Available != 1 {
		t.Errorf("shortfall = %+v", resp)
	}
}

func TestSearch_InternalErrorHidesCause(t *testing.T) {
	f := newFixture()
	f.search.err = domain.E(domain.KindPersistence, "material.search", errors.New("redis: connection refused"))

	rr := f.do("POST", "/v1/search/multimodal", `{"query":"oak"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Message != "internal error" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestConversation_GetAndDelete(t *testing.T) {
	f := newFixture()

	rr := f.do("GET", "/v1/conversations/s1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var c domconv.Context
	if err := json.NewDecoder(rr.Body).Decode(&c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.SessionID != "s1" {
		t.Errorf("session = %q", c.SessionID)
	}

	if rr := f.do("DELETE", "/v1/conversations/s1", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
	if f.sessions.cleared != "s1" {
		t.Errorf("cleared = %q", f.sessions.cleared)
	}
	if rr := f.do("DELETE", "/v1/conversations/s1", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rr.Code)
	}
	if rr := f.do("GET", "/v1/conversations/s1", ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rr.Code)
	}
}

func TestRefreshRemote(t *testing.T) {
	f := newFixture()
	if rr := f.do("POST", "/v1/remote/refresh", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if !f.search.invalidated {
		t.Error("remote availability not reset")
	}
}

func TestGetUsage(t *testing.T) {
	f := newFixture()

	rr := f.do("GET", "/v1/usage", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.usage.userID != "anonymous" || f.usage.period != domusage.PeriodMonth {
		t.Errorf("defaults: user = %q, period = %q", f.usage.userID, f.usage.period)
	}

	rr = f.do("GET", "/v1/usage?user_id=u1&period=day", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.usage.userID != "u1" || f.usage.period != domusage.PeriodDay {
		t.Errorf("user = %q, period = %q", f.usage.userID, f.usage.period)
	}

	if rr := f.do("GET", "/v1/usage?period=total", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid period status = %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		f := newFixture()
		f.health.status = tt.status
		rr := f.do("GET", "/health", "")
		if rr.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.status, rr.Code, tt.want)
		}
	}
}
