// Package remote is the HTTP client of the remote search service. It
// classifies every failure into a domain error kind so the caller can
// decide between retrying, falling back and surfacing.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
)

var tracer = otel.Tracer("github.com/kailas-cloud/matsearch/internal/transport/remote")

const (
	maxErrorBody = 4 << 10

	// DefaultHTTPTimeout caps a whole request when no HTTPClient is given.
	DefaultHTTPTimeout = 60 * time.Second
)

// Config holds remote service settings.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client // defaults to a client with DefaultHTTPTimeout
	Logger     *zap.Logger
}

// Client calls the remote search service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a remote search client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    hc,
		logger:  logger,
	}
}

type searchRequest struct {
	Query          string            `json:"query,omitempty"`
	ImageBase64    string            `json:"image_base64,omitempty"`
	ImageEmbedding []float32         `json:"image_embedding,omitempty"`
	TextWeight     float64           `json:"text_weight"`
	ImageWeight    float64           `json:"image_weight"`
	Domain         string            `json:"domain,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
	Limit          int               `json:"limit"`
	Offset         int               `json:"offset"`
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Required  int64  `json:"required"`
		Available int64  `json:"available"`
	} `json:"error"`
}

const codeInsufficientCredits = "insufficient_credits"

// Search executes req remotely. One call is one attempt; retries belong to the caller.
func (c *Client) Search(ctx context.Context, req *request.Request) (*result.Envelope, error) {
	op := "remote.search." + string(req.Kind)
	ctx, span := tracer.Start(ctx, "remote.Search", trace.WithAttributes(
		attribute.String("search.kind", string(req.Kind)),
		attribute.Bool("search.has_image", req.HasImage()),
	))
	defer span.End()

	body, err := json.Marshal(toWire(req))
	if err != nil {
		return nil, domain.E(domain.KindInternal, op, fmt.Errorf("marshal request: %w", err))
	}

	var env result.Envelope
	status, err := c.do(ctx, http.MethodPost, "/search/"+string(req.Kind), body, &env)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, c.classify(op, req, status, err)
	}
	return &env, nil
}

// Ping checks GET /health.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "remote.Ping")
	defer span.End()

	status, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		span.RecordError(err)
		return domain.E(domain.KindAvailability, "remote.ping", fmt.Errorf("status %d: %w", status, err))
	}
	return nil
}

// httpStatusError carries a non-2xx response.
type httpStatusError struct {
	status int
	body   errorResponse
	raw    string
}

func (e *httpStatusError) Error() string {
	if e.body.Error.Message != "" {
		return fmt.Sprintf("remote returned %d: %s", e.status, e.body.Error.Message)
	}
	return fmt.Sprintf("remote returned %d: %s", e.status, e.raw)
}

// transportError marks failures before a response was received.
type transportError struct{ err error }

func (e *transportError) Error() string { return "remote transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &httpStatusError{status: resp.StatusCode, raw: strings.TrimSpace(string(raw))}
		_ = json.Unmarshal(raw, &se.body)
		return resp.StatusCode, se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// classify maps a failed attempt onto the error taxonomy:
// network failures, 5xx and 429 are retryable; insufficient credits is a
// quota error; anything else is terminal.
func (c *Client) classify(op string, req *request.Request, status int, err error) error {
	var te *transportError
	if errors.As(err, &te) {
		return domain.E(domain.KindRetryableTransport, op, err)
	}

	var se *httpStatusError
	if !errors.As(err, &se) {
		return domain.E(domain.KindTerminalRemote, op, err)
	}

	switch {
	case status == http.StatusPaymentRequired || se.body.Error.Code == codeInsufficientCredits:
		return &domain.QuotaError{
			UserID:    req.UserID,
			Operation: req.Kind.Operation(),
			Required:  se.body.Error.Required,
			Available: se.body.Error.Available,
		}
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.E(domain.KindRetryableTransport, op, err)
	default:
		return domain.E(domain.KindTerminalRemote, op, err)
	}
}

func toWire(req *request.Request) searchRequest {
	w := searchRequest{
		Query:          req.Query,
		ImageEmbedding: req.ImageEmbedding,
		TextWeight:     req.TextWeight,
		ImageWeight:    req.ImageWeight,
		Domain:         string(req.Domain),
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		Limit:          req.Limit,
		Offset:         req.Offset,
	}
	if len(req.Image) > 0 {
		w.ImageBase64 = base64.StdEncoding.EncodeToString(req.Image)
	}
	if !req.Filters.IsEmpty() {
		w.Filters = req.Filters.Map()
	}
	return w
}
