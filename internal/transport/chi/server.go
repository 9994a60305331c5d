package chi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/search/kind"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	domusage "github.com/kailas-cloud/matsearch/internal/domain/usage"
	"github.com/kailas-cloud/matsearch/internal/logger"
	healthuc "github.com/kailas-cloud/matsearch/internal/usecase/health"
	"github.com/kailas-cloud/matsearch/internal/usecase/metering"
)

// maxBodyBytes bounds a search body: a base64 image plus the JSON envelope.
const maxBodyBytes = request.MaxImageBytes*4/3 + 1<<20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server implements ServerInterface.
type Server struct {
	search        Searcher
	sessions      Sessions
	usage         UsageReporter
	health        HealthChecker
	limits        request.Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	sessions Sessions,
	usage UsageReporter,
	health HealthChecker,
	limits request.Limits,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:   search,
		sessions: sessions,
		usage:    usage,
		health:   health,
		limits:   limits,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		quotaHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeSessionNotFound),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, ErrorResponseCodeEmbeddingQuota),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorResponseCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderErr),
		sentinelHandler(domain.ErrUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeServiceUnavailable),
	}
	return s
}

// Search handles POST /v1/search/{kind}.
func (s *Server) Search(w http.ResponseWriter, r *http.Request, rawKind string) {
	k := kind.Kind(strings.ToLower(rawKind))
	if !k.IsValid() {
		writeError(w, http.StatusNotFound, ErrorResponseCodeBadRequest, "unknown search kind: "+rawKind)
		return
	}

	var body SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	image, err := decodeImage(body.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, err.Error())
		return
	}

	req, err := request.New(k, request.Params{
		Query:          body.Query,
		Image:          image,
		ImageEmbedding: body.ImageEmbedding,
		TextWeight:     body.TextWeight,
		ImageWeight:    body.ImageWeight,
		Domain:         body.Domain,
		SessionID:      body.SessionID,
		UserID:         body.UserID,
		Filters:        body.Filters,
		Limit:          body.Limit,
		Offset:         body.Offset,
	}, s.limits)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if req.UserID == "" {
		req.UserID = metering.AnonymousUser
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	env, err := s.search.Search(ctx, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, env)
}

// setEmbeddingHeaders reports encoder usage of the request. Remote searches leave it unset.
func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	tokens, calls := usage.Snapshot()
	if calls == 0 {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	w.Header().Set("X-Embedding-Calls", strconv.Itoa(calls))
}

// decodeImage decodes a base64 payload and checks that it is an image.
func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	if _, data, ok := strings.Cut(encoded, ","); ok && strings.HasPrefix(encoded, "data:") {
		encoded = data
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("image_base64 is not valid base64")
	}
	if ct := http.DetectContentType(raw); !strings.HasPrefix(ct, "image/") {
		return nil, errors.New("image_base64 is not an image (detected " + ct + ")")
	}
	return raw, nil
}

// GetConversation handles GET /v1/conversations/{sessionId}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request, sessionID string) {
	c, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteConversation handles DELETE /v1/conversations/{sessionId}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request, sessionID string) {
	existed, err := s.sessions.Clear(r.Context(), sessionID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, ErrorResponseCodeSessionNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshRemote handles POST /v1/remote/refresh.
func (s *Server) RefreshRemote(w http.ResponseWriter, r *http.Request) {
	s.search.InvalidateRemote()
	logger.FromContextOr(r.Context(), s.logger).Info("remote availability reset")
	w.WriteHeader(http.StatusNoContent)
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request, params GetUsageParams) {
	userID := metering.AnonymousUser
	if params.UserID != nil && *params.UserID != "" {
		userID = *params.UserID
	}
	period := domusage.PeriodMonth
	if params.Period != nil {
		period = domusage.Period(*params.Period)
		if !period.IsValid() {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed,
				"period must be \"day\" or \"month\"")
			return
		}
	}

	report, err := s.usage.GetReport(r.Context(), userID, period)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// validationHandler exposes the validation cause, which never carries internals.
func validationHandler(w http.ResponseWriter, err error) bool {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindValidation {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, de.Err.Error())
	return true
}

// quotaHandler reports the shortfall of an exhausted credit balance.
func quotaHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		return false
	}
	resp := ErrorResponse{
		Code:    ErrorResponseCodeInsufficientCredits,
		Message: domain.ErrInsufficientCredits.Error(),
	}
	var qe *domain.QuotaError
	if errors.As(err, &qe) {
		resp.Required = &qe.Required
		resp.Available = &qe.Available
	}
	writeJSON(w, http.StatusPaymentRequired, resp)
	return true
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err), zap.Stringer("kind", domain.KindOf(err)))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
