// Package search runs material searches on the remote service when it is
// reachable and affordable, and on the local pipeline otherwise.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/domain"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/material"
	"github.com/kailas-cloud/matsearch/internal/domain/ontology"
	"github.com/kailas-cloud/matsearch/internal/domain/search/kind"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
	"github.com/kailas-cloud/matsearch/internal/logger"
	"github.com/kailas-cloud/matsearch/internal/metrics"
	"github.com/kailas-cloud/matsearch/internal/retry"
	"github.com/kailas-cloud/matsearch/internal/usecase/conversation"
)

var tracer = otel.Tracer("github.com/kailas-cloud/matsearch/internal/usecase/search")

// Fallback reasons reported in metadata and metrics.
const (
	ReasonUnavailable = "remote_unavailable"
	ReasonRetries     = "retries_exhausted"
	ReasonTerminal    = "remote_error"
	ReasonMetering    = "metering_unavailable"
)

// Deps are the collaborators of a Service. Remote, Meter, Images and
// Conversations may be nil.
type Deps struct {
	Remote        Remote
	Meter         Meter
	Understander  Understander
	Images        ImageEncoder
	Materials     Materials
	Conversations Conversations
	Ontologies    *ontology.Catalog
}

// Options tunes a Service.
type Options struct {
	// OperationCost is charged once per successful remote search.
	OperationCost int64
	// Retry governs remote attempts. Retryable defaults to IsRetryable.
	Retry retry.Policy
	// MaxWindow caps offset+limit, the number of candidates the local
	// path fetches from each store.
	MaxWindow int
	// PingTimeout bounds the remote availability ping.
	PingTimeout time.Duration
}

// Service orchestrates one search request end to end.
type Service struct {
	deps   Deps
	opts   Options
	remote *Availability
	now    func() time.Time
	logger *zap.Logger
}

// New creates a search orchestrator.
func New(deps Deps, opts Options, logger *zap.Logger) *Service {
	if opts.OperationCost <= 0 {
		opts.OperationCost = 2
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = IsRetryable
	}
	if opts.MaxWindow <= 0 {
		opts.MaxWindow = request.MaxOffset + request.MaxLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var ping func(context.Context) error
	if deps.Remote != nil {
		ping = deps.Remote.Ping
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		remote: NewAvailability(ping, opts.PingTimeout),
		now:    time.Now,
		logger: logger,
	}
}

// IsRetryable reports whether a remote failure should be attempted again.
func IsRetryable(err error) bool {
	return domain.KindOf(err) == domain.KindRetryableTransport
}

// InvalidateRemote forgets the cached remote availability.
func (s *Service) InvalidateRemote() { s.remote.Invalidate() }

// Search executes req. Only validation and quota failures reach the caller;
// remote trouble degrades to the local path.
func (s *Service) Search(ctx context.Context, req request.Request) (*result.Envelope, error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.String("search.kind", string(req.Kind)),
		attribute.String("search.domain", string(req.Domain)),
		attribute.Bool("search.has_image", req.HasImage()),
	))
	defer span.End()

	if err := s.checkWindow(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	conv := s.session(ctx, &req)
	if conv != nil {
		ctx = logger.With(ctx, zap.String("session_id", conv.SessionID))
	}
	log := logger.FromContextOr(ctx, s.logger)

	env, reason, attempts, err := s.tryRemote(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if env == nil {
		metrics.FallbackTotal.WithLabelValues(string(req.Kind), reason).Inc()
		log.Info("serving search locally", zap.String("reason", reason), zap.Int("remote_attempts", attempts))
		env, err = s.local(ctx, &req, conv)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		env.Metadata.FallbackReason = reason
		env.Metadata.Attempts = attempts
	}

	s.assemble(ctx, &req, conv, env, start)
	span.SetAttributes(
		attribute.String("search.strategy", string(env.Metadata.SearchStrategy)),
		attribute.Int("search.results", len(env.Materials)),
	)

	strategy := string(env.Metadata.SearchStrategy)
	metrics.SearchRequestsTotal.WithLabelValues(string(req.Kind), strategy).Inc()
	metrics.SearchDuration.WithLabelValues(string(req.Kind), strategy).Observe(s.now().Sub(start).Seconds())
	return env, nil
}

// checkWindow rejects pages reaching past MaxWindow candidates.
func (s *Service) checkWindow(req request.Request) error {
	const op = "search.window"
	if req.Offset < 0 || req.Limit <= 0 {
		return domain.Errorf(domain.KindValidation, op, "offset %d and limit %d must be non-negative and positive",
			req.Offset, req.Limit)
	}
	if req.Offset > s.opts.MaxWindow-req.Limit {
		return domain.Errorf(domain.KindValidation, op, "offset+limit exceeds %d", s.opts.MaxWindow)
	}
	return nil
}

// session loads the conversation for conversational requests and for any
// request carrying a session id.
func (s *Service) session(ctx context.Context, req *request.Request) *domconv.Context {
	if s.deps.Conversations == nil {
		return nil
	}
	if req.Kind != kind.Conversational && req.SessionID == "" {
		return nil
	}
	conv, _ := s.deps.Conversations.GetOrCreate(ctx, req.SessionID)
	req.SessionID = conv.SessionID
	return conv
}

// tryRemote runs the remote path. A nil envelope with a reason means the
// caller should fall back; a non-nil error must be surfaced.
func (s *Service) tryRemote(
	ctx context.Context, req *request.Request,
) (env *result.Envelope, reason string, attempts int, err error) {
	if s.deps.Remote == nil || !s.remote.Available(ctx) {
		return nil, ReasonUnavailable, 0, nil
	}
	log := logger.FromContextOr(ctx, s.logger)
	op := req.Kind.Operation()

	if s.deps.Meter != nil {
		if err := s.deps.Meter.Check(ctx, req.UserID, op, s.opts.OperationCost); err != nil {
			if errors.Is(err, domain.ErrInsufficientCredits) {
				metrics.RemoteAttemptsTotal.WithLabelValues(string(req.Kind), "quota").Inc()
				return nil, "", 0, err
			}
			log.Warn("quota check failed, skipping remote search", zap.Error(err))
			return nil, ReasonMetering, 0, nil
		}
	}

	ctx, span := tracer.Start(ctx, "search.remote")
	defer span.End()

	policy := s.opts.Retry
	policy.OnRetry = func(n int, delay time.Duration, err error) {
		metrics.RemoteAttemptsTotal.WithLabelValues(string(req.Kind), "retryable").Inc()
		log.Warn("remote search failed, retrying",
			zap.Int("retry", n+1), zap.Duration("delay", delay), zap.Error(err))
	}

	env, attempts, err = retry.Do(ctx, policy, func(ctx context.Context) (*result.Envelope, error) {
		return s.deps.Remote.Search(ctx, req)
	})
	span.SetAttributes(attribute.Int("remote.attempts", attempts))

	switch {
	case err == nil:
		metrics.RemoteAttemptsTotal.WithLabelValues(string(req.Kind), "success").Inc()
	case errors.Is(err, domain.ErrInsufficientCredits):
		metrics.RemoteAttemptsTotal.WithLabelValues(string(req.Kind), "quota").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, "", attempts, err
	case IsRetryable(err) || errors.Is(err, context.DeadlineExceeded):
		metrics.RemoteAttemptsTotal.WithLabelValues(string(req.Kind), "retryable").Inc()
		span.RecordError(err)
		log.Warn("remote search retries exhausted", zap.Int("attempts", attempts), zap.Error(err))
		return nil, ReasonRetries, attempts, nil
	default:
		metrics.RemoteAttemptsTotal.WithLabelValues(string(req.Kind), "terminal").Inc()
		span.RecordError(err)
		log.Warn("remote search failed", zap.Int("attempts", attempts), zap.Error(err))
		return nil, ReasonTerminal, attempts, nil
	}

	env.Metadata.SearchStrategy = req.Kind.RemoteStrategy()
	env.Metadata.Attempts = attempts
	env.Metadata.CreditsUsed = s.opts.OperationCost
	s.consume(ctx, req, attempts)
	return env, "", attempts, nil
}

// consume books one remote search regardless of how many attempts it took.
func (s *Service) consume(ctx context.Context, req *request.Request, attempts int) {
	if s.deps.Meter == nil {
		return
	}
	meta := map[string]string{
		"strategy": string(req.Kind.RemoteStrategy()),
		"attempts": strconv.Itoa(attempts),
	}
	if req.SessionID != "" {
		meta["session_id"] = req.SessionID
	}
	if req.Domain != "" {
		meta["domain"] = string(req.Domain)
	}
	desc := fmt.Sprintf("%s search", req.Kind)
	if err := s.deps.Meter.Consume(ctx, req.UserID, req.Kind.Operation(), s.opts.OperationCost, desc, meta); err != nil {
		logger.FromContextOr(ctx, s.logger).Warn("credit deduction failed", zap.Error(err))
	}
}

// assemble stamps timing and session data and records the turn.
func (s *Service) assemble(
	ctx context.Context, req *request.Request, conv *domconv.Context, env *result.Envelope, start time.Time,
) {
	if env.Materials == nil {
		env.Materials = []material.Scored{}
	}
	if env.KnowledgeEntries == nil {
		env.KnowledgeEntries = []result.KnowledgeEntry{}
	}
	if env.Relationships == nil {
		env.Relationships = []result.Relationship{}
	}
	if env.Metadata.OriginalQuery == "" {
		env.Metadata.OriginalQuery = req.Query
	}
	if req.Domain != "" {
		env.Metadata.Domain = string(req.Domain)
	}

	if conv != nil {
		s.recordTurn(ctx, req, conv, env)
	}
	env.Metadata.ProcessingTimeMS = s.now().Sub(start).Milliseconds()
}

func (s *Service) recordTurn(ctx context.Context, req *request.Request, conv *domconv.Context, env *result.Envelope) {
	conv.MergeEntities(conversation.ExtractEntities(req.Query))
	if conv.UserID == "" {
		conv.UserID = req.UserID
	}

	s.deps.Conversations.Append(conv, domconv.Message{
		Role:    domconv.RoleUser,
		Content: req.Query,
		Metadata: map[string]string{
			"kind": string(req.Kind),
		},
	})
	s.deps.Conversations.Append(conv, domconv.Message{
		Role:    domconv.RoleAssistant,
		Content: fmt.Sprintf("Found %d materials", len(env.Materials)),
		Metadata: map[string]string{
			"strategy":          string(env.Metadata.SearchStrategy),
			"interpreted_query": env.Metadata.InterpretedQuery,
		},
	})
	conv.LastQuery = req.Query
	conv.LastResults = env.MaterialIDs()

	env.Metadata.SessionID = conv.SessionID
	env.Metadata.Entities = conv.Entities

	if err := s.deps.Conversations.Save(ctx, conv); err != nil {
		logger.FromContextOr(ctx, s.logger).Warn("session save failed", zap.Error(err))
	}
}
