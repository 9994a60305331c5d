package matsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/matsearch/internal/db/redis"
	domconv "github.com/kailas-cloud/matsearch/internal/domain/conversation"
	"github.com/kailas-cloud/matsearch/internal/domain/ontology"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	"github.com/kailas-cloud/matsearch/internal/domain/search/result"
	domusage "github.com/kailas-cloud/matsearch/internal/domain/usage"
	conceptrepo "github.com/kailas-cloud/matsearch/internal/repository/concept"
	conversationrepo "github.com/kailas-cloud/matsearch/internal/repository/conversation"
	creditsrepo "github.com/kailas-cloud/matsearch/internal/repository/credits"
	materialrepo "github.com/kailas-cloud/matsearch/internal/repository/material"
	"github.com/kailas-cloud/matsearch/internal/repository/queryhistory"
	"github.com/kailas-cloud/matsearch/internal/retry"
	openaiEnc "github.com/kailas-cloud/matsearch/internal/transport/openai"
	"github.com/kailas-cloud/matsearch/internal/transport/remote"
	conversationuc "github.com/kailas-cloud/matsearch/internal/usecase/conversation"
	embeddinguc "github.com/kailas-cloud/matsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/matsearch/internal/usecase/health"
	"github.com/kailas-cloud/matsearch/internal/usecase/metering"
	searchuc "github.com/kailas-cloud/matsearch/internal/usecase/search"
	"github.com/kailas-cloud/matsearch/internal/usecase/understanding"
	usageuc "github.com/kailas-cloud/matsearch/internal/usecase/usage"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	providerName            = "openai"
)

type searcher interface {
	Search(ctx context.Context, req request.Request) (*result.Envelope, error)
}

type sessions interface {
	Load(ctx context.Context, sessionID string) (*domconv.Context, error)
	Clear(ctx context.Context, sessionID string) (bool, error)
}

type reporter interface {
	GetReport(ctx context.Context, userID string, period domusage.Period) (domusage.Report, error)
}

type checker interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the embedded matsearch engine.
type Client struct {
	search   searcher
	sessions sessions
	usage    reporter
	health   checker
	limits   request.Limits
	closers  []func()
	obs      *observer
}

// New connects to Redis, ensures the indexes exist and wires the search services.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("matsearch: database address required (use WithRedis)")
	}
	if cfg.apiKey == "" {
		return nil, errors.New("matsearch: encoder required (use WithOpenAI)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("matsearch: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("matsearch: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	c.obs = obs
	return c, nil
}

func wireClient(ctx context.Context, store *dbRedis.Store, cfg *clientConfig) (*Client, error) {
	logger := zap.NewNop()
	prefix := cfg.keyPrefix

	imageModel := cfg.imageModel
	if imageModel == "" {
		imageModel = cfg.textModel
	}
	base := openaiEnc.NewEncoder(&openaiEnc.Config{
		APIKey:     cfg.apiKey,
		BaseURL:    cfg.baseURL,
		TextModel:  cfg.textModel,
		ImageModel: imageModel,
		Dimensions: cfg.dimensions,
		Provider:   providerName,
		Logger:     logger,
	})
	// No budget tracking in the SDK.
	encoder := embeddinguc.NewInstrumentedEncoder(
		base, base, providerName, cfg.textModel, cfg.dimensions, nil, logger,
	)

	indexOpts := materialrepo.IndexOptions{
		Dimensions:  cfg.dimensions,
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
	}
	materials := materialrepo.New(store, prefix)
	if err := materials.EnsureIndex(ctx, indexOpts); err != nil {
		return nil, fmt.Errorf("matsearch: ensure material index: %w", err)
	}
	concepts := conceptrepo.New(store, prefix)
	if err := concepts.EnsureIndex(ctx, conceptrepo.IndexOptions(indexOpts)); err != nil {
		return nil, fmt.Errorf("matsearch: ensure concept index: %w", err)
	}

	catalog, err := ontology.Default()
	if err != nil {
		return nil, fmt.Errorf("matsearch: load ontologies: %w", err)
	}

	history := queryhistory.New(store, prefix, cfg.historyTTL)
	understander, releasePool, err := newUnderstander(encoder, concepts, history, cfg.workers, logger)
	if err != nil {
		return nil, err
	}

	conversations, err := conversationuc.NewManager(
		conversationrepo.New(store, prefix, cfg.sessionTTL),
		conversationuc.Options{},
		logger,
	)
	if err != nil {
		releasePool()
		return nil, fmt.Errorf("matsearch: conversation manager: %w", err)
	}

	meter := metering.New(creditsrepo.New(store, prefix, cfg.defaultGrant, 0), cfg.operationCost)

	var remoteSearch searchuc.Remote
	var remoteHealth healthuc.RemoteChecker
	if cfg.remoteURL != "" {
		rc := remote.New(remote.Config{BaseURL: cfg.remoteURL, APIKey: cfg.remoteKey, Logger: logger})
		remoteSearch = rc
		remoteHealth = rc
	}

	svc := searchuc.New(searchuc.Deps{
		Remote:        remoteSearch,
		Meter:         meter,
		Understander:  understander,
		Images:        encoder,
		Materials:     materials,
		Conversations: conversations,
		Ontologies:    catalog,
	}, searchuc.Options{
		OperationCost: cfg.operationCost,
		MaxWindow:     cfg.window(),
		Retry: retry.Policy{
			MaxRetries:     2,
			BaseDelay:      time.Second,
			AttemptTimeout: 30 * time.Second,
		},
	}, logger)

	return &Client{
		search:   svc,
		sessions: conversations,
		usage:    usageuc.New(meter, nil),
		health:   healthuc.New(store, base, remoteHealth),
		limits:   request.Limits{Default: cfg.defaultLimit, Max: cfg.maxLimit, MaxOffset: cfg.maxOffset},
		closers:  []func(){releasePool, conversations.Close, store.Close},
	}, nil
}

// newUnderstander builds the query understanding engine with a nonblocking
// pool for its history and popularity writes. The returned func releases the pool.
func newUnderstander(
	encoder understanding.Encoder, concepts understanding.ConceptStore, history understanding.HistoryRecorder,
	workers int, logger *zap.Logger,
) (*understanding.Engine, func(), error) {
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, nil, fmt.Errorf("matsearch: create worker pool: %w", err)
	}
	engine := understanding.New(encoder, concepts, history, pool, understanding.Options{}, logger)
	return engine, pool.Release, nil
}

// Close releases all resources.
func (c *Client) Close() {
	for _, fn := range c.closers {
		fn()
	}
	c.closers = nil
}

// Search validates p for kind k and runs the search.
func (c *Client) Search(ctx context.Context, k Kind, p SearchParams) (res *Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search."+string(k), start, err) }()

	if p.UserID == "" {
		p.UserID = metering.AnonymousUser
	}
	req, err := request.New(k, p, c.limits)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	res, err = c.search.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

// Conversation returns the stored context of a session.
func (c *Client) Conversation(ctx context.Context, sessionID string) (conv *Conversation, err error) {
	start := time.Now()
	defer func() { c.obs.observe("conversation.get", start, err) }()

	conv, err = c.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", sessionID, err)
	}
	return conv, nil
}

// ClearConversation removes a session. It reports whether the session existed.
func (c *Client) ClearConversation(ctx context.Context, sessionID string) (existed bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("conversation.clear", start, err) }()

	existed, err = c.sessions.Clear(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("clear conversation %s: %w", sessionID, err)
	}
	return existed, nil
}

// Usage reports the credits of userID. An empty userID reads the anonymous account.
func (c *Client) Usage(ctx context.Context, userID string, period Period) (rep UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	if userID == "" {
		userID = metering.AnonymousUser
	}
	if period == "" {
		period = PeriodMonth
	}
	if !period.IsValid() {
		return UsageReport{}, fmt.Errorf("usage: period %q: %w", period, ErrValidation)
	}
	rep, err = c.usage.GetReport(ctx, userID, period)
	if err != nil {
		return UsageReport{}, fmt.Errorf("usage: %w", err)
	}
	return rep, nil
}

// Health checks the database, the encoder and the remote service.
func (c *Client) Health(ctx context.Context) HealthReport {
	return c.health.Check(ctx)
}
