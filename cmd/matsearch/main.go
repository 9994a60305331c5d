package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matsearch/internal/config"
	dbRedis "github.com/kailas-cloud/matsearch/internal/db/redis"
	"github.com/kailas-cloud/matsearch/internal/domain/ontology"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/matsearch/internal/logger"
	"github.com/kailas-cloud/matsearch/internal/metrics"
	budgetrepo "github.com/kailas-cloud/matsearch/internal/repository/budget"
	conceptrepo "github.com/kailas-cloud/matsearch/internal/repository/concept"
	conversationrepo "github.com/kailas-cloud/matsearch/internal/repository/conversation"
	creditsrepo "github.com/kailas-cloud/matsearch/internal/repository/credits"
	"github.com/kailas-cloud/matsearch/internal/repository/embcache"
	materialrepo "github.com/kailas-cloud/matsearch/internal/repository/material"
	"github.com/kailas-cloud/matsearch/internal/repository/queryhistory"
	"github.com/kailas-cloud/matsearch/internal/retry"
	chiTransport "github.com/kailas-cloud/matsearch/internal/transport/chi"
	openaiEnc "github.com/kailas-cloud/matsearch/internal/transport/openai"
	"github.com/kailas-cloud/matsearch/internal/transport/remote"
	conversationuc "github.com/kailas-cloud/matsearch/internal/usecase/conversation"
	embeddinguc "github.com/kailas-cloud/matsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/matsearch/internal/usecase/health"
	"github.com/kailas-cloud/matsearch/internal/usecase/metering"
	searchuc "github.com/kailas-cloud/matsearch/internal/usecase/search"
	"github.com/kailas-cloud/matsearch/internal/usecase/understanding"
	usageuc "github.com/kailas-cloud/matsearch/internal/usecase/usage"
	"github.com/kailas-cloud/matsearch/internal/version"
)

const providerName = "openai"

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting matsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("remote_enabled", cfg.Remote.Enabled),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	catalog, err := loadOntologies(cfg.Ontology.Path)
	if err != nil {
		logger.Fatal("Failed to load ontologies", zap.Error(err))
	}

	prefix := cfg.Storage.KeyPrefix

	// Single BudgetTracker shared by the encoder chain and the usage service.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			providerName, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		budget.WithStore(ctx, budgetrepo.New(store, prefix, providerName, 48*time.Hour, 62*24*time.Hour))
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetChecker embeddinguc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}

	base := openaiEnc.NewEncoder(&openaiEnc.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		TextModel:  cfg.Embedding.TextModel,
		ImageModel: cfg.Embedding.ImageModel,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   providerName,
		Logger:     logger,
	})
	encoder := buildEncoder(base, store, cfg, budgetChecker, logger)
	logger.Info("Encoders created",
		zap.String("text_model", cfg.Embedding.TextModel),
		zap.String("image_model", cfg.Embedding.ImageModel),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repositories (domain-native, no adapters)
	indexOpts := materialrepo.IndexOptions{
		Dimensions:  cfg.Embedding.Dimensions,
		M:           cfg.Storage.HNSWM,
		EFConstruct: cfg.Storage.HNSWEFConstruct,
	}
	materials := materialrepo.New(store, prefix)
	if err := materials.EnsureIndex(ctx, indexOpts); err != nil {
		logger.Fatal("Failed to ensure material index", zap.Error(err))
	}
	concepts := conceptrepo.New(store, prefix)
	if err := concepts.EnsureIndex(ctx, conceptrepo.IndexOptions(indexOpts)); err != nil {
		logger.Fatal("Failed to ensure concept index", zap.Error(err))
	}
	history := queryhistory.New(store, prefix, time.Duration(cfg.Storage.HistoryTTLHours)*time.Hour)
	sessions := conversationrepo.New(store, prefix, time.Duration(cfg.Conversation.PersistTTLHours)*time.Hour)
	credits := creditsrepo.New(store, prefix, cfg.Metering.DefaultGrant,
		time.Duration(cfg.Storage.LedgerTTLHours)*time.Hour)

	pool, err := ants.NewPool(cfg.Workers.PoolSize, ants.WithNonblocking(true))
	if err != nil {
		logger.Fatal("Failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	// Use case services
	understander := understanding.New(encoder, concepts, history, pool, understanding.Options{
		MinConfidence:   cfg.Search.MinConfidence,
		MaxRelatedTerms: cfg.Search.MaxRelatedTerms,
		ConceptLimit:    cfg.Search.ConceptLimit,
	}, logger)

	conversations, err := conversationuc.NewManager(sessions, conversationuc.Options{
		MaxSessions: cfg.Conversation.CacheMaxSessions,
		TTL:         time.Duration(cfg.Conversation.CacheTTLSec) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create conversation manager", zap.Error(err))
	}
	defer conversations.Close()

	meter := metering.New(credits, cfg.Metering.OperationCost)

	var remoteSearch searchuc.Remote
	var remoteHealth healthuc.RemoteChecker
	if cfg.Remote.Enabled {
		client := remote.New(remote.Config{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Logger:  logger,
		})
		remoteSearch = client
		remoteHealth = client
	}

	searchSvc := searchuc.New(searchuc.Deps{
		Remote:        remoteSearch,
		Meter:         meter,
		Understander:  understander,
		Images:        encoder,
		Materials:     materials,
		Conversations: conversations,
		Ontologies:    catalog,
	}, searchuc.Options{
		OperationCost: cfg.Metering.OperationCost,
		Retry: retry.Policy{
			MaxRetries:     cfg.Remote.MaxRetries,
			BaseDelay:      cfg.Remote.BaseDelay(),
			JitterSpan:     cfg.Remote.Jitter(),
			AttemptTimeout: cfg.Remote.Timeout(),
		},
		MaxWindow:   cfg.Search.MaxOffset + cfg.Search.MaxLimit,
		PingTimeout: cfg.Remote.PingTimeout(),
	}, logger)

	usageSvc := usageuc.New(meter, budgetReader)
	healthSvc := healthuc.New(store, base, remoteHealth)

	server := chiTransport.NewServer(searchSvc, conversations, usageSvc, healthSvc, request.Limits{
		Default:   cfg.Search.DefaultLimit,
		Max:       cfg.Search.MaxLimit,
		MaxOffset: cfg.Search.MaxOffset,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			writeBadRequest(w, err)
		},
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func loadOntologies(path string) (*ontology.Catalog, error) {
	if path == "" {
		return ontology.Default()
	}
	return ontology.LoadFile(path)
}

// buildEncoder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func buildEncoder(
	base *openaiEnc.Encoder,
	store *dbRedis.Store,
	cfg config.Config,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) *embeddinguc.InstrumentedEncoder {
	var (
		text  = base
		image = base
	)
	if cfg.Embedding.Cache {
		cached := embcache.New(text, image, store, embcache.Options{
			Prefix: cfg.Storage.KeyPrefix,
			Model:  cfg.Embedding.TextModel + "|" + cfg.Embedding.ImageModel,
		}, metrics.EmbeddingCacheTotal, logger)
		return embeddinguc.NewInstrumentedEncoder(
			cached, cached, providerName, cfg.Embedding.TextModel, cfg.Embedding.Dimensions, budget, logger,
		)
	}
	return embeddinguc.NewInstrumentedEncoder(
		text, image, providerName, cfg.Embedding.TextModel, cfg.Embedding.Dimensions, budget, logger,
	)
}
