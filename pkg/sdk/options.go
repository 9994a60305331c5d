package matsearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/matsearch/internal/domain"
	"github.com/kailas-cloud/matsearch/internal/domain/search/request"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	dimensions int

	remoteURL string
	remoteKey string

	keyPrefix       string
	hnswM           int
	hnswEFConstruct int
	operationCost   int64
	defaultGrant    int64
	sessionTTL      time.Duration
	defaultLimit    int
	maxLimit        int
	maxOffset       int
	historyTTL      time.Duration
	workers         int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		textModel:       "text-embedding-3-small",
		dimensions:      384,
		keyPrefix:       domain.KeyPrefix,
		hnswM:           16,
		hnswEFConstruct: 200,
		operationCost:   2,
		sessionTTL:      7 * 24 * time.Hour,
		historyTTL:      30 * 24 * time.Hour,
		workers:         16,
	}
}

// window is the deepest offset+limit a search may request.
func (c *clientConfig) window() int {
	maxOffset, maxLimit := c.maxOffset, c.maxLimit
	if maxOffset <= 0 {
		maxOffset = request.MaxOffset
	}
	if maxLimit <= 0 {
		maxLimit = request.MaxLimit
	}
	return maxOffset + maxLimit
}

// WithRedis configures the Redis instance holding the material index.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithOpenAI configures the OpenAI-compatible encoder. An empty baseURL
// targets api.openai.com. The same model encodes images unless
// WithImageModel is given.
func WithOpenAI(apiKey, baseURL, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.baseURL = baseURL
		if model != "" {
			c.textModel = model
		}
		if dimensions > 0 {
			c.dimensions = dimensions
		}
	})
}

// WithImageModel sets a separate image embedding model.
func WithImageModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.imageModel = model
	})
}

// WithRemote enables the remote search service tried before the local index.
func WithRemote(baseURL, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.remoteURL = baseURL
		c.remoteKey = apiKey
	})
}

// WithKeyPrefix namespaces every Redis key. Default: "matsearch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithCredits sets the per-search cost and the grant new users start with.
func WithCredits(operationCost, defaultGrant int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.operationCost = operationCost
		c.defaultGrant = defaultGrant
	})
}

// WithLimits sets the default and maximum page size.
func WithLimits(defaultLimit, maxLimit int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultLimit = defaultLimit
		c.maxLimit = maxLimit
	})
}

// WithMaxOffset bounds how deep a caller may page. Default: 1000.
func WithMaxOffset(maxOffset int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxOffset = maxOffset
	})
}

// WithHistory sets how long enhanced queries are kept and how many workers
// write history and concept popularity in the background.
// Defaults: 30 days, 16 workers.
func WithHistory(ttl time.Duration, workers int) Option {
	return optionFunc(func(c *clientConfig) {
		if ttl > 0 {
			c.historyTTL = ttl
		}
		if workers > 0 {
			c.workers = workers
		}
	})
}

// WithSessionTTL sets how long conversation sessions persist.
func WithSessionTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
