package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/matsearch/internal/domain"
)

// Config holds the matsearch API configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Remote       RemoteConfig       `yaml:"remote"`
	Metering     MeteringConfig     `yaml:"metering"`
	Conversation ConversationConfig `yaml:"conversation"`
	Search       SearchConfig       `yaml:"search"`
	Workers      WorkersConfig      `yaml:"workers"`
	Ontology     OntologyConfig     `yaml:"ontology"`
	Auth         AuthConfig         `yaml:"auth"`
	Storage      StorageConfig      `yaml:"storage"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix       string `yaml:"key_prefix"`
	HistoryTTLHours int    `yaml:"history_ttl_hours"`
	LedgerTTLHours  int    `yaml:"ledger_ttl_hours"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds encoder settings. Text and image encoders share
// one OpenAI-compatible provider and must produce vectors of equal size.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	TextModel  string `yaml:"text_model"`
	ImageModel string `yaml:"image_model"`
	Dimensions int    `yaml:"dimensions"`
	Cache      bool   `yaml:"cache"`

	Budget BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds encoder token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// RemoteConfig holds settings for the remote search service.
type RemoteConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	TimeoutMS   int    `yaml:"timeout_ms"`
	PingMS      int    `yaml:"ping_timeout_ms"`
	MaxRetries  int    `yaml:"max_retries"`
	BaseDelayMS int    `yaml:"base_delay_ms"`
	JitterMS    int    `yaml:"jitter_ms"`
}

// Timeout returns the per-attempt timeout.
func (r RemoteConfig) Timeout() time.Duration { return time.Duration(r.TimeoutMS) * time.Millisecond }

// PingTimeout returns the availability ping timeout.
func (r RemoteConfig) PingTimeout() time.Duration { return time.Duration(r.PingMS) * time.Millisecond }

// BaseDelay returns the backoff base delay.
func (r RemoteConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// Jitter returns the upper bound of the random backoff addition.
func (r RemoteConfig) Jitter() time.Duration { return time.Duration(r.JitterMS) * time.Millisecond }

// MeteringConfig holds credit metering settings.
type MeteringConfig struct {
	DefaultGrant  int64 `yaml:"default_grant"`
	OperationCost int64 `yaml:"operation_cost"`
}

// ConversationConfig holds session cache and persistence settings.
type ConversationConfig struct {
	CacheMaxSessions int64 `yaml:"cache_max_sessions"`
	CacheTTLSec      int   `yaml:"cache_ttl_sec"`
	PersistTTLHours  int   `yaml:"persist_ttl_hours"`
}

// SearchConfig holds query understanding and pagination settings.
type SearchConfig struct {
	MinConfidence   float64 `yaml:"min_confidence"`
	MaxRelatedTerms int     `yaml:"max_related_terms"`
	ConceptLimit    int     `yaml:"concept_limit"`
	DefaultLimit    int     `yaml:"default_limit"`
	MaxLimit        int     `yaml:"max_limit"`
	MaxOffset       int     `yaml:"max_offset"`
}

// WorkersConfig sizes the pool running best-effort background writes.
type WorkersConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// OntologyConfig points to an optional ontology override file.
// When empty, the built-in ontologies are used.
type OntologyConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes raw YAML, expanding env variables, applying defaults and validating.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = domain.KeyPrefix
	}
	if c.Storage.HistoryTTLHours <= 0 {
		c.Storage.HistoryTTLHours = 24 * 30
	}
	if c.Storage.LedgerTTLHours <= 0 {
		c.Storage.LedgerTTLHours = 24 * 90
	}
	if c.Storage.HNSWM <= 0 {
		c.Storage.HNSWM = 16
	}
	if c.Storage.HNSWEFConstruct <= 0 {
		c.Storage.HNSWEFConstruct = 200
	}
	if c.Embedding.TextModel == "" {
		c.Embedding.TextModel = "text-embedding-3-small"
	}
	if c.Embedding.ImageModel == "" {
		c.Embedding.ImageModel = c.Embedding.TextModel
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Remote.TimeoutMS <= 0 {
		c.Remote.TimeoutMS = 30000
	}
	if c.Remote.PingMS <= 0 {
		c.Remote.PingMS = 5000
	}
	if c.Remote.MaxRetries < 0 {
		c.Remote.MaxRetries = 0
	} else if c.Remote.MaxRetries == 0 {
		c.Remote.MaxRetries = 2
	}
	if c.Remote.BaseDelayMS <= 0 {
		c.Remote.BaseDelayMS = 1000
	}
	if c.Remote.JitterMS < 0 {
		c.Remote.JitterMS = 0
	}
	if c.Metering.OperationCost <= 0 {
		c.Metering.OperationCost = 2
	}
	if c.Conversation.CacheMaxSessions <= 0 {
		c.Conversation.CacheMaxSessions = 10000
	}
	if c.Conversation.CacheTTLSec <= 0 {
		c.Conversation.CacheTTLSec = 1800
	}
	if c.Conversation.PersistTTLHours <= 0 {
		c.Conversation.PersistTTLHours = 24 * 7
	}
	if c.Search.MinConfidence <= 0 {
		c.Search.MinConfidence = 0.7
	}
	if c.Search.MaxRelatedTerms <= 0 {
		c.Search.MaxRelatedTerms = 5
	}
	if c.Search.ConceptLimit <= 0 {
		c.Search.ConceptLimit = 10
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 20
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 100
	}
	if c.Search.MaxOffset <= 0 {
		c.Search.MaxOffset = 1000
	}
	if c.Workers.PoolSize <= 0 {
		c.Workers.PoolSize = 64
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Database.DB < 0 {
		return fmt.Errorf("database.db must be non-negative, got %d", c.Database.DB)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action,
		)
	}
	if c.Remote.Enabled && c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required when remote.enabled is true")
	}
	if c.Search.MinConfidence > 1 {
		return fmt.Errorf("search.min_confidence must be in (0, 1], got %v", c.Search.MinConfidence)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf(
			"search.default_limit (%d) must not exceed search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
