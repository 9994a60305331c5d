package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_NegativeDB(t *testing.T) {
	cfg := validConfig()
	cfg.Database.DB = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative database index")
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Budget.Action = "invalid_action"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}
	expected := `embedding.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_RemoteWithoutURL(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.Enabled = true
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for enabled remote without base_url")
	}
	expected := "remote.base_url is required when remote.enabled is true"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_LimitOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultLimit = 500
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default_limit exceeds max_limit")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.Storage.KeyPrefix != "matsearch:" {
		t.Errorf("KeyPrefix = %q, want matsearch:", cfg.Storage.KeyPrefix)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("Dimensions = %d, want 384", cfg.Embedding.Dimensions)
	}
	if cfg.Remote.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.Remote.MaxRetries)
	}
	if cfg.Remote.BaseDelay() != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.Remote.BaseDelay())
	}
	if cfg.Metering.OperationCost != 2 {
		t.Errorf("OperationCost = %d, want 2", cfg.Metering.OperationCost)
	}
	if cfg.Search.MinConfidence != 0.7 {
		t.Errorf("MinConfidence = %v, want 0.7", cfg.Search.MinConfidence)
	}
	if cfg.Search.MaxRelatedTerms != 5 {
		t.Errorf("MaxRelatedTerms = %d, want 5", cfg.Search.MaxRelatedTerms)
	}
	if cfg.Search.MaxOffset != 1000 {
		t.Errorf("MaxOffset = %d, want 1000", cfg.Search.MaxOffset)
	}
	if cfg.Remote.PingTimeout() != 5*time.Second {
		t.Errorf("PingTimeout = %v, want 5s", cfg.Remote.PingTimeout())
	}
	if cfg.Embedding.ImageModel != cfg.Embedding.TextModel {
		t.Errorf("ImageModel = %q, want fallback to text model", cfg.Embedding.ImageModel)
	}
}

func TestApplyDefaults_NegativeRetriesDisable(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.MaxRetries = -1
	cfg.ApplyDefaults()

	if cfg.Remote.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.Remote.MaxRetries)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("MATSEARCH_TEST_PORT", "9090")

	cfg, err := Parse([]byte(`
http:
  port: ${MATSEARCH_TEST_PORT}
database:
  addrs: ["${MATSEARCH_TEST_MISSING:-redis:6379}"]
  db: ${MATSEARCH_TEST_DB:-3}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Database.Addrs[0] != "redis:6379" {
		t.Errorf("Addrs[0] = %q, want redis:6379", cfg.Database.Addrs[0])
	}
	if cfg.Database.DB != 3 {
		t.Errorf("DB = %d, want 3", cfg.Database.DB)
	}
}
