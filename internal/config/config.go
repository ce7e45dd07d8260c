// Package config defines the console configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/creditconsole/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr is the console HTTP listen address.
	Addr string `koanf:"addr"`

	// ProviderBaseURL roots every analytics provider call.
	ProviderBaseURL string `koanf:"provider_base_url"`
	// ProviderTimeoutMS bounds one provider round-trip.
	ProviderTimeoutMS int `koanf:"provider_timeout_ms"`

	// DefaultWindowMonths is the rolling window used when none is chosen.
	DefaultWindowMonths int `koanf:"default_window_months"`
	// RankingTopN is how many entities the ranking panel shows.
	RankingTopN int `koanf:"ranking_top_n"`

	// Operator identity, normally supplied by the session provider.
	OperatorName  string `koanf:"operator_name"`
	OperatorEmail string `koanf:"operator_email"`
	OperatorRole  string `koanf:"operator_role"`

	// Fake provider settings, used by cmd/fake-provider.
	FakeProviderAddr      string `koanf:"fake_provider_addr"`
	FakeProviderEntities  int    `koanf:"fake_provider_entities"`
	FakeProviderMonths    int    `koanf:"fake_provider_months"`
	FakeProviderSeed      uint64 `koanf:"fake_provider_seed"`
	FakeProviderLatencyMS int    `koanf:"fake_provider_latency_ms"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9090",
		ProviderBaseURL:      "http://127.0.0.1:8000",
		ProviderTimeoutMS:    10_000,
		DefaultWindowMonths:  12,
		RankingTopN:          5,
		OperatorRole:         model.RoleAdmin,
		FakeProviderAddr:     ":8000",
		FakeProviderEntities: 12,
		FakeProviderMonths:   24,
		FakeProviderSeed:     1,
	}
}

// ProviderTimeout returns ProviderTimeoutMS as a duration.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutMS) * time.Millisecond
}

// FakeProviderLatency returns FakeProviderLatencyMS as a duration.
func (c *Config) FakeProviderLatency() time.Duration {
	return time.Duration(c.FakeProviderLatencyMS) * time.Millisecond
}

// Identity returns the configured operator.
func (c *Config) Identity() model.Identity {
	return model.Identity{Name: c.OperatorName, Email: c.OperatorEmail, Role: c.OperatorRole}
}

// Validate checks the settings every binary relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ProviderBaseURL) == "":
		return fmt.Errorf("%w: provider_base_url must not be empty", ErrInvalidConfig)
	case c.ProviderTimeoutMS <= 0:
		return fmt.Errorf("%w: provider_timeout_ms must be positive", ErrInvalidConfig)
	case c.RankingTopN < 0:
		return fmt.Errorf("%w: ranking_top_n must not be negative", ErrInvalidConfig)
	case c.FakeProviderEntities <= 0 || c.FakeProviderMonths <= 0:
		return fmt.Errorf("%w: fake provider needs entities and months", ErrInvalidConfig)
	}
	return nil
}
