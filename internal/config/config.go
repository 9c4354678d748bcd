package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Log    LogConfig
	CORS   CORSConfig
	Queue  QueueConfig
	LLM    LLMConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// QueueConfig holds translation queue worker settings.
type QueueConfig struct {
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	Concurrency      int `mapstructure:"concurrency"`
}

// PollInterval returns the queue poll interval as a duration.
func (q *QueueConfig) PollInterval() time.Duration {
	return time.Duration(q.PollIntervalSecs) * time.Second
}

// ModelPricing holds per-model prices in currency units per million tokens.
type ModelPricing struct {
	InputPerMillion  float64 `mapstructure:"input_per_million"`
	OutputPerMillion float64 `mapstructure:"output_per_million"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Provider       string                  `mapstructure:"provider"`
	APIKey         string                  `mapstructure:"api_key"`
	BaseURL        string                  `mapstructure:"base_url"`
	DefaultModel   string                  `mapstructure:"default_model"`
	FastModel      string                  `mapstructure:"fast_model"`
	Models         []string                `mapstructure:"models"`
	TimeoutSecs    int                     `mapstructure:"timeout_secs"`
	MaxConnections int                     `mapstructure:"max_connections"`
	Pricing        map[string]ModelPricing `mapstructure:"pricing"`
}

// Timeout returns the per-request timeout as a duration.
func (p *ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// RateLimitConfig holds per-provider rate limit settings. Zero means unlimited.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	RequestsPerHour   int `mapstructure:"requests_per_hour"`
	TokensPerMinute   int `mapstructure:"tokens_per_minute"`
	TokensPerHour     int `mapstructure:"tokens_per_hour"`
}

// RetryConfig holds retry-with-backoff settings.
type RetryConfig struct {
	MaxAttempts       int     `mapstructure:"max_attempts"`
	BaseDelayMs       int     `mapstructure:"base_delay_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	MaxDelayMs        int     `mapstructure:"max_delay_ms"`
}

// BaseDelay returns the initial retry delay as a duration.
func (r *RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the retry delay ceiling as a duration.
func (r *RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// SelectionConfig holds model selection thresholds.
type SelectionConfig struct {
	ComplexityThresholdChars int `mapstructure:"complexity_threshold_chars"`
}

// LLMConfig holds all LLM orchestration settings.
type LLMConfig struct {
	Primary           ProviderConfig  `mapstructure:"primary"`
	Secondary         ProviderConfig  `mapstructure:"secondary"`
	RateLimit         RateLimitConfig `mapstructure:"rate_limit"`
	Retry             RetryConfig     `mapstructure:"retry"`
	Selection         SelectionConfig `mapstructure:"selection"`
	BatchAbortOnFatal bool            `mapstructure:"batch_abort_on_fatal"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (l *LLMConfig) SecondaryConfig() *ProviderConfig {
	if l.Secondary.Provider != "" {
		return &l.Secondary
	}
	return nil
}

// Load reads configuration from environment variables with the LEGALIS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEGALIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "legalis")
	v.SetDefault("db.password", "legalis_secret")
	v.SetDefault("db.name", "legalis_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 10)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.concurrency", 5)

	// Primary provider defaults
	v.SetDefault("llm.primary.provider", "anthropic")
	v.SetDefault("llm.primary.api_key", "")
	v.SetDefault("llm.primary.base_url", "")
	v.SetDefault("llm.primary.default_model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.primary.fast_model", "claude-3-5-haiku-20241022")
	v.SetDefault("llm.primary.models", "claude-sonnet-4-20250514,claude-3-5-haiku-20241022")
	v.SetDefault("llm.primary.timeout_secs", 120)
	v.SetDefault("llm.primary.max_connections", 4)
	v.SetDefault("llm.primary.pricing.claude-sonnet-4-20250514.input_per_million", 3.0)
	v.SetDefault("llm.primary.pricing.claude-sonnet-4-20250514.output_per_million", 15.0)
	v.SetDefault("llm.primary.pricing.claude-3-5-haiku-20241022.input_per_million", 0.8)
	v.SetDefault("llm.primary.pricing.claude-3-5-haiku-20241022.output_per_million", 4.0)

	// Secondary provider defaults (disabled unless provider is set)
	v.SetDefault("llm.secondary.provider", "")
	v.SetDefault("llm.secondary.api_key", "")
	v.SetDefault("llm.secondary.base_url", "")
	v.SetDefault("llm.secondary.default_model", "gpt-4o")
	v.SetDefault("llm.secondary.fast_model", "gpt-4o-mini")
	v.SetDefault("llm.secondary.models", "gpt-4o,gpt-4o-mini")
	v.SetDefault("llm.secondary.timeout_secs", 120)
	v.SetDefault("llm.secondary.max_connections", 4)
	v.SetDefault("llm.secondary.pricing.gpt-4o.input_per_million", 2.5)
	v.SetDefault("llm.secondary.pricing.gpt-4o.output_per_million", 10.0)
	v.SetDefault("llm.secondary.pricing.gpt-4o-mini.input_per_million", 0.15)
	v.SetDefault("llm.secondary.pricing.gpt-4o-mini.output_per_million", 0.6)

	// Rate limit defaults (zero = unlimited)
	v.SetDefault("llm.rate_limit.requests_per_minute", 50)
	v.SetDefault("llm.rate_limit.requests_per_hour", 1000)
	v.SetDefault("llm.rate_limit.tokens_per_minute", 100000)
	v.SetDefault("llm.rate_limit.tokens_per_hour", 2000000)

	// Retry defaults
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.base_delay_ms", 1000)
	v.SetDefault("llm.retry.backoff_multiplier", 2.0)
	v.SetDefault("llm.retry.max_delay_ms", 30000)

	// Model selection defaults
	v.SetDefault("llm.selection.complexity_threshold_chars", 6000)

	// Batch defaults
	v.SetDefault("llm.batch_abort_on_fatal", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Comma-separated env values for slice fields
	if len(cfg.CORS.AllowedOrigins) == 1 && strings.Contains(cfg.CORS.AllowedOrigins[0], ",") {
		cfg.CORS.AllowedOrigins = strings.Split(cfg.CORS.AllowedOrigins[0], ",")
	}
	cfg.LLM.Primary.Models = splitIfJoined(cfg.LLM.Primary.Models)
	cfg.LLM.Secondary.Models = splitIfJoined(cfg.LLM.Secondary.Models)

	return &cfg, nil
}

func splitIfJoined(vals []string) []string {
	if len(vals) == 1 && strings.Contains(vals[0], ",") {
		return strings.Split(vals[0], ",")
	}
	return vals
}
