// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and environment on top.
// - Errors returned by Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import "time"

// Stream backends.
const (
	StreamBackendMemory   = "memory"
	StreamBackendPostgres = "postgres"
)

// Idempotency backends.
const (
	IdempotencyBackendMemory = "memory"
	IdempotencyBackendRedis  = "redis"
)

// Generation providers.
const (
	GenerationProviderOpenAI = "openai"
	GenerationProviderNone   = "none"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// BasePath mounts the business routes under a prefix, e.g. "/api".
	BasePath string `koanf:"base_path"`

	// CORSAllowedOrigins is a comma separated origin list; "*" allows all.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	SchemaName       string `koanf:"schema_name"`
	SchemaDefinition string `koanf:"schema_definition"`

	// PublisherAddress is the account whose records are written and read.
	PublisherAddress string `koanf:"publisher_address"`

	// StreamBackend selects the ledger: memory or postgres.
	StreamBackend string `koanf:"stream_backend"`
	PostgresDSN   string `koanf:"postgres_dsn"`

	// IdempotencyBackend selects where record ids are remembered: memory or redis.
	IdempotencyBackend    string `koanf:"idempotency_backend"`
	IdempotencySize       int    `koanf:"idempotency_size"`
	IdempotencyTTLSeconds int    `koanf:"idempotency_ttl_seconds"`
	RedisAddr             string `koanf:"redis_addr"`
	RedisPassword         string `koanf:"redis_password"`
	RedisDB               int    `koanf:"redis_db"`

	// GenerationProvider selects the summary backend: openai or none.
	GenerationProvider  string `koanf:"generation_provider"`
	OpenAIAPIKey        string `koanf:"openai_api_key"`
	OpenAIBaseURL       string `koanf:"openai_base_url"`
	OpenAIModel         string `koanf:"openai_model"`
	MaxOutputTokens     int    `koanf:"max_output_tokens"`
	GenerationTimeoutMS int    `koanf:"generation_timeout_ms"`

	SummaryWordCap   int `koanf:"summary_word_cap"`
	PromptMaxPlayers int `koanf:"prompt_max_players"`
	PromptMaxHistory int `koanf:"prompt_max_history"`

	FetchPageSize    int `koanf:"fetch_page_size"`
	PublishTimeoutMS int `koanf:"publish_timeout_ms"`

	RegistrationAttempts  int `koanf:"registration_attempts"`
	RegistrationBackoffMS int `koanf:"registration_backoff_ms"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	MetricsEnabled   bool `koanf:"metrics_enabled"`
	MetricsRefreshMS int  `koanf:"metrics_refresh_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":3001",
		CORSAllowedOrigins:    "*",
		SchemaName:            "player_score_only",
		SchemaDefinition:      "string player, uint256 score, uint64 timestamp",
		StreamBackend:         StreamBackendMemory,
		IdempotencyBackend:    IdempotencyBackendMemory,
		IdempotencySize:       500_000,
		IdempotencyTTLSeconds: 86_400,
		RedisAddr:             "localhost:6379",
		GenerationProvider:    GenerationProviderOpenAI,
		OpenAIBaseURL:         "https://api.openai.com/v1",
		OpenAIModel:           "gpt-4.1-mini",
		MaxOutputTokens:       300,
		GenerationTimeoutMS:   20_000,
		SummaryWordCap:        150,
		PromptMaxPlayers:      50,
		PromptMaxHistory:      50,
		FetchPageSize:         500,
		PublishTimeoutMS:      30_000,
		RegistrationAttempts:  5,
		RegistrationBackoffMS: 500,
		MaxLeaderboardLimit:   100,
		MetricsEnabled:        true,
		MetricsRefreshMS:      10_000,
	}
}

// AllowedOrigins splits CORSAllowedOrigins into its entries.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// IdempotencyTTL returns the redis key lifetime.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

// GenerationTimeout bounds one summary call.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutMS) * time.Millisecond
}

// MetricsRefresh is how often polled gauges are refreshed.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// PublishTimeout bounds one publish including confirmation.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMS) * time.Millisecond
}

// RegistrationBackoff is the first delay between registration attempts.
func (c *Config) RegistrationBackoff() time.Duration {
	return time.Duration(c.RegistrationBackoffMS) * time.Millisecond
}
