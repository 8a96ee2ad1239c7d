package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/analysis"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
)

const envPrefix = "SCORES_"

// Deployment variable names honored when the prefixed keys are unset.
const (
	fallbackAPIKeyEnv    = "OPENAI_API_KEY"
	fallbackPublisherEnv = "PUBLISHER_WALLET"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SCORES_CONFIG is set
//  3. env (prefix SCORES_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// SCORES_STREAM_BACKEND -> stream_backend (flat keys).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv(fallbackAPIKeyEnv)
	}
	if cfg.PublisherAddress == "" {
		cfg.PublisherAddress = os.Getenv(fallbackPublisherEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case strings.TrimSpace(c.SchemaName) == "":
		return invalid("schema_name must not be empty")
	case strings.TrimSpace(c.PublisherAddress) == "":
		return invalid("publisher_address must be set (or " + fallbackPublisherEnv + ")")
	case c.SummaryWordCap < analysis.MinWordCap:
		return invalid(fmt.Sprintf("summary_word_cap must be at least %d", analysis.MinWordCap))
	case c.FetchPageSize <= 0:
		return invalid("fetch_page_size must be positive")
	case c.PublishTimeoutMS <= 0:
		return invalid("publish_timeout_ms must be positive")
	case c.GenerationTimeoutMS <= 0:
		return invalid("generation_timeout_ms must be positive")
	case c.RegistrationAttempts <= 0:
		return invalid("registration_attempts must be positive")
	case c.MaxLeaderboardLimit <= 0:
		return invalid("max_leaderboard_limit must be positive")
	case c.MetricsRefreshMS <= 0:
		return invalid("metrics_refresh_ms must be positive")
	}
	if _, err := schema.Parse(c.SchemaDefinition); err != nil {
		return fmt.Errorf("%w: schema_definition: %w", ErrInvalidConfig, err)
	}

	switch c.StreamBackend {
	case StreamBackendMemory:
	case StreamBackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return invalid("postgres_dsn is required for the postgres stream backend")
		}
	default:
		return invalid("unknown stream_backend " + quote(c.StreamBackend))
	}

	switch c.IdempotencyBackend {
	case IdempotencyBackendMemory:
		if c.IdempotencySize <= 0 {
			return invalid("idempotency_size must be positive")
		}
	case IdempotencyBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return invalid("redis_addr is required for the redis idempotency backend")
		}
	default:
		return invalid("unknown idempotency_backend " + quote(c.IdempotencyBackend))
	}

	switch c.GenerationProvider {
	case GenerationProviderOpenAI, GenerationProviderNone:
	default:
		return invalid("unknown generation_provider " + quote(c.GenerationProvider))
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

func quote(s string) string { return `"` + s + `"` }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
