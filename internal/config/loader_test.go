package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"SCORES_CONFIG",
	"SCORES_ADDR",
	"SCORES_PUBLISHER_ADDRESS",
	"SCORES_STREAM_BACKEND",
	"SCORES_POSTGRES_DSN",
	"SCORES_IDEMPOTENCY_BACKEND",
	"SCORES_REDIS_ADDR",
	"SCORES_GENERATION_PROVIDER",
	"SCORES_OPENAI_API_KEY",
	"SCORES_SUMMARY_WORD_CAP",
	"SCORES_FETCH_PAGE_SIZE",
	"SCORES_SCHEMA_DEFINITION",
	"SCORES_MAX_LEADERBOARD_LIMIT",
	"SCORES_CORS_ALLOWED_ORIGINS",
	"OPENAI_API_KEY",
	"PUBLISHER_WALLET",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "scores-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	return f.Name()
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When the publisher address is missing", func() {
			_, err := config.Load(ctx)

			convey.Convey("Then loading fails validation", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
			})
		})

		convey.Convey("When loading with environment variables", func() {
			_ = os.Setenv("SCORES_PUBLISHER_ADDRESS", "0xPUB")
			_ = os.Setenv("SCORES_ADDR", ":8080")
			_ = os.Setenv("SCORES_SUMMARY_WORD_CAP", "80")
			_ = os.Setenv("SCORES_FETCH_PAGE_SIZE", "250")
			_ = os.Setenv("SCORES_CORS_ALLOWED_ORIGINS", "https://game.example")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env overrides defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.PublisherAddress, convey.ShouldEqual, "0xPUB")
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SummaryWordCap, convey.ShouldEqual, 80)
				convey.So(cfg.FetchPageSize, convey.ShouldEqual, 250)
				convey.So(cfg.AllowedOrigins(), convey.ShouldResemble, []string{"https://game.example"})
			})
		})

		convey.Convey("When the word cap leaves no room for the summary lead", func() {
			_ = os.Setenv("SCORES_PUBLISHER_ADDRESS", "0xPUB")
			_ = os.Setenv("SCORES_SUMMARY_WORD_CAP", "2")

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails with the minimum", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
				convey.So(err.Error(), convey.ShouldContainSubstring, "summary_word_cap must be at least 10")
			})
		})

		convey.Convey("When only the deployment variables are set", func() {
			_ = os.Setenv("PUBLISHER_WALLET", "0xWALLET")
			_ = os.Setenv("OPENAI_API_KEY", "sk-test")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they are used as fallbacks", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.PublisherAddress, convey.ShouldEqual, "0xWALLET")
				convey.So(cfg.OpenAIAPIKey, convey.ShouldEqual, "sk-test")
			})

			convey.Convey("And prefixed keys win over them", func() {
				_ = os.Setenv("SCORES_OPENAI_API_KEY", "sk-prefixed")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.OpenAIAPIKey, convey.ShouldEqual, "sk-prefixed")
			})
		})

		convey.Convey("When loading from a YAML file", func() {
			path := createTempConfigFile(t, `
addr: ":9090"
publisher_address: "0xFILE"
stream_backend: postgres
postgres_dsn: "postgres://scores@localhost/scores"
idempotency_backend: redis
redis_addr: "redis:6379"
generation_provider: none
prompt_max_players: 10
`)
			_ = os.Setenv("SCORES_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.PublisherAddress, convey.ShouldEqual, "0xFILE")
				convey.So(cfg.StreamBackend, convey.ShouldEqual, config.StreamBackendPostgres)
				convey.So(cfg.IdempotencyBackend, convey.ShouldEqual, config.IdempotencyBackendRedis)
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis:6379")
				convey.So(cfg.GenerationProvider, convey.ShouldEqual, config.GenerationProviderNone)
				convey.So(cfg.PromptMaxPlayers, convey.ShouldEqual, 10)
			})

			convey.Convey("And env still overrides the file", func() {
				_ = os.Setenv("SCORES_ADDR", ":7070")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("SCORES_CONFIG", "/non/existent/file.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})

		convey.Convey("When a numeric variable is malformed", func() {
			_ = os.Setenv("SCORES_PUBLISHER_ADDRESS", "0xPUB")
			_ = os.Setenv("SCORES_SUMMARY_WORD_CAP", "many")

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()
		cfg.PublisherAddress = "0xPUB"
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		cases := map[string]func(c *config.Config){
			"empty addr":            func(c *config.Config) { c.Addr = " " },
			"zero word cap":         func(c *config.Config) { c.SummaryWordCap = 0 },
			"tiny word cap":         func(c *config.Config) { c.SummaryWordCap = 2 },
			"zero page size":        func(c *config.Config) { c.FetchPageSize = 0 },
			"bad schema":            func(c *config.Config) { c.SchemaDefinition = "float player" },
			"unknown stream":        func(c *config.Config) { c.StreamBackend = "kafka" },
			"postgres without dsn":  func(c *config.Config) { c.StreamBackend = config.StreamBackendPostgres },
			"unknown idempotency":   func(c *config.Config) { c.IdempotencyBackend = "disk" },
			"redis without address": func(c *config.Config) { c.IdempotencyBackend = config.IdempotencyBackendRedis; c.RedisAddr = "" },
			"unknown provider":      func(c *config.Config) { c.GenerationProvider = "local" },
			"zero leaderboard":      func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
			"zero attempts":         func(c *config.Config) { c.RegistrationAttempts = 0 },
			"zero metrics refresh":  func(c *config.Config) { c.MetricsRefreshMS = 0 },
		}
		for name, mutate := range cases {
			convey.Convey("When it has "+name, func() {
				mutate(cfg)
				convey.So(cfg.Validate(), convey.ShouldWrap, config.ErrInvalidConfig)
			})
		}
	})
}
