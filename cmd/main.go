package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/http/api"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/http/swagger"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/idempotency"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/llm"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/stream"
	service "github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/app"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/config"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/analysis"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/dedupe"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	os.Exit(run())
}

func run() int {
	// Our own system metrics replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		return 1
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
	)

	svc, err := newService(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return 1
	}
	defer svc.Stop()

	// The listener does not open until the schema is registered.
	if err := svc.Start(ctx); err != nil {
		if errors.Is(err, model.ErrSchemaConflict) {
			metrics.UpdateSchemaState(metrics.SchemaStateConflict)
		}
		log.Error(ctx, "failed to start service", logger.Error(err))
		return 1
	}

	if metrics.Enabled() {
		go startSystemMetricsUpdater(ctx)
		go startServiceMetricsUpdater(ctx, svc)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("basePath", cfg.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
		code = 1
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return code
}

// newService selects the backends named in cfg and returns an unstarted service.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	def, err := schema.Parse(cfg.SchemaDefinition)
	if err != nil {
		return nil, err
	}

	backend, err := newStreamBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	seen, err := newIdempotencyStore(ctx, cfg)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return service.New(
		service.WithLogger(log),
		service.WithBackend(backend),
		service.WithIdempotencyStore(seen),
		service.WithGenerator(newGenerator(ctx, cfg, log)),
		service.WithSchema(cfg.SchemaName, def),
		service.WithPublisherAddress(cfg.PublisherAddress),
		service.WithFetchPageSize(cfg.FetchPageSize),
		service.WithPublishTimeout(cfg.PublishTimeout()),
		service.WithGeneration(analysis.ModelConfig{
			Model:           cfg.OpenAIModel,
			MaxOutputTokens: cfg.MaxOutputTokens,
		}, cfg.GenerationTimeout()),
		service.WithSummaryWordCap(cfg.SummaryWordCap),
		service.WithPromptLimits(cfg.PromptMaxPlayers, cfg.PromptMaxHistory),
		service.WithRegistrationRetry(cfg.RegistrationAttempts, cfg.RegistrationBackoff()),
		service.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	), nil
}

func newStreamBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (stream.Backend, error) {
	switch cfg.StreamBackend {
	case config.StreamBackendPostgres:
		log.Info(ctx, "using postgres stream ledger")
		return stream.NewPostgres(ctx, cfg.PostgresDSN, cfg.PublisherAddress, stream.WithLogger(log.Named("stream")))
	case config.StreamBackendMemory, "":
		log.Info(ctx, "using in-memory stream ledger")
		return stream.NewMemory(cfg.PublisherAddress, stream.WithLogger(log.Named("stream")))
	default:
		return nil, fmt.Errorf("%w: unknown stream_backend %q", config.ErrInvalidConfig, cfg.StreamBackend)
	}
}

func newIdempotencyStore(ctx context.Context, cfg *config.Config) (dedupe.Store, error) {
	switch cfg.IdempotencyBackend {
	case config.IdempotencyBackendRedis:
		return idempotency.NewRedisStore(ctx, idempotency.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.IdempotencyTTL(),
		})
	case config.IdempotencyBackendMemory, "":
		return dedupe.NewInMemoryStore(dedupe.WithMaxSize(cfg.IdempotencySize)), nil
	default:
		return nil, fmt.Errorf("%w: unknown idempotency_backend %q", config.ErrInvalidConfig, cfg.IdempotencyBackend)
	}
}

// newGenerator never fails: without a usable provider summaries degrade to
// the placeholder.
func newGenerator(ctx context.Context, cfg *config.Config, log logger.Logger) analysis.Generator {
	if cfg.GenerationProvider != config.GenerationProviderOpenAI {
		log.Info(ctx, "summary generation disabled")
		return llm.Unavailable{}
	}
	gen, err := llm.NewOpenAI(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.GenerationTimeout(),
	})
	if err != nil {
		log.Warn(ctx, "openai generator unavailable; summaries will degrade", logger.Error(err))
		return llm.Unavailable{}
	}
	return gen
}

func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, svc.MaxLeaderboardLimit(), api.WithBasePath(cfg.BasePath)).Register(ctx, mux)
	return api.CORS(cfg.AllowedOrigins())(mux)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes gauges that GetStats maintains.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
