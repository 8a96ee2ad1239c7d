// Package service owns the schema id and wires the publish, fetch and
// analysis components behind the dependencies the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/stream"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/analysis"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/dedupe"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/fetch"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/publish"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/types"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/metrics"
)

// Default service configuration constants.
const (
	DefaultSchemaName       = "player_score_only"
	DefaultSchemaDefinition = "string player, uint256 score, uint64 timestamp"

	defaultRegistrationAttempts = 5
	defaultRegistrationBackoff  = 500 * time.Millisecond
	maxRegistrationBackoff      = 30 * time.Second
	defaultMaxLeaderboardLimit  = 100
)

// Service implements the API dependencies for the score pipeline.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	backend   stream.Backend
	generator analysis.Generator
	seen      dedupe.Store

	// Configuration
	schemaName          string
	definition          schema.Definition
	publisherAddr       string
	pageSize            int
	publishTimeout      time.Duration
	modelCfg            analysis.ModelConfig
	generationTimeout   time.Duration
	wordCap             int
	promptMaxPlayers    int
	promptMaxHistory    int
	regAttempts         int
	regBackoff          time.Duration
	maxLeaderboardLimit int

	// State, set once Start completes
	started   bool
	schema    model.Schema
	publisher *publish.Publisher
	fetcher   *fetch.Fetcher
	analyzer  *analysis.Analyzer

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		schemaName:          DefaultSchemaName,
		definition:          schema.MustParse(DefaultSchemaDefinition),
		regAttempts:         defaultRegistrationAttempts,
		regBackoff:          defaultRegistrationBackoff,
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the schema, retrying while the backend is unavailable, and
// builds the publish and read paths. It does not return until the schema is
// ready or registration failed for good. SchemaConflict is never retried.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.backend == nil {
		mem, err := stream.NewMemory(s.publisherAddr, stream.WithLogger(s.logger.Named("stream")))
		if err != nil {
			return err
		}
		s.backend = mem
		s.logger.Info(ctx, "using in-memory stream ledger")
	}
	if s.seen == nil {
		s.seen = dedupe.NewInMemoryStore()
	}

	s.logger.Info(ctx, "registering schema",
		logger.String("name", s.schemaName),
		logger.String("definition", s.definition.String()),
	)
	metrics.UpdateSchemaState(metrics.SchemaStatePending)

	sch, err := s.ensureSchema(ctx)
	if err != nil {
		return err
	}

	s.schema = sch
	s.publisher = publish.New(s.backend, sch,
		publish.WithLogger(s.logger.Named("publisher")),
		publish.WithIdempotencyStore(s.seen),
		publish.WithTimeout(s.publishTimeout),
	)
	s.fetcher = fetch.New(s.backend, sch,
		fetch.WithLogger(s.logger.Named("fetcher")),
		fetch.WithPageSize(s.pageSize),
	)
	s.analyzer = analysis.New(s.generator,
		analysis.WithLogger(s.logger.Named("analyzer")),
		analysis.WithModel(s.modelCfg),
		analysis.WithTimeout(s.generationTimeout),
		analysis.WithWordCap(s.wordCap),
		analysis.WithPromptLimits(s.promptMaxPlayers, s.promptMaxHistory),
	)
	s.started = true

	s.logger.Info(ctx, "score service started",
		logger.String("schemaId", sch.ID.String()),
		logger.String("publisher", s.publisherAddr),
	)
	return nil
}

// ensureSchema must be called with s.mu held.
func (s *Service) ensureSchema(ctx context.Context) (model.Schema, error) {
	registry := schema.NewRegistry(s.backend, schema.WithLogger(s.logger.Named("schema")))
	backoff := s.regBackoff

	var lastErr error
	for attempt := 1; attempt <= s.regAttempts; attempt++ {
		sch, err := registry.Ensure(ctx, s.schemaName, s.definition)
		if err == nil {
			return sch, nil
		}
		if errors.Is(err, model.ErrSchemaConflict) {
			s.logger.Error(ctx, "schema conflict, refusing to serve", logger.Error(err))
			return model.Schema{}, err
		}
		lastErr = err
		s.logger.Warn(ctx, "schema registration failed",
			logger.Int("attempt", attempt),
			logger.Int("maxAttempts", s.regAttempts),
			logger.Duration("retryIn", backoff),
			logger.Error(err),
		)
		if attempt == s.regAttempts {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return model.Schema{}, model.WrapKind("service.start", model.ErrSchemaNotReady, ctx.Err())
		case <-t.C:
		}
		backoff *= 2
		if backoff > maxRegistrationBackoff {
			backoff = maxRegistrationBackoff
		}
	}
	return model.Schema{}, lastErr
}

// Stop releases the backend and idempotency store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return
	}
	lg := s.logger
	if lg == nil {
		lg = logger.Get()
	}
	lg.Info(context.Background(), "stopping score service...")

	if err := s.backend.Close(); err != nil {
		lg.Warn(context.Background(), "closing stream backend failed", logger.Error(err))
	}
	if closer, ok := s.seen.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	lg.Info(context.Background(), "score service stopped")
}

// SchemaID returns the registered schema id, or false before Start completes.
func (s *Service) SchemaID() (model.SchemaID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return "", false
	}
	return s.schema.ID, true
}

// Publish commits one score event.
func (s *Service) Publish(ctx context.Context, ev model.ScoreEvent) (model.RecordRef, error) {
	p, _, _, err := s.components()
	if err != nil {
		return model.RecordRef{}, err
	}
	return p.Publish(ctx, ev)
}

// Data fetches the whole corpus and analyzes it for wallet.
func (s *Service) Data(ctx context.Context, wallet string) (model.AnalysisResult, error) {
	_, f, a, err := s.components()
	if err != nil {
		return model.AnalysisResult{}, err
	}
	res, err := f.FetchAll(ctx, s.currentSchemaID(), s.publisherAddr)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	out := a.Analyze(ctx, model.AnalysisRequest{Requester: wallet, Corpus: res.Events})
	out.Skipped = res.Skipped
	return out, nil
}

// Leaderboard ranks the players of the corpus and returns the top n.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	_, f, _, err := s.components()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n > s.maxLeaderboardLimit {
		n = s.maxLeaderboardLimit
	}
	res, err := f.FetchAll(ctx, s.currentSchemaID(), s.publisherAddr)
	if err != nil {
		return nil, err
	}
	return analysis.Leaderboard(analysis.ComputeStats(res.Events), n), nil
}

// MaxLeaderboardLimit returns the largest accepted leaderboard size.
func (s *Service) MaxLeaderboardLimit() int { return s.maxLeaderboardLimit }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"schemaName": s.schemaName,
		"definition": s.definition.String(),
		"publisher":  s.publisherAddr,
	}
	if s.started {
		stats["schemaId"] = s.schema.ID.String()
		stats["summaryWordCap"] = s.analyzer.WordCap()
		stats["generator"] = generatorName(s.generator)
	}
	if s.seen != nil {
		size := s.seen.Size()
		stats["idempotencyEntries"] = size
		metrics.UpdateIdempotencyEntries(size)
	}
	return stats
}

func (s *Service) components() (*publish.Publisher, *fetch.Fetcher, *analysis.Analyzer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, model.NewKind("service", model.ErrSchemaNotReady, "schema registration has not completed")
	}
	return s.publisher, s.fetcher, s.analyzer, nil
}

func (s *Service) currentSchemaID() model.SchemaID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema.ID
}

func generatorName(g analysis.Generator) string {
	if g == nil {
		return "none"
	}
	return fmt.Sprintf("%T", g)
}
