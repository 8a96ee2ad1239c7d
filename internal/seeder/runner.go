package seeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
)

// Verification errors.
var (
	ErrNothingToSeed       = errors.New("nothing to seed")
	ErrReadBackMismatch    = errors.New("read-back does not contain all published events")
	ErrLeaderboardMismatch = errors.New("leaderboard does not match published scores")
)

const directoryPermission = 0o750

// Run waits for the service, publishes generated events concurrently and
// verifies them through /data and /leaderboard.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("seeder")
	stats := &Stats{StartTime: time.Now()}
	applyDefaults(cfg)

	log.Info(ctx, "starting score seeding",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("eventsPerPlayer", cfg.EventsPerPlayer),
		logger.Int("workers", cfg.Workers),
	)

	client := NewClient(cfg.BaseURL, cfg.BasePath, cfg.Timeout)

	if err := waitHealthy(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	schemaID, err := client.SchemaID(ctx)
	if err != nil {
		return stats, fmt.Errorf("schema lookup failed: %w", err)
	}
	log.Info(ctx, "service is ready", logger.String("schemaId", schemaID))

	events, err := Generate(cfg.Players, cfg.EventsPerPlayer)
	if err != nil {
		return stats, err
	}
	if len(events) == 0 {
		return stats, ErrNothingToSeed
	}
	stats.EventsGenerated = len(events)

	if err := submit(ctx, client, cfg, events, stats); err != nil {
		return stats, fmt.Errorf("event submission failed: %w", err)
	}

	if err := verify(ctx, client, cfg, events, stats); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveEvents(cfg.OutputFile, events); err != nil {
			log.Warn(ctx, "failed to save events to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)
	return stats, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.TopN <= 0 {
		cfg.TopN = defaultTopN
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
}

// waitHealthy polls /healthz until it answers 200 or ctx ends.
func waitHealthy(ctx context.Context, c *Client) error {
	t := time.NewTicker(healthPollInterval)
	defer t.Stop()
	for {
		err := c.Health(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		case <-t.C:
		}
	}
}

// submit publishes events with at most cfg.Workers requests in flight.
// Individual failures are counted, not fatal.
func submit(ctx context.Context, c *Client, cfg *Config, events []Event, stats *Stats) error {
	log := logger.Get().Named("seeder")
	var submitted, successful, duplicate, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, ev := range events {
		g.Go(func() error {
			outcome, err := c.Publish(gctx, ev)
			n := submitted.Add(1)
			switch outcome {
			case OutcomeSuccess:
				successful.Add(1)
			case OutcomeDuplicate:
				duplicate.Add(1)
			default:
				failed.Add(1)
				if cfg.Verbose {
					log.Warn(gctx, "publish failed", logger.String("recordId", ev.RecordID), logger.Error(err))
				}
			}
			if cfg.Verbose && n%100 == 0 {
				log.Info(gctx, "progress", logger.Int("submitted", int(n)), logger.Int("total", len(events)))
			}
			return nil
		})
	}
	err := g.Wait()

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsSuccessful = int(successful.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsFailed = int(failed.Load())
	if err != nil {
		return err
	}
	return ctx.Err()
}

// verify checks that every accepted event is readable and that the
// leaderboard top matches the highest published score.
func verify(ctx context.Context, c *Client, cfg *Config, events []Event, stats *Stats) error {
	log := logger.Get().Named("seeder")

	wallet := cfg.Wallet
	if wallet == "" {
		wallet = events[0].Player
	}
	data, err := c.Data(ctx, wallet)
	if err != nil {
		return fmt.Errorf("data retrieval failed: %w", err)
	}
	stats.EventsReadBack = data.TotalEntries
	accepted := stats.EventsSuccessful + stats.EventsDuplicate
	if data.TotalEntries < accepted {
		return fmt.Errorf("%w: read %d, accepted %d", ErrReadBackMismatch, data.TotalEntries, accepted)
	}
	log.Info(ctx, "summary received",
		logger.String("wallet", wallet),
		logger.Any("degraded", data.SummaryDegraded),
		logger.String("summary", data.AISummary),
	)

	board, err := c.Leaderboard(ctx, cfg.TopN)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(board)
	if stats.EventsFailed == 0 {
		if err := checkLeaderboard(board, bestByPlayer(events)); err != nil {
			return err
		}
	}
	for _, e := range board {
		log.Info(ctx, "leaderboard",
			logger.Int("rank", e.Rank),
			logger.String("player", e.Player),
			logger.Any("best", e.Best),
			logger.String("trend", e.Trend),
		)
	}
	return nil
}

// checkLeaderboard verifies ordering and that every listed best matches
// what was published. Only valid against a ledger holding nothing else.
func checkLeaderboard(board []LeaderboardEntry, best map[string]uint64) error {
	if len(board) == 0 {
		return fmt.Errorf("%w: empty", ErrLeaderboardMismatch)
	}
	var top uint64
	for _, b := range best {
		if b > top {
			top = b
		}
	}
	if board[0].Best < top {
		return fmt.Errorf("%w: top best %d, published max %d", ErrLeaderboardMismatch, board[0].Best, top)
	}
	for i, e := range board {
		if i > 0 && e.Best > board[i-1].Best {
			return fmt.Errorf("%w: entry %d out of order", ErrLeaderboardMismatch, i)
		}
		if want, ok := best[e.Player]; ok && want != e.Best {
			return fmt.Errorf("%w: %s best %d, published %d", ErrLeaderboardMismatch, e.Player, e.Best, want)
		}
	}
	return nil
}

func saveEvents(filename string, events []Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, eventsPerSecond float64
	if stats.EventsSubmitted > 0 {
		successRate = float64(stats.EventsSuccessful+stats.EventsDuplicate) / float64(stats.EventsSubmitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsSuccessful", stats.EventsSuccessful),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("eventsReadBack", stats.EventsReadBack),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond),
	)
}
