package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/seeder"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers   = 20
	defaultPerPlayer = 10
	defaultWorkers   = 8
	defaultTopN      = 10
	defaultTimeout   = 30 * time.Second
	defaultRunLimit  = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:3001", "Base URL of the service")
		basePath  = flag.String("base-path", "", "Prefix of the business routes, e.g. /api")
		players   = flag.Int("players", defaultPlayers, "Number of distinct players")
		perPlayer = flag.Int("per-player", defaultPerPlayer, "Scores published per player")
		workers   = flag.Int("workers", defaultWorkers, "Concurrent publish requests")
		topN      = flag.Int("top", defaultTopN, "Leaderboard size to fetch")
		wallet    = flag.String("wallet", "", "Requester for GET /data")
		timeout   = flag.Duration("timeout", defaultTimeout, "Per-request timeout")
		output    = flag.String("output", "", "Write generated events to this JSON file")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seeder.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	_, err := seeder.Run(ctx, &seeder.Config{
		BaseURL:         *baseURL,
		BasePath:        *basePath,
		Players:         *players,
		EventsPerPlayer: *perPlayer,
		Workers:         *workers,
		Timeout:         *timeout,
		TopN:            *topN,
		Wallet:          *wallet,
		OutputFile:      *output,
		Verbose:         *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "seeding failed", logger.Error(err))
		cancel()
		_ = logger.Sync()
		os.Exit(1)
	}
}
