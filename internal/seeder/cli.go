package seeder

import "os"

// ShowHelp prints usage information for the seeding tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Score Seeder
============

Publishes generated score histories to a running service, then reads them
back through /data and /leaderboard and checks the results.

Usage:
  go run ./cmd/seed-scores [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:3001")
  -base-path string
        Prefix of the business routes, e.g. /api
  -players int
        Number of distinct players (default 20)
  -per-player int
        Scores published per player (default 10)
  -workers int
        Concurrent publish requests (default 8)
  -top int
        Leaderboard size to fetch (default 10)
  -wallet string
        Requester for GET /data (default: first generated player)
  -timeout duration
        Per-request timeout (default 30s)
  -output string
        Write generated events to this JSON file
  -verbose
        Log every failure and periodic progress
  -help
        Show this help message

Examples:
  go run ./cmd/seed-scores -players 50 -per-player 20
  go run ./cmd/seed-scores -url http://localhost:8080 -base-path /api -verbose
`)
}
