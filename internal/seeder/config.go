// Package seeder drives a running score service over HTTP: it publishes
// generated score histories, then reads them back and checks the results.
package seeder

import "time"

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL         string        // service root, e.g. http://localhost:3001
	BasePath        string        // business route prefix, e.g. /api
	Players         int           // distinct players to generate
	EventsPerPlayer int           // scores published per player
	Workers         int           // concurrent publish requests
	Timeout         time.Duration // per-request timeout
	TopN            int           // leaderboard size to fetch
	Wallet          string        // requester for GET /data; defaults to the first player
	OutputFile      string        // optional JSON dump of generated events
	Verbose         bool
}

// Event is one score to publish.
type Event struct {
	Player   string `json:"player"`
	Score    uint64 `json:"score"`
	RecordID string `json:"recordId"`
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated    int
	EventsSubmitted    int
	EventsSuccessful   int
	EventsDuplicate    int
	EventsFailed       int
	EventsReadBack     int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
