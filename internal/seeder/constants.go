package seeder

import "time"

// Runner configuration constants.
const (
	defaultWorkers       = 8
	defaultTopN          = 10
	defaultTimeout       = 30 * time.Second
	healthPollInterval   = 500 * time.Millisecond
	percentageMultiplier = 100
)
