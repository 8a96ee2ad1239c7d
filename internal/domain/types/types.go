// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Rank   int     `json:"rank"`
	Player string  `json:"player"`
	Best   uint64  `json:"best"`
	Mean   float64 `json:"mean"`
	Count  int     `json:"count"`
	Trend  string  `json:"trend"`
}
