// Package model contains domain models passed between layers.
package model

import "time"

// SchemaID is the deterministic identifier of a record schema (0x-prefixed hex).
type SchemaID string

// String returns the hex form.
func (id SchemaID) String() string { return string(id) }

// ScoreEvent is one published player score. Immutable once published.
type ScoreEvent struct {
	Player    string    // stable per-participant identity, e.g. a wallet address
	Score     uint64    // non-negative integral metric
	RecordID  string    // globally unique per event; storage key
	Timestamp time.Time // publish instant
}

// Field is one (name, type) entry of a schema definition.
type Field struct {
	Name string
	Type string
}

// Schema is a registered record layout.
type Schema struct {
	ID     SchemaID
	Name   string
	Fields []Field
}

// RecordRef is the durable handle returned by a successful publish.
type RecordRef struct {
	TxHash    string // backend commit id
	RecordID  string
	Duplicate bool // true when answered from an earlier commit of the same record id
}

// AnalysisRequest is constructed per read request.
type AnalysisRequest struct {
	Requester string
	Corpus    []ScoreEvent
}

// PlayerStats aggregates one player's history.
type PlayerStats struct {
	Player string  `json:"player"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Best   uint64  `json:"best"`
	Worst  uint64  `json:"worst"`
	First  uint64  `json:"first"`
	Last   uint64  `json:"last"`
	Trend  Trend   `json:"trend"`
}

// Trend is the direction of a player's chronological scores.
type Trend string

// Trend values.
const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendSteady    Trend = "steady"
)

// CorpusStats aggregates the whole corpus.
type CorpusStats struct {
	Count   int           `json:"count"`
	Mean    float64       `json:"mean"`
	Players []PlayerStats `json:"players"`
}

// AnalysisResult is returned to the caller and never persisted.
type AnalysisResult struct {
	TotalEntries    int
	Records         []ScoreEvent
	Personal        []ScoreEvent // requester history, chronological
	Stats           CorpusStats
	Summary         string
	SummaryDegraded bool
	Skipped         int // stored records that failed to decode
}
