package analysis

import (
	"sort"
	"strings"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
)

// trendThreshold is the fraction of a player's mean the fitted change across
// their history must exceed to count as improving or declining.
const trendThreshold = 0.05

// SamePlayer reports whether two identities name the same participant.
// Hex addresses compare case-insensitively, anything else exactly.
func SamePlayer(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if isHex(a) && isHex(b) {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func isHex(s string) bool {
	return len(s) > 2 && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"))
}

// Chronological returns a copy of events ordered by timestamp, then record id.
func Chronological(events []model.ScoreEvent) []model.ScoreEvent {
	out := make([]model.ScoreEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out
}

// Personal returns the events of requester in the order given.
func Personal(events []model.ScoreEvent, requester string) []model.ScoreEvent {
	var out []model.ScoreEvent
	for _, ev := range events {
		if SamePlayer(ev.Player, requester) {
			out = append(out, ev)
		}
	}
	return out
}

// ComputeStats aggregates events. The result does not depend on input order.
// Players are sorted by entry count, then name.
func ComputeStats(events []model.ScoreEvent) model.CorpusStats {
	sorted := Chronological(events)

	byPlayer := make(map[string][]uint64)
	var order []string
	var total float64
	for _, ev := range sorted {
		key := playerKey(ev.Player)
		if _, ok := byPlayer[key]; !ok {
			order = append(order, key)
		}
		byPlayer[key] = append(byPlayer[key], ev.Score)
		total += float64(ev.Score)
	}

	stats := model.CorpusStats{Count: len(sorted), Players: make([]model.PlayerStats, 0, len(order))}
	if len(sorted) > 0 {
		stats.Mean = total / float64(len(sorted))
	}
	for _, p := range order {
		stats.Players = append(stats.Players, playerStats(p, byPlayer[p]))
	}
	sort.Slice(stats.Players, func(i, j int) bool {
		if stats.Players[i].Count != stats.Players[j].Count {
			return stats.Players[i].Count > stats.Players[j].Count
		}
		return stats.Players[i].Player < stats.Players[j].Player
	})
	return stats
}

// playerKey folds hex addresses so differently cased copies aggregate together.
func playerKey(p string) string {
	p = strings.TrimSpace(p)
	if isHex(p) {
		return strings.ToLower(p)
	}
	return p
}

// playerStats expects scores in chronological order.
func playerStats(player string, scores []uint64) model.PlayerStats {
	ps := model.PlayerStats{
		Player: player,
		Count:  len(scores),
		Best:   scores[0],
		Worst:  scores[0],
		First:  scores[0],
		Last:   scores[len(scores)-1],
	}
	var sum float64
	for _, s := range scores {
		sum += float64(s)
		if s > ps.Best {
			ps.Best = s
		}
		if s < ps.Worst {
			ps.Worst = s
		}
	}
	ps.Mean = sum / float64(len(scores))
	ps.Trend = trend(scores, ps.Mean)
	return ps
}

// trend fits a least-squares line through the scores and compares the
// change it predicts over the whole history with the mean.
func trend(scores []uint64, mean float64) model.Trend {
	n := len(scores)
	if n < 2 {
		return model.TrendSteady
	}
	xMean := float64(n-1) / 2
	var num, den float64
	for i, s := range scores {
		dx := float64(i) - xMean
		num += dx * (float64(s) - mean)
		den += dx * dx
	}
	change := num / den * float64(n-1)
	limit := trendThreshold * mean
	switch {
	case change > limit && change > 0:
		return model.TrendImproving
	case change < -limit && change < 0:
		return model.TrendDeclining
	default:
		return model.TrendSteady
	}
}
