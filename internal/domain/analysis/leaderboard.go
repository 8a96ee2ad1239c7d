package analysis

import (
	"sort"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/types"
)

// Leaderboard ranks players by best score, then mean, then name, and returns
// the top n. n <= 0 returns every player.
func Leaderboard(stats model.CorpusStats, n int) []types.Entry {
	players := make([]model.PlayerStats, len(stats.Players))
	copy(players, stats.Players)
	sort.Slice(players, func(i, j int) bool {
		a, b := players[i], players[j]
		if a.Best != b.Best {
			return a.Best > b.Best
		}
		if a.Mean != b.Mean {
			return a.Mean > b.Mean
		}
		return a.Player < b.Player
	})
	if n > 0 && n < len(players) {
		players = players[:n]
	}
	out := make([]types.Entry, 0, len(players))
	for i, p := range players {
		out = append(out, types.Entry{
			Rank:   i + 1,
			Player: p.Player,
			Best:   p.Best,
			Mean:   p.Mean,
			Count:  p.Count,
			Trend:  string(p.Trend),
		})
	}
	return out
}
