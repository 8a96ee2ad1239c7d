package analysis

import (
	"fmt"
	"strings"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/model"
)

// NoHistoryPhrase opens every summary for a requester without entries.
const NoHistoryPhrase = "No history yet"

// PromptLimits caps how much of the corpus goes into one prompt.
type PromptLimits struct {
	MaxPlayers int // players listed individually, by entry count
	MaxHistory int // most recent personal entries listed
	WordCap    int
}

// BuildPrompt renders the aggregate per-player summary and the requester's
// history. personal must be chronological.
func BuildPrompt(requester string, stats model.CorpusStats, personal []model.ScoreEvent, lim PromptLimits) Prompt {
	var in strings.Builder

	fmt.Fprintf(&in, "Game performance across all players (%d entries, %d players, average score %.2f):\n",
		stats.Count, len(stats.Players), stats.Mean)
	players := stats.Players
	if lim.MaxPlayers > 0 && len(players) > lim.MaxPlayers {
		players = players[:lim.MaxPlayers]
	}
	for _, p := range players {
		fmt.Fprintf(&in, "- %s: %d entries, mean %.2f, best %d, worst %d, first %d, last %d, trend %s\n",
			p.Player, p.Count, p.Mean, p.Best, p.Worst, p.First, p.Last, p.Trend)
	}
	if rest := len(stats.Players) - len(players); rest > 0 {
		fmt.Fprintf(&in, "- ... and %d more players with fewer entries\n", rest)
	}

	fmt.Fprintf(&in, "\nThe player requesting analysis has wallet address: %s\n", requester)
	in.WriteString("Their individual score history, oldest first:\n")
	if len(personal) == 0 {
		fmt.Fprintf(&in, "%s for this player. Do not invent any figures for them.\n", NoHistoryPhrase)
	} else {
		history := personal
		if lim.MaxHistory > 0 && len(history) > lim.MaxHistory {
			skipped := len(history) - lim.MaxHistory
			history = history[skipped:]
			fmt.Fprintf(&in, "(%d earlier entries omitted)\n", skipped)
		}
		offset := len(personal) - len(history)
		for i, ev := range history {
			fmt.Fprintf(&in, "#%d: %d\n", offset+i+1, ev.Score)
		}
	}

	var instr strings.Builder
	instr.WriteString("You are a motivational game data analyst for a blockchain game.\n")
	instr.WriteString("Analyze:\n")
	instr.WriteString("1. The overall performance trend among all players: who is improving, average competitiveness, noticeable outliers.\n")
	instr.WriteString("2. The requesting player's performance compared to the others.\n")
	instr.WriteString("3. A short, friendly motivational closing.\n")
	fmt.Fprintf(&instr, "The whole answer must stay under %d words.\n", lim.WordCap)
	if len(personal) == 0 {
		fmt.Fprintf(&instr, "The requesting player has no entries: begin with %q and never fabricate their scores.\n", NoHistoryPhrase+".")
	}
	instr.WriteString("Respond in a clear and structured summary style.")

	return Prompt{Instructions: instr.String(), Input: in.String()}
}
