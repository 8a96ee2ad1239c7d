package seeder

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// profile shapes one player's score history.
type profile struct {
	base  int64 // first score
	step  int64 // added per event
	noise int64 // uniform jitter in [-noise, noise]
}

var profiles = []profile{
	{base: 40, step: 6, noise: 5},  // improving
	{base: 90, step: -5, noise: 4}, // declining
	{base: 60, step: 0, noise: 3},  // steady
	{base: 10, step: 12, noise: 8}, // fast learner
	{base: 75, step: 1, noise: 20}, // erratic
}

func randInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// randomWallet returns a 0x-prefixed 20-byte hex address.
func randomWallet() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate wallet: %w", err)
	}
	return "0x" + hex.EncodeToString(b), nil
}

// Generate builds players*perPlayer events. Each player follows one profile,
// so the read side sees distinct trends. Events are interleaved by round.
func Generate(players, perPlayer int) ([]Event, error) {
	if players <= 0 || perPlayer <= 0 {
		return nil, nil
	}
	wallets := make([]string, players)
	for i := range wallets {
		w, err := randomWallet()
		if err != nil {
			return nil, err
		}
		wallets[i] = w
	}

	events := make([]Event, 0, players*perPlayer)
	for round := 0; round < perPlayer; round++ {
		for i, w := range wallets {
			p := profiles[i%len(profiles)]
			score := p.base + p.step*int64(round)
			if p.noise > 0 {
				score += randInt(2*p.noise+1) - p.noise
			}
			if score < 0 {
				score = 0
			}
			id, err := uuid.NewV7()
			if err != nil {
				return nil, fmt.Errorf("generate record id: %w", err)
			}
			events = append(events, Event{Player: w, Score: uint64(score), RecordID: id.String()})
		}
	}
	return events, nil
}

// bestByPlayer returns each player's highest generated score.
func bestByPlayer(events []Event) map[string]uint64 {
	best := make(map[string]uint64)
	for _, ev := range events {
		if cur, ok := best[ev.Player]; !ok || ev.Score > cur {
			best[ev.Player] = ev.Score
		}
	}
	return best
}
