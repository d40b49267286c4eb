// internal/game/types.go
//
// Core type definitions for the round engine.
// Defines:
//   - Status: lifecycle of a single round (configuring → active → ended).
//   - Hint / Round: one queued or running round and its progressive hints.
//   - State: the durable part of the engine (queue + cooldown stamps).
//   - Ledger: cumulative wins per user.
//   - Options: fixed game parameters.

package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/itemguess/internal/rewards"
)

// Status represents where a round is in its lifecycle.
// Possible values:
//   - "configuring": being set up by an admin, may be incomplete.
//   - "active":      the head of the queue, hints are being revealed.
//   - "ended":       won, skipped or force-stopped; about to be discarded.
type Status string

const (
	StatusConfiguring Status = "configuring"
	StatusActive      Status = "active"
	StatusEnded       Status = "ended"
)

// Hint is one revealed hint.
type Hint struct {
	Number int    `json:"hint_number"`
	Text   string `json:"text"`
}

// Round holds one configured or in-progress game instance.
type Round struct {
	ID              string         // Random UUID, assigned on creation.
	ItemName        string         // Secret answer (trimmed); empty until configured.
	Hints           map[int]string // Hint index (1..N) → text.
	HintsRevealed   []Hint         // Prefix of Hints already shown, in order.
	IntervalMinutes int            // Minutes between automatic reveals.
	LastRevealAt    *time.Time     // Time of the latest reveal; nil if never started.
	Status          Status
}

// newRound returns an empty configuring round.
func newRound(interval int) Round {
	return Round{
		ID:              uuid.NewString(),
		Hints:           map[int]string{},
		IntervalMinutes: interval,
		Status:          StatusConfiguring,
	}
}

// complete reports whether the round has an item and hints 1..n.
func (r *Round) complete(n int) bool {
	if r.ItemName == "" || len(r.Hints) != n {
		return false
	}
	for i := 1; i <= n; i++ {
		if r.Hints[i] == "" {
			return false
		}
	}
	return true
}

// clone returns a deep copy safe to hand to another goroutine.
func (r Round) clone() Round {
	out := r
	out.Hints = make(map[int]string, len(r.Hints))
	for k, v := range r.Hints {
		out.Hints[k] = v
	}
	out.HintsRevealed = append([]Hint(nil), r.HintsRevealed...)
	if r.LastRevealAt != nil {
		t := *r.LastRevealAt
		out.LastRevealAt = &t
	}
	return out
}

// State is the durable round state: the queue (head first) and guess cooldowns.
type State struct {
	Queue     []Round
	Cooldowns map[string]time.Time
}

func (s State) clone() State {
	out := State{
		Queue:     make([]Round, len(s.Queue)),
		Cooldowns: make(map[string]time.Time, len(s.Cooldowns)),
	}
	for i, r := range s.Queue {
		out.Queue[i] = r.clone()
	}
	for k, v := range s.Cooldowns {
		out.Cooldowns[k] = v
	}
	return out
}

// Ledger maps user IDs to cumulative win counts.
type Ledger map[string]int

func (l Ledger) clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Options are the fixed parameters of a game context.
type Options struct {
	RequiredHints   int           // N: hints per round.
	MaxQueueSize    int           // Upper bound on queued rounds (active one included).
	Cooldown        time.Duration // Minimum spacing between two guesses by one user.
	DefaultInterval int           // Default minutes between reveals for new rounds.
	MaxInterval     int           // Upper bound for IntervalMinutes (lower bound is 1).
	AutoChain       bool          // Activate the next queued round after a win / endgame.
	Rewards         rewards.Table // Win thresholds → reward roles.
}

// DefaultOptions mirrors the production bot configuration.
func DefaultOptions() Options {
	return Options{
		RequiredHints:   7,
		MaxQueueSize:    5,
		Cooldown:        30 * time.Minute,
		DefaultInterval: 60,
		MaxInterval:     60,
		AutoChain:       true,
	}
}
