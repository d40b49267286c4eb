package game

import (
	"context"
	"sort"
	"time"
)

// RoundView is a read-only projection of a queued round.
type RoundView struct {
	Position        int        `json:"position"`
	ID              string     `json:"id"`
	ItemName        string     `json:"itemName,omitempty"`
	Status          Status     `json:"status"`
	HintsConfigured int        `json:"hintsConfigured"`
	Hints           []string   `json:"hints"` // Index i holds hint i+1; "" when unset.
	HintsRevealed   []Hint     `json:"hintsRevealed"`
	TotalHints      int        `json:"totalHints"`
	IntervalMinutes int        `json:"intervalMinutes"`
	Complete        bool       `json:"complete"`
	LastRevealAt    *time.Time `json:"lastRevealAt,omitempty"`
	NextRevealAt    *time.Time `json:"nextRevealAt,omitempty"`
}

// Snapshot is the queue overview shown by status commands.
type Snapshot struct {
	Active        bool        `json:"active"`
	Queue         []RoundView `json:"queue"`
	MaxQueueSize  int         `json:"maxQueueSize"`
	RequiredHints int         `json:"requiredHints"`
	Cooldowns     int         `json:"cooldowns"`
	AutoChain     bool        `json:"autoChain"`
}

// Standing is one leaderboard row.
type Standing struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Wins   int    `json:"wins"`
}

func (e *Engine) viewLocked(pos int, now time.Time) RoundView {
	r := e.queue[pos-1]
	v := RoundView{
		Position:        pos,
		ID:              r.ID,
		ItemName:        r.ItemName,
		Status:          r.Status,
		HintsConfigured: len(r.Hints),
		Hints:           make([]string, e.opts.RequiredHints),
		HintsRevealed:   append([]Hint{}, r.HintsRevealed...),
		TotalHints:      e.opts.RequiredHints,
		IntervalMinutes: r.IntervalMinutes,
		Complete:        r.complete(e.opts.RequiredHints),
	}
	for i := range v.Hints {
		v.Hints[i] = r.Hints[i+1]
	}
	if r.LastRevealAt != nil {
		last := *r.LastRevealAt
		v.LastRevealAt = &last
		if r.Status == StatusActive && len(r.HintsRevealed) < e.opts.RequiredHints {
			next := last.Add(time.Duration(r.IntervalMinutes) * time.Minute)
			v.NextRevealAt = &next
		}
	}
	return v
}

// Status returns the queue overview.
func (e *Engine) Status(now time.Time) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Active:        e.activeLocked() != nil,
		Queue:         make([]RoundView, 0, len(e.queue)),
		MaxQueueSize:  e.opts.MaxQueueSize,
		RequiredHints: e.opts.RequiredHints,
		Cooldowns:     len(e.cool),
		AutoChain:     e.opts.AutoChain,
	}
	for i := range e.queue {
		s.Queue = append(s.Queue, e.viewLocked(i+1, now))
	}
	return s
}

// RoundAt returns the round at a 1-based queue position.
func (e *Engine) RoundAt(pos int, now time.Time) (RoundView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pos < 1 || pos > e.opts.MaxQueueSize || pos > len(e.queue) {
		return RoundView{}, ErrInvalidPosition
	}
	return e.viewLocked(pos, now), nil
}

// Active returns the running round, if any.
func (e *Engine) Active(now time.Time) (RoundView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeLocked() == nil {
		return RoundView{}, false
	}
	return e.viewLocked(1, now), true
}

// Wins returns a user's cumulative win count.
func (e *Engine) Wins(user string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wins[user]
}

// Leaderboard returns the top users by wins (ties broken by user ID).
// limit <= 0 returns every user.
func (e *Engine) Leaderboard(limit int) []Standing {
	e.mu.Lock()
	rows := make([]Standing, 0, len(e.wins))
	for id, n := range e.wins {
		if n > 0 {
			rows = append(rows, Standing{UserID: id, Wins: n})
		}
	}
	e.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// ResetWins clears one user's win count and returns the previous value.
func (e *Engine) ResetWins(ctx context.Context, user string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.wins[user]
	if !ok {
		return 0
	}
	delete(e.wins, user)
	e.saveWinsLocked()
	e.log.Info().Str("user", user).Int("previous", prev).Msg("wins reset")
	return prev
}
