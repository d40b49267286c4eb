package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Restore loads the win ledger and round state. Corrupt documents are
// reported and replaced by empty defaults; other storage errors are returned.
// Loaded rounds are sanitized so the engine invariants hold after a restart.
func (e *Engine) Restore(ctx context.Context) error {
	wins, err := e.saver.p.LoadWins(ctx)
	switch {
	case errors.Is(err, ErrPersistenceCorrupt):
		e.log.Warn().Err(err).Msg("win ledger corrupt; starting with an empty ledger")
		wins = Ledger{}
	case err != nil:
		return fmt.Errorf("load wins: %w", err)
	}

	st, err := e.saver.p.LoadState(ctx)
	switch {
	case errors.Is(err, ErrPersistenceCorrupt):
		e.log.Warn().Err(err).Msg("round state corrupt; starting with an empty queue")
		st = State{}
	case err != nil:
		return fmt.Errorf("load round state: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.wins = Ledger{}
	for id, n := range wins {
		if n > 0 {
			e.wins[id] = n
		}
	}
	e.queue = e.sanitize(st.Queue)
	e.cool = cooldowns{}
	for id, t := range st.Cooldowns {
		e.cool[id] = t
	}

	ev := e.log.Info().Int("queue", len(e.queue)).Int("users", len(e.wins)).Int("cooldowns", len(e.cool))
	if r := e.activeLocked(); r != nil {
		ev = ev.Str("active", r.ID).Int("revealed", len(r.HintsRevealed))
	}
	ev.Msg("state restored")
	return nil
}

// sanitize enforces the queue invariants on loaded rounds.
func (e *Engine) sanitize(in []Round) []Round {
	n := e.opts.RequiredHints
	if len(in) > e.opts.MaxQueueSize {
		e.log.Warn().Int("loaded", len(in)).Int("max", e.opts.MaxQueueSize).Msg("queue truncated")
		in = in[:e.opts.MaxQueueSize]
	}
	out := make([]Round, 0, len(in))
	for i, r := range in {
		r = r.clone()
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Hints == nil {
			r.Hints = map[int]string{}
		}
		for k := range r.Hints {
			if k < 1 || k > n {
				delete(r.Hints, k)
			}
		}
		if r.IntervalMinutes < 1 {
			r.IntervalMinutes = 1
		}
		if r.IntervalMinutes > e.opts.MaxInterval {
			r.IntervalMinutes = e.opts.MaxInterval
		}
		r.HintsRevealed = validPrefix(r.HintsRevealed, r.Hints)

		switch r.Status {
		case StatusActive:
			if i != 0 {
				e.log.Warn().Str("round", r.ID).Int("position", i+1).Msg("non-head round was active; demoted")
				r.Status = StatusConfiguring
			} else if !r.complete(n) || len(r.HintsRevealed) == 0 {
				e.log.Warn().Str("round", r.ID).Msg("active round incomplete; demoted")
				r.Status = StatusConfiguring
			}
		case StatusEnded:
			e.log.Warn().Str("round", r.ID).Msg("dropping finished round")
			continue
		default:
			r.Status = StatusConfiguring
		}
		if r.Status == StatusConfiguring {
			r.HintsRevealed = nil
			r.LastRevealAt = nil
		}
		out = append(out, r)
	}
	return out
}

// validPrefix keeps the longest run of revealed hints numbered 1..k that
// match the stored hint text.
func validPrefix(revealed []Hint, hints map[int]string) []Hint {
	var out []Hint
	for i, h := range revealed {
		if h.Number != i+1 || hints[h.Number] == "" || hints[h.Number] != h.Text {
			break
		}
		out = append(out, h)
	}
	return out
}
