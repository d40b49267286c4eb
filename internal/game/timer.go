package game

import (
	"context"
	"errors"
	"time"
)

// Tick is the periodic hint check. It is a no-op unless a round is active,
// fully stored, stamped with a last reveal, and its interval has elapsed.
// At most one hint is revealed per tick: after downtime the next due time is
// measured from the catch-up reveal, so missed intervals are never replayed.
func (e *Engine) Tick(ctx context.Context, now time.Time) bool {
	var evs []Event
	e.mu.Lock()
	_, err := e.revealLocked(now, false, &evs)
	e.unlockAndPublish(ctx, evs)

	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrRoundIncomplete):
		e.log.Warn().Msg("active round is missing its next hint; tick skipped")
	}
	return false
}

// RunHintTimer calls Tick every interval until ctx is cancelled.
// clock may be nil (time.Now).
func RunHintTimer(ctx context.Context, e *Engine, every time.Duration, clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	e.log.Info().Dur("every", every).Msg("hint timer started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("hint timer stopped")
			return
		case <-ticker.C:
			e.Tick(ctx, clock())
		}
	}
}
