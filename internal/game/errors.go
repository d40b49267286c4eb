package game

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by Engine operations. None of them is fatal: the command
// layer maps each one to a message and the engine state is left unchanged
// (except the cooldown stamp on an incorrect guess).
var (
	ErrInvalidPosition    = errors.New("queue position out of range")
	ErrQueueFull          = fmt.Errorf("queue is full: %w", ErrInvalidPosition)
	ErrRoundLocked        = errors.New("round is active and cannot be changed")
	ErrWrongHintCount     = errors.New("wrong number of hints")
	ErrInvalidHintIndex   = errors.New("hint index out of range")
	ErrInvalidInterval    = errors.New("hint interval out of range")
	ErrEmptyText          = errors.New("text must not be empty")
	ErrRoundIncomplete    = errors.New("round is missing its item or hints")
	ErrRoundActive        = errors.New("a round is already active")
	ErrQueueEmpty         = errors.New("queue is empty")
	ErrCooldownActive     = errors.New("guess cooldown active")
	ErrNoActiveRound      = errors.New("no active round")
	ErrAllHintsRevealed   = errors.New("all hints already revealed")
	ErrHintNotDue         = errors.New("next hint is not due yet")
	ErrPersistenceCorrupt = errors.New("persisted state is corrupt")
	ErrRewardGrantFailed  = errors.New("reward grant failed")
)

// CooldownError reports how long a user must wait before guessing again.
type CooldownError struct {
	Remaining time.Duration
	Since     time.Time // The stamp the rejection was measured from.
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s remaining", ErrCooldownActive, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }
