package game

import (
	"context"

	"github.com/robalobadob/itemguess/internal/rewards"
)

// EventKind names a notification the engine produces for the presentation layer.
type EventKind string

const (
	EventRoundStarted   EventKind = "round_started"
	EventHintRevealed   EventKind = "hint_revealed"
	EventRoundWon       EventKind = "round_won"
	EventRoundEnded     EventKind = "round_ended"     // no winner (endgame / skip / stop)
	EventQueueExhausted EventKind = "queue_exhausted" // a round ended and nothing is queued
	EventQueueStalled   EventKind = "queue_stalled"   // next round exists but is incomplete
)

// Event is delivered to the Notifier after the engine lock is released.
type Event struct {
	Kind          EventKind
	RoundID       string
	ItemName      string // Only set for RoundWon / RoundEnded.
	Hint          Hint   // RoundStarted (hint 1) and HintRevealed.
	TotalHints    int
	Manual        bool   // HintRevealed triggered by an admin.
	Interval      int    // RoundStarted: minutes between reveals.
	QueueLen      int    // Rounds left in the queue after the event.
	UserID        string // RoundWon.
	Wins          int    // RoundWon: winner's new total.
	Tier          *rewards.Tier
	Cleared       bool // RoundEnded caused by a full queue stop.
	StalledReason error
}

// Notifier receives engine events in the order the state changed. The engine
// lock is not held during Notify, so read-only engine calls are safe;
// mutating calls from inside Notify deadlock.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
