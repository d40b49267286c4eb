package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robalobadob/itemguess/internal/game"
)

// describe maps an engine error to the reply shown in chat.
func (b *Bot) describe(err error) string {
	opts := b.eng.Options()
	var cd *game.CooldownError
	switch {
	case errors.As(err, &cd):
		return fmt.Sprintf("🛑 **Cooldown Active:** You must wait **%s** before guessing again.", formatTimeRemaining(cd.Remaining))
	case errors.Is(err, game.ErrQueueFull):
		return fmt.Sprintf("❌ Error: Game queue is full (max %d games). Use `!delete` to free a slot.", opts.MaxQueueSize)
	case errors.Is(err, game.ErrInvalidPosition):
		return fmt.Sprintf("❌ That game does not exist. Positions run from 1 to %d.", opts.MaxQueueSize)
	case errors.Is(err, game.ErrRoundLocked):
		return "❌ Cannot change the **active** Game 1. Use `!endgame` first, or set up a later game."
	case errors.Is(err, game.ErrWrongHintCount):
		return fmt.Sprintf("❌ Error: You must provide exactly **%d** hints, one per line.", opts.RequiredHints)
	case errors.Is(err, game.ErrInvalidHintIndex):
		return fmt.Sprintf("❌ Hint number must be between 1 and %d.", opts.RequiredHints)
	case errors.Is(err, game.ErrInvalidInterval):
		return fmt.Sprintf("❌ Interval must be between 1 and %d minutes.", opts.MaxInterval)
	case errors.Is(err, game.ErrEmptyText):
		return "❌ The text must not be empty."
	case errors.Is(err, game.ErrRoundIncomplete):
		return "❌ Game 1 is incomplete (item/hints missing). Please use `!setitem #1` and `!configureallhints #1`."
	case errors.Is(err, game.ErrRoundActive):
		return "A game is already running! Use `!guess` or `!endgame` to stop the current one."
	case errors.Is(err, game.ErrQueueEmpty):
		return "❌ The queue is empty. Please set up Game 1 using `!setitem`."
	case errors.Is(err, game.ErrNoActiveRound):
		return "❌ No game is currently active. Start one with `!start`."
	case errors.Is(err, game.ErrAllHintsRevealed):
		return fmt.Sprintf("❌ All **%d** hints have already been revealed for Game 1.", opts.RequiredHints)
	}
	return "⚠️ Something went wrong. Please try again."
}

// formatTimeRemaining renders d as "1h 5m"; under a minute is "a moment".
func formatTimeRemaining(d time.Duration) string {
	secs := int(d / time.Second)
	var parts []string
	if h := secs / 3600; h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m := secs % 3600 / 60; m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if len(parts) == 0 {
		return "a moment"
	}
	return strings.Join(parts, " ")
}

// setupProgress summarises what a queued round still needs.
func setupProgress(v game.RoundView) string {
	if v.Complete {
		return fmt.Sprintf("Game %d is fully configured.", v.Position)
	}
	var missing []string
	if v.ItemName == "" {
		missing = append(missing, "item (`!setitem`)")
	}
	set := 0
	for _, h := range v.Hints {
		if h != "" {
			set++
		}
	}
	if set < v.TotalHints {
		missing = append(missing, fmt.Sprintf("hints %d/%d (`!configureallhints`)", set, v.TotalHints))
	}
	return "Still missing: " + strings.Join(missing, ", ") + "."
}

func statusLabel(s game.Status) string {
	switch s {
	case game.StatusActive:
		return "🟢 ACTIVE"
	case game.StatusConfiguring:
		return "🛠️ CONFIGURING"
	}
	return "⚪ " + strings.ToUpper(string(s))
}

// mentionID strips Discord's mention wrapping ("<@123>", "<@!123>").
func mentionID(s string) string {
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	return strings.TrimSuffix(s, ">")
}
