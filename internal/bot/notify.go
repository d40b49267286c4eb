package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/robalobadob/itemguess/internal/config"
	"github.com/robalobadob/itemguess/internal/game"
)

// Presence lines shown under the bot's name.
const (
	presencePlaying = "Guess the item! (!guess)"
	presenceReady   = "Ready to start Game 1 (!start)"
	presenceSetup   = "Setting up the game (!setitem)"
	presenceStalled = "Game 1 setup needed (!setitem #1)"
)

// Announcer turns engine events into channel posts and presence updates.
// It is the engine's Notifier and holds no game state of its own.
type Announcer struct {
	s   session
	cfg *config.Config
	log zerolog.Logger
}

// NewAnnouncer builds the event publisher for the configured channels.
func NewAnnouncer(s session, cfg *config.Config, log zerolog.Logger) *Announcer {
	return &Announcer{s: s, cfg: cfg, log: log.With().Str("component", "announcer").Logger()}
}

// Notify implements game.Notifier.
func (a *Announcer) Notify(_ context.Context, ev game.Event) {
	switch ev.Kind {
	case game.EventRoundStarted:
		a.post(a.cfg.HintChannelID, fmt.Sprintf(
			"%s📢 **A new item guessing game has started!** (Game 1/%d in queue) Hints will be revealed every **%d minutes**.\n\n"+
				"**First Hint (1/%d):** _%s_\n\nStart guessing with `!guess <item name>`! (Cooldown: %d mins)",
			a.hintPings(), ev.QueueLen, ev.Interval, ev.TotalHints, ev.Hint.Text, int(a.cfg.GuessCooldown.Minutes())))
		a.presence(presencePlaying)

	case game.EventHintRevealed:
		format := "%s📢 **New Hint (%d/%d):** _%s_"
		if ev.Manual {
			format = "%s📢 **Manual Hint Reveal (Game 1 - %d/%d):** _%s_"
		}
		a.post(a.cfg.HintChannelID, fmt.Sprintf(format, a.hintPings(), ev.Hint.Number, ev.TotalHints, ev.Hint.Text))

	case game.EventRoundWon:
		msg := fmt.Sprintf("%s 🎉 **Congratulations, <@%s>!** You guessed the item: **%s**! You now have **%d** wins.",
			a.endPing(), ev.UserID, ev.ItemName, ev.Wins)
		a.post(winnerChannel(a.cfg), strings.TrimSpace(msg))
		a.presenceAfterEnd(ev.QueueLen)

	case game.EventRoundEnded:
		msg := fmt.Sprintf("%s 🚨 **The game ended without a winner.** The item was: **%s**.", a.endPing(), ev.ItemName)
		if ev.Cleared {
			msg += " The queue has been cleared."
		}
		a.post(winnerChannel(a.cfg), strings.TrimSpace(msg))
		a.presenceAfterEnd(ev.QueueLen)

	case game.EventQueueExhausted:
		a.presence(presenceSetup)

	case game.EventQueueStalled:
		a.log.Warn().Err(ev.StalledReason).Str("round", ev.RoundID).Msg("next game needs setup")
		a.presence(presenceStalled)
	}
}

func (a *Announcer) presenceAfterEnd(queueLen int) {
	if queueLen == 0 {
		a.presence(presenceSetup)
		return
	}
	a.presence(presenceReady)
}

// winnerChannel falls back to the hint channel when no winner channel is set.
func winnerChannel(cfg *config.Config) string {
	if cfg.WinnerChannelID != "" {
		return cfg.WinnerChannelID
	}
	return cfg.HintChannelID
}

func (a *Announcer) hintPings() string {
	var b strings.Builder
	for _, id := range a.cfg.HintPingRoleIDs {
		fmt.Fprintf(&b, "<@&%s> ", id)
	}
	return b.String()
}

func (a *Announcer) endPing() string {
	if a.cfg.GameEndPingRoleID == "" {
		return ""
	}
	return "<@&" + a.cfg.GameEndPingRoleID + ">"
}

func (a *Announcer) post(channelID, content string) {
	if channelID == "" {
		a.log.Warn().Msg("announcement channel not configured; message dropped")
		return
	}
	if _, err := a.s.ChannelMessageSend(channelID, content); err != nil {
		a.log.Error().Err(err).Str("channel", channelID).Msg("announcement failed")
	}
}

func (a *Announcer) presence(line string) {
	if err := a.s.UpdateGameStatus(0, line); err != nil {
		a.log.Warn().Err(err).Str("presence", line).Msg("presence update failed")
	}
}
