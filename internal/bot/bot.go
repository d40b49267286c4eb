// internal/bot/bot.go
//
// Discord adapter for the item-guessing game.
// Responsibilities:
//   - Own the gateway session and route "!" commands to the round engine.
//   - Decide where commands may run (DMs, the game category, the wins channel).
//   - Decide who may run admin commands (ADMIN_ROLE_IDS).
//
// Notes:
//   - Game rules live in internal/game; this package only parses, checks
//     permissions and formats replies.
//   - Announcements triggered by engine events are posted by Announcer.

package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/robalobadob/itemguess/internal/config"
	"github.com/robalobadob/itemguess/internal/game"
)

const prefix = "!"

// session is the subset of *discordgo.Session the bot uses.
type session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UpdateGameStatus(idle int, name string) error
}

// Engine is the part of *game.Engine driven by chat commands.
type Engine interface {
	Options() game.Options
	Configure(ctx context.Context, now time.Time, req game.ConfigureRequest) (game.ConfigureResult, error)
	Delete(ctx context.Context, now time.Time, pos int) (game.RoundView, error)
	Activate(ctx context.Context, now time.Time) (game.RoundView, error)
	SubmitGuess(ctx context.Context, user, text string, now time.Time) (game.GuessResult, error)
	RevealNextHint(ctx context.Context, now time.Time, manual bool) (game.Hint, error)
	ForceEnd(ctx context.Context, now time.Time, mode game.EndMode) (game.EndResult, error)
	Skip(ctx context.Context, now time.Time) (game.EndResult, error)
	Status(now time.Time) game.Snapshot
	RoundAt(pos int, now time.Time) (game.RoundView, error)
	Leaderboard(limit int) []game.Standing
	Wins(user string) int
	ResetWins(ctx context.Context, user string) int
}

// Bot routes chat commands to the engine.
type Bot struct {
	s    session
	eng  Engine
	cfg  *config.Config
	log  zerolog.Logger
	now  func() time.Time
	cmds map[string]command

	confirmWindow time.Duration

	mu      sync.Mutex
	parents map[string]string // channel ID → parent category ID
	pending map[string]*confirmation
}

// New wires a bot around an existing session and engine.
func New(s session, eng Engine, cfg *config.Config, log zerolog.Logger) *Bot {
	b := &Bot{
		s:             s,
		eng:           eng,
		cfg:           cfg,
		log:           log.With().Str("component", "bot").Logger(),
		now:           time.Now,
		confirmWindow: 15 * time.Second,
		parents:       map[string]string{},
		pending:       map[string]*confirmation{},
	}
	b.cmds = b.commands()
	return b
}

// NewSession creates a gateway session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMembers
	return dg, nil
}

// Run registers the message handler, opens the gateway and blocks until ctx
// is cancelled.
func (b *Bot) Run(ctx context.Context, dg *discordgo.Session) error {
	remove := dg.AddHandler(b.onMessageCreate)
	defer remove()
	if err := dg.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	b.log.Info().Msg("connected to discord")
	b.syncPresence()

	<-ctx.Done()
	b.log.Info().Msg("disconnecting from discord")
	return dg.Close()
}

// syncPresence sets the presence line from the current queue.
func (b *Bot) syncPresence() {
	st := b.eng.Status(b.now())
	line := presenceSetup
	switch {
	case st.Active:
		line = presencePlaying
	case len(st.Queue) > 0 && st.Queue[0].Complete:
		line = presenceReady
	}
	if err := b.s.UpdateGameStatus(0, line); err != nil {
		b.log.Warn().Err(err).Msg("presence update failed")
	}
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx := context.Background()
	if b.confirm(ctx, m) {
		return
	}
	if !strings.HasPrefix(m.Content, prefix) {
		return
	}
	b.dispatch(ctx, m)
}

// ------------------------------ permissions ---------------------------------

// commandAllowedIn reports whether cmd may run where m was posted, and the
// refusal to show otherwise.
func (b *Bot) commandAllowedIn(m *discordgo.MessageCreate, cmd string) (bool, string) {
	if m.GuildID == "" {
		return true, ""
	}
	if b.cfg.WinsChannelID != "" && m.ChannelID == b.cfg.WinsChannelID {
		switch cmd {
		case "wins", "mywins", "leaderboard", "lbc", "top", "status":
			return true, ""
		}
		return false, "This channel is dedicated only to the leaderboard (`!wins`, `!mywins`)."
	}
	if b.cfg.TargetCategoryID == "" || b.parentOf(m.ChannelID) == b.cfg.TargetCategoryID {
		return true, ""
	}
	return false, "❌ This command can only be used in the designated game category or wins channel."
}

// parentOf returns a channel's category, caching lookups.
func (b *Bot) parentOf(channelID string) string {
	b.mu.Lock()
	parent, ok := b.parents[channelID]
	b.mu.Unlock()
	if ok {
		return parent
	}
	ch, err := b.s.Channel(channelID)
	if err != nil {
		b.log.Warn().Err(err).Str("channel", channelID).Msg("channel lookup failed")
		return ""
	}
	b.mu.Lock()
	b.parents[channelID] = ch.ParentID
	b.mu.Unlock()
	return ch.ParentID
}

// isAdmin reports whether the author holds one of the admin roles. Admin
// commands require a guild.
func (b *Bot) isAdmin(m *discordgo.MessageCreate) bool {
	if m.GuildID == "" {
		return false
	}
	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	} else {
		mem, err := b.s.GuildMember(m.GuildID, m.Author.ID)
		if err != nil {
			b.log.Warn().Err(err).Str("user", m.Author.ID).Msg("member lookup failed")
			return false
		}
		roles = mem.Roles
	}
	for _, r := range roles {
		for _, admin := range b.cfg.AdminRoleIDs {
			if r == admin {
				return true
			}
		}
	}
	return false
}

// ------------------------------- replies ------------------------------------

func (b *Bot) reply(m *discordgo.MessageCreate, format string, args ...any) {
	content := format
	if len(args) > 0 {
		content = fmt.Sprintf(format, args...)
	}
	if _, err := b.s.ChannelMessageSend(m.ChannelID, content); err != nil {
		b.log.Error().Err(err).Str("channel", m.ChannelID).Msg("reply failed")
	}
}

func (b *Bot) replyEmbed(m *discordgo.MessageCreate, e *discordgo.MessageEmbed) {
	if _, err := b.s.ChannelMessageSendEmbed(m.ChannelID, e); err != nil {
		b.log.Error().Err(err).Str("channel", m.ChannelID).Msg("embed reply failed")
	}
}
