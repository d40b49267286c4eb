package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/discordgo"

	"github.com/robalobadob/itemguess/internal/game"
)

const confirmPhrase = "CONFIRM DELETE ALL"

type command struct {
	admin bool
	usage string
	help  string
	alias bool // hidden from !help
	run   func(ctx context.Context, c *call)
}

// call is one parsed command message. args holds the words of the first line
// after the command name; lines holds the remaining non-blank lines.
type call struct {
	m     *discordgo.MessageCreate
	name  string
	args  []string
	text  string // first line after the name, inner whitespace kept
	lines []string
}

func parseCall(m *discordgo.MessageCreate) *call {
	first, rest, _ := strings.Cut(strings.TrimPrefix(m.Content, prefix), "\n")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return nil
	}
	c := &call{m: m, name: strings.ToLower(fields[0]), args: fields[1:], text: trailing(first, 1)}
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "`"))
		if line != "" {
			c.lines = append(c.lines, line)
		}
	}
	return c
}

func (b *Bot) commands() map[string]command {
	leaderboard := command{usage: "!leaderboard", help: "Shows the top 10 guessers.", run: b.cmdLeaderboard}
	alias := leaderboard
	alias.alias = true
	return map[string]command{
		"setitem":           {admin: true, usage: "!setitem [#pos] <item name>", help: "Sets the item for a game.", run: b.cmdSetItem},
		"sethint":           {admin: true, usage: "!sethint [#pos] <n> <text>", help: "Sets one hint for a game.", run: b.cmdSetHint},
		"configureallhints": {admin: true, usage: "!configureallhints [#pos] + one hint per line", help: "Sets every hint for a game at once.", run: b.cmdConfigureAllHints},
		"sethinttiming":     {admin: true, usage: "!sethinttiming [#pos] <minutes>", help: "Sets the hint interval for a game.", run: b.cmdSetHintTiming},
		"start":             {admin: true, usage: "!start", help: "Starts Game 1.", run: b.cmdStart},
		"revealhint":        {admin: true, usage: "!revealhint", help: "Reveals the next hint now and resets the timer.", run: b.cmdRevealHint},
		"endgame":           {admin: true, usage: "!endgame", help: "Ends the active game and shifts the queue.", run: b.cmdEndGame},
		"skip":              {admin: true, usage: "!skip", help: "Ends the active game and starts the next one.", run: b.cmdSkip},
		"stop":              {admin: true, usage: "!stop", help: "Ends the active game and clears the queue.", run: b.cmdStop},
		"delete":            {admin: true, usage: "!delete <pos>", help: "Deletes a queued game.", run: b.cmdDelete},
		"deletequeue":       {admin: true, usage: "!deletequeue", help: "Clears the whole queue (asks for confirmation).", run: b.cmdDeleteQueue},
		"status":            {admin: true, usage: "!status [#pos]", help: "Shows the queue or one game in detail.", run: b.cmdStatus},
		"resetwins":         {admin: true, usage: "!resetwins @user", help: "Resets a user's wins.", run: b.cmdResetWins},
		"guess":             {usage: "!guess <item name>", help: "Guesses the item of the active game.", run: b.cmdGuess},
		"leaderboard":       leaderboard,
		"lbc":               alias,
		"top":               alias,
		"wins":              {usage: "!wins [@user]", help: "Shows a user's wins, or the leaderboard.", run: b.cmdWins},
		"mywins":            {usage: "!mywins", help: "Shows your wins.", run: b.cmdMyWins},
		"help":              {usage: "!help", help: "Lists the commands.", run: b.cmdHelp},
	}
}

func (b *Bot) dispatch(ctx context.Context, m *discordgo.MessageCreate) {
	c := parseCall(m)
	if c == nil {
		return
	}
	cmd, ok := b.cmds[c.name]
	if !ok {
		return
	}
	if ok, why := b.commandAllowedIn(m, c.name); !ok {
		b.reply(m, why)
		return
	}
	if cmd.admin && !b.isAdmin(m) {
		b.reply(m, "❌ You do not have permission to use this command.")
		return
	}
	b.log.Debug().Str("cmd", c.name).Str("user", m.Author.ID).Msg("command")
	cmd.run(ctx, c)
}

func (b *Bot) usage(c *call) {
	b.reply(c.m, "Usage: `%s`", b.cmds[c.name].usage)
}

func (b *Bot) fail(c *call, err error) {
	b.reply(c.m, b.describe(err))
}

var errBadPosition = errors.New("bad position token")

// takePosition consumes an optional leading "#N" token. 0 selects the
// engine's default slot.
func takePosition(args []string) (int, []string, error) {
	if len(args) == 0 || !strings.HasPrefix(args[0], "#") {
		return 0, args, nil
	}
	n, err := strconv.Atoi(args[0][1:])
	if err != nil || n < 1 {
		return 0, args, errBadPosition
	}
	return n, args[1:], nil
}

// trailing drops the first n whitespace-separated fields of s and trims the
// remainder at both ends.
func trailing(s string, n int) string {
	s = strings.TrimSpace(s)
	for i := 0; i < n && s != ""; i++ {
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		s = strings.TrimLeftFunc(s[end:], unicode.IsSpace)
	}
	return s
}

// parsePosition reads a required position written as "N" or "#N".
func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || n < 1 {
		return 0, errBadPosition
	}
	return n, nil
}

// ------------------------------- setup --------------------------------------

func (b *Bot) configure(ctx context.Context, c *call, req game.ConfigureRequest) (game.ConfigureResult, bool) {
	res, err := b.eng.Configure(ctx, b.now(), req)
	if err != nil {
		b.fail(c, err)
		return res, false
	}
	if res.Position == 1 && res.Round.Complete && res.Round.Status == game.StatusConfiguring {
		if err := b.s.UpdateGameStatus(0, presenceReady); err != nil {
			b.log.Warn().Err(err).Msg("presence update failed")
		}
	}
	return res, true
}

func (b *Bot) cmdSetItem(ctx context.Context, c *call) {
	pos, rest, err := takePosition(c.args)
	if err != nil || len(rest) == 0 {
		b.usage(c)
		return
	}
	item := trailing(c.text, len(c.args)-len(rest))
	res, ok := b.configure(ctx, c, game.ConfigureRequest{Position: pos, Item: &item})
	if !ok {
		return
	}
	b.reply(c.m, "✅ Item set for **Game %d** to: **%s**. %s", res.Position, res.Round.ItemName, setupProgress(res.Round))
}

func (b *Bot) cmdSetHint(ctx context.Context, c *call) {
	pos, rest, err := takePosition(c.args)
	if err != nil || len(rest) < 2 {
		b.usage(c)
		return
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil {
		b.usage(c)
		return
	}
	res, ok := b.configure(ctx, c, game.ConfigureRequest{Position: pos, HintIndex: n, HintText: trailing(c.text, len(c.args)-len(rest)+1)})
	if !ok {
		return
	}
	b.reply(c.m, "✅ Hint **%d** set for **Game %d**. %s", n, res.Position, setupProgress(res.Round))
}

func (b *Bot) cmdConfigureAllHints(ctx context.Context, c *call) {
	pos, rest, err := takePosition(c.args)
	if err != nil {
		b.usage(c)
		return
	}
	hints := c.lines
	if len(hints) == 0 && len(rest) > 0 {
		// Single-line form: hints separated by "|".
		for _, h := range strings.Split(trailing(c.text, len(c.args)-len(rest)), "|") {
			if h = strings.TrimSpace(h); h != "" {
				hints = append(hints, h)
			}
		}
	}
	if n := b.eng.Options().RequiredHints; len(hints) != n {
		b.reply(c.m, "❌ Error: You must provide exactly **%d** hints, one per line. You provided %d.", n, len(hints))
		return
	}
	res, ok := b.configure(ctx, c, game.ConfigureRequest{Position: pos, AllHints: hints})
	if !ok {
		return
	}
	b.reply(c.m, "✅ Successfully set **all %d hints** for **Game %d** at once! %s", len(hints), res.Position, setupProgress(res.Round))
}

func (b *Bot) cmdSetHintTiming(ctx context.Context, c *call) {
	pos, rest, err := takePosition(c.args)
	if err != nil || len(rest) != 1 {
		b.usage(c)
		return
	}
	minutes, err := strconv.Atoi(rest[0])
	if err != nil {
		b.usage(c)
		return
	}
	res, ok := b.configure(ctx, c, game.ConfigureRequest{Position: pos, Interval: &minutes})
	if !ok {
		return
	}
	b.reply(c.m, "✅ Hint revealing interval for **Game %d** set to **%d minutes**.", res.Position, res.Round.IntervalMinutes)
}

func (b *Bot) cmdDelete(ctx context.Context, c *call) {
	if len(c.args) != 1 {
		b.usage(c)
		return
	}
	pos, err := parsePosition(c.args[0])
	if err != nil {
		b.usage(c)
		return
	}
	v, err := b.eng.Delete(ctx, b.now(), pos)
	if err != nil {
		b.fail(c, err)
		return
	}
	b.reply(c.m, "✅ **Game %d** (Item: **%s**) has been deleted. The queue has been shifted.", pos, orNA(v.ItemName))
	if pos == 1 {
		b.syncPresence()
	}
}

// ------------------------------ lifecycle -----------------------------------

func (b *Bot) cmdStart(ctx context.Context, c *call) {
	if _, err := b.eng.Activate(ctx, b.now()); err != nil {
		b.fail(c, err)
		return
	}
	b.reply(c.m, "✅ Game 1 has started! The first hint has been sent to <#%s>.", b.cfg.HintChannelID)
}

func (b *Bot) cmdRevealHint(ctx context.Context, c *call) {
	h, err := b.eng.RevealNextHint(ctx, b.now(), true)
	if err != nil {
		b.fail(c, err)
		return
	}
	b.reply(c.m, "✅ Hint **%d** has been manually revealed in <#%s>. The timer has been reset.", h.Number, b.cfg.HintChannelID)
}

func (b *Bot) cmdEndGame(ctx context.Context, c *call) {
	res, err := b.eng.ForceEnd(ctx, b.now(), game.EndAdvance)
	if err != nil {
		b.fail(c, err)
		return
	}
	b.reply(c.m, "🚨 **Active Game (Game 1) Forcefully Ended.** Item was: **%s**. %s", orNA(res.Ended.ItemName), b.nextLine(res))
}

func (b *Bot) cmdSkip(ctx context.Context, c *call) {
	res, err := b.eng.Skip(ctx, b.now())
	if err != nil {
		b.fail(c, err)
		return
	}
	b.reply(c.m, "⏭️ **Game skipped.** Item was: **%s**. %s", orNA(res.Ended.ItemName), b.nextLine(res))
}

func (b *Bot) cmdStop(ctx context.Context, c *call) {
	res, err := b.eng.ForceEnd(ctx, b.now(), game.EndStop)
	if err != nil {
		b.fail(c, err)
		return
	}
	b.reply(c.m, "🛑 **Game stopped.** %d game(s) removed from the queue and all cooldowns cleared.", res.Removed)
}

// nextLine explains what happened to the queue after a forced end.
func (b *Bot) nextLine(res game.EndResult) string {
	switch {
	case res.Next != nil:
		return "🚀 **Queue shifted.** The new Game 1 has started."
	case errors.Is(res.NextErr, game.ErrQueueEmpty):
		return "Queue is now empty. Please set up a new game using `!setitem`."
	case res.NextErr != nil:
		return "🚀 **Queue shifted**, but the new Game 1 could not start. " + b.describe(res.NextErr)
	}
	return "🚀 **Queue shifted.** Use `!start` to begin the new Game 1."
}

// ----------------------------- deletequeue ----------------------------------

type confirmation struct {
	promptID string
	timer    *time.Timer
}

func confirmKey(m *discordgo.MessageCreate) string {
	return m.ChannelID + "/" + m.Author.ID
}

func (b *Bot) cmdDeleteQueue(_ context.Context, c *call) {
	n := len(b.eng.Status(b.now()).Queue)
	if n == 0 {
		b.reply(c.m, "The game queue is already empty.")
		return
	}
	prompt, err := b.s.ChannelMessageSendComplex(c.m.ChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("Please type `%s` in this channel to proceed.", confirmPhrase),
		Embed: &discordgo.MessageEmbed{
			Title:       "⚠️ Confirmation Required",
			Description: fmt.Sprintf("Are you sure you want to delete all **%d** games from the queue? This action cannot be undone.", n),
			Color:       0xE74C3C,
		},
	})
	if err != nil {
		b.log.Error().Err(err).Msg("confirmation prompt failed")
		return
	}

	key := confirmKey(c.m)
	p := &confirmation{promptID: prompt.ID}
	b.mu.Lock()
	if old := b.pending[key]; old != nil {
		old.timer.Stop()
	}
	b.pending[key] = p
	p.timer = time.AfterFunc(b.confirmWindow, func() { b.expire(key, p, c.m) })
	b.mu.Unlock()
}

// confirm consumes a pending deletequeue confirmation. It reports whether m
// was the confirmation.
func (b *Bot) confirm(ctx context.Context, m *discordgo.MessageCreate) bool {
	if !strings.EqualFold(strings.TrimSpace(m.Content), confirmPhrase) {
		return false
	}
	key := confirmKey(m)
	b.mu.Lock()
	p := b.pending[key]
	delete(b.pending, key)
	b.mu.Unlock()
	if p == nil {
		return false
	}
	p.timer.Stop()
	b.deletePrompt(m.ChannelID, p.promptID)

	if _, err := b.eng.ForceEnd(ctx, b.now(), game.EndStop); err != nil {
		b.reply(m, b.describe(err))
		return true
	}
	b.reply(m, "🗑️ **SUCCESS:** The entire game queue has been cleared.")
	return true
}

func (b *Bot) expire(key string, p *confirmation, m *discordgo.MessageCreate) {
	b.mu.Lock()
	if b.pending[key] != p {
		b.mu.Unlock()
		return
	}
	delete(b.pending, key)
	b.mu.Unlock()

	b.deletePrompt(m.ChannelID, p.promptID)
	b.reply(m, "🚫 Queue deletion cancelled due to timeout.")
}

func (b *Bot) deletePrompt(channelID, messageID string) {
	if err := b.s.ChannelMessageDelete(channelID, messageID); err != nil {
		b.log.Debug().Err(err).Msg("confirmation prompt cleanup failed")
	}
}

// ------------------------------- status -------------------------------------

func (b *Bot) cmdStatus(_ context.Context, c *call) {
	now := b.now()
	if len(c.args) > 0 {
		pos, err := parsePosition(c.args[0])
		if err != nil {
			b.usage(c)
			return
		}
		v, err := b.eng.RoundAt(pos, now)
		if err != nil {
			b.reply(c.m, "❌ Game %d is not set up in the queue.", pos)
			return
		}
		b.replyEmbed(c.m, roundEmbed(v, now))
		return
	}

	st := b.eng.Status(now)
	if len(st.Queue) == 0 {
		b.reply(c.m, "The game queue is empty. **0/%d** games configured.", st.MaxQueueSize)
		return
	}
	item := "N/A"
	if st.Active {
		item = st.Queue[0].ItemName
	}
	e := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📋 Game Queue Status (%d/%d)", len(st.Queue), st.MaxQueueSize),
		Description: fmt.Sprintf("Active Status: **%s**\nItem: **%s**", statusLabel(st.Queue[0].Status), item),
		Color:       0x3498DB,
	}
	for _, v := range st.Queue {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Game %d", v.Position),
			Value: roundSummary(v, now),
		})
	}
	b.replyEmbed(c.m, e)
}

func roundSummary(v game.RoundView, now time.Time) string {
	s := fmt.Sprintf("%s · Item: **%s** · Hints revealed %d/%d · Every %d min",
		statusLabel(v.Status), orNA(v.ItemName), len(v.HintsRevealed), v.TotalHints, v.IntervalMinutes)
	if v.NextRevealAt != nil {
		s += " · Next hint in " + formatTimeRemaining(v.NextRevealAt.Sub(now))
	}
	if v.Status == game.StatusConfiguring {
		s += "\n" + setupProgress(v)
	}
	return s
}

func roundEmbed(v game.RoundView, now time.Time) *discordgo.MessageEmbed {
	revealed := len(v.HintsRevealed)
	var hints strings.Builder
	for i, text := range v.Hints {
		mark := "🔒"
		switch {
		case text == "":
			mark, text = "❔", "(not set)"
		case i < revealed:
			mark = "✅"
		}
		fmt.Fprintf(&hints, "%s %d. %s\n", mark, i+1, text)
	}
	e := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🔎 Game %d Detailed Status", v.Position),
		Description: fmt.Sprintf("Status: **%s**", statusLabel(v.Status)),
		Color:       0x9B59B6,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Item", Value: orNA(v.ItemName), Inline: true},
			{Name: "Interval", Value: fmt.Sprintf("%d minutes", v.IntervalMinutes), Inline: true},
			{Name: "Hints", Value: hints.String()},
		},
	}
	if v.NextRevealAt != nil {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "Next hint in " + formatTimeRemaining(v.NextRevealAt.Sub(now))}
	}
	return e
}

// ------------------------------- players ------------------------------------

func (b *Bot) cmdGuess(ctx context.Context, c *call) {
	text := c.text
	if text == "" {
		b.usage(c)
		return
	}
	user := c.m.Author.ID
	res, err := b.eng.SubmitGuess(ctx, user, text, b.now())
	if err != nil {
		b.fail(c, err)
		return
	}
	if !res.Correct {
		b.reply(c.m, "❌ <@%s>, **%s** is not the item. You can guess again in **%s**.",
			user, text, formatTimeRemaining(b.eng.Options().Cooldown))
		return
	}
	if c.m.ChannelID != winnerChannel(b.cfg) {
		b.reply(c.m, "🎉 **Correct, <@%s>!** The item was **%s**.", user, res.Answer)
	}
	if err := b.applyRewards(b.guildOf(c.m.GuildID), user, res.Wins); err != nil {
		b.log.Error().Err(err).Str("user", user).Msg("reward roles not applied")
	}
}

func (b *Bot) cmdLeaderboard(_ context.Context, c *call) {
	rows := b.eng.Leaderboard(10)
	if len(rows) == 0 {
		b.reply(c.m, "No one has won a game yet.")
		return
	}
	var desc strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&desc, "**%d.** <@%s> · **%d** wins\n", r.Rank, r.UserID, r.Wins)
	}
	b.replyEmbed(c.m, &discordgo.MessageEmbed{
		Title:       "🏆 Top Guessers",
		Description: desc.String(),
		Color:       0xF1C40F,
	})
}

func (b *Bot) cmdWins(ctx context.Context, c *call) {
	if len(c.m.Mentions) == 0 && len(c.args) == 0 {
		b.cmdLeaderboard(ctx, c)
		return
	}
	var id string
	if len(c.m.Mentions) > 0 {
		id = c.m.Mentions[0].ID
	} else {
		id = mentionID(c.args[0])
	}
	b.reply(c.m, "<@%s> has **%d** wins.", id, b.eng.Wins(id))
}

func (b *Bot) cmdMyWins(_ context.Context, c *call) {
	b.reply(c.m, "<@%s>, you have **%d** wins.", c.m.Author.ID, b.eng.Wins(c.m.Author.ID))
}

func (b *Bot) cmdResetWins(ctx context.Context, c *call) {
	var id string
	switch {
	case len(c.m.Mentions) > 0:
		id = c.m.Mentions[0].ID
	case len(c.args) == 1:
		id = mentionID(c.args[0])
	default:
		b.usage(c)
		return
	}
	prev := b.eng.ResetWins(ctx, id)
	if err := b.applyRewards(c.m.GuildID, id, 0); err != nil {
		b.log.Error().Err(err).Str("user", id).Msg("reward roles not revoked")
	}
	b.reply(c.m, "✅ Wins for <@%s> reset (previously **%d**).", id, prev)
}

func (b *Bot) cmdHelp(_ context.Context, c *call) {
	names := make([]string, 0, len(b.cmds))
	for name, cmd := range b.cmds {
		if !cmd.alias {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var players, admins strings.Builder
	for _, name := range names {
		cmd := b.cmds[name]
		line := fmt.Sprintf("`%s` %s\n", cmd.usage, cmd.help)
		if cmd.admin {
			admins.WriteString(line)
		} else {
			players.WriteString(line)
		}
	}
	b.replyEmbed(c.m, &discordgo.MessageEmbed{
		Title: "❓ Item Guessing Commands",
		Color: 0x2ECC71,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Everyone", Value: players.String()},
			{Name: "Admins", Value: admins.String()},
		},
	})
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
