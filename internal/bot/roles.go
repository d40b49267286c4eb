package bot

import (
	"errors"
	"fmt"
	"slices"

	"github.com/robalobadob/itemguess/internal/game"
)

// applyRewards brings a member's reward roles in line with their win count:
// the highest reached tier is granted, every other tier role is revoked.
// A failed grant never undoes the win; callers only log the error.
func (b *Bot) applyRewards(guildID, userID string, wins int) error {
	if len(b.cfg.WinnerRoles) == 0 {
		return nil
	}
	if guildID == "" {
		return fmt.Errorf("%w: no guild for user %s", game.ErrRewardGrantFailed, userID)
	}
	mem, err := b.s.GuildMember(guildID, userID)
	if err != nil {
		return fmt.Errorf("%w: member %s: %w", game.ErrRewardGrantFailed, userID, err)
	}

	change := b.cfg.WinnerRoles.Plan(wins, mem.Roles)
	var errs []error
	if change.Grant != "" && !slices.Contains(mem.Roles, change.Grant) {
		if err := b.s.GuildMemberRoleAdd(guildID, userID, change.Grant); err != nil {
			errs = append(errs, fmt.Errorf("grant %s: %w", change.Grant, err))
		} else {
			b.log.Info().Str("user", userID).Str("role", change.Grant).Int("wins", wins).Msg("reward role granted")
			b.dmReward(guildID, userID, change.Grant, wins)
		}
	}
	for _, role := range change.Revoke {
		if err := b.s.GuildMemberRoleRemove(guildID, userID, role); err != nil {
			errs = append(errs, fmt.Errorf("revoke %s: %w", role, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", game.ErrRewardGrantFailed, errors.Join(errs...))
	}
	return nil
}

// dmReward tells the winner about a newly granted role. Users with closed
// DMs are skipped.
func (b *Bot) dmReward(guildID, userID, roleID string, wins int) {
	ch, err := b.s.UserChannelCreate(userID)
	if err != nil {
		b.log.Debug().Err(err).Str("user", userID).Msg("cannot open DM")
		return
	}
	msg := fmt.Sprintf("You've reached **%d** wins and earned the role **%s**!", wins, b.roleName(guildID, roleID))
	if _, err := b.s.ChannelMessageSend(ch.ID, msg); err != nil {
		b.log.Debug().Err(err).Str("user", userID).Msg("reward DM failed")
	}
}

func (b *Bot) roleName(guildID, roleID string) string {
	roles, err := b.s.GuildRoles(guildID)
	if err != nil {
		return roleID
	}
	for _, r := range roles {
		if r.ID == roleID {
			return r.Name
		}
	}
	return roleID
}

// guildOf returns the guild a message belongs to. Guesses sent by DM are
// credited in the guild that owns the hint channel.
func (b *Bot) guildOf(guildID string) string {
	if guildID != "" || b.cfg.HintChannelID == "" {
		return guildID
	}
	ch, err := b.s.Channel(b.cfg.HintChannelID)
	if err != nil {
		b.log.Warn().Err(err).Msg("hint channel lookup failed")
		return ""
	}
	return ch.GuildID
}
