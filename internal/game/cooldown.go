package game

import "time"

// cooldowns tracks the last accepted guess per user for the current round.
type cooldowns map[string]time.Time

// check returns the remaining wait for user at now, or zero if the user may guess.
func (c cooldowns) check(user string, now time.Time, window time.Duration) (time.Duration, time.Time) {
	last, ok := c[user]
	if !ok {
		return 0, time.Time{}
	}
	if elapsed := now.Sub(last); elapsed < window {
		return window - elapsed, last
	}
	return 0, last
}

// stamp records an accepted attempt.
func (c cooldowns) stamp(user string, now time.Time) { c[user] = now }

// reset drops every entry; called when a new round activates.
func (c cooldowns) reset() {
	for k := range c {
		delete(c, k)
	}
}
