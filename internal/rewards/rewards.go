// internal/rewards/rewards.go
//
// Reward policy for cumulative wins.
// Responsibilities:
//   - Hold the static threshold → role table (e.g. 1 win → R1, 5 wins → R2).
//   - Pick the single highest tier a win count has reached.
//   - Plan which held tier roles must be revoked once a new tier is granted.
//
// Notes:
//   - Everything here is side-effect free; applying grants/revokes is the
//     caller's job (see internal/bot).

package rewards

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tier is one reward level: holding at least MinWins wins earns RoleID.
type Tier struct {
	MinWins int    `json:"minWins"`
	RoleID  string `json:"roleId"`
}

// Table is an ascending list of tiers keyed by MinWins.
type Table []Tier

// Change is the role mutation a win implies.
// Grant is empty when no tier has been reached yet.
type Change struct {
	Grant  string   `json:"grant,omitempty"`
	Revoke []string `json:"revoke,omitempty"`
}

// NewTable sorts tiers by threshold and rejects duplicates or non-positive thresholds.
func NewTable(tiers ...Tier) (Table, error) {
	t := make(Table, len(tiers))
	copy(t, tiers)
	sort.Slice(t, func(i, j int) bool { return t[i].MinWins < t[j].MinWins })
	for i, tier := range t {
		if tier.MinWins <= 0 {
			return nil, fmt.Errorf("tier threshold must be positive, got %d", tier.MinWins)
		}
		if strings.TrimSpace(tier.RoleID) == "" {
			return nil, fmt.Errorf("tier %d has no role", tier.MinWins)
		}
		if i > 0 && t[i-1].MinWins == tier.MinWins {
			return nil, fmt.Errorf("duplicate tier threshold %d", tier.MinWins)
		}
	}
	return t, nil
}

// ParseTable reads "threshold:roleID" pairs separated by commas,
// e.g. "1:1441693698776764486,5:1441693984266129469".
// An empty string yields an empty table.
func ParseTable(s string) (Table, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Table{}, nil
	}
	var tiers []Tier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			return nil, errors.New("tier must look like threshold:roleID, got " + strconv.Quote(part))
		}
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("tier threshold %q: %w", k, err)
		}
		tiers = append(tiers, Tier{MinWins: n, RoleID: strings.TrimSpace(v)})
	}
	return NewTable(tiers...)
}

// TierFor scans thresholds from highest to lowest and returns the first one
// that wins has reached.
func (t Table) TierFor(wins int) (Tier, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if wins >= t[i].MinWins {
			return t[i], true
		}
	}
	return Tier{}, false
}

// Has reports whether roleID belongs to any tier.
func (t Table) Has(roleID string) bool {
	for _, tier := range t {
		if tier.RoleID == roleID {
			return true
		}
	}
	return false
}

// Plan computes the grant for wins and the set of held tier roles to revoke.
// held may contain unrelated roles; only roles from the table are revoked.
func (t Table) Plan(wins int, held []string) Change {
	var c Change
	tier, ok := t.TierFor(wins)
	if ok {
		c.Grant = tier.RoleID
	}
	seen := make(map[string]struct{}, len(held))
	for _, id := range held {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if id != c.Grant && t.Has(id) {
			c.Revoke = append(c.Revoke, id)
		}
	}
	return c
}
