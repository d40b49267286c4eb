// internal/store/codec.go
//
// JSON schema for the two persisted documents.
//
// Win ledger:   { "<user id>": <wins>, ... }
// Round state:  the head round mirrored at top level (is_active, item_name,
//               hints, hints_revealed, last_hint_reveal_time,
//               hint_interval_minutes), every queued round under "queue",
//               and guess cooldown stamps under "last_guess_time".
//
// Notes:
//   - Hint maps are keyed by strings on disk and by ints in memory.
//   - Documents written by the earlier single-file bot (game_queue,
//     hints_storage, *_iso timestamps, naive local times) are accepted on load.
//   - Any parse failure is reported as game.ErrPersistenceCorrupt.

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/robalobadob/itemguess/internal/game"
)

type hintRecord struct {
	Number int    `json:"hint_number"`
	Text   string `json:"text"`
}

type roundRecord struct {
	ID                  string            `json:"id,omitempty"`
	Status              string            `json:"status,omitempty"`
	ItemName            *string           `json:"item_name"`
	Hints               map[string]string `json:"hints"`
	HintsRevealed       []hintRecord      `json:"hints_revealed"`
	LastHintRevealTime  *string           `json:"last_hint_reveal_time"`
	HintIntervalMinutes int               `json:"hint_interval_minutes"`

	// Field names used by the legacy queue format.
	LegacyHints    map[string]string `json:"hints_storage,omitempty"`
	LegacyInterval int               `json:"hint_timing_minutes,omitempty"`
	LegacyReveal   *string           `json:"last_hint_reveal_time_iso,omitempty"`
	LegacyActive   bool              `json:"is_game_active,omitempty"`
}

type stateDocument struct {
	IsActive            bool              `json:"is_active"`
	ItemName            *string           `json:"item_name"`
	Hints               map[string]string `json:"hints"`
	HintsRevealed       []hintRecord      `json:"hints_revealed"`
	LastHintRevealTime  *string           `json:"last_hint_reveal_time"`
	HintIntervalMinutes int               `json:"hint_interval_minutes"`
	Queue               []roundRecord     `json:"queue"`
	LastGuessTime       map[string]string `json:"last_guess_time"`

	LegacyQueue []roundRecord `json:"game_queue,omitempty"`
}

// naiveLayout is the timestamp layout of timezone-less ISO strings; they are
// read as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), game.ErrPersistenceCorrupt)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, corrupt("timestamp %q", s)
	}
	return t, nil
}

func encodeHints(in map[int]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strconv.Itoa(k)] = v
	}
	return out
}

func decodeHints(in map[string]string) (map[int]string, error) {
	out := make(map[int]string, len(in))
	for k, v := range in {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, corrupt("hint key %q", k)
		}
		out[n] = v
	}
	return out, nil
}

func encodeRound(r game.Round) roundRecord {
	rec := roundRecord{
		ID:                  r.ID,
		Status:              string(r.Status),
		Hints:               encodeHints(r.Hints),
		HintsRevealed:       make([]hintRecord, 0, len(r.HintsRevealed)),
		LastHintRevealTime:  formatTime(r.LastRevealAt),
		HintIntervalMinutes: r.IntervalMinutes,
	}
	if r.ItemName != "" {
		item := r.ItemName
		rec.ItemName = &item
	}
	for _, h := range r.HintsRevealed {
		rec.HintsRevealed = append(rec.HintsRevealed, hintRecord{Number: h.Number, Text: h.Text})
	}
	return rec
}

func decodeRound(rec roundRecord) (game.Round, error) {
	hints := rec.Hints
	if hints == nil {
		hints = rec.LegacyHints
	}
	decoded, err := decodeHints(hints)
	if err != nil {
		return game.Round{}, err
	}
	r := game.Round{
		ID:              rec.ID,
		Hints:           decoded,
		IntervalMinutes: rec.HintIntervalMinutes,
		Status:          game.Status(rec.Status),
	}
	if r.IntervalMinutes == 0 {
		r.IntervalMinutes = rec.LegacyInterval
	}
	if rec.ItemName != nil {
		r.ItemName = *rec.ItemName
	}
	if r.Status == "" {
		r.Status = game.StatusConfiguring
		if rec.LegacyActive {
			r.Status = game.StatusActive
		}
	}
	for _, h := range rec.HintsRevealed {
		r.HintsRevealed = append(r.HintsRevealed, game.Hint{Number: h.Number, Text: h.Text})
	}
	reveal := rec.LastHintRevealTime
	if reveal == nil {
		reveal = rec.LegacyReveal
	}
	if reveal != nil && *reveal != "" {
		t, err := parseTime(*reveal)
		if err != nil {
			return game.Round{}, err
		}
		r.LastRevealAt = &t
	}
	return r, nil
}

// EncodeState renders the round state document.
func EncodeState(s game.State) ([]byte, error) {
	doc := stateDocument{
		Hints:         map[string]string{},
		HintsRevealed: []hintRecord{},
		Queue:         make([]roundRecord, 0, len(s.Queue)),
		LastGuessTime: make(map[string]string, len(s.Cooldowns)),
	}
	for _, r := range s.Queue {
		doc.Queue = append(doc.Queue, encodeRound(r))
	}
	if len(doc.Queue) > 0 {
		head := doc.Queue[0]
		doc.IsActive = head.Status == string(game.StatusActive)
		doc.ItemName = head.ItemName
		doc.Hints = head.Hints
		doc.HintsRevealed = head.HintsRevealed
		doc.LastHintRevealTime = head.LastHintRevealTime
		doc.HintIntervalMinutes = head.HintIntervalMinutes
	}
	for user, t := range s.Cooldowns {
		doc.LastGuessTime[user] = t.UTC().Format(time.RFC3339Nano)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeState parses a round state document. Empty input is treated as an
// unreadable document.
func DecodeState(data []byte) (game.State, error) {
	var doc stateDocument
	if len(bytes.TrimSpace(data)) == 0 {
		return game.State{}, corrupt("round state: empty document")
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return game.State{}, corrupt("round state: %v", err)
	}

	records := doc.Queue
	if records == nil {
		records = doc.LegacyQueue
	}
	if records == nil && (doc.ItemName != nil || len(doc.Hints) > 0) {
		// Single-round document without a queue.
		head := roundRecord{
			ItemName:            doc.ItemName,
			Hints:               doc.Hints,
			HintsRevealed:       doc.HintsRevealed,
			LastHintRevealTime:  doc.LastHintRevealTime,
			HintIntervalMinutes: doc.HintIntervalMinutes,
			Status:              string(game.StatusConfiguring),
		}
		if doc.IsActive {
			head.Status = string(game.StatusActive)
		}
		records = []roundRecord{head}
	}

	st := game.State{
		Queue:     make([]game.Round, 0, len(records)),
		Cooldowns: make(map[string]time.Time, len(doc.LastGuessTime)),
	}
	for i, rec := range records {
		r, err := decodeRound(rec)
		if err != nil {
			return game.State{}, fmt.Errorf("queue[%d]: %w", i, err)
		}
		st.Queue = append(st.Queue, r)
	}
	for user, s := range doc.LastGuessTime {
		t, err := parseTime(s)
		if err != nil {
			return game.State{}, fmt.Errorf("last_guess_time[%s]: %w", user, err)
		}
		st.Cooldowns[user] = t
	}
	return st, nil
}

// EncodeWins renders the win ledger with stable key order.
func EncodeWins(l game.Ledger) ([]byte, error) {
	if l == nil {
		l = game.Ledger{}
	}
	return json.MarshalIndent(l, "", "  ")
}

// DecodeWins parses a win ledger document.
func DecodeWins(data []byte) (game.Ledger, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return game.Ledger{}, corrupt("win ledger: empty document")
	}
	var l game.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return game.Ledger{}, corrupt("win ledger: %v", err)
	}
	if l == nil {
		l = game.Ledger{}
	}
	return l, nil
}

// sortedUsers returns ledger keys in ascending order.
func sortedUsers(l game.Ledger) []string {
	users := make([]string, 0, len(l))
	for u := range l {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
