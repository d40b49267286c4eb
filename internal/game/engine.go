// internal/game/engine.go
//
// Round engine for the item-guessing game.
// Responsibilities:
//   - Own the bounded round queue, the cooldown table and the win ledger.
//   - Configure queued rounds (item, hints, timing) by 1-based position.
//   - Drive the round lifecycle: configuring → active → ended (discarded).
//   - Evaluate guesses with per-user cooldowns and award wins.
//   - Advance the queue after a win, endgame, skip or stop.
//
// Notes:
//   - One mutex serializes every operation, so the hint timer and commands
//     interleave but never overlap.
//   - Memory is always updated before the matching snapshot is handed to the
//     background saver (see persist.go).
//   - Events are published after the lock is released, one batch at a time
//     and in the order the state changed.
package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/itemguess/internal/rewards"
)

// Engine is the single owner of all mutable game state.
type Engine struct {
	mu     sync.Mutex
	pubMu  sync.Mutex // orders event delivery; acquired while holding mu
	opts   Options
	queue  []Round
	cool   cooldowns
	wins   Ledger
	saver  *saver
	notify Notifier
	log    zerolog.Logger
}

// New constructs an engine with an empty queue and ledger. Call Restore to
// load persisted state before serving commands.
// Zero-valued options fall back to DefaultOptions; n may be nil.
func New(opts Options, p Persistence, n Notifier, log zerolog.Logger) *Engine {
	def := DefaultOptions()
	if opts.RequiredHints <= 0 {
		opts.RequiredHints = def.RequiredHints
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = def.MaxQueueSize
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = def.Cooldown
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = def.MaxInterval
	}
	if opts.DefaultInterval <= 0 || opts.DefaultInterval > opts.MaxInterval {
		opts.DefaultInterval = opts.MaxInterval
	}
	if n == nil {
		n = nopNotifier{}
	}
	log = log.With().Str("component", "engine").Logger()
	return &Engine{
		opts:   opts,
		cool:   cooldowns{},
		wins:   Ledger{},
		saver:  newSaver(p, log),
		notify: n,
		log:    log,
	}
}

// Options returns the engine's fixed parameters.
func (e *Engine) Options() Options { return e.opts }

// Flush waits until every pending snapshot has been written.
func (e *Engine) Flush(ctx context.Context) error { return e.saver.Flush(ctx) }

// Close writes pending snapshots and stops the background saver.
func (e *Engine) Close() { e.saver.Close() }

// ------------------------------ helpers ------------------------------------

// activeLocked returns the running round (always the queue head) or nil.
func (e *Engine) activeLocked() *Round {
	if len(e.queue) > 0 && e.queue[0].Status == StatusActive {
		return &e.queue[0]
	}
	return nil
}

func (e *Engine) saveStateLocked() {
	e.saver.offerState(State{Queue: e.queue, Cooldowns: e.cool}.clone())
}

func (e *Engine) saveWinsLocked() {
	e.saver.offerWins(e.wins.clone())
}

// unlockAndPublish releases e.mu and delivers evs. pubMu is taken before
// e.mu is released, so batches reach the notifier in the order the state
// changed even when the timer and a command race.
func (e *Engine) unlockAndPublish(ctx context.Context, evs []Event) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	e.mu.Unlock()
	for _, ev := range evs {
		e.notify.Notify(ctx, ev)
	}
}

// popHeadLocked discards the head round and marks it ended.
func (e *Engine) popHeadLocked() Round {
	head := e.queue[0]
	head.Status = StatusEnded
	e.queue = append([]Round(nil), e.queue[1:]...)
	return head
}

// ----------------------------- configure -----------------------------------

// ConfigureRequest describes an admin setup command. Only the set fields are
// applied; all validation happens before anything is mutated.
type ConfigureRequest struct {
	Position  int      // 1-based queue slot; 0 picks the default slot.
	Item      *string  // Secret answer.
	HintIndex int      // With HintText: set a single hint (1..N).
	HintText  string
	AllHints  []string // Replace every hint; blank lines are ignored, N must remain.
	Interval  *int     // Minutes between automatic reveals.
}

// ConfigureResult reports the slot that was changed.
type ConfigureResult struct {
	Position int
	Round    RoundView
}

// Configure mutates a configuring round at the requested (or default) slot.
func (e *Engine) Configure(ctx context.Context, now time.Time, req ConfigureRequest) (ConfigureResult, error) {
	item, hints, err := e.validateConfigure(req)
	if err != nil {
		return ConfigureResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.resolvePositionLocked(req.Position)
	if err != nil {
		return ConfigureResult{}, err
	}
	if pos <= len(e.queue) && e.queue[pos-1].Status == StatusActive {
		return ConfigureResult{}, ErrRoundLocked
	}
	for len(e.queue) < pos {
		e.queue = append(e.queue, newRound(e.opts.DefaultInterval))
	}

	r := &e.queue[pos-1]
	if req.Item != nil {
		r.ItemName = item
	}
	if req.HintIndex != 0 {
		r.Hints[req.HintIndex] = strings.TrimSpace(req.HintText)
		r.HintsRevealed = nil
	}
	if hints != nil {
		r.Hints = make(map[int]string, len(hints))
		for i, h := range hints {
			r.Hints[i+1] = h
		}
		r.HintsRevealed = nil
	}
	if req.Interval != nil {
		r.IntervalMinutes = *req.Interval
	}
	r.Status = StatusConfiguring

	e.saveStateLocked()
	e.log.Info().Int("position", pos).Str("round", r.ID).
		Int("hints", len(r.Hints)).Bool("item", r.ItemName != "").Msg("round configured")
	return ConfigureResult{Position: pos, Round: e.viewLocked(pos, now)}, nil
}

// validateConfigure checks everything that does not depend on queue state.
func (e *Engine) validateConfigure(req ConfigureRequest) (string, []string, error) {
	var item string
	if req.Item != nil {
		item = strings.TrimSpace(*req.Item)
		if item == "" {
			return "", nil, ErrEmptyText
		}
	}
	if req.HintIndex != 0 || req.HintText != "" {
		if req.HintIndex < 1 || req.HintIndex > e.opts.RequiredHints {
			return "", nil, ErrInvalidHintIndex
		}
		if strings.TrimSpace(req.HintText) == "" {
			return "", nil, ErrEmptyText
		}
	}
	var hints []string
	if req.AllHints != nil {
		hints = make([]string, 0, len(req.AllHints))
		for _, line := range req.AllHints {
			if line = strings.TrimSpace(line); line != "" {
				hints = append(hints, line)
			}
		}
		if len(hints) != e.opts.RequiredHints {
			return "", nil, ErrWrongHintCount
		}
	}
	if req.Interval != nil && (*req.Interval < 1 || *req.Interval > e.opts.MaxInterval) {
		return "", nil, ErrInvalidInterval
	}
	return item, hints, nil
}

// resolvePositionLocked validates an explicit slot or picks the default one:
// the first incomplete configuring round, else a new slot at the end.
func (e *Engine) resolvePositionLocked(pos int) (int, error) {
	if pos != 0 {
		if pos < 1 || pos > e.opts.MaxQueueSize {
			return 0, ErrInvalidPosition
		}
		return pos, nil
	}
	for i := range e.queue {
		r := &e.queue[i]
		if r.Status == StatusConfiguring && !r.complete(e.opts.RequiredHints) {
			return i + 1, nil
		}
	}
	if len(e.queue) < e.opts.MaxQueueSize {
		return len(e.queue) + 1, nil
	}
	return 0, ErrQueueFull
}

// Delete removes a queued, non-active round and shifts the rest up.
func (e *Engine) Delete(ctx context.Context, now time.Time, pos int) (RoundView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pos < 1 || pos > e.opts.MaxQueueSize || pos > len(e.queue) {
		return RoundView{}, ErrInvalidPosition
	}
	if e.queue[pos-1].Status == StatusActive {
		return RoundView{}, ErrRoundLocked
	}
	v := e.viewLocked(pos, now)
	e.queue = append(e.queue[:pos-1:pos-1], e.queue[pos:]...)
	e.saveStateLocked()
	e.log.Info().Int("position", pos).Str("round", v.ID).Msg("round deleted")
	return v, nil
}

// ------------------------------ lifecycle ----------------------------------

// Activate starts the head round: hint 1 is revealed, the reveal clock starts
// at now and all cooldowns are cleared.
func (e *Engine) Activate(ctx context.Context, now time.Time) (RoundView, error) {
	var evs []Event
	e.mu.Lock()
	r, err := e.activateLocked(now, &evs)
	e.unlockAndPublish(ctx, evs)
	return r, err
}

func (e *Engine) activateLocked(now time.Time, evs *[]Event) (RoundView, error) {
	if e.activeLocked() != nil {
		return RoundView{}, ErrRoundActive
	}
	if len(e.queue) == 0 {
		return RoundView{}, ErrQueueEmpty
	}
	head := &e.queue[0]
	if !head.complete(e.opts.RequiredHints) {
		return RoundView{}, ErrRoundIncomplete
	}

	t := now
	head.Status = StatusActive
	head.LastRevealAt = &t
	head.HintsRevealed = []Hint{{Number: 1, Text: head.Hints[1]}}
	e.cool.reset()
	e.saveStateLocked()

	*evs = append(*evs, Event{
		Kind:       EventRoundStarted,
		RoundID:    head.ID,
		Hint:       head.HintsRevealed[0],
		TotalHints: e.opts.RequiredHints,
		Interval:   head.IntervalMinutes,
		QueueLen:   len(e.queue),
	})
	e.log.Info().Str("round", head.ID).Int("interval", head.IntervalMinutes).Msg("round started")
	return e.viewLocked(1, now), nil
}

// advanceLocked runs after the head was discarded. With activate set the new
// head is started; otherwise it is left for an admin.
func (e *Engine) advanceLocked(now time.Time, activate bool, evs *[]Event) (*RoundView, error) {
	if len(e.queue) == 0 {
		*evs = append(*evs, Event{Kind: EventQueueExhausted})
		e.log.Info().Msg("queue exhausted")
		return nil, ErrQueueEmpty
	}
	if !activate {
		return nil, nil
	}
	v, err := e.activateLocked(now, evs)
	if err != nil {
		*evs = append(*evs, Event{Kind: EventQueueStalled, RoundID: e.queue[0].ID, QueueLen: len(e.queue), StalledReason: err})
		e.log.Warn().Err(err).Str("round", e.queue[0].ID).Msg("next round not started")
		return nil, err
	}
	return &v, nil
}

// GuessResult is the outcome of an accepted guess.
type GuessResult struct {
	Correct bool
	Answer  string        // The item, on a correct guess.
	Wins    int           // Winner's new total.
	Tier    *rewards.Tier // Highest tier reached, if any.
	Next    *RoundView    // Round auto-started after the win.
	NextErr error         // Why no round was auto-started.
}

// SubmitGuess evaluates a guess for the active round. Every attempt that is
// not itself rejected by the cooldown restarts the user's window at now.
func (e *Engine) SubmitGuess(ctx context.Context, user, text string, now time.Time) (GuessResult, error) {
	var evs []Event
	e.mu.Lock()
	res, err := e.guessLocked(user, text, now, &evs)
	e.unlockAndPublish(ctx, evs)
	return res, err
}

func (e *Engine) guessLocked(user, text string, now time.Time, evs *[]Event) (GuessResult, error) {
	r := e.activeLocked()
	if r == nil {
		return GuessResult{}, ErrNoActiveRound
	}
	if remaining, since := e.cool.check(user, now, e.opts.Cooldown); remaining > 0 {
		return GuessResult{}, &CooldownError{Remaining: remaining, Since: since}
	}
	e.cool.stamp(user, now)

	if !strings.EqualFold(strings.TrimSpace(text), r.ItemName) {
		e.saveStateLocked()
		return GuessResult{}, nil
	}

	ended := e.popHeadLocked()
	e.wins[user]++
	res := GuessResult{Correct: true, Answer: ended.ItemName, Wins: e.wins[user]}
	if tier, ok := e.opts.Rewards.TierFor(res.Wins); ok {
		res.Tier = &tier
	}
	e.saveWinsLocked()

	*evs = append(*evs, Event{
		Kind:     EventRoundWon,
		RoundID:  ended.ID,
		ItemName: ended.ItemName,
		UserID:   user,
		Wins:     res.Wins,
		Tier:     res.Tier,
		QueueLen: len(e.queue),
	})
	e.log.Info().Str("round", ended.ID).Str("user", user).Int("wins", res.Wins).Msg("round won")

	res.Next, res.NextErr = e.advanceLocked(now, e.opts.AutoChain, evs)
	e.saveStateLocked()
	return res, nil
}

// RevealNextHint reveals hint len(revealed)+1. The timed variant (manual
// false) only fires once the interval since the last reveal has elapsed; the
// manual variant always fires. Both restart the reveal clock at now.
func (e *Engine) RevealNextHint(ctx context.Context, now time.Time, manual bool) (Hint, error) {
	var evs []Event
	e.mu.Lock()
	h, err := e.revealLocked(now, manual, &evs)
	e.unlockAndPublish(ctx, evs)
	return h, err
}

func (e *Engine) revealLocked(now time.Time, manual bool, evs *[]Event) (Hint, error) {
	r := e.activeLocked()
	if r == nil {
		return Hint{}, ErrNoActiveRound
	}
	next := len(r.HintsRevealed) + 1
	if next > e.opts.RequiredHints {
		return Hint{}, ErrAllHintsRevealed
	}
	if !manual {
		if r.LastRevealAt == nil {
			return Hint{}, ErrHintNotDue
		}
		due := r.LastRevealAt.Add(time.Duration(r.IntervalMinutes) * time.Minute)
		if now.Before(due) {
			return Hint{}, ErrHintNotDue
		}
	}
	text, ok := r.Hints[next]
	if !ok || text == "" {
		return Hint{}, ErrRoundIncomplete
	}

	h := Hint{Number: next, Text: text}
	t := now
	r.HintsRevealed = append(r.HintsRevealed, h)
	r.LastRevealAt = &t
	e.saveStateLocked()

	*evs = append(*evs, Event{
		Kind:       EventHintRevealed,
		RoundID:    r.ID,
		Hint:       h,
		TotalHints: e.opts.RequiredHints,
		Manual:     manual,
		QueueLen:   len(e.queue),
	})
	e.log.Info().Str("round", r.ID).Int("hint", next).Bool("manual", manual).Msg("hint revealed")
	return h, nil
}

// EndMode selects what ForceEnd does with the rest of the queue.
type EndMode int

const (
	// EndAdvance discards the active round and moves on to the next one
	// (auto-started when the engine chains rounds).
	EndAdvance EndMode = iota
	// EndStop discards every queued round and all cooldowns.
	EndStop
)

// EndResult describes what a forced end removed and started.
type EndResult struct {
	Ended   *RoundView // The active round that was discarded, if any.
	Removed int        // Rounds removed from the queue.
	Next    *RoundView // Round started afterwards.
	NextErr error      // Why no round was started.
}

// ForceEnd ends the active round without a winner.
func (e *Engine) ForceEnd(ctx context.Context, now time.Time, mode EndMode) (EndResult, error) {
	var evs []Event
	e.mu.Lock()
	var (
		res EndResult
		err error
	)
	switch mode {
	case EndStop:
		res, err = e.stopLocked(now, &evs)
	default:
		res, err = e.endLocked(now, e.opts.AutoChain, &evs)
	}
	e.unlockAndPublish(ctx, evs)
	return res, err
}

// Skip ends the active round without a winner and starts the next one.
func (e *Engine) Skip(ctx context.Context, now time.Time) (EndResult, error) {
	var evs []Event
	e.mu.Lock()
	res, err := e.endLocked(now, true, &evs)
	e.unlockAndPublish(ctx, evs)
	return res, err
}

func (e *Engine) endLocked(now time.Time, activate bool, evs *[]Event) (EndResult, error) {
	if e.activeLocked() == nil {
		return EndResult{}, ErrNoActiveRound
	}
	v := e.viewLocked(1, now)
	ended := e.popHeadLocked()
	v.Status = ended.Status

	*evs = append(*evs, Event{
		Kind:     EventRoundEnded,
		RoundID:  ended.ID,
		ItemName: ended.ItemName,
		QueueLen: len(e.queue),
	})
	e.log.Info().Str("round", ended.ID).Msg("round force-ended")

	res := EndResult{Ended: &v, Removed: 1}
	res.Next, res.NextErr = e.advanceLocked(now, activate, evs)
	e.saveStateLocked()
	return res, nil
}

func (e *Engine) stopLocked(now time.Time, evs *[]Event) (EndResult, error) {
	if len(e.queue) == 0 {
		return EndResult{}, ErrQueueEmpty
	}
	res := EndResult{Removed: len(e.queue)}
	if r := e.activeLocked(); r != nil {
		v := e.viewLocked(1, now)
		v.Status = StatusEnded
		res.Ended = &v
		*evs = append(*evs, Event{Kind: EventRoundEnded, RoundID: r.ID, ItemName: r.ItemName, Cleared: true})
	}
	e.queue = nil
	e.cool.reset()
	e.saveStateLocked()

	*evs = append(*evs, Event{Kind: EventQueueExhausted})
	e.log.Info().Int("removed", res.Removed).Msg("queue cleared")
	return res, nil
}
