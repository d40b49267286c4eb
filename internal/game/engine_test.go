package game

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/itemguess/internal/rewards"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu           sync.Mutex
	wins         Ledger
	state        State
	loadWinsErr  error
	loadStateErr error
	stateSaves   int
	winSaves     int
}

func (f *fakeStore) LoadWins(context.Context) (Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wins.clone(), f.loadWinsErr
}

func (f *fakeStore) SaveWins(_ context.Context, l Ledger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wins = l.clone()
	f.winSaves++
	return nil
}

func (f *fakeStore) LoadState(context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone(), f.loadStateErr
}

func (f *fakeStore) SaveState(_ context.Context, s State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s.clone()
	f.stateSaves++
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func testOptions() Options {
	tbl, _ := rewards.ParseTable("1:r1,5:r5,10:r10")
	return Options{
		RequiredHints:   3,
		MaxQueueSize:    5,
		Cooldown:        30 * time.Minute,
		DefaultInterval: 60,
		MaxInterval:     60,
		AutoChain:       true,
		Rewards:         tbl,
	}
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *fakeStore, *recorder) {
	t.Helper()
	fs := &fakeStore{wins: Ledger{}}
	rec := &recorder{}
	e := New(opts, fs, rec, zerolog.Nop())
	t.Cleanup(e.Close)
	return e, fs, rec
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// addRound configures a complete round at pos with the given item and interval.
func addRound(t *testing.T, e *Engine, pos int, item string, interval int, hints ...string) {
	t.Helper()
	if _, err := e.Configure(context.Background(), t0, ConfigureRequest{
		Position: pos,
		Item:     strPtr(item),
		AllHints: hints,
		Interval: intPtr(interval),
	}); err != nil {
		t.Fatalf("Configure(%d, %q) error = %v", pos, item, err)
	}
}

func mustActivate(t *testing.T, e *Engine, now time.Time) RoundView {
	t.Helper()
	v, err := e.Activate(context.Background(), now)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return v
}

func TestActivateRequiresItemAndAllHints(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		reqs    []ConfigureRequest
		wantErr error
	}{
		{
			name:    "empty queue",
			wantErr: ErrQueueEmpty,
		},
		{
			name:    "item only",
			reqs:    []ConfigureRequest{{Position: 1, Item: strPtr("Apple")}},
			wantErr: ErrRoundIncomplete,
		},
		{
			name:    "hints only",
			reqs:    []ConfigureRequest{{Position: 1, AllHints: []string{"a", "b", "c"}}},
			wantErr: ErrRoundIncomplete,
		},
		{
			name: "item and two of three single hints",
			reqs: []ConfigureRequest{
				{Position: 1, Item: strPtr("Apple")},
				{Position: 1, HintIndex: 1, HintText: "a"},
				{Position: 1, HintIndex: 3, HintText: "c"},
			},
			wantErr: ErrRoundIncomplete,
		},
		{
			name: "hints set one by one before the item",
			reqs: []ConfigureRequest{
				{Position: 1, HintIndex: 2, HintText: "b"},
				{Position: 1, HintIndex: 1, HintText: "a"},
				{Position: 1, HintIndex: 3, HintText: "c"},
				{Position: 1, Item: strPtr("Apple")},
			},
		},
		{
			name: "bulk hints",
			reqs: []ConfigureRequest{
				{Position: 1, Item: strPtr("Apple"), AllHints: []string{"a", "", "b", "c"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t, testOptions())
			for _, req := range tt.reqs {
				if _, err := e.Configure(ctx, t0, req); err != nil {
					t.Fatalf("Configure(%+v) error = %v", req, err)
				}
			}
			_, err := e.Activate(ctx, t0)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Activate() error = %v, want %v", err, tt.wantErr)
			}
			if _, active := e.Active(t0); active != (tt.wantErr == nil) {
				t.Errorf("active = %v after Activate() error %v", active, err)
			}
		})
	}
}

func TestActivateRevealsFirstHintAndClearsCooldowns(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	addRound(t, e, 2, "Pear", 5, "d", "e", "f")
	mustActivate(t, e, t0)

	if _, err := e.SubmitGuess(ctx, "u1", "nope", t0); err != nil {
		t.Fatalf("SubmitGuess() error = %v", err)
	}
	if e.Status(t0).Cooldowns != 1 {
		t.Fatal("expected one cooldown entry after a guess")
	}
	if _, err := e.Skip(ctx, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}

	v, ok := e.Active(t0)
	if !ok {
		t.Fatal("expected next round to be active after skip")
	}
	if want := []Hint{{Number: 1, Text: "d"}}; !reflect.DeepEqual(v.HintsRevealed, want) {
		t.Errorf("HintsRevealed = %v, want %v", v.HintsRevealed, want)
	}
	if v.LastRevealAt == nil || !v.LastRevealAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("LastRevealAt = %v, want %v", v.LastRevealAt, t0.Add(time.Minute))
	}
	if n := e.Status(t0).Cooldowns; n != 0 {
		t.Errorf("cooldowns = %d after activation, want 0", n)
	}
	if _, err := e.Activate(ctx, t0); !errors.Is(err, ErrRoundActive) {
		t.Errorf("second Activate() error = %v, want ErrRoundActive", err)
	}

	want := []EventKind{EventRoundStarted, EventRoundEnded, EventRoundStarted}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestRoundScenarioTimerAndWin(t *testing.T) {
	ctx := context.Background()
	e, fs, rec := newTestEngine(t, testOptions())
	addRound(t, e, 1, "X", 5, "a", "b", "c")
	mustActivate(t, e, t0)

	if e.Tick(ctx, t0.Add(4*time.Minute)) {
		t.Fatal("tick at +4m should not reveal")
	}
	if !e.Tick(ctx, t0.Add(6*time.Minute)) {
		t.Fatal("tick at +6m should reveal")
	}
	v, _ := e.Active(t0)
	if want := []Hint{{1, "a"}, {2, "b"}}; !reflect.DeepEqual(v.HintsRevealed, want) {
		t.Fatalf("HintsRevealed = %v, want %v", v.HintsRevealed, want)
	}
	if !v.LastRevealAt.Equal(t0.Add(6 * time.Minute)) {
		t.Fatalf("LastRevealAt = %v, want +6m", v.LastRevealAt)
	}

	res, err := e.SubmitGuess(ctx, "winner", "x", t0.Add(6*time.Minute+time.Second))
	if err != nil {
		t.Fatalf("SubmitGuess() error = %v", err)
	}
	if !res.Correct || res.Answer != "X" || res.Wins != 1 {
		t.Fatalf("result = %+v, want correct win #1 for X", res)
	}
	if res.Tier == nil || res.Tier.RoleID != "r1" {
		t.Errorf("tier = %v, want r1", res.Tier)
	}
	if !errors.Is(res.NextErr, ErrQueueEmpty) {
		t.Errorf("NextErr = %v, want ErrQueueEmpty", res.NextErr)
	}
	if _, active := e.Active(t0); active {
		t.Fatal("no round should be active after the last round is won")
	}
	if e.Tick(ctx, t0.Add(time.Hour)) {
		t.Fatal("no reveal expected after the round ended")
	}

	if err := e.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	fs.mu.Lock()
	if fs.wins["winner"] != 1 {
		t.Errorf("persisted wins = %d, want 1", fs.wins["winner"])
	}
	if len(fs.state.Queue) != 0 {
		t.Errorf("persisted queue len = %d, want 0", len(fs.state.Queue))
	}
	fs.mu.Unlock()

	want := []EventKind{EventRoundStarted, EventHintRevealed, EventRoundWon, EventQueueExhausted}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestGuessMatching(t *testing.T) {
	tests := []struct {
		guess string
		want  bool
	}{
		{"apple", true},
		{"APPLE", true},
		{"  Apple \n", true},
		{"app le", false},
		{"apples", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.guess, func(t *testing.T) {
			e, _, _ := newTestEngine(t, testOptions())
			addRound(t, e, 1, "Apple", 5, "a", "b", "c")
			mustActivate(t, e, t0)
			res, err := e.SubmitGuess(context.Background(), "u", tt.guess, t0)
			if err != nil {
				t.Fatalf("SubmitGuess() error = %v", err)
			}
			if res.Correct != tt.want {
				t.Errorf("SubmitGuess(%q).Correct = %v, want %v", tt.guess, res.Correct, tt.want)
			}
		})
	}
}

func TestGuessWithoutActiveRound(t *testing.T) {
	e, _, _ := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	if _, err := e.SubmitGuess(context.Background(), "u", "apple", t0); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("SubmitGuess() error = %v, want ErrNoActiveRound", err)
	}
}

func TestGuessCooldown(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	mustActivate(t, e, t0)

	first := t0.Add(time.Minute)
	if _, err := e.SubmitGuess(ctx, "u1", "pear", first); err != nil {
		t.Fatalf("first guess error = %v", err)
	}

	_, err := e.SubmitGuess(ctx, "u1", "apple", first.Add(10*time.Minute))
	var cd *CooldownError
	if !errors.As(err, &cd) || !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("second guess error = %v, want CooldownError", err)
	}
	if cd.Remaining != 20*time.Minute {
		t.Errorf("Remaining = %v, want 20m", cd.Remaining)
	}
	if !cd.Since.Equal(first) {
		t.Errorf("Since = %v, want first guess time %v", cd.Since, first)
	}

	// The rejected attempt must not restart the window.
	_, err = e.SubmitGuess(ctx, "u1", "apple", first.Add(29*time.Minute))
	if !errors.As(err, &cd) || cd.Remaining != time.Minute {
		t.Fatalf("third guess error = %v, want 1m remaining", err)
	}

	// Another user is unaffected.
	if _, err := e.SubmitGuess(ctx, "u2", "plum", first.Add(10*time.Minute)); err != nil {
		t.Fatalf("other user guess error = %v", err)
	}

	res, err := e.SubmitGuess(ctx, "u1", "apple", first.Add(30*time.Minute))
	if err != nil || !res.Correct {
		t.Fatalf("guess after window = %+v, %v; want correct", res, err)
	}
}

func TestWinAutoChainsNextRound(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	addRound(t, e, 2, "Pear", 10, "d", "e", "f")
	mustActivate(t, e, t0)

	win := t0.Add(3 * time.Minute)
	res, err := e.SubmitGuess(ctx, "u1", "apple", win)
	if err != nil || !res.Correct {
		t.Fatalf("SubmitGuess() = %+v, %v", res, err)
	}
	if res.Next == nil || res.Next.ItemName != "Pear" {
		t.Fatalf("Next = %+v, want Pear round", res.Next)
	}
	v, ok := e.Active(win)
	if !ok || v.ItemName != "Pear" {
		t.Fatalf("active round = %+v, %v; want Pear", v, ok)
	}
	if want := []Hint{{1, "d"}}; !reflect.DeepEqual(v.HintsRevealed, want) {
		t.Errorf("HintsRevealed = %v, want %v", v.HintsRevealed, want)
	}
	if !v.LastRevealAt.Equal(win) {
		t.Errorf("LastRevealAt = %v, want %v", v.LastRevealAt, win)
	}
	if s := e.Status(win); len(s.Queue) != 1 || s.Cooldowns != 0 {
		t.Errorf("status = %+v, want 1 queued round and no cooldowns", s)
	}
}

func TestWinWithoutAutoChainWaitsForAdmin(t *testing.T) {
	ctx := context.Background()
	opts := testOptions()
	opts.AutoChain = false
	e, _, _ := newTestEngine(t, opts)
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	addRound(t, e, 2, "Pear", 10, "d", "e", "f")
	mustActivate(t, e, t0)

	res, err := e.SubmitGuess(ctx, "u1", "Apple", t0)
	if err != nil || !res.Correct {
		t.Fatalf("SubmitGuess() = %+v, %v", res, err)
	}
	if res.Next != nil || res.NextErr != nil {
		t.Errorf("Next = %+v, NextErr = %v; want nothing started", res.Next, res.NextErr)
	}
	if _, active := e.Active(t0); active {
		t.Fatal("no round should be active without auto-chain")
	}
	v := mustActivate(t, e, t0.Add(time.Minute))
	if v.ItemName != "Pear" {
		t.Errorf("activated %q, want Pear", v.ItemName)
	}
}

func TestWinWithIncompleteNextRoundStalls(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	if _, err := e.Configure(ctx, t0, ConfigureRequest{Position: 2, Item: strPtr("Pear")}); err != nil {
		t.Fatal(err)
	}
	mustActivate(t, e, t0)

	res, err := e.SubmitGuess(ctx, "u1", "apple", t0)
	if err != nil || !res.Correct {
		t.Fatalf("SubmitGuess() = %+v, %v", res, err)
	}
	if !errors.Is(res.NextErr, ErrRoundIncomplete) {
		t.Errorf("NextErr = %v, want ErrRoundIncomplete", res.NextErr)
	}
	want := []EventKind{EventRoundStarted, EventRoundWon, EventQueueStalled}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestWinsAccumulateAndTierUp(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, testOptions())
	var last GuessResult
	for i := 0; i < 5; i++ {
		addRound(t, e, 1, "Apple", 5, "a", "b", "c")
		mustActivate(t, e, t0)
		res, err := e.SubmitGuess(ctx, "champ", "apple", t0)
		if err != nil || !res.Correct {
			t.Fatalf("round %d: %+v, %v", i, res, err)
		}
		last = res
	}
	if last.Wins != 5 || last.Tier == nil || last.Tier.RoleID != "r5" {
		t.Fatalf("after 5 wins result = %+v, tier %v", last, last.Tier)
	}
	if e.Wins("champ") != 5 {
		t.Errorf("Wins() = %d, want 5", e.Wins("champ"))
	}
}

// gatedRecorder holds the first HintRevealed delivery until release is closed.
type gatedRecorder struct {
	recorder
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRecorder) Notify(ctx context.Context, ev Event) {
	if ev.Kind == EventHintRevealed {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	g.recorder.Notify(ctx, ev)
}

func TestEventsDeliveredInStateOrder(t *testing.T) {
	ctx := context.Background()
	gate := &gatedRecorder{entered: make(chan struct{}), release: make(chan struct{})}
	e := New(testOptions(), &fakeStore{wins: Ledger{}}, gate, zerolog.Nop())
	t.Cleanup(e.Close)
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	mustActivate(t, e, t0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.Tick(ctx, t0.Add(6*time.Minute))
	}()
	<-gate.entered

	go func() {
		defer wg.Done()
		if res, err := e.SubmitGuess(ctx, "u1", "apple", t0.Add(7*time.Minute)); err != nil || !res.Correct {
			t.Errorf("SubmitGuess() = %+v, %v", res, err)
		}
	}()
	// Give the guess time to commit and reach delivery while the hint is held.
	time.Sleep(50 * time.Millisecond)
	close(gate.release)
	wg.Wait()

	want := []EventKind{EventRoundStarted, EventHintRevealed, EventRoundWon, EventQueueExhausted}
	if got := gate.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}
