package game

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestConfigureDefaultSlot(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, testOptions())

	// An incomplete round is filled before a new slot is opened.
	res, err := e.Configure(ctx, t0, ConfigureRequest{Item: strPtr("Apple")})
	if err != nil || res.Position != 1 {
		t.Fatalf("Configure() = %+v, %v; want position 1", res, err)
	}
	res, err = e.Configure(ctx, t0, ConfigureRequest{AllHints: []string{"a", "b", "c"}})
	if err != nil || res.Position != 1 || !res.Round.Complete {
		t.Fatalf("Configure() = %+v, %v; want complete round at 1", res, err)
	}
	res, err = e.Configure(ctx, t0, ConfigureRequest{Item: strPtr("Pear")})
	if err != nil || res.Position != 2 {
		t.Fatalf("Configure() = %+v, %v; want position 2", res, err)
	}
	if res.Round.IntervalMinutes != 60 {
		t.Errorf("IntervalMinutes = %d, want default 60", res.Round.IntervalMinutes)
	}
}

func TestConfigureQueueFull(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, testOptions())
	for i := 1; i <= 5; i++ {
		addRound(t, e, 0, "item", 5, "a", "b", "c")
	}
	before := e.Status(t0)

	_, err := e.Configure(ctx, t0, ConfigureRequest{Item: strPtr("sixth")})
	if !errors.Is(err, ErrQueueFull) || !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("sixth Configure() error = %v, want ErrQueueFull", err)
	}
	_, err = e.Configure(ctx, t0, ConfigureRequest{Position: 6, Item: strPtr("sixth")})
	if !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("Configure(#6) error = %v, want ErrInvalidPosition", err)
	}
	if after := e.Status(t0); !reflect.DeepEqual(before, after) {
		t.Errorf("queue changed after rejected configure:\n got %+v\nwant %+v", after, before)
	}
}

func TestConfigureValidation(t *testing.T) {
	tests := []struct {
		name string
		req  ConfigureRequest
		want error
	}{
		{"negative position", ConfigureRequest{Position: -1, Item: strPtr("x")}, ErrInvalidPosition},
		{"position too large", ConfigureRequest{Position: 9, Item: strPtr("x")}, ErrInvalidPosition},
		{"blank item", ConfigureRequest{Position: 1, Item: strPtr("   ")}, ErrEmptyText},
		{"hint index zero with text", ConfigureRequest{Position: 1, HintText: "a"}, ErrInvalidHintIndex},
		{"hint index too large", ConfigureRequest{Position: 1, HintIndex: 4, HintText: "a"}, ErrInvalidHintIndex},
		{"blank hint", ConfigureRequest{Position: 1, HintIndex: 2, HintText: " "}, ErrEmptyText},
		{"too few hints", ConfigureRequest{Position: 1, AllHints: []string{"a", "", "b"}}, ErrWrongHintCount},
		{"too many hints", ConfigureRequest{Position: 1, AllHints: []string{"a", "b", "c", "d"}}, ErrWrongHintCount},
		{"interval zero", ConfigureRequest{Position: 1, Interval: intPtr(0)}, ErrInvalidInterval},
		{"interval above max", ConfigureRequest{Position: 1, Interval: intPtr(61)}, ErrInvalidInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fs, _ := newTestEngine(t, testOptions())
			if _, err := e.Configure(context.Background(), t0, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("Configure() error = %v, want %v", err, tt.want)
			}
			if n := len(e.Status(t0).Queue); n != 0 {
				t.Errorf("queue len = %d after rejected configure, want 0", n)
			}
			if err := e.Flush(context.Background()); err != nil {
				t.Fatal(err)
			}
			if fs.stateSaves != 0 {
				t.Errorf("state saved %d times after rejected configure", fs.stateSaves)
			}
		})
	}
}

func TestConfigureActiveRoundLocked(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	mustActivate(t, e, t0)

	for _, req := range []ConfigureRequest{
		{Position: 1, Item: strPtr("Pear")},
		{Position: 1, HintIndex: 1, HintText: "z"},
		{Position: 1, Interval: intPtr(10)},
	} {
		if _, err := e.Configure(ctx, t0, req); !errors.Is(err, ErrRoundLocked) {
			t.Errorf("Configure(%+v) error = %v, want ErrRoundLocked", req, err)
		}
	}
	if _, err := e.Delete(ctx, t0, 1); !errors.Is(err, ErrRoundLocked) {
		t.Errorf("Delete(1) error = %v, want ErrRoundLocked", err)
	}

	// The default slot skips the active head.
	res, err := e.Configure(ctx, t0, ConfigureRequest{Item: strPtr("Pear")})
	if err != nil || res.Position != 2 {
		t.Fatalf("Configure() = %+v, %v; want position 2", res, err)
	}
}

func TestConfigureSparsePositionPads(t *testing.T) {
	e, _, _ := newTestEngine(t, testOptions())
	res, err := e.Configure(context.Background(), t0, ConfigureRequest{Position: 3, Item: strPtr("Plum")})
	if err != nil || res.Position != 3 {
		t.Fatalf("Configure(#3) = %+v, %v", res, err)
	}
	s := e.Status(t0)
	if len(s.Queue) != 3 {
		t.Fatalf("queue len = %d, want 3", len(s.Queue))
	}
	for _, v := range s.Queue[:2] {
		if v.Complete || v.Status != StatusConfiguring {
			t.Errorf("padding round %+v should be an empty configuring round", v)
		}
	}
}

func TestDeleteShiftsQueue(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	addRound(t, e, 2, "Pear", 5, "a", "b", "c")
	addRound(t, e, 3, "Plum", 5, "a", "b", "c")

	v, err := e.Delete(ctx, t0, 2)
	if err != nil || v.ItemName != "Pear" {
		t.Fatalf("Delete(2) = %+v, %v", v, err)
	}
	s := e.Status(t0)
	var got []string
	for _, r := range s.Queue {
		got = append(got, r.ItemName)
	}
	if want := []string{"Apple", "Plum"}; !reflect.DeepEqual(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
	if _, err := e.Delete(ctx, t0, 3); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Delete(3) error = %v, want ErrInvalidPosition", err)
	}
}

func TestRevealNextHint(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(t, testOptions())

	if _, err := e.RevealNextHint(ctx, t0, true); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("reveal without round error = %v", err)
	}
	addRound(t, e, 1, "Apple", 30, "a", "b", "c")
	mustActivate(t, e, t0)

	h, err := e.RevealNextHint(ctx, t0.Add(time.Minute), true)
	if err != nil || h != (Hint{2, "b"}) {
		t.Fatalf("manual reveal = %v, %v; want hint 2", h, err)
	}
	// Manual reveal restarts the clock.
	if e.Tick(ctx, t0.Add(30*time.Minute)) {
		t.Fatal("tick 29m after a manual reveal should not fire")
	}
	if !e.Tick(ctx, t0.Add(31*time.Minute)) {
		t.Fatal("tick 30m after a manual reveal should fire")
	}
	if _, err := e.RevealNextHint(ctx, t0.Add(32*time.Minute), true); !errors.Is(err, ErrAllHintsRevealed) {
		t.Fatalf("reveal past N error = %v, want ErrAllHintsRevealed", err)
	}
	if e.Tick(ctx, t0.Add(10*time.Hour)) {
		t.Fatal("tick after all hints revealed should not fire")
	}

	v, _ := e.Active(t0)
	if want := []Hint{{1, "a"}, {2, "b"}, {3, "c"}}; !reflect.DeepEqual(v.HintsRevealed, want) {
		t.Errorf("HintsRevealed = %v, want %v", v.HintsRevealed, want)
	}
	if v.NextRevealAt != nil {
		t.Errorf("NextRevealAt = %v, want nil once all hints are out", v.NextRevealAt)
	}

	var manual []bool
	for _, ev := range rec.events {
		if ev.Kind == EventHintRevealed {
			manual = append(manual, ev.Manual)
		}
	}
	if want := []bool{true, false}; !reflect.DeepEqual(manual, want) {
		t.Errorf("reveal events manual = %v, want %v", manual, want)
	}
}

func TestTickCatchUpRevealsOnce(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 5, "a", "b", "c")
	mustActivate(t, e, t0)

	// Simulated downtime: many intervals passed, but only one hint appears.
	late := t0.Add(2 * time.Hour)
	if !e.Tick(ctx, late) {
		t.Fatal("first tick after downtime should reveal")
	}
	if e.Tick(ctx, late.Add(time.Minute)) {
		t.Fatal("second tick right after catch-up should not reveal")
	}
	v, _ := e.Active(late)
	if len(v.HintsRevealed) != 2 {
		t.Fatalf("revealed = %d, want 2", len(v.HintsRevealed))
	}
	if want := late.Add(5 * time.Minute); v.NextRevealAt == nil || !v.NextRevealAt.Equal(want) {
		t.Errorf("NextRevealAt = %v, want %v", v.NextRevealAt, want)
	}
}

func TestRunHintTimerStopsOnCancel(t *testing.T) {
	e, _, _ := newTestEngine(t, testOptions())
	addRound(t, e, 1, "Apple", 1, "a", "b", "c")
	mustActivate(t, e, t0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	clock := func() time.Time { return t0.Add(time.Hour) }
	go func() {
		RunHintTimer(ctx, e, time.Millisecond, clock)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		v, _ := e.Active(t0)
		if len(v.HintsRevealed) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timer did not reveal a hint")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunHintTimer did not return after cancel")
	}
	// The clock is frozen, so only one catch-up reveal may happen.
	if v, _ := e.Active(t0); len(v.HintsRevealed) != 2 {
		t.Errorf("revealed = %d, want exactly 2", len(v.HintsRevealed))
	}
}

func TestForceEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("advance", func(t *testing.T) {
		e, _, _ := newTestEngine(t, testOptions())
		if _, err := e.ForceEnd(ctx, t0, EndAdvance); !errors.Is(err, ErrNoActiveRound) {
			t.Fatalf("ForceEnd without round error = %v", err)
		}
		addRound(t, e, 1, "Apple", 5, "a", "b", "c")
		addRound(t, e, 2, "Pear", 5, "a", "b", "c")
		mustActivate(t, e, t0)

		res, err := e.ForceEnd(ctx, t0, EndAdvance)
		if err != nil {
			t.Fatalf("ForceEnd() error = %v", err)
		}
		if res.Ended == nil || res.Ended.ItemName != "Apple" || res.Ended.Status != StatusEnded {
			t.Errorf("Ended = %+v, want Apple ended", res.Ended)
		}
		if res.Next == nil || res.Next.ItemName != "Pear" {
			t.Errorf("Next = %+v, want Pear", res.Next)
		}
		if e.Wins("") != 0 || len(e.Leaderboard(0)) != 0 {
			t.Error("force end must not award a win")
		}
	})

	t.Run("stop", func(t *testing.T) {
		e, _, rec := newTestEngine(t, testOptions())
		if _, err := e.ForceEnd(ctx, t0, EndStop); !errors.Is(err, ErrQueueEmpty) {
			t.Fatalf("stop on empty queue error = %v", err)
		}
		addRound(t, e, 1, "Apple", 5, "a", "b", "c")
		addRound(t, e, 2, "Pear", 5, "a", "b", "c")
		mustActivate(t, e, t0)
		if _, err := e.SubmitGuess(ctx, "u", "nope", t0); err != nil {
			t.Fatal(err)
		}

		res, err := e.ForceEnd(ctx, t0, EndStop)
		if err != nil || res.Removed != 2 || res.Ended == nil {
			t.Fatalf("stop = %+v, %v; want 2 removed with ended round", res, err)
		}
		s := e.Status(t0)
		if len(s.Queue) != 0 || s.Cooldowns != 0 || s.Active {
			t.Errorf("status after stop = %+v, want empty", s)
		}
		last := rec.events[len(rec.events)-2:]
		if last[0].Kind != EventRoundEnded || !last[0].Cleared || last[1].Kind != EventQueueExhausted {
			t.Errorf("trailing events = %+v", last)
		}
	})

	t.Run("skip last round", func(t *testing.T) {
		e, _, _ := newTestEngine(t, testOptions())
		addRound(t, e, 1, "Apple", 5, "a", "b", "c")
		mustActivate(t, e, t0)
		res, err := e.Skip(ctx, t0)
		if err != nil || !errors.Is(res.NextErr, ErrQueueEmpty) {
			t.Fatalf("Skip() = %+v, %v; want NextErr ErrQueueEmpty", res, err)
		}
	})
}

func TestLeaderboardAndReset(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{wins: Ledger{"carol": 2, "alice": 5, "bob": 2, "zero": 0}}
	e := New(testOptions(), fs, nil, zeroLog())
	t.Cleanup(e.Close)
	if err := e.Restore(ctx); err != nil {
		t.Fatal(err)
	}

	want := []Standing{{1, "alice", 5}, {2, "bob", 2}, {3, "carol", 2}}
	if got := e.Leaderboard(0); !reflect.DeepEqual(got, want) {
		t.Errorf("Leaderboard(0) = %+v, want %+v", got, want)
	}
	if got := e.Leaderboard(2); len(got) != 2 {
		t.Errorf("Leaderboard(2) len = %d", len(got))
	}

	if prev := e.ResetWins(ctx, "alice"); prev != 5 {
		t.Errorf("ResetWins() = %d, want 5", prev)
	}
	if prev := e.ResetWins(ctx, "nobody"); prev != 0 {
		t.Errorf("ResetWins(nobody) = %d, want 0", prev)
	}
	if err := e.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := fs.wins["alice"]; ok {
		t.Error("reset user still present in persisted ledger")
	}
}
