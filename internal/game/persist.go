// internal/game/persist.go
//
// Persistence contract and the background writer.
//
// The engine never waits for storage: every mutation updates memory first,
// then hands a deep-copied snapshot to the saver goroutine. The saver keeps
// only the newest pending snapshot of each kind, so a slow disk delays writes
// but never reorders them or blocks a command / timer tick.

package game

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Persistence loads and saves the two durable documents.
// Load* must return an empty value (not an error) when nothing was stored,
// and an error wrapping ErrPersistenceCorrupt together with an empty value
// when the stored data cannot be parsed.
type Persistence interface {
	LoadWins(ctx context.Context) (Ledger, error)
	SaveWins(ctx context.Context, l Ledger) error
	LoadState(ctx context.Context) (State, error)
	SaveState(ctx context.Context, s State) error
}

const saveTimeout = 10 * time.Second

type saver struct {
	p      Persistence
	log    zerolog.Logger
	states chan State
	wins   chan Ledger
	flush  chan chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSaver(p Persistence, log zerolog.Logger) *saver {
	s := &saver{
		p:      p,
		log:    log,
		states: make(chan State, 1),
		wins:   make(chan Ledger, 1),
		flush:  make(chan chan struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// offerState queues st, replacing any snapshot not yet written.
// Callers serialize offers (engine lock), so the second send cannot block.
func (s *saver) offerState(st State) {
	select {
	case s.states <- st:
	default:
		select {
		case <-s.states:
		default:
		}
		s.states <- st
	}
}

func (s *saver) offerWins(l Ledger) {
	select {
	case s.wins <- l:
	default:
		select {
		case <-s.wins:
		default:
		}
		s.wins <- l
	}
}

func (s *saver) run() {
	defer close(s.done)
	for {
		select {
		case st := <-s.states:
			s.writeState(st)
		case l := <-s.wins:
			s.writeWins(l)
		case ack := <-s.flush:
			s.drain()
			close(ack)
		case <-s.stop:
			s.drain()
			return
		}
	}
}

func (s *saver) drain() {
	for {
		select {
		case st := <-s.states:
			s.writeState(st)
		case l := <-s.wins:
			s.writeWins(l)
		default:
			return
		}
	}
}

func (s *saver) writeState(st State) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.p.SaveState(ctx, st); err != nil {
		s.log.Error().Err(err).Int("queue", len(st.Queue)).Msg("save round state")
		return
	}
	s.log.Debug().Int("queue", len(st.Queue)).Msg("round state saved")
}

func (s *saver) writeWins(l Ledger) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.p.SaveWins(ctx, l); err != nil {
		s.log.Error().Err(err).Int("users", len(l)).Msg("save win ledger")
		return
	}
	s.log.Debug().Int("users", len(l)).Msg("win ledger saved")
}

// Flush blocks until every snapshot offered before the call is written,
// or ctx is done.
func (s *saver) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case s.flush <- ack:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *saver) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
