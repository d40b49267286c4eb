// internal/store/memory.go
//
// In-memory implementation of game.Persistence.
// Used by tests and by STORE_DRIVER=memory, when durability is not required.
//
// Characteristics:
//   - Keeps the encoded documents, so every load returns an independent copy
//     and exercises the same codec as the durable drivers.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"

	"github.com/robalobadob/itemguess/internal/game"
)

// Store is a game.Persistence that holds resources until closed.
// Implementations are backed by memory, JSON files or SQL.
type Store interface {
	game.Persistence

	// Close releases files or connections. Safe to call once.
	Close() error
}

// Memory keeps both documents in process memory.
type Memory struct {
	mu    sync.RWMutex // guards wins and state
	wins  []byte
	state []byte
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{}
}

// LoadWins returns the stored ledger, or an empty one.
func (m *Memory) LoadWins(ctx context.Context) (game.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.wins == nil {
		return game.Ledger{}, nil
	}
	return DecodeWins(m.wins)
}

// SaveWins replaces the stored ledger.
func (m *Memory) SaveWins(ctx context.Context, l game.Ledger) error {
	data, err := EncodeWins(l)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wins = data
	return nil
}

// LoadState returns the stored round state, or an empty one.
func (m *Memory) LoadState(ctx context.Context) (game.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return game.State{}, nil
	}
	return DecodeState(m.state)
}

// SaveState replaces the stored round state.
func (m *Memory) SaveState(ctx context.Context, s game.State) error {
	data, err := EncodeState(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = data
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
