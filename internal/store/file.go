// internal/store/file.go
//
// JSON file implementation of game.Persistence: one file for the win ledger,
// one for the round state. Writes go to a temp file in the same directory
// followed by a rename, so a crash mid-write leaves the previous document.

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/itemguess/internal/game"
)

// File stores both documents as JSON files.
type File struct {
	winsPath  string
	statePath string
}

// NewFile returns a file Store. Parent directories are created on first write.
func NewFile(winsPath, statePath string) *File {
	return &File{winsPath: winsPath, statePath: statePath}
}

// readFile returns nil data (no error) when the file does not exist.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// writeFileAtomic replaces path with data via temp file + rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := tmp.Name()
	defer os.Remove(name) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// LoadWins reads the ledger file. Missing → empty ledger.
func (f *File) LoadWins(ctx context.Context) (game.Ledger, error) {
	data, err := readFile(f.winsPath)
	if err != nil {
		return game.Ledger{}, err
	}
	if data == nil {
		log.Info().Str("file", f.winsPath).Msg("no win ledger yet")
		return game.Ledger{}, nil
	}
	l, err := DecodeWins(data)
	if err != nil {
		return game.Ledger{}, fmt.Errorf("%s: %w", f.winsPath, err)
	}
	return l, nil
}

// SaveWins writes the ledger file.
func (f *File) SaveWins(ctx context.Context, l game.Ledger) error {
	data, err := EncodeWins(l)
	if err != nil {
		return err
	}
	return writeFileAtomic(f.winsPath, data)
}

// LoadState reads the round state file. Missing → empty state.
func (f *File) LoadState(ctx context.Context) (game.State, error) {
	data, err := readFile(f.statePath)
	if err != nil {
		return game.State{}, err
	}
	if data == nil {
		log.Info().Str("file", f.statePath).Msg("no round state yet")
		return game.State{}, nil
	}
	st, err := DecodeState(data)
	if err != nil {
		return game.State{}, fmt.Errorf("%s: %w", f.statePath, err)
	}
	return st, nil
}

// SaveState writes the round state file.
func (f *File) SaveState(ctx context.Context, s game.State) error {
	data, err := EncodeState(s)
	if err != nil {
		return err
	}
	return writeFileAtomic(f.statePath, data)
}

// Close is a no-op; files are not held open.
func (f *File) Close() error { return nil }
