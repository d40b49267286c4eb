// db.go
//
// Persistence bootstrap for the item-guessing bot.
// Responsibilities:
//   - Pick the store implementation from STORE_DRIVER.
//   - Open SQL backends (sqlite / postgres / mysql); OpenSQL applies the
//     embedded migrations for the chosen dialect.
//
// Note: the memory driver keeps nothing across restarts.

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/itemguess/internal/config"
	"github.com/robalobadob/itemguess/internal/store"
)

// openStore returns the persistence gateway selected by cfg.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store; wins and queue are lost on restart")
		return store.NewMemory(), nil
	case config.DriverFile:
		log.Info().Str("wins", cfg.DataFile).Str("state", cfg.GameStateFile).Msg("using JSON file store")
		return store.NewFile(cfg.DataFile, cfg.GameStateFile), nil
	}

	d, err := store.DialectFor(cfg.StoreDriver)
	if err != nil {
		return nil, err
	}
	s, err := store.OpenSQL(ctx, d, store.DialectConfig{Path: cfg.DBPath, URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	return s, nil
}
