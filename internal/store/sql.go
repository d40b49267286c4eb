// internal/store/sql.go
//
// database/sql implementation of game.Persistence.
// Responsibilities:
//   - Opening the connection for the selected dialect (sqlite, postgres, mysql).
//   - Applying the embedded migrations for that dialect (see migrate.go).
//   - Storing the win ledger as rows and the round state as one JSON document.
//
// Notes:
//   - Saves replace the stored data inside one transaction (delete + insert),
//     which behaves identically on all three dialects.
//   - Queries are written with ? placeholders and rewritten per dialect.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/itemguess/internal/game"
)

// stateRowID is the primary key of the single round_state row.
const stateRowID = 1

// SQL is a Store backed by a relational database.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL connects, configures and migrates the database.
func OpenSQL(ctx context.Context, d Dialect, cfg DialectConfig) (*SQL, error) {
	if _, ok := d.(*SQLiteDialect); ok {
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.DriverName(), d.DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := d.ConfigureConnection(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	s := &SQL{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("driver", d.DriverName()).Msg("sql store ready")
	return s, nil
}

func (s *SQL) q(query string) string { return s.dialect.RewriteQuery(query) }

// LoadWins reads every ledger row.
func (s *SQL) LoadWins(ctx context.Context) (game.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT user_id, wins FROM win_ledger`))
	if err != nil {
		return game.Ledger{}, fmt.Errorf("query win_ledger: %w", err)
	}
	defer rows.Close()

	l := game.Ledger{}
	for rows.Next() {
		var (
			user string
			wins int
		)
		if err := rows.Scan(&user, &wins); err != nil {
			return game.Ledger{}, fmt.Errorf("scan win_ledger: %w", err)
		}
		l[user] = wins
	}
	if err := rows.Err(); err != nil {
		return game.Ledger{}, fmt.Errorf("iterate win_ledger: %w", err)
	}
	return l, nil
}

// SaveWins replaces the ledger rows.
func (s *SQL) SaveWins(ctx context.Context, l game.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM win_ledger`)); err != nil {
		return fmt.Errorf("clear win_ledger: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO win_ledger (user_id, wins) VALUES (?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, user := range sortedUsers(l) {
		if l[user] <= 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, user, l[user]); err != nil {
			return fmt.Errorf("insert %s: %w", user, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit win_ledger: %w", err)
	}
	return nil
}

// LoadState reads the round state document. No row → empty state.
func (s *SQL) LoadState(ctx context.Context) (game.State, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT document FROM round_state WHERE id = ?`), stateRowID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return game.State{}, nil
	}
	if err != nil {
		return game.State{}, fmt.Errorf("query round_state: %w", err)
	}
	return DecodeState([]byte(doc))
}

// SaveState replaces the round state document.
func (s *SQL) SaveState(ctx context.Context, st game.State) error {
	data, err := EncodeState(st)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM round_state WHERE id = ?`), stateRowID); err != nil {
		return fmt.Errorf("clear round_state: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.q(`INSERT INTO round_state (id, document) VALUES (?, ?)`), stateRowID, string(data),
	); err != nil {
		return fmt.Errorf("insert round_state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round_state: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQL) Close() error {
	return s.db.Close()
}
