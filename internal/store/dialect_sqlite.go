package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDialect stores everything in one local database file.
type SQLiteDialect struct{}

func NewSQLiteDialect() *SQLiteDialect { return &SQLiteDialect{} }

func (*SQLiteDialect) DriverName() string { return "sqlite3" }

// DSN appends a 5s busy timeout and WAL journaling to the file path.
func (*SQLiteDialect) DSN(cfg DialectConfig) string {
	return cfg.Path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func (*SQLiteDialect) RewriteQuery(query string) string { return query }

// ConfigureConnection pins the pool to one connection, since the file has a
// single writer, and turns on foreign keys.
func (*SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (*SQLiteDialect) MigrationsSubdir() string { return "sqlite" }

func (*SQLiteDialect) CreateMigrationsTableQuery() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL UNIQUE,
	executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`
}

// ensureDir creates the parent directory of a database file such as
// ./data/bot.db.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
