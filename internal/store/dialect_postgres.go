package store

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// PostgresDialect talks to PostgreSQL through lib/pq using DATABASE_URL.
type PostgresDialect struct{}

func NewPostgresDialect() *PostgresDialect { return &PostgresDialect{} }

func (*PostgresDialect) DriverName() string { return "postgres" }

func (*PostgresDialect) DSN(cfg DialectConfig) string { return cfg.URL }

// RewriteQuery switches to $n placeholders.
func (*PostgresDialect) RewriteQuery(query string) string { return numberPlaceholders(query) }

func (*PostgresDialect) ConfigureConnection(db *sql.DB) error {
	serverPool(db)
	return nil
}

func (*PostgresDialect) MigrationsSubdir() string { return "postgres" }

func (*PostgresDialect) CreateMigrationsTableQuery() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
	id BIGSERIAL PRIMARY KEY,
	filename TEXT NOT NULL UNIQUE,
	executed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
)`
}
