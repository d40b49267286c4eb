package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect hides what differs between the SQL backends: driver registration,
// connection string, placeholder style, pool limits and migration DDL.
// Queries in this package are written once with ? placeholders.
type Dialect interface {
	DriverName() string
	DSN(cfg DialectConfig) string
	RewriteQuery(query string) string
	ConfigureConnection(db *sql.DB) error
	// MigrationsSubdir names the directory under migrations/ to apply.
	MigrationsSubdir() string
	CreateMigrationsTableQuery() string
}

// DialectConfig carries the connection target. SQLite reads Path; the
// server backends read URL.
type DialectConfig struct {
	Path string
	URL  string
}

// DialectFor maps a STORE_DRIVER value to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return NewSQLiteDialect(), nil
	case "postgres", "postgresql":
		return NewPostgresDialect(), nil
	case "mysql":
		return NewMySQLDialect(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

// numberPlaceholders turns each ? into $1, $2, ... in order of appearance.
func numberPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// serverPool sizes the pool for a networked backend. The bot issues at most
// a couple of writes at once, so a small pool is enough.
func serverPool(db *sql.DB) {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
}
