package store

import (
	"strings"
	"testing"
)

func TestDialects(t *testing.T) {
	tests := []struct {
		driver     string
		wantDriver string
		wantSubdir string
	}{
		{"sqlite", "sqlite3", "sqlite"},
		{"SQLite3", "sqlite3", "sqlite"},
		{"postgres", "postgres", "postgres"},
		{"postgresql", "postgres", "postgres"},
		{"mysql", "mysql", "mysql"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			if err != nil {
				t.Fatalf("DialectFor() error = %v", err)
			}
			if got := d.DriverName(); got != tt.wantDriver {
				t.Errorf("DriverName() = %v, want %v", got, tt.wantDriver)
			}
			if got := d.MigrationsSubdir(); got != tt.wantSubdir {
				t.Errorf("MigrationsSubdir() = %v, want %v", got, tt.wantSubdir)
			}
		})
	}

	if _, err := DialectFor("oracle"); err == nil {
		t.Error("DialectFor(oracle) should fail")
	}
}

func TestRewriteQuery(t *testing.T) {
	const stateQuery = "SELECT document FROM round_state WHERE id = ?"
	const insertWins = "INSERT INTO win_ledger (user_id, wins) VALUES (?, ?)"
	tests := []struct {
		dialect Dialect
		query   string
		want    string
	}{
		{NewSQLiteDialect(), stateQuery, stateQuery},
		{NewMySQLDialect(), insertWins, insertWins},
		{NewPostgresDialect(), insertWins, "INSERT INTO win_ledger (user_id, wins) VALUES ($1, $2)"},
		{NewPostgresDialect(), "DELETE FROM win_ledger", "DELETE FROM win_ledger"},
	}
	for _, tt := range tests {
		if got := tt.dialect.RewriteQuery(tt.query); got != tt.want {
			t.Errorf("%s RewriteQuery(%q) = %q, want %q", tt.dialect.DriverName(), tt.query, got, tt.want)
		}
	}
}

func TestDSN(t *testing.T) {
	if got := NewSQLiteDialect().DSN(DialectConfig{Path: "./data/bot.db"}); !strings.HasPrefix(got, "./data/bot.db?") {
		t.Errorf("sqlite DSN = %q", got)
	}
	got := NewMySQLDialect().DSN(DialectConfig{URL: "bot:secret@tcp(localhost:3306)/guess"})
	if !strings.Contains(got, "parseTime=true") {
		t.Errorf("mysql DSN = %q, want parseTime=true", got)
	}
	if got := NewPostgresDialect().DSN(DialectConfig{URL: "postgres://x"}); got != "postgres://x" {
		t.Errorf("postgres DSN = %q", got)
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n CREATE TABLE b (y INT);\n")
	if len(got) != 2 || got[1] != "CREATE TABLE b (y INT)" {
		t.Errorf("splitStatements() = %q", got)
	}
}
