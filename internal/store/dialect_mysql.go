package store

import (
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLDialect talks to MySQL or MariaDB using DATABASE_URL in the driver's
// DSN format (user:pass@tcp(host:3306)/db).
type MySQLDialect struct{}

func NewMySQLDialect() *MySQLDialect { return &MySQLDialect{} }

func (*MySQLDialect) DriverName() string { return "mysql" }

// DSN forces parseTime and UTC on the configured URL. An unparseable URL is
// passed through so sql.Open reports the error.
func (*MySQLDialect) DSN(cfg DialectConfig) string {
	c, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return cfg.URL
	}
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN()
}

func (*MySQLDialect) RewriteQuery(query string) string { return query }

func (*MySQLDialect) ConfigureConnection(db *sql.DB) error {
	serverPool(db)
	return nil
}

func (*MySQLDialect) MigrationsSubdir() string { return "mysql" }

func (*MySQLDialect) CreateMigrationsTableQuery() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	filename VARCHAR(255) NOT NULL UNIQUE,
	executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
)`
}
