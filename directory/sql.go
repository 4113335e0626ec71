package directory

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	createAdminsTable = `CREATE TABLE IF NOT EXISTS admins (
	email      TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	selectAdminEmails = `SELECT email FROM admins ORDER BY created_at, email`
)

// SQL reads admin addresses from the admins table.
type SQL struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open connects to the directory database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("directory: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("directory: open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("directory: ping %s: %w", driver, err)
	}
	return db, nil
}

// NewSQL wraps an open database handle.
func NewSQL(db *sql.DB, log zerolog.Logger) *SQL {
	return &SQL{db: db, log: log}
}

// EnsureSchema creates the admins table when it does not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createAdminsTable); err != nil {
		return fmt.Errorf("directory: create schema: %w", err)
	}
	return nil
}

// AdminEmails returns every admin address, oldest first.
func (s *SQL) AdminEmails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, selectAdminEmails)
	if err != nil {
		return nil, fmt.Errorf("directory: query admins: %w", err)
	}
	defer rows.Close()

	var raw []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("directory: scan admin: %w", err)
		}
		raw = append(raw, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate admins: %w", err)
	}
	return normalizeAll(raw, s.log), nil
}
