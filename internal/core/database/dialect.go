package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/markdave123-py/Inkwell/internal/core"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// dialect captures the few places where Postgres and SQLite disagree.
type dialect struct {
	driver     string
	script     string
	lockSuffix string // row lock appended to the project lookup
	txOptions  *sql.TxOptions
	metaExists string
}

var dialects = map[string]dialect{
	DriverPostgres: {
		driver:     DriverPostgres,
		script:     "scripts/initdb_postgres.sql",
		lockSuffix: " FOR UPDATE",
		txOptions:  &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		metaExists: `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'inkwell_meta')`,
	},
	// A single connection serializes every transaction.
	DriverSQLite: {
		driver:     DriverSQLite,
		script:     "scripts/initdb_sqlite.sql",
		metaExists: `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'inkwell_meta')`,
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// isUniqueViolation reports whether err was raised by a UNIQUE or PRIMARY KEY
// constraint in either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}

// mapWriteErr converts constraint failures into core.ErrConflict and wraps
// everything else with op.
func mapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, core.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
