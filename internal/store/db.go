package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL engine behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps sql.DB for Postgres (pgx) or SQLite.
type DB struct {
	Client  *sql.DB
	Dialect Dialect
}

// Open connects using a postgres:// URL or a sqlite://path URL and makes sure the schema exists.
func Open(ctx context.Context, url string, maxOpenConns int) (*DB, error) {
	driver, dsn, dialect, err := parseURL(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{Client: db, Dialect: dialect}
	if err := d.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func parseURL(url string) (driver, dsn string, dialect Dialect, err error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", url, Postgres, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", "", "", errors.New("sqlite url needs a file path")
		}
		if dir := filepath.Dir(strings.SplitN(path, "?", 2)[0]); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", "", "", fmt.Errorf("create db dir: %w", err)
			}
		}
		// immediate transactions take the write lock up front so check-then-insert units serialize
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return "sqlite3", path + sep + "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", SQLite, nil
	default:
		return "", "", "", fmt.Errorf("unsupported database url %q", url)
	}
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := postgresSchema
	if d.Dialect == SQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var postgresSchema = []string{`
	CREATE TABLE IF NOT EXISTS employees (
		id          BIGSERIAL PRIMARY KEY,
		employee_id VARCHAR(50)  NOT NULL,
		full_name   VARCHAR(100) NOT NULL,
		email       VARCHAR(254) NOT NULL,
		department  VARCHAR(100) NOT NULL,
		CONSTRAINT employees_employee_id_key UNIQUE (employee_id),
		CONSTRAINT employees_email_key UNIQUE (email)
	)`, `
	CREATE TABLE IF NOT EXISTS attendance (
		id          BIGSERIAL PRIMARY KEY,
		employee_id BIGINT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		date        DATE NOT NULL,
		status      VARCHAR(10) NOT NULL CHECK (status IN ('Present', 'Absent')),
		CONSTRAINT attendance_employee_date_key UNIQUE (employee_id, date)
	)`,
}

var sqliteSchema = []string{`
	CREATE TABLE IF NOT EXISTS employees (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL UNIQUE CHECK (length(employee_id) <= 50),
		full_name   TEXT NOT NULL CHECK (length(full_name) <= 100),
		email       TEXT NOT NULL UNIQUE,
		department  TEXT NOT NULL CHECK (length(department) <= 100)
	)`, `
	CREATE TABLE IF NOT EXISTS attendance (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		date        DATE NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('Present', 'Absent')),
		UNIQUE (employee_id, date)
	)`,
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (d *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return d.inTx(ctx, nil, fn)
}

// InReadTx runs fn against a single snapshot so related reads cannot straddle a
// concurrent commit. Postgres uses a read-only repeatable read transaction;
// SQLite transactions already hold the write lock for their whole span.
func (d *DB) InReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var opts *sql.TxOptions
	if d.Dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return d.inTx(ctx, opts, fn)
}

func (d *DB) inTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := d.Client.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// UniqueViolation reports whether err came from a unique constraint. The returned
// detail is the constraint name (postgres) or the engine message naming the columns (sqlite).
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return liteErr.Error(), true
	}
	return "", false
}

// ForeignKeyViolation reports whether err came from a foreign key constraint.
func ForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
