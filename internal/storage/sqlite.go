// Package storage provides the SQLite database handle and repository
// implementations for the deck tracker entities.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/deck-tracker/internal/config"
)

// DB wraps the SQLite connection handle. It is constructed once and passed
// into every repository; no package-level singleton exists.
type DB struct {
	sql *sql.DB
}

// NewDB opens the SQLite database file with WAL journaling, foreign key
// enforcement and a busy timeout. The file is created when absent.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	// modernc.org/sqlite applies pragmas passed as _pragma=name(value) on
	// every connection it opens, so the settings survive connection recycling.
	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path,
		cfg.BusyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer; serializing writes through one
	// connection avoids SQLITE_BUSY under concurrent upserts while WAL keeps
	// readers unblocked.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{sql: db}, nil
}

// Close closes the database handle
func (db *DB) Close() error {
	if db.sql != nil {
		return db.sql.Close()
	}
	return nil
}

// SQL returns the underlying handle for raw queries
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error. Batch upserts use this so a conflict aborts the whole batch.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
