// Package store provides SQLite persistence for sessions, messages, tool
// operations, analysis requests, analytics payloads, turn summaries and
// flowcharts. All repositories share one *sql.DB handle.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// DB wraps the shared connection pool. Repositories are cheap views over
// the same handle; clone freely.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// WAL mode and synchronous=NORMAL are set for concurrent reader safety.
func Open(path string) (*DB, error) {
	if path == "" || path == ":memory:" {
		return OpenInMemory()
	}

	// Pragmas ride in the DSN so every pooled connection gets them;
	// _txlock=immediate makes every write transaction take the write lock
	// up front, serializing the check-then-insert in the request repo.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate"+
		"&_pragma=journal_mode(WAL)"+
		"&_pragma=synchronous(NORMAL)"+
		"&_pragma=foreign_keys(1)"+
		"&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &DB{db: db}
	if err := d.init(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenInMemory opens a fresh in-memory database. Used by tests and the
// transient query paths.
func OpenInMemory() (*DB, error) {
	// A single connection keeps every statement on the same in-memory
	// database; a second pooled connection would see an empty schema.
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.init(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) init() error {
	// DSN pragmas don't apply to the bare in-memory path, so set the ones
	// that matter there explicitly. Redundant on file databases.
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := d.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return applySchema(d.db)
}

// Handle exposes the raw *sql.DB for repositories.
func (d *DB) Handle() *sql.DB { return d.db }

// Close closes the underlying pool.
func (d *DB) Close() error { return d.db.Close() }

// Ping verifies the connection.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }
