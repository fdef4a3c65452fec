// Package sqlite persists hint budget state in a local SQLite database.
// This is the default store for single-machine deployments.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and foreign keys enabled.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Verify connectivity
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Set connection pool for single-writer SQLite
	db.SetMaxOpenConns(1)

	return &DB{DB: db}, nil
}

// EnsureSchema creates the budget table when it does not exist yet
func (db *DB) EnsureSchema() error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS hint_budgets (
		scope       TEXT NOT NULL,
		loop_id     TEXT NOT NULL,
		tokens      INTEGER NOT NULL,
		tier        INTEGER NOT NULL,
		updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (scope, loop_id)
	)`)
	if err != nil {
		return fmt.Errorf("create hint_budgets: %w", err)
	}
	return nil
}
