// Package database manages the DuckDB connection used by the analytical
// queries. The connection is created once at startup and handed explicitly to
// every component that needs it; there is no ambient global handle.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// Manager wraps an in-memory DuckDB connection configured for the pipeline.
type Manager struct {
	db      *sql.DB
	threads int
	logger  *slog.Logger
}

// NewManager opens an in-memory DuckDB database and applies the worker-count
// pragma. The parquet input is read through read_parquet, so no on-disk
// database file is involved.
func NewManager(threads int, logger *slog.Logger) (*Manager, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA threads=%d", threads)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set duckdb threads: %w", err)
	}

	logger.Info("Opened analytical engine", slog.Int("threads", threads))
	return &Manager{db: db, threads: threads, logger: logger}, nil
}

// DB returns the underlying connection handle.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Threads returns the worker count the engine was configured with.
func (m *Manager) Threads() int {
	return m.threads
}

// Close releases the connection.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
