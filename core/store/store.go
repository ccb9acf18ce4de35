// Package store archives coverage runs and indexes tag frequencies in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FocuswithJustin/tfstbench/core/sqlite"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// migrations are applied in order; see sqlite.Migrate.
var migrations = []string{
	`CREATE TABLE coverage_runs (
		id         TEXT PRIMARY KEY,
		label      TEXT NOT NULL,
		created_at TEXT NOT NULL,
		graphs     INTEGER NOT NULL
	)`,
	`CREATE TABLE coverage_cells (
		run_id TEXT NOT NULL REFERENCES coverage_runs(id) ON DELETE CASCADE,
		graph  INTEGER NOT NULL,
		cell   INTEGER NOT NULL,
		hits   INTEGER NOT NULL,
		PRIMARY KEY (run_id, graph, cell)
	)`,
	`CREATE TABLE tags (
		tag   TEXT PRIMARY KEY,
		count INTEGER NOT NULL
	)`,
}

// Store is the workbench database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	version, err := sqlite.Migrate(ctx, db, migrations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	logging.Debug("store_opened", "path", path, "schema_version", version, "driver", sqlite.DriverType())
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}
