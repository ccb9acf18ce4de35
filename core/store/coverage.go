package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/tfstbench/core/coverage"
	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
)

// Injectable functions for testing.
var (
	now      = time.Now
	newRunID = uuid.NewString
)

// CoverageRun describes an archived coverage table.
type CoverageRun struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	Graphs    int       `json:"graphs"`
}

// SaveCoverage archives a table under a new run id.
func (s *Store) SaveCoverage(ctx context.Context, label string, t *coverage.Table) (*CoverageRun, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no coverage table", tfsterrors.ErrInvalidInput)
	}
	run := &CoverageRun{
		ID:        newRunID(),
		Label:     label,
		CreatedAt: now().UTC().Truncate(time.Second),
		Graphs:    t.Graphs(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO coverage_runs (id, label, created_at, graphs) VALUES (?, ?, ?, ?)`,
		run.ID, run.Label, run.CreatedAt.Format(time.RFC3339), run.Graphs); err != nil {
		return nil, fmt.Errorf("saving coverage run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO coverage_cells (run_id, graph, cell, hits) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for g, cells := range t.Counts() {
		for c, hits := range cells {
			if _, err := stmt.ExecContext(ctx, run.ID, g+1, c, hits); err != nil {
				return nil, fmt.Errorf("saving coverage cell: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return run, nil
}

// LoadCoverage rebuilds an archived table.
func (s *Store) LoadCoverage(ctx context.Context, id string) (*coverage.Table, *CoverageRun, error) {
	run, err := s.coverageRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	counts := make([][]int, run.Graphs)
	rows, err := s.db.QueryContext(ctx,
		`SELECT graph, cell, hits FROM coverage_cells WHERE run_id = ? ORDER BY graph, cell`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var g, c, hits int
		if err := rows.Scan(&g, &c, &hits); err != nil {
			return nil, nil, err
		}
		if g < 1 || g > run.Graphs || c != len(counts[g-1]) {
			return nil, nil, tfsterrors.NewInvariant("load coverage", fmt.Sprintf("run %s: unexpected cell %d of graph %d", id, c, g))
		}
		counts[g-1] = append(counts[g-1], hits)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return coverage.FromCounts(counts), run, nil
}

func (s *Store) coverageRun(ctx context.Context, id string) (*CoverageRun, error) {
	var run CoverageRun
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label, created_at, graphs FROM coverage_runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Label, &created, &run.Graphs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: coverage run %s", tfsterrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("coverage run %s: %w", id, err)
	}
	return &run, nil
}

// CoverageRuns lists the archived runs, newest first.
func (s *Store) CoverageRuns(ctx context.Context) ([]CoverageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, created_at, graphs FROM coverage_runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []CoverageRun
	for rows.Next() {
		var run CoverageRun
		var created string
		if err := rows.Scan(&run.ID, &run.Label, &created, &run.Graphs); err != nil {
			return nil, err
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("coverage run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteCoverage removes a run and its cells.
func (s *Store) DeleteCoverage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM coverage_runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: coverage run %s", tfsterrors.ErrNotFound, id)
	}
	return nil
}
