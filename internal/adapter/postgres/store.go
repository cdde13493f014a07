package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/run"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Runs ---

const runColumns = `id, project_id, status, current_gate, declared_test_path, canonical_test_path,
	danger_mode, report, error, version, started_at, completed_at, created_at, updated_at`

func scanRun(row scannable) (run.Run, error) {
	var r run.Run
	err := row.Scan(&r.ID, &r.ProjectID, &r.Status, &r.CurrentGate, &r.DeclaredTestPath,
		&r.CanonicalTestPath, &r.DangerMode, &r.Report, &r.Error, &r.Version,
		&r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("create run: %s: %w", err, domain.ErrValidation)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, project_id, status, current_gate, declared_test_path, canonical_test_path, danger_mode, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.ProjectID, r.Status, r.CurrentGate, r.DeclaredTestPath,
		r.CanonicalTestPath, r.DangerMode, r.Version, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*run.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, id)

	r, err := scanRun(row)
	if err != nil {
		return nil, notFoundWrap(err, "get run %s", id)
	}
	return &r, nil
}

func (s *Store) ListRunsByProject(ctx context.Context, projectID string) ([]run.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []run.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UpdateRunStatus advances the lifecycle under optimistic locking. A stale
// version means another writer got there first.
func (s *Store) UpdateRunStatus(ctx context.Context, id string, status run.Status, currentGate int, version int) error {
	started := ""
	if status == run.StatusRunning {
		started = ", started_at = now()"
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, current_gate = $3, version = version + 1, updated_at = now()`+started+`
		 WHERE id = $1 AND version = $4`,
		id, status, currentGate, version)
	if err != nil {
		return fmt.Errorf("update run status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run status %s: %w", id, domain.ErrConflict)
	}
	return nil
}

func (s *Store) UpdateRunPath(ctx context.Context, id string, canonicalPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET canonical_test_path = $2, updated_at = now() WHERE id = $1`,
		id, canonicalPath)
	return execExpectOne(tag, err, "update run path %s", id)
}

func (s *Store) CompleteRun(ctx context.Context, id string, status run.Status, report, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $2, report = $3, error = $4, version = version + 1,
		        completed_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, status, report, errMsg)
	return execExpectOne(tag, err, "complete run %s", id)
}
