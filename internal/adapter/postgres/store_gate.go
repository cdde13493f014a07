package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatewright/gatewright/internal/domain/gate"
)

// --- Gate results ---

// Gate results are append-only children of a run; the per-validator detail
// rides as JSONB since only the run report reads it back.

func (s *Store) SaveGateResult(ctx context.Context, runID string, gr *gate.GateResult) error {
	validators, err := json.Marshal(gr.Validators)
	if err != nil {
		return fmt.Errorf("marshal validators: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO gate_results (run_id, gate, name, passed, passed_count, failed_count, warning_count, validators)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, gr.Gate, gr.Name, gr.Passed, gr.PassedCount, gr.FailedCount, gr.WarningCount, validators)
	if err != nil {
		return fmt.Errorf("save gate result run=%s gate=%d: %w", runID, gr.Gate, err)
	}
	return nil
}

func (s *Store) ListGateResults(ctx context.Context, runID string) ([]gate.GateResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT gate, name, passed, passed_count, failed_count, warning_count, validators
		 FROM gate_results WHERE run_id = $1 ORDER BY gate ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list gate results: %w", err)
	}
	defer rows.Close()

	var results []gate.GateResult
	for rows.Next() {
		var gr gate.GateResult
		var validators []byte
		if err := rows.Scan(&gr.Gate, &gr.Name, &gr.Passed, &gr.PassedCount,
			&gr.FailedCount, &gr.WarningCount, &validators); err != nil {
			return nil, fmt.Errorf("scan gate result: %w", err)
		}
		if err := json.Unmarshal(validators, &gr.Validators); err != nil {
			return nil, fmt.Errorf("unmarshal validators: %w", err)
		}
		results = append(results, gr)
	}
	return results, rows.Err()
}
