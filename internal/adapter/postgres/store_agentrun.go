package postgres

import (
	"context"
	"fmt"

	"github.com/gatewright/gatewright/internal/domain/agentrun"
)

// --- Agent runs ---

func (s *Store) CreateAgentRun(ctx context.Context, ar *agentrun.AgentRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_runs (id, run_id, status, started_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4)`,
		ar.ID, ar.RunID, ar.Status, ar.StartedAt)
	if err != nil {
		return fmt.Errorf("create agent run: %w", err)
	}
	return nil
}

func (s *Store) GetAgentRun(ctx context.Context, id string) (*agentrun.AgentRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(run_id::text, ''), status, input_tokens, output_tokens,
		        cache_read_tokens, cache_creation_tokens, cost_usd, error, started_at, completed_at
		 FROM agent_runs WHERE id = $1`, id)

	var ar agentrun.AgentRun
	err := row.Scan(&ar.ID, &ar.RunID, &ar.Status, &ar.Totals.InputTokens, &ar.Totals.OutputTokens,
		&ar.Totals.CacheReadTokens, &ar.Totals.CacheCreationTokens, &ar.CostUSD, &ar.Error,
		&ar.StartedAt, &ar.CompletedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get agent run %s", id)
	}
	return &ar, nil
}

func (s *Store) CompleteAgentRun(ctx context.Context, id string, status agentrun.Status, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_runs SET status = $2, error = $3, completed_at = now() WHERE id = $1`,
		id, status, errMsg)
	return execExpectOne(tag, err, "complete agent run %s", id)
}

// --- Steps ---

func (s *Store) CreateStep(ctx context.Context, st *agentrun.Step) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_steps (id, agent_run_id, step_number, phase, provider, model, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		st.ID, st.AgentRunID, st.StepNumber, st.Phase, st.Provider, st.Model, st.Status, st.StartedAt)
	if err != nil {
		return fmt.Errorf("create step %d: %w", st.StepNumber, err)
	}
	return nil
}

func (s *Store) CompleteStep(ctx context.Context, st *agentrun.Step) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_steps
		 SET status = $3, input_tokens = $4, output_tokens = $5, cache_read_tokens = $6,
		     cache_creation_tokens = $7, cost_usd = $8, iterations = $9, error = $10, completed_at = $11
		 WHERE agent_run_id = $1 AND step_number = $2 AND status = 'running'`,
		st.AgentRunID, st.StepNumber, st.Status, st.Usage.InputTokens, st.Usage.OutputTokens,
		st.Usage.CacheReadTokens, st.Usage.CacheCreationTokens, st.CostUSD, st.Iterations,
		st.Error, st.CompletedAt)
	return execExpectOne(tag, err, "complete step %d of %s", st.StepNumber, st.AgentRunID)
}

func (s *Store) ListSteps(ctx context.Context, agentRunID string) ([]agentrun.Step, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_run_id, step_number, phase, provider, model, status, input_tokens,
		        output_tokens, cache_read_tokens, cache_creation_tokens, cost_usd, iterations,
		        error, started_at, completed_at
		 FROM agent_steps WHERE agent_run_id = $1 ORDER BY step_number ASC`, agentRunID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []agentrun.Step
	for rows.Next() {
		var st agentrun.Step
		if err := rows.Scan(&st.ID, &st.AgentRunID, &st.StepNumber, &st.Phase, &st.Provider,
			&st.Model, &st.Status, &st.Usage.InputTokens, &st.Usage.OutputTokens,
			&st.Usage.CacheReadTokens, &st.Usage.CacheCreationTokens, &st.CostUSD,
			&st.Iterations, &st.Error, &st.StartedAt, &st.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// AggregateSteps recomputes run totals from its steps inside the database,
// so concurrent step writers can never double-count.
func (s *Store) AggregateSteps(ctx context.Context, agentRunID string) (*agentrun.AgentRun, error) {
	_, err := s.pool.Exec(ctx,
		`UPDATE agent_runs SET
		   input_tokens          = agg.in_tok,
		   output_tokens         = agg.out_tok,
		   cache_read_tokens     = agg.cr_tok,
		   cache_creation_tokens = agg.cc_tok,
		   cost_usd              = agg.cost
		 FROM (
		   SELECT COALESCE(SUM(input_tokens), 0)          AS in_tok,
		          COALESCE(SUM(output_tokens), 0)         AS out_tok,
		          COALESCE(SUM(cache_read_tokens), 0)     AS cr_tok,
		          COALESCE(SUM(cache_creation_tokens), 0) AS cc_tok,
		          COALESCE(SUM(cost_usd), 0)              AS cost
		   FROM agent_steps WHERE agent_run_id = $1
		 ) agg
		 WHERE id = $1`, agentRunID)
	if err != nil {
		return nil, fmt.Errorf("aggregate steps %s: %w", agentRunID, err)
	}
	return s.GetAgentRun(ctx, agentRunID)
}
