package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// UpsertResult writes a result record keyed by (run_id, item_id). Re-running
// an item (after a restart from zero) overwrites the stale record instead of
// duplicating it.
func (db *DB) UpsertResult(ctx context.Context, rec *ResultRecord) error {
	stepsJSON, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal step trace: %w", err)
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO result_records (id, run_id, item_id, status, response_text, parsed_answer,
		                             ground_truth, correct, steps, latency_ms, cost,
		                             prompt_tokens, completion_tokens, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (run_id, item_id) DO UPDATE SET
		     status = EXCLUDED.status, response_text = EXCLUDED.response_text,
		     parsed_answer = EXCLUDED.parsed_answer, ground_truth = EXCLUDED.ground_truth,
		     correct = EXCLUDED.correct, steps = EXCLUDED.steps,
		     latency_ms = EXCLUDED.latency_ms, cost = EXCLUDED.cost,
		     prompt_tokens = EXCLUDED.prompt_tokens, completion_tokens = EXCLUDED.completion_tokens,
		     error_message = EXCLUDED.error_message, created_at = NOW()
		 RETURNING created_at`,
		rec.ID, rec.RunID, rec.ItemID, rec.Status, rec.ResponseText, rec.ParsedAnswer,
		rec.GroundTruth, rec.Correct, stepsJSON, rec.LatencyMs, rec.Cost,
		rec.PromptTokens, rec.CompletionTokens, rec.ErrorMessage,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert result record: %w", err)
	}
	return nil
}

// ListResults retrieves all result records for a run.
func (db *DB) ListResults(ctx context.Context, runID uuid.UUID) ([]ResultRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, item_id, status, response_text, parsed_answer, ground_truth,
		        correct, steps, latency_ms, cost, prompt_tokens, completion_tokens,
		        error_message, created_at
		 FROM result_records WHERE run_id = $1 ORDER BY created_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list result records: %w", err)
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		var rec ResultRecord
		var stepsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ItemID, &rec.Status, &rec.ResponseText,
			&rec.ParsedAnswer, &rec.GroundTruth, &rec.Correct, &stepsJSON, &rec.LatencyMs,
			&rec.Cost, &rec.PromptTokens, &rec.CompletionTokens, &rec.ErrorMessage,
			&rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result record: %w", err)
		}
		if stepsJSON != nil {
			_ = json.Unmarshal(stepsJSON, &rec.Steps)
		}
		records = append(records, rec)
	}
	return records, nil
}
