package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRun inserts a pending run with its configuration snapshots and
// returns the stored record.
func (db *DB) CreateRun(ctx context.Context, run *Run) error {
	chainJSON, err := json.Marshal(run.Chain)
	if err != nil {
		return fmt.Errorf("failed to marshal chain: %w", err)
	}
	selectionJSON, err := json.Marshal(run.Selection)
	if err != nil {
		return fmt.Errorf("failed to marshal selection: %w", err)
	}
	pricingJSON, err := json.Marshal(run.Pricing)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing: %w", err)
	}
	modelJSON, err := json.Marshal(run.Model)
	if err != nil {
		return fmt.Errorf("failed to marshal model config: %w", err)
	}

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO runs (id, collection_id, job_id, status, question_type, estimated_cost,
		                   chain, selection, pricing, model)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		run.ID, run.CollectionID, run.JobID, RunPending, run.QuestionType, run.EstimatedCost,
		chainJSON, selectionJSON, pricingJSON, modelJSON,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	run.Status = RunPending
	return nil
}

// GetRun retrieves a run by ID. Returns nil without error when not found.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var chainJSON, selectionJSON, pricingJSON, modelJSON, confusionJSON, breakdownJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, collection_id, job_id, status, progress, total_images, processed_images,
		        failed_images, accuracy, confusion, estimated_cost, actual_cost, cost_breakdown,
		        eta_seconds, error_message, question_type, chain, selection, pricing, model,
		        started_at, completed_at, created_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.CollectionID, &run.JobID, &run.Status, &run.Progress, &run.TotalImages,
		&run.Processed, &run.Failed, &run.Accuracy, &confusionJSON, &run.EstimatedCost,
		&run.ActualCost, &breakdownJSON, &run.ETASeconds, &run.ErrorMessage, &run.QuestionType,
		&chainJSON, &selectionJSON, &pricingJSON, &modelJSON,
		&run.StartedAt, &run.CompletedAt, &run.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	_ = json.Unmarshal(chainJSON, &run.Chain)
	_ = json.Unmarshal(selectionJSON, &run.Selection)
	_ = json.Unmarshal(pricingJSON, &run.Pricing)
	_ = json.Unmarshal(modelJSON, &run.Model)
	if confusionJSON != nil {
		_ = json.Unmarshal(confusionJSON, &run.Confusion)
	}
	if breakdownJSON != nil {
		_ = json.Unmarshal(breakdownJSON, &run.CostBreakdown)
	}
	return &run, nil
}

// StartRun transitions a run to running and records its start time and total
// item count.
func (db *DB) StartRun(ctx context.Context, runID uuid.UUID, totalImages int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1, total_images = $2, started_at = NOW() WHERE id = $3`,
		RunRunning, totalImages, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// UpdateRunProgress writes the current counters, progress percentage, ETA and
// running actual cost.
func (db *DB) UpdateRunProgress(ctx context.Context, runID uuid.UUID, processed, failed int, progress float64, etaSeconds *float64, actualCost float64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE runs SET processed_images = $1, failed_images = $2, progress = $3,
		        eta_seconds = $4, actual_cost = $5
		 WHERE id = $6`,
		processed, failed, progress, etaSeconds, actualCost, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	return nil
}

// CompleteRun writes the final summary and terminal status.
func (db *DB) CompleteRun(ctx context.Context, run *Run) error {
	var confusionJSON []byte
	if run.Confusion != nil {
		confusionJSON, _ = json.Marshal(run.Confusion)
	}
	breakdownJSON, _ := json.Marshal(run.CostBreakdown)

	_, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1, progress = $2, processed_images = $3, failed_images = $4,
		        accuracy = $5, confusion = $6, actual_cost = $7, cost_breakdown = $8,
		        error_message = $9, eta_seconds = NULL, completed_at = NOW()
		 WHERE id = $10`,
		run.Status, run.Progress, run.Processed, run.Failed,
		run.Accuracy, confusionJSON, run.ActualCost, breakdownJSON,
		run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// ResetOrphanedRuns flips runs left in running state by a crashed process
// back to pending with zeroed counters. Called once at startup; the restarted
// run re-executes from zero and its result upserts overwrite stale records.
func (db *DB) ResetOrphanedRuns(ctx context.Context) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1, progress = 0, processed_images = 0, failed_images = 0,
		        accuracy = NULL, confusion = NULL, eta_seconds = NULL, started_at = NULL
		 WHERE status = $2`,
		RunPending, RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset orphaned runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListPendingRunIDs retrieves ids of runs awaiting execution, oldest first.
// Used at startup to re-execute runs reset by ResetOrphanedRuns.
func (db *DB) ListPendingRunIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id FROM runs WHERE status = $1 ORDER BY created_at`, RunPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending runs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListRuns retrieves recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, collection_id, job_id, status, progress, total_images, processed_images,
		        failed_images, accuracy, estimated_cost, actual_cost, error_message,
		        started_at, completed_at, created_at
		 FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.CollectionID, &run.JobID, &run.Status, &run.Progress,
			&run.TotalImages, &run.Processed, &run.Failed, &run.Accuracy, &run.EstimatedCost,
			&run.ActualCost, &run.ErrorMessage, &run.StartedAt, &run.CompletedAt, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// RunningRunExistsForJob reports whether a job currently has a run in
// pending or running state, for scheduler overlap prevention.
func (db *DB) RunningRunExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM runs WHERE job_id = $1 AND status IN ($2, $3))`,
		jobID, RunPending, RunRunning,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check running runs for job: %w", err)
	}
	return exists, nil
}
