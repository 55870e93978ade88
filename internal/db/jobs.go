package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateJob inserts a recurring job definition. Frequency is stored as whole
// seconds.
func (db *DB) CreateJob(ctx context.Context, job *JobDefinition) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal job config: %w", err)
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO job_definitions (id, name, active, collection_id, source_folder,
		                              allowed_extensions, cursor, frequency_seconds,
		                              next_run_at, config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		job.ID, job.Name, job.Active, job.CollectionID, job.SourceFolder,
		job.AllowedExtensions, job.Cursor, int64(job.Frequency.Seconds()),
		job.NextRunAt, configJSON,
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job definition by ID. Returns nil without error when
// missing.
func (db *DB) GetJob(ctx context.Context, jobID uuid.UUID) (*JobDefinition, error) {
	job, err := db.scanJob(db.pool.QueryRow(ctx, jobSelect+` WHERE id = $1`, jobID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListDueJobs retrieves active jobs whose next run time has arrived.
func (db *DB) ListDueJobs(ctx context.Context, now time.Time) ([]JobDefinition, error) {
	rows, err := db.pool.Query(ctx,
		jobSelect+` WHERE active AND next_run_at IS NOT NULL AND next_run_at <= $1
		 ORDER BY next_run_at`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobDefinition
	for rows.Next() {
		job, err := db.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// ListJobs retrieves all job definitions.
func (db *DB) ListJobs(ctx context.Context) ([]JobDefinition, error) {
	rows, err := db.pool.Query(ctx, jobSelect+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobDefinition
	for rows.Next() {
		job, err := db.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// AdvanceJobSchedule records a completed tick: last/next run times and a
// forward-only cursor advance (GREATEST keeps an already-newer cursor).
func (db *DB) AdvanceJobSchedule(ctx context.Context, jobID uuid.UUID, lastRun, nextRun time.Time, cursor *time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE job_definitions
		 SET last_run_at = $1, next_run_at = $2,
		     cursor = GREATEST(COALESCE(cursor, 'epoch'::timestamptz), COALESCE($3, cursor, 'epoch'::timestamptz))
		 WHERE id = $4`,
		lastRun, nextRun, cursor, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to advance job schedule: %w", err)
	}
	return nil
}

// AddJobCounters accumulates a completed run's results into the job's
// lifetime counters.
func (db *DB) AddJobCounters(ctx context.Context, jobID uuid.UUID, runs, processed, labeled, errors int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE job_definitions
		 SET total_runs = total_runs + $1, images_processed = images_processed + $2,
		     images_labeled = images_labeled + $3, error_count = error_count + $4
		 WHERE id = $5`,
		runs, processed, labeled, errors, jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job counters: %w", err)
	}
	return nil
}

const jobSelect = `SELECT id, name, active, collection_id, source_folder, allowed_extensions,
       cursor, frequency_seconds, last_run_at, next_run_at, total_runs, images_processed,
       images_labeled, error_count, config, created_at
FROM job_definitions`

func (db *DB) scanJob(row pgx.Row) (*JobDefinition, error) {
	var job JobDefinition
	var freqSeconds int64
	var configJSON []byte

	err := row.Scan(&job.ID, &job.Name, &job.Active, &job.CollectionID, &job.SourceFolder,
		&job.AllowedExtensions, &job.Cursor, &freqSeconds, &job.LastRunAt, &job.NextRunAt,
		&job.TotalRuns, &job.ImagesProcessed, &job.ImagesLabeled, &job.ErrorCount,
		&configJSON, &job.CreatedAt)
	if err != nil {
		return nil, err
	}

	job.Frequency = time.Duration(freqSeconds) * time.Second
	if configJSON != nil {
		_ = json.Unmarshal(configJSON, &job.Config)
	}
	return &job, nil
}
