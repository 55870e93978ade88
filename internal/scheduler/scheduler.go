// Package scheduler drives recurring jobs: on each tick it finds due job
// definitions, discovers new source files past the job's cursor, ingests
// them, and executes a run over the ingested items.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/discovery"
	"github.com/jonathan/image-labeler/internal/ingestion"
	"github.com/jonathan/image-labeler/internal/selection"
	"github.com/jonathan/image-labeler/internal/storage"
)

// JobStore is the job/run persistence the scheduler needs.
type JobStore interface {
	ListDueJobs(ctx context.Context, now time.Time) ([]db.JobDefinition, error)
	RunningRunExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error)
	AdvanceJobSchedule(ctx context.Context, jobID uuid.UUID, lastRun, nextRun time.Time, cursor *time.Time) error
	AddJobCounters(ctx context.Context, jobID uuid.UUID, runs, processed, labeled, errors int) error
	CreateRun(ctx context.Context, run *db.Run) error
	GetRun(ctx context.Context, runID uuid.UUID) (*db.Run, error)
}

// Ingester moves discovered files into a collection.
type Ingester interface {
	Ingest(ctx context.Context, collectionID uuid.UUID, files []storage.FileInfo) (*ingestion.Result, error)
}

// RunExecutor executes a pending run to a terminal state.
type RunExecutor interface {
	Execute(ctx context.Context, runID uuid.UUID) error
}

// Scheduler evaluates due jobs on each tick.
type Scheduler struct {
	store  JobStore
	blobs  storage.Store
	ingest Ingester
	runner RunExecutor
	logger *slog.Logger
}

// New creates a job scheduler.
func New(store JobStore, blobs storage.Store, ingest Ingester, runner RunExecutor, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, blobs: blobs, ingest: ingest, runner: runner, logger: logger}
}

// Tick processes every job due at now. One job's failure is logged and does
// not stop the others.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	jobs, err := s.store.ListDueJobs(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list due jobs: %w", err)
	}

	for _, job := range jobs {
		if err := s.runJob(ctx, job, now); err != nil {
			s.logger.Error("job tick failed", "job_id", job.ID, "name", job.Name, "error", err)
		}
	}
	return nil
}

// runJob performs one tick for a single job: overlap check, discovery,
// ingestion, run execution, then schedule and counter updates.
func (s *Scheduler) runJob(ctx context.Context, job db.JobDefinition, now time.Time) error {
	running, err := s.store.RunningRunExistsForJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if running {
		// Overlap prevention: a due job with an active run is a no-op.
		s.logger.Info("scheduling conflict, job already has an active run", "job_id", job.ID, "name", job.Name)
		return nil
	}

	files, err := discovery.Scan(ctx, s.blobs, job.SourceFolder, job.Cursor, job.AllowedExtensions)
	if err != nil {
		return fmt.Errorf("failed to scan source folder: %w", err)
	}

	// The schedule advances whether or not anything was found; the cursor
	// only moves when new files appeared.
	var cursor *time.Time
	if len(files) > 0 {
		max := discovery.MaxCreatedAt(files)
		cursor = &max
	}
	if err := s.store.AdvanceJobSchedule(ctx, job.ID, now, now.Add(job.Frequency), cursor); err != nil {
		return err
	}

	if len(files) == 0 {
		s.logger.Debug("no new files for job", "job_id", job.ID)
		return nil
	}

	result, err := s.ingest.Ingest(ctx, job.CollectionID, files)
	if err != nil {
		return fmt.Errorf("failed to ingest files: %w", err)
	}
	if len(result.Ingested) == 0 {
		return s.store.AddJobCounters(ctx, job.ID, 0, 0, 0, result.Failed)
	}

	run, err := s.createRun(ctx, job, result.Ingested)
	if err != nil {
		return err
	}

	s.logger.Info("job run starting",
		"job_id", job.ID, "run_id", run.ID, "items", len(result.Ingested))
	if err := s.runner.Execute(ctx, run.ID); err != nil {
		s.logger.Warn("job run ended with error", "job_id", job.ID, "run_id", run.ID, "error", err)
	}

	final, err := s.store.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if final == nil {
		return fmt.Errorf("run %s vanished after execution", run.ID)
	}

	labeled := final.Processed - final.Failed
	return s.store.AddJobCounters(ctx, job.ID, 1, final.Processed, labeled, final.Failed+result.Failed)
}

// createRun builds a pending run over exactly the items ingested this tick,
// snapshotting the job's configuration.
func (s *Scheduler) createRun(ctx context.Context, job db.JobDefinition, items []db.Item) (*db.Run, error) {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	jobID := job.ID
	run := &db.Run{
		CollectionID: job.CollectionID,
		JobID:        &jobID,
		QuestionType: job.Config.QuestionType,
		Chain:        job.Config.Chain,
		Selection:    selection.Config{Mode: selection.ModeManual, ImageIDs: ids},
		Pricing:      job.Config.Pricing,
		Model:        job.Config.Model,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run for job: %w", err)
	}
	return run, nil
}

// RunLoop ticks at a fixed interval until the context is cancelled. The first
// tick fires immediately.
func (s *Scheduler) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx, time.Now()); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
