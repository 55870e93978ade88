// Package engine executes runs: it resolves target items, preloads their
// bytes, and drives the prompt chain over every item with bounded
// parallelism, isolating per-item failures so one bad item never aborts a
// run.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/image-labeler/internal/chain"
	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/llm"
	"github.com/jonathan/image-labeler/internal/parsing"
	"github.com/jonathan/image-labeler/internal/pricing"
	"github.com/jonathan/image-labeler/internal/selection"
	"github.com/jonathan/image-labeler/internal/storage"
)

const (
	// MinConcurrency and MaxConcurrency bound the number of simultaneously
	// in-flight provider calls per run. Values outside the range are clamped.
	MinConcurrency = 1
	MaxConcurrency = 100

	// failureThreshold is the failed/total ratio above which a finished run
	// is marked failed instead of completed.
	failureThreshold = 0.5
)

// RunStore is the run/result persistence the orchestrator needs.
type RunStore interface {
	GetRun(ctx context.Context, runID uuid.UUID) (*db.Run, error)
	StartRun(ctx context.Context, runID uuid.UUID, totalImages int) error
	UpdateRunProgress(ctx context.Context, runID uuid.UUID, processed, failed int, progress float64, etaSeconds *float64, actualCost float64) error
	CompleteRun(ctx context.Context, run *db.Run) error
	UpsertResult(ctx context.Context, rec *db.ResultRecord) error
}

// ItemRepository lists the items a run targets.
type ItemRepository interface {
	ListForSelection(ctx context.Context, collectionID uuid.UUID, sel selection.Config) ([]db.Item, error)
}

// Runner executes runs to completion.
type Runner struct {
	store     RunStore
	items     ItemRepository
	blobs     storage.Store
	providers llm.Registry
	logger    *slog.Logger
}

// NewRunner creates a run orchestrator.
func NewRunner(store RunStore, items ItemRepository, blobs storage.Store, providers llm.Registry, logger *slog.Logger) *Runner {
	return &Runner{store: store, items: items, blobs: blobs, providers: providers, logger: logger}
}

// Execute runs a pending run to a terminal state. Per-item errors become
// failed result records; only setup-level errors (run missing, invalid chain,
// no items, unknown provider) abort execution, and those are persisted as a
// failed run before returning.
func (r *Runner) Execute(ctx context.Context, runID uuid.UUID) error {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	if run.Status != db.RunPending {
		return fmt.Errorf("run %s is %s, expected pending", runID, run.Status)
	}

	if err := chain.Validate(run.Chain); err != nil {
		return r.failRun(ctx, run, fmt.Errorf("invalid chain: %w", err))
	}
	if !run.QuestionType.Valid() {
		return r.failRun(ctx, run, fmt.Errorf("unknown question type %q", run.QuestionType))
	}
	provider, err := r.providers.Get(run.Model.Provider)
	if err != nil {
		return r.failRun(ctx, run, err)
	}

	items, err := r.items.ListForSelection(ctx, run.CollectionID, run.Selection)
	if err != nil {
		return r.failRun(ctx, run, fmt.Errorf("failed to resolve items: %w", err))
	}
	if len(items) == 0 {
		return r.failRun(ctx, run, fmt.Errorf("selection matched no items"))
	}

	if err := r.store.StartRun(ctx, runID, len(items)); err != nil {
		return err
	}
	run.TotalImages = len(items)
	r.logger.Info("run started",
		"run_id", runID, "items", len(items),
		"provider", run.Model.Provider, "model", run.Model.Model)

	track := &tracker{
		store:       r.store,
		logger:      r.logger,
		runID:       runID,
		total:       len(items),
		concurrency: clampConcurrency(run.Model.Concurrency),
		startedAt:   time.Now(),
	}

	var (
		recordMu sync.Mutex
		records  []db.ResultRecord
	)
	record := func(ctx context.Context, rec db.ResultRecord) {
		if err := r.store.UpsertResult(ctx, &rec); err != nil {
			r.logger.Error("failed to persist result record",
				"run_id", runID, "item_id", rec.ItemID, "error", err)
		}
		recordMu.Lock()
		records = append(records, rec)
		recordMu.Unlock()
		track.complete(ctx, rec.Status == db.ResultFailure, rec.Cost)
	}

	// Preload phase: fetch source bytes for every item without throttling.
	// Provider rate limits do not apply to storage reads. Items that cannot
	// be loaded are recorded as failures and skipped.
	images := make(map[uuid.UUID][]byte, len(items))
	var (
		imageMu  sync.Mutex
		loadable []db.Item
	)
	preload, preloadCtx := errgroup.WithContext(ctx)
	for _, item := range items {
		preload.Go(func() error {
			data, err := r.blobs.Download(preloadCtx, item.StoragePath)
			if err != nil {
				r.logger.Warn("failed to preload item",
					"run_id", runID, "item_id", item.ID, "path", item.StoragePath, "error", err)
				record(preloadCtx, failedRecord(runID, item, fmt.Errorf("failed to load source bytes: %w", err), nil))
				return nil
			}
			imageMu.Lock()
			images[item.ID] = data
			loadable = append(loadable, item)
			imageMu.Unlock()
			return nil
		})
	}
	if err := preload.Wait(); err != nil {
		return r.failRun(ctx, run, err)
	}
	if len(loadable) == 0 {
		return r.completeRun(ctx, run, records, fmt.Errorf("no items could be loaded"))
	}

	// Labelling phase: the chain runs over each item under a counting
	// semaphore. Steps within one item are strictly sequential; items are
	// independent.
	sem := semaphore.NewWeighted(int64(track.concurrency))
	group, groupCtx := errgroup.WithContext(ctx)
	for _, item := range loadable {
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			rec := r.processItem(groupCtx, run, provider, item, images[item.ID])
			record(groupCtx, rec)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return r.failRun(ctx, run, err)
	}

	return r.completeRun(ctx, run, records, nil)
}

// processItem runs the full chain over one item and returns its result
// record. All errors are captured into the record.
func (r *Runner) processItem(ctx context.Context, run *db.Run, provider llm.Provider, item db.Item, image []byte) db.ResultRecord {
	outputs := make(map[int]string, len(run.Chain))
	var (
		steps        []db.StepTrace
		totalLatency int64
		totalCost    float64
		usage        pricing.Usage
		finalText    string
	)

	for _, step := range run.Chain {
		prompt, err := chain.Resolve(step, outputs)
		if err != nil {
			steps = append(steps, db.StepTrace{StepNumber: step.StepNumber, Error: err.Error()})
			return failedRecord(run.ID, item, err, steps)
		}

		req := llm.GenerateRequest{
			Model:         run.Model.Model,
			Prompt:        prompt,
			SystemMessage: step.SystemMessage,
			Temperature:   run.Model.Temperature,
			MaxTokens:     run.Model.MaxTokens,
		}
		// The image rides on the first step only; later steps reason over
		// earlier outputs.
		hasImage := step.StepNumber == chain.MinSteps
		if hasImage {
			req.Image = image
			req.ImageMIME = imageMIME(item.Filename)
		}

		result, err := provider.Generate(ctx, req)
		if err != nil {
			steps = append(steps, db.StepTrace{StepNumber: step.StepNumber, Error: err.Error()})
			rec := failedRecord(run.ID, item, err, steps)
			rec.LatencyMs = totalLatency
			rec.Cost = pricing.Round6(totalCost)
			rec.PromptTokens = usage.PromptTokens
			rec.CompletionTokens = usage.CompletionTokens
			return rec
		}

		stepCost := provider.ActualCost(result.Usage, run.Pricing, hasImage)
		steps = append(steps, db.StepTrace{
			StepNumber:       step.StepNumber,
			RawOutput:        result.Text,
			LatencyMs:        result.LatencyMs,
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			Cost:             stepCost,
		})
		outputs[step.StepNumber] = result.Text
		totalLatency += result.LatencyMs
		totalCost += stepCost
		usage.PromptTokens += result.Usage.PromptTokens
		usage.CompletionTokens += result.Usage.CompletionTokens
		finalText = result.Text
	}

	answer := parsing.Parse(run.QuestionType, finalText)
	parsed := answer.String()

	rec := db.ResultRecord{
		RunID:            run.ID,
		ItemID:           item.ID,
		Status:           db.ResultSuccess,
		ResponseText:     finalText,
		ParsedAnswer:     &parsed,
		GroundTruth:      item.GroundTruth,
		Steps:            steps,
		LatencyMs:        totalLatency,
		Cost:             pricing.Round6(totalCost),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}
	if item.GroundTruth != nil && *item.GroundTruth != "" {
		correct := parsing.Matches(run.QuestionType, answer, *item.GroundTruth)
		rec.Correct = &correct
	}
	return rec
}

func (r *Runner) failRun(ctx context.Context, run *db.Run, cause error) error {
	msg := cause.Error()
	run.Status = db.RunFailed
	run.ErrorMessage = &msg
	if err := r.store.CompleteRun(ctx, run); err != nil {
		r.logger.Error("failed to persist failed run", "run_id", run.ID, "error", err)
	}
	return cause
}

func (r *Runner) completeRun(ctx context.Context, run *db.Run, records []db.ResultRecord, setupErr error) error {
	summarize(run, records)
	if setupErr != nil {
		msg := setupErr.Error()
		run.Status = db.RunFailed
		run.ErrorMessage = &msg
	}
	if err := r.store.CompleteRun(ctx, run); err != nil {
		return fmt.Errorf("failed to persist run summary: %w", err)
	}

	r.logger.Info("run finished",
		"run_id", run.ID, "status", run.Status,
		"processed", run.Processed, "failed", run.Failed,
		"actual_cost", run.ActualCost)
	if run.Status == db.RunFailed && setupErr != nil {
		return setupErr
	}
	return nil
}

func failedRecord(runID uuid.UUID, item db.Item, cause error, steps []db.StepTrace) db.ResultRecord {
	msg := cause.Error()
	return db.ResultRecord{
		RunID:        runID,
		ItemID:       item.ID,
		Status:       db.ResultFailure,
		GroundTruth:  item.GroundTruth,
		Steps:        steps,
		ErrorMessage: &msg,
	}
}

func clampConcurrency(n int) int {
	if n < MinConcurrency {
		return MinConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func imageMIME(filename string) string {
	if mime, ok := mimeByExt[path.Ext(filename)]; ok {
		return mime
	}
	return "image/jpeg"
}

// tracker accumulates completion counters and persists progress after each
// item. ETA is recomputed every concurrency-th completion so the estimate
// settles instead of jittering per item.
type tracker struct {
	store  RunStore
	logger *slog.Logger
	runID  uuid.UUID

	total       int
	concurrency int
	startedAt   time.Time

	mu        sync.Mutex
	processed int
	failed    int
	cost      float64
	eta       *float64
}

func (t *tracker) complete(ctx context.Context, failed bool, cost float64) {
	t.mu.Lock()
	t.processed++
	if failed {
		t.failed++
	}
	t.cost += cost
	progress := float64(t.processed) / float64(t.total) * 100

	if t.processed%t.concurrency == 0 && t.processed < t.total {
		avgSec := time.Since(t.startedAt).Seconds() / float64(t.processed)
		remaining := float64(t.total - t.processed)
		eta := avgSec*(remaining/float64(t.concurrency)) + avgSec
		t.eta = &eta
	}
	// Persist under the lock so snapshots reach the store in completion
	// order and stored progress never regresses.
	if err := t.store.UpdateRunProgress(ctx, t.runID, t.processed, t.failed, progress, t.eta, pricing.Round6(t.cost)); err != nil {
		t.logger.Warn("failed to persist run progress", "run_id", t.runID, "error", err)
	}
	t.mu.Unlock()
}
