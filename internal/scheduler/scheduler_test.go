package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/image-labeler/internal/chain"
	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/ingestion"
	"github.com/jonathan/image-labeler/internal/parsing"
	"github.com/jonathan/image-labeler/internal/selection"
	"github.com/jonathan/image-labeler/internal/storage"
)

type advance struct {
	lastRun time.Time
	nextRun time.Time
	cursor  *time.Time
}

type counterUpdate struct {
	runs, processed, labeled, errors int
}

type fakeJobStore struct {
	jobs       []db.JobDefinition
	runningFor map[uuid.UUID]bool

	advances map[uuid.UUID]advance
	counters map[uuid.UUID]counterUpdate
	runs     map[uuid.UUID]*db.Run
	created  []*db.Run
}

func newFakeJobStore(jobs ...db.JobDefinition) *fakeJobStore {
	return &fakeJobStore{
		jobs:       jobs,
		runningFor: make(map[uuid.UUID]bool),
		advances:   make(map[uuid.UUID]advance),
		counters:   make(map[uuid.UUID]counterUpdate),
		runs:       make(map[uuid.UUID]*db.Run),
	}
}

func (s *fakeJobStore) ListDueJobs(_ context.Context, now time.Time) ([]db.JobDefinition, error) {
	var due []db.JobDefinition
	for _, job := range s.jobs {
		if job.Active && job.NextRunAt != nil && !job.NextRunAt.After(now) {
			due = append(due, job)
		}
	}
	return due, nil
}

func (s *fakeJobStore) RunningRunExistsForJob(_ context.Context, jobID uuid.UUID) (bool, error) {
	return s.runningFor[jobID], nil
}

func (s *fakeJobStore) AdvanceJobSchedule(_ context.Context, jobID uuid.UUID, lastRun, nextRun time.Time, cursor *time.Time) error {
	s.advances[jobID] = advance{lastRun: lastRun, nextRun: nextRun, cursor: cursor}
	for i := range s.jobs {
		if s.jobs[i].ID == jobID {
			s.jobs[i].LastRunAt = timePtr(lastRun)
			s.jobs[i].NextRunAt = timePtr(nextRun)
			if cursor != nil {
				s.jobs[i].Cursor = cursor
			}
		}
	}
	return nil
}

func (s *fakeJobStore) AddJobCounters(_ context.Context, jobID uuid.UUID, runs, processed, labeled, errors int) error {
	c := s.counters[jobID]
	c.runs += runs
	c.processed += processed
	c.labeled += labeled
	c.errors += errors
	s.counters[jobID] = c
	return nil
}

func (s *fakeJobStore) CreateRun(_ context.Context, run *db.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Status = db.RunPending
	copied := *run
	s.runs[run.ID] = &copied
	s.created = append(s.created, &copied)
	return nil
}

func (s *fakeJobStore) GetRun(_ context.Context, runID uuid.UUID) (*db.Run, error) {
	run, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

// fakeIngester turns every file into an item, except names listed in fail.
type fakeIngester struct {
	fail map[string]bool
	err  error
}

func (f *fakeIngester) Ingest(_ context.Context, collectionID uuid.UUID, files []storage.FileInfo) (*ingestion.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := &ingestion.Result{}
	for _, file := range files {
		if f.fail[file.Name] {
			result.Failed++
			continue
		}
		result.Ingested = append(result.Ingested, db.Item{
			ID:           uuid.New(),
			CollectionID: collectionID,
			Filename:     file.Name,
			StoragePath:  file.Path,
			Status:       "pending",
		})
	}
	return result, nil
}

// memCatalog backs the real ingestion pipeline in multi-tick tests.
type memCatalog struct {
	items []db.Item
}

func (c *memCatalog) FilenameExists(_ context.Context, collectionID uuid.UUID, filename string) (bool, error) {
	for _, item := range c.items {
		if item.CollectionID == collectionID && item.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (c *memCatalog) SourcePathExists(_ context.Context, collectionID uuid.UUID, sourcePath string) (bool, error) {
	for _, item := range c.items {
		if item.CollectionID == collectionID && item.SourcePath == sourcePath {
			return true, nil
		}
	}
	return false, nil
}

func (c *memCatalog) CreateItem(_ context.Context, item *db.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()
	c.items = append(c.items, *item)
	return nil
}

// fakeExecutor completes every run with preset counters.
type fakeExecutor struct {
	store    *fakeJobStore
	failures int
	executed []uuid.UUID
}

func (f *fakeExecutor) Execute(_ context.Context, runID uuid.UUID) error {
	f.executed = append(f.executed, runID)
	run := f.store.runs[runID]
	run.TotalImages = len(run.Selection.ImageIDs)
	run.Processed = run.TotalImages
	run.Failed = f.failures
	run.Status = db.RunCompleted
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time { return &t }

func testJob(now time.Time) db.JobDefinition {
	return db.JobDefinition{
		ID:           uuid.New(),
		Name:         "nightly-labels",
		Active:       true,
		CollectionID: uuid.New(),
		SourceFolder: "incoming",
		Frequency:    time.Hour,
		NextRunAt:    timePtr(now.Add(-time.Minute)),
		Config: db.JobConfig{
			Chain:        []chain.Step{{StepNumber: 1, Prompt: "Is there a person?"}},
			QuestionType: parsing.QuestionBinary,
			Model:        db.ModelConfig{Provider: "openai", Model: "gpt-test", Concurrency: 2},
		},
	}
}

func TestTickRunsDueJob(t *testing.T) {
	now := time.Now()
	job := testJob(now)
	store := newFakeJobStore(job)
	blobs := storage.NewMemStore()
	newest := now.Add(-2 * time.Minute)
	blobs.Put("incoming/a.jpg", []byte("a"), now.Add(-10*time.Minute))
	blobs.Put("incoming/b.jpg", []byte("b"), newest)

	exec := &fakeExecutor{store: store}
	sched := New(store, blobs, &fakeIngester{}, exec, testLogger())

	require.NoError(t, sched.Tick(context.Background(), now))

	require.Len(t, store.created, 1)
	run := store.created[0]
	require.NotNil(t, run.JobID)
	assert.Equal(t, job.ID, *run.JobID)
	assert.Equal(t, job.CollectionID, run.CollectionID)
	assert.Equal(t, selection.ModeManual, run.Selection.Mode)
	assert.Len(t, run.Selection.ImageIDs, 2)
	assert.Equal(t, job.Config.Chain, run.Chain)
	assert.Equal(t, []uuid.UUID{run.ID}, exec.executed)

	adv, ok := store.advances[job.ID]
	require.True(t, ok)
	assert.Equal(t, now, adv.lastRun)
	assert.Equal(t, now.Add(time.Hour), adv.nextRun)
	require.NotNil(t, adv.cursor)
	assert.True(t, adv.cursor.Equal(newest), "cursor advances to the newest discovered file")
	assert.True(t, adv.nextRun.After(adv.lastRun))

	c := store.counters[job.ID]
	assert.Equal(t, counterUpdate{runs: 1, processed: 2, labeled: 2, errors: 0}, c)
}

func TestTickSteadyStateDoesNotReingest(t *testing.T) {
	now := time.Now()
	job := testJob(now)
	store := newFakeJobStore(job)
	blobs := storage.NewMemStore()
	blobs.Put("incoming/photo.jpg", []byte("p"), now.Add(-2*time.Minute))

	catalog := &memCatalog{}
	ing := ingestion.NewPipeline(blobs, catalog, testLogger())
	exec := &fakeExecutor{store: store}
	sched := New(store, blobs, ing, exec, testLogger())

	// After the first tick the cursor sits on photo.jpg's creation time, so
	// the scan buffer keeps re-listing the file on every later tick. None of
	// those re-reads may produce a new item or a new run.
	for i := 0; i < 4; i++ {
		tick := now.Add(time.Duration(i) * (job.Frequency + time.Minute))
		require.NoError(t, sched.Tick(context.Background(), tick))
	}

	names := make([]string, 0, len(catalog.items))
	for _, item := range catalog.items {
		names = append(names, item.Filename)
	}
	require.Len(t, catalog.items, 1, "unchanged source re-ingested: %v", names)
	assert.Len(t, store.created, 1)
	c := store.counters[job.ID]
	assert.Equal(t, counterUpdate{runs: 1, processed: 1, labeled: 1, errors: 0}, c)
}

func TestTickSkipsJobWithActiveRun(t *testing.T) {
	now := time.Now()
	job := testJob(now)
	store := newFakeJobStore(job)
	store.runningFor[job.ID] = true
	blobs := storage.NewMemStore()
	blobs.Put("incoming/a.jpg", []byte("a"), now)

	exec := &fakeExecutor{store: store}
	sched := New(store, blobs, &fakeIngester{}, exec, testLogger())

	require.NoError(t, sched.Tick(context.Background(), now))

	assert.Empty(t, store.created, "conflicting trigger must be a no-op")
	assert.Empty(t, exec.executed)
	_, advanced := store.advances[job.ID]
	assert.False(t, advanced, "a skipped job stays due for the next tick")
}

func TestTickNoNewFilesAdvancesScheduleOnly(t *testing.T) {
	now := time.Now()
	job := testJob(now)
	store := newFakeJobStore(job)
	blobs := storage.NewMemStore()

	exec := &fakeExecutor{store: store}
	sched := New(store, blobs, &fakeIngester{}, exec, testLogger())

	require.NoError(t, sched.Tick(context.Background(), now))

	assert.Empty(t, store.created)
	adv, ok := store.advances[job.ID]
	require.True(t, ok)
	assert.Nil(t, adv.cursor, "cursor untouched when nothing was found")
	assert.Equal(t, now.Add(time.Hour), adv.nextRun)
}

func TestTickCursorFiltersOldFiles(t *testing.T) {
	now := time.Now()
	job := testJob(now)
	cursor := now.Add(-time.Hour)
	job.Cursor = &cursor
	store := newFakeJobStore(job)
	blobs := storage.NewMemStore()
	// Created well before cursor-60s: must not be rediscovered.
	blobs.Put("incoming/old.jpg", []byte("x"), cursor.Add(-90*time.Second))

	exec := &fakeExecutor{store: store}
	sched := New(store, blobs, &fakeIngester{}, exec, testLogger())

	require.NoError(t, sched.Tick(context.Background(), now))

	assert.Empty(t, store.created)
	adv := store.advances[job.ID]
	assert.Nil(t, adv.cursor)
}

func TestTickAllIngestionFailures(t *testing.T) {
	now := time.Now()
	job := testJob(now)
	store := newFakeJobStore(job)
	blobs := storage.NewMemStore()
	blobs.Put("incoming/a.jpg", []byte("a"), now.Add(-time.Minute))

	ing := &fakeIngester{fail: map[string]bool{"a.jpg": true}}
	exec := &fakeExecutor{store: store}
	sched := New(store, blobs, ing, exec, testLogger())

	require.NoError(t, sched.Tick(context.Background(), now))

	assert.Empty(t, store.created, "nothing ingested means nothing to run")
	c := store.counters[job.ID]
	assert.Equal(t, counterUpdate{errors: 1}, c)
}

func TestTickRunFailuresReachCounters(t *testing.T) {
	now := time.Now()
	job := testJob(now)
	store := newFakeJobStore(job)
	blobs := storage.NewMemStore()
	blobs.Put("incoming/a.jpg", []byte("a"), now.Add(-time.Minute))
	blobs.Put("incoming/b.jpg", []byte("b"), now.Add(-time.Minute))

	exec := &fakeExecutor{store: store, failures: 1}
	sched := New(store, blobs, &fakeIngester{}, exec, testLogger())

	require.NoError(t, sched.Tick(context.Background(), now))

	c := store.counters[job.ID]
	assert.Equal(t, counterUpdate{runs: 1, processed: 2, labeled: 1, errors: 1}, c)
}

func TestTickIsolatesJobFailures(t *testing.T) {
	now := time.Now()
	broken := testJob(now)
	healthy := testJob(now)
	store := newFakeJobStore(broken, healthy)
	blobs := storage.NewMemStore()
	blobs.Put("incoming/a.jpg", []byte("a"), now.Add(-time.Minute))

	ing := &brokenThenOK{broken: broken.CollectionID}
	exec := &fakeExecutor{store: store}
	sched := New(store, blobs, ing, exec, testLogger())

	require.NoError(t, sched.Tick(context.Background(), now))

	require.Len(t, store.created, 1, "healthy job still ran")
	assert.Equal(t, healthy.ID, *store.created[0].JobID)
}

// brokenThenOK fails ingestion for one collection and succeeds for the rest.
type brokenThenOK struct {
	broken uuid.UUID
	ok     fakeIngester
}

func (b *brokenThenOK) Ingest(ctx context.Context, collectionID uuid.UUID, files []storage.FileInfo) (*ingestion.Result, error) {
	if collectionID == b.broken {
		return nil, fmt.Errorf("ingest exploded")
	}
	return b.ok.Ingest(ctx, collectionID, files)
}
