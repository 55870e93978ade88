package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/image-labeler/internal/config"
	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/engine"
	"github.com/jonathan/image-labeler/internal/ingestion"
	"github.com/jonathan/image-labeler/internal/llm"
	"github.com/jonathan/image-labeler/internal/scheduler"
	"github.com/jonathan/image-labeler/internal/storage"
)

// app wires the engine's components together for the CLI commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	database  *db.DB
	store     storage.Store
	providers llm.Registry
	runner    *engine.Runner
	ingest    *ingestion.Pipeline
	sched     *scheduler.Scheduler

	logCleanup func() error
}

// newApp loads configuration, connects to the database, and builds the
// component graph.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, logCleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)

	database, err := db.Connect(ctx, cfg.DatabaseURL, engine.MaxConcurrency)
	if err != nil {
		_ = logCleanup()
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		database.Close()
		_ = logCleanup()
		return nil, err
	}

	providers := llm.NewRegistry(llm.Credentials{
		OpenAIKey:    cfg.OpenAIKey,
		AnthropicKey: cfg.AnthropicKey,
		GeminiKey:    cfg.GeminiKey,
		OllamaHost:   cfg.OllamaHost,
	})

	runner := engine.NewRunner(database, database, store, providers, logger)
	ingest := ingestion.NewPipeline(store, database, logger)
	sched := scheduler.New(database, store, ingest, runner, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		database:   database,
		store:      store,
		providers:  providers,
		runner:     runner,
		ingest:     ingest,
		sched:      sched,
		logCleanup: logCleanup,
	}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "s3":
		return storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
	case "local":
		return storage.NewLocalStore(cfg.StorageRoot)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *app) Close() {
	a.database.Close()
	_ = a.logCleanup()
}
