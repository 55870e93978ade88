package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/image-labeler/internal/chain"
	"github.com/jonathan/image-labeler/internal/parsing"
	"github.com/jonathan/image-labeler/internal/pricing"
	"github.com/jonathan/image-labeler/internal/selection"
)

// RunStatus is the lifecycle state of a run. Completed and failed are
// terminal; a run observed in running state at startup was orphaned by a
// crash and is reset to pending for a restart from zero.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ResultStatus is the outcome of a single (run, item) evaluation.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
)

// ConfusionMatrix holds binary-classification counts. Only computed for
// binary question types.
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// ModelConfig is the model/provider configuration snapshot a run executes
// under.
type ModelConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Concurrency int     `json:"concurrency"`
	APIKey      string  `json:"-"`
}

// Run is one execution of the engine against a selected set of items.
type Run struct {
	ID            uuid.UUID
	CollectionID  uuid.UUID
	JobID         *uuid.UUID
	Status        RunStatus
	Progress      float64
	TotalImages   int
	Processed     int
	Failed        int
	Accuracy      *float64
	Confusion     *ConfusionMatrix
	EstimatedCost float64
	ActualCost    float64
	CostBreakdown map[string]float64
	ETASeconds    *float64
	ErrorMessage  *string
	QuestionType  parsing.QuestionType
	Chain         []chain.Step
	Selection     selection.Config
	Pricing       pricing.Config
	Model         ModelConfig
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// StepTrace records one chain step's execution inside a result record.
type StepTrace struct {
	StepNumber       int     `json:"step_number"`
	RawOutput        string  `json:"raw_output,omitempty"`
	LatencyMs        int64   `json:"latency_ms"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
	Error            string  `json:"error,omitempty"`
}

// ResultRecord is the outcome of evaluating one item within one run. Unique
// per (run, item); writes use upsert so a restarted run overwrites rather
// than duplicates.
type ResultRecord struct {
	ID               uuid.UUID
	RunID            uuid.UUID
	ItemID           uuid.UUID
	Status           ResultStatus
	ResponseText     string
	ParsedAnswer     *string
	GroundTruth      *string
	Correct          *bool
	Steps            []StepTrace
	LatencyMs        int64
	Cost             float64
	PromptTokens     int
	CompletionTokens int
	ErrorMessage     *string
	CreatedAt        time.Time
}

// Item is a source image owned by the external collection management system;
// the engine reads it and the ingestion pipeline creates new ones.
type Item struct {
	ID           uuid.UUID
	CollectionID uuid.UUID
	Filename     string
	StoragePath  string
	// SourcePath is the discovery location the item was ingested from. Empty
	// for items created through the external upload surfaces.
	SourcePath  string
	Status      string
	GroundTruth *string
	CreatedAt   time.Time
}

// JobConfig is the prompt/model configuration snapshot a recurring job runs
// with.
type JobConfig struct {
	Chain        []chain.Step         `json:"chain"`
	QuestionType parsing.QuestionType `json:"question_type"`
	Model        ModelConfig          `json:"model"`
	Pricing      pricing.Config       `json:"pricing"`
}

// JobDefinition is a recurring workload: periodically discover new files in
// a source folder and run them through the engine.
type JobDefinition struct {
	ID                uuid.UUID
	Name              string
	Active            bool
	CollectionID      uuid.UUID
	SourceFolder      string
	AllowedExtensions []string
	// Cursor is the creation timestamp of the newest file processed so far.
	// It only moves forward.
	Cursor    *time.Time
	Frequency time.Duration
	LastRunAt *time.Time
	NextRunAt *time.Time
	// Lifetime counters.
	TotalRuns       int
	ImagesProcessed int
	ImagesLabeled   int
	ErrorCount      int
	Config          JobConfig
	CreatedAt       time.Time
}
