package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/parsing"
)

var jobsCommand = &cobra.Command{
	Use:   "jobs",
	Short: "Manage recurring labelling jobs",
}

var jobsCreateCommand = &cobra.Command{
	Use:   "create",
	Short: "Create a recurring job",
	Long: `Registers a job definition: every frequency interval the scheduler scans
the source folder for new files (past the job's cursor), ingests them into
the collection, and runs the configured chain over them.`,
	RunE: jobsCreateCmd,
}

var jobsListCommand = &cobra.Command{
	Use:   "list",
	Short: "List job definitions",
	RunE:  jobsListCmd,
}

var (
	jobName         string
	jobCollection   string
	jobFolder       string
	jobFrequency    time.Duration
	jobExtensions   []string
	jobChainPath    string
	jobPricingPath  string
	jobQuestionType string
	jobProvider     string
	jobModel        string
	jobConcurrency  int
	jobTemperature  float64
	jobMaxTokens    int
)

func init() {
	f := jobsCreateCommand.Flags()
	f.StringVarP(&jobName, "name", "n", "", "Job name")
	f.StringVarP(&jobCollection, "collection", "c", "", "Target collection UUID")
	f.StringVar(&jobFolder, "folder", "", "Source folder to scan for new files")
	f.DurationVar(&jobFrequency, "frequency", time.Hour, "How often the job runs (e.g. 30m, 6h)")
	f.StringSliceVar(&jobExtensions, "extensions", nil, "Allowed file extensions (default: common image types)")
	f.StringVar(&jobChainPath, "chain", "", "Path to prompt chain JSON file")
	f.StringVar(&jobPricingPath, "pricing", "", "Path to pricing config JSON file")
	f.StringVarP(&jobQuestionType, "question-type", "q", "binary", "Question type: binary, count, multiple_choice, text")
	f.StringVarP(&jobProvider, "provider", "p", "openai", "Provider family")
	f.StringVarP(&jobModel, "model", "m", "", "Model name")
	f.IntVar(&jobConcurrency, "concurrency", 4, "Simultaneous in-flight provider calls (1-100)")
	f.Float64Var(&jobTemperature, "temperature", 0, "Sampling temperature")
	f.IntVar(&jobMaxTokens, "max-tokens", 0, "Max output tokens per step (0 = provider default)")

	_ = jobsCreateCommand.MarkFlagRequired("name")
	_ = jobsCreateCommand.MarkFlagRequired("collection")
	_ = jobsCreateCommand.MarkFlagRequired("folder")
	_ = jobsCreateCommand.MarkFlagRequired("chain")
	_ = jobsCreateCommand.MarkFlagRequired("model")

	jobsCommand.AddCommand(jobsCreateCommand)
	jobsCommand.AddCommand(jobsListCommand)
	rootCmd.AddCommand(jobsCommand)
}

func jobsCreateCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	collectionID, err := uuid.Parse(jobCollection)
	if err != nil {
		return fmt.Errorf("invalid collection id: %w", err)
	}
	if jobFrequency <= 0 {
		return fmt.Errorf("frequency must be positive, got %s", jobFrequency)
	}

	steps, err := loadChainFile(jobChainPath)
	if err != nil {
		return err
	}
	pricingCfg, err := loadPricingFile(jobPricingPath)
	if err != nil {
		return err
	}
	qt := parsing.QuestionType(jobQuestionType)
	if !qt.Valid() {
		return fmt.Errorf("unknown question type %q", jobQuestionType)
	}
	if _, err := a.providers.Get(jobProvider); err != nil {
		return err
	}

	now := time.Now()
	job := &db.JobDefinition{
		Name:              jobName,
		Active:            true,
		CollectionID:      collectionID,
		SourceFolder:      jobFolder,
		AllowedExtensions: jobExtensions,
		Frequency:         jobFrequency,
		NextRunAt:         &now,
		Config: db.JobConfig{
			Chain:        steps,
			QuestionType: qt,
			Pricing:      pricingCfg,
			Model: db.ModelConfig{
				Provider:    jobProvider,
				Model:       jobModel,
				Temperature: jobTemperature,
				MaxTokens:   jobMaxTokens,
				Concurrency: jobConcurrency,
			},
		},
	}

	if err := a.database.CreateJob(ctx, job); err != nil {
		return err
	}
	fmt.Printf("Created job %s (%s), first run due immediately\n", job.ID, job.Name)
	return nil
}

func jobsListCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.database.ListJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs defined.")
		return nil
	}

	for _, job := range jobs {
		state := "active"
		if !job.Active {
			state = "inactive"
		}
		next := "-"
		if job.NextRunAt != nil {
			next = job.NextRunAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %-24s %-8s every %-8s next %s  runs=%d processed=%d labeled=%d errors=%d\n",
			job.ID, job.Name, state, job.Frequency, next,
			job.TotalRuns, job.ImagesProcessed, job.ImagesLabeled, job.ErrorCount)
	}
	return nil
}
