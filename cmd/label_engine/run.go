package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/image-labeler/internal/db"
	"github.com/jonathan/image-labeler/internal/parsing"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Execute a labelling run over a collection",
	Long: `Creates a run from a prompt chain, selection, and pricing configuration,
then executes it to completion: bounded-parallel chain execution over the
selected items, per-item result records, and a final accuracy/cost summary.`,
	RunE: runCmd,
}

var (
	runCollection    string
	runChainPath     string
	runSelectionPath string
	runPricingPath   string
	runQuestionType  string
	runProvider      string
	runModel         string
	runConcurrency   int
	runTemperature   float64
	runMaxTokens     int
)

func init() {
	runCommand.Flags().StringVarP(&runCollection, "collection", "c", "", "Collection UUID to run over")
	runCommand.Flags().StringVar(&runChainPath, "chain", "", "Path to prompt chain JSON file")
	runCommand.Flags().StringVar(&runSelectionPath, "selection", "", "Path to selection config JSON file (default: all items)")
	runCommand.Flags().StringVar(&runPricingPath, "pricing", "", "Path to pricing config JSON file (default: everything priced at 0)")
	runCommand.Flags().StringVarP(&runQuestionType, "question-type", "q", "binary", "Question type: binary, count, multiple_choice, text")
	runCommand.Flags().StringVarP(&runProvider, "provider", "p", "openai", "Provider family: openai, anthropic, gemini, ollama")
	runCommand.Flags().StringVarP(&runModel, "model", "m", "", "Model name to run")
	runCommand.Flags().IntVar(&runConcurrency, "concurrency", 4, "Simultaneous in-flight provider calls (1-100)")
	runCommand.Flags().Float64Var(&runTemperature, "temperature", 0, "Sampling temperature")
	runCommand.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "Max output tokens per step (0 = provider default)")

	_ = runCommand.MarkFlagRequired("collection")
	_ = runCommand.MarkFlagRequired("chain")
	_ = runCommand.MarkFlagRequired("model")

	rootCmd.AddCommand(runCommand)
}

func runCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := buildRun(ctx, a)
	if err != nil {
		return err
	}

	if err := a.database.CreateRun(ctx, run); err != nil {
		return err
	}
	fmt.Printf("Created run %s (estimated cost $%.6f)\n", run.ID, run.EstimatedCost)

	if err := a.runner.Execute(ctx, run.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Run did not complete cleanly: %v\n", err)
	}

	final, err := a.database.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if final == nil {
		return fmt.Errorf("run %s disappeared", run.ID)
	}
	printRunSummary(final)
	return nil
}

// buildRun assembles and estimates a pending run from the CLI inputs.
func buildRun(ctx context.Context, a *app) (*db.Run, error) {
	collectionID, err := uuid.Parse(runCollection)
	if err != nil {
		return nil, fmt.Errorf("invalid collection id: %w", err)
	}

	steps, err := loadChainFile(runChainPath)
	if err != nil {
		return nil, err
	}
	sel, err := loadSelectionFile(runSelectionPath)
	if err != nil {
		return nil, err
	}
	pricingCfg, err := loadPricingFile(runPricingPath)
	if err != nil {
		return nil, err
	}

	qt := parsing.QuestionType(runQuestionType)
	if !qt.Valid() {
		return nil, fmt.Errorf("unknown question type %q", runQuestionType)
	}
	provider, err := a.providers.Get(runProvider)
	if err != nil {
		return nil, err
	}

	run := &db.Run{
		CollectionID: collectionID,
		QuestionType: qt,
		Chain:        steps,
		Selection:    sel,
		Pricing:      pricingCfg,
		Model: db.ModelConfig{
			Provider:    runProvider,
			Model:       runModel,
			Temperature: runTemperature,
			MaxTokens:   runMaxTokens,
			Concurrency: runConcurrency,
		},
	}

	items, err := a.database.ListForSelection(ctx, collectionID, sel)
	if err != nil {
		return nil, err
	}
	run.EstimatedCost = estimateItems(ctx, a, provider, items, steps, pricingCfg)
	return run, nil
}

func printRunSummary(run *db.Run) {
	fmt.Printf("\nRun %s: %s\n", run.ID, run.Status)
	fmt.Printf("  items:     %d processed, %d failed (of %d)\n", run.Processed, run.Failed, run.TotalImages)
	if run.Accuracy != nil {
		fmt.Printf("  accuracy:  %.2f%%\n", *run.Accuracy*100)
	}
	if run.Confusion != nil {
		fmt.Printf("  confusion: TP=%d FP=%d TN=%d FN=%d\n",
			run.Confusion.TruePositives, run.Confusion.FalsePositives,
			run.Confusion.TrueNegatives, run.Confusion.FalseNegatives)
	}
	fmt.Printf("  cost:      $%.6f actual ($%.6f estimated)\n", run.ActualCost, run.EstimatedCost)
	if run.ErrorMessage != nil {
		fmt.Printf("  error:     %s\n", *run.ErrorMessage)
	}
}
