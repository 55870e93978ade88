package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runsCommand = &cobra.Command{
	Use:   "runs",
	Short: "Inspect runs",
}

var runsListCommand = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE:  runsListCmd,
}

var runsShowCommand = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its result records",
	Args:  cobra.ExactArgs(1),
	RunE:  runsShowCmd,
}

var runsListLimit int

func init() {
	runsListCommand.Flags().IntVar(&runsListLimit, "limit", 20, "Maximum number of runs to list")

	runsCommand.AddCommand(runsListCommand)
	runsCommand.AddCommand(runsShowCommand)
	rootCmd.AddCommand(runsCommand)
}

func runsListCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.database.ListRuns(ctx, runsListLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet.")
		return nil
	}

	for _, run := range runs {
		acc := "-"
		if run.Accuracy != nil {
			acc = fmt.Sprintf("%.1f%%", *run.Accuracy*100)
		}
		fmt.Printf("%s  %-9s %5.1f%%  %d/%d items (%d failed)  acc %-7s  $%.6f\n",
			run.ID, run.Status, run.Progress, run.Processed, run.TotalImages, run.Failed,
			acc, run.ActualCost)
	}
	return nil
}

func runsShowCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.database.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	printRunSummary(run)

	records, err := a.database.ListResults(ctx, runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	fmt.Println("\nResults:")
	for _, rec := range records {
		answer := "-"
		if rec.ParsedAnswer != nil {
			answer = *rec.ParsedAnswer
		}
		verdict := ""
		if rec.Correct != nil {
			if *rec.Correct {
				verdict = " correct"
			} else {
				verdict = " wrong"
			}
		}
		if rec.ErrorMessage != nil {
			fmt.Printf("  %s  %-8s error: %s\n", rec.ItemID, rec.Status, *rec.ErrorMessage)
			continue
		}
		fmt.Printf("  %s  %-8s answer=%q%s  %dms  $%.6f\n",
			rec.ItemID, rec.Status, answer, verdict, rec.LatencyMs, rec.Cost)
	}
	return nil
}
