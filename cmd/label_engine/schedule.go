package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var scheduleCommand = &cobra.Command{
	Use:   "schedule",
	Short: "Run the job scheduler loop",
	Long: `Starts the recurring-job scheduler: resets runs orphaned by a previous
crash, re-executes pending runs from zero, then ticks at the configured
interval, discovering and labelling new files for every due job.`,
	RunE: scheduleCmd,
}

func init() {
	rootCmd.AddCommand(scheduleCommand)
}

func scheduleCmd(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// A run left in running state by a crash restarts from zero; its result
	// upserts overwrite the stale records.
	reset, err := a.database.ResetOrphanedRuns(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		a.logger.Info("reset orphaned runs", "count", reset)
	}

	pending, err := a.database.ListPendingRunIDs(ctx)
	if err != nil {
		return err
	}
	for _, runID := range pending {
		a.logger.Info("re-executing pending run", "run_id", runID)
		if err := a.runner.Execute(ctx, runID); err != nil {
			a.logger.Warn("pending run did not complete cleanly", "run_id", runID, "error", err)
		}
	}

	a.logger.Info("scheduler starting", "interval", a.cfg.SchedulerInterval)
	if err := a.sched.RunLoop(ctx, a.cfg.SchedulerInterval); err != nil && ctx.Err() == nil {
		return err
	}
	a.logger.Info("scheduler stopped")
	return nil
}
