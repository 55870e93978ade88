package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE:  migrateCmd,
}

func init() {
	rootCmd.AddCommand(migrateCommand)
}

func migrateCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.database.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("Schema applied.")
	return nil
}
