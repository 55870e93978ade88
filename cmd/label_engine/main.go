// Package main provides the entry point for the image labelling engine CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "label_engine",
	Short: "Concurrent image evaluation and labelling engine",
	Long:  "label_engine executes prompt chains over image collections with bounded parallelism, tracks per-provider costs and accuracy, and schedules recurring discovery/labelling jobs.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
