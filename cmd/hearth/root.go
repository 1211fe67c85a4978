package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Task delegation and orchestration conductor",
	Long: `Hearth coordinates a fleet of Ember workers through a shared Tracker.

The conductor runs bounded decision ticks: it reads its inbox and the task
list, delegates work to named workers, and reacts to completed tasks. Each
worker runs one task at a time in a detached session and reports state
through the Tracker.

Core commands:
  tick    Run one conductor decision tick
  run     Run conductor ticks on an interval
  ember   Serve the worker API for a named identity
  status  Health-check every configured worker`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(emberCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
