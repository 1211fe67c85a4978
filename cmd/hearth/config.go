package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hearth/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	RunE:  runConfig,
}

var configExportWorkers string

func init() {
	configCmd.Flags().StringVar(&configExportWorkers, "export-workers", "", "Export the worker registry to a workers.yaml file")
}

func runConfig(cmd *cobra.Command, args []string) error {
	userPath := config.GetUserConfigPath()
	projectPath := config.GetProjectConfigPath()

	fmt.Println("Config sources (later overrides earlier):")
	printConfigPath("user", userPath)
	if projectPath != "" {
		printConfigPath("project", projectPath)
	} else {
		fmt.Println("  project: (no .hearth.yaml found)")
	}
	fmt.Println("  env:     ANTHROPIC_API_KEY, HEARTH_TRACKER_ADDRESS, HEARTH_TRACKER_TOKEN")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Printf("\nConductor: %s (turn budget %d, %d parallel tools)\n",
		cfg.Conductor.Name, cfg.Conductor.TurnBudget, cfg.Conductor.MaxParallelTools)
	if cfg.Tracker.Address != "" {
		fmt.Printf("Tracker:   %s\n", cfg.Tracker.Address)
	} else {
		fmt.Printf("Tracker:   %s\n", color.YellowString("not configured"))
	}

	names := cfg.WorkerNames()
	fmt.Printf("Workers:   %d configured\n", len(names))
	for _, name := range names {
		entry := cfg.Workers[name]
		line := "  " + name
		if entry.Address != "" {
			line += " @ " + entry.Address
		}
		fmt.Println(line)
	}

	if configExportWorkers != "" {
		if err := config.WriteWorkersFile(configExportWorkers, cfg.Workers); err != nil {
			return err
		}
		fmt.Printf("\n%s exported worker registry to %s\n", color.GreenString("✓"), configExportWorkers)
	}

	return nil
}

func printConfigPath(label, path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  %s:    %s\n", label, path)
	} else {
		fmt.Printf("  %s:    %s (missing)\n", label, path)
	}
}
