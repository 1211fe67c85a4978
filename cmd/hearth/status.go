package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hearth/internal/config"
	"github.com/ShayCichocki/hearth/internal/ember"
	"github.com/ShayCichocki/hearth/internal/history"
	"github.com/ShayCichocki/hearth/internal/resolve"
	"github.com/ShayCichocki/hearth/internal/tracker"
)

var statusTicks int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Health-check every configured worker",
	Long: `Check the health of every configured worker and show recent ticks.

Each worker is resolved through the tracker registry first, falling back
to its configured address, and probed on its health endpoint.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusTicks, "ticks", 5, "Number of recent ticks to show (0 to skip)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var registry resolve.RegistryLookup
	if cfg.Tracker.Address != "" {
		registry = tracker.NewClient(cfg.Tracker.Address, cfg.Tracker.Credential,
			tracker.WithSender(cfg.Conductor.Name))
	}

	names := cfg.WorkerNames()
	if len(names) == 0 {
		fmt.Println("No workers configured.")
	} else {
		fmt.Printf("Workers (%d):\n", len(names))
	}

	ctx := cmd.Context()
	for _, name := range names {
		entry := cfg.Workers[name]

		res, err := resolve.Resolve(ctx, name, registry, entry.Address)
		if err != nil {
			printStatus("✗", fmt.Sprintf("%s: %v", name, err), color.FgRed)
			continue
		}

		client := ember.NewClient(res.URL, entry.Credential)
		health, err := client.Health(ctx)
		if err != nil {
			printStatus("✗", fmt.Sprintf("%s at %s: %v", name, res.URL, err), color.FgRed)
		} else {
			up := time.Duration(health.UptimeSeconds) * time.Second
			printStatus("✓", fmt.Sprintf("%s at %s (%s): %s, %d active, up %s",
				name, res.URL, res.Source, health.Status, health.ActiveTaskCount, up), color.FgGreen)
		}
		for _, w := range res.Warnings {
			printStatus("⚠", w, color.FgYellow)
		}
	}

	if statusTicks > 0 {
		if err := printRecentTicks(cfg); err != nil {
			printStatus("⚠", fmt.Sprintf("tick history unavailable: %v", err), color.FgYellow)
		}
	}

	return nil
}

func printRecentTicks(cfg *config.Config) error {
	path := cfg.Conductor.HistoryDB
	if path == "" {
		path = history.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := history.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.RecentTicks(statusTicks)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	fmt.Printf("\nRecent ticks:\n")
	for _, rec := range records {
		attr := color.FgGreen
		symbol := "✓"
		switch rec.State {
		case "errored":
			attr, symbol = color.FgRed, "✗"
		case "turn_budget_exceeded":
			attr, symbol = color.FgYellow, "⚠"
		}
		printStatus(symbol, fmt.Sprintf("%s %s: %s, %d turn(s), %d tool call(s)",
			rec.Started.Local().Format("2006-01-02 15:04"), rec.ID, rec.State, rec.Turns, rec.ToolCalls), attr)
	}
	return nil
}

// printStatus prints a status line with color.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
