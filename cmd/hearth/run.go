package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hearth/internal/api"
	"github.com/ShayCichocki/hearth/internal/conductor"
	"github.com/ShayCichocki/hearth/internal/config"
	"github.com/ShayCichocki/hearth/internal/delegate"
	"github.com/ShayCichocki/hearth/internal/tracker"
	"github.com/ShayCichocki/hearth/pkg/models"
)

var (
	runInterval    time.Duration
	runWorkersFile string
	runMaxTicks    int
	runNoHistory   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run conductor ticks on an interval",
	Long: `Run the conductor as a long-lived process.

A decision tick fires on every interval. When --workers-file is set, the
file is merged over the configured worker roster and watched; edits take
effect on the next tick without a restart. A tick already in flight keeps
the roster it started with.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runInterval, "interval", 5*time.Minute, "Time between ticks")
	runCmd.Flags().StringVar(&runWorkersFile, "workers-file", "", "workers.yaml merged over the roster and watched for edits")
	runCmd.Flags().IntVar(&runMaxTicks, "max-ticks", 0, "Stop after this many ticks (0 = run until interrupted)")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Skip recording tick results")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Tracker.Address == "" {
		return fmt.Errorf("tracker.address is not configured")
	}

	engine, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("creating engine client: %w", err)
	}

	logger, err := conductor.NewDebugLogger(cfg.Conductor.DebugLog)
	if err != nil {
		return fmt.Errorf("creating debug logger: %w", err)
	}
	defer logger.Close()

	trk := tracker.NewClient(cfg.Tracker.Address, cfg.Tracker.Credential,
		tracker.WithSender(cfg.Conductor.Name))

	var mu sync.Mutex
	workers, err := mergedWorkers(cfg, runWorkersFile)
	if err != nil {
		return err
	}

	if runWorkersFile != "" {
		watcher, err := config.Watch(runWorkersFile, func() {
			fresh, err := mergedWorkers(cfg, runWorkersFile)
			if err != nil {
				fmt.Printf("%s workers file reload failed: %v\n", color.YellowString("⚠"), err)
				return
			}
			mu.Lock()
			workers = fresh
			mu.Unlock()
			fmt.Printf("%s worker roster reloaded (%d workers)\n", color.GreenString("✓"), len(fresh))
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	ctx := cmd.Context()
	for ticks := 0; runMaxTicks == 0 || ticks < runMaxTicks; ticks++ {
		if ticks > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(runInterval):
			}
		}

		mu.Lock()
		snap := workers
		mu.Unlock()

		delegator := delegate.New(snap, trk, cfg.Tracker.Address, cfg.Tracker.Credential,
			cfg.Conductor.Name, nil)
		dispatcher := conductor.NewDispatcher(trk, delegator, snap, nil)
		loop := conductor.NewTickLoop(conductor.TickLoopConfig{
			Engine:           engine,
			Dispatcher:       dispatcher,
			Model:            engine.Model(),
			TurnBudget:       cfg.Conductor.TurnBudget,
			MaxParallelTools: cfg.Conductor.MaxParallelTools,
			Logger:           logger,
		})

		// Token totals are reported per tick, not per process.
		engine.Tracker().Reset()
		msg := conductor.ContextMessage(conductor.TriggerPeriodic, time.Now(), nil)
		result := loop.RunTick(ctx, conductor.SystemPrompt(cfg.Conductor.Name, snap), msg)
		printTickResult(result, engine)

		if !runNoHistory {
			if err := recordTick(cfg, result); err != nil {
				fmt.Printf("%s could not record tick history: %v\n", color.YellowString("⚠"), err)
			}
		}
	}
	return nil
}

// mergedWorkers overlays the workers file, when given, on the configured
// roster and returns a snapshot safe to hand to a tick.
func mergedWorkers(cfg *config.Config, path string) (map[string]models.WorkerEntry, error) {
	merged := &config.Config{Workers: cfg.Snapshot()}
	if path != "" {
		if err := config.ReadWorkersFile(path, merged); err != nil {
			return nil, err
		}
	}
	return merged.Snapshot(), nil
}
