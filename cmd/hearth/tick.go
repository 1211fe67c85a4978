package main

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hearth/internal/api"
	"github.com/ShayCichocki/hearth/internal/conductor"
	"github.com/ShayCichocki/hearth/internal/config"
	"github.com/ShayCichocki/hearth/internal/delegate"
	"github.com/ShayCichocki/hearth/internal/history"
	"github.com/ShayCichocki/hearth/internal/tracker"
)

var (
	tickMessage     string
	tickCompletedID int64
	tickNoHistory   bool
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one conductor decision tick",
	Long: `Run a single bounded decision tick of the conductor.

The conductor reads its inbox and the task list, delegates work, and
reacts to completed tasks, within a configured turn budget. Use
--completed-task to run the tick as a reaction to a task that reached a
terminal state.`,
	RunE: runTick,
}

func init() {
	tickCmd.Flags().StringVar(&tickMessage, "message", "", "Extra instruction appended to the tick context")
	tickCmd.Flags().Int64Var(&tickCompletedID, "completed-task", 0, "Task id whose completion triggered this tick")
	tickCmd.Flags().BoolVar(&tickNoHistory, "no-history", false, "Skip recording the tick result")
}

func runTick(cmd *cobra.Command, args []string) error {
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

	workers := cfg.Snapshot()
	delegator := delegate.New(workers, trk, cfg.Tracker.Address, cfg.Tracker.Credential,
		cfg.Conductor.Name, nil)
	dispatcher := conductor.NewDispatcher(trk, delegator, workers, nil)

	loop := conductor.NewTickLoop(conductor.TickLoopConfig{
		Engine:           engine,
		Dispatcher:       dispatcher,
		Model:            engine.Model(),
		TurnBudget:       cfg.Conductor.TurnBudget,
		MaxParallelTools: cfg.Conductor.MaxParallelTools,
		Logger:           logger,
	})

	ctx := cmd.Context()
	systemPrompt := conductor.SystemPrompt(cfg.Conductor.Name, workers)
	userMessage, err := buildTickMessage(ctx, trk)
	if err != nil {
		return err
	}

	result := loop.RunTick(ctx, systemPrompt, userMessage)
	printTickResult(result, engine)

	if !tickNoHistory {
		if err := recordTick(cfg, result); err != nil {
			fmt.Printf("%s could not record tick history: %v\n", color.YellowString("⚠"), err)
		}
	}

	if result.State == conductor.TickErrored {
		return result.Err
	}
	return nil
}

func buildTickMessage(ctx context.Context, trk *tracker.Client) (string, error) {
	var msg string
	if tickCompletedID > 0 {
		task, err := trk.GetTask(ctx, tickCompletedID)
		if err != nil {
			return "", fmt.Errorf("fetching completed task %d: %w", tickCompletedID, err)
		}
		msg = conductor.ContextMessage(conductor.TriggerTaskCompleted, time.Now(), task)
	} else {
		msg = conductor.ContextMessage(conductor.TriggerPeriodic, time.Now(), nil)
	}

	if tickMessage != "" {
		msg += "\n\nOperator note: " + tickMessage
	}
	return msg, nil
}

func printTickResult(result *conductor.TickResult, engine *api.Client) {
	switch result.State {
	case conductor.TickCompleted:
		fmt.Printf("%s tick %s completed in %d turn(s), %d tool call(s)\n",
			color.GreenString("✓"), result.ID, result.Turns, result.ToolCalls)
	case conductor.TickTurnBudgetExceeded:
		fmt.Printf("%s tick %s hit its turn budget after %d turn(s), %d tool call(s)\n",
			color.YellowString("⚠"), result.ID, result.Turns, result.ToolCalls)
	case conductor.TickErrored:
		fmt.Printf("%s tick %s errored on turn %d: %v\n",
			color.RedString("✗"), result.ID, result.Turns, result.Err)
	}

	if result.Output != "" {
		fmt.Printf("\n%s\n", result.Output)
	}

	in, out := engine.Tracker().Total()
	fmt.Printf("\nTokens: %d in / %d out (est. $%.4f)\n", in, out, engine.Tracker().Cost())
}

func recordTick(cfg *config.Config, result *conductor.TickResult) error {
	path := cfg.Conductor.HistoryDB
	if path == "" {
		path = history.DefaultPath()
	}

	db, err := history.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	rec := history.TickRecord{
		ID:        result.ID,
		Started:   result.Started,
		State:     string(result.State),
		Turns:     result.Turns,
		ToolCalls: result.ToolCalls,
		TokensIn:  result.TokensIn,
		TokensOut: result.TokensOut,
		Output:    result.Output,
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	return db.RecordTick(rec)
}
