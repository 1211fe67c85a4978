package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hearth/internal/config"
	"github.com/ShayCichocki/hearth/internal/ember"
	"github.com/ShayCichocki/hearth/internal/tracker"
)

var (
	emberName      string
	emberListen    string
	emberAdvertise string
)

var emberCmd = &cobra.Command{
	Use:   "ember",
	Short: "Serve the worker API for a named identity",
	Long: `Run an Ember worker process.

The worker serves the execute API on the listen address, runs each
accepted task in a detached tmux session, and enforces one task at a
time. On startup it registers its advertised address in the Tracker's
worker registry so the conductor can find it after restarts.`,
	RunE: runEmber,
}

func init() {
	emberCmd.Flags().StringVar(&emberName, "name", "", "Worker identity to serve (must be configured)")
	emberCmd.Flags().StringVar(&emberListen, "listen", ":9100", "Address to listen on")
	emberCmd.Flags().StringVar(&emberAdvertise, "advertise", "", "Address to register in the tracker (defaults to the listen address)")
	emberCmd.MarkFlagRequired("name")
}

func runEmber(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	entry, ok := cfg.Workers[emberName]
	if !ok {
		return fmt.Errorf("worker %q is not configured; known workers: %v", emberName, cfg.WorkerNames())
	}
	if entry.Credential == "" {
		return fmt.Errorf("worker %q has no credential configured", emberName)
	}

	runner, err := ember.NewTmuxRunner()
	if err != nil {
		return err
	}

	state := ember.NewExecState(emberName, runner)
	server := ember.NewServer(emberName, entry.Credential, state, nil)

	if cfg.Tracker.Address != "" {
		advertise := emberAdvertise
		if advertise == "" {
			advertise = "http://" + emberListen
		}
		trk := tracker.NewClient(cfg.Tracker.Address, cfg.Tracker.Credential,
			tracker.WithSender(emberName))

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := trk.RegisterWorker(ctx, emberName, advertise); err != nil {
			fmt.Printf("%s could not register with tracker: %v\n", color.YellowString("⚠"), err)
		} else {
			fmt.Printf("%s registered %s as %s\n", color.GreenString("✓"), emberName, advertise)
		}
	}

	fmt.Printf("ember %s listening on %s\n", emberName, emberListen)
	return http.ListenAndServe(emberListen, server.Router())
}
