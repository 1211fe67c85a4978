package ember

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TmuxRunner runs job sessions in detached tmux sessions.
type TmuxRunner struct{}

// NewTmuxRunner creates a tmux-backed session runner.
// Returns an error if tmux is not available in PATH.
func NewTmuxRunner() (*TmuxRunner, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, fmt.Errorf("tmux not found in PATH: %w", err)
	}
	return &TmuxRunner{}, nil
}

// Start launches command in a new detached session.
func (r *TmuxRunner) Start(ctx context.Context, name, dir, command string) error {
	args := []string{"new-session", "-d", "-s", name}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	args = append(args, command)

	cmd := exec.CommandContext(ctx, "tmux", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tmux new-session: %v: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Alive reports whether the named session still exists.
func (r *TmuxRunner) Alive(ctx context.Context, name string) bool {
	cmd := exec.CommandContext(ctx, "tmux", "has-session", "-t", name)
	return cmd.Run() == nil
}

// List returns the names of all tmux sessions.
func (r *TmuxRunner) List(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "tmux", "list-sessions", "-F", "#{session_name}")
	output, err := cmd.Output()
	if err != nil {
		// tmux exits non-zero when no server is running, which just means
		// no sessions exist.
		if _, ok := err.(*exec.ExitError); ok {
			return nil, nil
		}
		return nil, fmt.Errorf("tmux list-sessions: %w", err)
	}

	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}
