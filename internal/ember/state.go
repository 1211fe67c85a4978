// Package ember implements the worker side of Hearth: the execution state
// machine that enforces one task at a time, the session runner that backs
// it, and the HTTP surface the Conductor talks to. It also provides the
// typed client the Conductor uses against that surface.
package ember

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/hearth/pkg/models"
)

// SessionRunner abstracts the session-multiplexing facility that hosts
// delegated jobs. The production implementation shells out to tmux; tests
// use a fake.
type SessionRunner interface {
	// Start launches command in a new detached session with the given name.
	Start(ctx context.Context, name, dir, command string) error
	// Alive reports whether the named session still exists.
	Alive(ctx context.Context, name string) bool
	// List returns the names of all sessions this runner can see.
	List(ctx context.Context) ([]string, error)
}

// BusyError rejects a submission because a task is already running.
type BusyError struct {
	SessionID string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("worker is busy running session %s", e.SessionID)
}

// SubmitRequest is an accepted unit of work for this worker process.
type SubmitRequest struct {
	// TaskID links the run to a Tracker task; nil for unlinked runs.
	TaskID *int64
	// Subject labels the run and feeds the session name.
	Subject string
	// WorkDir is the directory the session starts in.
	WorkDir string
	// Command is the shell command launched inside the session.
	Command string
}

// ExecState tracks the single task an Ember process may run at a time.
// The exclusion is enforced entirely in process-local memory: only one
// process instance is expected to own a worker identity.
type ExecState struct {
	mu      sync.Mutex
	worker  string
	runner  SessionRunner
	active  *models.ActiveTask
	started time.Time
	now     func() time.Time
}

// NewExecState creates the execution state for the named worker.
func NewExecState(worker string, runner SessionRunner) *ExecState {
	return &ExecState{
		worker:  worker,
		runner:  runner,
		started: time.Now(),
		now:     time.Now,
	}
}

// Submit accepts the request if the worker is idle, launching a new
// session and recording it as the active task. A dead session left behind
// by a finished task is reaped first; if the worker is still busy after
// the check, *BusyError names the running session.
func (s *ExecState) Submit(ctx context.Context, req SubmitRequest) (*models.ActiveTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reapLocked(ctx)
	if s.active != nil {
		return nil, &BusyError{SessionID: s.active.SessionID}
	}

	name := sessionName(s.worker, req.Subject, s.now())
	if err := s.runner.Start(ctx, name, req.WorkDir, req.Command); err != nil {
		return nil, fmt.Errorf("starting session %s: %w", name, err)
	}

	s.active = &models.ActiveTask{
		TaskID:    req.TaskID,
		SessionID: name,
		Subject:   req.Subject,
		StartedAt: s.now(),
		WorkDir:   req.WorkDir,
	}
	return s.active, nil
}

// Active returns the current active task (nil when idle) and any sessions
// that exist but are not the tracked active task. Liveness is recomputed
// on every call; a cached alive flag is never trusted across calls.
func (s *ExecState) Active(ctx context.Context) (*models.ActiveTask, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reapLocked(ctx)

	sessions, err := s.runner.List(ctx)
	if err != nil {
		return s.active, nil, fmt.Errorf("listing sessions: %w", err)
	}

	var orphaned []string
	for _, name := range sessions {
		if !strings.HasPrefix(name, s.worker+"-") {
			continue
		}
		if s.active != nil && name == s.active.SessionID {
			continue
		}
		orphaned = append(orphaned, name)
	}

	return s.active, orphaned, nil
}

// Uptime returns how long this worker process has been running.
func (s *ExecState) Uptime() time.Duration {
	return s.now().Sub(s.started)
}

// reapLocked clears the active task if its session has ended. Callers hold s.mu.
func (s *ExecState) reapLocked(ctx context.Context) {
	if s.active == nil {
		return
	}
	if !s.runner.Alive(ctx, s.active.SessionID) {
		s.active = nil
	}
}

// sessionName derives a unique session name from the worker name, a slug
// of the subject, and a timestamp.
func sessionName(worker, subject string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", worker, slugify(subject), now.Unix())
}

// slugify lowercases the subject and collapses anything that is not a
// letter or digit into single hyphens.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "task"
	}
	if len(slug) > 32 {
		slug = strings.TrimSuffix(slug[:32], "-")
	}
	return slug
}
