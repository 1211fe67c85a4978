package ember

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeRunner struct {
	sessions map[string]bool
	startErr error
	listErr  error
	started  []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{sessions: map[string]bool{}}
}

func (f *fakeRunner) Start(ctx context.Context, name, dir, command string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.sessions[name] = true
	f.started = append(f.started, name)
	return nil
}

func (f *fakeRunner) Alive(ctx context.Context, name string) bool {
	return f.sessions[name]
}

func (f *fakeRunner) List(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var names []string
	for name, alive := range f.sessions {
		if alive {
			names = append(names, name)
		}
	}
	return names, nil
}

func taskID(id int64) *int64 { return &id }

func TestSubmitRecordsActiveTask(t *testing.T) {
	runner := newFakeRunner()
	state := NewExecState("w1", runner)

	active, err := state.Submit(context.Background(), SubmitRequest{
		TaskID:  taskID(7),
		Subject: "Fix login bug",
		WorkDir: "/tmp/proj",
		Command: "true",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if active.TaskID == nil || *active.TaskID != 7 {
		t.Errorf("TaskID = %v, want 7", active.TaskID)
	}
	if !strings.HasPrefix(active.SessionID, "w1-fix-login-bug-") {
		t.Errorf("SessionID = %q, want w1-fix-login-bug-<ts>", active.SessionID)
	}
	if active.WorkDir != "/tmp/proj" {
		t.Errorf("WorkDir = %q", active.WorkDir)
	}
	if len(runner.started) != 1 {
		t.Errorf("started %d sessions, want 1", len(runner.started))
	}
}

func TestSubmitWhileBusy(t *testing.T) {
	runner := newFakeRunner()
	state := NewExecState("w1", runner)

	first, err := state.Submit(context.Background(), SubmitRequest{Subject: "task a", Command: "true"})
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	_, err = state.Submit(context.Background(), SubmitRequest{Subject: "task b", Command: "true"})
	var busy *BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("error type = %T, want *BusyError", err)
	}
	if busy.SessionID != first.SessionID {
		t.Errorf("BusyError.SessionID = %q, want %q", busy.SessionID, first.SessionID)
	}

	// The running task's record must be untouched by the rejection.
	active, _, aerr := state.Active(context.Background())
	if aerr != nil {
		t.Fatalf("Active failed: %v", aerr)
	}
	if active == nil || active.SessionID != first.SessionID {
		t.Errorf("active = %v, want the first session unchanged", active)
	}
}

func TestLazyReapOnQuery(t *testing.T) {
	runner := newFakeRunner()
	state := NewExecState("w1", runner)

	first, err := state.Submit(context.Background(), SubmitRequest{Subject: "short task", Command: "true"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Session ends; nothing notices until the next query.
	runner.sessions[first.SessionID] = false

	active, _, err := state.Active(context.Background())
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active != nil {
		t.Errorf("active = %v, want nil after dead session reaped", active)
	}
}

func TestLazyReapOnSubmit(t *testing.T) {
	runner := newFakeRunner()
	state := NewExecState("w1", runner)

	first, err := state.Submit(context.Background(), SubmitRequest{Subject: "task a", Command: "true"})
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	runner.sessions[first.SessionID] = false

	// A new submission must be accepted once the old session is dead.
	second, err := state.Submit(context.Background(), SubmitRequest{Subject: "task b", Command: "true"})
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Error("second session reused the first session id")
	}
}

func TestActiveReportsOrphanedSessions(t *testing.T) {
	runner := newFakeRunner()
	runner.sessions["w1-old-crash-123"] = true
	runner.sessions["other-process-456"] = true
	state := NewExecState("w1", runner)

	active, orphaned, err := state.Active(context.Background())
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active != nil {
		t.Errorf("active = %v, want nil", active)
	}
	if len(orphaned) != 1 || orphaned[0] != "w1-old-crash-123" {
		t.Errorf("orphaned = %v, want only w1-old-crash-123", orphaned)
	}
}

func TestSubmitStartFailureStaysIdle(t *testing.T) {
	runner := newFakeRunner()
	runner.startErr = errors.New("boom")
	state := NewExecState("w1", runner)

	if _, err := state.Submit(context.Background(), SubmitRequest{Subject: "x", Command: "true"}); err == nil {
		t.Fatal("expected start error")
	}

	active, _, err := state.Active(context.Background())
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active != nil {
		t.Errorf("active = %v, want nil after failed start", active)
	}
}

func TestSessionName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	got := sessionName("w1", "Fix the Login Bug!", now)
	want := "w1-fix-the-login-bug-1700000000"
	if got != want {
		t.Errorf("sessionName = %q, want %q", got, want)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Fix login bug", "fix-login-bug"},
		{"  spaces   everywhere  ", "spaces-everywhere"},
		{"UPPER_case.mixed", "upper-case-mixed"},
		{"!!!", "task"},
		{"", "task"},
		{strings.Repeat("a", 50), strings.Repeat("a", 32)},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
