package conductor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ShayCichocki/hearth/internal/delegate"
	"github.com/ShayCichocki/hearth/internal/ember"
	"github.com/ShayCichocki/hearth/internal/tracker"
	"github.com/ShayCichocki/hearth/pkg/models"
)

// stubTracker overrides only what a test needs; calls to anything else
// hit the nil embedded interface and panic, which doubles as a probe of
// the dispatcher's containment.
type stubTracker struct {
	TrackerService
	unread   int
	tasks    map[int64]*models.Task
	updates  []tracker.UpdateTaskRequest
	statuses map[int64]models.TaskStatus
	registry map[string]string
}

func (s *stubTracker) UnreadCount(ctx context.Context) (int, error) {
	return s.unread, nil
}

func (s *stubTracker) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	if t, ok := s.tasks[id]; ok {
		return t, nil
	}
	return nil, &tracker.APIError{StatusCode: 404, Message: "no such task"}
}

func (s *stubTracker) UpdateTask(ctx context.Context, id int64, req tracker.UpdateTaskRequest) (*models.Task, error) {
	s.updates = append(s.updates, req)
	t := &models.Task{ID: id}
	if req.Status != nil {
		t.Status = *req.Status
	}
	return t, nil
}

func (s *stubTracker) UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus, output string) (*models.Task, error) {
	if s.statuses == nil {
		s.statuses = map[int64]models.TaskStatus{}
	}
	s.statuses[id] = status
	return &models.Task{ID: id, Status: status, Output: output}, nil
}

func (s *stubTracker) MoveCard(ctx context.Context, id int64, column models.BoardColumn) (*models.Card, error) {
	return &models.Card{ID: id, Column: column}, nil
}

func (s *stubTracker) LookupWorker(ctx context.Context, name string) (*models.WorkerRegistration, error) {
	if addr, ok := s.registry[name]; ok {
		return &models.WorkerRegistration{Name: name, Address: addr}, nil
	}
	return nil, &tracker.APIError{StatusCode: 404, Message: "no such worker"}
}

type fakeDelegator struct {
	req *delegate.Request
	res *delegate.Result
	err error
}

func (f *fakeDelegator) Delegate(ctx context.Context, req delegate.Request) (*delegate.Result, error) {
	f.req = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeProber struct {
	health *models.HealthStatus
	active *ember.ActiveTasksResponse
}

func (f *fakeProber) Health(ctx context.Context) (*models.HealthStatus, error) {
	return f.health, nil
}

func (f *fakeProber) ActiveTasks(ctx context.Context) (*ember.ActiveTasksResponse, error) {
	return f.active, nil
}

func testWorkers() map[string]models.WorkerEntry {
	return map[string]models.WorkerEntry{
		"w1": {Name: "w1", Address: "http://10.0.0.2:9100", Credential: "tok"},
	}
}

func newTestDispatcher(trk TrackerService, del TaskDelegator, prober WorkerProber) *Dispatcher {
	factory := func(baseURL, credential string) WorkerProber { return prober }
	return NewDispatcher(trk, del, testWorkers(), factory)
}

func TestExecuteUnknownAction(t *testing.T) {
	d := newTestDispatcher(&stubTracker{}, &fakeDelegator{}, nil)

	out := d.Execute(context.Background(), "launch_rocket", nil)
	if !strings.Contains(out, "Unknown action") {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(out, "delegate_task") {
		t.Errorf("unknown-action text should list valid actions, got %q", out)
	}
}

func TestExecuteContainsPanics(t *testing.T) {
	// Inbox is not overridden on the stub, so the call panics through the
	// nil embedded interface. Execute must still return text.
	d := newTestDispatcher(&stubTracker{}, &fakeDelegator{}, nil)

	out := d.Execute(context.Background(), "check_inbox", nil)
	if !strings.Contains(out, "Error executing check_inbox") {
		t.Errorf("out = %q, want contained panic text", out)
	}
}

func TestExecuteInvalidInput(t *testing.T) {
	d := newTestDispatcher(&stubTracker{}, &fakeDelegator{}, nil)

	out := d.Execute(context.Background(), "get_task", json.RawMessage(`{"task_id": "not a number"}`))
	if !strings.Contains(out, "Error executing get_task") {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteRejectsInvalidStatus(t *testing.T) {
	d := newTestDispatcher(&stubTracker{}, &fakeDelegator{}, nil)

	out := d.Execute(context.Background(), "update_task", json.RawMessage(`{"task_id": 1, "status": "bogus"}`))
	if !strings.Contains(out, "invalid status") {
		t.Errorf("out = %q", out)
	}
	for _, s := range []string{"pending", "launched", "in_progress", "completed", "failed"} {
		if !strings.Contains(out, s) {
			t.Errorf("rejection should list %q, got %q", s, out)
		}
	}
}

func TestExecuteRejectsInvalidColumn(t *testing.T) {
	d := newTestDispatcher(&stubTracker{}, &fakeDelegator{}, nil)

	out := d.Execute(context.Background(), "move_card", json.RawMessage(`{"card_id": 1, "column": "limbo"}`))
	if !strings.Contains(out, "invalid column") || !strings.Contains(out, "review") {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteMoveCard(t *testing.T) {
	d := newTestDispatcher(&stubTracker{}, &fakeDelegator{}, nil)

	out := d.Execute(context.Background(), "move_card", json.RawMessage(`{"card_id": 3, "column": "done"}`))
	if out != "Card 3 moved to done." {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteUnreadCount(t *testing.T) {
	d := newTestDispatcher(&stubTracker{unread: 4}, &fakeDelegator{}, nil)

	out := d.Execute(context.Background(), "unread_count", nil)
	if out != "4 unread message(s)." {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteDelegateTask(t *testing.T) {
	del := &fakeDelegator{res: &delegate.Result{TaskID: 7, SessionID: "w1-x-1"}}
	d := newTestDispatcher(&stubTracker{}, del, nil)

	input := json.RawMessage(`{"worker": "w1", "prompt": "do it", "subject": "thing", "turn_budget": 12, "card_id": 9}`)
	out := d.Execute(context.Background(), "delegate_task", input)

	if !strings.Contains(out, "Task 7 delegated") {
		t.Errorf("out = %q", out)
	}
	if del.req.Worker != "w1" || del.req.TurnBudget != 12 {
		t.Errorf("delegate request = %+v", del.req)
	}
	if del.req.LinkCardID == nil || *del.req.LinkCardID != 9 {
		t.Errorf("LinkCardID = %v, want 9", del.req.LinkCardID)
	}
}

func TestExecuteDelegateTaskMissingFields(t *testing.T) {
	del := &fakeDelegator{}
	d := newTestDispatcher(&stubTracker{}, del, nil)

	out := d.Execute(context.Background(), "delegate_task", json.RawMessage(`{"worker": "w1"}`))
	if !strings.Contains(out, "Error executing delegate_task") {
		t.Errorf("out = %q", out)
	}
	if del.req != nil {
		t.Error("delegator must not be called for invalid input")
	}
}

func TestExecuteEmberHealth(t *testing.T) {
	trk := &stubTracker{registry: map[string]string{"w1": "http://10.0.0.2:9100"}}
	prober := &fakeProber{health: &models.HealthStatus{Status: "ok", ActiveTaskCount: 1, UptimeSeconds: 90}}
	d := newTestDispatcher(trk, &fakeDelegator{}, prober)

	out := d.Execute(context.Background(), "ember_health", json.RawMessage(`{"worker": "w1"}`))
	if !strings.Contains(out, "ok") || !strings.Contains(out, "1 active task") {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteEmberActiveTasksOrphans(t *testing.T) {
	trk := &stubTracker{registry: map[string]string{"w1": "http://10.0.0.2:9100"}}
	prober := &fakeProber{active: &ember.ActiveTasksResponse{Orphaned: []string{"w1-crash-1"}}}
	d := newTestDispatcher(trk, &fakeDelegator{}, prober)

	out := d.Execute(context.Background(), "ember_active_tasks", json.RawMessage(`{"worker": "w1"}`))
	if !strings.Contains(out, "idle") || !strings.Contains(out, "w1-crash-1") {
		t.Errorf("out = %q", out)
	}
}

func TestExecuteRetryRequiresFailed(t *testing.T) {
	trk := &stubTracker{tasks: map[int64]*models.Task{
		5: {ID: 5, Status: models.TaskStatusLaunched, Assignee: "w1"},
	}}
	del := &fakeDelegator{}
	d := newTestDispatcher(trk, del, nil)

	out := d.Execute(context.Background(), "retry_task", json.RawMessage(`{"task_id": 5}`))
	if !strings.Contains(out, "only failed tasks") {
		t.Errorf("out = %q", out)
	}
	if del.req != nil {
		t.Error("retry of a non-failed task must not delegate")
	}
}

func TestExecuteKillTask(t *testing.T) {
	trk := &stubTracker{}
	d := newTestDispatcher(trk, &fakeDelegator{}, nil)

	out := d.Execute(context.Background(), "kill_task", json.RawMessage(`{"task_id": 9, "reason": "stuck"}`))
	if !strings.Contains(out, "Task 9 marked failed") || !strings.Contains(out, "stuck") {
		t.Errorf("out = %q", out)
	}
	if trk.statuses[9] != models.TaskStatusFailed {
		t.Errorf("status = %q, want failed", trk.statuses[9])
	}
}

func TestCatalogueMatchesActionTable(t *testing.T) {
	d := newTestDispatcher(&stubTracker{}, &fakeDelegator{}, nil)
	names := d.ActionNames()
	if len(names) != 24 {
		t.Errorf("action count = %d, want 24", len(names))
	}

	tools := Catalogue()
	if len(tools) != len(names) {
		t.Fatalf("catalogue has %d tools, table has %d actions", len(tools), len(names))
	}
	seen := map[string]bool{}
	for _, name := range names {
		seen[name] = true
	}
	for _, tool := range tools {
		if tool.OfTool == nil {
			t.Fatal("catalogue entry missing tool")
		}
		if !seen[tool.OfTool.Name] {
			t.Errorf("catalogue advertises %q, not in the dispatch table", tool.OfTool.Name)
		}
	}
}
