// Package delegate implements the handoff of one task from the Conductor
// to an Ember worker: record the task in the Tracker first, then resolve
// the worker's address and submit the job. Tracker state is the source of
// truth, so every failure path leaves the task record telling it.
package delegate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/hearth/internal/ember"
	"github.com/ShayCichocki/hearth/internal/resolve"
	"github.com/ShayCichocki/hearth/internal/tracker"
	"github.com/ShayCichocki/hearth/pkg/models"
)

// UnknownWorkerError rejects a delegation to a worker name that is not
// configured. Known names are listed so the caller can self-correct.
type UnknownWorkerError struct {
	Worker string
	Known  []string
}

func (e *UnknownWorkerError) Error() string {
	return fmt.Sprintf("unknown worker %q: known workers are %s", e.Worker, strings.Join(e.Known, ", "))
}

// TrackerAPI is the slice of the Tracker client delegation needs.
// *tracker.Client satisfies it.
type TrackerAPI interface {
	CreateTask(ctx context.Context, req tracker.CreateTaskRequest) (*models.Task, error)
	Link(ctx context.Context, req tracker.LinkRequest) error
	UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus, output string) (*models.Task, error)
	LookupWorker(ctx context.Context, name string) (*models.WorkerRegistration, error)
}

// WorkerSubmitter is the slice of the worker client delegation needs.
type WorkerSubmitter interface {
	Execute(ctx context.Context, req ember.ExecuteRequest) (*ember.ExecuteResponse, error)
}

// WorkerClientFactory builds a submitter for a resolved worker address.
// Indirected so tests can substitute a fake without an HTTP server.
type WorkerClientFactory func(baseURL, credential string) WorkerSubmitter

// Request is one delegation from the Conductor's point of view.
type Request struct {
	Worker          string
	Prompt          string
	Subject         string
	ParentTaskID    *int64
	RootTaskID      *int64
	BlockedByTaskID *int64
	LinkCardID      *int64
	OnComplete      string
	TurnBudget      int
	Project         string
	WorkDirOverride string
	TargetBranch    string
	Metadata        map[string]string
}

// Result is the outcome of a delegation attempt. Exactly one of the
// terminal shapes holds: launched (SessionID set), deferred (Deferred
// true, no session), or the whole call returned an error.
type Result struct {
	TaskID    int64
	SessionID string
	Deferred  bool
	Warnings  []string
}

// Text renders the result for the Conductor's transcript.
func (r *Result) Text() string {
	var b strings.Builder
	if r.Deferred {
		fmt.Fprintf(&b, "Task %d created but deferred: it is blocked by an incomplete task and will not start until the blocker completes.", r.TaskID)
	} else {
		fmt.Fprintf(&b, "Task %d delegated, running in session %s.", r.TaskID, r.SessionID)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\nWarning: %s", w)
	}
	return b.String()
}

// Delegator performs the delegation protocol against a fixed worker
// roster and Tracker.
type Delegator struct {
	workers        map[string]models.WorkerEntry
	trk            TrackerAPI
	trackerAddress string
	trackerToken   string
	sender         string
	newWorker      WorkerClientFactory
}

// New creates a Delegator. workers is the configured roster keyed by
// name; trackerAddress and trackerToken are handed to workers so sessions
// can report back on their own.
func New(workers map[string]models.WorkerEntry, trk TrackerAPI, trackerAddress, trackerToken, sender string, factory WorkerClientFactory) *Delegator {
	if factory == nil {
		factory = func(baseURL, credential string) WorkerSubmitter {
			return ember.NewClient(baseURL, credential)
		}
	}
	return &Delegator{
		workers:        workers,
		trk:            trk,
		trackerAddress: trackerAddress,
		trackerToken:   trackerToken,
		sender:         sender,
		newWorker:      factory,
	}
}

// Delegate runs the full protocol for one request. The task record is
// created before any submission attempt; if submission then fails, the
// record is marked failed so nothing is left silently pending.
func (d *Delegator) Delegate(ctx context.Context, req Request) (*Result, error) {
	entry, ok := d.workers[req.Worker]
	if !ok {
		return nil, &UnknownWorkerError{Worker: req.Worker, Known: d.knownWorkers()}
	}
	// A worker without a credential cannot accept a submission, so the
	// delegation is rejected before any task record exists.
	if entry.Credential == "" {
		return nil, fmt.Errorf("worker %q has no credential configured", req.Worker)
	}

	res, err := resolve.Resolve(ctx, req.Worker, d.trk, entry.Address)
	if err != nil {
		return nil, err
	}
	warnings := res.Warnings

	task, err := d.trk.CreateTask(ctx, tracker.CreateTaskRequest{
		Assignee:        req.Worker,
		Prompt:          req.Prompt,
		Subject:         req.Subject,
		ParentTaskID:    req.ParentTaskID,
		RootTaskID:      req.RootTaskID,
		BlockedByTaskID: req.BlockedByTaskID,
		Metadata:        req.Metadata,
		OnComplete:      req.OnComplete,
		TurnBudget:      req.TurnBudget,
		Project:         req.Project,
		TargetBranch:    req.TargetBranch,
	})
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	if req.ParentTaskID != nil {
		linkReq := tracker.LinkRequest{
			SourceKind: "task",
			SourceID:   *req.ParentTaskID,
			TargetKind: "task",
			TargetID:   task.ID,
		}
		if err := d.trk.Link(ctx, linkReq); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not link task %d to parent %d: %v", task.ID, *req.ParentTaskID, err))
		}
	}

	if req.LinkCardID != nil {
		linkReq := tracker.LinkRequest{
			SourceKind: "card",
			SourceID:   *req.LinkCardID,
			TargetKind: "task",
			TargetID:   task.ID,
		}
		if err := d.trk.Link(ctx, linkReq); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not link task %d to card %d: %v", task.ID, *req.LinkCardID, err))
		}
	}

	// The Tracker may report a live blocker even when the caller supplied
	// none, such as a sibling still holding the target branch.
	if task.Blocked() {
		return &Result{TaskID: task.ID, Deferred: true, Warnings: warnings}, nil
	}

	workDir := entry.ResolveWorkDir(req.WorkDirOverride, req.Project)
	worker := d.newWorker(res.URL, entry.Credential)

	exec, err := worker.Execute(ctx, ember.ExecuteRequest{
		Prompt:                    req.Prompt,
		Subject:                   req.Subject,
		TaskID:                    &task.ID,
		WorkingDir:                workDir,
		TurnBudget:                req.TurnBudget,
		TrackerCallbackAddress:    d.trackerAddress,
		TrackerCallbackCredential: d.trackerToken,
		SenderName:                d.sender,
		TargetBranch:              req.TargetBranch,
	})
	if err != nil {
		output := fmt.Sprintf("submission to worker %s failed: %v", req.Worker, err)
		if _, markErr := d.trk.UpdateTaskStatus(ctx, task.ID, models.TaskStatusFailed, output); markErr != nil {
			return nil, fmt.Errorf(
				"submitting task %d to worker %s: %w; task %d is orphaned in pending state because marking it failed also failed: %v",
				task.ID, req.Worker, err, task.ID, markErr)
		}
		return nil, fmt.Errorf("submitting task %d to worker %s: %w; task marked failed", task.ID, req.Worker, err)
	}

	if _, err := d.trk.UpdateTaskStatus(ctx, task.ID, models.TaskStatusLaunched, ""); err != nil {
		warnings = append(warnings, fmt.Sprintf("task %d is running but could not be marked launched: %v", task.ID, err))
	}

	return &Result{TaskID: task.ID, SessionID: exec.SessionID, Warnings: warnings}, nil
}

func (d *Delegator) knownWorkers() []string {
	names := make([]string, 0, len(d.workers))
	for name := range d.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
