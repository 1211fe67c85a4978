// Package conductor runs the coordinating agent: the bounded tick loop
// that drives the completion engine, and the tool dispatch layer that
// turns the engine's tool calls into Tracker and worker operations.
package conductor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/hearth/internal/delegate"
	"github.com/ShayCichocki/hearth/internal/ember"
	"github.com/ShayCichocki/hearth/internal/resolve"
	"github.com/ShayCichocki/hearth/internal/tracker"
	"github.com/ShayCichocki/hearth/pkg/models"
)

// TrackerService is every Tracker operation the dispatch layer reaches
// for. *tracker.Client satisfies it.
type TrackerService interface {
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	ListTasks(ctx context.Context, filter tracker.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, id int64, req tracker.UpdateTaskRequest) (*models.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus, output string) (*models.Task, error)
	ListTaskTrees(ctx context.Context) ([]models.TaskTree, error)
	GetTaskTree(ctx context.Context, rootID int64) (*models.TaskTree, error)
	LookupWorker(ctx context.Context, name string) (*models.WorkerRegistration, error)
	SendMessage(ctx context.Context, recipient, body string) (*models.Message, error)
	Inbox(ctx context.Context) ([]models.Message, error)
	Feed(ctx context.Context, limit int) ([]models.Message, error)
	UnreadCount(ctx context.Context) (int, error)
	CreateNote(ctx context.Context, subject, body string) (*models.Note, error)
	ListNotes(ctx context.Context, limit int) ([]models.Note, error)
	GetNote(ctx context.Context, id int64) (*models.Note, error)
	CreateCard(ctx context.Context, req tracker.CreateCardRequest) (*models.Card, error)
	ListCards(ctx context.Context, column models.BoardColumn) ([]models.Card, error)
	GetCard(ctx context.Context, id int64) (*models.Card, error)
	MoveCard(ctx context.Context, id int64, column models.BoardColumn) (*models.Card, error)
	UpdateCard(ctx context.Context, id int64, req tracker.UpdateCardRequest) (*models.Card, error)
	ArchiveCard(ctx context.Context, id int64) error
	Search(ctx context.Context, queryText string) ([]models.SearchHit, error)
}

// TaskDelegator is the delegation entry point the dispatch layer uses.
type TaskDelegator interface {
	Delegate(ctx context.Context, req delegate.Request) (*delegate.Result, error)
}

// WorkerProber is the read-only slice of the worker client used for
// health and active-task queries.
type WorkerProber interface {
	Health(ctx context.Context) (*models.HealthStatus, error)
	ActiveTasks(ctx context.Context) (*ember.ActiveTasksResponse, error)
}

// ProberFactory builds a prober for a resolved worker address.
type ProberFactory func(baseURL, credential string) WorkerProber

// Dispatcher executes the closed set of conductor actions. Every
// execution returns text; failures are contained as text, never
// propagated as errors or panics, so a bad tool call can never end a
// tick.
type Dispatcher struct {
	trk       TrackerService
	delegator TaskDelegator
	workers   map[string]models.WorkerEntry
	newProber ProberFactory
	actions   map[string]actionDef
	names     []string
}

// NewDispatcher wires the dispatch table. workers is the configured
// roster snapshot for this tick; proberFactory may be nil to use the
// real worker client.
func NewDispatcher(trk TrackerService, delegator TaskDelegator, workers map[string]models.WorkerEntry, proberFactory ProberFactory) *Dispatcher {
	if proberFactory == nil {
		proberFactory = func(baseURL, credential string) WorkerProber {
			return ember.NewClient(baseURL, credential)
		}
	}

	d := &Dispatcher{
		trk:       trk,
		delegator: delegator,
		workers:   workers,
		newProber: proberFactory,
		actions:   make(map[string]actionDef),
	}
	for _, def := range actionTable() {
		d.actions[def.name] = def
		d.names = append(d.names, def.name)
	}
	sort.Strings(d.names)
	return d
}

// ActionNames lists the valid action names, sorted.
func (d *Dispatcher) ActionNames() []string {
	return append([]string(nil), d.names...)
}

// Execute runs the named action with the given JSON input. The returned
// string is the complete result; it never panics.
func (d *Dispatcher) Execute(ctx context.Context, name string, input json.RawMessage) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("Error executing %s: internal panic: %v", name, r)
		}
	}()

	def, ok := d.actions[name]
	if !ok {
		return fmt.Sprintf("Unknown action %q. Valid actions: %s", name, strings.Join(d.names, ", "))
	}

	text, err := def.run(d, ctx, input)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %v", name, err)
	}
	return text
}

// resolveWorker finds a configured worker's current address, preferring
// the registry over the configured fallback.
func (d *Dispatcher) resolveWorker(ctx context.Context, name string) (*resolve.Resolution, models.WorkerEntry, error) {
	entry, ok := d.workers[name]
	if !ok {
		names := make([]string, 0, len(d.workers))
		for n := range d.workers {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, entry, fmt.Errorf("unknown worker %q: known workers are %s", name, strings.Join(names, ", "))
	}
	res, err := resolve.Resolve(ctx, name, d.trk, entry.Address)
	if err != nil {
		return nil, entry, err
	}
	return res, entry, nil
}
