package tracker

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ShayCichocki/hearth/pkg/models"
)

// CreateTaskRequest carries every field the Tracker accepts at task
// creation. The Tracker decides the authoritative blocked_by_task_id: a
// stale reference to an already-completed blocker comes back cleared.
type CreateTaskRequest struct {
	Assignee        string            `json:"assignee"`
	Prompt          string            `json:"prompt"`
	Subject         string            `json:"subject"`
	ParentTaskID    *int64            `json:"parent_task_id,omitempty"`
	RootTaskID      *int64            `json:"root_task_id,omitempty"`
	BlockedByTaskID *int64            `json:"blocked_by_task_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	OnComplete      string            `json:"on_complete,omitempty"`
	TurnBudget      int               `json:"turn_budget,omitempty"`
	Project         string            `json:"project,omitempty"`
	TargetBranch    string            `json:"target_branch,omitempty"`
}

// UpdateTaskRequest carries a partial task update. Nil fields are left
// untouched by the Tracker.
type UpdateTaskRequest struct {
	Status       *models.TaskStatus `json:"status,omitempty"`
	Output       *string            `json:"output,omitempty"`
	ParentTaskID *int64             `json:"parent_task_id,omitempty"`
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Assignee string
	Status   models.TaskStatus
	Limit    int
}

// CreateTask creates a task record in pending state.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, idPath("/api/tasks", id), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks lists tasks matching the filter.
func (c *Client) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	query := url.Values{}
	if filter.Assignee != "" {
		query.Set("assignee", filter.Assignee)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", query, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask applies a partial update and returns the updated record.
func (c *Client) UpdateTask(ctx context.Context, id int64, req UpdateTaskRequest) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPatch, idPath("/api/tasks", id), nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus is a convenience wrapper setting status and output.
func (c *Client) UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus, output string) (*models.Task, error) {
	req := UpdateTaskRequest{Status: &status}
	if output != "" {
		req.Output = &output
	}
	return c.UpdateTask(ctx, id, req)
}

// ListTaskTrees lists the dependency trees known to the Tracker.
func (c *Client) ListTaskTrees(ctx context.Context) ([]models.TaskTree, error) {
	var trees []models.TaskTree
	if err := c.do(ctx, http.MethodGet, "/api/task-trees", nil, nil, &trees); err != nil {
		return nil, err
	}
	return trees, nil
}

// GetTaskTree fetches the dependency tree rooted at the given task.
func (c *Client) GetTaskTree(ctx context.Context, rootID int64) (*models.TaskTree, error) {
	var tree models.TaskTree
	if err := c.do(ctx, http.MethodGet, idPath("/api/task-trees", rootID), nil, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// LinkRequest attaches one tracked object to another (e.g. a task to a
// board card).
type LinkRequest struct {
	SourceKind string `json:"source_kind"`
	SourceID   int64  `json:"source_id"`
	TargetKind string `json:"target_kind"`
	TargetID   int64  `json:"target_id"`
}

// Link records a relation between two tracked objects.
func (c *Client) Link(ctx context.Context, req LinkRequest) error {
	return c.do(ctx, http.MethodPost, "/api/links", nil, req, nil)
}

// LookupWorker fetches a worker's registry entry by name.
func (c *Client) LookupWorker(ctx context.Context, name string) (*models.WorkerRegistration, error) {
	var reg models.WorkerRegistration
	if err := c.do(ctx, http.MethodGet, "/api/workers/"+url.PathEscape(name), nil, nil, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// RegisterWorker records a worker's current address in the registry.
// Workers call this on startup; addresses are ephemeral across restarts.
func (c *Client) RegisterWorker(ctx context.Context, name, address string) error {
	body := map[string]string{"address": address}
	return c.do(ctx, http.MethodPut, "/api/workers/"+url.PathEscape(name), nil, body, nil)
}
