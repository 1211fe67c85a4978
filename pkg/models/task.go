// Package models defines the shared domain types exchanged between the
// Conductor, Ember workers, and the Tracker service.
package models

import "time"

// TaskStatus represents the current state of a tracked task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task record exists but has not been
	// submitted to a worker.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusLaunched indicates the task was accepted by a worker.
	TaskStatusLaunched TaskStatus = "launched"
	// TaskStatusInProgress indicates the worker has started executing.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusLaunched, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// TaskStatuses lists every valid status, in lifecycle order.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusPending,
		TaskStatusLaunched,
		TaskStatusInProgress,
		TaskStatusCompleted,
		TaskStatusFailed,
	}
}

// Task is the unit of delegated work. The Tracker owns task records; the
// Conductor and Embers only read and write them through the Tracker API.
type Task struct {
	// ID is assigned by the Tracker at creation.
	ID int64 `json:"id"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// Assignee is the worker name the task is delegated to.
	Assignee string `json:"assignee"`
	// Prompt is the free-text instruction handed to the worker.
	Prompt string `json:"prompt"`
	// Subject is a short human-readable label.
	Subject string `json:"subject"`
	// ParentTaskID links a task spawned as a consequence of another task.
	ParentTaskID *int64 `json:"parent_task_id,omitempty"`
	// RootTaskID is the root of the delegation tree this task belongs to.
	RootTaskID *int64 `json:"root_task_id,omitempty"`
	// BlockedByTaskID defers submission until the referenced task completes.
	// The Tracker's value is authoritative: it may clear a stale reference
	// whose blocker already completed.
	BlockedByTaskID *int64 `json:"blocked_by_task_id,omitempty"`
	// Metadata is an opaque key/value bag, attached only to root tasks.
	Metadata map[string]string `json:"metadata,omitempty"`
	// OnComplete is a follow-up instruction consumed by a future tick.
	OnComplete string `json:"on_complete,omitempty"`
	// Output is the result summary, set on completion or failure.
	Output string `json:"output,omitempty"`
	// TurnBudget bounds the worker's decision loop for this task.
	TurnBudget int `json:"turn_budget,omitempty"`
	// Project selects a per-project working directory on the worker.
	Project string `json:"project,omitempty"`
	// TargetBranch is the branch or ref the worker should operate on.
	TargetBranch string `json:"target_branch,omitempty"`
	// CreatedAt is when the Tracker created the record.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Blocked reports whether the task is still waiting on another task.
func (t *Task) Blocked() bool {
	return t.BlockedByTaskID != nil
}

// TaskTree is a dependency tree rooted at a single task.
type TaskTree struct {
	// RootTaskID identifies the tree.
	RootTaskID int64 `json:"root_task_id"`
	// Tasks lists every task in the tree, root first.
	Tasks []Task `json:"tasks"`
}
