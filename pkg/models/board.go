package models

import "time"

// BoardColumn is a column on the Tracker's kanban board.
type BoardColumn string

const (
	// ColumnTodo holds cards not yet started.
	ColumnTodo BoardColumn = "todo"
	// ColumnDoing holds cards being worked on.
	ColumnDoing BoardColumn = "doing"
	// ColumnReview holds cards awaiting review.
	ColumnReview BoardColumn = "review"
	// ColumnDone holds finished cards.
	ColumnDone BoardColumn = "done"
)

// Valid returns true if the column is a known value.
func (c BoardColumn) Valid() bool {
	switch c {
	case ColumnTodo, ColumnDoing, ColumnReview, ColumnDone:
		return true
	default:
		return false
	}
}

// BoardColumns lists every valid column, in board order.
func BoardColumns() []BoardColumn {
	return []BoardColumn{ColumnTodo, ColumnDoing, ColumnReview, ColumnDone}
}

// Card is a board card tracked by the Tracker.
type Card struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Column      BoardColumn `json:"column"`
	Archived    bool        `json:"archived,omitempty"`
	// TaskID links the card to a delegated task, when one exists.
	TaskID    *int64    `json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a note passed between agents through the Tracker.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a free-form note stored in the Tracker.
type Note struct {
	ID        int64     `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchHit is one full-text search result from the Tracker.
type SearchHit struct {
	// Kind names the object type the hit refers to (task, message, note, card).
	Kind    string `json:"kind"`
	ID      int64  `json:"id"`
	Snippet string `json:"snippet"`
}
