package conductor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/hearth/internal/delegate"
	"github.com/ShayCichocki/hearth/internal/tracker"
	"github.com/ShayCichocki/hearth/pkg/models"
)

// actionDef is one entry in the closed dispatch table. The engine-facing
// tool schema and the executable handler come from the same definition so
// the two can never drift apart.
type actionDef struct {
	name        string
	description string
	properties  map[string]interface{}
	required    []string
	run         func(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error)
}

func decodeInput(input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func parseStatus(s string) (models.TaskStatus, error) {
	status := models.TaskStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q: valid statuses are %s", s, joinStatuses())
	}
	return status, nil
}

func parseColumn(s string) (models.BoardColumn, error) {
	column := models.BoardColumn(s)
	if !column.Valid() {
		return "", fmt.Errorf("invalid column %q: valid columns are %s", s, joinColumns())
	}
	return column, nil
}

func joinStatuses() string {
	var parts []string
	for _, s := range models.TaskStatuses() {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ", ")
}

func joinColumns() string {
	var parts []string
	for _, c := range models.BoardColumns() {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ", ")
}

func formatTask(t *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %d [%s] assignee=%s subject=%q", t.ID, t.Status, t.Assignee, t.Subject)
	if t.ParentTaskID != nil {
		fmt.Fprintf(&b, " parent=%d", *t.ParentTaskID)
	}
	if t.BlockedByTaskID != nil {
		fmt.Fprintf(&b, " blocked_by=%d", *t.BlockedByTaskID)
	}
	if t.Project != "" {
		fmt.Fprintf(&b, " project=%s", t.Project)
	}
	if t.TargetBranch != "" {
		fmt.Fprintf(&b, " branch=%s", t.TargetBranch)
	}
	if t.Output != "" {
		fmt.Fprintf(&b, "\nOutput: %s", t.Output)
	}
	if t.OnComplete != "" {
		fmt.Fprintf(&b, "\nOn complete: %s", t.OnComplete)
	}
	return b.String()
}

func formatTaskLine(t models.Task) string {
	line := fmt.Sprintf("#%d [%s] %s: %s", t.ID, t.Status, t.Assignee, t.Subject)
	if t.BlockedByTaskID != nil {
		line += fmt.Sprintf(" (blocked by #%d)", *t.BlockedByTaskID)
	}
	return line
}

func formatCard(c *models.Card) string {
	line := fmt.Sprintf("Card %d [%s] %q", c.ID, c.Column, c.Title)
	if c.TaskID != nil {
		line += fmt.Sprintf(" task=%d", *c.TaskID)
	}
	if c.Archived {
		line += " (archived)"
	}
	if c.Description != "" {
		line += "\n" + c.Description
	}
	return line
}

func formatMessage(m models.Message) string {
	read := "unread"
	if m.Read {
		read = "read"
	}
	return fmt.Sprintf("#%d %s -> %s [%s]: %s", m.ID, m.Sender, m.Recipient, read, m.Body)
}

func formatNote(n *models.Note) string {
	return fmt.Sprintf("Note %d %q by %s:\n%s", n.ID, n.Subject, n.Author, n.Body)
}

// actionTable defines every conductor action. Adding an action here is
// the whole job: schema and handler travel together.
func actionTable() []actionDef {
	idProp := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "integer", "description": desc}
	}
	strProp := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}

	return []actionDef{
		{
			name:        "delegate_task",
			description: "Delegate a task to a named worker. Records the task in the tracker, then submits it to the worker. A task with an incomplete blocker is created but deferred.",
			properties: map[string]interface{}{
				"worker":             strProp("Name of the worker to delegate to"),
				"prompt":             strProp("Full instruction for the worker"),
				"subject":            strProp("Short label for the task"),
				"parent_task_id":     idProp("Task that spawned this one (optional)"),
				"root_task_id":       idProp("Root of the delegation tree (optional)"),
				"blocked_by_task_id": idProp("Task that must complete before this one starts (optional)"),
				"card_id":            idProp("Board card to link the new task to (optional)"),
				"on_complete":        strProp("Follow-up instruction consumed when the task completes (optional)"),
				"turn_budget":        idProp("Maximum decision-loop turns for the worker (optional)"),
				"project":            strProp("Project name selecting the worker's per-project directory (optional)"),
				"working_dir":        strProp("Explicit working directory, overriding project and default (optional)"),
				"target_branch":      strProp("Branch the worker should operate on (optional)"),
				"metadata": map[string]interface{}{
					"type":        "object",
					"description": "Opaque string key/value bag attached to root tasks (optional)",
				},
			},
			required: []string{"worker", "prompt", "subject"},
			run:      runDelegateTask,
		},
		{
			name:        "ember_health",
			description: "Check a worker's health endpoint: status, active task count, uptime.",
			properties:  map[string]interface{}{"worker": strProp("Name of the worker to check")},
			required:    []string{"worker"},
			run:         runEmberHealth,
		},
		{
			name:        "ember_active_tasks",
			description: "Query a worker's current active task and any orphaned sessions.",
			properties:  map[string]interface{}{"worker": strProp("Name of the worker to query")},
			required:    []string{"worker"},
			run:         runEmberActiveTasks,
		},
		{
			name:        "send_message",
			description: "Send a message to another agent through the tracker.",
			properties: map[string]interface{}{
				"recipient": strProp("Agent name to send to"),
				"body":      strProp("Message body"),
			},
			required: []string{"recipient", "body"},
			run:      runSendMessage,
		},
		{
			name:        "check_inbox",
			description: "List unread messages addressed to the conductor.",
			properties:  map[string]interface{}{},
			run:         runCheckInbox,
		},
		{
			name:        "message_feed",
			description: "List recent messages across all agents.",
			properties:  map[string]interface{}{"limit": idProp("Maximum messages to return (optional)")},
			run:         runMessageFeed,
		},
		{
			name:        "unread_count",
			description: "Count unread messages addressed to the conductor.",
			properties:  map[string]interface{}{},
			run:         runUnreadCount,
		},
		{
			name:        "list_tasks",
			description: "List tracked tasks, optionally filtered by assignee and status.",
			properties: map[string]interface{}{
				"assignee": strProp("Filter by worker name (optional)"),
				"status":   strProp("Filter by status: pending, launched, in_progress, completed, failed (optional)"),
				"limit":    idProp("Maximum tasks to return (optional)"),
			},
			run: runListTasks,
		},
		{
			name:        "get_task",
			description: "Fetch one task by id, including its output.",
			properties:  map[string]interface{}{"task_id": idProp("Task id")},
			required:    []string{"task_id"},
			run:         runGetTask,
		},
		{
			name:        "update_task",
			description: "Update a task's status and/or output.",
			properties: map[string]interface{}{
				"task_id": idProp("Task id"),
				"status":  strProp("New status: pending, launched, in_progress, completed, failed (optional)"),
				"output":  strProp("Result summary to record (optional)"),
			},
			required: []string{"task_id"},
			run:      runUpdateTask,
		},
		{
			name:        "retry_task",
			description: "Re-delegate a failed task to its original assignee as a fresh attempt.",
			properties:  map[string]interface{}{"task_id": idProp("Id of the failed task to retry")},
			required:    []string{"task_id"},
			run:         runRetryTask,
		},
		{
			name:        "kill_task",
			description: "Mark a task failed with a kill reason. The worker's session is reaped on its next query.",
			properties: map[string]interface{}{
				"task_id": idProp("Task id"),
				"reason":  strProp("Why the task is being killed (optional)"),
			},
			required: []string{"task_id"},
			run:      runKillTask,
		},
		{
			name:        "create_note",
			description: "Store a free-form note in the tracker.",
			properties: map[string]interface{}{
				"subject": strProp("Note subject"),
				"body":    strProp("Note body"),
			},
			required: []string{"subject", "body"},
			run:      runCreateNote,
		},
		{
			name:        "list_notes",
			description: "List stored notes, newest first.",
			properties:  map[string]interface{}{"limit": idProp("Maximum notes to return (optional)")},
			run:         runListNotes,
		},
		{
			name:        "get_note",
			description: "Fetch one note by id.",
			properties:  map[string]interface{}{"note_id": idProp("Note id")},
			required:    []string{"note_id"},
			run:         runGetNote,
		},
		{
			name:        "create_card",
			description: "Add a card to the board, optionally linked to a task.",
			properties: map[string]interface{}{
				"title":       strProp("Card title"),
				"description": strProp("Card description (optional)"),
				"column":      strProp("Board column: todo, doing, review, done (optional, default todo)"),
				"task_id":     idProp("Task to link the card to (optional)"),
			},
			required: []string{"title"},
			run:      runCreateCard,
		},
		{
			name:        "list_cards",
			description: "List board cards, optionally filtered by column.",
			properties:  map[string]interface{}{"column": strProp("Filter by column: todo, doing, review, done (optional)")},
			run:         runListCards,
		},
		{
			name:        "get_card",
			description: "Fetch one board card by id.",
			properties:  map[string]interface{}{"card_id": idProp("Card id")},
			required:    []string{"card_id"},
			run:         runGetCard,
		},
		{
			name:        "move_card",
			description: "Move a board card to another column.",
			properties: map[string]interface{}{
				"card_id": idProp("Card id"),
				"column":  strProp("Destination column: todo, doing, review, done"),
			},
			required: []string{"card_id", "column"},
			run:      runMoveCard,
		},
		{
			name:        "update_card",
			description: "Update a board card's title and/or description.",
			properties: map[string]interface{}{
				"card_id":     idProp("Card id"),
				"title":       strProp("New title (optional)"),
				"description": strProp("New description (optional)"),
			},
			required: []string{"card_id"},
			run:      runUpdateCard,
		},
		{
			name:        "archive_card",
			description: "Archive a board card, removing it from the board view.",
			properties:  map[string]interface{}{"card_id": idProp("Card id")},
			required:    []string{"card_id"},
			run:         runArchiveCard,
		},
		{
			name:        "list_task_trees",
			description: "List the dependency trees of delegated tasks.",
			properties:  map[string]interface{}{},
			run:         runListTaskTrees,
		},
		{
			name:        "get_task_tree",
			description: "Fetch the dependency tree rooted at a task.",
			properties:  map[string]interface{}{"root_task_id": idProp("Root task id")},
			required:    []string{"root_task_id"},
			run:         runGetTaskTree,
		},
		{
			name:        "search_tracker",
			description: "Full-text search across tasks, messages, notes, and cards.",
			properties:  map[string]interface{}{"query": strProp("Search query")},
			required:    []string{"query"},
			run:         runSearchTracker,
		},
	}
}

func runDelegateTask(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Worker          string            `json:"worker"`
		Prompt          string            `json:"prompt"`
		Subject         string            `json:"subject"`
		ParentTaskID    *int64            `json:"parent_task_id"`
		RootTaskID      *int64            `json:"root_task_id"`
		BlockedByTaskID *int64            `json:"blocked_by_task_id"`
		CardID          *int64            `json:"card_id"`
		OnComplete      string            `json:"on_complete"`
		TurnBudget      int               `json:"turn_budget"`
		Project         string            `json:"project"`
		WorkingDir      string            `json:"working_dir"`
		TargetBranch    string            `json:"target_branch"`
		Metadata        map[string]string `json:"metadata"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.Worker == "" || params.Prompt == "" || params.Subject == "" {
		return "", fmt.Errorf("worker, prompt, and subject are required")
	}

	res, err := d.delegator.Delegate(ctx, delegate.Request{
		Worker:          params.Worker,
		Prompt:          params.Prompt,
		Subject:         params.Subject,
		ParentTaskID:    params.ParentTaskID,
		RootTaskID:      params.RootTaskID,
		BlockedByTaskID: params.BlockedByTaskID,
		LinkCardID:      params.CardID,
		OnComplete:      params.OnComplete,
		TurnBudget:      params.TurnBudget,
		Project:         params.Project,
		WorkDirOverride: params.WorkingDir,
		TargetBranch:    params.TargetBranch,
		Metadata:        params.Metadata,
	})
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

func runEmberHealth(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Worker string `json:"worker"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	res, entry, err := d.resolveWorker(ctx, params.Worker)
	if err != nil {
		return "", err
	}

	status, err := d.newProber(res.URL, entry.Credential).Health(ctx)
	if err != nil {
		return "", fmt.Errorf("worker %s at %s: %w", params.Worker, res.URL, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Worker %s (%s, via %s): %s, %d active task(s), up %ds",
		params.Worker, res.URL, res.Source, status.Status, status.ActiveTaskCount, status.UptimeSeconds)
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "\nWarning: %s", w)
	}
	return b.String(), nil
}

func runEmberActiveTasks(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Worker string `json:"worker"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	res, entry, err := d.resolveWorker(ctx, params.Worker)
	if err != nil {
		return "", err
	}

	active, err := d.newProber(res.URL, entry.Credential).ActiveTasks(ctx)
	if err != nil {
		return "", fmt.Errorf("worker %s at %s: %w", params.Worker, res.URL, err)
	}

	var b strings.Builder
	if active.Active == nil {
		fmt.Fprintf(&b, "Worker %s is idle.", params.Worker)
	} else {
		a := active.Active
		fmt.Fprintf(&b, "Worker %s is running session %s (subject %q", params.Worker, a.SessionID, a.Subject)
		if a.TaskID != nil {
			fmt.Fprintf(&b, ", task %d", *a.TaskID)
		}
		fmt.Fprintf(&b, ") since %s.", a.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if len(active.Orphaned) > 0 {
		fmt.Fprintf(&b, "\nOrphaned sessions: %s", strings.Join(active.Orphaned, ", "))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "\nWarning: %s", w)
	}
	return b.String(), nil
}

func runSendMessage(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Recipient string `json:"recipient"`
		Body      string `json:"body"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.Recipient == "" || params.Body == "" {
		return "", fmt.Errorf("recipient and body are required")
	}

	msg, err := d.trk.SendMessage(ctx, params.Recipient, params.Body)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Message %d sent to %s.", msg.ID, msg.Recipient), nil
}

func runCheckInbox(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	msgs, err := d.trk.Inbox(ctx)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "Inbox is empty.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d message(s):", len(msgs))
	for _, m := range msgs {
		b.WriteString("\n" + formatMessage(m))
	}
	return b.String(), nil
}

func runMessageFeed(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Limit int `json:"limit"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	msgs, err := d.trk.Feed(ctx, params.Limit)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "No messages.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d message(s):", len(msgs))
	for _, m := range msgs {
		b.WriteString("\n" + formatMessage(m))
	}
	return b.String(), nil
}

func runUnreadCount(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	count, err := d.trk.UnreadCount(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d unread message(s).", count), nil
}

func runListTasks(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Assignee string `json:"assignee"`
		Status   string `json:"status"`
		Limit    int    `json:"limit"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	filter := tracker.TaskFilter{Assignee: params.Assignee, Limit: params.Limit}
	if params.Status != "" {
		status, err := parseStatus(params.Status)
		if err != nil {
			return "", err
		}
		filter.Status = status
	}

	tasks, err := d.trk.ListTasks(ctx, filter)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks match.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s):", len(tasks))
	for _, t := range tasks {
		b.WriteString("\n" + formatTaskLine(t))
	}
	return b.String(), nil
}

func runGetTask(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		TaskID int64 `json:"task_id"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	task, err := d.trk.GetTask(ctx, params.TaskID)
	if err != nil {
		return "", err
	}
	return formatTask(task), nil
}

func runUpdateTask(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		TaskID int64   `json:"task_id"`
		Status string  `json:"status"`
		Output *string `json:"output"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.Status == "" && params.Output == nil {
		return "", fmt.Errorf("nothing to update: provide status and/or output")
	}

	req := tracker.UpdateTaskRequest{Output: params.Output}
	if params.Status != "" {
		status, err := parseStatus(params.Status)
		if err != nil {
			return "", err
		}
		req.Status = &status
	}

	task, err := d.trk.UpdateTask(ctx, params.TaskID, req)
	if err != nil {
		return "", err
	}
	return "Updated.\n" + formatTask(task), nil
}

func runRetryTask(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		TaskID int64 `json:"task_id"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	task, err := d.trk.GetTask(ctx, params.TaskID)
	if err != nil {
		return "", err
	}
	if task.Status != models.TaskStatusFailed {
		return "", fmt.Errorf("task %d is %s: only failed tasks can be retried", task.ID, task.Status)
	}

	res, err := d.delegator.Delegate(ctx, delegate.Request{
		Worker:       task.Assignee,
		Prompt:       task.Prompt,
		Subject:      task.Subject,
		ParentTaskID: &task.ID,
		RootTaskID:   task.RootTaskID,
		OnComplete:   task.OnComplete,
		TurnBudget:   task.TurnBudget,
		Project:      task.Project,
		TargetBranch: task.TargetBranch,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Retrying task %d as a fresh attempt.\n%s", task.ID, res.Text()), nil
}

func runKillTask(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		TaskID int64  `json:"task_id"`
		Reason string `json:"reason"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	output := "killed by conductor"
	if params.Reason != "" {
		output = "killed by conductor: " + params.Reason
	}

	task, err := d.trk.UpdateTaskStatus(ctx, params.TaskID, models.TaskStatusFailed, output)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task %d marked failed (%s).", task.ID, output), nil
}

func runCreateNote(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.Subject == "" || params.Body == "" {
		return "", fmt.Errorf("subject and body are required")
	}

	note, err := d.trk.CreateNote(ctx, params.Subject, params.Body)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Note %d created.", note.ID), nil
}

func runListNotes(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Limit int `json:"limit"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	notes, err := d.trk.ListNotes(ctx, params.Limit)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return "No notes.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d note(s):", len(notes))
	for _, n := range notes {
		fmt.Fprintf(&b, "\n#%d %q by %s", n.ID, n.Subject, n.Author)
	}
	return b.String(), nil
}

func runGetNote(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		NoteID int64 `json:"note_id"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	note, err := d.trk.GetNote(ctx, params.NoteID)
	if err != nil {
		return "", err
	}
	return formatNote(note), nil
}

func runCreateCard(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Column      string `json:"column"`
		TaskID      *int64 `json:"task_id"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.Title == "" {
		return "", fmt.Errorf("title is required")
	}

	column := models.ColumnTodo
	if params.Column != "" {
		var err error
		column, err = parseColumn(params.Column)
		if err != nil {
			return "", err
		}
	}

	card, err := d.trk.CreateCard(ctx, tracker.CreateCardRequest{
		Title:       params.Title,
		Description: params.Description,
		Column:      column,
		TaskID:      params.TaskID,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Card %d created in %s.", card.ID, card.Column), nil
}

func runListCards(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Column string `json:"column"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	var column models.BoardColumn
	if params.Column != "" {
		var err error
		column, err = parseColumn(params.Column)
		if err != nil {
			return "", err
		}
	}

	cards, err := d.trk.ListCards(ctx, column)
	if err != nil {
		return "", err
	}
	if len(cards) == 0 {
		return "No cards.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d card(s):", len(cards))
	for _, c := range cards {
		fmt.Fprintf(&b, "\n#%d [%s] %s", c.ID, c.Column, c.Title)
	}
	return b.String(), nil
}

func runGetCard(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		CardID int64 `json:"card_id"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	card, err := d.trk.GetCard(ctx, params.CardID)
	if err != nil {
		return "", err
	}
	return formatCard(card), nil
}

func runMoveCard(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		CardID int64  `json:"card_id"`
		Column string `json:"column"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	column, err := parseColumn(params.Column)
	if err != nil {
		return "", err
	}

	card, err := d.trk.MoveCard(ctx, params.CardID, column)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Card %d moved to %s.", card.ID, card.Column), nil
}

func runUpdateCard(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		CardID      int64   `json:"card_id"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.Title == nil && params.Description == nil {
		return "", fmt.Errorf("nothing to update: provide title and/or description")
	}

	card, err := d.trk.UpdateCard(ctx, params.CardID, tracker.UpdateCardRequest{
		Title:       params.Title,
		Description: params.Description,
	})
	if err != nil {
		return "", err
	}
	return "Updated.\n" + formatCard(card), nil
}

func runArchiveCard(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		CardID int64 `json:"card_id"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	if err := d.trk.ArchiveCard(ctx, params.CardID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Card %d archived.", params.CardID), nil
}

func runListTaskTrees(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	trees, err := d.trk.ListTaskTrees(ctx)
	if err != nil {
		return "", err
	}
	if len(trees) == 0 {
		return "No task trees.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d tree(s):", len(trees))
	for _, tree := range trees {
		fmt.Fprintf(&b, "\nRoot #%d with %d task(s)", tree.RootTaskID, len(tree.Tasks))
	}
	return b.String(), nil
}

func runGetTaskTree(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		RootTaskID int64 `json:"root_task_id"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	tree, err := d.trk.GetTaskTree(ctx, params.RootTaskID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tree rooted at #%d, %d task(s):", tree.RootTaskID, len(tree.Tasks))
	for _, t := range tree.Tasks {
		b.WriteString("\n" + formatTaskLine(t))
	}
	return b.String(), nil
}

func runSearchTracker(d *Dispatcher, ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	hits, err := d.trk.Search(ctx, params.Query)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return fmt.Sprintf("No results for %q.", params.Query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d result(s) for %q:", len(hits), params.Query)
	for _, h := range hits {
		fmt.Fprintf(&b, "\n[%s %d] %s", h.Kind, h.ID, h.Snippet)
	}
	return b.String(), nil
}
