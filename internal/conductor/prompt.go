package conductor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ShayCichocki/hearth/pkg/models"
)

// Trigger is what caused a tick to run.
type Trigger string

const (
	// TriggerPeriodic is a scheduled tick.
	TriggerPeriodic Trigger = "periodic"
	// TriggerTaskCompleted is a tick fired because a delegated task
	// reached a terminal state.
	TriggerTaskCompleted Trigger = "task_completed"
)

// SystemPrompt composes the conductor's system prompt from its identity
// and the worker roster snapshot for this tick.
func SystemPrompt(conductorName string, workers map[string]models.WorkerEntry) string {
	names := make([]string, 0, len(workers))
	for name := range workers {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the coordinating agent of a task delegation system.\n\n", conductorName)
	b.WriteString("You delegate work to named workers, track progress through the tracker, ")
	b.WriteString("and communicate with other agents via messages. Each worker runs one task ")
	b.WriteString("at a time; a delegation to a busy worker is rejected, and a delegation ")
	b.WriteString("blocked by an incomplete task is recorded but deferred.\n\n")

	if len(names) == 0 {
		b.WriteString("No workers are currently configured. You can still inspect the tracker.\n")
	} else {
		b.WriteString("Available workers:\n")
		for _, name := range names {
			entry := workers[name]
			fmt.Fprintf(&b, "- %s", name)
			if len(entry.ProjectDirs) > 0 {
				projects := make([]string, 0, len(entry.ProjectDirs))
				for p := range entry.ProjectDirs {
					projects = append(projects, p)
				}
				sort.Strings(projects)
				fmt.Fprintf(&b, " (projects: %s)", strings.Join(projects, ", "))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUse the provided tools for every action. Check your inbox and the task ")
	b.WriteString("list before delegating new work. When a task completes, honor its ")
	b.WriteString("on-complete instruction if one was recorded.")
	return b.String()
}

// ContextMessage builds the user message opening a tick for the given
// trigger. completedTask is consulted only for TriggerTaskCompleted.
func ContextMessage(trigger Trigger, now time.Time, completedTask *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tick at %s.\n", now.Format(time.RFC3339))

	switch trigger {
	case TriggerTaskCompleted:
		if completedTask != nil {
			fmt.Fprintf(&b, "Task %d (%q, assignee %s) reached state %s.\n",
				completedTask.ID, completedTask.Subject, completedTask.Assignee, completedTask.Status)
			if completedTask.Output != "" {
				fmt.Fprintf(&b, "Output: %s\n", completedTask.Output)
			}
			if completedTask.OnComplete != "" {
				fmt.Fprintf(&b, "Recorded on-complete instruction: %s\n", completedTask.OnComplete)
			}
		} else {
			b.WriteString("A delegated task reached a terminal state.\n")
		}
		b.WriteString("Review the result and decide on follow-up work.")
	default:
		b.WriteString("Periodic check: review the inbox, running tasks, and the board; delegate follow-up work as needed.")
	}
	return b.String()
}
