package models

import "testing"

func TestTaskStatusValid(t *testing.T) {
	for _, s := range TaskStatuses() {
		if !s.Valid() {
			t.Errorf("status %q should be valid", s)
		}
	}

	invalid := []TaskStatus{"", "done", "running", "PENDING"}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("status %q should be invalid", s)
		}
	}
}

func TestTaskBlocked(t *testing.T) {
	task := &Task{ID: 1}
	if task.Blocked() {
		t.Error("task without blocker should not be blocked")
	}

	blocker := int64(7)
	task.BlockedByTaskID = &blocker
	if !task.Blocked() {
		t.Error("task with blocker should be blocked")
	}
}

func TestBoardColumnValid(t *testing.T) {
	for _, c := range BoardColumns() {
		if !c.Valid() {
			t.Errorf("column %q should be valid", c)
		}
	}
	if BoardColumn("backlog").Valid() {
		t.Error("column \"backlog\" should be invalid")
	}
}

func TestResolveWorkDir(t *testing.T) {
	entry := &WorkerEntry{
		Name:    "w1",
		WorkDir: "/home/w1/work",
		ProjectDirs: map[string]string{
			"hearth": "/home/w1/src/hearth",
		},
	}

	tests := []struct {
		name     string
		override string
		project  string
		want     string
	}{
		{"default", "", "", "/home/w1/work"},
		{"project mapping", "", "hearth", "/home/w1/src/hearth"},
		{"unknown project falls back", "", "other", "/home/w1/work"},
		{"override wins", "/tmp/override", "hearth", "/tmp/override"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entry.ResolveWorkDir(tt.override, tt.project)
			if got != tt.want {
				t.Errorf("ResolveWorkDir(%q, %q) = %q, want %q", tt.override, tt.project, got, tt.want)
			}
		})
	}
}
