package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/hearth/pkg/models"
)

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
anthropic:
  api_key: test-key
tracker:
  address: http://tracker.local:8400
  credential: tracker-secret
conductor:
  name: maestro
  turn_budget: 12
workers:
  w1:
    address: http://10.0.0.2:9100
    credential: w1-secret
    workdir: /home/w1/work
    project_dirs:
      hearth: /home/w1/src/hearth
  w2:
    address: http://10.0.0.3:9100
    credential: w2-secret
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Anthropic.APIKey, "test-key")
	}
	if cfg.Tracker.Address != "http://tracker.local:8400" {
		t.Errorf("Tracker.Address = %q", cfg.Tracker.Address)
	}
	if cfg.Conductor.Name != "maestro" {
		t.Errorf("Conductor.Name = %q, want %q", cfg.Conductor.Name, "maestro")
	}
	if cfg.Conductor.TurnBudget != 12 {
		t.Errorf("TurnBudget = %d, want 12", cfg.Conductor.TurnBudget)
	}
	// Defaults survive partial config.
	if cfg.Conductor.MaxParallelTools != 4 {
		t.Errorf("MaxParallelTools = %d, want default 4", cfg.Conductor.MaxParallelTools)
	}

	if len(cfg.Workers) != 2 {
		t.Fatalf("len(Workers) = %d, want 2", len(cfg.Workers))
	}
	w1 := cfg.Workers["w1"]
	if w1.Name != "w1" {
		t.Errorf("worker name not normalized from key: %q", w1.Name)
	}
	if w1.ProjectDirs["hearth"] != "/home/w1/src/hearth" {
		t.Errorf("ProjectDirs[hearth] = %q", w1.ProjectDirs["hearth"])
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	cfg := Default()
	cfg.Workers["w1"] = workerEntry("w1", "http://10.0.0.2:9100")

	snap := cfg.Snapshot()
	delete(cfg.Workers, "w1")

	if _, ok := snap["w1"]; !ok {
		t.Error("snapshot should be unaffected by later registry changes")
	}
}

func TestWorkerNamesSorted(t *testing.T) {
	cfg := Default()
	cfg.Workers["zeta"] = workerEntry("zeta", "")
	cfg.Workers["alpha"] = workerEntry("alpha", "")

	names := cfg.WorkerNames()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("WorkerNames() = %v, want [alpha zeta]", names)
	}
}

func TestWorkersFileRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "workers.yaml")

	cfg := Default()
	cfg.Workers["w1"] = workerEntry("w1", "http://10.0.0.2:9100")
	cfg.Workers["w2"] = workerEntry("w2", "http://10.0.0.3:9100")

	if err := WriteWorkersFile(path, cfg.Workers); err != nil {
		t.Fatalf("WriteWorkersFile failed: %v", err)
	}

	loaded := Default()
	if err := ReadWorkersFile(path, loaded); err != nil {
		t.Fatalf("ReadWorkersFile failed: %v", err)
	}

	if len(loaded.Workers) != 2 {
		t.Fatalf("len(Workers) = %d, want 2", len(loaded.Workers))
	}
	if loaded.Workers["w2"].Address != "http://10.0.0.3:9100" {
		t.Errorf("w2 address = %q", loaded.Workers["w2"].Address)
	}
}

func TestReadWorkersFileRejectsEmptyName(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "workers.yaml")
	content := "workers:\n  - address: http://10.0.0.2:9100\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := ReadWorkersFile(path, Default()); err == nil {
		t.Error("expected error for entry with empty name")
	}
}

func workerEntry(name, addr string) models.WorkerEntry {
	return models.WorkerEntry{
		Name:       name,
		Address:    addr,
		Credential: name + "-secret",
	}
}
