package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/hearth/pkg/models"
)

// workersFile is the on-disk shape of a standalone worker registry file.
// Entries are a list rather than a map so the file diffs cleanly.
type workersFile struct {
	Workers []models.WorkerEntry `yaml:"workers"`
}

// ReadWorkersFile loads worker entries from a standalone workers.yaml.
// Entries from the file override same-named entries already in cfg.
func ReadWorkersFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading workers file: %w", err)
	}

	var file workersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing workers file %s: %w", path, err)
	}

	if cfg.Workers == nil {
		cfg.Workers = make(map[string]models.WorkerEntry, len(file.Workers))
	}
	for _, entry := range file.Workers {
		if entry.Name == "" {
			return fmt.Errorf("workers file %s: entry with empty name", path)
		}
		cfg.Workers[entry.Name] = entry
	}

	return nil
}

// WriteWorkersFile exports the worker registry to a workers.yaml, sorted
// by name for stable output.
func WriteWorkersFile(path string, workers map[string]models.WorkerEntry) error {
	names := make([]string, 0, len(workers))
	for name := range workers {
		names = append(names, name)
	}
	sort.Strings(names)

	file := workersFile{Workers: make([]models.WorkerEntry, 0, len(names))}
	for _, name := range names {
		file.Workers = append(file.Workers, workers[name])
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encoding workers file: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing workers file: %w", err)
	}

	return nil
}
