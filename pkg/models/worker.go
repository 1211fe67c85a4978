package models

import "time"

// WorkerEntry is the locally configured record for a known Ember worker.
// The Tracker's registry is the source of truth for the address; this
// entry is a fallback cache plus the delegation credential and working
// directories, which never leave local configuration.
type WorkerEntry struct {
	// Name is the worker identity, the key into the registry.
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	// Address is the last-known base URL of the worker's HTTP API.
	Address string `mapstructure:"address" yaml:"address" json:"address"`
	// Credential is the bearer secret for authenticated worker calls.
	// The same secret identifies the worker when it calls the Tracker.
	Credential string `mapstructure:"credential" yaml:"credential" json:"-"`
	// WorkDir is the default working directory for delegated tasks.
	WorkDir string `mapstructure:"workdir" yaml:"workdir" json:"workdir,omitempty"`
	// ProjectDirs maps project keys to per-project working directories.
	ProjectDirs map[string]string `mapstructure:"project_dirs" yaml:"project_dirs,omitempty" json:"project_dirs,omitempty"`
}

// ResolveWorkDir picks the effective working directory for a delegation:
// explicit override, then the per-project mapping, then the default.
func (w *WorkerEntry) ResolveWorkDir(override, project string) string {
	if override != "" {
		return override
	}
	if project != "" {
		if dir, ok := w.ProjectDirs[project]; ok && dir != "" {
			return dir
		}
	}
	return w.WorkDir
}

// WorkerRegistration is a worker's record in the Tracker's address registry.
type WorkerRegistration struct {
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveTask is the Ember-side record of the single task a worker process
// is currently running. TaskID is nil for unlinked runs.
type ActiveTask struct {
	TaskID    *int64    `json:"task_id,omitempty"`
	SessionID string    `json:"session_id"`
	Subject   string    `json:"subject"`
	StartedAt time.Time `json:"started_at"`
	WorkDir   string    `json:"workdir"`
}

// HealthStatus is the response of a worker's unauthenticated health check.
type HealthStatus struct {
	Status          string `json:"status"`
	ActiveTaskCount int    `json:"activeTaskCount"`
	UptimeSeconds   int64  `json:"uptimeSeconds"`
}
