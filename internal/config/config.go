// Package config handles configuration loading for Hearth.
// It supports XDG config paths, project-level overrides, and environment
// variables. The loaded Config is passed explicitly into the tick loop and
// the delegation protocol at construction time; nothing reads configuration
// ad hoc mid-call.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/hearth/pkg/models"
)

// Config holds all configuration for Hearth.
type Config struct {
	Anthropic AnthropicConfig               `mapstructure:"anthropic"`
	Tracker   TrackerConfig                 `mapstructure:"tracker"`
	Conductor ConductorConfig               `mapstructure:"conductor"`
	Workers   map[string]models.WorkerEntry `mapstructure:"workers"`
}

// AnthropicConfig holds completion-engine settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// TrackerConfig holds the Tracker service endpoint and credential.
type TrackerConfig struct {
	Address    string `mapstructure:"address"`
	Credential string `mapstructure:"credential"`
}

// ConductorConfig holds settings for the conductor tick loop.
type ConductorConfig struct {
	// Name identifies the conductor to the Tracker (message sender, etc.).
	Name string `mapstructure:"name"`
	// TurnBudget bounds the number of engine calls per tick.
	TurnBudget int `mapstructure:"turn_budget"`
	// MaxParallelTools bounds concurrent tool execution within a turn.
	MaxParallelTools int `mapstructure:"max_parallel_tools"`
	// DebugLog is the path of the conductor debug log, empty for none.
	DebugLog string `mapstructure:"debug_log"`
	// HistoryDB is the path of the tick history database, empty for none.
	HistoryDB string `mapstructure:"history_db"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, HEARTH_TRACKER_TOKEN)
// 2. Project config (.hearth.yaml in current directory or parent)
// 3. User config (~/.config/hearth/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("tracker.credential", "HEARTH_TRACKER_TOKEN")
	v.BindEnv("tracker.address", "HEARTH_TRACKER_ADDRESS")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Tracker.Credential = os.ExpandEnv(cfg.Tracker.Credential)
	normalizeWorkers(cfg)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Tracker.Credential = os.ExpandEnv(cfg.Tracker.Credential)
	normalizeWorkers(cfg)

	return cfg, nil
}

// normalizeWorkers fills each entry's Name from its map key so entries can
// be passed around individually.
func normalizeWorkers(cfg *Config) {
	for name, entry := range cfg.Workers {
		if entry.Name == "" {
			entry.Name = name
			cfg.Workers[name] = entry
		}
	}
}

// Snapshot returns a copy of the worker registry. The delegation protocol
// and the tick loop take one snapshot at the start of a tick and never
// re-read mid-tick.
func (c *Config) Snapshot() map[string]models.WorkerEntry {
	workers := make(map[string]models.WorkerEntry, len(c.Workers))
	for name, entry := range c.Workers {
		if entry.ProjectDirs != nil {
			dirs := make(map[string]string, len(entry.ProjectDirs))
			for k, val := range entry.ProjectDirs {
				dirs[k] = val
			}
			entry.ProjectDirs = dirs
		}
		workers[name] = entry
	}
	return workers
}

// WorkerNames returns the configured worker names, sorted.
func (c *Config) WorkerNames() []string {
	names := make([]string, 0, len(c.Workers))
	for name := range c.Workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("tracker.address", "")
	v.SetDefault("tracker.credential", "")

	v.SetDefault("conductor.name", "conductor")
	v.SetDefault("conductor.turn_budget", 30)
	v.SetDefault("conductor.max_parallel_tools", 4)
	v.SetDefault("conductor.debug_log", "")
	v.SetDefault("conductor.history_db", "")
}

// getUserConfigDir returns the XDG config directory for Hearth.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hearth")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "hearth")
	}
	return filepath.Join(home, ".config", "hearth")
}

// findProjectConfig searches for .hearth.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".hearth.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values and no workers.
func Default() *Config {
	return &Config{
		Conductor: ConductorConfig{
			Name:             "conductor",
			TurnBudget:       30,
			MaxParallelTools: 4,
		},
		Workers: map[string]models.WorkerEntry{},
	}
}
