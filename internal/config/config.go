package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the toil configuration
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Report  ReportConfig  `mapstructure:"report"`
}

// AgentConfig contains coding-agent settings
type AgentConfig struct {
	Binary       string   `mapstructure:"binary"`
	Model        string   `mapstructure:"model"`
	AllowedTools []string `mapstructure:"allowed_tools"`
}

// QueueConfig contains attempt-loop settings
type QueueConfig struct {
	// Retries is the attempt ceiling per item.
	Retries int `mapstructure:"retries"`
	// Steps is the agent step budget per attempt.
	Steps int `mapstructure:"steps"`
	// Label filters the queue to items carrying this label.
	Label string `mapstructure:"label"`
	// AttemptTimeoutMins is the wall-clock ceiling per attempt.
	// Negative disables the ceiling.
	AttemptTimeoutMins int `mapstructure:"attempt_timeout_mins"`
}

// TrackerConfig contains issue-tracker settings
type TrackerConfig struct {
	Binary string `mapstructure:"binary"`
}

// ReportConfig contains run-report settings
type ReportConfig struct {
	MaxBytes int `mapstructure:"max_bytes"`
}

// Load reads the config from the workspace
func Load(workspaceDir string) (*Config, error) {
	return LoadFile(filepath.Join(workspaceDir, ".toil", "config.yaml"))
}

// LoadFile reads the config from an explicit path. A missing file yields
// the defaults.
func LoadFile(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Binary: "claude",
			Model:  "sonnet",
			AllowedTools: []string{
				"Read", "Write", "Edit", "Bash", "Glob", "Grep",
				"Task", "TodoWrite", "WebFetch", "WebSearch",
			},
		},
		Queue: QueueConfig{
			Retries:            3,
			Steps:              50,
			AttemptTimeoutMins: 30,
		},
		Tracker: TrackerConfig{
			Binary: "gh",
		},
		Report: ReportConfig{
			MaxBytes: 64 * 1024,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Agent.Binary == "" {
		cfg.Agent.Binary = defaults.Agent.Binary
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = defaults.Agent.Model
	}
	if len(cfg.Agent.AllowedTools) == 0 {
		cfg.Agent.AllowedTools = defaults.Agent.AllowedTools
	}
	if cfg.Queue.Retries == 0 {
		cfg.Queue.Retries = defaults.Queue.Retries
	}
	if cfg.Queue.Steps == 0 {
		cfg.Queue.Steps = defaults.Queue.Steps
	}
	if cfg.Queue.AttemptTimeoutMins == 0 {
		cfg.Queue.AttemptTimeoutMins = defaults.Queue.AttemptTimeoutMins
	}
	if cfg.Tracker.Binary == "" {
		cfg.Tracker.Binary = defaults.Tracker.Binary
	}
	if cfg.Report.MaxBytes == 0 {
		cfg.Report.MaxBytes = defaults.Report.MaxBytes
	}
}
