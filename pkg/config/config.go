// Package config loads and validates loadsmith's run configuration: the
// target base URL, how many virtual users to run and how fast to spawn
// them, HTTP timeouts, and reporting/logging settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is loadsmith's top-level configuration.
type Config struct {
	Load      LoadConfig      `yaml:"load"`
	HTTP      HTTPConfig      `yaml:"http"`
	Reporting ReportingConfig `yaml:"reporting"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoadConfig controls how many virtual users run and how fast the Runner
// spawns and (if reshaped) shrinks the pool.
type LoadConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Users     int           `yaml:"users"`
	SpawnRate float64       `yaml:"spawn_rate"` // users spawned per second
	Duration  time.Duration `yaml:"duration"`   // 0 = run until stopped
	Scenario  string        `yaml:"scenario"`
	Seed      int64         `yaml:"seed"` // 0 = random

	// Workers is an advisory ceiling on the number of OS threads/goroutine
	// workers the Runner should lean on; unlike Users (the target virtual
	// user pool size) it does not bound concurrency itself. 0 means no
	// preference.
	Workers int `yaml:"workers"`
}

// HTTPConfig controls timeouts used by every virtual user's HTTP client.
type HTTPConfig struct {
	OpenTimeout    time.Duration     `yaml:"open_timeout"`
	ReadTimeout    time.Duration     `yaml:"read_timeout"`
	DefaultHeaders map[string]string `yaml:"default_headers"`
}

// ReportingConfig controls where the final JSON report is written.
type ReportingConfig struct {
	OutputDir       string        `yaml:"output_dir"`
	KeepLastN       int           `yaml:"keep_last_n"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// DashboardConfig controls the optional web dashboard.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults for a local smoke run.
func DefaultConfig() *Config {
	return &Config{
		Load: LoadConfig{
			BaseURL:   "http://localhost:8080",
			Users:     10,
			SpawnRate: 1.0,
			Duration:  0,
		},
		HTTP: HTTPConfig{
			OpenTimeout: 5 * time.Second,
			ReadTimeout: 30 * time.Second,
		},
		Reporting: ReportingConfig{
			OutputDir:        "./reports",
			KeepLastN:        50,
			SnapshotInterval: 1 * time.Second,
		},
		Dashboard: DashboardConfig{
			Enabled: false,
			Addr:    ":8089",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file at path, overlaying it onto
// DefaultConfig. Environment variables are expanded in the file content
// before parsing (e.g. "${TARGET_HOST}"), and LOADSMITH_BASE_URL, when
// set, overrides load.base_url after parsing so a run can be redirected at
// invocation time without editing the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "loadsmith.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if url := os.Getenv("LOADSMITH_BASE_URL"); url != "" {
		cfg.Load.BaseURL = url
	}

	return cfg, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration describes a runnable load.
func (c *Config) Validate() error {
	if c.Load.BaseURL == "" {
		return fmt.Errorf("load.base_url is required")
	}
	if c.Load.Users < 1 {
		return fmt.Errorf("load.users must be at least 1")
	}
	if c.Load.SpawnRate <= 0 {
		return fmt.Errorf("load.spawn_rate must be positive")
	}
	if c.HTTP.OpenTimeout <= 0 {
		return fmt.Errorf("http.open_timeout must be positive")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("http.read_timeout must be positive")
	}
	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("reporting.output_dir is required")
	}
	return nil
}
