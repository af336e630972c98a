// Package config provides configuration loading and management for semfolio.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/semfolio/workflow"
	"gopkg.in/yaml.v3"
)

// Checkpoint backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendNATS   = "nats"
)

// Config represents the complete semfolio configuration
type Config struct {
	Model       ModelConfig      `yaml:"model"`
	Workflow    workflow.Tuning  `yaml:"workflow"`
	Specialties SpecialtyConfig  `yaml:"specialties"`
	Checkpoint  CheckpointConfig `yaml:"checkpoint"`
	NATS        NATSConfig       `yaml:"nats"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}

// ModelConfig configures the language model
type ModelConfig struct {
	// Registry is a JSON model registry file. Empty uses the built-in registry.
	Registry string `yaml:"registry"`
	// Temperature controls randomness (0.0-1.0, default: 0.2)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// SpecialtyConfig adds catalogue files on top of the embedded catalogue.
type SpecialtyConfig struct {
	Dir string `yaml:"dir"`
}

// CheckpointConfig selects where workflow checkpoints are kept
type CheckpointConfig struct {
	// Backend is one of memory, sqlite, badger or nats
	Backend string `yaml:"backend"`
	// Path is the database file (sqlite) or directory (badger)
	Path string `yaml:"path"`
	// Bucket is the JetStream KV bucket (nats)
	Bucket string `yaml:"bucket"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Temperature: 0.2,
			Timeout:     5 * time.Minute,
		},
		Workflow: workflow.DefaultTuning(),
		Checkpoint: CheckpointConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(".semfolio", "checkpoints.db"),
			Bucket:  "SEMFOLIO_CHECKPOINTS",
		},
		NATS: NATSConfig{
			Embedded: true,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Model.Timeout < 0 {
		return fmt.Errorf("model.timeout must not be negative")
	}
	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}

	switch c.Checkpoint.Backend {
	case BackendMemory:
	case BackendSQLite, BackendBadger:
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint.path is required for the %s backend", c.Checkpoint.Backend)
		}
	case BackendNATS:
		if c.Checkpoint.Bucket == "" {
			return errors.New("checkpoint.bucket is required for the nats backend")
		}
		if c.NATS.URL == "" && !c.NATS.Embedded {
			return errors.New("nats.url is required when nats.embedded is false")
		}
	default:
		return fmt.Errorf("checkpoint.backend %q is not one of memory, sqlite, badger, nats", c.Checkpoint.Backend)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := overlayFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// overlayFile decodes a YAML file onto config. Keys absent from the file keep
// their current values. ${VAR} and ${VAR:-default} references are expanded
// before parsing.
func overlayFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
