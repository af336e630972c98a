package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ssconfig "github.com/c360studio/semstreams/config"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "semfolio.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/semfolio"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Environment overrides applied after all files.
const (
	EnvCheckpointBackend = "SEMFOLIO_CHECKPOINT_BACKEND"
	EnvCheckpointPath    = "SEMFOLIO_CHECKPOINT_PATH"
	EnvNATSURL           = "SEMFOLIO_NATS_URL"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger

	home    string
	workdir string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger}
	l.home, _ = os.UserHomeDir()
	l.workdir, _ = os.Getwd()
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/semfolio/config.yaml)
// 3. Project config (semfolio.yaml in current or parent directories)
// 4. The explicit file, when explicitPath is not empty
// 5. Environment variables
func (l *Loader) Load(explicitPath string) (*Config, error) {
	config := DefaultConfig()

	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if err := overlayFile(config, userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if err := overlayFile(config, projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if explicitPath != "" {
		if err := overlayFile(config, explicitPath); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicitPath))
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()
	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

func (l *Loader) applyEnv(config *Config) {
	if v, ok := os.LookupEnv(EnvCheckpointBackend); ok && v != "" {
		config.Checkpoint.Backend = v
	}
	if v, ok := os.LookupEnv(EnvCheckpointPath); ok && v != "" {
		config.Checkpoint.Path = v
	}
	if v, ok := os.LookupEnv(EnvNATSURL); ok && v != "" {
		config.NATS.URL = v
		config.NATS.Embedded = false
	}
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	if l.home == "" {
		return ""
	}
	return filepath.Join(l.home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for semfolio.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	if l.workdir == "" {
		return ""
	}

	dir := l.workdir
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnv(s string) string {
	return ssconfig.ExpandEnvWithDefaults(s)
}
