// Package config loads and validates the application configuration.
//
// Configuration comes from one YAML file. Environment references of the form
// ${NAME} or ${NAME:-default} are resolved before structural parsing. See the
// domain-specific files for the available sections:
//   - database.go: database connection settings
//   - notify.go: notification channel settings
//   - safety.go: destructive-statement safety policy
//   - tasks.go: cleanup task definitions
//   - observability.go: metrics settings
package config

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/dbsweeper/dbsweeper/internal/errors"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
type AppConfig struct {
	// Database holds the connection parameters for the target database.
	Database DBConfig `yaml:"database"`

	// Notifications configures the outbound notification channel.
	Notifications NotifyConfig `yaml:"notifications"`

	// Safety configures the destructive-statement safety gate.
	Safety SafetyConfig `yaml:"safety"`

	// CleanupTasks lists the scheduled cleanup tasks. Immutable once loaded.
	CleanupTasks []CleanupTaskConfig `yaml:"cleanup_tasks"`

	// Observability configures metrics emission.
	Observability ObservabilityConfig `yaml:"observability"`
}

// Load reads, interpolates, parses, and validates the configuration file at
// path. A failure here is the only globally fatal error in the system.
func Load(path string, logger *slog.Logger) (AppConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, apperrors.Wrapf(err, apperrors.ErrCodeConfig, "read config file %s", path)
	}

	expanded := ExpandEnv(string(raw), logger)

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return AppConfig{}, apperrors.Wrap(err, apperrors.ErrCodeConfig, "parse YAML configuration")
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	logger.Debug("configuration loaded and validated", "path", path, "tasks", len(cfg.CleanupTasks))
	return cfg, nil
}

// Validate applies structural validation and normalization across all
// sections.
func (c *AppConfig) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Notifications.Validate(); err != nil {
		return err
	}

	if len(c.CleanupTasks) == 0 {
		return apperrors.Config("no cleanup tasks defined in configuration")
	}
	seen := make(map[string]struct{}, len(c.CleanupTasks))
	for i := range c.CleanupTasks {
		task := &c.CleanupTasks[i]
		if err := task.Validate(); err != nil {
			return err
		}
		if _, dup := seen[task.Name]; dup {
			return apperrors.Configf("duplicate cleanup task name: %s", task.Name)
		}
		seen[task.Name] = struct{}{}
	}

	return nil
}
