package config

import (
	"time"

	apperrors "github.com/dbsweeper/dbsweeper/internal/errors"
)

// CleanupTaskConfig defines one scheduled cleanup task. Immutable once
// loaded; every firing receives its own copy.
type CleanupTaskConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Enabled     bool   `yaml:"enabled"`

	// CronSchedule accepts the 6-field seconds-resolution form or the
	// conventional 5-field form.
	CronSchedule string `yaml:"cron_schedule"`

	// TemplateQuery is the statement template. It must self-limit each
	// execution to at most BatchSize affected rows, typically via a LIMIT
	// bound to the injected batch_size parameter; the executor treats zero
	// affected rows as exhaustion and never verifies the limiting itself.
	TemplateQuery string            `yaml:"template_query"`
	Parameters    map[string]string `yaml:"parameters"`

	BatchSize            int `yaml:"batch_size"`
	RetryAttempts        int `yaml:"retry_attempts"`
	RetryDelaySeconds    int `yaml:"retry_delay_seconds"`
	QueryIntervalSeconds int `yaml:"query_interval_seconds"`
	TaskTimeoutSeconds   int `yaml:"task_timeout_seconds"`
}

// Validate enforces the per-task invariants at load time.
func (t *CleanupTaskConfig) Validate() error {
	if t.Name == "" {
		return apperrors.Config("task name cannot be empty")
	}
	if t.CronSchedule == "" {
		return apperrors.Configf("cron schedule cannot be empty for task: %s", t.Name)
	}
	if t.TemplateQuery == "" {
		return apperrors.Configf("SQL template cannot be empty for task: %s", t.Name)
	}
	if t.BatchSize < 1 {
		return apperrors.Configf("batch size must be greater than 0 for task: %s", t.Name)
	}
	if t.RetryAttempts < 1 {
		return apperrors.Configf("retry attempts must be greater than 0 for task: %s", t.Name)
	}
	if t.RetryDelaySeconds < 0 || t.QueryIntervalSeconds < 0 {
		return apperrors.Configf("delay settings cannot be negative for task: %s", t.Name)
	}
	if t.TaskTimeoutSeconds < 1 {
		return apperrors.Configf("task timeout must be greater than 0 for task: %s", t.Name)
	}
	return nil
}

// RetryDelay returns the pause between failed attempts.
func (t *CleanupTaskConfig) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelaySeconds) * time.Second
}

// QueryInterval returns the pacing pause between successful batches.
func (t *CleanupTaskConfig) QueryInterval() time.Duration {
	return time.Duration(t.QueryIntervalSeconds) * time.Second
}

// TaskTimeout returns the overall deadline for one firing.
func (t *CleanupTaskConfig) TaskTimeout() time.Duration {
	return time.Duration(t.TaskTimeoutSeconds) * time.Second
}
