// Package cleanup provides the adapter that turns configured cleanup tasks
// into scheduled jobs and runs them.
package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dbsweeper/dbsweeper/config"
	"github.com/dbsweeper/dbsweeper/internal/data"
	"github.com/dbsweeper/dbsweeper/internal/domain/schedule"
	"github.com/dbsweeper/dbsweeper/internal/observability/notify"
	"github.com/dbsweeper/dbsweeper/internal/observability/statsd"
	"github.com/dbsweeper/dbsweeper/internal/service"
)

// TaskExecutor runs one firing of a cleanup task.
type TaskExecutor interface {
	Execute(ctx context.Context, task config.CleanupTaskConfig, meta schedule.FireMetadata) error
}

// Runner provides a simple adapter to run the cleanup scheduler loop.
// It constructs the cleanup service, builds one scheduled job per configured
// task, and drives the scheduler until the context is cancelled.
type Runner struct {
	sched   *schedule.Scheduler
	logger  *slog.Logger
	metrics statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config *config.AppConfig
	Logger *slog.Logger

	// Optional dependency injections for testing/decoupling
	Executor TaskExecutor
	Notifier notify.Sink
	Metrics  statsd.Sink
}

// NewRunner creates a new cleanup runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	executor := opts.Executor
	if executor == nil {
		svc, err := wireCleanupService(opts)
		if err != nil {
			return nil, fmt.Errorf("wire cleanup service: %w", err)
		}
		executor = svc
	}

	sched := schedule.NewScheduler(opts.Logger)
	for i := range opts.Config.CleanupTasks {
		task := opts.Config.CleanupTasks[i]
		action := &taskAction{
			executor: executor,
			task:     task,
			logger:   opts.Logger,
			metrics:  opts.Metrics,
		}
		job, err := schedule.NewJob(task.Name, task.CronSchedule, action)
		if err != nil {
			return nil, fmt.Errorf("schedule task %s: %w", task.Name, err)
		}
		sched.Add(job.WithLogger(opts.Logger))
	}

	return &Runner{
		sched:   sched,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Config == nil {
		return errors.New("configuration is required")
	}
	if opts.DB == nil && opts.Executor == nil {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wireCleanupService wires up the default executor over the shared pool.
func wireCleanupService(opts RunnerOptions) (*service.CleanupService, error) {
	return service.NewCleanupService(service.CleanupServiceOptions{
		DB:       data.NewCleanupDB(opts.DB, opts.Logger),
		Safety:   opts.Config.Safety,
		Notifier: opts.Notifier,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
}

// Jobs returns the number of scheduled tasks.
func (r *Runner) Jobs() int { return r.sched.Len() }

// Run starts the scheduler loop and runs until the context is cancelled or
// every schedule is exhausted. Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting cleanup scheduler", "tasks", r.sched.Len())
	return r.sched.Run(ctx)
}

// taskAction binds one immutable task definition to the executor. Each firing
// receives its own copy of the task.
type taskAction struct {
	executor TaskExecutor
	task     config.CleanupTaskConfig
	logger   *slog.Logger
	metrics  statsd.Sink
}

// Run implements schedule.Runnable. Execution errors are fully handled here:
// the scheduler never sees them, so one bad firing cannot stop the loop.
func (a *taskAction) Run(ctx context.Context, meta schedule.FireMetadata) {
	if a.metrics != nil {
		a.metrics.Count("scheduler.fire", 1, map[string]string{"task": a.task.Name})
	}
	if err := a.executor.Execute(ctx, a.task, meta); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.ErrorContext(ctx, "cleanup firing returned error",
			"task", a.task.Name,
			"error", err,
		)
	}
}
