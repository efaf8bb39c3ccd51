package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dbsweeper/dbsweeper/config"
	"github.com/dbsweeper/dbsweeper/internal/domain/cleanup"
	"github.com/dbsweeper/dbsweeper/internal/domain/schedule"
	apperrors "github.com/dbsweeper/dbsweeper/internal/errors"
	"github.com/dbsweeper/dbsweeper/internal/observability/notify"
	"github.com/dbsweeper/dbsweeper/internal/observability/statsd"
)

// QueryExecutor is the database contract one cleanup firing needs.
type QueryExecutor interface {
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error
	// ExecuteQuery runs one statement and reports rows affected and
	// elapsed database seconds.
	ExecuteQuery(ctx context.Context, query string) (uint64, float64, error)
}

// CleanupServiceOptions groups dependencies for CleanupService.
type CleanupServiceOptions struct {
	DB       QueryExecutor       // Required: statement executor
	Safety   config.SafetyConfig // Required: destructive-statement policy
	Notifier notify.Sink         // Optional: run report sink
	Logger   *slog.Logger        // Optional: structured logger
	Metrics  statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// CleanupService executes one cleanup firing end to end.
//
// Each firing moves through render, optional safety validation, a
// connectivity check, and the batch loop. The batch loop repeats the rendered
// statement until a round affects zero rows, pacing between rounds and
// retrying failed rounds up to the task's retry budget. The whole firing
// races the task's overall deadline; when the deadline wins the in-flight
// statement is abandoned to the database rather than cancelled.
type CleanupService struct {
	db        QueryExecutor
	safety    config.SafetyConfig
	validator *cleanup.SafetyValidator
	notifier  notify.Sink
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewCleanupService constructs a new CleanupService.
func NewCleanupService(opts CleanupServiceOptions) (*CleanupService, error) {
	if opts.DB == nil {
		return nil, errors.New("QueryExecutor is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cleanup_service")

	var validator *cleanup.SafetyValidator
	if opts.Safety.Enabled {
		validator = cleanup.NewSafetyValidator(opts.Safety.RetentionDays)
		logger.Debug("safety validation enabled", "retention_days", opts.Safety.RetentionDays)
	}

	return &CleanupService{
		db:        opts.DB,
		safety:    opts.Safety,
		validator: validator,
		notifier:  opts.Notifier,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// Execute runs one firing of task at the logical slot carried by meta.
//
// Disabled tasks return nil immediately. Render and connectivity failures
// return without notifying; validation failures, retry exhaustion, success,
// and deadline expiry each emit exactly one run report.
func (s *CleanupService) Execute(ctx context.Context, task config.CleanupTaskConfig, meta schedule.FireMetadata) error {
	if !task.Enabled {
		s.logger.InfoContext(ctx, "task disabled, skipping firing", "task", task.Name)
		return nil
	}

	runID := uuid.NewString()
	start := time.Now()
	logger := s.logger.With("task", task.Name, "run_id", runID)
	logger.InfoContext(ctx, "starting cleanup firing",
		"data_interval_end", meta.DataIntervalEnd.UTC().Format(cleanup.IntervalEndLayout),
	)

	rendered, err := s.renderStatement(task, meta)
	if err != nil {
		logger.ErrorContext(ctx, "template rendering failed", "error", err)
		s.countRun(task.Name, "render_error")
		return err
	}

	if s.validator != nil {
		if err := s.validator.Validate(rendered); err != nil {
			logger.ErrorContext(ctx, "statement rejected by safety validation", "error", err)
			s.countRun(task.Name, "rejected")
			s.sendReport(ctx, logger, notify.RunReport{
				Task:            task.Name,
				Outcome:         notify.OutcomeFailed,
				RunID:           runID,
				DataIntervalEnd: meta.DataIntervalEnd,
				Reason:          err.Error(),
				OccurredAt:      time.Now(),
			})
			return err
		}
	}

	if err := s.db.Ping(ctx); err != nil {
		logger.ErrorContext(ctx, "database unreachable, skipping firing", "error", err)
		s.countRun(task.Name, "unreachable")
		return apperrors.Wrapf(err, apperrors.ErrCodeConnection, "ping before task %s", task.Name)
	}

	progress := cleanup.NewProgress()
	// stop ends the batch loop once the firing has reached a terminal state.
	// The loop keeps the parent context, so closing stop never cancels a
	// statement already sent to the database.
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.executeLoop(ctx, logger, task, rendered, progress, stop)
	}()

	timer := time.NewTimer(task.TaskTimeout())
	defer timer.Stop()

	select {
	case err := <-done:
		snap := progress.Snapshot()
		s.recordDuration(task.Name, time.Since(start))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.InfoContext(ctx, "cleanup firing interrupted by shutdown")
			return err
		}
		if err != nil {
			logger.ErrorContext(ctx, "cleanup firing failed",
				"error", err,
				"rows_deleted", snap.RowsDeleted,
			)
			s.countRun(task.Name, "failed")
			s.sendReport(ctx, logger, notify.RunReport{
				Task:            task.Name,
				Outcome:         notify.OutcomeFailed,
				RunID:           runID,
				DataIntervalEnd: meta.DataIntervalEnd,
				RowsDeleted:     snap.RowsDeleted,
				ElapsedSeconds:  snap.ElapsedSeconds,
				Reason:          err.Error(),
				OccurredAt:      time.Now(),
			})
			return err
		}

		logger.InfoContext(ctx, "cleanup firing succeeded",
			"rows_deleted", snap.RowsDeleted,
			"db_seconds", snap.ElapsedSeconds,
		)
		s.countRun(task.Name, "succeeded")
		s.countRows(task.Name, snap.RowsDeleted)
		s.sendReport(ctx, logger, notify.RunReport{
			Task:            task.Name,
			Outcome:         notify.OutcomeSucceeded,
			RunID:           runID,
			DataIntervalEnd: meta.DataIntervalEnd,
			RowsDeleted:     snap.RowsDeleted,
			ElapsedSeconds:  snap.ElapsedSeconds,
			OccurredAt:      time.Now(),
		})
		return nil

	case <-timer.C:
		// TimedOut is terminal: the loop must issue no further statements.
		// The in-flight one finishes server-side.
		close(stop)
		snap := progress.Snapshot()
		s.recordDuration(task.Name, time.Since(start))
		logger.ErrorContext(ctx, "cleanup firing timed out",
			"timeout", task.TaskTimeout(),
			"rows_deleted", snap.RowsDeleted,
		)
		s.countRun(task.Name, "timed_out")
		s.countRows(task.Name, snap.RowsDeleted)
		s.sendReport(ctx, logger, notify.RunReport{
			Task:            task.Name,
			Outcome:         notify.OutcomeTimedOut,
			RunID:           runID,
			DataIntervalEnd: meta.DataIntervalEnd,
			RowsDeleted:     snap.RowsDeleted,
			ElapsedSeconds:  snap.ElapsedSeconds,
			Reason:          "task timeout of " + task.TaskTimeout().String() + " exceeded",
			OccurredAt:      time.Now(),
		})
		return apperrors.Timeoutf("task %s exceeded its %s timeout", task.Name, task.TaskTimeout())

	case <-ctx.Done():
		close(stop)
		logger.InfoContext(ctx, "cleanup firing interrupted by shutdown")
		return ctx.Err()
	}
}

// renderStatement merges the task's static parameters with the per-firing
// bindings and renders the template. batch_size always reflects the task
// configuration, even when the static parameters define it.
func (s *CleanupService) renderStatement(task config.CleanupTaskConfig, meta schedule.FireMetadata) (string, error) {
	params := make(map[string]string, len(task.Parameters)+1)
	for k, v := range task.Parameters {
		params[k] = v
	}
	params["batch_size"] = strconv.Itoa(task.BatchSize)
	return cleanup.Render(task.TemplateQuery, params, meta.DataIntervalEnd)
}

// executeLoop repeats the statement until a round affects zero rows. Failed
// rounds consume the retry budget; successful ones reset nothing and only
// pace. Returns nil when the table is drained or the firing was stopped.
// stop is checked before every round and during every pause, so a stopped
// firing issues no further statements.
func (s *CleanupService) executeLoop(ctx context.Context, logger *slog.Logger, task config.CleanupTaskConfig, query string, progress *cleanup.Progress, stop <-chan struct{}) error {
	attempt := 0
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		rows, elapsed, err := s.db.ExecuteQuery(ctx, query)
		if err != nil {
			attempt++
			if attempt >= task.RetryAttempts {
				return apperrors.Wrapf(err, apperrors.ErrCodeExecution,
					"task %s failed after %d attempts", task.Name, attempt)
			}
			logger.WarnContext(ctx, "batch failed, will retry",
				"attempt", attempt,
				"max_attempts", task.RetryAttempts,
				"error", err,
			)
			stopped, err := pause(ctx, stop, task.RetryDelay())
			if err != nil {
				return err
			}
			if stopped {
				return nil
			}
			continue
		}

		if rows == 0 {
			return nil
		}
		progress.Record(rows, elapsed)
		logger.DebugContext(ctx, "batch deleted rows", "rows", rows, "db_seconds", elapsed)

		stopped, err := pause(ctx, stop, task.QueryInterval())
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
	}
}

// sendReport delivers one run report. Delivery failures are logged and never
// change the firing's own result.
func (s *CleanupService) sendReport(ctx context.Context, logger *slog.Logger, report notify.RunReport) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendRunReport(ctx, report); err != nil {
		logger.WarnContext(ctx, "run report delivery failed",
			"outcome", string(report.Outcome),
			"error", err,
		)
	}
}

func (s *CleanupService) countRun(task, result string) {
	if s.metrics != nil {
		s.metrics.Count("cleanup.run", 1, map[string]string{"task": task, "result": result})
	}
}

func (s *CleanupService) countRows(task string, rows uint64) {
	if s.metrics != nil && rows > 0 {
		s.metrics.Count("cleanup.rows_deleted", int64(rows), map[string]string{"task": task}) // #nosec G115 - row counts fit int64
	}
}

func (s *CleanupService) recordDuration(task string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.Timing("cleanup.run_duration", d, map[string]string{"task": task})
	}
}

// pause waits for d, ending early when the firing is stopped or the context
// is cancelled.
func pause(ctx context.Context, stop <-chan struct{}, d time.Duration) (stopped bool, err error) {
	if d <= 0 {
		return false, ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false, nil
	case <-stop:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
