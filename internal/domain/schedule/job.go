// Package schedule implements the cron scheduler core: jobs with a
// drift-free logical clock and a cooperative tick loop that fires them.
package schedule

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/dbsweeper/dbsweeper/internal/errors"
)

// FireMetadata is the scheduling metadata handed to a job's action for one
// firing. DataIntervalEnd is the cron-derived logical timestamp the firing is
// responsible for, decoupled from the wall-clock time the firing actually ran.
type FireMetadata struct {
	DataIntervalEnd time.Time
}

// Runnable is the capability a job dispatches on every firing. Run is invoked
// on its own goroutine; implementations own their error handling and must
// honor ctx cancellation.
type Runnable interface {
	Run(ctx context.Context, meta FireMetadata)
}

// RunnableFunc adapts a function to the Runnable interface.
type RunnableFunc func(ctx context.Context, meta FireMetadata)

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context, meta FireMetadata) {
	f(ctx, meta)
}

// cronParser accepts the 6-field seconds-resolution form. Conventional
// 5-field expressions are normalized before parsing (see NormalizeExpression).
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// NormalizeExpression widens a conventional 5-field cron expression to the
// 6-field seconds-resolution form by prefixing a literal zero seconds field.
// 6-field expressions pass through unchanged.
func NormalizeExpression(expr string) string {
	if len(strings.Fields(expr)) == fiveFieldCron {
		return "0 " + strings.TrimSpace(expr)
	}
	return expr
}

const fiveFieldCron = 5

// Job pairs a cron expression with a Runnable action and tracks its own
// logical firing clock. A Job is exclusively owned by one Scheduler and is
// mutated only by its fire step; it is not safe for concurrent use.
type Job struct {
	name     string
	schedule cron.Schedule
	action   Runnable
	logger   *slog.Logger

	lastRun *time.Time
	meta    FireMetadata

	// exhausted is latched when the schedule has no occurrence after the
	// logical clock, so a finished schedule never busy-fires on the sentinel.
	exhausted bool
}

// NewJob parses the cron expression (5- or 6-field) and initializes the job's
// logical clock to the first occurrence strictly after construction time.
func NewJob(name, expr string, action Runnable) (*Job, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.Config("job name is required")
	}
	if action == nil {
		return nil, apperrors.Configf("job %q: action is required", name)
	}

	sched, err := cronParser.Parse(NormalizeExpression(expr))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeConfig, "job %q: parse cron expression %q", name, expr)
	}

	return &Job{
		name:     name,
		schedule: sched,
		action:   action,
		logger:   slog.Default(),
		meta:     FireMetadata{DataIntervalEnd: NextFireTime(sched, time.Now())},
	}, nil
}

// WithLogger replaces the job's logger. Returns the job for chaining.
func (j *Job) WithLogger(logger *slog.Logger) *Job {
	if logger != nil {
		j.logger = logger
	}
	return j
}

// Name returns the job's name.
func (j *Job) Name() string { return j.name }

// Metadata returns the job's current logical clock value. After a firing this
// is the next slot, not the one just dispatched.
func (j *Job) Metadata() FireMetadata { return j.meta }

// NextFireTime returns the earliest cron occurrence strictly after ref.
// If the schedule has no future occurrence it returns ref unchanged as a
// sentinel.
func NextFireTime(sched cron.Schedule, ref time.Time) time.Time {
	next := sched.Next(ref)
	if next.IsZero() {
		return ref
	}
	return next
}

// Until reports the duration from now until the job's next firing. Before the
// first run this is the gap to the first occurrence after now. Afterwards it
// is the gap to the stored logical slot rather than to an occurrence computed
// from the last wall-clock run, which anchors firings to ideal slots and
// keeps late dispatches from accumulating drift. The second return is false
// when the schedule has no future occurrence.
func (j *Job) Until(now time.Time) (time.Duration, bool) {
	if j.lastRun == nil {
		next := j.schedule.Next(now)
		if next.IsZero() {
			return 0, false
		}
		return next.Sub(now), true
	}

	if j.exhausted {
		return 0, false
	}

	d := j.meta.DataIntervalEnd.Sub(now)
	if d < 0 {
		// The previous firing overran its slot; fire immediately rather
		// than skipping it.
		d = 0
	}
	return d, true
}

// Fire records the run, captures the current logical clock value as the
// metadata for this firing, advances the clock from the previous logical slot
// (not from wall-clock now), and dispatches the action on its own goroutine.
// All bookkeeping completes before the action starts, so clock advancement is
// never skipped even if the action fails or times out.
func (j *Job) Fire(ctx context.Context) {
	now := time.Now()
	j.lastRun = &now

	captured := j.meta
	next := NextFireTime(j.schedule, captured.DataIntervalEnd)
	j.exhausted = next.Equal(captured.DataIntervalEnd)
	j.meta = FireMetadata{DataIntervalEnd: next}

	j.logger.Info("job firing",
		"job", j.name,
		"fired_at", now.UTC(),
		"data_interval_end", captured.DataIntervalEnd.UTC(),
		"next_fire", next.UTC(),
	)

	go j.action.Run(ctx, captured)
}
