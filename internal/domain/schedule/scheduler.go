package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// wakeSlack pads every inter-tick sleep so the loop never wakes a few
// microseconds before the true boundary and re-loops early.
const wakeSlack = 700 * time.Microsecond

// Scheduler owns an ordered collection of jobs and fires them from a single
// cooperative loop. Job firings are dispatched as independent goroutines, so
// a slow or hung action never delays subsequent ticks or other jobs.
type Scheduler struct {
	jobs   []*Job
	logger *slog.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// Add registers a job. The job's constructor already enforced its invariants;
// no further validation happens here.
func (s *Scheduler) Add(job *Job) {
	if job == nil {
		return
	}
	s.jobs = append(s.jobs, job)
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.jobs) }

// NextTick returns the minimal wait until any job is due together with every
// job tied at that exact wait. Durations compare at millisecond granularity,
// so jobs due within the same millisecond fire in the same tick. ok is false
// when no job has a future occurrence.
func (s *Scheduler) NextTick(now time.Time) (due []*Job, wait time.Duration, ok bool) {
	best := int64(-1)
	for _, job := range s.jobs {
		d, runnable := job.Until(now)
		if !runnable {
			continue
		}
		ms := d.Milliseconds()
		switch {
		case best < 0 || ms < best:
			best = ms
			due = append(due[:0], job)
		case ms == best:
			due = append(due, job)
		}
	}
	if best < 0 {
		return nil, 0, false
	}
	return due, time.Duration(best) * time.Millisecond, true
}

// Run loops: compute the next tick, sleep until it (plus a small slack), fire
// every job tied at the minimal wait, recompute. The loop suspends only at
// the sleep step. It returns nil when no job has a future occurrence, or when
// the context is cancelled; in-flight firings are aborted through the shared
// context with no drain.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		due, wait, ok := s.NextTick(time.Now())
		if !ok {
			s.logger.InfoContext(ctx, "no jobs with future occurrences, scheduler exiting")
			return nil
		}

		timer := time.NewTimer(wait + wakeSlack)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.InfoContext(ctx, "scheduler stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-timer.C:
		}

		for _, job := range due {
			job.Fire(ctx)
		}
	}
}
