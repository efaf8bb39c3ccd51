// Package notify defines the outbound notification contract for cleanup runs.
package notify

import (
	"context"
	"time"
)

// Outcome is the terminal result of one cleanup firing.
type Outcome string

const (
	// OutcomeSucceeded means the batch loop drained every eligible row.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means validation rejected the statement or the retry
	// budget was exhausted.
	OutcomeFailed Outcome = "failed"
	// OutcomeTimedOut means the firing's overall deadline expired first.
	OutcomeTimedOut Outcome = "timed_out"
)

// RunReport captures the canonical data emitted for one cleanup firing.
type RunReport struct {
	Task            string
	Outcome         Outcome
	RunID           string
	DataIntervalEnd time.Time
	RowsDeleted     uint64
	ElapsedSeconds  float64
	Reason          string
	OccurredAt      time.Time
}

// Sink describes a destination capable of consuming run reports. Delivery is
// best-effort: callers log send failures and never escalate them into the
// firing's own result.
type Sink interface {
	SendRunReport(ctx context.Context, report RunReport) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, report RunReport) error

// SendRunReport implements the Sink interface.
func (f SinkFunc) SendRunReport(ctx context.Context, report RunReport) error {
	if f == nil {
		return nil
	}
	return f(ctx, report)
}
