package cleanup

import "sync"

// ProgressSnapshot is a point-in-time copy of one firing's cumulative totals.
// Both totals cover row-affecting batches only: the terminal zero-row round
// is not recorded, so ElapsedSeconds excludes its database time.
type ProgressSnapshot struct {
	RowsDeleted    uint64
	ElapsedSeconds float64
}

// Progress accumulates rows affected and database time for one in-flight
// firing. The execute loop is the sole writer and the timeout watcher the
// sole reader; the mutex makes cross-goroutine snapshots race-free.
type Progress struct {
	mu       sync.Mutex
	rows     uint64
	elapsedS float64
}

// NewProgress creates an empty progress cell for one firing.
func NewProgress() *Progress {
	return &Progress{}
}

// Record adds one batch's rows affected and elapsed database seconds.
func (p *Progress) Record(rows uint64, elapsedSeconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows += rows
	p.elapsedS += elapsedSeconds
}

// Snapshot returns the current cumulative totals.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressSnapshot{RowsDeleted: p.rows, ElapsedSeconds: p.elapsedS}
}
