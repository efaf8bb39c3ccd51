package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsweeper/dbsweeper/config"
	"github.com/dbsweeper/dbsweeper/internal/domain/schedule"
	apperrors "github.com/dbsweeper/dbsweeper/internal/errors"
	"github.com/dbsweeper/dbsweeper/internal/observability/notify"
	"github.com/dbsweeper/dbsweeper/internal/service"
)

type execCall struct {
	rows uint64
	err  error
}

// stubDB plays back a scripted sequence of ExecuteQuery results. When the
// script runs out and block is set, further calls hang until block closes.
type stubDB struct {
	mu      sync.Mutex
	pingErr error
	script  []execCall
	queries []string
	block   chan struct{}
}

func (s *stubDB) Ping(_ context.Context) error { return s.pingErr }

func (s *stubDB) ExecuteQuery(_ context.Context, query string) (uint64, float64, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	if len(s.script) == 0 && s.block != nil {
		s.mu.Unlock()
		<-s.block
		return 0, 0, nil
	}
	var call execCall
	if len(s.script) > 0 {
		call = s.script[0]
		s.script = s.script[1:]
	}
	s.mu.Unlock()
	return call.rows, 0.01, call.err
}

func (s *stubDB) recordedQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

type recordingSink struct {
	mu      sync.Mutex
	reports []notify.RunReport
}

func (r *recordingSink) SendRunReport(_ context.Context, report notify.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *recordingSink) recorded() []notify.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.RunReport(nil), r.reports...)
}

func testTask() config.CleanupTaskConfig {
	return config.CleanupTaskConfig{
		Name:               "purge-sessions",
		Enabled:            true,
		CronSchedule:       "0 0 3 * * *",
		TemplateQuery:      "DELETE FROM sessions WHERE expired_at < '{{ data_interval_end }}' LIMIT {{ batch_size }}",
		BatchSize:          1000,
		RetryAttempts:      3,
		TaskTimeoutSeconds: 30,
	}
}

func testMeta() schedule.FireMetadata {
	return schedule.FireMetadata{
		DataIntervalEnd: time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
	}
}

func newService(t *testing.T, db *stubDB, sink notify.Sink, safety config.SafetyConfig) *service.CleanupService {
	t.Helper()
	svc, err := service.NewCleanupService(service.CleanupServiceOptions{
		DB:       db,
		Safety:   safety,
		Notifier: sink,
	})
	require.NoError(t, err)
	return svc
}

func TestNewCleanupService_RequiresDB(t *testing.T) {
	_, err := service.NewCleanupService(service.CleanupServiceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QueryExecutor is required")
}

func TestCleanupService_Execute_DrainsBatchesAndNotifiesOnce(t *testing.T) {
	db := &stubDB{script: []execCall{{rows: 1000}, {rows: 1000}, {rows: 0}}}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{})

	err := svc.Execute(context.Background(), testTask(), testMeta())
	require.NoError(t, err)

	queries := db.recordedQueries()
	require.Len(t, queries, 3, "loop repeats until a batch affects zero rows")
	assert.Equal(t,
		"DELETE FROM sessions WHERE expired_at < '2024-05-01 03:00:00' LIMIT 1000",
		queries[0],
	)

	reports := sink.recorded()
	require.Len(t, reports, 1, "exactly one report per firing")
	report := reports[0]
	assert.Equal(t, notify.OutcomeSucceeded, report.Outcome)
	assert.Equal(t, "purge-sessions", report.Task)
	assert.Equal(t, uint64(2000), report.RowsDeleted, "totals across all batches")
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, testMeta().DataIntervalEnd, report.DataIntervalEnd)
}

func TestCleanupService_Execute_RetryThenRecover(t *testing.T) {
	db := &stubDB{script: []execCall{
		{err: errors.New("deadlock detected")},
		{err: errors.New("deadlock detected")},
		{rows: 0},
	}}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{})

	err := svc.Execute(context.Background(), testTask(), testMeta())
	require.NoError(t, err, "recovery inside the retry budget succeeds")

	assert.Len(t, db.recordedQueries(), 3)
	reports := sink.recorded()
	require.Len(t, reports, 1)
	assert.Equal(t, notify.OutcomeSucceeded, reports[0].Outcome)
}

func TestCleanupService_Execute_RetryExhaustion(t *testing.T) {
	db := &stubDB{script: []execCall{
		{err: errors.New("lock wait timeout")},
		{err: errors.New("lock wait timeout")},
		{err: errors.New("lock wait timeout")},
	}}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{})

	err := svc.Execute(context.Background(), testTask(), testMeta())
	require.Error(t, err)
	assert.True(t, apperrors.IsExecution(err))
	assert.Contains(t, err.Error(), "after 3 attempts")

	assert.Len(t, db.recordedQueries(), 3, "one call per retry attempt")
	reports := sink.recorded()
	require.Len(t, reports, 1, "exactly one failure report")
	report := reports[0]
	assert.Equal(t, notify.OutcomeFailed, report.Outcome)
	assert.Contains(t, report.Reason, "lock wait timeout")
}

func TestCleanupService_Execute_TimeoutReportsPartialProgress(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	db := &stubDB{script: []execCall{{rows: 500}}, block: release}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{})

	task := testTask()
	task.TaskTimeoutSeconds = 1

	start := time.Now()
	err := svc.Execute(context.Background(), task, testMeta())
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.GreaterOrEqual(t, time.Since(start), time.Second)

	reports := sink.recorded()
	require.Len(t, reports, 1, "exactly one timeout report")
	report := reports[0]
	assert.Equal(t, notify.OutcomeTimedOut, report.Outcome)
	assert.Equal(t, uint64(500), report.RowsDeleted, "progress before the deadline is preserved")
	assert.Contains(t, report.Reason, "timeout")
}

// neverDrainingDB returns a full batch on every call and counts the calls.
type neverDrainingDB struct {
	calls atomic.Int64
}

func (n *neverDrainingDB) Ping(_ context.Context) error { return nil }

func (n *neverDrainingDB) ExecuteQuery(_ context.Context, _ string) (uint64, float64, error) {
	n.calls.Add(1)
	return 10, 0.001, nil
}

func TestCleanupService_Execute_TimeoutStopsFurtherBatches(t *testing.T) {
	db := &neverDrainingDB{}
	sink := &recordingSink{}
	svc, err := service.NewCleanupService(service.CleanupServiceOptions{
		DB:       db,
		Notifier: sink,
	})
	require.NoError(t, err)

	task := testTask()
	task.TaskTimeoutSeconds = 1

	execErr := svc.Execute(context.Background(), task, testMeta())
	require.Error(t, execErr)
	assert.True(t, apperrors.IsTimeout(execErr))

	// A statement already in flight at the deadline may still complete, but
	// the loop must not issue new ones after the timeout is reported.
	atReturn := db.calls.Load()
	time.Sleep(300 * time.Millisecond)
	settled := db.calls.Load()
	assert.LessOrEqual(t, settled, atReturn+1, "no new batches after the deadline")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, settled, db.calls.Load(), "batch loop has fully stopped")

	reports := sink.recorded()
	require.Len(t, reports, 1)
	assert.Equal(t, notify.OutcomeTimedOut, reports[0].Outcome)
}

func TestCleanupService_Execute_DisabledTaskSkips(t *testing.T) {
	db := &stubDB{}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{})

	task := testTask()
	task.Enabled = false

	require.NoError(t, svc.Execute(context.Background(), task, testMeta()))
	assert.Empty(t, db.recordedQueries())
	assert.Empty(t, sink.recorded())
}

func TestCleanupService_Execute_RenderFailureSkipsNotification(t *testing.T) {
	db := &stubDB{}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{})

	task := testTask()
	task.TemplateQuery = "DELETE FROM {{ table_name }} LIMIT {{ batch_size }}"

	err := svc.Execute(context.Background(), task, testMeta())
	require.Error(t, err)
	assert.True(t, apperrors.IsRender(err))
	assert.Empty(t, db.recordedQueries())
	assert.Empty(t, sink.recorded(), "render failures never reach the notifier")
}

func TestCleanupService_Execute_ValidationRejectsAndNotifies(t *testing.T) {
	db := &stubDB{}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{Enabled: true, RetentionDays: 30})

	task := testTask()

	err := svc.Execute(context.Background(), task, testMeta())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, db.recordedQueries(), "rejected statements never execute")

	reports := sink.recorded()
	require.Len(t, reports, 1)
	assert.Equal(t, notify.OutcomeFailed, reports[0].Outcome)
	assert.Equal(t, uint64(0), reports[0].RowsDeleted)
}

func TestCleanupService_Execute_ValidationAcceptsCompliantStatement(t *testing.T) {
	db := &stubDB{script: []execCall{{rows: 0}}}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{Enabled: true, RetentionDays: 30})

	task := testTask()
	task.TemplateQuery = "DELETE FROM sessions WHERE created_at < DATE_SUB('{{ data_interval_end }}', INTERVAL 90 DAY) LIMIT {{ batch_size }}"

	require.NoError(t, svc.Execute(context.Background(), task, testMeta()))
	require.Len(t, db.recordedQueries(), 1)
	reports := sink.recorded()
	require.Len(t, reports, 1)
	assert.Equal(t, notify.OutcomeSucceeded, reports[0].Outcome)
}

func TestCleanupService_Execute_PingFailureSkipsNotification(t *testing.T) {
	db := &stubDB{pingErr: errors.New("connection refused")}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{})

	err := svc.Execute(context.Background(), testTask(), testMeta())
	require.Error(t, err)
	assert.True(t, apperrors.IsConnection(err))
	assert.Empty(t, db.recordedQueries())
	assert.Empty(t, sink.recorded(), "unreachable database produces no report")
}

func TestCleanupService_Execute_ShutdownInterruptsPacing(t *testing.T) {
	db := &stubDB{script: []execCall{{rows: 1000}}}
	sink := &recordingSink{}
	svc := newService(t, db, sink, config.SafetyConfig{})

	task := testTask()
	task.QueryIntervalSeconds = 60

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := svc.Execute(ctx, task, testMeta())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
