package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quant-platform/internal/model"
	"quant-platform/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	jobs []model.ScheduleJob
	err  error
}

func (f *fakeSource) FindEnabled(ctx context.Context) ([]model.ScheduleJob, error) {
	return f.jobs, f.err
}

type fakeBuilder struct {
	mu     sync.Mutex
	built  []string
	failOn string
	calls  map[string]*atomic.Int32
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{calls: make(map[string]*atomic.Int32)}
}

func (b *fakeBuilder) BuildWork(job *model.ScheduleJob) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if job.JobName == b.failOn {
		return nil, errors.New("unsupported")
	}
	b.built = append(b.built, job.JobName)
	counter := &atomic.Int32{}
	b.calls[job.JobName] = counter
	return func() { counter.Add(1) }, nil
}

func (b *fakeBuilder) Calls(name string) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.calls[name]; ok {
		return c.Load()
	}
	return 0
}

func newTestScheduler(t *testing.T, source JobSource, builder WorkBuilder) *Scheduler {
	t.Helper()
	s := New(time.UTC, logger.FromZap(zaptest.NewLogger(t)), source, builder)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func job(name, expr string, enabled bool) model.ScheduleJob {
	return model.ScheduleJob{JobName: name, JobType: model.JobKindDataCollect, Market: "KOSPI", CronExpr: expr, Enabled: enabled}
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	s.Stop(context.Background())
	s.Stop(context.Background())
	assert.False(t, s.IsRunning())

	s.Start()
	assert.True(t, s.IsRunning())
}

func TestScheduler_LoadJobsFromDB(t *testing.T) {
	source := &fakeSource{jobs: []model.ScheduleJob{
		job("kospi_daily", "0 18 * * 1-5", true),
		job("bad_cron", "0 18 * *", true),
		job("unbuildable", "0 19 * * *", true),
		job("kosdaq_daily", "0 0 19 ? * MON-FRI", true),
	}}
	builder := newFakeBuilder()
	builder.failOn = "unbuildable"
	s := newTestScheduler(t, source, builder)

	n, err := s.LoadJobsFromDB(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, s.Has("kospi_daily"))
	assert.True(t, s.Has("kosdaq_daily"))
	assert.False(t, s.Has("bad_cron"))
	assert.False(t, s.Has("unbuildable"))
}

func TestScheduler_LoadJobsFromDB_SourceError(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{err: errors.New("db down")}, newFakeBuilder())

	n, err := s.LoadJobsFromDB(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestScheduler_AddIsUpsert(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	s.Start()

	first, err := ParseCron("0 9 * * *")
	require.NoError(t, err)
	second, err := ParseCron("0 21 * * *")
	require.NoError(t, err)

	var firstCalls, secondCalls atomic.Int32
	s.Add("job", first, func() { firstCalls.Add(1) })
	s.Add("job", second, func() { secondCalls.Add(1) })

	assert.Len(t, s.cron.Entries(), 1)
	next, ok := s.NextRun("job")
	require.True(t, ok)
	assert.Equal(t, 21, next.Hour())

	require.NoError(t, s.RunNow("job"))
	assert.Zero(t, firstCalls.Load())
	assert.Equal(t, int32(1), secondCalls.Load())
}

func TestScheduler_RemoveUnknownIsNoop(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	assert.NotPanics(t, func() { s.Remove("missing") })
}

func TestScheduler_NextRun(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	sched, err := ParseCron("0 9 * * *")
	require.NoError(t, err)
	s.Add("job", sched, func() {})

	_, ok := s.NextRun("job")
	assert.False(t, ok, "not running yet")
	assert.Empty(t, s.NextRunsAll())

	s.Start()
	require.Eventually(t, func() bool {
		_, ok := s.NextRun("job")
		return ok
	}, time.Second, 10*time.Millisecond)

	_, ok = s.NextRun("missing")
	assert.False(t, ok)

	all := s.NextRunsAll()
	require.Contains(t, all, "job")
	assert.Equal(t, 9, all["job"].Hour())
}

func TestScheduler_RunNowUnknown(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	assert.ErrorIs(t, s.RunNow("missing"), ErrJobNotScheduled)
}

func TestScheduler_OverlappingRunIsSkipped(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	s.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once

	sched, err := ParseCron("0 0 1 1 *")
	require.NoError(t, err)
	s.Add("slow", sched, func() {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
	})

	firstDone := make(chan struct{})
	go func() {
		_ = s.RunNow("slow")
		close(firstDone)
	}()
	<-started

	// The second call returns immediately without running the callback.
	require.NoError(t, s.RunNow("slow"))
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	<-firstDone

	// Once the first run has finished the job can run again.
	done := make(chan struct{})
	go func() {
		_ = s.RunNow("slow")
		close(done)
	}()
	<-done
	assert.Equal(t, int32(2), calls.Load())
}

func TestScheduler_PanicInCallbackIsRecovered(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	sched, err := ParseCron("0 0 1 1 *")
	require.NoError(t, err)
	s.Add("panicky", sched, func() { panic("boom") })

	assert.NotPanics(t, func() { _ = s.RunNow("panicky") })
}

func TestScheduler_Sync(t *testing.T) {
	builder := newFakeBuilder()
	s := newTestScheduler(t, &fakeSource{}, builder)

	enabled := job("kospi_daily", "0 18 * * *", true)

	// Not running: nothing is registered.
	s.Sync(enabled.JobName, SyncAdd, &enabled)
	assert.False(t, s.Has("kospi_daily"))

	s.Start()

	s.Sync(enabled.JobName, SyncAdd, &enabled)
	assert.True(t, s.Has("kospi_daily"))

	disabled := job("kospi_daily", "0 18 * * *", false)
	s.Sync(disabled.JobName, SyncUpdate, &disabled)
	assert.False(t, s.Has("kospi_daily"), "update to disabled removes the timer")

	s.Sync(enabled.JobName, SyncUpdate, &enabled)
	assert.True(t, s.Has("kospi_daily"))

	s.Sync("kospi_daily", SyncRemove, nil)
	assert.False(t, s.Has("kospi_daily"))
}

func TestScheduler_SyncNeverFails(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	s.Start()

	bad := job("bad", "not a cron", true)
	assert.NotPanics(t, func() {
		s.Sync("bad", SyncAdd, &bad)
		s.Sync("nil-job", SyncAdd, nil)
		s.Sync("x", SyncAction("rename"), nil)
	})
	assert.False(t, s.Has("bad"))
}

func TestScheduler_SyncRename(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	s.Start()

	old := job("old_name", "0 18 * * *", true)
	s.Sync(old.JobName, SyncAdd, &old)
	require.True(t, s.Has("old_name"))

	renamed := job("new_name", "0 18 * * *", true)
	s.Sync("old_name", SyncRemove, nil)
	s.Sync(renamed.JobName, SyncUpdate, &renamed)

	assert.False(t, s.Has("old_name"))
	assert.True(t, s.Has("new_name"))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_ReplacingRunningTimerKeepsGuard(t *testing.T) {
	s := newTestScheduler(t, &fakeSource{}, newFakeBuilder())
	s.Start()

	sched, err := ParseCron("0 0 1 1 *")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var once sync.Once
	slow := func() {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
	}

	s.Add("job", sched, slow)
	firstDone := make(chan struct{})
	go func() {
		_ = s.RunNow("job")
		close(firstDone)
	}()
	<-started

	s.Add("job", sched, slow)
	require.NoError(t, s.RunNow("job"))
	assert.Equal(t, int32(1), calls.Load(), "replacement must not reset the running flag")

	close(release)
	<-firstDone

	require.NoError(t, s.RunNow("job"))
	assert.Equal(t, int32(2), calls.Load())
}

type blockingBuilder struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingBuilder) BuildWork(job *model.ScheduleJob) (func(), error) {
	return func() {
		b.calls.Add(1)
		b.once.Do(func() { close(b.started) })
		<-b.release
	}, nil
}

func TestScheduler_SyncWhileRunningKeepsGuard(t *testing.T) {
	builder := &blockingBuilder{started: make(chan struct{}), release: make(chan struct{})}
	s := newTestScheduler(t, &fakeSource{}, builder)
	s.Start()

	original := job("kospi_daily", "0 18 * * *", true)
	original.ID = 7
	s.Sync(original.JobName, SyncAdd, &original)

	firstDone := make(chan struct{})
	go func() {
		_ = s.RunNow("kospi_daily")
		close(firstDone)
	}()
	<-builder.started

	updated := original
	updated.Description = sql.NullString{String: "evening close", Valid: true}
	s.Sync(updated.JobName, SyncUpdate, &updated)
	require.NoError(t, s.RunNow("kospi_daily"))

	renamed := original
	renamed.JobName = "kospi_evening"
	s.Sync("kospi_daily", SyncRemove, nil)
	s.Sync(renamed.JobName, SyncUpdate, &renamed)
	require.NoError(t, s.RunNow("kospi_evening"))

	assert.Equal(t, int32(1), builder.calls.Load())

	close(builder.release)
	<-firstDone

	require.NoError(t, s.RunNow("kospi_evening"))
	assert.Equal(t, int32(2), builder.calls.Load())
}
