package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"quant-platform/internal/model"
	"quant-platform/pkg/logger"

	"github.com/robfig/cron/v3"
)

var ErrJobNotScheduled = errors.New("job is not scheduled")

type SyncAction string

const (
	SyncAdd    SyncAction = "add"
	SyncRemove SyncAction = "remove"
	SyncUpdate SyncAction = "update"
)

// JobSource lists the job definitions that should be live.
type JobSource interface {
	FindEnabled(ctx context.Context) ([]model.ScheduleJob, error)
}

// WorkBuilder turns a job definition into the callback fired by the timer.
type WorkBuilder interface {
	BuildWork(job *model.ScheduleJob) (func(), error)
}

// Scheduler keeps one named timer per enabled job. Every timer is wrapped so
// that a fire arriving while the previous run is still executing is skipped.
// The busy flag of a job outlives its timer, so replacing or renaming a timer
// mid-run does not reset it.
type Scheduler struct {
	log     *logger.Logger
	loc     *time.Location
	cron    *cron.Cron
	source  JobSource
	builder WorkBuilder

	mu      sync.Mutex
	entries map[string]cron.EntryID
	busy    map[string]*atomic.Bool
	running bool
}

func New(loc *time.Location, log *logger.Logger, source JobSource, builder WorkBuilder) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := &cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	return &Scheduler{
		log:     log,
		loc:     loc,
		cron:    c,
		source:  source,
		builder: builder,
		entries: make(map[string]cron.EntryID),
		busy:    make(map[string]*atomic.Bool),
	}
}

func (s *Scheduler) Location() *time.Location {
	return s.loc
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.Info("Scheduler started",
		logger.StringField("timezone", s.loc.String()),
		logger.IntField("jobs", len(s.entries)),
	)
}

// Stop halts the timers and waits for in-flight callbacks until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("Timeout while waiting for running jobs, stopping scheduler anyway")
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LoadJobsFromDB registers every enabled job and returns how many were
// registered. A job that fails to register is logged and skipped.
func (s *Scheduler) LoadJobsFromDB(ctx context.Context) (int, error) {
	jobs, err := s.source.FindEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load enabled jobs: %w", err)
	}

	loaded := 0
	for i := range jobs {
		job := &jobs[i]
		if err := s.register(job); err != nil {
			s.log.WarnContext(ctx, "Failed to register job",
				logger.StringField("job_name", job.JobName),
				logger.StringField("cron_expr", job.CronExpr),
				logger.ErrorField(err),
			)
			continue
		}
		loaded++
	}

	s.log.InfoContext(ctx, "Jobs loaded from database",
		logger.IntField("loaded", loaded),
		logger.IntField("enabled", len(jobs)),
	)
	return loaded, nil
}

// Add registers fn under name, replacing any timer with the same name.
func (s *Scheduler) Add(name string, sched cron.Schedule, fn func()) {
	s.add(name, name, sched, fn)
}

// add registers fn under name. Timers sharing key never run
// concurrently, across replacement and renames.
func (s *Scheduler) add(name, key string, sched cron.Schedule, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	busy, ok := s.busy[key]
	if !ok {
		busy = &atomic.Bool{}
		s.busy[key] = busy
	}

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}
	s.entries[name] = s.cron.Schedule(sched, cron.FuncJob(s.skipIfBusy(name, busy, fn)))
}

func (s *Scheduler) skipIfBusy(name string, busy *atomic.Bool, fn func()) func() {
	return func() {
		if !busy.CompareAndSwap(false, true) {
			s.log.Warn("Previous run still executing, fire skipped",
				logger.StringField("job_name", name),
			)
			return
		}
		defer busy.Store(false)
		fn()
	}
}

func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[name]
	return ok
}

// Sync applies a registry mutation to the live timers. It never fails the
// caller: errors and panics are logged as warnings.
func (s *Scheduler) Sync(name string, action SyncAction, job *model.ScheduleJob) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("Panic during scheduler sync",
				logger.StringField("job_name", name),
				logger.StringField("action", string(action)),
				logger.Field("panic", r),
			)
		}
	}()

	if !s.IsRunning() {
		s.log.Warn("Scheduler not running, sync skipped",
			logger.StringField("job_name", name),
			logger.StringField("action", string(action)),
		)
		return
	}

	if err := s.sync(name, action, job); err != nil {
		s.log.Warn("Scheduler sync failed",
			logger.StringField("job_name", name),
			logger.StringField("action", string(action)),
			logger.ErrorField(err),
		)
		return
	}

	s.log.Info("Scheduler synced",
		logger.StringField("job_name", name),
		logger.StringField("action", string(action)),
	)
}

func (s *Scheduler) sync(name string, action SyncAction, job *model.ScheduleJob) error {
	switch action {
	case SyncRemove:
		s.Remove(name)
		return nil
	case SyncAdd:
		return s.register(job)
	case SyncUpdate:
		s.Remove(name)
		return s.register(job)
	default:
		return fmt.Errorf("unknown sync action %q", action)
	}
}

func (s *Scheduler) register(job *model.ScheduleJob) error {
	if job == nil {
		return errors.New("job definition is required")
	}
	if !job.Enabled {
		return nil
	}

	sched, err := ParseCron(job.CronExpr)
	if err != nil {
		return err
	}
	fn, err := s.builder.BuildWork(job)
	if err != nil {
		return err
	}

	s.add(job.JobName, guardKey(job), sched, fn)
	return nil
}

// guardKey follows the job row rather than its name, so a rename keeps the
// running flag.
func guardKey(job *model.ScheduleJob) string {
	if job.ID == 0 {
		return job.JobName
	}
	return fmt.Sprintf("job#%d", job.ID)
}

// NextRun returns the next fire time of name. ok is false when the
// scheduler is not running or the name is unknown.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}, false
	}
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// NextRunsAll returns the next fire time of every registered timer.
func (s *Scheduler) NextRunsAll() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]time.Time, len(s.entries))
	if !s.running {
		return result
	}

	byID := make(map[cron.EntryID]time.Time, len(s.entries))
	for _, e := range s.cron.Entries() {
		byID[e.ID] = e.Next
	}
	for name, id := range s.entries {
		if next, ok := byID[id]; ok && !next.IsZero() {
			result[name] = next
		}
	}
	return result
}

// RunNow runs the registered callback of name on the calling goroutine. The
// overlap guard still applies, so a call made while the job is running is
// skipped.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotScheduled, name)
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return fmt.Errorf("%w: %s", ErrJobNotScheduled, name)
	}
	entry.WrappedJob.Run()
	return nil
}

type cronLogger struct {
	log *logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, logger.Field("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, logger.ErrorField(err), logger.Field("details", keysAndValues))
}
