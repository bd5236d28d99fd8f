package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quant-platform/internal/model"
	"quant-platform/internal/repository"
	"quant-platform/internal/strategy"
	"quant-platform/pkg/common"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrDuplicateJobName = errors.New("job name already exists")
	ErrLogLimitTooLarge = errors.New("log limit too large")
)

type DataCollectExecutor interface {
	Execute(ctx context.Context, spec model.DataCollectSpec) (strategy.JobResult, error)
}

type MLTrainExecutor interface {
	Execute(ctx context.Context, spec model.MLTrainSpec) (strategy.JobResult, error)
}

type FundamentalCollectExecutor interface {
	Execute(ctx context.Context, spec model.FundamentalCollectSpec) (strategy.JobResult, error)
}

// Executors holds one executor per job kind.
type Executors struct {
	DataCollect        DataCollectExecutor
	MLTrain            MLTrainExecutor
	FundamentalCollect FundamentalCollectExecutor
}

type JobRunner interface {
	// BuildWork returns the callback fired by the scheduler for job.
	BuildWork(job *model.ScheduleJob) (func(), error)
	// RunByName executes the job synchronously and returns its log id.
	RunByName(ctx context.Context, name string, trigger model.TriggerSource) (uint, error)
	// RunNow records a manual run and executes it in the background.
	RunNow(ctx context.Context, jobID uint) (uint, error)
}

type jobRunner struct {
	log       *logger.Logger
	jobRepo   repository.ScheduleJobRepository
	logRepo   repository.ScheduleLogRepository
	uow       repository.UnitOfWork
	executors Executors
	now       func() time.Time
}

func NewJobRunner(
	log *logger.Logger,
	jobRepo repository.ScheduleJobRepository,
	logRepo repository.ScheduleLogRepository,
	uow repository.UnitOfWork,
	executors Executors,
) JobRunner {
	return &jobRunner{
		log:       log,
		jobRepo:   jobRepo,
		logRepo:   logRepo,
		uow:       uow,
		executors: executors,
		now:       time.Now,
	}
}

func (r *jobRunner) BuildWork(job *model.ScheduleJob) (func(), error) {
	if _, err := job.Spec(); err != nil {
		return nil, err
	}

	name := job.JobName
	return func() {
		ctx := r.runContext(context.Background())
		if _, err := r.RunByName(ctx, name, model.TriggerScheduler); err != nil {
			r.log.ErrorContext(ctx, "Scheduled run could not start",
				logger.StringField("job_name", name),
				logger.ErrorField(err),
			)
		}
	}, nil
}

func (r *jobRunner) RunByName(ctx context.Context, name string, trigger model.TriggerSource) (uint, error) {
	job, entry, err := r.begin(ctx, trigger, func(opts ...utils.DBOption) (*model.ScheduleJob, error) {
		return r.jobRepo.FindByName(ctx, name, opts...)
	})
	if err != nil {
		return 0, fmt.Errorf("job %s: %w", name, err)
	}

	r.execute(ctx, job, entry)
	return entry.ID, nil
}

func (r *jobRunner) RunNow(ctx context.Context, jobID uint) (uint, error) {
	runCtx := r.runContext(context.WithoutCancel(ctx))
	job, entry, err := r.begin(runCtx, model.TriggerManual, func(opts ...utils.DBOption) (*model.ScheduleJob, error) {
		return r.jobRepo.FindByID(runCtx, jobID, opts...)
	})
	if err != nil {
		return 0, err
	}

	utils.GoSafe(r.log, func() {
		r.execute(runCtx, job, entry)
	})
	return entry.ID, nil
}

func (r *jobRunner) runContext(ctx context.Context) context.Context {
	return logger.NewContext(ctx, r.log.With(logger.StringField(common.KEY_LOG_RUN_ID, uuid.NewString())))
}

// begin re-reads the job and inserts its running log in one transaction.
func (r *jobRunner) begin(
	ctx context.Context,
	trigger model.TriggerSource,
	find func(opts ...utils.DBOption) (*model.ScheduleJob, error),
) (*model.ScheduleJob, *model.ScheduleLog, error) {
	var (
		job   *model.ScheduleJob
		entry *model.ScheduleLog
	)

	err := r.uow.Run(ctx, func(opts ...utils.DBOption) error {
		found, err := find(append(opts, utils.WithPreload("MLConfig"))...)
		if err != nil {
			return fmt.Errorf("failed to find job: %w", err)
		}
		if found == nil {
			return ErrJobNotFound
		}

		e := &model.ScheduleLog{
			JobID:     found.ID,
			Status:    model.RunStatusRunning,
			StartedAt: r.now(),
			TriggerBy: trigger,
		}
		if err := r.logRepo.Create(ctx, e, opts...); err != nil {
			return fmt.Errorf("failed to create schedule log: %w", err)
		}

		job, entry = found, e
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			r.log.WarnContext(ctx, "Job vanished before run, abandoned")
		}
		return nil, nil, err
	}

	r.log.InfoContext(ctx, "Job run started",
		logger.UintField("job_id", job.ID),
		logger.StringField("job_name", job.JobName),
		logger.UintField("log_id", entry.ID),
		logger.StringField("trigger", string(trigger)),
	)
	return job, entry, nil
}

func (r *jobRunner) execute(ctx context.Context, job *model.ScheduleJob, entry *model.ScheduleLog) {
	start := r.now()
	result, err := r.dispatch(ctx, job)
	if err != nil {
		r.log.ErrorContextWithAlert(ctx, "Job run failed",
			logger.StringField("job_name", job.JobName),
			logger.UintField("log_id", entry.ID),
			logger.DurationField("elapsed", r.now().Sub(start)),
			logger.ErrorField(err),
		)
		r.finish(ctx, entry.ID, model.RunOutcome{
			Status:     model.RunStatusFailed,
			FinishedAt: r.now(),
			Message:    err.Error(),
		})
		return
	}

	status := model.RunStatusSuccess
	if result.Failed > 0 {
		status = model.RunStatusPartial
	}
	r.log.InfoContext(ctx, "Job run finished",
		logger.StringField("job_name", job.JobName),
		logger.UintField("log_id", entry.ID),
		logger.StringField("status", string(status)),
		logger.IntField("total", result.Total),
		logger.IntField("success", result.Success),
		logger.IntField("failed", result.Failed),
		logger.IntField("saved", result.Saved),
		logger.DurationField("elapsed", r.now().Sub(start)),
	)
	r.finish(ctx, entry.ID, model.RunOutcome{
		Status:       status,
		FinishedAt:   r.now(),
		TotalCodes:   result.Total,
		SuccessCount: result.Success,
		FailedCount:  result.Failed,
		DBSavedCount: result.Saved,
		Message:      result.Message,
	})
}

func (r *jobRunner) dispatch(ctx context.Context, job *model.ScheduleJob) (result strategy.JobResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	spec, err := job.Spec()
	if err != nil {
		return strategy.JobResult{}, err
	}

	switch s := spec.(type) {
	case model.DataCollectSpec:
		return r.executors.DataCollect.Execute(ctx, s)
	case model.MLTrainSpec:
		return r.executors.MLTrain.Execute(ctx, s)
	case model.FundamentalCollectSpec:
		return r.executors.FundamentalCollect.Execute(ctx, s)
	default:
		return strategy.JobResult{}, fmt.Errorf("%w: %q", model.ErrInvalidJobKind, spec.Kind())
	}
}

func (r *jobRunner) finish(ctx context.Context, logID uint, outcome model.RunOutcome) {
	err := r.uow.Run(ctx, func(opts ...utils.DBOption) error {
		updated, err := r.logRepo.Finish(ctx, logID, outcome, opts...)
		if err != nil {
			return err
		}
		if !updated {
			r.log.WarnContext(ctx, "Schedule log already finished, outcome dropped", logger.UintField("log_id", logID))
		}
		return nil
	})
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to finish schedule log",
			logger.UintField("log_id", logID),
			logger.StringField("status", string(outcome.Status)),
			logger.ErrorField(err),
		)
	}
}
