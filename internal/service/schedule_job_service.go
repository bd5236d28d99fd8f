package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quant-platform/config"
	"quant-platform/internal/dto"
	"quant-platform/internal/model"
	"quant-platform/internal/repository"
	"quant-platform/internal/scheduler"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/utils"

	"gorm.io/gorm"
)

// JobScheduler is the part of the live scheduler the admin operations use.
type JobScheduler interface {
	Sync(name string, action scheduler.SyncAction, job *model.ScheduleJob)
	NextRunsAll() map[string]time.Time
	IsRunning() bool
}

type ScheduleJobService interface {
	ListJobs(ctx context.Context) ([]dto.ScheduleJobResponse, error)
	CreateJob(ctx context.Context, req dto.CreateScheduleJobRequest) (*dto.ScheduleJobResponse, error)
	UpdateJob(ctx context.Context, id uint, req dto.UpdateScheduleJobRequest) (*dto.ScheduleJobResponse, error)
	SetEnabled(ctx context.Context, id uint, enabled bool) (*dto.ScheduleJobResponse, error)
	DeleteJob(ctx context.Context, id uint) error
	RunJobNow(ctx context.Context, id uint) (*dto.RunJobResponse, error)
	ListLogs(ctx context.Context, jobID *uint, limit int) ([]dto.ScheduleLogResponse, error)
}

type scheduleJobService struct {
	cfg       config.Scheduler
	loc       *time.Location
	log       *logger.Logger
	jobRepo   repository.ScheduleJobRepository
	logRepo   repository.ScheduleLogRepository
	uow       repository.UnitOfWork
	scheduler JobScheduler
	runner    JobRunner
}

func NewScheduleJobService(
	cfg config.Scheduler,
	loc *time.Location,
	log *logger.Logger,
	jobRepo repository.ScheduleJobRepository,
	logRepo repository.ScheduleLogRepository,
	uow repository.UnitOfWork,
	scheduler JobScheduler,
	runner JobRunner,
) ScheduleJobService {
	return &scheduleJobService{
		cfg:       cfg,
		loc:       loc,
		log:       log,
		jobRepo:   jobRepo,
		logRepo:   logRepo,
		uow:       uow,
		scheduler: scheduler,
		runner:    runner,
	}
}

func (s *scheduleJobService) ListJobs(ctx context.Context) ([]dto.ScheduleJobResponse, error) {
	jobs, err := s.jobRepo.Get(ctx, model.GetScheduleJobParam{WithConfig: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	nextRuns := s.scheduler.NextRunsAll()
	result := make([]dto.ScheduleJobResponse, 0, len(jobs))
	for _, job := range jobs {
		result = append(result, s.toResponse(job, nextRuns))
	}
	return result, nil
}

func (s *scheduleJobService) CreateJob(ctx context.Context, req dto.CreateScheduleJobRequest) (*dto.ScheduleJobResponse, error) {
	kind, err := model.ParseJobKind(req.JobType)
	if err != nil {
		return nil, err
	}
	if err := scheduler.ValidateCron(req.CronExpr); err != nil {
		return nil, err
	}

	job := &model.ScheduleJob{
		JobName:     req.JobName,
		JobType:     kind,
		Market:      req.Market,
		Sector:      nullString(req.Sector),
		CronExpr:    req.CronExpr,
		DaysBack:    model.DefaultDaysBack,
		Enabled:     true,
		Description: nullString(req.Description),
	}
	if req.DaysBack != nil {
		job.DaysBack = *req.DaysBack
	}
	if req.Enabled != nil {
		job.Enabled = *req.Enabled
	}
	if kind == model.JobKindMLTrain {
		job.MLConfig = mergeMLConfig(model.DefaultMLTrainConfig(0), req.MLConfig)
	}

	err = s.uow.Run(ctx, func(opts ...utils.DBOption) error {
		exists, err := s.jobRepo.ExistsByName(ctx, job.JobName, 0, opts...)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateJobName, job.JobName)
		}
		return duplicateName(s.jobRepo.Create(ctx, job, opts...), job.JobName)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "Schedule job created",
		logger.UintField("job_id", job.ID),
		logger.StringField("job_name", job.JobName),
		logger.StringField("job_type", string(job.JobType)),
	)
	s.scheduler.Sync(job.JobName, scheduler.SyncAdd, job)

	resp := s.toResponse(*job, s.scheduler.NextRunsAll())
	return &resp, nil
}

func (s *scheduleJobService) UpdateJob(ctx context.Context, id uint, req dto.UpdateScheduleJobRequest) (*dto.ScheduleJobResponse, error) {
	var (
		job     *model.ScheduleJob
		oldName string
	)

	err := s.uow.Run(ctx, func(opts ...utils.DBOption) error {
		found, err := s.jobRepo.FindByID(ctx, id, append(opts, utils.WithPreload("MLConfig"))...)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrJobNotFound
		}
		oldName = found.JobName

		if req.JobName != nil && *req.JobName != found.JobName {
			exists, err := s.jobRepo.ExistsByName(ctx, *req.JobName, found.ID, opts...)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrDuplicateJobName, *req.JobName)
			}
		}

		if err := applyUpdate(found, req); err != nil {
			return err
		}

		if found.JobType == model.JobKindMLTrain {
			cfg := found.MLConfig
			if cfg == nil {
				cfg = model.DefaultMLTrainConfig(found.ID)
			}
			found.MLConfig = mergeMLConfig(cfg, req.MLConfig)
			found.MLConfig.JobID = found.ID
			if err := s.jobRepo.UpsertMLConfig(ctx, found.MLConfig, opts...); err != nil {
				return err
			}
		} else if found.MLConfig != nil {
			if err := s.jobRepo.DeleteMLConfig(ctx, found.ID, opts...); err != nil {
				return err
			}
			found.MLConfig = nil
		}

		if err := s.jobRepo.Update(ctx, found, opts...); err != nil {
			return duplicateName(err, found.JobName)
		}
		job = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "Schedule job updated",
		logger.UintField("job_id", job.ID),
		logger.StringField("job_name", job.JobName),
		logger.StringField("old_name", oldName),
	)
	if oldName != job.JobName {
		s.scheduler.Sync(oldName, scheduler.SyncRemove, nil)
	}
	s.scheduler.Sync(job.JobName, scheduler.SyncUpdate, job)

	resp := s.toResponse(*job, s.scheduler.NextRunsAll())
	return &resp, nil
}

func (s *scheduleJobService) SetEnabled(ctx context.Context, id uint, enabled bool) (*dto.ScheduleJobResponse, error) {
	return s.UpdateJob(ctx, id, dto.UpdateScheduleJobRequest{Enabled: &enabled})
}

func (s *scheduleJobService) DeleteJob(ctx context.Context, id uint) error {
	var name string
	err := s.uow.Run(ctx, func(opts ...utils.DBOption) error {
		job, err := s.jobRepo.FindByID(ctx, id, opts...)
		if err != nil {
			return err
		}
		if job == nil {
			return ErrJobNotFound
		}
		name = job.JobName
		return s.jobRepo.Delete(ctx, id, opts...)
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "Schedule job deleted",
		logger.UintField("job_id", id),
		logger.StringField("job_name", name),
	)
	s.scheduler.Sync(name, scheduler.SyncRemove, nil)
	return nil
}

func (s *scheduleJobService) RunJobNow(ctx context.Context, id uint) (*dto.RunJobResponse, error) {
	logID, err := s.runner.RunNow(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.RunJobResponse{
		Success: true,
		LogID:   logID,
		Message: "job started",
	}, nil
}

func (s *scheduleJobService) ListLogs(ctx context.Context, jobID *uint, limit int) ([]dto.ScheduleLogResponse, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLogLimit
	}
	if s.cfg.MaxLogLimit > 0 && limit > s.cfg.MaxLogLimit {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrLogLimitTooLarge, limit, s.cfg.MaxLogLimit)
	}

	entries, err := s.logRepo.Get(ctx, model.GetScheduleLogParam{JobID: jobID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule logs: %w", err)
	}

	result := make([]dto.ScheduleLogResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, dto.NewScheduleLogResponse(e, s.loc))
	}
	return result, nil
}

func (s *scheduleJobService) toResponse(job model.ScheduleJob, nextRuns map[string]time.Time) dto.ScheduleJobResponse {
	var next *time.Time
	if t, ok := nextRuns[job.JobName]; ok {
		next = &t
	}
	return dto.NewScheduleJobResponse(job, next, s.loc)
}

func applyUpdate(job *model.ScheduleJob, req dto.UpdateScheduleJobRequest) error {
	if req.JobType != nil {
		kind, err := model.ParseJobKind(*req.JobType)
		if err != nil {
			return err
		}
		job.JobType = kind
	} else if kind, err := job.Kind(); err == nil {
		job.JobType = kind
	}
	if req.CronExpr != nil {
		if err := scheduler.ValidateCron(*req.CronExpr); err != nil {
			return err
		}
		job.CronExpr = *req.CronExpr
	}
	if req.JobName != nil {
		job.JobName = *req.JobName
	}
	if req.Market != nil {
		job.Market = *req.Market
	}
	if req.Sector != nil {
		job.Sector = nullString(req.Sector)
	}
	if req.DaysBack != nil {
		job.DaysBack = *req.DaysBack
	}
	if req.Enabled != nil {
		job.Enabled = *req.Enabled
	}
	if req.Description != nil {
		job.Description = nullString(req.Description)
	}
	return nil
}

func mergeMLConfig(cfg *model.MLTrainConfig, req *dto.MLTrainConfigRequest) *model.MLTrainConfig {
	if req != nil {
		if len(req.Markets) > 0 {
			cfg.Markets = req.Markets
		}
		if len(req.Algorithms) > 0 {
			cfg.Algorithms = req.Algorithms
		}
		if len(req.TargetDays) > 0 {
			cfg.TargetDays = req.TargetDays
		}
		if req.IncludeFeatureCompute != nil {
			cfg.IncludeFeatureCompute = *req.IncludeFeatureCompute
		}
		if req.OptunaTrials != nil {
			cfg.OptunaTrials = *req.OptunaTrials
		}
	}
	cfg.ApplyDefaults()
	return cfg
}

// nullString maps an empty or missing value to NULL.
func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// duplicateName maps a unique-index violation, raised when a concurrent
// writer claims the name after the existence check, to ErrDuplicateJobName.
func duplicateName(err error, name string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicateJobName, name)
	}
	return err
}
