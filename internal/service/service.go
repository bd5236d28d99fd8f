package service

import (
	"context"
	"fmt"
	"time"

	"quant-platform/config"
	"quant-platform/internal/pipeline"
	"quant-platform/internal/repository"
	"quant-platform/internal/scheduler"
	"quant-platform/internal/strategy"
	"quant-platform/pkg/cache"
	"quant-platform/pkg/logger"
)

type Service struct {
	Scheduler          *scheduler.Scheduler
	JobRunner          JobRunner
	ScheduleJobService ScheduleJobService
	HealthService      HealthService
	DataPipeline       *pipeline.DataPipeline
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	db Pinger,
) *Service {
	loc := cfg.Scheduler.Location()

	dataPipeline := pipeline.NewDataPipeline(log, repo.StockRepo, repo.YahooFinanceRepo, inmemoryCache, cfg.Pipeline.CodeCacheTTL, cfg.Pipeline.MaxWorkers, loc)
	executors := Executors{
		DataCollect:        strategy.NewDataCollectStrategy(log, dataPipeline, repo.StockRepo, loc),
		MLTrain:            strategy.NewMLTrainStrategy(log, repo.QuantWorkerRepo, repo.QuantWorkerRepo),
		FundamentalCollect: strategy.NewFundamentalCollectStrategy(log, repo.QuantWorkerRepo),
	}

	jobRunner := NewJobRunner(log, repo.ScheduleJobRepo, repo.ScheduleLogRepo, repo.UnitOfWork, executors)
	jobScheduler := scheduler.New(loc, log, repo.ScheduleJobRepo, jobRunner)
	scheduleJobService := NewScheduleJobService(cfg.Scheduler, loc, log, repo.ScheduleJobRepo, repo.ScheduleLogRepo, repo.UnitOfWork, jobScheduler, jobRunner)

	return &Service{
		Scheduler:          jobScheduler,
		JobRunner:          jobRunner,
		ScheduleJobService: scheduleJobService,
		HealthService:      NewHealthService(log, db, jobScheduler),
		DataPipeline:       dataPipeline,
	}
}

// StaleRunMessage is written to runs abandoned by a previous process.
const StaleRunMessage = "abandoned: process stopped before the run finished"

// SweepStaleRuns fails running logs started more than threshold ago. A
// non-positive threshold disables the sweep.
func SweepStaleRuns(ctx context.Context, log *logger.Logger, logRepo repository.ScheduleLogRepository, threshold time.Duration) (int64, error) {
	if threshold <= 0 {
		return 0, nil
	}

	n, err := logRepo.FailStaleRunning(ctx, time.Now().Add(-threshold), StaleRunMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale runs: %w", err)
	}
	if n > 0 {
		log.WarnContext(ctx, "Stale running logs marked failed",
			logger.Field("count", n),
			logger.DurationField("threshold", threshold),
		)
	}
	return n, nil
}
