package repository

import (
	"quant-platform/config"
	"quant-platform/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	ScheduleJobRepo  ScheduleJobRepository
	ScheduleLogRepo  ScheduleLogRepository
	StockRepo        StockRepository
	YahooFinanceRepo YahooFinanceRepository
	QuantWorkerRepo  QuantWorkerRepository
	UnitOfWork       UnitOfWork
}

func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger) *Repository {
	return &Repository{
		ScheduleJobRepo:  NewScheduleJobRepository(db),
		ScheduleLogRepo:  NewScheduleLogRepository(db),
		StockRepo:        NewStockRepository(db, cfg.Pipeline.PriceUpsertBatch),
		YahooFinanceRepo: NewYahooFinanceRepository(cfg, log),
		QuantWorkerRepo:  NewQuantWorkerRepository(cfg, log),
		UnitOfWork:       NewUnitOfWork(db),
	}
}
