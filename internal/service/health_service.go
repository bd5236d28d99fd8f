package service

import (
	"context"
	"time"

	"quant-platform/internal/dto"
	"quant-platform/pkg/logger"
)

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

type healthService struct {
	log       *logger.Logger
	db        Pinger
	scheduler JobScheduler
	startedAt time.Time
}

func NewHealthService(log *logger.Logger, db Pinger, scheduler JobScheduler) HealthService {
	return &healthService{
		log:       log,
		db:        db,
		scheduler: scheduler,
		startedAt: time.Now(),
	}
}

func (h *healthService) Check(ctx context.Context) dto.HealthResponse {
	resp := dto.HealthResponse{
		Status:           "ok",
		Uptime:           time.Since(h.startedAt).Truncate(time.Second).String(),
		SchedulerRunning: h.scheduler.IsRunning(),
		ScheduledJobs:    len(h.scheduler.NextRunsAll()),
		Database:         "ok",
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := h.db.PingContext(pingCtx); err != nil {
		h.log.WarnContext(ctx, "Database ping failed", logger.ErrorField(err))
		resp.Status = "degraded"
		resp.Database = "unreachable"
	}
	return resp
}
