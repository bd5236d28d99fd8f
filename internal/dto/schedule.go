package dto

import (
	"time"

	"quant-platform/internal/model"
)

const TimeLayout = "2006-01-02 15:04:05"

type MLTrainConfigRequest struct {
	Markets               []string `json:"markets" validate:"omitempty,dive,required,max=10"`
	Algorithms            []string `json:"algorithms" validate:"omitempty,dive,required,max=30"`
	TargetDays            []int    `json:"target_days" validate:"omitempty,dive,min=1,max=120"`
	IncludeFeatureCompute *bool    `json:"include_feature_compute"`
	OptunaTrials          *int     `json:"optuna_trials" validate:"omitempty,min=1,max=1000"`
}

type CreateScheduleJobRequest struct {
	JobName     string                `json:"job_name" validate:"required,max=50"`
	JobType     string                `json:"job_type"`
	Market      string                `json:"market" validate:"required,max=10"`
	Sector      *string               `json:"sector" validate:"omitempty,max=50"`
	CronExpr    string                `json:"cron_expr" validate:"required,max=100"`
	DaysBack    *int                  `json:"days_back" validate:"omitempty,min=1,max=3650"`
	Enabled     *bool                 `json:"enabled"`
	Description *string               `json:"description" validate:"omitempty,max=200"`
	MLConfig    *MLTrainConfigRequest `json:"ml_config"`
}

// UpdateScheduleJobRequest changes only the fields that are set.
type UpdateScheduleJobRequest struct {
	JobName     *string               `json:"job_name" validate:"omitempty,min=1,max=50"`
	JobType     *string               `json:"job_type"`
	Market      *string               `json:"market" validate:"omitempty,min=1,max=10"`
	Sector      *string               `json:"sector" validate:"omitempty,max=50"`
	CronExpr    *string               `json:"cron_expr" validate:"omitempty,min=1,max=100"`
	DaysBack    *int                  `json:"days_back" validate:"omitempty,min=1,max=3650"`
	Enabled     *bool                 `json:"enabled"`
	Description *string               `json:"description" validate:"omitempty,max=200"`
	MLConfig    *MLTrainConfigRequest `json:"ml_config"`
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ListScheduleLogsRequest filters by job when JobID is non-zero.
type ListScheduleLogsRequest struct {
	JobID uint `query:"job_id"`
	Limit int  `query:"limit" validate:"omitempty,min=1"`
}

type MLTrainConfigResponse struct {
	Markets               []string `json:"markets"`
	Algorithms            []string `json:"algorithms"`
	TargetDays            []int    `json:"target_days"`
	IncludeFeatureCompute bool     `json:"include_feature_compute"`
	OptunaTrials          int      `json:"optuna_trials"`
}

type ScheduleJobResponse struct {
	ID          uint                   `json:"id"`
	JobName     string                 `json:"job_name"`
	JobType     string                 `json:"job_type"`
	Market      string                 `json:"market"`
	Sector      *string                `json:"sector"`
	CronExpr    string                 `json:"cron_expr"`
	DaysBack    int                    `json:"days_back"`
	Enabled     bool                   `json:"enabled"`
	Description *string                `json:"description"`
	NextRun     *string                `json:"next_run"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at"`
	MLConfig    *MLTrainConfigResponse `json:"ml_config,omitempty"`
}

type ScheduleLogResponse struct {
	ID           uint    `json:"id"`
	JobID        uint    `json:"job_id"`
	JobName      *string `json:"job_name"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   *string `json:"finished_at"`
	Status       string  `json:"status"`
	TotalCodes   int     `json:"total_codes"`
	SuccessCount int     `json:"success_count"`
	FailedCount  int     `json:"failed_count"`
	DBSavedCount int     `json:"db_saved_count"`
	TriggerBy    string  `json:"trigger_by"`
	Message      *string `json:"message"`
}

type RunJobResponse struct {
	Success bool   `json:"success"`
	LogID   uint   `json:"log_id"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	SchedulerRunning bool   `json:"scheduler_running"`
	ScheduledJobs    int    `json:"scheduled_jobs"`
	Database         string `json:"database"`
}

func formatTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(TimeLayout)
}

func NewScheduleJobResponse(job model.ScheduleJob, nextRun *time.Time, loc *time.Location) ScheduleJobResponse {
	kind, err := job.Kind()
	if err != nil {
		kind = job.JobType
	}

	resp := ScheduleJobResponse{
		ID:        job.ID,
		JobName:   job.JobName,
		JobType:   string(kind),
		Market:    job.Market,
		CronExpr:  job.CronExpr,
		DaysBack:  job.DaysBack,
		Enabled:   job.Enabled,
		CreatedAt: formatTime(job.CreatedAt, loc),
		UpdatedAt: formatTime(job.UpdatedAt, loc),
	}
	if job.Sector.Valid {
		resp.Sector = &job.Sector.String
	}
	if job.Description.Valid {
		resp.Description = &job.Description.String
	}
	if nextRun != nil {
		s := formatTime(*nextRun, loc)
		resp.NextRun = &s
	}
	if job.MLConfig != nil {
		resp.MLConfig = &MLTrainConfigResponse{
			Markets:               job.MLConfig.Markets,
			Algorithms:            job.MLConfig.Algorithms,
			TargetDays:            job.MLConfig.TargetDays,
			IncludeFeatureCompute: job.MLConfig.IncludeFeatureCompute,
			OptunaTrials:          job.MLConfig.OptunaTrials,
		}
	}
	return resp
}

func NewScheduleLogResponse(entry model.ScheduleLog, loc *time.Location) ScheduleLogResponse {
	resp := ScheduleLogResponse{
		ID:           entry.ID,
		JobID:        entry.JobID,
		StartedAt:    formatTime(entry.StartedAt, loc),
		Status:       string(entry.Status),
		TotalCodes:   entry.TotalCodes,
		SuccessCount: entry.SuccessCount,
		FailedCount:  entry.FailedCount,
		DBSavedCount: entry.DBSavedCount,
		TriggerBy:    string(entry.TriggerBy),
	}
	if resp.TriggerBy == "" {
		resp.TriggerBy = string(model.TriggerManual)
	}
	if entry.Job != nil {
		resp.JobName = &entry.Job.JobName
	}
	if entry.FinishedAt.Valid {
		s := formatTime(entry.FinishedAt.Time, loc)
		resp.FinishedAt = &s
	}
	if entry.Message.Valid {
		resp.Message = &entry.Message.String
	}
	return resp
}
