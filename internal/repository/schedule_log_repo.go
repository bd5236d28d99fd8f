package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"quant-platform/internal/model"
	"quant-platform/pkg/utils"

	"gorm.io/gorm"
)

type ScheduleLogRepository interface {
	Create(ctx context.Context, entry *model.ScheduleLog, opts ...utils.DBOption) error
	Finish(ctx context.Context, id uint, outcome model.RunOutcome, opts ...utils.DBOption) (bool, error)
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduleLog, error)
	Get(ctx context.Context, param model.GetScheduleLogParam, opts ...utils.DBOption) ([]model.ScheduleLog, error)
	FailStaleRunning(ctx context.Context, startedBefore time.Time, message string, opts ...utils.DBOption) (int64, error)
}

type scheduleLogRepository struct {
	db *gorm.DB
}

func NewScheduleLogRepository(db *gorm.DB) ScheduleLogRepository {
	return &scheduleLogRepository{db: db}
}

func nullMessage(msg string) sql.NullString {
	if msg == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: utils.Truncate(msg, model.MessageMaxLength), Valid: true}
}

func (r *scheduleLogRepository) Create(ctx context.Context, entry *model.ScheduleLog, opts ...utils.DBOption) error {
	if entry.Message.Valid {
		entry.Message.String = utils.Truncate(entry.Message.String, model.MessageMaxLength)
	}
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Omit("Job").
		Create(entry).Error
}

// Finish writes the terminal state of a run. Rows that already finished are
// left untouched and reported with false.
func (r *scheduleLogRepository) Finish(ctx context.Context, id uint, outcome model.RunOutcome, opts ...utils.DBOption) (bool, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.ScheduleLog{}).
		Where("id = ? AND finished_at IS NULL", id).
		Updates(map[string]interface{}{
			"status":         outcome.Status,
			"finished_at":    outcome.FinishedAt,
			"total_codes":    outcome.TotalCodes,
			"success_count":  outcome.SuccessCount,
			"failed_count":   outcome.FailedCount,
			"db_saved_count": outcome.DBSavedCount,
			"message":        nullMessage(outcome.Message),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *scheduleLogRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduleLog, error) {
	var entry model.ScheduleLog
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&entry, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Get lists logs most recent first, joined with their job.
func (r *scheduleLogRepository) Get(ctx context.Context, param model.GetScheduleLogParam, opts ...utils.DBOption) ([]model.ScheduleLog, error) {
	var entries []model.ScheduleLog
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Preload("Job")
	if param.JobID != nil {
		db = db.Where("job_id = ?", *param.JobID)
	}
	if param.Limit > 0 {
		db = db.Limit(param.Limit)
	}
	if err := db.Order("started_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FailStaleRunning closes running rows started before the given time, left
// behind by a process that stopped mid-run.
func (r *scheduleLogRepository) FailStaleRunning(ctx context.Context, startedBefore time.Time, message string, opts ...utils.DBOption) (int64, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.ScheduleLog{}).
		Where("status = ? AND finished_at IS NULL AND started_at < ?", model.RunStatusRunning, startedBefore).
		Updates(map[string]interface{}{
			"status":      model.RunStatusFailed,
			"finished_at": time.Now(),
			"message":     nullMessage(message),
		})
	return result.RowsAffected, result.Error
}
