package repository

import (
	"context"
	"errors"

	"quant-platform/internal/model"
	"quant-platform/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ScheduleJobRepository interface {
	Create(ctx context.Context, job *model.ScheduleJob, opts ...utils.DBOption) error
	Update(ctx context.Context, job *model.ScheduleJob, opts ...utils.DBOption) error
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduleJob, error)
	FindByName(ctx context.Context, name string, opts ...utils.DBOption) (*model.ScheduleJob, error)
	FindEnabled(ctx context.Context) ([]model.ScheduleJob, error)
	Get(ctx context.Context, param model.GetScheduleJobParam, opts ...utils.DBOption) ([]model.ScheduleJob, error)
	ExistsByName(ctx context.Context, name string, excludeID uint, opts ...utils.DBOption) (bool, error)
	UpsertMLConfig(ctx context.Context, cfg *model.MLTrainConfig, opts ...utils.DBOption) error
	DeleteMLConfig(ctx context.Context, jobID uint, opts ...utils.DBOption) error
}

type scheduleJobRepository struct {
	db *gorm.DB
}

func NewScheduleJobRepository(db *gorm.DB) ScheduleJobRepository {
	return &scheduleJobRepository{db: db}
}

// Create inserts the job row and, when present, its ML config.
func (r *scheduleJobRepository) Create(ctx context.Context, job *model.ScheduleJob, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Omit(clause.Associations).Create(job).Error; err != nil {
		return err
	}
	if job.MLConfig != nil {
		job.MLConfig.JobID = job.ID
		return r.UpsertMLConfig(ctx, job.MLConfig, opts...)
	}
	return nil
}

// Update writes every column of the job row. Associations are handled by
// UpsertMLConfig and DeleteMLConfig.
func (r *scheduleJobRepository) Update(ctx context.Context, job *model.ScheduleJob, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Omit(clause.Associations).
		Save(job).Error
}

// Delete removes the job together with its execution logs and ML config.
func (r *scheduleJobRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Where("job_id = ?", id).Delete(&model.ScheduleLog{}).Error; err != nil {
		return err
	}
	if err := db.Where("job_id = ?", id).Delete(&model.MLTrainConfig{}).Error; err != nil {
		return err
	}
	return db.Delete(&model.ScheduleJob{}, id).Error
}

func (r *scheduleJobRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduleJob, error) {
	var job model.ScheduleJob
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *scheduleJobRepository) FindByName(ctx context.Context, name string, opts ...utils.DBOption) (*model.ScheduleJob, error) {
	var job model.ScheduleJob
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("job_name = ?", name).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *scheduleJobRepository) FindEnabled(ctx context.Context) ([]model.ScheduleJob, error) {
	return r.Get(ctx, model.GetScheduleJobParam{EnabledOnly: true, WithConfig: true})
}

func (r *scheduleJobRepository) Get(ctx context.Context, param model.GetScheduleJobParam, opts ...utils.DBOption) ([]model.ScheduleJob, error) {
	var jobs []model.ScheduleJob
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if param.EnabledOnly {
		db = db.Where("enabled = ?", true)
	}
	if len(param.IDs) > 0 {
		db = db.Where("id IN ?", param.IDs)
	}
	if param.WithConfig {
		db = db.Preload("MLConfig")
	}
	if err := db.Order("id ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *scheduleJobRepository) ExistsByName(ctx context.Context, name string, excludeID uint, opts ...utils.DBOption) (bool, error) {
	var count int64
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.ScheduleJob{}).
		Where("job_name = ?", name)
	if excludeID != 0 {
		db = db.Where("id <> ?", excludeID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *scheduleJobRepository) UpsertMLConfig(ctx context.Context, cfg *model.MLTrainConfig, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			UpdateAll: true,
		}).
		Create(cfg).Error
}

func (r *scheduleJobRepository) DeleteMLConfig(ctx context.Context, jobID uint, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("job_id = ?", jobID).
		Delete(&model.MLTrainConfig{}).Error
}
