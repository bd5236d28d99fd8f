package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type JobKind string

const (
	JobKindDataCollect        JobKind = "data_collect"
	JobKindMLTrain            JobKind = "ml_train"
	JobKindFundamentalCollect JobKind = "fundamental_collect"
)

var ErrInvalidJobKind = errors.New("invalid job kind")

// ParseJobKind maps a stored or requested kind to JobKind. Rows written
// before the column existed carry an empty value and mean data_collect.
func ParseJobKind(s string) (JobKind, error) {
	switch JobKind(s) {
	case "":
		return JobKindDataCollect, nil
	case JobKindDataCollect, JobKindMLTrain, JobKindFundamentalCollect:
		return JobKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidJobKind, s)
	}
}

const DefaultDaysBack = 7

type ScheduleJob struct {
	ID          uint           `gorm:"primaryKey"`
	JobName     string         `gorm:"type:varchar(50);uniqueIndex;not null"`
	JobType     JobKind        `gorm:"type:varchar(30);not null"`
	Market      string         `gorm:"type:varchar(10);not null"`
	Sector      sql.NullString `gorm:"type:varchar(50)"`
	CronExpr    string         `gorm:"type:varchar(100);not null"`
	DaysBack    int            `gorm:"not null"`
	Enabled     bool           `gorm:"not null"`
	Description sql.NullString `gorm:"type:varchar(200)"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	MLConfig    *MLTrainConfig `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

func (ScheduleJob) TableName() string {
	return "schedule_job"
}

// Kind returns the job kind with the legacy empty value resolved.
func (j *ScheduleJob) Kind() (JobKind, error) {
	return ParseJobKind(string(j.JobType))
}

type GetScheduleJobParam struct {
	IDs         []uint
	EnabledOnly bool
	WithConfig  bool
}
