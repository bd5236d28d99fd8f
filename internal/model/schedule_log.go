package model

import (
	"database/sql"
	"time"
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusPartial || s == RunStatusFailed
}

type TriggerSource string

const (
	TriggerManual    TriggerSource = "manual"
	TriggerScheduler TriggerSource = "scheduler"
)

// MessageMaxLength bounds ScheduleLog.Message in runes.
const MessageMaxLength = 500

type ScheduleLog struct {
	ID           uint      `gorm:"primaryKey"`
	JobID        uint      `gorm:"not null;index"`
	Status       RunStatus `gorm:"type:varchar(20);not null"`
	StartedAt    time.Time `gorm:"not null;index"`
	FinishedAt   sql.NullTime
	TotalCodes   int            `gorm:"not null"`
	SuccessCount int            `gorm:"not null"`
	FailedCount  int            `gorm:"not null"`
	DBSavedCount int            `gorm:"column:db_saved_count;not null"`
	TriggerBy    TriggerSource  `gorm:"type:varchar(20);not null"`
	Message      sql.NullString `gorm:"type:varchar(500)"`
	Job          *ScheduleJob   `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

func (ScheduleLog) TableName() string {
	return "schedule_log"
}

// RunOutcome is the terminal state written once per log row.
type RunOutcome struct {
	Status       RunStatus
	FinishedAt   time.Time
	TotalCodes   int
	SuccessCount int
	FailedCount  int
	DBSavedCount int
	Message      string
}

type GetScheduleLogParam struct {
	JobID *uint
	Limit int
}
