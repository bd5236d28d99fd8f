package model

import (
	"gorm.io/datatypes"
)

const DefaultOptunaTrials = 50

func DefaultMLMarkets() []string    { return []string{"KOSPI", "KOSDAQ"} }
func DefaultMLAlgorithms() []string { return []string{"random_forest", "xgboost", "lightgbm"} }
func DefaultMLTargetDays() []int    { return []int{1, 5} }

// MLTrainConfig holds the training parameters of an ml_train job. It shares
// its primary key with the owning ScheduleJob.
type MLTrainConfig struct {
	JobID                 uint                        `gorm:"primaryKey;autoIncrement:false"`
	Markets               datatypes.JSONSlice[string] `gorm:"not null"`
	Algorithms            datatypes.JSONSlice[string] `gorm:"not null"`
	TargetDays            datatypes.JSONSlice[int]    `gorm:"not null"`
	IncludeFeatureCompute bool                        `gorm:"not null"`
	OptunaTrials          int                         `gorm:"not null"`
}

func (MLTrainConfig) TableName() string {
	return "ml_train_config"
}

func DefaultMLTrainConfig(jobID uint) *MLTrainConfig {
	return &MLTrainConfig{
		JobID:                 jobID,
		Markets:               DefaultMLMarkets(),
		Algorithms:            DefaultMLAlgorithms(),
		TargetDays:            DefaultMLTargetDays(),
		IncludeFeatureCompute: true,
		OptunaTrials:          DefaultOptunaTrials,
	}
}

// ApplyDefaults fills empty lists and a non-positive trial count.
func (c *MLTrainConfig) ApplyDefaults() {
	if len(c.Markets) == 0 {
		c.Markets = DefaultMLMarkets()
	}
	if len(c.Algorithms) == 0 {
		c.Algorithms = DefaultMLAlgorithms()
	}
	if len(c.TargetDays) == 0 {
		c.TargetDays = DefaultMLTargetDays()
	}
	if c.OptunaTrials <= 0 {
		c.OptunaTrials = DefaultOptunaTrials
	}
}
