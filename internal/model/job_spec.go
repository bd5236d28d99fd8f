package model

import "fmt"

// JobSpec is the kind-specific payload of a ScheduleJob. The set of
// implementations is closed; dispatchers switch over it exhaustively.
type JobSpec interface {
	Kind() JobKind
	isJobSpec()
}

type DataCollectSpec struct {
	Market   string
	Sector   string
	DaysBack int
}

type MLTrainSpec struct {
	Markets               []string
	Algorithms            []string
	TargetDays            []int
	IncludeFeatureCompute bool
	OptunaTrials          int
}

type FundamentalCollectSpec struct {
	Market string
}

func (DataCollectSpec) Kind() JobKind        { return JobKindDataCollect }
func (MLTrainSpec) Kind() JobKind            { return JobKindMLTrain }
func (FundamentalCollectSpec) Kind() JobKind { return JobKindFundamentalCollect }

func (DataCollectSpec) isJobSpec()        {}
func (MLTrainSpec) isJobSpec()            {}
func (FundamentalCollectSpec) isJobSpec() {}

// Spec builds the typed payload for the job's kind. An ml_train job without
// a stored config uses the defaults.
func (j *ScheduleJob) Spec() (JobSpec, error) {
	kind, err := j.Kind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case JobKindDataCollect:
		daysBack := j.DaysBack
		if daysBack <= 0 {
			daysBack = DefaultDaysBack
		}
		return DataCollectSpec{
			Market:   j.Market,
			Sector:   j.Sector.String,
			DaysBack: daysBack,
		}, nil
	case JobKindMLTrain:
		cfg := DefaultMLTrainConfig(j.ID)
		if j.MLConfig != nil {
			c := *j.MLConfig
			c.ApplyDefaults()
			cfg = &c
		}
		return MLTrainSpec{
			Markets:               append([]string(nil), cfg.Markets...),
			Algorithms:            append([]string(nil), cfg.Algorithms...),
			TargetDays:            append([]int(nil), cfg.TargetDays...),
			IncludeFeatureCompute: cfg.IncludeFeatureCompute,
			OptunaTrials:          cfg.OptunaTrials,
		}, nil
	case JobKindFundamentalCollect:
		return FundamentalCollectSpec{Market: j.Market}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobKind, kind)
	}
}
