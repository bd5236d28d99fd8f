package strategy

import (
	"context"
	"fmt"
	"strings"

	"quant-platform/internal/dto"
	"quant-platform/internal/model"
	"quant-platform/pkg/logger"
)

// TargetName is the label column trained for a horizon of days.
func TargetName(days int) string {
	return fmt.Sprintf("target_class_%dd", days)
}

type MLTrainStrategy struct {
	log      *logger.Logger
	features FeatureComputer
	trainer  ModelTrainer
}

func NewMLTrainStrategy(log *logger.Logger, features FeatureComputer, trainer ModelTrainer) *MLTrainStrategy {
	return &MLTrainStrategy{
		log:      log,
		features: features,
		trainer:  trainer,
	}
}

// Execute trains every market x horizon x algorithm combination one after
// another. A failing combination is recorded and the rest still run.
func (s *MLTrainStrategy) Execute(ctx context.Context, spec model.MLTrainSpec) (JobResult, error) {
	if spec.IncludeFeatureCompute {
		for _, market := range spec.Markets {
			if err := s.features.ComputeFeatures(ctx, market, spec.TargetDays); err != nil {
				s.log.WarnContext(ctx, "Feature computation failed, training on existing features",
					logger.StringField("market", market),
					logger.ErrorField(err),
				)
			}
		}
	}

	total := len(spec.Markets) * len(spec.TargetDays) * len(spec.Algorithms)
	var (
		trained  int
		failures []string
	)

	for _, market := range spec.Markets {
		for _, days := range spec.TargetDays {
			target := TargetName(days)
			for _, algorithm := range spec.Algorithms {
				req := dto.TrainModelRequest{
					Market:       market,
					Target:       target,
					Algorithm:    algorithm,
					OptunaTrials: spec.OptunaTrials,
				}
				if err := s.trainOne(ctx, req); err != nil {
					s.log.WarnContext(ctx, "Model training failed",
						logger.StringField("market", market),
						logger.StringField("target", target),
						logger.StringField("algorithm", algorithm),
						logger.ErrorField(err),
					)
					failures = append(failures, fmt.Sprintf("%s/%s/%s: %v", market, target, algorithm, err))
					continue
				}
				trained++
			}
		}
	}

	summary := fmt.Sprintf("ML training finished: %d/%d succeeded (markets=%s)", trained, total, strings.Join(spec.Markets, ","))
	if len(failures) > 0 {
		summary += "; failed: " + strings.Join(failures, "; ")
	}

	return JobResult{
		Total:   total,
		Success: trained,
		Failed:  len(failures),
		Message: summary,
	}, nil
}

func (s *MLTrainStrategy) trainOne(ctx context.Context, req dto.TrainModelRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	resp, err := s.trainer.TrainModel(ctx, req)
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "Model trained",
		logger.StringField("market", req.Market),
		logger.StringField("target", req.Target),
		logger.StringField("algorithm", req.Algorithm),
		logger.StringField("model_id", resp.ModelID),
	)
	return nil
}
