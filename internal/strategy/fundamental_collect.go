package strategy

import (
	"context"
	"fmt"

	"quant-platform/internal/model"
	"quant-platform/pkg/logger"
)

type FundamentalCollectStrategy struct {
	log       *logger.Logger
	collector FundamentalCollector
}

func NewFundamentalCollectStrategy(log *logger.Logger, collector FundamentalCollector) *FundamentalCollectStrategy {
	return &FundamentalCollectStrategy{
		log:       log,
		collector: collector,
	}
}

func (s *FundamentalCollectStrategy) Execute(ctx context.Context, spec model.FundamentalCollectSpec) (JobResult, error) {
	s.log.InfoContext(ctx, "Starting fundamental collection", logger.StringField("market", spec.Market))

	res, err := s.collector.CollectFundamentals(ctx, spec.Market)
	if err != nil {
		return JobResult{}, fmt.Errorf("collect %s fundamentals: %w", spec.Market, err)
	}

	msg := res.Message
	if msg == "" {
		msg = fmt.Sprintf("%s fundamentals: %d/%d collected, %d saved, %d skipped",
			spec.Market, res.Success, res.Total, res.Saved, res.Skipped)
	}

	return JobResult{
		Total:   res.Total,
		Success: res.Success,
		Failed:  res.Failed,
		Saved:   res.Saved,
		Message: msg,
	}, nil
}
