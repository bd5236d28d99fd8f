package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quant-platform/internal/dto"
	"quant-platform/internal/model"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/utils"
)

const maxFailedCodesInMessage = 20

type DataCollectStrategy struct {
	log       *logger.Logger
	collector Collector
	store     PriceStore
	loc       *time.Location
	now       func() time.Time
}

func NewDataCollectStrategy(log *logger.Logger, collector Collector, store PriceStore, loc *time.Location) *DataCollectStrategy {
	if loc == nil {
		loc = time.UTC
	}
	return &DataCollectStrategy{
		log:       log,
		collector: collector,
		store:     store,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *DataCollectStrategy) Execute(ctx context.Context, spec model.DataCollectSpec) (JobResult, error) {
	start, end := utils.DateWindow(s.now(), s.loc, spec.DaysBack)

	s.log.InfoContext(ctx, "Starting data collection",
		logger.StringField("market", spec.Market),
		logger.StringField("sector", spec.Sector),
		logger.StringField("start", utils.FormatDate(start)),
		logger.StringField("end", utils.FormatDate(end)),
	)

	res, err := s.collector.Fetch(ctx, dto.CollectRequest{
		Market: spec.Market,
		Sector: spec.Sector,
		Start:  start,
		End:    end,
	})
	if err != nil {
		return JobResult{}, fmt.Errorf("collect %s: %w", spec.Market, err)
	}

	saved, err := s.store.UpsertPrices(ctx, res.Prices)
	if err != nil {
		return JobResult{}, fmt.Errorf("save %s prices: %w", spec.Market, err)
	}

	return JobResult{
		Total:   res.TotalCodes,
		Success: res.Success,
		Failed:  res.Failed,
		Saved:   int(saved),
		Message: collectMessage(spec.Market, utils.FormatDate(start), utils.FormatDate(end), res, saved),
	}, nil
}

func collectMessage(market, start, end string, res *dto.CollectResult, saved int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s~%s: %d/%d codes collected, %d rows saved", market, start, end, res.Success, res.TotalCodes, saved)
	if len(res.FailedCodes) > 0 {
		failed := res.FailedCodes
		if len(failed) > maxFailedCodesInMessage {
			failed = failed[:maxFailedCodesInMessage]
		}
		fmt.Fprintf(&sb, "; failed: %s", strings.Join(failed, ","))
		if len(res.FailedCodes) > len(failed) {
			fmt.Fprintf(&sb, " (+%d more)", len(res.FailedCodes)-len(failed))
		}
	}
	return sb.String()
}
