package strategy

import (
	"context"

	"quant-platform/internal/dto"
	"quant-platform/internal/model"
	"quant-platform/pkg/utils"
)

// JobResult is the aggregate outcome of one run. A run with Failed > 0
// finished partially.
type JobResult struct {
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	Saved   int    `json:"saved"`
	Message string `json:"message"`
}

// Collector fetches daily prices for a market window.
type Collector interface {
	Fetch(ctx context.Context, req dto.CollectRequest) (*dto.CollectResult, error)
}

// PriceStore persists collected prices and returns the rows written.
type PriceStore interface {
	UpsertPrices(ctx context.Context, prices []model.StockPrice, opts ...utils.DBOption) (int64, error)
}

type FeatureComputer interface {
	ComputeFeatures(ctx context.Context, market string, targetDays []int) error
}

type ModelTrainer interface {
	TrainModel(ctx context.Context, req dto.TrainModelRequest) (*dto.TrainModelResponse, error)
}

type FundamentalCollector interface {
	CollectFundamentals(ctx context.Context, market string) (*dto.FundamentalCollectResponse, error)
}
