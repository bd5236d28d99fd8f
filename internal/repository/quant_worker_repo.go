package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"quant-platform/config"
	"quant-platform/internal/dto"
	"quant-platform/pkg/httpclient"
	"quant-platform/pkg/logger"
)

// QuantWorkerRepository talks to the worker service that owns feature
// engineering, model training and fundamentals collection.
type QuantWorkerRepository interface {
	ComputeFeatures(ctx context.Context, market string, targetDays []int) error
	TrainModel(ctx context.Context, req dto.TrainModelRequest) (*dto.TrainModelResponse, error)
	CollectFundamentals(ctx context.Context, market string) (*dto.FundamentalCollectResponse, error)
}

type quantWorkerRepository struct {
	httpClient httpclient.HTTPClient
	logger     *logger.Logger
}

func NewQuantWorkerRepository(cfg *config.Config, log *logger.Logger) QuantWorkerRepository {
	return newQuantWorkerRepository(log, httpclient.New(log, cfg.QuantWorker.BaseURL, cfg.QuantWorker.Timeout, cfg.QuantWorker.APIKey))
}

func newQuantWorkerRepository(log *logger.Logger, client httpclient.HTTPClient) *quantWorkerRepository {
	return &quantWorkerRepository{httpClient: client, logger: log}
}

func workerError(endpoint string, resp *httpclient.BaseResponse) error {
	var body dto.QuantWorkerError
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Detail != "" {
		return fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, body.Detail)
	}
	return fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
}

func (r *quantWorkerRepository) ComputeFeatures(ctx context.Context, market string, targetDays []int) error {
	const endpoint = "/ml/features"
	var out dto.ComputeFeaturesResponse
	resp, err := r.httpClient.Post(ctx, endpoint, dto.ComputeFeaturesRequest{Market: market, TargetDays: targetDays}, nil, &out)
	if err != nil {
		return fmt.Errorf("failed to compute features: %w", err)
	}
	if !resp.OK() {
		return workerError(endpoint, resp)
	}
	r.logger.InfoContext(ctx, "Features computed",
		logger.StringField("market", market),
		logger.IntField("computed", out.Computed),
	)
	return nil
}

func (r *quantWorkerRepository) TrainModel(ctx context.Context, req dto.TrainModelRequest) (*dto.TrainModelResponse, error) {
	const endpoint = "/ml/train"
	var out dto.TrainModelResponse
	resp, err := r.httpClient.Post(ctx, endpoint, req, nil, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to train model: %w", err)
	}
	if !resp.OK() {
		return nil, workerError(endpoint, resp)
	}
	return &out, nil
}

func (r *quantWorkerRepository) CollectFundamentals(ctx context.Context, market string) (*dto.FundamentalCollectResponse, error) {
	const endpoint = "/fundamentals/collect"
	var out dto.FundamentalCollectResponse
	resp, err := r.httpClient.Post(ctx, endpoint, dto.FundamentalCollectRequest{Market: market}, nil, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to collect fundamentals: %w", err)
	}
	if !resp.OK() {
		return nil, workerError(endpoint, resp)
	}
	return &out, nil
}
