package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"quant-platform/config"
	"quant-platform/internal/dto"
	"quant-platform/pkg/common"
	"quant-platform/pkg/httpclient"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/ratelimit"
)

var ErrUpstreamThrottled = errors.New("upstream throttled request")

type YahooFinanceRepository interface {
	GetDailyPrices(ctx context.Context, param dto.GetStockDataParam) ([]dto.StockOHLCV, error)
}

// yahooFinanceRepository reads daily bars from the Yahoo chart API.
type yahooFinanceRepository struct {
	httpClient httpclient.HTTPClient
	cfg        *config.Config
	logger     *logger.Logger
	limiters   *ratelimit.LimiterStore
}

func NewYahooFinanceRepository(cfg *config.Config, log *logger.Logger) YahooFinanceRepository {
	return newYahooFinanceRepository(cfg, log, httpclient.New(log, cfg.YahooFinance.BaseURL, cfg.YahooFinance.Timeout, ""))
}

func newYahooFinanceRepository(cfg *config.Config, log *logger.Logger, client httpclient.HTTPClient) *yahooFinanceRepository {
	perMinute := cfg.YahooFinance.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	return &yahooFinanceRepository{
		httpClient: client,
		cfg:        cfg,
		logger:     log,
		limiters:   ratelimit.NewPerMinuteStore(perMinute),
	}
}

// YahooSymbol maps a KRX code to its Yahoo ticker.
func YahooSymbol(market, code string) string {
	switch market {
	case common.MARKET_KOSPI:
		return code + ".KS"
	case common.MARKET_KOSDAQ:
		return code + ".KQ"
	default:
		return code
	}
}

func (r *yahooFinanceRepository) GetDailyPrices(ctx context.Context, param dto.GetStockDataParam) ([]dto.StockOHLCV, error) {
	if err := r.limiters.Wait(ctx, param.Market); err != nil {
		return nil, err
	}

	symbol := YahooSymbol(param.Market, param.StockCode)
	interval := param.Interval
	if interval == "" {
		interval = "1d"
	}

	// period2 is exclusive, extend it to cover the end date.
	queryParams := map[string]string{
		"period1":        fmt.Sprintf("%d", param.Start.Unix()),
		"period2":        fmt.Sprintf("%d", param.End.AddDate(0, 0, 1).Unix()),
		"interval":       interval,
		"includePrePost": "false",
		"events":         "div,split",
	}

	headers := map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://finance.yahoo.com/",
	}

	var yahooResp dto.YahooFinanceResponse
	resp, err := r.httpClient.Get(ctx, "/"+symbol, queryParams, headers, &yahooResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from yahoo finance: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.RetryAfter()
		r.logger.WarnContext(ctx, "Yahoo Finance API throttled request",
			logger.StringField("symbol", symbol),
			logger.DurationField("retry_after", retryAfter))
		return nil, fmt.Errorf("%w: %s (retry after %s)", ErrUpstreamThrottled, symbol, retryAfter)
	}

	if !resp.OK() {
		r.logger.WarnContext(ctx, "Yahoo Finance API returned Non-OK status",
			logger.StringField("symbol", symbol),
			logger.IntField("status_code", resp.StatusCode))
		return nil, fmt.Errorf("yahoo finance api returned status: %d", resp.StatusCode)
	}

	if yahooResp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo finance api error: %s %s", yahooResp.Chart.Error.Code, yahooResp.Chart.Error.Description)
	}

	if len(yahooResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned for symbol: %s", symbol)
	}

	result := yahooResp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data available for symbol: %s", symbol)
	}

	quote := result.Indicators.Quote[0]

	var ohlcv []dto.StockOHLCV
	for i, timestamp := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			continue
		}

		// Halted days come back as nulls.
		if quote.Open[i] == 0 || quote.High[i] == 0 || quote.Low[i] == 0 || quote.Close[i] == 0 {
			continue
		}

		ohlcv = append(ohlcv, dto.StockOHLCV{
			Timestamp: timestamp,
			Open:      quote.Open[i],
			High:      quote.High[i],
			Low:       quote.Low[i],
			Close:     quote.Close[i],
			Volume:    quote.Volume[i],
		})
	}

	return ohlcv, nil
}
