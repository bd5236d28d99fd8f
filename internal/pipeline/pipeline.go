package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"quant-platform/internal/dto"
	"quant-platform/internal/model"
	"quant-platform/pkg/cache"
	"quant-platform/pkg/common"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var ErrNoStockCodes = errors.New("no stock codes to collect")

type CodeSource interface {
	FindCodes(ctx context.Context, param model.GetStockParam, opts ...utils.DBOption) ([]string, error)
}

type PriceSource interface {
	GetDailyPrices(ctx context.Context, param dto.GetStockDataParam) ([]dto.StockOHLCV, error)
}

// DataPipeline fetches daily bars for a market's code universe with a
// bounded number of concurrent requests.
type DataPipeline struct {
	log        *logger.Logger
	codes      CodeSource
	prices     PriceSource
	cache      cache.Cache
	cacheTTL   time.Duration
	maxWorkers int
	loc        *time.Location
}

func NewDataPipeline(log *logger.Logger, codes CodeSource, prices PriceSource, c cache.Cache, cacheTTL time.Duration, maxWorkers int, loc *time.Location) *DataPipeline {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DataPipeline{
		log:        log,
		codes:      codes,
		prices:     prices,
		cache:      c,
		cacheTTL:   cacheTTL,
		maxWorkers: maxWorkers,
		loc:        loc,
	}
}

func (p *DataPipeline) resolveCodes(ctx context.Context, req dto.CollectRequest) ([]string, error) {
	if len(req.Codes) > 0 {
		return utils.Dedupe(req.Codes), nil
	}

	key := fmt.Sprintf(common.KEY_STOCK_CODES, req.Market, req.Sector)
	if codes, ok := cache.GetFromCache[[]string](p.cache, key); ok {
		return codes, nil
	}

	codes, err := p.codes.FindCodes(ctx, model.GetStockParam{Market: req.Market, Sector: req.Sector})
	if err != nil {
		return nil, fmt.Errorf("failed to load stock codes: %w", err)
	}
	if len(codes) > 0 {
		p.cache.Set(key, codes, p.cacheTTL)
	}
	return codes, nil
}

// Fetch collects every code of the request. A code that fails is counted and
// listed, it never stops the others. Only setup errors are returned.
func (p *DataPipeline) Fetch(ctx context.Context, req dto.CollectRequest) (*dto.CollectResult, error) {
	started := time.Now()

	codes, err := p.resolveCodes(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: market=%s sector=%s", ErrNoStockCodes, req.Market, req.Sector)
	}

	p.log.InfoContext(ctx, "Start collecting prices",
		logger.StringField("market", req.Market),
		logger.StringField("sector", req.Sector),
		logger.IntField("codes", len(codes)),
		logger.StringField("start", utils.FormatDate(req.Start)),
		logger.StringField("end", utils.FormatDate(req.End)),
		logger.IntField("max_workers", p.maxWorkers),
	)

	var (
		mu     sync.Mutex
		result = &dto.CollectResult{Market: req.Market, TotalCodes: len(codes)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)

	for _, code := range codes {
		if !utils.ShouldContinue(gctx, p.log) {
			break
		}
		code := code
		g.Go(func() error {
			bars, err := p.prices.GetDailyPrices(gctx, dto.GetStockDataParam{
				Market:    req.Market,
				StockCode: code,
				Start:     req.Start,
				End:       req.End,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.log.WarnContext(ctx, "Failed to fetch prices",
					logger.StringField("code", code),
					logger.ErrorField(err),
				)
				result.Failed++
				result.FailedCodes = append(result.FailedCodes, code)
				return nil
			}
			result.Success++
			result.Prices = append(result.Prices, p.toStockPrices(req.Market, code, bars)...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Strings(result.FailedCodes)
	result.Elapsed = time.Since(started)

	p.log.InfoContext(ctx, "Price collection finished",
		logger.StringField("market", req.Market),
		logger.IntField("total", result.TotalCodes),
		logger.IntField("success", result.Success),
		logger.IntField("failed", result.Failed),
		logger.IntField("rows", len(result.Prices)),
		logger.DurationField("elapsed", result.Elapsed),
	)
	return result, nil
}

func (p *DataPipeline) toStockPrices(market, code string, bars []dto.StockOHLCV) []model.StockPrice {
	prices := make([]model.StockPrice, 0, len(bars))
	for _, b := range bars {
		prices = append(prices, model.StockPrice{
			Market: market,
			Code:   code,
			Date:   utils.StartOfDay(time.Unix(b.Timestamp, 0).In(p.loc)),
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: b.Volume,
		})
	}
	return prices
}
