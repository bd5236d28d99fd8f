package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quant-platform/internal/dto"
	"quant-platform/internal/model"
	"quant-platform/pkg/cache"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeCodes struct {
	codes []string
	calls atomic.Int32
}

func (f *fakeCodes) FindCodes(ctx context.Context, param model.GetStockParam, opts ...utils.DBOption) ([]string, error) {
	f.calls.Add(1)
	return f.codes, nil
}

type fakePrices struct {
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (f *fakePrices) GetDailyPrices(ctx context.Context, param dto.GetStockDataParam) ([]dto.StockOHLCV, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.seen = append(f.seen, param.StockCode)
	f.mu.Unlock()

	if f.fail[param.StockCode] {
		return nil, errors.New("no data")
	}
	return []dto.StockOHLCV{
		{Timestamp: 1714953600, Open: 100, High: 110, Low: 95, Close: 105, Volume: 1000},
		{Timestamp: 1715040000, Open: 105, High: 112, Low: 101, Close: 110, Volume: 1200},
	}, nil
}

func newPipeline(t *testing.T, codes CodeSource, prices PriceSource, workers int) *DataPipeline {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return NewDataPipeline(
		logger.FromZap(zaptest.NewLogger(t)),
		codes,
		prices,
		cache.NewCache(time.Minute, time.Minute),
		time.Minute,
		workers,
		loc,
	)
}

func TestDataPipeline_Fetch(t *testing.T) {
	codes := &fakeCodes{codes: []string{"A", "B", "C", "D", "E", "F"}}
	prices := &fakePrices{fail: map[string]bool{"B": true, "E": true}}
	p := newPipeline(t, codes, prices, 2)

	req := dto.CollectRequest{Market: "KOSPI", Start: time.Now().AddDate(0, 0, -7), End: time.Now()}
	res, err := p.Fetch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 6, res.TotalCodes)
	assert.Equal(t, 4, res.Success)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, []string{"B", "E"}, res.FailedCodes)
	assert.Len(t, res.Prices, 8)
	assert.LessOrEqual(t, prices.peak.Load(), int32(2))

	for _, pr := range res.Prices {
		assert.Equal(t, "KOSPI", pr.Market)
		assert.Equal(t, 0, pr.Date.Hour())
	}

	// The code universe is cached per market and sector.
	_, err = p.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), codes.calls.Load())
}

func TestDataPipeline_ExplicitCodes(t *testing.T) {
	codes := &fakeCodes{}
	prices := &fakePrices{}
	p := newPipeline(t, codes, prices, 4)

	res, err := p.Fetch(context.Background(), dto.CollectRequest{Market: "KOSDAQ", Codes: []string{"X", "Y", "X"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCodes)
	assert.Zero(t, codes.calls.Load())
}

func TestDataPipeline_NoCodes(t *testing.T) {
	p := newPipeline(t, &fakeCodes{}, &fakePrices{}, 4)

	_, err := p.Fetch(context.Background(), dto.CollectRequest{Market: "KOSPI"})
	assert.ErrorIs(t, err, ErrNoStockCodes)
}

func TestDataPipeline_Cancelled(t *testing.T) {
	p := newPipeline(t, &fakeCodes{codes: []string{"A", "B"}}, &fakePrices{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Fetch(ctx, dto.CollectRequest{Market: "KOSPI"})
	assert.ErrorIs(t, err, context.Canceled)
}
