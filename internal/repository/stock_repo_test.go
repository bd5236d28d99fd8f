package repository

import (
	"context"
	"testing"
	"time"

	"quant-platform/internal/model"
	"quant-platform/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockRepository_FindCodes(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewStockRepository(db, 2)
	ctx := context.Background()

	require.NoError(t, repo.UpsertStocks(ctx, []model.StockInfo{
		{Market: "KOSPI", Code: "005930", Name: "Samsung Electronics", Sector: "semiconductor", Active: true},
		{Market: "KOSPI", Code: "000660", Name: "SK hynix", Sector: "semiconductor", Active: true},
		{Market: "KOSPI", Code: "005380", Name: "Hyundai Motor", Sector: "auto", Active: true},
		{Market: "KOSPI", Code: "000000", Name: "Delisted", Sector: "auto", Active: false},
		{Market: "KOSDAQ", Code: "035720", Name: "Kakao", Sector: "internet", Active: true},
	}))

	codes, err := repo.FindCodes(ctx, model.GetStockParam{Market: "KOSPI"})
	require.NoError(t, err)
	assert.Equal(t, []string{"000660", "005380", "005930"}, codes)

	codes, err = repo.FindCodes(ctx, model.GetStockParam{Market: "KOSPI", Sector: "semiconductor"})
	require.NoError(t, err)
	assert.Equal(t, []string{"000660", "005930"}, codes)

	codes, err = repo.FindCodes(ctx, model.GetStockParam{Market: "KOSPI", Codes: []string{"005930", "035720"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"005930"}, codes)
}

func TestStockRepository_UpsertPrices(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewStockRepository(db, 2)
	ctx := context.Background()

	day := time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)
	bar := func(code string, d time.Time, close int64) model.StockPrice {
		return model.StockPrice{
			Market: "KOSPI",
			Code:   code,
			Date:   d,
			Open:   decimal.NewFromInt(close - 100),
			High:   decimal.NewFromInt(close + 200),
			Low:    decimal.NewFromInt(close - 300),
			Close:  decimal.NewFromInt(close),
			Volume: 1000,
		}
	}

	n, err := repo.UpsertPrices(ctx, []model.StockPrice{
		bar("005930", day, 71000),
		bar("005930", day.AddDate(0, 0, 1), 71500),
		bar("000660", day, 180000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Same key again overwrites instead of duplicating.
	_, err = repo.UpsertPrices(ctx, []model.StockPrice{bar("005930", day, 72000)})
	require.NoError(t, err)

	count, err := repo.CountPrices(ctx, "KOSPI")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	var stored model.StockPrice
	require.NoError(t, db.Where("code = ? AND date = ?", "005930", day).First(&stored).Error)
	assert.True(t, decimal.NewFromInt(72000).Equal(stored.Close))

	n, err = repo.UpsertPrices(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
