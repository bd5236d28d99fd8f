package repository

import (
	"context"

	"quant-platform/internal/model"
	"quant-platform/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository interface {
	FindCodes(ctx context.Context, param model.GetStockParam, opts ...utils.DBOption) ([]string, error)
	UpsertStocks(ctx context.Context, stocks []model.StockInfo, opts ...utils.DBOption) error
	UpsertPrices(ctx context.Context, prices []model.StockPrice, opts ...utils.DBOption) (int64, error)
	CountPrices(ctx context.Context, market string, opts ...utils.DBOption) (int64, error)
}

type stockRepository struct {
	db        *gorm.DB
	batchSize int
}

func NewStockRepository(db *gorm.DB, batchSize int) StockRepository {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &stockRepository{db: db, batchSize: batchSize}
}

// FindCodes returns the active codes of a market, optionally narrowed to one
// sector or to an explicit list.
func (r *stockRepository) FindCodes(ctx context.Context, param model.GetStockParam, opts ...utils.DBOption) ([]string, error) {
	var codes []string
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.StockInfo{}).
		Where("market = ? AND active = ?", param.Market, true)
	if param.Sector != "" {
		db = db.Where("sector = ?", param.Sector)
	}
	if len(param.Codes) > 0 {
		db = db.Where("code IN ?", param.Codes)
	}
	if err := db.Order("code ASC").Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *stockRepository) UpsertStocks(ctx context.Context, stocks []model.StockInfo, opts ...utils.DBOption) error {
	if len(stocks) == 0 {
		return nil
	}
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "market"}, {Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "sector", "industry", "active", "updated_at"}),
		}).
		CreateInBatches(stocks, r.batchSize).Error
}

// UpsertPrices inserts daily bars, overwriting an existing bar of the same
// market, code and date. It returns the number of rows written.
func (r *stockRepository) UpsertPrices(ctx context.Context, prices []model.StockPrice, opts ...utils.DBOption) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "market"}, {Name: "code"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).
		CreateInBatches(prices, r.batchSize)
	return result.RowsAffected, result.Error
}

func (r *stockRepository) CountPrices(ctx context.Context, market string, opts ...utils.DBOption) (int64, error) {
	var count int64
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Model(&model.StockPrice{}).
		Where("market = ?", market).
		Count(&count).Error
	return count, err
}
