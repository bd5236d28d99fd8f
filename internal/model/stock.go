package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockInfo struct {
	ID        uint      `gorm:"primaryKey"`
	Market    string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_stock_info_market_code"`
	Code      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_stock_info_market_code"`
	Name      string    `gorm:"type:varchar(100);not null"`
	Sector    string    `gorm:"type:varchar(50);index"`
	Industry  string    `gorm:"type:varchar(100)"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (StockInfo) TableName() string {
	return "stock_info"
}

type StockPrice struct {
	ID        uint            `gorm:"primaryKey"`
	Market    string          `gorm:"type:varchar(10);not null;uniqueIndex:idx_stock_price_market_code_date"`
	Code      string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_stock_price_market_code_date"`
	Date      time.Time       `gorm:"type:date;not null;uniqueIndex:idx_stock_price_market_code_date"`
	Open      decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	High      decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Low       decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Close     decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Volume    int64           `gorm:"not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (StockPrice) TableName() string {
	return "stock_price"
}

type GetStockParam struct {
	Market string
	Sector string
	Codes  []string
}
