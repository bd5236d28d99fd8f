package dto

import (
	"time"

	"quant-platform/internal/model"
)

type StockOHLCV struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}

type GetStockDataParam struct {
	Market    string
	StockCode string
	Start     time.Time
	End       time.Time
	Interval  string
}

// Yahoo Finance API Response
type YahooFinanceResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				ExchangeTimezone   string  `json:"exchangeTimezoneName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// CollectRequest describes one price collection over a date window.
type CollectRequest struct {
	Market string
	Sector string
	Codes  []string
	Start  time.Time
	End    time.Time
}

type CollectResult struct {
	Market      string
	TotalCodes  int
	Success     int
	Failed      int
	FailedCodes []string
	Prices      []model.StockPrice
	Elapsed     time.Duration
}
