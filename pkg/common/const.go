package common

const (
	KEY_STOCK_CODES = "stock_codes:%s:%s"
)

const (
	MARKET_KOSPI  = "KOSPI"
	MARKET_KOSDAQ = "KOSDAQ"
)

func GetMarketList() []string {
	return []string{
		MARKET_KOSPI,
		MARKET_KOSDAQ,
	}
}

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
	KEY_LOG_RUN_ID          = "run_id"
)
