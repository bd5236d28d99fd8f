package model

// All lists every table for auto-migration in dependency order.
func All() []interface{} {
	return []interface{}{
		&ScheduleJob{},
		&MLTrainConfig{},
		&ScheduleLog{},
		&StockInfo{},
		&StockPrice{},
	}
}
