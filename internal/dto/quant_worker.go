package dto

type ComputeFeaturesRequest struct {
	Market     string `json:"market"`
	TargetDays []int  `json:"target_days"`
}

type ComputeFeaturesResponse struct {
	Market   string `json:"market"`
	Computed int    `json:"computed"`
	Message  string `json:"message"`
}

type TrainModelRequest struct {
	Market       string `json:"market"`
	Target       string `json:"target"`
	Algorithm    string `json:"algorithm"`
	OptunaTrials int    `json:"optuna_trials"`
}

type TrainModelResponse struct {
	ModelID string             `json:"model_id"`
	Metrics map[string]float64 `json:"metrics"`
}

type FundamentalCollectRequest struct {
	Market string `json:"market"`
}

type FundamentalCollectResponse struct {
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	Saved   int    `json:"saved"`
	Skipped int    `json:"skipped"`
	Message string `json:"message"`
}

type QuantWorkerError struct {
	Detail string `json:"detail"`
}
