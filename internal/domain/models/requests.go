package models

// PreprocessRequest turns an uploaded log into per-product series.
type PreprocessRequest struct {
	FilePath string `json:"file_path" validate:"required"`
	ProdID   string `json:"prod_id"`
}

// ForecastHTTPRequest forecasts one product, from a file or from stored history.
type ForecastHTTPRequest struct {
	FilePath    string `json:"file_path"`
	ProductID   string `json:"product_id" validate:"required"`
	HorizonDays int    `json:"horizon_days" default:"7" validate:"gte=1,lte=365"`
	Problem     string `json:"problem" default:"fake_review" validate:"oneof=fake_review sales_forecast"`
}

// BatchForecastRequest forecasts every product of an uploaded log.
type BatchForecastRequest struct {
	FilePath    string `json:"file_path" validate:"required"`
	ProdID      string `json:"prod_id"`
	HorizonDays int    `json:"horizon_days" default:"7" validate:"gte=1,lte=365"`
	Problem     string `json:"problem" default:"fake_review" validate:"oneof=fake_review sales_forecast"`
}

// ProductQuery selects one product by query string.
type ProductQuery struct {
	ProductID string `query:"product_id" json:"product_id" validate:"required"`
}

// SetThresholdRequest overrides a product threshold.
type SetThresholdRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Threshold float64 `json:"threshold" validate:"gt=0"`
}

// SeriesWindowQuery selects a stored product series and an optional date window.
type SeriesWindowQuery struct {
	ProductID string `query:"product_id" json:"product_id" validate:"required"`
	Start     string `query:"start" json:"start"`
	End       string `query:"end" json:"end"`
	Target    string `query:"target" json:"target" default:"fake" validate:"oneof=fake total"`
}
