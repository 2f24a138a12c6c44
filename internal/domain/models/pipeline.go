package models

// Pipeline output statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PredictionPoint is one output row of the pipeline JSON.
type PredictionPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// HistoryInfo describes the series a forecast was built from.
type HistoryInfo struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// PipelineMetadata accompanies every forecast output.
type PipelineMetadata struct {
	TransformUsed     Transform    `json:"transform_used"`
	DegradedMode      bool         `json:"degraded_mode"`
	DegradedReason    string       `json:"degraded_reason,omitempty"`
	Problem           Problem      `json:"problem,omitempty"`
	InvocationID      string       `json:"invocation_id,omitempty"`
	History           *HistoryInfo `json:"history,omitempty"`
	DataRange         *DateRange   `json:"data_range,omitempty"`
	ProductStatistics *Statistics  `json:"product_statistics,omitempty"`
}

// PipelineOutput is the JSON contract of a single-product forecast.
type PipelineOutput struct {
	Status          string            `json:"status"`
	ProductID       string            `json:"product_id"`
	TargetField     string            `json:"target_field,omitempty"`
	ForecastHorizon int               `json:"forecast_horizon,omitempty"`
	Predictions     []PredictionPoint `json:"predictions,omitempty"`
	Metadata        *PipelineMetadata `json:"metadata,omitempty"`
	Message         string            `json:"message,omitempty"`
	Code            string            `json:"code,omitempty"`
	Details         string            `json:"details,omitempty"`
}

// BatchSummary counts per-product outcomes.
type BatchSummary struct {
	TotalProducts         int    `json:"total_products"`
	SuccessfulPredictions int    `json:"successful_predictions"`
	FailedPredictions     int    `json:"failed_predictions"`
	OriginalFile          string `json:"original_file,omitempty"`
}

// BatchOutput reports a multi-product run with partial success.
type BatchOutput struct {
	Status  string           `json:"status"`
	Problem Problem          `json:"problem_type"`
	Results []PipelineOutput `json:"results"`
	Summary BatchSummary     `json:"summary"`
}

// NewPipelineOutput renders a reconstructed forecast.
func NewPipelineOutput(f ReconstructedForecast, horizon int, history DailySeries) PipelineOutput {
	preds := make([]PredictionPoint, len(f.Points))
	for i, p := range f.Points {
		preds[i] = PredictionPoint{Date: p.Date.Format(DateLayout), Value: p.Value}
	}
	meta := &PipelineMetadata{
		TransformUsed:  f.TransformUsed,
		DegradedMode:   f.Degraded,
		DegradedReason: f.DegradedReason,
		Problem:        f.Problem,
		InvocationID:   f.InvocationID,
	}
	if history.Len() > 0 {
		meta.History = &HistoryInfo{
			Start: history.FirstDate().Format(DateLayout),
			End:   history.LastDate().Format(DateLayout),
			Days:  history.Len(),
		}
		dr := history.Range()
		meta.DataRange = &dr
		if col, ok := history.Column(f.TargetField); ok {
			st := Describe(col)
			meta.ProductStatistics = &st
		}
	}
	return PipelineOutput{
		Status:          StatusSuccess,
		ProductID:       f.ProductID,
		TargetField:     f.TargetField,
		ForecastHorizon: horizon,
		Predictions:     preds,
		Metadata:        meta,
	}
}

// NewErrorOutput renders a failed forecast for one product.
func NewErrorOutput(productID, code, message, details string) PipelineOutput {
	return PipelineOutput{
		Status:    StatusError,
		ProductID: productID,
		Message:   message,
		Code:      code,
		Details:   details,
	}
}
