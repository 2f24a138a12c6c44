package models

import "time"

// Threshold is the per-product alerting level.
type Threshold struct {
	ProductID string    `json:"product_id"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Severity of a threshold breach.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is one forecast point above the threshold.
type Alert struct {
	Timestamp      time.Time `json:"timestamp"`
	PredictedValue float64   `json:"predicted_value"`
	Threshold      float64   `json:"threshold"`
	Severity       Severity  `json:"severity"`
}

// AlertResult is the outcome of a threshold check for one product.
type AlertResult struct {
	ProductID  string  `json:"product_id"`
	Threshold  float64 `json:"threshold"`
	AlertCount int     `json:"alert_count"`
	Alerts     []Alert `json:"alerts"`
}

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskFactors are the inputs of a risk score.
type RiskFactors struct {
	HistoricalAnomalyRatio float64 `json:"historical_anomaly_ratio"`
	PredictedAnomalyRatio  float64 `json:"predicted_anomaly_ratio"`
	TrendSlope             float64 `json:"trend_slope"`
}

// RiskAssessment is a composite 0-100 score for one product.
type RiskAssessment struct {
	ProductID string      `json:"product_id"`
	RiskScore float64     `json:"risk_score"`
	RiskLevel RiskLevel   `json:"risk_level"`
	Factors   RiskFactors `json:"factors"`
	Threshold float64     `json:"threshold"`
}

// Event types published to the alert stream.
const (
	EventThresholdAlerts = "threshold_alerts"
	EventRiskAssessment  = "risk_assessment"
)

// AlertEvent is the envelope published for downstream consumers.
type AlertEvent struct {
	Type      string      `json:"type"`
	ProductID string      `json:"product_id"`
	At        time.Time   `json:"at"`
	Payload   interface{} `json:"payload"`
}
