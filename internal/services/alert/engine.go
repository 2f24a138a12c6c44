package alert

import (
	"context"
	"fmt"
	"math"

	"ReviewCast/internal/domain/errs"
	"ReviewCast/internal/domain/models"
	domrepo "ReviewCast/internal/domain/repository"
)

// DefaultMultiplier scales the historical mean into the default threshold.
const DefaultMultiplier = 1.5

// Severity cut-offs on value/threshold.
const (
	mediumRatio = 1.2
	highRatio   = 1.5
)

// Risk score weights and caps.
const (
	historicalWeight = 200
	historicalCap    = 30
	predictedWeight  = 200
	predictedCap     = 40
	trendCap         = 30
	trendScale       = 0.1
)

// Engine derives threshold alerts and risk scores from forecasts.
type Engine struct {
	store      domrepo.ThresholdStore
	multiplier float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithMultiplier overrides the default-threshold multiplier.
func WithMultiplier(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.multiplier = m
		}
	}
}

// NewEngine builds an Engine over a threshold store.
func NewEngine(store domrepo.ThresholdStore, opts ...Option) *Engine {
	e := &Engine{store: store, multiplier: DefaultMultiplier}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ThresholdAlerts flags every forecast point above the product's threshold.
// An explicit threshold is used as-is and not persisted; otherwise the stored
// threshold is used, defaulting atomically to multiplier x historical mean.
func (e *Engine) ThresholdAlerts(ctx context.Context, productID string, forecast []models.ForecastPoint, explicit *float64, historical []float64) (models.AlertResult, error) {
	var thr float64
	if explicit != nil {
		thr = *explicit
	} else {
		v, ok, err := e.resolveThreshold(ctx, productID, historical)
		if err != nil {
			return models.AlertResult{}, err
		}
		if !ok {
			return models.AlertResult{}, errs.NoThreshold(productID)
		}
		thr = v
	}

	res := models.AlertResult{ProductID: productID, Threshold: thr, Alerts: []models.Alert{}}
	for _, p := range forecast {
		if p.Value > thr {
			res.Alerts = append(res.Alerts, models.Alert{
				Timestamp:      p.Date,
				PredictedValue: p.Value,
				Threshold:      thr,
				Severity:       Severity(p.Value, thr),
			})
		}
	}
	res.AlertCount = len(res.Alerts)
	return res, nil
}

// RiskAssessment scores a product from its historical and predicted anomaly
// ratios plus the forecast trend. With no stored threshold and no history the
// threshold is 0 and nothing is persisted.
func (e *Engine) RiskAssessment(ctx context.Context, productID string, forecast []float64, historical []float64) (models.RiskAssessment, error) {
	thr, _, err := e.resolveThreshold(ctx, productID, historical)
	if err != nil {
		return models.RiskAssessment{}, err
	}

	f := models.RiskFactors{
		HistoricalAnomalyRatio: ratioAbove(historical, thr),
		PredictedAnomalyRatio:  ratioAbove(forecast, thr),
		TrendSlope:             Slope(forecast),
	}
	score := Score(f, thr)
	return models.RiskAssessment{
		ProductID: productID,
		RiskScore: score,
		RiskLevel: Level(score),
		Factors:   f,
		Threshold: thr,
	}, nil
}

// SetThreshold overrides the stored threshold for a product.
func (e *Engine) SetThreshold(ctx context.Context, productID string, value float64) error {
	if productID == "" {
		return errs.Invalid("product id is required")
	}
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return errs.Invalid("threshold must be a positive number, got %v", value)
	}
	if err := e.store.Set(ctx, productID, value); err != nil {
		return errs.Internal("store threshold", err)
	}
	return nil
}

// GetThreshold returns the stored threshold, if any.
func (e *Engine) GetThreshold(ctx context.Context, productID string) (float64, bool, error) {
	v, ok, err := e.store.Get(ctx, productID)
	if err != nil {
		return 0, false, errs.Internal("load threshold", err)
	}
	return v, ok, nil
}

// resolveThreshold returns the stored threshold, storing the derived default
// when absent. ok is false when nothing is stored and history is empty.
func (e *Engine) resolveThreshold(ctx context.Context, productID string, historical []float64) (float64, bool, error) {
	if len(historical) == 0 {
		v, ok, err := e.store.Get(ctx, productID)
		if err != nil {
			return 0, false, errs.Internal("load threshold", err)
		}
		return v, ok, nil
	}
	def := e.multiplier * mean(historical)
	v, err := e.store.GetOrSetDefault(ctx, productID, def)
	if err != nil {
		return 0, false, errs.Internal(fmt.Sprintf("resolve threshold for %s", productID), err)
	}
	return v, true, nil
}

// Severity buckets how far a value exceeds the threshold.
func Severity(value, threshold float64) models.Severity {
	if threshold <= 0 {
		return models.SeverityHigh
	}
	r := value / threshold
	switch {
	case r < mediumRatio:
		return models.SeverityLow
	case r < highRatio:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}

// Score combines risk factors into a 0-100 score rounded to one decimal.
func Score(f models.RiskFactors, threshold float64) float64 {
	hist := math.Min(f.HistoricalAnomalyRatio*historicalWeight, historicalCap)
	pred := math.Min(f.PredictedAnomalyRatio*predictedWeight, predictedCap)
	trend := 0.0
	if f.TrendSlope > 0 {
		if threshold > 0 {
			trend = math.Min(f.TrendSlope/(trendScale*threshold), 1) * trendCap
		} else {
			trend = trendCap
		}
	}
	return math.Round((hist+pred+trend)*10) / 10
}

// Level buckets a risk score.
func Level(score float64) models.RiskLevel {
	switch {
	case score < 20:
		return models.RiskSafe
	case score < 40:
		return models.RiskLow
	case score < 60:
		return models.RiskMedium
	case score < 80:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

// Slope is (last - first) / len, 0 for fewer than two values.
func Slope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return (values[len(values)-1] - values[0]) / float64(len(values))
}

func ratioAbove(values []float64, thr float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, v := range values {
		if v > thr {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
