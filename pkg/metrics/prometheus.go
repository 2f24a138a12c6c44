package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts *prometheus.CounterVec
	degraded  *prometheus.CounterVec
	alerts    *prometheus.CounterVec
	riskScore *prometheus.GaugeVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

var (
	defaultOnce sync.Once
	defaultRec  *Recorder
)

// Default returns the process-wide recorder registered on the default registry.
func Default() *Recorder {
	defaultOnce.Do(func() { defaultRec = New(prometheus.DefaultRegisterer) })
	return defaultRec
}

// New creates a recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewcast_forecasts_total",
				Help: "Forecast invocations by problem and result",
			},
			[]string{"problem", "result"},
		),
		degraded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewcast_forecasts_degraded_total",
				Help: "Forecasts returned in degraded mode",
			},
			[]string{"reason"},
		),
		alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewcast_alerts_total",
				Help: "Threshold alerts raised by severity",
			},
			[]string{"severity"},
		),
		riskScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reviewcast_risk_score",
				Help: "Last computed risk score per product",
			},
			[]string{"product_id"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviewcast_errors_total",
				Help: "Pipeline errors by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reviewcast_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 180, 600},
			},
			[]string{"operation"},
		),
	}
}

// RecordForecast counts one forecast outcome.
func (r *Recorder) RecordForecast(problem, result string) {
	r.forecasts.WithLabelValues(problem, result).Inc()
}

// RecordDegraded counts a degraded reconstruction.
func (r *Recorder) RecordDegraded(reason string) {
	r.degraded.WithLabelValues(reason).Inc()
}

// RecordAlerts adds n alerts of one severity.
func (r *Recorder) RecordAlerts(severity string, n int) {
	if n <= 0 {
		return
	}
	r.alerts.WithLabelValues(severity).Add(float64(n))
}

// RecordRiskScore stores the latest risk score of a product.
func (r *Recorder) RecordRiskScore(productID string, score float64) {
	r.riskScore.WithLabelValues(productID).Set(score)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordForecast(string, string) {}
func (Nop) RecordDegraded(string) {}
func (Nop) RecordAlerts(string, int) {}
func (Nop) RecordRiskScore(string, float64) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
