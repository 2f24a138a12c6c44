package repository

import (
	"context"

	"ReviewCast/internal/domain/models"
)

// ThresholdStore persists per-product thresholds. Implementations must make
// GetOrSetDefault atomic per key: concurrent callers observe one winner.
type ThresholdStore interface {
	// Get returns the stored threshold and whether one exists.
	Get(ctx context.Context, productID string) (float64, bool, error)
	// GetOrSetDefault returns the stored value, storing def first when absent.
	GetOrSetDefault(ctx context.Context, productID string, def float64) (float64, error)
	// Set overrides unconditionally.
	Set(ctx context.Context, productID string, value float64) error
}

// SeriesStore keeps regularized series and the latest forecast per product.
type SeriesStore interface {
	SaveSeries(ctx context.Context, s models.DailySeries) error
	LatestSeries(ctx context.Context, productID string) (models.DailySeries, error)
	SaveForecast(ctx context.Context, f models.ReconstructedForecast) error
	LatestForecast(ctx context.Context, productID string) (models.ReconstructedForecast, error)
	ListProducts(ctx context.Context) ([]string, error)
}

// AlertPublisher fans alert and risk events out to downstream consumers.
type AlertPublisher interface {
	Publish(ctx context.Context, ev models.AlertEvent) error
	Close() error
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordForecast(problem, result string)
	RecordDegraded(reason string)
	RecordAlerts(severity string, n int)
	RecordRiskScore(productID string, score float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
