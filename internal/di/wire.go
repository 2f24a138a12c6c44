//go:build wireinject
// +build wireinject

package di

import (
	"ReviewCast/pkg/config"
	"ReviewCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideThresholdStore,
		ProvideSeriesStore,
		ProvideAlertPublisher,

		// Services
		ProvideForecaster,
		ProvideReconstructor,
		ProvideAlertEngine,

		// Use cases
		ProvidePipeline,

		// Delivery
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
