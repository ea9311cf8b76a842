//go:build wireinject
// +build wireinject

package di

import (
	"EdgePulse/pkg/config"
	"EdgePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideBytesCache,

		// Repositories
		ProvideDecisionStore,
		ProvideDecisionPublisher,
		ProvideModelStore,
		ProvideMarketStream,
		ProvideRestBackfill,

		// Use cases
		ProvideTradeBuffer,
		ProvideModelFactory,
		ProvideKafkaTradesHandler,
		ProvideTradeCollector,
		ProvideOrchestrator,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
