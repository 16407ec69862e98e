//go:build wireinject
// +build wireinject

package di

import (
	"SigRelay/pkg/config"
	"SigRelay/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideAccountStore,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideSignalPublisher,
		ProvideSignalArchive,
		ProvideAuthProvider,
		ProvideMessageStream,
		ProvideBalanceProvider,

		// Use cases
		ProvideAuthSession,
		ProvideAccountRegistry,
		ProvideWorkerPool,
		ProvideBalanceFetcher,
		ProvideBalanceRefresher,
		ProvideSignalRelay,
		ProvideMessagePipeline,
		ProvideChannelListener,
		ProvideStatusAggregator,

		// HTTP surface
		ProvideRouter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
