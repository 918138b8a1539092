//go:build wireinject
// +build wireinject

package di

import (
	"KineJump/pkg/config"
	"KineJump/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideStore,
		ProvideCache,

		ProvideLiveHub,
		ProvideEventSink,

		ProvideSessionManager,
		ProvideHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
