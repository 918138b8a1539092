package di

import (
	"fmt"
	"time"

	"KineJump/internal/domain/repository"
	"KineJump/internal/handler/api"
	internalrepo "KineJump/internal/repository"
	"KineJump/internal/usecase"
	"KineJump/pkg/cache"
	"KineJump/pkg/config"
	xhttp "KineJump/pkg/http"
	"KineJump/pkg/logger"
	"KineJump/pkg/metrics"
	"KineJump/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStore opens the SQLite attempt store. Schema setup happens in
// App.Run so startup errors surface through the normal path.
func ProvideStore(cfg *config.Config) (repository.AttemptStore, error) {
	store, err := internalrepo.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w", err)
	}
	return store, nil
}

// ProvideLiveHub creates the websocket fan-out hub.
func ProvideLiveHub(log *logger.Logger) *api.LiveHub {
	return api.NewLiveHub(log)
}

// ProvideEventSink exposes the hub as the engine's event sink.
func ProvideEventSink(hub *api.LiveHub) repository.EventSink {
	return hub
}

// ProvideCache creates the in-process report cache.
func ProvideCache() cache.Service {
	return cache.NewMemoryCache(
		cache.WithMaxSize(1024),
		cache.WithCleanupInterval(time.Minute),
	)
}

// ProvideSessionManager wires the live session registry.
func ProvideSessionManager(
	cfg *config.Config,
	log *logger.Logger,
	m repository.Metrics,
	store repository.AttemptStore,
	sink repository.EventSink,
) *usecase.SessionManager {
	return usecase.NewSessionManager(cfg, log, m, store, sink)
}

// ProvideHandler builds the HTTP API handler.
func ProvideHandler(
	log *logger.Logger,
	sessions *usecase.SessionManager,
	store repository.AttemptStore,
	c cache.Service,
	hub *api.LiveHub,
) xhttp.Handler {
	return api.NewJumpHandler(log, sessions, store, c, hub)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler xhttp.Handler,
	sessions *usecase.SessionManager,
	store repository.AttemptStore,
) *server.App {
	return server.New(cfg, log, handler, sessions, store)
}
