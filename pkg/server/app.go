package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "KineJump/internal/domain/repository"
	"KineJump/internal/usecase"
	"KineJump/pkg/config"
	xhttp "KineJump/pkg/http"
	applogger "KineJump/pkg/logger"
)

// App owns the process lifecycle: HTTP server up, block on signal, then
// drain sessions and close the store.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	sessions   *usecase.SessionManager
	store      domrepo.AttemptStore
	httpServer *xhttp.Server
}

// New builds the application from its wired dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	sessions *usecase.SessionManager,
	store domrepo.AttemptStore,
) *App {
	srv := xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(log),
	)
	return &App{
		cfg:        cfg,
		log:        log,
		sessions:   sessions,
		store:      store,
		httpServer: srv,
	}
}

// Run starts the HTTP server and blocks until an interrupt arrives.
func (a *App) Run() error {
	if err := a.store.Init(context.Background()); err != nil {
		return err
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start", applogger.Error(err))
		return err
	}
	a.log.Info("listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown", applogger.Error(err))
	}

	a.sessions.Close()

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
