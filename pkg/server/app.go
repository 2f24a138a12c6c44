package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ReviewCast/pkg/config"
	xhttp "ReviewCast/pkg/http"
	applogger "ReviewCast/pkg/logger"
)

// Scheduler is a background job runner started and stopped with the app.
type Scheduler interface {
	Start()
	Stop(ctx context.Context)
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	httpHandler xhttp.Handler
	scheduler   Scheduler
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies. sched may be nil.
func New(cfg *config.Config, l *applogger.Logger, h xhttp.Handler, sched Scheduler) *App {
	if l == nil {
		l = applogger.NewNop()
	}
	return &App{cfg: cfg, l: l, httpHandler: h, scheduler: sched}
}

// Server builds the HTTP server on first use.
func (a *App) Server() *xhttp.Server {
	if a.httpServer == nil {
		a.httpServer = xhttp.NewServer(a.httpHandler,
			xhttp.WithHost(a.cfg.Server.Host),
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
			xhttp.WithCORS(a.cfg.Server.CORS),
			xhttp.WithBodyLimit(a.cfg.Server.BodyLimitMB<<20),
			xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
			xhttp.WithLogger(a.l, a.cfg.Server.SlowRequest),
		)
	}
	return a.httpServer
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	srv := a.Server()
	if err := srv.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	a.l.Info("reviewcast started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("forecaster", a.cfg.Forecaster.Mode),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services. Infrastructure clients are closed
// by the injector cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Stop(ctx)
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}

	a.l.Info("shutdown complete")
	return nil
}
