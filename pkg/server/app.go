package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SigRelay/internal/domain/repository"
	mid "SigRelay/internal/middleware"
	"SigRelay/internal/usecase"
	pkgch "SigRelay/pkg/clickhouse"
	"SigRelay/pkg/config"
	xhttp "SigRelay/pkg/http"
	pkgkafka "SigRelay/pkg/kafka"
	applogger "SigRelay/pkg/logger"
	"SigRelay/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	l         *applogger.Logger
	handler   xhttp.Handler
	auth      *usecase.AuthSession
	registry  *usecase.AccountRegistry
	pipe      *mid.MessagePipeline
	pool      *queue.Pool
	listener  *usecase.ChannelListener
	refresher *usecase.BalanceRefresher
	relay     *usecase.SignalRelay
	store     repository.AccountStore
	chClient  *pkgch.Client
	producer  *pkgkafka.Producer

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	auth *usecase.AuthSession,
	registry *usecase.AccountRegistry,
	pipe *mid.MessagePipeline,
	pool *queue.Pool,
	listener *usecase.ChannelListener,
	refresher *usecase.BalanceRefresher,
	relay *usecase.SignalRelay,
	store repository.AccountStore,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		handler:   handler,
		auth:      auth,
		registry:  registry,
		pipe:      pipe,
		pool:      pool,
		listener:  listener,
		refresher: refresher,
		relay:     relay,
		store:     store,
		chClient:  chClient,
		producer:  producer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// replay persisted accounts before anything can touch the registry
	if err := a.registry.Load(ctx); err != nil {
		a.l.Error("registry load failed", applogger.Error(err))
		return err
	}

	if err := a.auth.Resume(ctx); err != nil {
		a.l.Warn("session resume failed", applogger.Error(err))
	}

	// aggregated error logs ride the Kafka leg when it is enabled
	if a.producer != nil && a.cfg.Kafka.OpsTopic != "" {
		a.l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.OpsTopic,
			Publisher:      a.producer,
		})
		a.l.Info("log collector attached", applogger.String("topic", a.cfg.Kafka.OpsTopic))
	}

	a.pipe.Start(ctx)
	a.pool.Start()

	if a.cfg.Balance.RefreshInterval > 0 {
		a.refresher.Start()
		a.l.Info("balance refresher started",
			applogger.Duration("interval_ms", a.cfg.Balance.RefreshInterval))
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("server ready", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services, sources first so sinks drain.
func (a *App) shutdown(ctx context.Context) error {
	a.listener.Stop()
	a.refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	a.pool.Stop()
	a.pipe.Stop()

	// final collector flush happens before the producer goes away
	a.l.RemoveCollector()
	a.relay.Close()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.l.Warn("account store close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
