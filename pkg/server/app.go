package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "EdgePulse/internal/domain/repository"
	"EdgePulse/internal/service/exchange"
	"EdgePulse/internal/usecase"
	pkgch "EdgePulse/pkg/clickhouse"
	"EdgePulse/pkg/config"
	xhttp "EdgePulse/pkg/http"
	pkgkafka "EdgePulse/pkg/kafka"
	applogger "EdgePulse/pkg/logger"
)

// App encapsulates the entire application lifecycle: ingestion, the cycle
// scheduler, the HTTP API and graceful shutdown.
type App struct {
	cfg    *config.Config
	logger *applogger.Logger

	collector *usecase.TradeCollector
	consumer  *pkgkafka.Consumer
	kh        pkgkafka.MessageHandler
	backfill  *exchange.RestBackfill
	sink      domrepo.TradeSink

	orch     *usecase.CycleOrchestrator
	decStore domrepo.DecisionStore
	pub      domrepo.DecisionPublisher
	chClient *pkgch.Client

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies. Collector, consumer,
// backfill, decision store and publisher are optional.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.TradeCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	backfill *exchange.RestBackfill,
	sink domrepo.TradeSink,
	orch *usecase.CycleOrchestrator,
	decStore domrepo.DecisionStore,
	pub domrepo.DecisionPublisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		backfill:  backfill,
		sink:      sink,
		orch:      orch,
		decStore:  decStore,
		pub:       pub,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	if a.decStore != nil {
		if err := a.decStore.Init(ctx); err != nil {
			l.Error("decision store init error", applogger.Error(err))
			return err
		}
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithServerLogger(l),
	)

	// Seed the buffer from REST history so the first cycles have bars to
	// work with instead of waiting out a full window of live trades.
	if a.backfill != nil && a.sink != nil {
		n, err := a.backfill.Warm(ctx, a.cfg.Exchange.Symbol, a.cfg.Ingest.BackfillLimit, a.sink)
		if err != nil {
			l.Warn("history backfill error", applogger.Error(err))
		} else {
			l.Info("history backfill complete",
				applogger.String("symbol", a.cfg.Exchange.Symbol), applogger.Int("trades", n))
		}
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector start error", applogger.Error(err))
			return err
		}
		l.Info("collector started", applogger.String("symbol", a.cfg.Exchange.Symbol))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.cfg.Pipeline.CycleInterval > 0 {
		go a.runScheduler(ctx, l)
		l.Info("cycle scheduler started",
			applogger.Duration("interval", a.cfg.Pipeline.CycleInterval))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

// runScheduler triggers one decision cycle per tick. An overlapping tick is
// dropped by the orchestrator, not queued, so slow cycles never pile up.
func (a *App) runScheduler(ctx context.Context, l *applogger.Logger) {
	ticker := time.NewTicker(a.cfg.Pipeline.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d, err := a.orch.RunCycle(ctx)
			switch {
			case errors.Is(err, usecase.ErrCycleRunning):
				// already counted by the orchestrator
			case err != nil:
				l.Error("scheduled cycle error", applogger.Error(err))
			default:
				l.Info("scheduled cycle complete",
					applogger.String("symbol", d.Symbol),
					applogger.Float64("probability", d.Probability),
					applogger.Float64("exposure", d.Exposure),
					applogger.Int("bars", d.BarsCount))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.decStore != nil {
		if err := a.decStore.Close(); err != nil {
			l.Warn("decision store close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
