package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookmirror/internal/book"
	"bookmirror/internal/config"
	"bookmirror/internal/feed"
	"bookmirror/internal/logging"
	"bookmirror/internal/metrics"
	"bookmirror/internal/reconcile"
	"bookmirror/internal/router"
	"bookmirror/internal/strategy"
	"bookmirror/internal/usecase/marketdata"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", false)
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	registry := metrics.Init(logger)

	mirror := book.NewMirror()

	ingestor := feed.NewIngestor(feed.IngestorOpts{
		URL:     cfg.FeedURL,
		Backoff: cfg.ReconnectBackoff,
		Mirror:  mirror,
		Logger:  logger,
	})
	reconciler := reconcile.NewReconciler(reconcile.ReconcilerOpts{
		URL:      cfg.ReferenceURL,
		Interval: cfg.ReconcileInterval,
		Timeout:  cfg.ReconcileTimeout,
		Mirror:   mirror,
		Logger:   logger,
	})
	marketDataUseCase := marketdata.NewMarketDataUseCase(marketdata.MarketDataUseCaseOpts{
		Mirror: mirror,
		Logger: logger,
	})

	go func() {
		if err := ingestor.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("ingestor stopped")
		}
	}()
	go func() {
		if err := reconciler.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reconciler stopped")
		}
	}()

	var paperTrader *strategy.Strategy
	if cfg.Strategy.Enabled {
		paperTrader = strategy.New(strategy.Opts{
			UseCase: marketDataUseCase,
			Config:  cfg.Strategy,
			Logger:  logger,
		})
		go func() {
			if err := paperTrader.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("strategy stopped")
			}
		}()
	}

	serveMux := http.NewServeMux()
	router.BindRouter(router.BindRouterOpts{
		ServerRouter:        serveMux,
		MarketData:          &marketDataUseCase,
		Strategy:            paperTrader,
		Registry:            registry,
		Logger:              logger,
		DefaultTickSize:     cfg.TickSize,
		DefaultDepthPercent: cfg.DepthPercent,
	})
	logger.Info().Str("symbol", cfg.Symbol).Msg("finished binding router")

	server := http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.Cors(serveMux),
	}

	// Start server in background.
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	// Block until we get a signal (or parent context canceled).
	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received")

	// Give in-flight requests up to 10s to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		// If graceful shutdown times out, force close.
		logger.Warn().Err(err).Msg("graceful shutdown failed; forcing close")
		_ = server.Close()
	}

	logger.Info().Msg("server stopped")
}
