package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/closlabs/flowgate/internal/api"
	"github.com/closlabs/flowgate/internal/config"
	"github.com/closlabs/flowgate/internal/events"
	"github.com/closlabs/flowgate/internal/processor"
	"github.com/closlabs/flowgate/internal/report"
	"github.com/closlabs/flowgate/internal/stagegate"
	"github.com/closlabs/flowgate/internal/store"
	"github.com/closlabs/flowgate/internal/wip"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if err := store.Migrate(cfg.Database.URL); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Event bus (optional)
	var bus events.Client
	if cfg.Bus.URL != "" {
		bc, err := events.NewNATSClient(ctx, cfg.Bus.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to event bus, running without events", "error", err)
		} else {
			bus = bc
			defer bc.Close()
			logger.Info("connected to event bus")
		}
	}

	// Decision components
	evaluator := stagegate.NewEvaluator(nil)
	engine := wip.NewEngine(db, cfg, logger)

	// Event processor
	proc := processor.New(bus, db, evaluator, engine, logger)
	if err := proc.SetupSubscriptions(); err != nil {
		logger.Error("failed to register subscriptions", "error", err)
		os.Exit(1)
	}

	// Report rhythms
	aggregator := report.NewAggregator(db, engine, bus, cfg, logger)
	aggregator.Start(ctx)
	defer aggregator.Stop()
	logger.Info("report rhythms started",
		"daily_interval", cfg.DailyInterval(), "weekly_interval", cfg.WeeklyInterval())

	// API server
	router := api.NewRouter(db, bus, engine, aggregator, cfg, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
