package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"smartbudget/internal/amqp"
	"smartbudget/internal/analytics"
	"smartbudget/internal/config"
	"smartbudget/internal/log"
	"smartbudget/internal/storage"
	"smartbudget/internal/worker"
)

func main() {
	// Load .env for local development, ignore errors in production
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: "smartbudget-worker",
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The worker exists to consume retrain requests, so AMQP is
	// mandatory here unlike in the API server.
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	modelStore := analytics.NewModelStore(cfg.ModelPath)
	forecaster := analytics.NewForecaster(modelStore, logger.With("component", "forecaster"))

	retrainWorker := worker.NewRetrainWorker(repo, forecaster, amqpClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up on retrains missed while the worker was down.
	if err := retrainWorker.StartupTrainCheck(ctx); err != nil {
		logger.Error("Startup training check failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return retrainWorker.Run(ctx)
	})

	logger.Info("smartbudget-worker started", "queue", cfg.AMQPQueue)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
