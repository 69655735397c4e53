package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"smartbudget/internal/amqp"
	"smartbudget/internal/analytics"
	"smartbudget/internal/cache"
	"smartbudget/internal/config"
	apphttp "smartbudget/internal/http"
	"smartbudget/internal/log"
	"smartbudget/internal/services"
	"smartbudget/internal/storage"
)

func main() {
	// Load .env for local development, ignore errors in production
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: "smartbudget",
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	// AMQP is optional; without it retrain requests are logged and
	// dropped instead of published.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	expenseService := services.NewExpenseService(repo, amqpClient)
	defer func() {
		if err := expenseService.Close(); err != nil {
			logger.Error("Shutdown cleanup failed", "error", err)
		}
	}()

	modelStore := analytics.NewModelStore(cfg.ModelPath)
	forecaster := analytics.NewForecaster(modelStore, logger.With("component", "forecaster"))

	server := apphttp.New(apphttp.Config{
		Port:             cfg.Port,
		Expenses:         expenseService,
		Forecaster:       forecaster,
		Detector:         analytics.NewDetector(cfg.AnomalyThresholdSigma),
		Insights:         analytics.NewGenerator(logger.With("component", "insights")),
		InsightsCacheTTL: cfg.InsightsCacheTTL,
		Logger:           logger,
	})

	cacheManager := cache.NewManager()
	server.RegisterCaches(cacheManager)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("smartbudget started", "port", cfg.Port)
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
