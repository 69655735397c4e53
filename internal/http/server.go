// Package http exposes the expense CRUD and analytics API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"smartbudget/internal/analytics"
	"smartbudget/internal/cache"
	"smartbudget/internal/log"
	"smartbudget/internal/services"
)

const insightsCacheSize = 64

// Server is the HTTP API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	expenses   *services.ExpenseService
	forecaster *analytics.Forecaster
	detector   *analytics.Detector
	insights   *analytics.Generator

	insightsCache *cache.LRUCache[*analytics.InsightsReport]
	logger        *log.Logger
}

// Config for the server.
type Config struct {
	Port             string
	Expenses         *services.ExpenseService
	Forecaster       *analytics.Forecaster
	Detector         *analytics.Detector
	Insights         *analytics.Generator
	InsightsCacheTTL time.Duration
	Logger           *log.Logger
}

// New creates a new API server.
func New(cfg Config) *Server {
	ttl := cfg.InsightsCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	s := &Server{
		expenses:      cfg.Expenses,
		forecaster:    cfg.Forecaster,
		detector:      cfg.Detector,
		insights:      cfg.Insights,
		insightsCache: cache.NewLRUCache[*analytics.InsightsReport](insightsCacheSize, ttl),
		logger:        cfg.Logger,
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", s.handleCreateExpense)
			r.Get("/", s.handleListExpenses)
			r.Get("/statistics", s.handleStatistics)
			r.Get("/{id}", s.handleGetExpense)
			r.Delete("/{id}", s.handleDeleteExpense)
		})

		r.Route("/ml", func(r chi.Router) {
			r.Get("/forecast", s.handleForecast)
			r.Get("/forecast/category/{category}", s.handleCategoryForecast)
			r.Get("/anomalies", s.handleAnomalies)
			r.Get("/budget-status", s.handleBudgetStatus)
			r.Get("/insights", s.handleInsights)
			r.Get("/budget-recommendations", s.handleBudgetRecommendations)
			r.Get("/financial-health", s.handleFinancialHealth)
			r.Get("/compare-benchmarks", s.handleCompareBenchmarks)
			r.Post("/train", s.handleTrain)
		})
	})

	s.router = r
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// RegisterCaches attaches the server's caches to a cleanup manager.
func (s *Server) RegisterCaches(m *cache.Manager) {
	m.Register(s.insightsCache)
}

// Start begins serving and blocks until the listener fails or the
// server is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.forecaster.Trained() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "model not ready"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
