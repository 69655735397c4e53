package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smartbudget/internal/analytics"
	"smartbudget/internal/core"
	"smartbudget/internal/storage"
)

// insightsMinRecords is the minimum history for the insights bundle.
const insightsMinRecords = 10

// history loads the full non-deleted expense history in date order.
// Analytics endpoints always operate on the complete series.
func (s *Server) history(r *http.Request) ([]core.Expense, error) {
	return s.expenses.ListExpenses(r.Context(), storage.ListFilter{})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}

	forecast, err := s.forecaster.PredictNextMonth(expenses)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleCategoryForecast(w http.ResponseWriter, r *http.Request) {
	category := core.Category(chi.URLParam(r, "category"))
	if !category.Valid() {
		respondError(w, &analytics.ValidationError{Field: "category", Reason: "unknown category"})
		return
	}
	days, err := queryInt(r, "days", 30)
	if err != nil {
		respondError(w, err)
		return
	}

	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}

	forecast, err := s.forecaster.PredictCategorySpending(expenses, category, days)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, forecast)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	budget, err := queryFloat(r, "monthly_budget", 0)
	if err != nil {
		respondError(w, err)
		return
	}

	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}

	report, err := s.detector.ScanAll(expenses, budget)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	budget, err := queryFloat(r, "monthly_budget", 0)
	if err != nil {
		respondError(w, err)
		return
	}

	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}

	status, err := s.detector.DetectBudgetOverrun(expenses, budget)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if len(expenses) < insightsMinRecords {
		respondError(w, &analytics.InsufficientDataError{
			Current:  len(expenses),
			Required: insightsMinRecords,
		})
		return
	}

	// Reports are pure functions of the history, so the record count
	// plus the latest date fingerprints the input well enough for a
	// short-lived cache.
	last := expenses[len(expenses)-1]
	key := fmt.Sprintf("insights:%d:%s", len(expenses), last.Date.Format("2006-01-02"))

	if report, ok := s.insightsCache.Get(key); ok {
		respondJSON(w, http.StatusOK, report)
		return
	}

	report := s.insights.Insights(expenses)
	s.insightsCache.Set(key, report)
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleBudgetRecommendations(w http.ResponseWriter, r *http.Request) {
	income, err := queryFloat(r, "income", 0)
	if err != nil {
		respondError(w, err)
		return
	}

	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}

	recs, err := s.insights.RecommendBudget(expenses, income)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleFinancialHealth(w http.ResponseWriter, r *http.Request) {
	income, err := queryFloat(r, "income", 0)
	if err != nil {
		respondError(w, err)
		return
	}
	savings, err := queryFloat(r, "savings", 0)
	if err != nil {
		respondError(w, err)
		return
	}

	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}

	report, err := s.insights.HealthScore(expenses, income, savings)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleCompareBenchmarks(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.insights.CompareWithBenchmarks(expenses))
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	// async=true hands the work to the worker via AMQP instead of
	// blocking the request on a full fit.
	if r.URL.Query().Get("async") == "true" {
		if err := s.expenses.RequestRetrain(r.Context(), "manual"); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "retrain requested"})
		return
	}

	expenses, err := s.history(r)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.forecaster.Train(expenses)
	if err != nil {
		respondError(w, err)
		return
	}

	s.logger.Info("model retrained via API",
		"samples", result.Samples,
		"r2_score", result.R2Score,
	)
	respondJSON(w, http.StatusOK, result)
}
