package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"smartbudget/internal/analytics"
	"smartbudget/internal/core"
	"smartbudget/internal/storage"
)

type expenseRequest struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Category    string   `json:"category"`
	PaymentType string   `json:"payment_type"`
	Tags        []string `json:"tags,omitempty"`
}

type expenseResponse struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Category    string   `json:"category"`
	PaymentType string   `json:"payment_type"`
	Tags        []string `json:"tags,omitempty"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		Date:        e.Date.Format("2006-01-02"),
		Description: e.Description,
		Amount:      e.Amount.Float(),
		Category:    string(e.Category),
		PaymentType: string(e.PaymentType),
		Tags:        e.Tags,
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, &analytics.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Date), time.UTC)
	if err != nil {
		respondError(w, &analytics.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"})
		return
	}

	expense := core.Expense{
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Amount:      core.NewMoney(req.Amount),
		Category:    core.Category(req.Category),
		PaymentType: core.PaymentType(req.PaymentType),
		Tags:        req.Tags,
	}

	created, err := s.expenses.CreateExpense(r.Context(), expense)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toExpenseResponse(created))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter := storage.ListFilter{}

	if v := strings.TrimSpace(r.URL.Query().Get("category")); v != "" {
		category := core.Category(v)
		if !category.Valid() {
			respondError(w, &analytics.ValidationError{Field: "category", Reason: "unknown category"})
			return
		}
		filter.Category = category
	}
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		from, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			respondError(w, &analytics.ValidationError{Field: "from", Reason: "expected YYYY-MM-DD"})
			return
		}
		filter.From = from
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		to, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			respondError(w, &analytics.ValidationError{Field: "to", Reason: "expected YYYY-MM-DD"})
			return
		}
		filter.To = to
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, err)
		return
	}
	filter.Limit = limit

	expenses, err := s.expenses.ListExpenses(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]expenseResponse, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseResponse(e)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"expenses": out,
		"count":    len(out),
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.expenses.GetExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.DeleteExpense(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.expenses.GetStatistics(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	byCategory := make([]map[string]any, len(stats.ByCategory))
	for i, ct := range stats.ByCategory {
		byCategory[i] = map[string]any{
			"category": string(ct.Category),
			"total":    ct.Total.Float(),
		}
	}

	average := 0.0
	if stats.Count > 0 {
		average = core.Round2(stats.Total.Float() / float64(stats.Count))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":       stats.Count,
		"total":       stats.Total.Float(),
		"average":     average,
		"by_category": byCategory,
	})
}
