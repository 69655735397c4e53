package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"smartbudget/internal/analytics"
	"smartbudget/internal/log"
	"smartbudget/internal/services"
	"smartbudget/internal/storage"
)

func testLogger() *log.Logger {
	return log.New(log.Config{
		Handler: slog.NewTextHandler(io.Discard, nil),
	})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := testLogger()
	store := analytics.NewModelStore(filepath.Join(dir, "model.json"))
	forecaster := analytics.NewForecaster(store, logger)

	return New(Config{
		Port:       "0",
		Expenses:   services.NewExpenseService(repo, nil),
		Forecaster: forecaster,
		Detector:   analytics.NewDetector(2.5),
		Insights:   analytics.NewGenerator(logger),
		Logger:     logger,
	})
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func seedExpense(t *testing.T, s *Server, date string, amount float64, category string) expenseResponse {
	t.Helper()

	rec := doRequest(t, s, http.MethodPost, "/api/v1/expenses/", expenseRequest{
		Date:        date,
		Description: "seed",
		Amount:      amount,
		Category:    category,
		PaymentType: "Credit Card",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created expenseResponse
	decodeBody(t, rec, &created)
	return created
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The forecaster bootstraps a model at startup, so readiness
	// holds from the first request.
	rec = doRequest(t, s, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExpenseLifecycle(t *testing.T) {
	s := newTestServer(t)

	created := seedExpense(t, s, "2024-06-03", 42.50, "Food")
	require.NotEmpty(t, created.ID)
	require.Equal(t, 42.50, created.Amount)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/expenses/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched expenseResponse
	decodeBody(t, rec, &fetched)
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, "Food", fetched.Category)

	seedExpense(t, s, "2024-06-04", 15.00, "Transport")

	rec = doRequest(t, s, http.MethodGet, "/api/v1/expenses/?category=Food", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Expenses []expenseResponse `json:"expenses"`
		Count    int               `json:"count"`
	}
	decodeBody(t, rec, &listed)
	require.Equal(t, 1, listed.Count)
	require.Equal(t, created.ID, listed.Expenses[0].ID)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/expenses/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/expenses/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateExpenseValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/expenses/", expenseRequest{
		Date:        "2024-06-03",
		Description: "coffee",
		Amount:      4.50,
		Category:    "Snacks",
		PaymentType: "Credit Card",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/expenses/", expenseRequest{
		Date:        "June 3rd",
		Description: "coffee",
		Amount:      4.50,
		Category:    "Food",
		PaymentType: "Credit Card",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatisticsEndpoint(t *testing.T) {
	s := newTestServer(t)

	seedExpense(t, s, "2024-06-03", 100.00, "Bills")
	seedExpense(t, s, "2024-06-04", 25.00, "Food")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/expenses/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Count      int     `json:"count"`
		Total      float64 `json:"total"`
		ByCategory []struct {
			Category string  `json:"category"`
			Total    float64 `json:"total"`
		} `json:"by_category"`
	}
	decodeBody(t, rec, &stats)
	require.Equal(t, 2, stats.Count)
	require.Equal(t, 125.00, stats.Total)
	require.Equal(t, "Bills", stats.ByCategory[0].Category)
}

func TestForecastEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ml/forecast", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	for day := 1; day <= 10; day++ {
		seedExpense(t, s, fmt.Sprintf("2024-06-%02d", day), 20.00+float64(day), "Food")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var forecast analytics.Forecast
	decodeBody(t, rec, &forecast)
	require.Len(t, forecast.Predictions, 30)
}

func TestCategoryForecastEndpoint(t *testing.T) {
	s := newTestServer(t)

	for day := 1; day <= 12; day++ {
		seedExpense(t, s, fmt.Sprintf("2024-06-%02d", day), 10.00, "Food")
	}

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ml/forecast/category/Food", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/forecast/category/Gadgets", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/forecast/category/Transport", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody struct {
		Error    string `json:"error"`
		Current  int    `json:"current_count"`
		Required int    `json:"required_count"`
	}
	decodeBody(t, rec, &errBody)
	require.Equal(t, 0, errBody.Current)
	require.Equal(t, 10, errBody.Required)
}

func TestAnomaliesEndpoint(t *testing.T) {
	s := newTestServer(t)

	seedExpense(t, s, "2024-06-03", 20.00, "Food")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ml/anomalies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/anomalies?monthly_budget=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBudgetStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	seedExpense(t, s, "2024-06-03", 20.00, "Food")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ml/budget-status", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/budget-status?monthly_budget=1000", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status analytics.BudgetStatus
	decodeBody(t, rec, &status)
	require.Equal(t, 1000.0, status.MonthlyBudget)
}

func TestInsightsEndpointCaches(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ml/insights", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	for day := 1; day <= 10; day++ {
		seedExpense(t, s, fmt.Sprintf("2024-06-%02d", day), 20.00+float64(day), "Food")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, s.insightsCache.Size())

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, s.insightsCache.Size())

	// Growing the history changes the cache key, so a fresh report is
	// computed instead of serving the stale one.
	seedExpense(t, s, "2024-06-09", 12.00, "Food")
	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, s.insightsCache.Size())
}

func TestFinancialHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	seedExpense(t, s, "2024-06-03", 20.00, "Food")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ml/financial-health?income=-5", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/ml/financial-health?income=2000&savings=300", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report analytics.HealthScoreReport
	decodeBody(t, rec, &report)
	require.Greater(t, report.TotalScore, 0.0)
}

func TestTrainEndpoint(t *testing.T) {
	s := newTestServer(t)

	for day := 1; day <= 5; day++ {
		seedExpense(t, s, fmt.Sprintf("2024-06-%02d", day), 20.00, "Food")
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/ml/train", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody struct {
		Current  int `json:"current_count"`
		Required int `json:"required_count"`
	}
	decodeBody(t, rec, &errBody)
	require.Equal(t, 5, errBody.Current)
	require.Equal(t, 30, errBody.Required)

	for day := 6; day <= 35; day++ {
		seedExpense(t, s, fmt.Sprintf("2024-07-%02d", day-5), 20.00+float64(day), "Food")
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/ml/train", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result analytics.TrainResult
	decodeBody(t, rec, &result)
	require.Equal(t, 35, result.Samples)

	// Async training is accepted even without a broker; the retrain
	// request is logged and dropped.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/ml/train?async=true", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
}
