package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartbudget/internal/amqp"
	"smartbudget/internal/analytics"
	"smartbudget/internal/core"
	"smartbudget/internal/log"
	"smartbudget/internal/storage"
)

func newTestWorker(t *testing.T) (*RetrainWorker, *storage.SQLiteRepository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	store := analytics.NewModelStore(filepath.Join(dir, "model.json"))
	forecaster := analytics.NewForecaster(store, logger)

	return NewRetrainWorker(repo, forecaster, nil), repo
}

func seedHistory(t *testing.T, repo *storage.SQLiteRepository, n int) {
	t.Helper()

	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		_, err := repo.CreateExpense(context.Background(), core.Expense{
			Date:        start.AddDate(0, 0, i),
			Description: fmt.Sprintf("entry %d", i),
			Amount:      core.NewMoney(10 + float64(i)),
			Category:    core.CategoryFood,
			PaymentType: core.PaymentCreditCard,
		})
		require.NoError(t, err)
	}
}

func TestHandleRetrainMessageRefitsModel(t *testing.T) {
	w, repo := newTestWorker(t)
	seedHistory(t, repo, 35)

	msg := amqp.NewRetrainMessage("expense_threshold", 35)
	require.NoError(t, w.HandleRetrainMessage(context.Background(), msg))
	require.True(t, w.forecaster.Trained())
}

func TestHandleRetrainMessageSkipsThinHistory(t *testing.T) {
	w, repo := newTestWorker(t)
	seedHistory(t, repo, 5)

	// A short history is acknowledged without error so the broker does
	// not redeliver a message that can never succeed.
	msg := amqp.NewRetrainMessage("manual", 5)
	require.NoError(t, w.HandleRetrainMessage(context.Background(), msg))
}

func TestStartupTrainCheck(t *testing.T) {
	w, repo := newTestWorker(t)

	require.NoError(t, w.StartupTrainCheck(context.Background()))

	seedHistory(t, repo, 40)
	require.NoError(t, w.StartupTrainCheck(context.Background()))
}
