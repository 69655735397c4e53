package analytics

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbudget/internal/core"
)

// trainingHistory builds a deterministic daily history long enough to
// train on.
func trainingHistory(days int) []core.Expense {
	rng := rand.New(rand.NewSource(7))
	categories := core.Categories()
	payments := core.PaymentTypes()
	base := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	out := make([]core.Expense, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, expenseOn(
			base.AddDate(0, 0, i),
			10+rng.Float64()*90,
			categories[i%len(categories)],
			payments[i%len(payments)],
		))
	}
	return out
}

func TestTrainRequiresEnoughRecords(t *testing.T) {
	f := &Forecaster{logger: testLogger()}

	_, err := f.Train(trainingHistory(10))

	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 10, insufficient.Current)
	assert.Equal(t, TrainMinRecords, insufficient.Required)
}

func TestTrainBoundary(t *testing.T) {
	f := &Forecaster{logger: testLogger()}

	_, err := f.Train(trainingHistory(29))
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 29, insufficient.Current)
	assert.Equal(t, 30, insufficient.Required)

	_, err = f.Train(trainingHistory(30))
	require.NoError(t, err)

	// Training immediately enables forecasting on the same data.
	_, err = f.PredictNextMonth(trainingHistory(30))
	require.NoError(t, err)
}

func TestTrainReportsMetrics(t *testing.T) {
	f := &Forecaster{logger: testLogger()}

	result, err := f.Train(trainingHistory(60))
	require.NoError(t, err)

	assert.Equal(t, 60, result.Samples)
	assert.Greater(t, result.R2Score, 0.0)
	assert.LessOrEqual(t, result.R2Score, 1.0)
	assert.Len(t, result.FeatureImportance, len(FeatureColumns))
	assert.True(t, f.Trained())
}

func TestPredictNextMonth(t *testing.T) {
	f := &Forecaster{logger: testLogger()}
	history := trainingHistory(60)
	_, err := f.Train(history)
	require.NoError(t, err)

	forecast, err := f.PredictNextMonth(history)
	require.NoError(t, err)
	require.Len(t, forecast.Predictions, 30)

	lastDate := history[len(history)-1].Date
	var total float64
	for i, p := range forecast.Predictions {
		wantDate := lastDate.AddDate(0, 0, i+1).Format("2006-01-02")
		assert.Equal(t, wantDate, p.Date)
		assert.InDelta(t, p.PredictedAmount*0.85, p.ConfidenceLower, 0.01)
		assert.InDelta(t, p.PredictedAmount*1.15, p.ConfidenceUpper, 0.01)
		total += p.PredictedAmount
	}

	summary := forecast.MonthlySummary
	assert.InDelta(t, total, summary.TotalPredicted, 0.01)
	assert.InDelta(t, total/30, summary.AverageDaily, 0.01)
	assert.InDelta(t, total*0.85, summary.ConfidenceRange.Lower, 0.01)
	assert.InDelta(t, total*1.15, summary.ConfidenceRange.Upper, 0.01)
}

func TestPredictNextMonthWithoutModel(t *testing.T) {
	f := &Forecaster{logger: testLogger()}

	_, err := f.PredictNextMonth(trainingHistory(40))
	assert.ErrorIs(t, err, ErrModelNotTrained)
}

func TestPredictNextMonthWithoutHistory(t *testing.T) {
	f := &Forecaster{logger: testLogger()}
	_, err := f.Train(trainingHistory(60))
	require.NoError(t, err)

	_, err = f.PredictNextMonth(nil)
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Required)
}

func TestPredictCategorySpending(t *testing.T) {
	f := &Forecaster{logger: testLogger()}

	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	var history []core.Expense
	for i := 0; i < 20; i++ {
		history = append(history, expenseOn(base.AddDate(0, 0, i), 10, core.CategoryFood, core.PaymentCash))
		history = append(history, expenseOn(base.AddDate(0, 0, i), 40, core.CategoryOther, core.PaymentCash))
	}

	forecast, err := f.PredictCategorySpending(history, core.CategoryFood, 30)
	require.NoError(t, err)

	// Food is half the records, so 15 transactions expected over 30
	// days at a flat $10 ticket. A zero spread collapses the band.
	assert.Equal(t, string(core.CategoryFood), forecast.Category)
	assert.Equal(t, 15, forecast.ExpectedTransactions)
	assert.Equal(t, 10.0, forecast.AveragePerTransaction)
	assert.Equal(t, 150.0, forecast.PredictedTotal)
	assert.Equal(t, 150.0, forecast.ConfidenceRange.Lower)
	assert.Equal(t, 150.0, forecast.ConfidenceRange.Upper)
}

func TestPredictCategorySpendingSparseCategory(t *testing.T) {
	f := &Forecaster{logger: testLogger()}

	_, err := f.PredictCategorySpending(trainingHistory(35), core.CategoryFood, 30)
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, CategoryMinRecords, insufficient.Required)
}

func TestPredictCategorySpendingInvalidDays(t *testing.T) {
	f := &Forecaster{logger: testLogger()}

	_, err := f.PredictCategorySpending(trainingHistory(35), core.CategoryFood, 0)
	var invalid *ValidationError
	assert.ErrorAs(t, err, &invalid)
}

func TestModelPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	store := NewModelStore(path)

	f := &Forecaster{store: store, logger: testLogger()}
	history := trainingHistory(60)
	_, err := f.Train(history)
	require.NoError(t, err)

	reloaded := NewForecaster(store, testLogger())
	require.True(t, reloaded.Trained())

	want, err := f.PredictNextMonth(history)
	require.NoError(t, err)
	got, err := reloaded.PredictNextMonth(history)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestModelStoreMissingFile(t *testing.T) {
	store := NewModelStore(filepath.Join(t.TempDir(), "absent.json"))

	bundle, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, bundle)
}

func TestNewForecasterBootstrapsWithoutArtifact(t *testing.T) {
	store := NewModelStore(filepath.Join(t.TempDir(), "model.json"))

	f := NewForecaster(store, testLogger())
	assert.True(t, f.Trained())

	// Bootstrap training persists its model for the next start.
	bundle, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, FeatureColumns, bundle.FeatureNames)
}
