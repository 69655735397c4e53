package analytics

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"smartbudget/internal/core"
	"smartbudget/internal/log"
)

const (
	// TrainMinRecords is the smallest history a model can be trained on.
	TrainMinRecords = 30
	// CategoryMinRecords is the smallest per category history a
	// category forecast needs.
	CategoryMinRecords = 10

	forecastHorizonDays = 30
	confidenceBand      = 0.15

	bootstrapSeed = 42
)

// modelBundle is everything a forecast needs, swapped wholesale on
// retrain so readers never see a model paired with stale encoders.
type modelBundle struct {
	Model           *gbtModel     `json:"model"`
	CategoryEncoder *LabelEncoder `json:"category_encoder"`
	PaymentEncoder  *LabelEncoder `json:"payment_encoder"`
	FeatureNames    []string      `json:"feature_names"`
	TrainedAt       time.Time     `json:"trained_at"`
	Samples         int           `json:"n_samples"`
	R2Score         float64       `json:"r2_score"`
}

// Forecaster trains and serves the expense prediction model. All
// methods are safe for concurrent use.
type Forecaster struct {
	mu     sync.RWMutex
	bundle *modelBundle

	store  *ModelStore
	logger *log.Logger
}

// NewForecaster builds a forecaster backed by the given artifact
// store. A saved model is loaded when present; otherwise a bootstrap
// model is trained on synthetic data so forecasts work before any
// real history accumulates.
func NewForecaster(store *ModelStore, logger *log.Logger) *Forecaster {
	f := &Forecaster{store: store, logger: logger}

	if store != nil {
		bundle, err := store.Load()
		if err == nil && bundle != nil {
			f.bundle = bundle
			logger.Info("forecast model loaded",
				"trained_at", bundle.TrainedAt,
				"samples", bundle.Samples)
			return f
		}
		if err != nil {
			logger.Warn("forecast model unavailable, bootstrapping", "error", err)
		}
	}

	if _, err := f.TrainBootstrap(); err != nil {
		logger.Error("bootstrap training failed", "error", err)
	}
	return f
}

// TrainResult reports training metrics.
type TrainResult struct {
	R2Score           float64            `json:"r2_score"`
	Samples           int                `json:"n_samples"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
}

// Train fits a new model on the expense history and atomically swaps
// it in. At least TrainMinRecords records are required.
func (f *Forecaster) Train(expenses []core.Expense) (*TrainResult, error) {
	if len(expenses) < TrainMinRecords {
		return nil, &InsufficientDataError{Current: len(expenses), Required: TrainMinRecords}
	}

	sorted := sortedByDate(expenses)

	catEnc := NewLabelEncoder()
	payEnc := NewLabelEncoder()
	cats := make([]string, len(sorted))
	pays := make([]string, len(sorted))
	for i, e := range sorted {
		cats[i] = string(e.Category)
		pays[i] = string(e.PaymentType)
	}
	catEnc.Fit(cats)
	payEnc.Fit(pays)

	x, y := featureMatrix(sorted, catEnc, payEnc)

	// Drop rows with non finite values so a corrupt record cannot
	// poison the whole fit.
	clean := x[:0]
	cleanY := y[:0]
	for i, row := range x {
		if nonFinite(row) || math.IsNaN(y[i]) {
			continue
		}
		clean = append(clean, row)
		cleanY = append(cleanY, y[i])
	}
	if len(clean) < TrainMinRecords {
		return nil, &InsufficientDataError{Current: len(clean), Required: TrainMinRecords}
	}

	model := newGBTTrainer().fit(clean, cleanY)

	bundle := &modelBundle{
		Model:           model,
		CategoryEncoder: catEnc,
		PaymentEncoder:  payEnc,
		FeatureNames:    FeatureColumns,
		TrainedAt:       time.Now().UTC(),
		Samples:         len(clean),
		R2Score:         model.rSquared(clean, cleanY),
	}

	f.mu.Lock()
	f.bundle = bundle
	f.mu.Unlock()

	if f.store != nil {
		if err := f.store.Save(bundle); err != nil {
			f.logger.Error("saving forecast model failed", "error", err)
		}
	}

	importance := make(map[string]float64, len(FeatureColumns))
	for i, name := range FeatureColumns {
		importance[name] = core.Round2(model.Importances[i])
	}

	f.logger.Info("forecast model trained",
		"samples", bundle.Samples,
		"r2_score", bundle.R2Score)

	return &TrainResult{
		R2Score:           bundle.R2Score,
		Samples:           bundle.Samples,
		FeatureImportance: importance,
	}, nil
}

// TrainBootstrap trains on a deterministic synthetic history. Used at
// first startup when no saved model and no real data exist yet.
func (f *Forecaster) TrainBootstrap() (*TrainResult, error) {
	return f.Train(syntheticHistory())
}

// Trained reports whether a model is available.
func (f *Forecaster) Trained() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bundle != nil
}

// DailyPrediction is the forecast for a single future day.
type DailyPrediction struct {
	Date            string  `json:"date"`
	PredictedAmount float64 `json:"predicted_amount"`
	ConfidenceLower float64 `json:"confidence_lower"`
	ConfidenceUpper float64 `json:"confidence_upper"`
}

// ConfidenceRange bounds a point estimate.
type ConfidenceRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// MonthlySummary aggregates the 30 day forecast.
type MonthlySummary struct {
	TotalPredicted  float64         `json:"total_predicted"`
	AverageDaily    float64         `json:"average_daily"`
	ConfidenceRange ConfidenceRange `json:"confidence_range"`
}

// Forecast is the 30 day spending prediction.
type Forecast struct {
	Predictions    []DailyPrediction `json:"predictions"`
	MonthlySummary MonthlySummary    `json:"monthly_summary"`
}

// PredictNextMonth forecasts daily spending for the 30 days after the
// latest record in expenses. The trailing statistics of the history
// are frozen into every future day rather than fed back recursively,
// so the forecast reflects recent behavior without compounding its
// own errors.
func (f *Forecaster) PredictNextMonth(expenses []core.Expense) (*Forecast, error) {
	f.mu.RLock()
	bundle := f.bundle
	f.mu.RUnlock()

	if bundle == nil {
		return nil, ErrModelNotTrained
	}
	if len(expenses) == 0 {
		return nil, &InsufficientDataError{Current: 0, Required: 1}
	}

	sorted := sortedByDate(expenses)
	snap := snapshot(sorted)
	lastDate := sorted[len(sorted)-1].Date

	predictions := make([]DailyPrediction, 0, forecastHorizonDays)
	var total float64

	for day := 1; day <= forecastHorizonDays; day++ {
		date := lastDate.AddDate(0, 0, day)
		dw := (int(date.Weekday()) + 6) % 7
		_, week := date.ISOWeek()

		row := futureFeatures(dayFields{
			dayOfWeek:  dw,
			dayOfMonth: date.Day(),
			month:      int(date.Month()),
			weekend:    dw == 5 || dw == 6,
			weekOfYear: week,
		}, snap)

		predicted := bundle.Model.predict(row)
		predictions = append(predictions, DailyPrediction{
			Date:            date.Format("2006-01-02"),
			PredictedAmount: core.Round2(predicted),
			ConfidenceLower: core.Round2(predicted * (1 - confidenceBand)),
			ConfidenceUpper: core.Round2(predicted * (1 + confidenceBand)),
		})
		total += core.Round2(predicted)
	}

	return &Forecast{
		Predictions: predictions,
		MonthlySummary: MonthlySummary{
			TotalPredicted: core.Round2(total),
			AverageDaily:   core.Round2(total / forecastHorizonDays),
			ConfidenceRange: ConfidenceRange{
				Lower: core.Round2(total * (1 - confidenceBand)),
				Upper: core.Round2(total * (1 + confidenceBand)),
			},
		},
	}, nil
}

// CategoryForecast predicts spending in one category over a horizon.
type CategoryForecast struct {
	Category              string          `json:"category"`
	PredictedTotal        float64         `json:"predicted_total"`
	ExpectedTransactions  int             `json:"expected_transactions"`
	AveragePerTransaction float64         `json:"average_per_transaction"`
	ConfidenceRange       ConfidenceRange `json:"confidence_range"`
}

// PredictCategorySpending projects spending for a category over the
// next days from its historical share and average ticket. This is a
// frequency model, not the regression model, so it works even before
// training and needs only CategoryMinRecords records in the category.
func (f *Forecaster) PredictCategorySpending(expenses []core.Expense, category core.Category, days int) (*CategoryForecast, error) {
	if days <= 0 {
		return nil, &ValidationError{Field: "days", Reason: "must be positive"}
	}

	var inCategory []float64
	for _, e := range expenses {
		if e.Category == category {
			inCategory = append(inCategory, e.Amount.Float())
		}
	}
	if len(inCategory) < CategoryMinRecords {
		return nil, &InsufficientDataError{Current: len(inCategory), Required: CategoryMinRecords}
	}

	avg := core.Mean(inCategory)
	std := core.SampleStdDev(inCategory)
	frequency := float64(len(inCategory)) / float64(len(expenses))

	expected := int(frequency * float64(days))
	predictedTotal := avg * float64(expected)
	spread := std * math.Sqrt(float64(expected))

	return &CategoryForecast{
		Category:              string(category),
		PredictedTotal:        core.Round2(predictedTotal),
		ExpectedTransactions:  expected,
		AveragePerTransaction: core.Round2(avg),
		ConfidenceRange: ConfidenceRange{
			Lower: core.Round2(predictedTotal - spread),
			Upper: core.Round2(predictedTotal + spread),
		},
	}, nil
}

// syntheticHistory generates a deterministic eleven month expense
// history with zero to three purchases per day and log normal amounts.
func syntheticHistory() []core.Expense {
	rng := rand.New(rand.NewSource(bootstrapSeed))
	categories := core.Categories()
	paymentTypes := core.PaymentTypes()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.November, 28, 0, 0, 0, 0, time.UTC)

	var out []core.Expense
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for i, n := 0, rng.Intn(4); i < n; i++ {
			amount := math.Exp(3.5 + 0.8*rng.NormFloat64())
			out = append(out, core.Expense{
				Date:        d,
				Description: "bootstrap sample",
				Amount:      core.NewMoney(core.Round2(amount)),
				Category:    categories[rng.Intn(len(categories))],
				PaymentType: paymentTypes[rng.Intn(len(paymentTypes))],
			})
		}
	}
	return out
}
