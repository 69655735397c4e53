// Command train-model fits the forecast model on synthetic history and
// reports its quality. Useful for producing a model artifact offline
// and for sanity checking changes to the trainer.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"smartbudget/internal/analytics"
	"smartbudget/internal/config"
	"smartbudget/internal/core"
	"smartbudget/internal/log"
)

const seed = 42

type categoryProfile struct {
	category    core.Category
	minAmount   float64
	maxAmount   float64
	probability float64
}

// profiles mirror typical household spending: food is frequent and
// cheap, bills are rare and large.
var profiles = []categoryProfile{
	{core.CategoryFood, 30, 80, 0.8},
	{core.CategoryTransport, 10, 50, 0.6},
	{core.CategoryShopping, 20, 200, 0.3},
	{core.CategoryBills, 50, 300, 0.15},
	{core.CategoryEntertainment, 15, 100, 0.4},
	{core.CategoryHealthcare, 20, 150, 0.2},
	{core.CategoryOther, 10, 50, 0.3},
}

// generateTrainingData builds a deterministic synthetic history with
// weekend and month-end spending bumps.
func generateTrainingData(months int) []core.Expense {
	rng := rand.New(rand.NewSource(seed))
	paymentTypes := core.PaymentTypes()

	days := months * 30
	start := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)

	var out []core.Expense
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)

		weekendMult := 1.0
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekendMult = 1.3
		}
		dayMult := 1.0
		if date.Day() > 25 {
			dayMult = 1.2
		}

		for _, p := range profiles {
			if rng.Float64() >= p.probability*weekendMult {
				continue
			}
			base := p.minAmount + rng.Float64()*(p.maxAmount-p.minAmount)
			out = append(out, core.Expense{
				Date:        date,
				Description: fmt.Sprintf("Sample %s expense", p.category),
				Amount:      core.NewMoney(base * weekendMult * dayMult),
				Category:    p.category,
				PaymentType: paymentTypes[rng.Intn(len(paymentTypes))],
			})
		}
	}
	return out
}

func main() {
	_ = godotenv.Load()

	months := flag.Int("months", 12, "months of synthetic history to generate")
	flag.Parse()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: "train-model",
	})

	fmt.Println("Generating training data...")
	history := generateTrainingData(*months)
	fmt.Printf("Generated %d expense records\n", len(history))

	store := analytics.NewModelStore(cfg.ModelPath)
	forecaster := analytics.NewForecaster(store, logger)

	fmt.Println("Training forecasting model...")
	result, err := forecaster.Train(history)
	if err != nil {
		fmt.Fprintf(os.Stderr, "training failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("R2 score: %.4f\n", result.R2Score)
	fmt.Printf("Training samples: %d\n", result.Samples)

	type ranked struct {
		feature    string
		importance float64
	}
	features := make([]ranked, 0, len(result.FeatureImportance))
	for f, imp := range result.FeatureImportance {
		features = append(features, ranked{f, imp})
	}
	sort.Slice(features, func(i, j int) bool {
		if features[i].importance != features[j].importance {
			return features[i].importance > features[j].importance
		}
		return features[i].feature < features[j].feature
	})

	fmt.Println("Top feature importances:")
	for i, f := range features {
		if i == 5 {
			break
		}
		fmt.Printf("  %-25s %.4f\n", f.feature, f.importance)
	}

	forecast, err := forecaster.PredictNextMonth(history)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prediction failed: %v\n", err)
		os.Exit(1)
	}

	summary := forecast.MonthlySummary
	fmt.Printf("Predicted monthly total: $%.2f\n", summary.TotalPredicted)
	fmt.Printf("Average daily: $%.2f\n", summary.AverageDaily)
	fmt.Printf("Confidence range: $%.2f - $%.2f\n",
		summary.ConfidenceRange.Lower, summary.ConfidenceRange.Upper)

	fmt.Println("Sample predictions (first 7 days):")
	for i, pred := range forecast.Predictions {
		if i == 7 {
			break
		}
		fmt.Printf("  %s: $%.2f\n", pred.Date, pred.PredictedAmount)
	}

	fmt.Printf("Model saved to %s\n", cfg.ModelPath)
}
