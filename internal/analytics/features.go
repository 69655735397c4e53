package analytics

import (
	"math"
	"sort"

	"smartbudget/internal/core"
)

// FeatureColumns is the fixed input order the regression model is
// trained and queried with. Changing the order invalidates saved models.
var FeatureColumns = []string{
	"day_of_week",
	"day_of_month",
	"month",
	"is_weekend",
	"week_of_year",
	"rolling_mean_7d",
	"rolling_std_7d",
	"rolling_mean_30d",
	"lag_1",
	"lag_7",
	"category_encoded",
	"payment_type_encoded",
}

// LabelEncoder maps categorical strings to numeric codes. Code 0 is
// reserved for labels not seen during fitting, so known labels are
// numbered from 1.
type LabelEncoder struct {
	Classes map[string]int `json:"classes"`
}

func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{Classes: make(map[string]int)}
}

// Fit assigns codes to the distinct labels in sorted order. Already
// known labels keep their code so refitting on a superset is stable.
func (e *LabelEncoder) Fit(labels []string) {
	if e.Classes == nil {
		e.Classes = make(map[string]int)
	}
	distinct := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			distinct = append(distinct, l)
		}
	}
	sort.Strings(distinct)
	for _, l := range distinct {
		if _, ok := e.Classes[l]; !ok {
			e.Classes[l] = len(e.Classes) + 1
		}
	}
}

// Transform returns the code for label, or 0 when the label was not
// seen during fitting.
func (e *LabelEncoder) Transform(label string) float64 {
	if e == nil || e.Classes == nil {
		return 0
	}
	return float64(e.Classes[label])
}

// dayOfWeek numbers Monday as 0 through Sunday as 6.
func dayOfWeek(e core.Expense) int {
	return (int(e.Date.Weekday()) + 6) % 7
}

func isWeekend(e core.Expense) float64 {
	if dw := dayOfWeek(e); dw == 5 || dw == 6 {
		return 1
	}
	return 0
}

// sortedByDate returns a copy of expenses in ascending date order.
// The sort is stable so same-day records keep their input order.
func sortedByDate(expenses []core.Expense) []core.Expense {
	out := make([]core.Expense, len(expenses))
	copy(out, expenses)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// featureMatrix derives the training matrix from the expense history.
// Expenses must already be sorted by date. Rolling windows use all
// available records when fewer than the window size exist, the 7 day
// standard deviation is zero until two records are available, and lag
// features fall back to the series mean near the start of the history.
func featureMatrix(expenses []core.Expense, catEnc, payEnc *LabelEncoder) (x [][]float64, y []float64) {
	n := len(expenses)
	amounts := make([]float64, n)
	for i, e := range expenses {
		amounts[i] = e.Amount.Float()
	}
	seriesMean := core.Mean(amounts)

	x = make([][]float64, n)
	y = make([]float64, n)

	for i, e := range expenses {
		lo7 := max(0, i-6)
		lo30 := max(0, i-29)
		window7 := amounts[lo7 : i+1]

		lag1 := seriesMean
		if i >= 1 {
			lag1 = amounts[i-1]
		}
		lag7 := seriesMean
		if i >= 7 {
			lag7 = amounts[i-7]
		}

		_, week := e.Date.ISOWeek()

		x[i] = []float64{
			float64(dayOfWeek(e)),
			float64(e.Date.Day()),
			float64(e.Date.Month()),
			isWeekend(e),
			float64(week),
			core.Mean(window7),
			core.SampleStdDev(window7),
			core.Mean(amounts[lo30 : i+1]),
			lag1,
			lag7,
			catEnc.Transform(string(e.Category)),
			payEnc.Transform(string(e.PaymentType)),
		}
		y[i] = amounts[i]
	}

	return x, y
}

// historySnapshot holds the trailing statistics frozen into every
// future day of a forecast.
type historySnapshot struct {
	rollingMean7  float64
	rollingStd7   float64
	rollingMean30 float64
	lag1          float64
	lag7          float64
}

// snapshot computes trailing statistics over sorted expenses. The
// caller guarantees at least one record.
func snapshot(expenses []core.Expense) historySnapshot {
	amounts := core.Amounts(expenses)
	n := len(amounts)

	tail := func(k int) []float64 {
		if n <= k {
			return amounts
		}
		return amounts[n-k:]
	}

	lag7 := core.Mean(amounts)
	if n >= 7 {
		lag7 = amounts[n-7]
	}

	return historySnapshot{
		rollingMean7:  core.Mean(tail(7)),
		rollingStd7:   core.SampleStdDev(tail(7)),
		rollingMean30: core.Mean(tail(30)),
		lag1:          amounts[n-1],
		lag7:          lag7,
	}
}

// futureFeatures builds the input row for one forecast day. Category
// and payment type are unknown for future spending, so both encode to
// the reserved zero code.
func futureFeatures(date dayFields, snap historySnapshot) []float64 {
	return []float64{
		float64(date.dayOfWeek),
		float64(date.dayOfMonth),
		float64(date.month),
		boolToFloat(date.weekend),
		float64(date.weekOfYear),
		snap.rollingMean7,
		snap.rollingStd7,
		snap.rollingMean30,
		snap.lag1,
		snap.lag7,
		0,
		0,
	}
}

type dayFields struct {
	dayOfWeek  int
	dayOfMonth int
	month      int
	weekend    bool
	weekOfYear int
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// nonFinite reports whether any value in the row is NaN or infinite.
func nonFinite(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
