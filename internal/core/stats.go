package core

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Statistics helpers shared by the anomaly detector, the forecaster's
// feature pipeline and the insight generator. Population statistics are
// used for z-scoring a whole series; sample statistics for baselines
// estimated from a subset.

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// PopStdDev returns the population standard deviation of xs (divisor n).
// Returns 0 for fewer than one observation.
func PopStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.PopStdDev(xs, nil)
}

// SampleStdDev returns the sample standard deviation of xs (divisor n-1).
// Returns 0 for fewer than two observations.
func SampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

// ZScores standardizes xs against its own population mean and standard
// deviation. The second return is false when the series is degenerate
// (all-identical values), in which case no scores are produced.
func ZScores(xs []float64) ([]float64, bool) {
	mean := Mean(xs)
	std := PopStdDev(xs)
	if std == 0 {
		return nil, false
	}
	scores := make([]float64, len(xs))
	for i, x := range xs {
		scores[i] = (x - mean) / std
	}
	return scores, true
}

// Round2 rounds to two decimal places, mirroring the precision of every
// monetary figure the API reports.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Amounts extracts the dollar amounts of a record list in order.
func Amounts(records []Expense) []float64 {
	xs := make([]float64, len(records))
	for i, e := range records {
		xs[i] = e.Amount.Float()
	}
	return xs
}

// DailyTotals sums amounts per calendar day.
func DailyTotals(records []Expense) map[time.Time]float64 {
	totals := make(map[time.Time]float64)
	for _, e := range records {
		totals[e.Day()] += e.Amount.Float()
	}
	return totals
}

// DailyCounts counts transactions per calendar day.
func DailyCounts(records []Expense) map[time.Time]int {
	counts := make(map[time.Time]int)
	for _, e := range records {
		counts[e.Day()]++
	}
	return counts
}

// CategoryTotals sums amounts per category.
func CategoryTotals(records []Expense) map[Category]float64 {
	totals := make(map[Category]float64)
	for _, e := range records {
		totals[e.Category] += e.Amount.Float()
	}
	return totals
}

// Sum adds up a series.
func Sum(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum
}

// Total sums all amounts.
func Total(records []Expense) float64 {
	var sum float64
	for _, e := range records {
		sum += e.Amount.Float()
	}
	return sum
}
