package core

import (
	"math"
	"testing"
	"time"
)

func TestMeanAndStdDev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(xs); got != 5 {
		t.Errorf("Mean = %v, want 5", got)
	}
	if got := PopStdDev(xs); got != 2 {
		t.Errorf("PopStdDev = %v, want 2", got)
	}
	// Sample variance of the series is 32/7.
	want := math.Sqrt(32.0 / 7.0)
	if got := SampleStdDev(xs); math.Abs(got-want) > 1e-12 {
		t.Errorf("SampleStdDev = %v, want %v", got, want)
	}
}

func TestStdDevDegenerateInputs(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
	if got := PopStdDev(nil); got != 0 {
		t.Errorf("PopStdDev(nil) = %v, want 0", got)
	}
	if got := SampleStdDev([]float64{3}); got != 0 {
		t.Errorf("SampleStdDev(single) = %v, want 0", got)
	}
}

func TestZScores(t *testing.T) {
	scores, ok := ZScores([]float64{1, 2, 3, 4, 5})
	if !ok {
		t.Fatal("expected scores for non-degenerate series")
	}
	// Symmetric series: first and last scores mirror each other.
	if math.Abs(scores[0]+scores[4]) > 1e-12 {
		t.Errorf("scores not symmetric: %v", scores)
	}
	if scores[2] != 0 {
		t.Errorf("middle score = %v, want 0", scores[2])
	}

	if _, ok := ZScores([]float64{7, 7, 7}); ok {
		t.Error("expected degenerate all-identical series to report no scores")
	}
}

func TestRound2(t *testing.T) {
	cases := []struct{ in, out float64 }{
		{1.006, 1.01},
		{2.344, 2.34},
		{2.345, 2.35},
		// 1.005 is stored as 1.00499…, so it rounds down.
		{1.005, 1.0},
		{-1.005, -1},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); math.Abs(got-tc.out) > 1e-9 {
			t.Errorf("Round2(%v) = %v, want %v", tc.in, got, tc.out)
		}
	}
}

func TestDailyGroupings(t *testing.T) {
	day1 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	day1b := time.Date(2025, 2, 1, 20, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC)
	records := []Expense{
		{Date: day1, Amount: Money{Cents: 1000}, Category: CategoryFood},
		{Date: day1b, Amount: Money{Cents: 2500}, Category: CategoryFood},
		{Date: day2, Amount: Money{Cents: 500}, Category: CategoryBills},
	}

	totals := DailyTotals(records)
	if len(totals) != 2 {
		t.Fatalf("expected 2 days, got %d", len(totals))
	}
	if got := totals[time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)]; got != 35 {
		t.Errorf("day 1 total = %v, want 35", got)
	}

	counts := DailyCounts(records)
	if got := counts[time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)]; got != 2 {
		t.Errorf("day 1 count = %d, want 2", got)
	}

	byCat := CategoryTotals(records)
	if got := byCat[CategoryFood]; got != 35 {
		t.Errorf("food total = %v, want 35", got)
	}
	if got := Total(records); got != 40 {
		t.Errorf("total = %v, want 40", got)
	}
}
