package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"smartbudget/internal/core"
)

const (
	// AnomalyMinRecords is the smallest sample amount outlier and
	// category shift detection will score.
	AnomalyMinRecords = 10

	highSeveritySigma  = 3.0
	categoryWindowDays = 30
	budgetMonthDays    = 30
)

// Severity tiers an anomaly for display.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Detector scores expense histories for unusual spending. It holds no
// state beyond its threshold, so one instance serves all requests.
type Detector struct {
	thresholdSigma float64
}

func NewDetector(thresholdSigma float64) *Detector {
	if thresholdSigma <= 0 {
		thresholdSigma = 2.5
	}
	return &Detector{thresholdSigma: thresholdSigma}
}

// AmountAnomaly flags a single expense whose amount is far from the
// population mean.
type AmountAnomaly struct {
	ID             string   `json:"id"`
	Date           string   `json:"date"`
	Amount         float64  `json:"amount"`
	Category       string   `json:"category"`
	ExpectedAmount float64  `json:"expected_amount"`
	Deviation      float64  `json:"deviation"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
}

// DetectAmountAnomalies flags expenses whose amount z score exceeds
// the detector threshold against the population mean and standard
// deviation of the whole sample. Fewer than AnomalyMinRecords records,
// or an all identical series, yields no flags.
func (d *Detector) DetectAmountAnomalies(expenses []core.Expense) []AmountAnomaly {
	if len(expenses) < AnomalyMinRecords {
		return nil
	}

	amounts := core.Amounts(expenses)
	zscores, ok := core.ZScores(amounts)
	if !ok {
		return nil
	}
	mean := core.Mean(amounts)

	var out []AmountAnomaly
	for i, z := range zscores {
		if math.Abs(z) <= d.thresholdSigma {
			continue
		}
		e := expenses[i]
		severity := SeverityMedium
		if z > highSeveritySigma {
			severity = SeverityHigh
		}
		out = append(out, AmountAnomaly{
			ID:             e.ID,
			Date:           e.Date.Format("2006-01-02"),
			Amount:         amounts[i],
			Category:       string(e.Category),
			ExpectedAmount: core.Round2(mean),
			Deviation:      core.Round2(amounts[i] - mean),
			Severity:       severity,
			Message: fmt.Sprintf("Unusual %s: $%.2f (expected ~$%.2f)",
				e.Category, amounts[i], mean),
		})
	}
	return out
}

// CategoryAnomaly flags a category whose recent spending rate moved
// away from its historical monthly baseline.
type CategoryAnomaly struct {
	Category          string   `json:"category"`
	CurrentSpending   float64  `json:"current_spending"`
	HistoricalAverage float64  `json:"historical_average"`
	PercentChange     float64  `json:"percent_change"`
	Severity          Severity `json:"severity"`
	Message           string   `json:"message"`
}

// DetectCategoryAnomalies compares each category's spending in the 30
// days before the latest record against its historical monthly rate.
// The baseline needs at least AnomalyMinRecords historical records
// overall; categories whose history has fewer than two records, or no
// spread at all, are skipped. Results sort by percent change magnitude.
func (d *Detector) DetectCategoryAnomalies(expenses []core.Expense) []CategoryAnomaly {
	if len(expenses) == 0 {
		return nil
	}

	sorted := sortedByDate(expenses)
	cutoff := sorted[len(sorted)-1].Date.AddDate(0, 0, -categoryWindowDays)

	var recent, historical []core.Expense
	for _, e := range sorted {
		if e.Date.After(cutoff) {
			recent = append(recent, e)
		} else {
			historical = append(historical, e)
		}
	}
	if len(historical) < AnomalyMinRecords {
		return nil
	}

	// Historical category totals are normalized to a monthly rate
	// using the number of distinct spending days in the baseline.
	histDays := len(core.DailyTotals(historical))
	months := float64(histDays) / float64(budgetMonthDays)

	recentTotals := core.CategoryTotals(recent)
	histByCategory := make(map[core.Category][]float64)
	for _, e := range historical {
		histByCategory[e.Category] = append(histByCategory[e.Category], e.Amount.Float())
	}

	var out []CategoryAnomaly
	for _, category := range seenCategories(sorted) {
		histAmounts, ok := histByCategory[category]
		if !ok {
			continue
		}

		histMean := core.Sum(histAmounts) / months
		histStd := core.SampleStdDev(histAmounts)
		if histStd == 0 || histMean == 0 {
			continue
		}

		recentTotal := recentTotals[category]
		z := (recentTotal - histMean) / (histStd + 1)
		if math.Abs(z) <= d.thresholdSigma {
			continue
		}

		pct := (recentTotal - histMean) / histMean * 100
		severity := SeverityMedium
		if math.Abs(pct) > 50 {
			severity = SeverityHigh
		}
		direction := "increased"
		if pct < 0 {
			direction = "decreased"
		}
		out = append(out, CategoryAnomaly{
			Category:          string(category),
			CurrentSpending:   core.Round2(recentTotal),
			HistoricalAverage: core.Round2(histMean),
			PercentChange:     core.Round2(pct),
			Severity:          severity,
			Message: fmt.Sprintf("%s spending %s by %.1f%%",
				category, direction, math.Abs(pct)),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].PercentChange) > math.Abs(out[j].PercentChange)
	})
	return out
}

// FrequencyAnomaly flags a day with an unusually high transaction count.
type FrequencyAnomaly struct {
	Date             string   `json:"date"`
	TransactionCount int      `json:"transaction_count"`
	ExpectedCount    float64  `json:"expected_count"`
	Severity         Severity `json:"severity"`
	Message          string   `json:"message"`
}

// DetectFrequencyAnomalies flags days whose transaction count sits
// more than the threshold above the mean daily count. Only high side
// deviations are anomalous; quiet days are normal.
func (d *Detector) DetectFrequencyAnomalies(expenses []core.Expense) []FrequencyAnomaly {
	counts := core.DailyCounts(expenses)
	if len(counts) == 0 {
		return nil
	}

	days := make([]float64, 0, len(counts))
	dates := sortedDays(counts)
	for _, day := range dates {
		days = append(days, float64(counts[day]))
	}

	mean := core.Mean(days)
	std := core.SampleStdDev(days)
	if std == 0 {
		return nil
	}

	var out []FrequencyAnomaly
	for _, day := range dates {
		count := counts[day]
		z := (float64(count) - mean) / std
		if z <= d.thresholdSigma {
			continue
		}
		severity := SeverityMedium
		if z > highSeveritySigma {
			severity = SeverityHigh
		}
		out = append(out, FrequencyAnomaly{
			Date:             day.Format("2006-01-02"),
			TransactionCount: count,
			ExpectedCount:    math.Round(mean*10) / 10,
			Severity:         severity,
			Message: fmt.Sprintf("Unusual number of transactions on %s: %d (expected ~%.0f)",
				day.Format("2006-01-02"), count, mean),
		})
	}
	return out
}

// BudgetStatus projects month end spending against a monthly budget.
type BudgetStatus struct {
	IsOverrunRisk         bool     `json:"is_overrun_risk"`
	TotalSpent            float64  `json:"total_spent"`
	MonthlyBudget         float64  `json:"monthly_budget"`
	RemainingBudget       float64  `json:"remaining_budget"`
	ProjectedTotal        float64  `json:"projected_total"`
	ProjectedOverage      float64  `json:"projected_overage"`
	PercentOverBudget     float64  `json:"percent_over_budget"`
	DaysRemaining         int      `json:"days_remaining"`
	RecommendedDailyLimit float64  `json:"recommended_daily_limit"`
	Severity              Severity `json:"severity"`
	Message               string   `json:"message"`
}

// DetectBudgetOverrun projects spending for the month of the latest
// record onto a simplified 30 day month and compares it against the
// budget. The month is anchored to the latest record's date, not wall
// clock time, so historical datasets evaluate consistently. An empty
// history returns a neutral in budget status.
func (d *Detector) DetectBudgetOverrun(expenses []core.Expense, monthlyBudget float64) (*BudgetStatus, error) {
	if monthlyBudget <= 0 {
		return nil, &ValidationError{Field: "monthly_budget", Reason: "must be positive"}
	}

	if len(expenses) == 0 {
		return &BudgetStatus{
			MonthlyBudget:         monthlyBudget,
			RemainingBudget:       monthlyBudget,
			DaysRemaining:         budgetMonthDays,
			RecommendedDailyLimit: core.Round2(monthlyBudget / budgetMonthDays),
			Severity:              SeverityLow,
			Message:               "Spending is within budget",
		}, nil
	}

	sorted := sortedByDate(expenses)
	latest := sorted[len(sorted)-1].Date

	var totalSpent float64
	for _, e := range sorted {
		if e.Date.Month() == latest.Month() && e.Date.Year() == latest.Year() {
			totalSpent += e.Amount.Float()
		}
	}

	daysPassed := latest.Day()
	dailyAverage := totalSpent / float64(daysPassed)
	projected := dailyAverage * budgetMonthDays

	status := &BudgetStatus{
		TotalSpent:      core.Round2(totalSpent),
		MonthlyBudget:   monthlyBudget,
		RemainingBudget: core.Round2(monthlyBudget - totalSpent),
		ProjectedTotal:  core.Round2(projected),
		DaysRemaining:   budgetMonthDays - daysPassed,
		Severity:        SeverityLow,
		Message:         "Spending is within budget",
	}
	if daysPassed < budgetMonthDays {
		status.RecommendedDailyLimit = core.Round2((monthlyBudget - totalSpent) / float64(budgetMonthDays-daysPassed))
	}

	if projected > monthlyBudget {
		percentOver := (projected - monthlyBudget) / monthlyBudget * 100
		status.IsOverrunRisk = true
		status.ProjectedOverage = core.Round2(projected - monthlyBudget)
		status.PercentOverBudget = core.Round2(percentOver)
		status.Message = fmt.Sprintf("On track to exceed budget by $%.2f", projected-monthlyBudget)
		switch {
		case percentOver > 20:
			status.Severity = SeverityHigh
		case percentOver > 10:
			status.Severity = SeverityMedium
		}
	}

	return status, nil
}

// AnomalyReport bundles every detector's findings.
type AnomalyReport struct {
	AmountAnomalies    []AmountAnomaly    `json:"amount_anomalies"`
	CategoryAnomalies  []CategoryAnomaly  `json:"category_anomalies"`
	FrequencyAnomalies []FrequencyAnomaly `json:"frequency_anomalies"`
	BudgetStatus       *BudgetStatus      `json:"budget_status"`
}

// ScanAll runs every detector over the history. BudgetStatus stays
// nil when no budget is supplied; a negative budget is rejected the
// same way DetectBudgetOverrun rejects it.
func (d *Detector) ScanAll(expenses []core.Expense, monthlyBudget float64) (*AnomalyReport, error) {
	if monthlyBudget < 0 {
		return nil, &ValidationError{Field: "monthly_budget", Reason: "must be positive"}
	}

	report := &AnomalyReport{
		AmountAnomalies:    d.DetectAmountAnomalies(expenses),
		CategoryAnomalies:  d.DetectCategoryAnomalies(expenses),
		FrequencyAnomalies: d.DetectFrequencyAnomalies(expenses),
	}
	if monthlyBudget > 0 {
		status, err := d.DetectBudgetOverrun(expenses, monthlyBudget)
		if err != nil {
			return nil, err
		}
		report.BudgetStatus = status
	}
	return report, nil
}

func sortedDays(counts map[time.Time]int) []time.Time {
	out := make([]time.Time, 0, len(counts))
	for day := range counts {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// seenCategories lists the categories present in expenses in first
// appearance order.
func seenCategories(expenses []core.Expense) []core.Category {
	var out []core.Category
	seen := make(map[core.Category]bool)
	for _, e := range expenses {
		if !seen[e.Category] {
			seen[e.Category] = true
			out = append(out, e.Category)
		}
	}
	return out
}
