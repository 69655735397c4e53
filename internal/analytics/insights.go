package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"smartbudget/internal/core"
	"smartbudget/internal/log"
)

// Rule based insight generation. Everything here is derived fresh from
// the expense history on each call; no state is kept between requests.

var needsCategories = map[core.Category]bool{
	core.CategoryBills:      true,
	core.CategoryFood:       true,
	core.CategoryHealthcare: true,
	core.CategoryTransport:  true,
}

// nationalAverages are monthly per category spending benchmarks in
// dollars. Categories without an entry compare against 100.
var nationalAverages = map[core.Category]float64{
	core.CategoryFood:          550,
	core.CategoryTransport:     350,
	core.CategoryShopping:      200,
	core.CategoryBills:         400,
	core.CategoryEntertainment: 150,
	core.CategoryHealthcare:    300,
	core.CategoryOther:         100,
}

const defaultBenchmark = 100

// Generator produces spending insights, budget recommendations, and
// health scores.
type Generator struct {
	logger *log.Logger
}

func NewGenerator(logger *log.Logger) *Generator {
	return &Generator{logger: logger}
}

// CategoryStats summarizes one category's spending.
type CategoryStats struct {
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// SpendingPatterns breaks the history down along several axes.
type SpendingPatterns struct {
	DayOfWeekSpending   map[string]float64       `json:"day_of_week_spending"`
	PeriodSpending      map[string]float64       `json:"period_spending"`
	PaymentDistribution map[string]int           `json:"payment_distribution"`
	CategoryBreakdown   map[string]CategoryStats `json:"category_breakdown"`
}

// AnalyzePatterns groups spending by weekday, by early, mid, and late
// month periods, by payment method, and by category.
func (g *Generator) AnalyzePatterns(expenses []core.Expense) *SpendingPatterns {
	patterns := &SpendingPatterns{
		DayOfWeekSpending:   make(map[string]float64),
		PeriodSpending:      make(map[string]float64),
		PaymentDistribution: make(map[string]int),
		CategoryBreakdown:   make(map[string]CategoryStats),
	}

	sums := make(map[core.Category]float64)
	counts := make(map[core.Category]int)

	for _, e := range expenses {
		amount := e.Amount.Float()

		patterns.DayOfWeekSpending[e.Date.Weekday().String()] += amount
		patterns.PeriodSpending[monthPeriod(e.Date.Day())] += amount
		patterns.PaymentDistribution[string(e.PaymentType)]++

		sums[e.Category] += amount
		counts[e.Category]++
	}

	for cat, total := range sums {
		patterns.CategoryBreakdown[string(cat)] = CategoryStats{
			Total:   core.Round2(total),
			Count:   counts[cat],
			Average: core.Round2(total / float64(counts[cat])),
		}
	}
	return patterns
}

func monthPeriod(day int) string {
	switch {
	case day <= 10:
		return "Early"
	case day <= 20:
		return "Mid"
	default:
		return "Late"
	}
}

// SavingOpportunity is a concrete, quantified suggestion to cut spending.
type SavingOpportunity struct {
	Type             string  `json:"type"`
	Category         string  `json:"category"`
	CurrentMonthly   float64 `json:"current_monthly"`
	PotentialSavings float64 `json:"potential_savings"`
	Suggestion       string  `json:"suggestion"`
	Impact           string  `json:"impact"`
}

// FindSavingOpportunities applies four heuristics to the history:
// many small purchases in one category, high recurring bills, weekend
// overspending, and a single category dominating the total. Results
// sort by potential savings.
func (g *Generator) FindSavingOpportunities(expenses []core.Expense) []SavingOpportunity {
	var out []SavingOpportunity

	// Frequent purchases under $20.
	smallCounts := make(map[core.Category]int)
	smallTotals := make(map[core.Category]float64)
	for _, e := range expenses {
		if amount := e.Amount.Float(); amount < 20 {
			smallCounts[e.Category]++
			smallTotals[e.Category] += amount
		}
	}
	for _, category := range seenCategories(expenses) {
		if smallCounts[category] <= 15 {
			continue
		}
		total := smallTotals[category]
		savings := total * 0.3
		impact := "low"
		if savings > 50 {
			impact = "medium"
		}
		out = append(out, SavingOpportunity{
			Type:             "frequent_small_purchases",
			Category:         string(category),
			CurrentMonthly:   core.Round2(total),
			PotentialSavings: core.Round2(savings),
			Suggestion:       fmt.Sprintf("Reduce %s expenses by bringing lunch/coffee from home", category),
			Impact:           impact,
		})
	}

	// Expensive recurring bills.
	var billAmounts []float64
	for _, e := range expenses {
		if e.Category == core.CategoryBills {
			billAmounts = append(billAmounts, e.Amount.Float())
		}
	}
	if len(billAmounts) > 0 {
		if avg := core.Mean(billAmounts); avg > 100 {
			out = append(out, SavingOpportunity{
				Type:             "subscription_review",
				Category:         string(core.CategoryBills),
				CurrentMonthly:   core.Round2(core.Sum(billAmounts)),
				PotentialSavings: core.Round2(avg * 0.15),
				Suggestion:       "Review subscriptions and negotiate better rates for internet/phone",
				Impact:           "high",
			})
		}
	}

	// Weekend overspending, averaged per distinct spending day.
	var weekendTotal, weekdayTotal float64
	weekendDays := make(map[string]bool)
	weekdayDays := make(map[string]bool)
	for _, e := range expenses {
		day := e.Date.Format("2006-01-02")
		if e.IsWeekend() {
			weekendTotal += e.Amount.Float()
			weekendDays[day] = true
		} else {
			weekdayTotal += e.Amount.Float()
			weekdayDays[day] = true
		}
	}
	if len(weekendDays) > 0 && len(weekdayDays) > 0 {
		weekendAvg := weekendTotal / float64(len(weekendDays))
		weekdayAvg := weekdayTotal / float64(len(weekdayDays))
		if weekendAvg > weekdayAvg*1.5 {
			// Eight weekend days a month, assuming a 40% cut is realistic.
			savings := (weekendAvg - weekdayAvg) * 8 * 0.4
			out = append(out, SavingOpportunity{
				Type:             "weekend_spending",
				Category:         string(core.CategoryEntertainment),
				CurrentMonthly:   core.Round2(weekendTotal),
				PotentialSavings: core.Round2(savings),
				Suggestion:       "Plan weekend activities in advance to reduce impulse spending",
				Impact:           "medium",
			})
		}
	}

	// One category dominating total spending.
	totals := core.CategoryTotals(expenses)
	if len(totals) > 0 {
		topCategory, topAmount := dominantCategory(totals)
		var grand float64
		for _, v := range totals {
			grand += v
		}
		if topAmount > grand*0.35 {
			out = append(out, SavingOpportunity{
				Type:             "category_overweight",
				Category:         string(topCategory),
				CurrentMonthly:   core.Round2(topAmount),
				PotentialSavings: core.Round2(topAmount * 0.20),
				Suggestion:       fmt.Sprintf("Focus on reducing %s expenses - consider bulk buying or alternatives", topCategory),
				Impact:           "high",
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PotentialSavings > out[j].PotentialSavings
	})
	return out
}

// dominantCategory returns the category with the highest total. Ties
// resolve alphabetically so results are stable.
func dominantCategory(totals map[core.Category]float64) (core.Category, float64) {
	var best core.Category
	bestTotal := math.Inf(-1)
	for cat, total := range totals {
		if total > bestTotal || (total == bestTotal && cat < best) {
			best, bestTotal = cat, total
		}
	}
	return best, bestTotal
}

// BudgetAdjustment asks the user to move spending toward the 50/30/20
// allocation.
type BudgetAdjustment struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// CurrentAllocation is the observed needs and wants split.
type CurrentAllocation struct {
	Needs       float64 `json:"needs"`
	Wants       float64 `json:"wants"`
	ActualNeeds float64 `json:"actual_needs"`
	ActualWants float64 `json:"actual_wants"`
}

// RecommendedAmounts are dollar targets derived from income.
type RecommendedAmounts struct {
	NeedsBudget float64 `json:"needs_budget"`
	WantsBudget float64 `json:"wants_budget"`
	SavingsGoal float64 `json:"savings_goal"`
}

// BudgetRecommendations compares actual allocation against the
// 50/30/20 rule.
type BudgetRecommendations struct {
	CurrentAllocation     CurrentAllocation   `json:"current_allocation"`
	RecommendedAllocation map[string]int      `json:"recommended_allocation"`
	AdjustmentsNeeded     []BudgetAdjustment  `json:"adjustments_needed"`
	RecommendedAmounts    *RecommendedAmounts `json:"recommended_amounts,omitempty"`
}

// RecommendBudget classifies spending into needs (Bills, Food,
// Healthcare, Transport) and wants (everything else) and measures the
// split against the 50/30/20 rule. When income is positive, absolute
// dollar targets are included and overspending flagged. A zero income
// means income is unknown; negative income is rejected.
func (g *Generator) RecommendBudget(expenses []core.Expense, income float64) (*BudgetRecommendations, error) {
	if income < 0 {
		return nil, &ValidationError{Field: "income", Reason: "must be positive"}
	}

	var needsTotal, wantsTotal, total float64
	for _, e := range expenses {
		amount := e.Amount.Float()
		total += amount
		if needsCategories[e.Category] {
			needsTotal += amount
		} else {
			wantsTotal += amount
		}
	}

	var needsPct, wantsPct float64
	if total > 0 {
		needsPct = needsTotal / total * 100
		wantsPct = wantsTotal / total * 100
	}

	rec := &BudgetRecommendations{
		CurrentAllocation: CurrentAllocation{
			Needs:       round1(needsPct),
			Wants:       round1(wantsPct),
			ActualNeeds: core.Round2(needsTotal),
			ActualWants: core.Round2(wantsTotal),
		},
		RecommendedAllocation: map[string]int{"needs": 50, "wants": 30, "savings": 20},
		AdjustmentsNeeded:     []BudgetAdjustment{},
	}

	if income > 0 {
		recommendedNeeds := income * 0.50
		recommendedWants := income * 0.30

		if needsTotal > recommendedNeeds {
			rec.AdjustmentsNeeded = append(rec.AdjustmentsNeeded, BudgetAdjustment{
				Category: "Needs",
				Message:  fmt.Sprintf("Reduce needs spending by $%.2f", needsTotal-recommendedNeeds),
				Priority: "high",
			})
		}
		if wantsTotal > recommendedWants {
			rec.AdjustmentsNeeded = append(rec.AdjustmentsNeeded, BudgetAdjustment{
				Category: "Wants",
				Message:  fmt.Sprintf("Reduce discretionary spending by $%.2f", wantsTotal-recommendedWants),
				Priority: "medium",
			})
		}
		rec.RecommendedAmounts = &RecommendedAmounts{
			NeedsBudget: core.Round2(recommendedNeeds),
			WantsBudget: core.Round2(recommendedWants),
			SavingsGoal: core.Round2(income * 0.20),
		}
	}

	return rec, nil
}

// Tip is one personalized suggestion.
type Tip struct {
	Category        string `json:"category"`
	Tip             string `json:"tip"`
	PotentialImpact string `json:"potential_impact"`
	Difficulty      string `json:"difficulty"`
}

const maxTips = 5

// PersonalizedTips evaluates eight behavioral rules against the
// history and returns up to five tips in rule order.
func (g *Generator) PersonalizedTips(expenses []core.Expense) []Tip {
	totals := core.CategoryTotals(expenses)
	counts := make(map[core.Category]int)
	var cashCount int
	var grand float64
	for _, e := range expenses {
		counts[e.Category]++
		grand += e.Amount.Float()
		if e.PaymentType == core.PaymentCash {
			cashCount++
		}
	}

	var tips []Tip

	if counts[core.CategoryFood] > 20 {
		tips = append(tips, Tip{
			Category:        string(core.CategoryFood),
			Tip:             "Meal prep on Sundays to reduce dining out during the week",
			PotentialImpact: fmt.Sprintf("Save up to $%.2f/month", totals[core.CategoryFood]*0.25),
			Difficulty:      "easy",
		})
	}

	if len(expenses) > 0 && float64(cashCount) > float64(len(expenses))*0.3 {
		tips = append(tips, Tip{
			Category:        "Payment",
			Tip:             "Use cashback credit cards for purchases to earn 1-3% back",
			PotentialImpact: fmt.Sprintf("Earn $%.2f/month in rewards", grand*0.02),
			Difficulty:      "easy",
		})
	}

	// Bulk buying kicks in for the most frequent of Food and
	// Healthcare, whichever is bought more often.
	bulkCandidates := []core.Category{core.CategoryFood, core.CategoryHealthcare}
	sort.SliceStable(bulkCandidates, func(i, j int) bool {
		return counts[bulkCandidates[i]] > counts[bulkCandidates[j]]
	})
	for _, cat := range bulkCandidates {
		if counts[cat] > 15 {
			tips = append(tips, Tip{
				Category:        string(cat),
				Tip:             fmt.Sprintf("Buy %s items in bulk to save 10-15%%", strings.ToLower(string(cat))),
				PotentialImpact: fmt.Sprintf("Save $%.2f/month", totals[cat]*0.12),
				Difficulty:      "medium",
			})
			break
		}
	}

	tips = append(tips, Tip{
		Category:        "Savings",
		Tip:             "Set up automatic transfers to savings account on payday",
		PotentialImpact: "Build emergency fund and reach goals faster",
		Difficulty:      "easy",
	})

	if counts[core.CategoryShopping] > 5 {
		tips = append(tips, Tip{
			Category:        string(core.CategoryShopping),
			Tip:             "Use price comparison apps before major purchases",
			PotentialImpact: fmt.Sprintf("Save up to $%.2f/month", totals[core.CategoryShopping]*0.15),
			Difficulty:      "easy",
		})
	}

	if counts[core.CategoryBills] > 0 && totals[core.CategoryBills] > 200 {
		tips = append(tips, Tip{
			Category:        string(core.CategoryBills),
			Tip:             "Switch to LED bulbs and unplug devices to reduce electricity bills",
			PotentialImpact: fmt.Sprintf("Save up to $%.2f/month", totals[core.CategoryBills]*0.10),
			Difficulty:      "easy",
		})
	}

	if counts[core.CategoryTransport] > 10 {
		tips = append(tips, Tip{
			Category:        string(core.CategoryTransport),
			Tip:             "Consider carpooling or public transport for daily commute",
			PotentialImpact: fmt.Sprintf("Save up to $%.2f/month", totals[core.CategoryTransport]*0.30),
			Difficulty:      "medium",
		})
	}

	if counts[core.CategoryEntertainment] > 8 {
		tips = append(tips, Tip{
			Category:        string(core.CategoryEntertainment),
			Tip:             "Use free entertainment options like libraries, parks, and community events",
			PotentialImpact: fmt.Sprintf("Save up to $%.2f/month", totals[core.CategoryEntertainment]*0.40),
			Difficulty:      "easy",
		})
	}

	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}
	return tips
}

// HealthScoreReport grades overall financial health from 0 to 100.
type HealthScoreReport struct {
	TotalScore      float64            `json:"total_score"`
	HealthLevel     string             `json:"health_level"`
	Color           string             `json:"color"`
	Components      map[string]float64 `json:"components"`
	Recommendations []string           `json:"recommendations"`
}

// HealthScore combines four sub scores: spending consistency (0-25),
// budget adherence (0-25), savings rate (0-30), and expense diversity
// (0-20). A zero income or savings figure means the value is unknown
// and scores the neutral default for its component.
func (g *Generator) HealthScore(expenses []core.Expense, income, savings float64) (*HealthScoreReport, error) {
	if income < 0 {
		return nil, &ValidationError{Field: "income", Reason: "must be positive"}
	}
	if savings < 0 {
		return nil, &ValidationError{Field: "savings", Reason: "must be positive"}
	}

	components := make(map[string]float64, 4)

	// Consistency penalizes a volatile daily spend.
	daily := core.DailyTotals(expenses)
	consistency := 15.0
	if len(daily) > 0 {
		sums := make([]float64, 0, len(daily))
		for _, v := range daily {
			sums = append(sums, v)
		}
		if mean := core.Mean(sums); mean > 0 {
			cv := core.SampleStdDev(sums) / mean
			consistency = math.Max(0, 25-cv*10)
		}
	}
	components["spending_consistency"] = core.Round2(consistency)

	var grand float64
	for _, e := range expenses {
		grand += e.Amount.Float()
	}

	adherence := 15.0
	if income > 0 {
		adherence = math.Max(0, 25-(grand/income)*20)
	}
	components["budget_adherence"] = core.Round2(adherence)

	savingsScore := 10.0
	if income > 0 && savings > 0 {
		savingsScore = math.Min(30, savings/income*100)
	}
	components["savings_rate"] = core.Round2(savingsScore)

	// Diversity penalizes one category dominating.
	totals := core.CategoryTotals(expenses)
	diversity := 10.0
	if len(totals) > 0 {
		_, maxTotal := dominantCategory(totals)
		maxPct := maxTotal / grand
		diversity = math.Max(0, 20-maxPct*30)
	}
	components["expense_diversity"] = core.Round2(diversity)

	total := components["spending_consistency"] + components["budget_adherence"] +
		components["savings_rate"] + components["expense_diversity"]

	level, color := healthLevel(total)

	return &HealthScoreReport{
		TotalScore:      round1(total),
		HealthLevel:     level,
		Color:           color,
		Components:      components,
		Recommendations: scoreRecommendations(components),
	}, nil
}

func healthLevel(score float64) (level, color string) {
	switch {
	case score >= 80:
		return "Excellent", "#22c55e"
	case score >= 60:
		return "Good", "#3b82f6"
	case score >= 40:
		return "Fair", "#FFA500"
	default:
		return "Needs Improvement", "#D2042D"
	}
}

func scoreRecommendations(components map[string]float64) []string {
	var out []string
	if components["spending_consistency"] < 15 {
		out = append(out, "Work on maintaining consistent daily spending")
	}
	if components["budget_adherence"] < 15 {
		out = append(out, "Reduce overall expenses to improve budget adherence")
	}
	if components["savings_rate"] < 15 {
		out = append(out, "Increase your monthly savings rate")
	}
	if components["expense_diversity"] < 10 {
		out = append(out, "Balance spending across different categories")
	}
	return out
}

// CategoryTrend reports a category whose monthly spending moved.
type CategoryTrend struct {
	Category      string  `json:"category"`
	ChangePercent float64 `json:"change_percent"`
}

// SpendingTrends summarizes how spending evolves month over month.
type SpendingTrends struct {
	MonthlySpending      map[string]float64 `json:"monthly_spending"`
	IncreasingCategories []CategoryTrend    `json:"increasing_categories"`
	DecreasingCategories []CategoryTrend    `json:"decreasing_categories"`
	StableCategories     []string           `json:"stable_categories"`
}

// IdentifyTrends buckets spending by calendar month and classifies
// each category by comparing the mean of its first half of months
// against its second half. A move beyond 15% either way counts as a
// trend; anything inside the band is stable.
func (g *Generator) IdentifyTrends(expenses []core.Expense) *SpendingTrends {
	sorted := sortedByDate(expenses)

	trends := &SpendingTrends{
		MonthlySpending:      make(map[string]float64),
		IncreasingCategories: []CategoryTrend{},
		DecreasingCategories: []CategoryTrend{},
		StableCategories:     []string{},
	}

	monthly := make(map[string]float64)
	byCategory := make(map[core.Category]map[string]float64)
	for _, e := range sorted {
		month := e.Date.Format("2006-01")
		monthly[month] += e.Amount.Float()
		if byCategory[e.Category] == nil {
			byCategory[e.Category] = make(map[string]float64)
		}
		byCategory[e.Category][month] += e.Amount.Float()
	}
	for month, total := range monthly {
		trends.MonthlySpending[month] = core.Round2(total)
	}

	for _, category := range seenCategories(sorted) {
		perMonth := byCategory[category]
		if len(perMonth) < 2 {
			continue
		}

		months := make([]string, 0, len(perMonth))
		for m := range perMonth {
			months = append(months, m)
		}
		sort.Strings(months)

		mid := len(months) / 2
		var firstSum, secondSum float64
		for _, m := range months[:mid] {
			firstSum += perMonth[m]
		}
		for _, m := range months[mid:] {
			secondSum += perMonth[m]
		}
		firstAvg := firstSum / float64(mid)
		secondAvg := secondSum / float64(len(months)-mid)

		switch {
		case firstAvg == 0:
			trends.StableCategories = append(trends.StableCategories, string(category))
		case secondAvg > firstAvg*1.15:
			trends.IncreasingCategories = append(trends.IncreasingCategories, CategoryTrend{
				Category:      string(category),
				ChangePercent: round1((secondAvg - firstAvg) / firstAvg * 100),
			})
		case secondAvg < firstAvg*0.85:
			trends.DecreasingCategories = append(trends.DecreasingCategories, CategoryTrend{
				Category:      string(category),
				ChangePercent: round1((secondAvg - firstAvg) / firstAvg * 100),
			})
		default:
			trends.StableCategories = append(trends.StableCategories, string(category))
		}
	}

	return trends
}

// CategoryComparison relates one category's spending to its benchmark.
type CategoryComparison struct {
	UserSpending      float64 `json:"user_spending"`
	AverageSpending   float64 `json:"average_spending"`
	Difference        float64 `json:"difference"`
	PercentDifference float64 `json:"percent_difference"`
	Status            string  `json:"status"`
}

// BenchmarkReport compares the user against national monthly averages.
type BenchmarkReport struct {
	CategoryComparisons  map[string]CategoryComparison `json:"category_comparisons"`
	TotalUserSpending    float64                       `json:"total_user_spending"`
	TotalAverageSpending float64                       `json:"total_average_spending"`
	OverallStatus        string                        `json:"overall_status"`
}

// CompareWithBenchmarks measures each category present in the history
// against its national monthly average.
func (g *Generator) CompareWithBenchmarks(expenses []core.Expense) *BenchmarkReport {
	totals := core.CategoryTotals(expenses)

	var grand, benchmarkTotal float64
	for _, v := range totals {
		grand += v
	}
	for _, v := range nationalAverages {
		benchmarkTotal += v
	}

	comparisons := make(map[string]CategoryComparison, len(totals))
	for cat, spent := range totals {
		benchmark := defaultBenchmark
		if b, ok := nationalAverages[cat]; ok {
			benchmark = int(b)
		}
		diff := spent - float64(benchmark)
		status := "below"
		if diff > 0 {
			status = "above"
		}
		comparisons[string(cat)] = CategoryComparison{
			UserSpending:      core.Round2(spent),
			AverageSpending:   float64(benchmark),
			Difference:        core.Round2(diff),
			PercentDifference: round1(diff / float64(benchmark) * 100),
			Status:            status,
		}
	}

	overall := "below_average"
	if grand > benchmarkTotal {
		overall = "above_average"
	}
	return &BenchmarkReport{
		CategoryComparisons:  comparisons,
		TotalUserSpending:    core.Round2(grand),
		TotalAverageSpending: benchmarkTotal,
		OverallStatus:        overall,
	}
}

// InsightsReport bundles the pattern, opportunity, tip, and trend
// sections into one payload.
type InsightsReport struct {
	Patterns      *SpendingPatterns   `json:"patterns"`
	Opportunities []SavingOpportunity `json:"opportunities"`
	Tips          []Tip               `json:"tips"`
	Trends        *SpendingTrends     `json:"trends"`
}

// Insights computes all four sections. Each section is isolated: a
// numeric failure in one degrades it to an empty value instead of
// failing the whole report, since these results are advisory.
func (g *Generator) Insights(expenses []core.Expense) *InsightsReport {
	report := &InsightsReport{
		Patterns: &SpendingPatterns{},
		Trends:   &SpendingTrends{},
	}

	g.section("patterns", func() { report.Patterns = g.AnalyzePatterns(expenses) })
	g.section("opportunities", func() { report.Opportunities = g.FindSavingOpportunities(expenses) })
	g.section("tips", func() { report.Tips = g.PersonalizedTips(expenses) })
	g.section("trends", func() { report.Trends = g.IdentifyTrends(expenses) })

	return report
}

// section runs fn and converts a panic into a logged ComputationError.
func (g *Generator) section(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := &ComputationError{Op: name, Err: fmt.Errorf("%v", r)}
			g.logger.Error("insight section failed", "section", name, "error", err)
		}
	}()
	fn()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
