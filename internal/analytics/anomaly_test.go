package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbudget/internal/core"
)

func TestDetectAmountAnomalies(t *testing.T) {
	base := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	var expenses []core.Expense
	for i := 0; i < 19; i++ {
		expenses = append(expenses, expenseOn(base.AddDate(0, 0, i), 10, core.CategoryFood, core.PaymentCash))
	}
	expenses = append(expenses, expenseOn(base.AddDate(0, 0, 19), 1000, core.CategoryShopping, core.PaymentCreditCard))

	d := NewDetector(2.5)
	anomalies := d.DetectAmountAnomalies(expenses)

	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, 1000.0, a.Amount)
	assert.Equal(t, string(core.CategoryShopping), a.Category)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.InDelta(t, 59.5, a.ExpectedAmount, 0.01)
	assert.InDelta(t, 940.5, a.Deviation, 0.01)
	assert.Contains(t, a.Message, "Unusual Shopping")
}

func TestDetectAmountAnomaliesSmallSample(t *testing.T) {
	base := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	expenses := []core.Expense{
		expenseOn(base, 10, core.CategoryFood, core.PaymentCash),
		expenseOn(base, 1000, core.CategoryFood, core.PaymentCash),
	}

	d := NewDetector(2.5)
	assert.Empty(t, d.DetectAmountAnomalies(expenses))
}

func TestDetectAmountAnomaliesDegenerateSeries(t *testing.T) {
	base := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	var expenses []core.Expense
	for i := 0; i < 15; i++ {
		expenses = append(expenses, expenseOn(base.AddDate(0, 0, i), 25, core.CategoryFood, core.PaymentCash))
	}

	d := NewDetector(2.5)
	assert.Empty(t, d.DetectAmountAnomalies(expenses))
}

func TestDetectCategoryAnomalies(t *testing.T) {
	latest := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)

	var expenses []core.Expense
	// Historical baseline: 20 Food purchases well before the window,
	// alternating amounts so the spread is nonzero.
	for i := 0; i < 20; i++ {
		amount := 10.0
		if i%2 == 1 {
			amount = 12
		}
		expenses = append(expenses, expenseOn(latest.AddDate(0, 0, -60+i), amount, core.CategoryFood, core.PaymentCash))
	}
	// Recent window: Food spending explodes.
	for i := 0; i < 3; i++ {
		expenses = append(expenses, expenseOn(latest.AddDate(0, 0, -i), 500, core.CategoryFood, core.PaymentCash))
	}

	d := NewDetector(2.5)
	anomalies := d.DetectCategoryAnomalies(expenses)

	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, string(core.CategoryFood), a.Category)
	assert.Equal(t, 1500.0, a.CurrentSpending)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Greater(t, a.PercentChange, 50.0)
	assert.Contains(t, a.Message, "increased")
}

func TestDetectCategoryAnomaliesNeedsBaseline(t *testing.T) {
	latest := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)

	// All records inside the recent window leave no baseline.
	var expenses []core.Expense
	for i := 0; i < 20; i++ {
		expenses = append(expenses, expenseOn(latest.AddDate(0, 0, -i), 500, core.CategoryFood, core.PaymentCash))
	}

	d := NewDetector(2.5)
	assert.Empty(t, d.DetectCategoryAnomalies(expenses))
}

func TestDetectFrequencyAnomalies(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	var expenses []core.Expense
	for i := 0; i < 30; i++ {
		expenses = append(expenses, expenseOn(base.AddDate(0, 0, i), 20, core.CategoryFood, core.PaymentCash))
	}
	spree := base.AddDate(0, 0, 30)
	for i := 0; i < 10; i++ {
		expenses = append(expenses, expenseOn(spree, 15, core.CategoryShopping, core.PaymentCreditCard))
	}

	d := NewDetector(2.5)
	anomalies := d.DetectFrequencyAnomalies(expenses)

	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, spree.Format("2006-01-02"), a.Date)
	assert.Equal(t, 10, a.TransactionCount)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.InDelta(t, 1.3, a.ExpectedCount, 0.01)
}

func TestDetectFrequencyAnomaliesUniformDays(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	var expenses []core.Expense
	for i := 0; i < 20; i++ {
		expenses = append(expenses, expenseOn(base.AddDate(0, 0, i), 20, core.CategoryFood, core.PaymentCash))
	}

	d := NewDetector(2.5)
	assert.Empty(t, d.DetectFrequencyAnomalies(expenses))
}

func TestDetectBudgetOverrun(t *testing.T) {
	// Ten days into June, $500 spent: projected $1500 on a $1000 budget.
	latest := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	var expenses []core.Expense
	for i := 0; i < 10; i++ {
		expenses = append(expenses, expenseOn(latest.AddDate(0, 0, -i), 50, core.CategoryFood, core.PaymentCash))
	}

	d := NewDetector(2.5)
	status, err := d.DetectBudgetOverrun(expenses, 1000)
	require.NoError(t, err)

	assert.True(t, status.IsOverrunRisk)
	assert.Equal(t, 500.0, status.TotalSpent)
	assert.Equal(t, 500.0, status.RemainingBudget)
	assert.Equal(t, 1500.0, status.ProjectedTotal)
	assert.Equal(t, 500.0, status.ProjectedOverage)
	assert.Equal(t, 50.0, status.PercentOverBudget)
	assert.Equal(t, 20, status.DaysRemaining)
	assert.Equal(t, 25.0, status.RecommendedDailyLimit)
	assert.Equal(t, SeverityHigh, status.Severity)
}

func TestDetectBudgetOverrunWithinBudget(t *testing.T) {
	latest := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	expenses := []core.Expense{
		expenseOn(latest, 100, core.CategoryFood, core.PaymentCash),
	}

	d := NewDetector(2.5)
	status, err := d.DetectBudgetOverrun(expenses, 1000)
	require.NoError(t, err)

	assert.False(t, status.IsOverrunRisk)
	assert.Equal(t, SeverityLow, status.Severity)
	assert.Equal(t, 0.0, status.PercentOverBudget)
	assert.Equal(t, "Spending is within budget", status.Message)
}

func TestDetectBudgetOverrunEmptyHistory(t *testing.T) {
	d := NewDetector(2.5)

	status, err := d.DetectBudgetOverrun(nil, 1000)
	require.NoError(t, err)

	assert.False(t, status.IsOverrunRisk)
	assert.Equal(t, 1000.0, status.RemainingBudget)
	assert.Equal(t, 0.0, status.TotalSpent)
	assert.Equal(t, 30, status.DaysRemaining)
}

func TestDetectBudgetOverrunInvalidBudget(t *testing.T) {
	d := NewDetector(2.5)

	_, err := d.DetectBudgetOverrun(nil, 0)
	var invalid *ValidationError
	assert.ErrorAs(t, err, &invalid)
}

func TestDetectBudgetOverrunIdempotent(t *testing.T) {
	latest := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	var expenses []core.Expense
	for i := 0; i < 10; i++ {
		expenses = append(expenses, expenseOn(latest.AddDate(0, 0, -i), 50, core.CategoryFood, core.PaymentCash))
	}

	d := NewDetector(2.5)
	first, err := d.DetectBudgetOverrun(expenses, 1000)
	require.NoError(t, err)
	second, err := d.DetectBudgetOverrun(expenses, 1000)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScanAll(t *testing.T) {
	base := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	var expenses []core.Expense
	for i := 0; i < 15; i++ {
		expenses = append(expenses, expenseOn(base.AddDate(0, 0, i), 30, core.CategoryFood, core.PaymentCash))
	}

	d := NewDetector(2.5)

	withBudget, err := d.ScanAll(expenses, 1000)
	require.NoError(t, err)
	assert.NotNil(t, withBudget.BudgetStatus)

	withoutBudget, err := d.ScanAll(expenses, 0)
	require.NoError(t, err)
	assert.Nil(t, withoutBudget.BudgetStatus)

	_, err = d.ScanAll(expenses, -100)
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "monthly_budget", invalid.Field)
}
