package budgets

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

func TestComputeVariance(t *testing.T) {
	lines := []BudgetLine{
		{ID: 1, AccountID: 10, BudgetedAmount: decimal.RequireFromString("1000"), ActualAmount: decimal.RequireFromString("1500")},
		{ID: 2, AccountID: 11, BudgetedAmount: decimal.RequireFromString("800"), ActualAmount: decimal.RequireFromString("780")},
		{ID: 3, AccountID: 12, BudgetedAmount: decimal.Zero, ActualAmount: decimal.RequireFromString("40")},
	}
	byID := map[int64]accounts.Account{
		10: {ID: 10, Code: "5000", Name: "Salaries"},
		11: {ID: 11, Code: "5100", Name: "Rent"},
		12: {ID: 12, Code: "5200", Name: "Utilities"},
	}
	amount := decimal.NewFromInt(200)

	report := ComputeVariance(lines, byID, Thresholds{Amount: &amount})
	require.Len(t, report.Rows, 3)

	top := report.Rows[0]
	assert.Equal(t, "5000", top.AccountCode)
	assert.True(t, top.Variance.Equal(decimal.NewFromInt(-500)))
	assert.True(t, top.VariancePct.Equal(decimal.NewFromInt(-50)))
	assert.True(t, top.Flagged)

	assert.Equal(t, "5200", report.Rows[1].AccountCode)
	assert.True(t, report.Rows[1].VariancePct.IsZero(), "zero budget has no percentage")
	assert.False(t, report.Rows[1].Flagged)

	assert.Equal(t, 1, report.FlaggedCount)
	assert.True(t, report.TotalBudgeted.Equal(decimal.NewFromInt(1800)))
	assert.True(t, report.TotalActual.Equal(decimal.NewFromInt(2320)))
	assert.True(t, report.TotalVariance.Equal(decimal.NewFromInt(-520)))
}

func TestComputeVariancePercentThreshold(t *testing.T) {
	lines := []BudgetLine{
		{ID: 1, AccountID: 1, BudgetedAmount: decimal.NewFromInt(100), ActualAmount: decimal.NewFromInt(90)},
	}
	pct := decimal.NewFromInt(10)
	report := ComputeVariance(lines, nil, Thresholds{Percent: &pct})
	require.Len(t, report.Rows, 1)
	assert.True(t, report.Rows[0].VariancePct.Equal(decimal.NewFromInt(10)))
	assert.True(t, report.Rows[0].Flagged)

	report = ComputeVariance(lines, nil, Thresholds{})
	assert.False(t, report.Rows[0].Flagged)
}
