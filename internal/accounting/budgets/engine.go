package budgets

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

var hundred = decimal.NewFromInt(100)

// ComputeVariance joins budget lines with their accounts and applies threshold
// flags. Lines whose account is unknown keep an empty code and name.
func ComputeVariance(lines []BudgetLine, accountsByID map[int64]accounts.Account, th Thresholds) VarianceReport {
	report := VarianceReport{TotalBudgeted: decimal.Zero, TotalActual: decimal.Zero, TotalVariance: decimal.Zero}
	rows := make([]VarianceRow, 0, len(lines))
	for _, line := range lines {
		acc := accountsByID[line.AccountID]
		row := VarianceRow{
			LineID:      line.ID,
			AccountID:   line.AccountID,
			AccountCode: acc.Code,
			AccountName: acc.Name,
			Budgeted:    shared.Round2(line.BudgetedAmount),
			Actual:      shared.Round2(line.ActualAmount),
			VariancePct: decimal.Zero,
		}
		row.Variance = row.Budgeted.Sub(row.Actual)
		if !row.Budgeted.IsZero() {
			row.VariancePct = shared.Round2(row.Variance.Div(row.Budgeted.Abs()).Mul(hundred))
		}
		row.Flagged = exceedsThreshold(row, th)
		if row.Flagged {
			report.FlaggedCount++
		}
		report.TotalBudgeted = report.TotalBudgeted.Add(row.Budgeted)
		report.TotalActual = report.TotalActual.Add(row.Actual)
		report.TotalVariance = report.TotalVariance.Add(row.Variance)
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		vi, vj := rows[i].Variance.Abs(), rows[j].Variance.Abs()
		if !vi.Equal(vj) {
			return vi.GreaterThan(vj)
		}
		return rows[i].AccountCode < rows[j].AccountCode
	})
	report.Rows = rows
	return report
}

func exceedsThreshold(row VarianceRow, th Thresholds) bool {
	if th.Amount != nil && row.Variance.Abs().GreaterThanOrEqual(*th.Amount) {
		return true
	}
	if th.Percent != nil && row.VariancePct.Abs().GreaterThanOrEqual(*th.Percent) {
		return true
	}
	return false
}
