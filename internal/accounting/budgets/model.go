package budgets

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// BudgetLine allocates an amount to an account for one fiscal year.
type BudgetLine struct {
	ID             int64           `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	FiscalYearID   int64           `json:"fiscal_year_id"`
	AccountID      int64           `json:"account_id"`
	BudgetedAmount decimal.Decimal `json:"budgeted_amount"`
	ActualAmount   decimal.Decimal `json:"actual_amount"`
	Variance       decimal.Decimal `json:"variance"`
	Notes          string          `json:"notes"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreateInput captures a new budget allocation.
type CreateInput struct {
	TenantID       int64
	FiscalYearID   int64
	AccountID      int64
	BudgetedAmount decimal.Decimal
	Notes          string
	ActorID        int64
}

// Validate ensures correctness.
func (in CreateInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant required", shared.ErrInvalidInput)
	}
	if in.FiscalYearID == 0 || in.AccountID == 0 {
		return fmt.Errorf("%w: fiscal year and account required", shared.ErrInvalidInput)
	}
	if in.BudgetedAmount.IsNegative() {
		return fmt.Errorf("%w: budgeted amount must not be negative", shared.ErrInvalidInput)
	}
	if len(strings.TrimSpace(in.Notes)) > 2000 {
		return fmt.Errorf("%w: notes too long", shared.ErrInvalidInput)
	}
	return nil
}

// Thresholds flag variance rows whose absolute variance or percentage reaches
// the configured value. Nil disables the check.
type Thresholds struct {
	Amount  *decimal.Decimal
	Percent *decimal.Decimal
}

// VarianceRow compares a budget line against its account's actual balance.
type VarianceRow struct {
	LineID      int64           `json:"line_id"`
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Budgeted    decimal.Decimal `json:"budgeted"`
	Actual      decimal.Decimal `json:"actual"`
	Variance    decimal.Decimal `json:"variance"`
	VariancePct decimal.Decimal `json:"variance_pct"`
	Flagged     bool            `json:"flagged"`
}

// VarianceReport lists variance rows of a fiscal year, largest first.
type VarianceReport struct {
	FiscalYearID  int64           `json:"fiscal_year_id"`
	Rows          []VarianceRow   `json:"rows"`
	TotalBudgeted decimal.Decimal `json:"total_budgeted"`
	TotalActual   decimal.Decimal `json:"total_actual"`
	TotalVariance decimal.Decimal `json:"total_variance"`
	FlaggedCount  int             `json:"flagged_count"`
}
