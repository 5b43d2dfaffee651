package budgets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountSource resolves accounts and their ledger balances.
type AccountSource interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
	List(ctx context.Context, tenantID int64, filter accounts.ListFilter) ([]accounts.Account, error)
	GetBalance(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, error)
}

// CalendarSource resolves fiscal years.
type CalendarSource interface {
	GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error)
}

// AuditPort records budget changes.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service tracks budget allocations against actual account balances.
type Service struct {
	repo     Repository
	accounts AccountSource
	calendar CalendarSource
	audit    AuditPort
	now      func() time.Time
}

// NewService builds the service. audit may be nil.
func NewService(repo Repository, accts AccountSource, calendar CalendarSource, audit AuditPort) *Service {
	return &Service{repo: repo, accounts: accts, calendar: calendar, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create stores a budget line and computes its initial actual amount.
func (s *Service) Create(ctx context.Context, in CreateInput) (BudgetLine, error) {
	if err := in.Validate(); err != nil {
		return BudgetLine{}, err
	}
	fy, err := s.fiscalYear(ctx, in.TenantID, in.FiscalYearID)
	if err != nil {
		return BudgetLine{}, err
	}
	acc, err := s.accounts.Get(ctx, in.AccountID)
	if err != nil {
		return BudgetLine{}, err
	}
	if acc.TenantID != in.TenantID {
		return BudgetLine{}, fmt.Errorf("%w: %d", shared.ErrAccountNotFound, in.AccountID)
	}
	actual, err := s.actual(ctx, fy, acc.ID)
	if err != nil {
		return BudgetLine{}, err
	}
	budgeted := shared.Round2(in.BudgetedAmount)
	line, err := s.repo.Insert(ctx, BudgetLine{
		TenantID:       in.TenantID,
		FiscalYearID:   fy.ID,
		AccountID:      acc.ID,
		BudgetedAmount: budgeted,
		ActualAmount:   actual,
		Variance:       budgeted.Sub(actual),
		Notes:          strings.TrimSpace(in.Notes),
		CreatedBy:      in.ActorID,
	})
	if err != nil {
		return BudgetLine{}, err
	}
	s.record(ctx, in.ActorID, "budget.create", line.ID, map[string]any{
		"fiscal_year_id": fy.ID,
		"account_code":   acc.Code,
		"budgeted":       budgeted.StringFixed(2),
	})
	return line, nil
}

// Get returns a budget line.
func (s *Service) Get(ctx context.Context, id int64) (BudgetLine, error) {
	return s.repo.Get(ctx, id)
}

// List returns the tenant's budget lines, optionally for one fiscal year.
func (s *Service) List(ctx context.Context, tenantID, fiscalYearID int64) ([]BudgetLine, error) {
	if tenantID == 0 {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidInput)
	}
	return s.repo.List(ctx, tenantID, fiscalYearID)
}

// Recalculate refreshes the actual amount of a line from its account balance
// as of the fiscal year end; variance is budgeted minus actual.
func (s *Service) Recalculate(ctx context.Context, lineID int64) (BudgetLine, error) {
	line, err := s.repo.Get(ctx, lineID)
	if err != nil {
		return BudgetLine{}, err
	}
	fy, err := s.fiscalYear(ctx, line.TenantID, line.FiscalYearID)
	if err != nil {
		return BudgetLine{}, err
	}
	return s.recalculate(ctx, fy, line)
}

// RecalculateFiscalYear refreshes every budget line of a fiscal year.
func (s *Service) RecalculateFiscalYear(ctx context.Context, tenantID, fiscalYearID int64) ([]BudgetLine, error) {
	fy, err := s.fiscalYear(ctx, tenantID, fiscalYearID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.List(ctx, tenantID, fiscalYearID)
	if err != nil {
		return nil, err
	}
	out := make([]BudgetLine, 0, len(lines))
	for _, line := range lines {
		updated, err := s.recalculate(ctx, fy, line)
		if err != nil {
			return nil, err
		}
		out = append(out, updated)
	}
	return out, nil
}

// VarianceReport recalculates a fiscal year and compares budgets with actuals.
func (s *Service) VarianceReport(ctx context.Context, tenantID, fiscalYearID int64, th Thresholds) (VarianceReport, error) {
	lines, err := s.RecalculateFiscalYear(ctx, tenantID, fiscalYearID)
	if err != nil {
		return VarianceReport{}, err
	}
	list, err := s.accounts.List(ctx, tenantID, accounts.ListFilter{})
	if err != nil {
		return VarianceReport{}, err
	}
	byID := make(map[int64]accounts.Account, len(list))
	for _, acc := range list {
		byID[acc.ID] = acc
	}
	report := ComputeVariance(lines, byID, th)
	report.FiscalYearID = fiscalYearID
	return report, nil
}

func (s *Service) recalculate(ctx context.Context, fy periods.FiscalYear, line BudgetLine) (BudgetLine, error) {
	actual, err := s.actual(ctx, fy, line.AccountID)
	if err != nil {
		return BudgetLine{}, err
	}
	line.ActualAmount = actual
	line.Variance = line.BudgetedAmount.Sub(actual)
	line.UpdatedAt = s.now()
	if err := s.repo.UpdateActual(ctx, line.ID, line.ActualAmount, line.Variance, line.UpdatedAt); err != nil {
		return BudgetLine{}, err
	}
	return line, nil
}

func (s *Service) actual(ctx context.Context, fy periods.FiscalYear, accountID int64) (decimal.Decimal, error) {
	end := shared.DateOnly(fy.EndDate)
	balance, err := s.accounts.GetBalance(ctx, accountID, &end)
	if err != nil {
		return decimal.Zero, err
	}
	return shared.Round2(balance), nil
}

func (s *Service) fiscalYear(ctx context.Context, tenantID, id int64) (periods.FiscalYear, error) {
	fy, err := s.calendar.GetFiscalYear(ctx, id)
	if err != nil {
		return periods.FiscalYear{}, err
	}
	if fy.TenantID != tenantID {
		return periods.FiscalYear{}, fmt.Errorf("%w: %d", shared.ErrFiscalYearNotFound, id)
	}
	return fy, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "budget_line",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
