package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const recentEntryLimit = 10

// ConventionSource resolves the receivable account for the dashboard.
type ConventionSource interface {
	Conventions(ctx context.Context, tenantID int64, roles ...mappings.Role) (mappings.Conventions, error)
}

// Service builds financial statements from posted journal lines. It never mutates state.
type Service struct {
	repo        Repository
	conventions ConventionSource
	now         func() time.Time
}

// NewService constructs the report service. conventions may be nil.
func NewService(repo Repository, conventions ConventionSource) *Service {
	return &Service{repo: repo, conventions: conventions, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) fiscalYear(ctx context.Context, tenantID, fiscalYearID int64) (periods.FiscalYear, error) {
	fy, err := s.repo.GetFiscalYear(ctx, fiscalYearID)
	if err != nil {
		return periods.FiscalYear{}, err
	}
	if fy.TenantID != tenantID {
		return periods.FiscalYear{}, fmt.Errorf("%w: %d", shared.ErrFiscalYearNotFound, fiscalYearID)
	}
	return fy, nil
}

// balancesAsOf joins active accounts with their posted totals up to asOf.
func (s *Service) balancesAsOf(ctx context.Context, tenantID int64, filter accounts.ListFilter, from, to *time.Time) ([]AccountBalance, error) {
	filter.ActiveOnly = true
	list, err := s.repo.ListAccounts(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.PostedTotalsByAccount(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]AccountBalance, 0, len(list))
	for _, acc := range list {
		t := totals[acc.ID]
		out = append(out, AccountBalance{
			AccountID:   acc.ID,
			Code:        acc.Code,
			Name:        acc.Name,
			Type:        acc.Type,
			OpeningSide: acc.OpeningSide,
			Opening:     acc.OpeningBalance,
			Debit:       t.Debit,
			Credit:      t.Credit,
		})
	}
	return out, nil
}

func asOfOrYearEnd(fy periods.FiscalYear, asOf *time.Time) *time.Time {
	if asOf != nil {
		d := shared.DateOnly(*asOf)
		return &d
	}
	end := shared.DateOnly(fy.EndDate)
	return &end
}

// TrialBalance lists every active account with a nonzero balance as of asOf
// (the fiscal year end when nil).
func (s *Service) TrialBalance(ctx context.Context, tenantID, fiscalYearID int64, asOf *time.Time) (TrialBalance, error) {
	fy, err := s.fiscalYear(ctx, tenantID, fiscalYearID)
	if err != nil {
		return TrialBalance{}, err
	}
	cutoff := asOfOrYearEnd(fy, asOf)
	balances, err := s.balancesAsOf(ctx, tenantID, accounts.ListFilter{}, nil, cutoff)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(balances)
	tb.FiscalYearID = fy.ID
	tb.AsOf = cutoff
	return tb, nil
}

// BalanceSheet partitions asset, liability and equity balances as of asOf.
func (s *Service) BalanceSheet(ctx context.Context, tenantID, fiscalYearID int64, asOf *time.Time) (BalanceSheet, error) {
	fy, err := s.fiscalYear(ctx, tenantID, fiscalYearID)
	if err != nil {
		return BalanceSheet{}, err
	}
	cutoff := asOfOrYearEnd(fy, asOf)
	balances, err := s.balancesAsOf(ctx, tenantID, accounts.ListFilter{}, nil, cutoff)
	if err != nil {
		return BalanceSheet{}, err
	}
	bs := BuildBalanceSheet(balances)
	bs.FiscalYearID = fy.ID
	bs.AsOf = cutoff
	return bs, nil
}

// IncomeStatement sums revenue and expense movements of posted entries dated
// within [start, end], defaulting to the fiscal year bounds.
func (s *Service) IncomeStatement(ctx context.Context, tenantID, fiscalYearID int64, start, end *time.Time) (IncomeStatement, error) {
	fy, err := s.fiscalYear(ctx, tenantID, fiscalYearID)
	if err != nil {
		return IncomeStatement{}, err
	}
	from, to := shared.DateOnly(fy.StartDate), shared.DateOnly(fy.EndDate)
	if start != nil {
		from = shared.DateOnly(*start)
	}
	if end != nil {
		to = shared.DateOnly(*end)
	}
	if from.After(to) {
		return IncomeStatement{}, fmt.Errorf("%w: %s > %s", shared.ErrInvalidDateRange, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	movements, err := s.balancesAsOf(ctx, tenantID, accounts.ListFilter{
		Types: []accounts.AccountType{accounts.AccountTypeRevenue, accounts.AccountTypeExpense},
	}, &from, &to)
	if err != nil {
		return IncomeStatement{}, err
	}
	is := BuildIncomeStatement(movements)
	is.FiscalYearID = fy.ID
	is.Start, is.End = from, to
	return is, nil
}

// Ledger lists posted lines of an account within [start, end]. The opening
// balance brings forward everything posted before start.
func (s *Service) Ledger(ctx context.Context, tenantID, accountID int64, start, end *time.Time) (Ledger, error) {
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return Ledger{}, err
	}
	if acc.TenantID != tenantID {
		return Ledger{}, fmt.Errorf("%w: %d", shared.ErrAccountNotFound, accountID)
	}
	var from, to *time.Time
	if start != nil {
		d := shared.DateOnly(*start)
		from = &d
	}
	if end != nil {
		d := shared.DateOnly(*end)
		to = &d
	}
	if from != nil && to != nil && from.After(*to) {
		return Ledger{}, fmt.Errorf("%w: %s > %s", shared.ErrInvalidDateRange, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	opening := acc.Balance(accounts.Totals{Debit: decimal.Zero, Credit: decimal.Zero})
	if from != nil {
		before := from.AddDate(0, 0, -1)
		prior, err := s.repo.PostedLines(ctx, accountID, nil, &before)
		if err != nil {
			return Ledger{}, err
		}
		for _, l := range prior {
			opening = opening.Add(accounts.Movement(acc.Type, l.Debit, l.Credit))
		}
	}
	lines, err := s.repo.PostedLines(ctx, accountID, from, to)
	if err != nil {
		return Ledger{}, err
	}
	ledger := BuildLedger(acc, opening, lines)
	ledger.Start, ledger.End = from, to
	return ledger, nil
}

// Dashboard summarises the tenant's cached balances and latest entries.
func (s *Service) Dashboard(ctx context.Context, tenantID int64) (Dashboard, error) {
	list, err := s.repo.ListAccounts(ctx, tenantID, accounts.ListFilter{ActiveOnly: true})
	if err != nil {
		return Dashboard{}, err
	}
	var receivable int64
	if s.conventions != nil {
		conv, err := s.conventions.Conventions(ctx, tenantID, mappings.RoleAccountsReceivable)
		if err != nil && !errors.Is(err, shared.ErrChartOfAccountsIncomplete) {
			return Dashboard{}, err
		}
		receivable = conv.Receivable
	}
	recent, err := s.repo.RecentEntries(ctx, tenantID, recentEntryLimit)
	if err != nil {
		return Dashboard{}, err
	}
	d := BuildDashboard(list, receivable, recent)
	fy, err := s.repo.FindActiveFiscalYear(ctx, tenantID, shared.DateOnly(s.now()))
	switch {
	case err == nil:
		d.FiscalYearID = &fy.ID
		d.FiscalYearName = fy.Name
	case !errors.Is(err, shared.ErrNoActiveFiscalYear):
		return Dashboard{}, err
	}
	return d, nil
}
