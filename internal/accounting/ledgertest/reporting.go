package ledgertest

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/budgets"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Reports returns the read-only report repository.
func (s *Store) Reports() reports.Repository { return &reportRepo{s: s} }

type reportRepo struct {
	s *Store
}

func (r *reportRepo) ListAccounts(_ context.Context, tenantID int64, filter accounts.ListFilter) ([]accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.listAccounts(tenantID, filter), nil
}

func (r *reportRepo) GetAccount(_ context.Context, id int64) (accounts.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.data.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return acc, nil
}

func (r *reportRepo) GetFiscalYear(_ context.Context, id int64) (periods.FiscalYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.fiscalYear(id)
}

func (r *reportRepo) FindActiveFiscalYear(_ context.Context, tenantID int64, date time.Time) (periods.FiscalYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.activeFiscalYear(tenantID, date)
}

func (r *reportRepo) PostedTotalsByAccount(_ context.Context, tenantID int64, from, to *time.Time) (map[int64]accounts.Totals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]accounts.Totals)
	for id, e := range r.s.data.entries {
		if e.TenantID != tenantID || e.Status != journals.JournalStatusPosted || !inWindow(e.Date, from, to) {
			continue
		}
		for _, l := range r.s.data.lines[id] {
			t, ok := out[l.AccountID]
			if !ok {
				t = accounts.Totals{Debit: decimal.Zero, Credit: decimal.Zero}
			}
			t.Debit = t.Debit.Add(l.Debit)
			t.Credit = t.Credit.Add(l.Credit)
			out[l.AccountID] = t
		}
	}
	return out, nil
}

func (r *reportRepo) PostedLines(_ context.Context, accountID int64, from, to *time.Time) ([]reports.PostedLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	type ordered struct {
		line   reports.PostedLine
		number int
	}
	var rows []ordered
	for id, e := range r.s.data.entries {
		if e.Status != journals.JournalStatusPosted || !inWindow(e.Date, from, to) {
			continue
		}
		for _, l := range r.s.data.lines[id] {
			if l.AccountID != accountID {
				continue
			}
			desc := l.Description
			if desc == "" {
				desc = e.Description
			}
			rows = append(rows, ordered{number: l.LineNumber, line: reports.PostedLine{
				EntryID:     e.ID,
				EntryNumber: e.Number,
				Date:        e.Date,
				Description: desc,
				Reference:   e.Reference,
				Debit:       l.Debit,
				Credit:      l.Credit,
			}})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].line, rows[j].line
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.EntryNumber != b.EntryNumber {
			return a.EntryNumber < b.EntryNumber
		}
		return rows[i].number < rows[j].number
	})
	out := make([]reports.PostedLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.line)
	}
	return out, nil
}

func (r *reportRepo) RecentEntries(_ context.Context, tenantID int64, limit int) ([]reports.EntrySummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []journals.JournalEntry
	for _, e := range r.s.data.entries {
		if e.TenantID == tenantID {
			list = append(list, e)
		}
	}
	sortEntriesDesc(list)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]reports.EntrySummary, 0, len(list))
	for _, e := range list {
		out = append(out, reports.EntrySummary{
			ID:          e.ID,
			Number:      e.Number,
			Date:        e.Date,
			Description: e.Description,
			Status:      string(e.Status),
			TotalDebit:  e.TotalDebit,
		})
	}
	return out, nil
}

type mappingRepo struct {
	s *Store
}

func (r *mappingRepo) Get(_ context.Context, tenantID int64, role mappings.Role) (mappings.AccountMapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.mappings[mappingKey{tenant: tenantID, role: role}]
	if !ok {
		return mappings.AccountMapping{}, mappings.ErrMappingNotFound
	}
	return m, nil
}

func (r *mappingRepo) List(_ context.Context, tenantID int64) ([]mappings.AccountMapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []mappings.AccountMapping
	for key, m := range r.s.data.mappings {
		if key.tenant == tenantID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

func (r *mappingRepo) Upsert(_ context.Context, m mappings.AccountMapping) (mappings.AccountMapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := mappingKey{tenant: m.TenantID, role: m.Role}
	now := r.s.now()
	if existing, ok := r.s.data.mappings[key]; ok {
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	r.s.data.mappings[key] = m
	return m, nil
}

type budgetRepo struct {
	s *Store
}

func (r *budgetRepo) Get(_ context.Context, id int64) (budgets.BudgetLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.data.budgets[id]
	if !ok {
		return budgets.BudgetLine{}, shared.ErrBudgetLineNotFound
	}
	return b, nil
}

func (r *budgetRepo) List(_ context.Context, tenantID, fiscalYearID int64) ([]budgets.BudgetLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []budgets.BudgetLine
	for _, b := range r.s.data.budgets {
		if b.TenantID != tenantID || (fiscalYearID != 0 && b.FiscalYearID != fiscalYearID) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FiscalYearID != out[j].FiscalYearID {
			return out[i].FiscalYearID < out[j].FiscalYearID
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out, nil
}

func (r *budgetRepo) Insert(_ context.Context, line budgets.BudgetLine) (budgets.BudgetLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.data.budgets {
		if b.FiscalYearID == line.FiscalYearID && b.AccountID == line.AccountID {
			return budgets.BudgetLine{}, shared.ErrDuplicateBudgetLine
		}
	}
	line.ID = r.s.nextID()
	line.CreatedAt = r.s.now()
	line.UpdatedAt = line.CreatedAt
	r.s.data.budgets[line.ID] = line
	return line, nil
}

func (r *budgetRepo) UpdateActual(_ context.Context, id int64, actual, variance decimal.Decimal, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.data.budgets[id]
	if !ok {
		return shared.ErrBudgetLineNotFound
	}
	b.ActualAmount = actual
	b.Variance = variance
	b.UpdatedAt = at
	r.s.data.budgets[id] = b
	return nil
}
