package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/budgets"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

// Fixture wires every ledger service to one in-memory store.
type Fixture struct {
	Store    *Store
	Audit    *AuditSink
	Accounts *accounts.Service
	Periods  *periods.Service
	Journals *journals.Service
	Mappings *mappings.Service
	Reports  *reports.Service
	Budgets  *budgets.Service
}

// NewFixture builds the services. now drives every service clock; nil uses time.Now.
func NewFixture(now func() time.Time) *Fixture {
	if now == nil {
		now = time.Now
	}
	store := NewStore()
	store.now = now
	audit := store.Audit()
	f := &Fixture{Store: store, Audit: audit}
	f.Accounts = accounts.NewService(store.Accounts(), audit)
	f.Accounts.WithNow(now)
	f.Periods = periods.NewService(store.Periods(), audit)
	f.Periods.WithNow(now)
	f.Journals = journals.NewService(store.Journals(), audit)
	f.Journals.WithNow(now)
	f.Mappings = mappings.NewService(store.Mappings(), f.Accounts)
	f.Reports = reports.NewService(store.Reports(), f.Mappings)
	f.Reports.WithNow(now)
	f.Budgets = budgets.NewService(store.Budgets(), f.Accounts, f.Periods, audit)
	f.Budgets.WithNow(now)
	return f
}

// OpenYear creates an active fiscal year with monthly periods.
func (f *Fixture) OpenYear(t testing.TB, tenantID int64, name string, start, end time.Time) (periods.FiscalYear, []periods.Period) {
	t.Helper()
	fy, ps, err := f.Periods.CreateFiscalYear(context.Background(), periods.CreateFiscalYearInput{
		TenantID:        tenantID,
		Name:            name,
		StartDate:       start,
		EndDate:         end,
		IsActive:        true,
		GeneratePeriods: true,
		ActorID:         1,
	})
	require.NoError(t, err)
	return fy, ps
}

// Account opens a leaf account accepting manual entries.
func (f *Fixture) Account(t testing.TB, tenantID int64, code, name string, typ accounts.AccountType, opening string, side accounts.BalanceSide) accounts.Account {
	t.Helper()
	amount := decimal.Zero
	if opening != "" {
		amount = decimal.RequireFromString(opening)
	}
	acc, err := f.Accounts.Create(context.Background(), accounts.CreateAccountInput{
		TenantID:           tenantID,
		Code:               code,
		Name:               name,
		Type:               typ,
		AllowManualEntries: true,
		OpeningBalance:     amount,
		OpeningSide:        side,
		ActorID:            1,
	})
	require.NoError(t, err)
	return acc
}

// Line builds a journal line input; pass "" for the empty side.
func Line(accountID int64, debit, credit string) journals.LineInput {
	in := journals.LineInput{AccountID: accountID, Debit: decimal.Zero, Credit: decimal.Zero}
	if debit != "" {
		in.Debit = decimal.RequireFromString(debit)
	}
	if credit != "" {
		in.Credit = decimal.RequireFromString(credit)
	}
	return in
}

// Post creates and posts a manual entry.
func (f *Fixture) Post(t testing.TB, tenantID int64, fy periods.FiscalYear, date time.Time, lines ...journals.LineInput) journals.JournalEntry {
	t.Helper()
	entry, err := f.Journals.CreateEntry(context.Background(), journals.CreateEntryInput{
		TenantID:     tenantID,
		FiscalYearID: fy.ID,
		Date:         date,
		Description:  "test entry",
		Lines:        lines,
		ActorID:      1,
		AutoPost:     true,
	})
	require.NoError(t, err)
	return entry
}
