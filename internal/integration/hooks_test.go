package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

const tenant = int64(11)

var issueDate = time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type env struct {
	f     *ledgertest.Fixture
	hooks *integration.Hooks
	chart map[string]accounts.Account
}

func setup(t *testing.T) env {
	t.Helper()
	f := ledgertest.NewFixture(func() time.Time { return issueDate })
	f.OpenYear(t, tenant, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	chart, err := f.Accounts.CreateDefaultAccounts(context.Background(), tenant, 1)
	require.NoError(t, err)
	_, err = f.Mappings.SeedFromChart(context.Background(), tenant)
	require.NoError(t, err)
	return env{f: f, hooks: integration.NewHooks(f.Journals, f.Periods, f.Mappings), chart: chart}
}

func invoice(id int64) integration.Invoice {
	return integration.Invoice{
		ID:                 id,
		TenantID:           tenant,
		Number:             "INV-001",
		CustomerName:       "Layla Hassan",
		TotalAmount:        d("115"),
		TotalTaxableAmount: d("100"),
		TotalVAT:           d("15"),
		IssueDate:          issueDate,
	}
}

func balance(t *testing.T, e env, code string) decimal.Decimal {
	t.Helper()
	b, err := e.f.Accounts.GetBalance(context.Background(), e.chart[code].ID, nil)
	require.NoError(t, err)
	return b
}

func TestPostInvoice(t *testing.T) {
	e := setup(t)
	entry, err := e.hooks.PostInvoice(context.Background(), invoice(1), 5)
	require.NoError(t, err)

	assert.Equal(t, journals.JournalStatusPosted, entry.Status)
	assert.Equal(t, journals.OriginInvoice, entry.Origin)
	assert.Equal(t, "INV-001", entry.Reference)
	require.NotNil(t, entry.BillingInvoiceID)
	require.Len(t, entry.Lines, 3)
	assert.Equal(t, e.chart["1200"].ID, entry.Lines[0].AccountID)
	assert.True(t, entry.Lines[0].Debit.Equal(d("115")))
	assert.Equal(t, e.chart["4000"].ID, entry.Lines[1].AccountID)
	assert.True(t, entry.Lines[1].Credit.Equal(d("100")))
	assert.Equal(t, e.chart["2100"].ID, entry.Lines[2].AccountID)
	assert.True(t, entry.Lines[2].Credit.Equal(d("15")))

	assert.True(t, balance(t, e, "1200").Equal(d("115")))
	assert.True(t, balance(t, e, "4000").Equal(d("100")))
	assert.True(t, balance(t, e, "2100").Equal(d("15")))
}

func TestPostInvoiceWithoutVATOmitsLine(t *testing.T) {
	e := setup(t)
	inv := invoice(2)
	inv.TotalAmount, inv.TotalTaxableAmount, inv.TotalVAT = d("100"), d("100"), decimal.Zero
	entry, err := e.hooks.PostInvoice(context.Background(), inv, 5)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
}

func TestPostInvoiceIsIdempotent(t *testing.T) {
	e := setup(t)
	first, err := e.hooks.PostInvoice(context.Background(), invoice(3), 5)
	require.NoError(t, err)
	again, err := e.hooks.PostInvoice(context.Background(), invoice(3), 5)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, e.f.Store.EntryCount())
	assert.True(t, balance(t, e, "1200").Equal(d("115")))
}

func TestConcurrentInvoiceDeliveriesPostOnce(t *testing.T) {
	e := setup(t)
	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := e.hooks.PostInvoice(context.Background(), invoice(4), 5)
			assert.NoError(t, err)
			ids[i] = entry.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, e.f.Store.EntryCount())
}

func TestPostInvoiceIncompleteChart(t *testing.T) {
	f := ledgertest.NewFixture(func() time.Time { return issueDate })
	f.OpenYear(t, tenant, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	f.Account(t, tenant, "1100", "Cash", accounts.AccountTypeAsset, "", accounts.SideDebit)
	f.Account(t, tenant, "1110", "Bank", accounts.AccountTypeAsset, "", accounts.SideDebit)
	f.Account(t, tenant, "1200", "Receivable", accounts.AccountTypeAsset, "", accounts.SideDebit)
	f.Account(t, tenant, "4000", "Revenue", accounts.AccountTypeRevenue, "", accounts.SideCredit)
	_, err := f.Mappings.SeedFromChart(context.Background(), tenant)
	require.NoError(t, err)

	hooks := integration.NewHooks(f.Journals, f.Periods, f.Mappings)
	_, err = hooks.PostInvoice(context.Background(), invoice(5), 5)
	require.ErrorIs(t, err, shared.ErrChartOfAccountsIncomplete)
	assert.Equal(t, 0, f.Store.EntryCount())

	f.Account(t, tenant, "2100", "VAT Payable", accounts.AccountTypeLiability, "", accounts.SideCredit)
	_, err = hooks.PostInvoice(context.Background(), invoice(5), 5)
	require.NoError(t, err)
}

func TestPostWithMinimalUnseededChart(t *testing.T) {
	f := ledgertest.NewFixture(func() time.Time { return issueDate })
	f.OpenYear(t, tenant, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	receivable := f.Account(t, tenant, "1200", "Receivable", accounts.AccountTypeAsset, "", accounts.SideDebit)
	revenue := f.Account(t, tenant, "4000", "Revenue", accounts.AccountTypeRevenue, "", accounts.SideCredit)
	vat := f.Account(t, tenant, "2100", "VAT Payable", accounts.AccountTypeLiability, "", accounts.SideCredit)
	hooks := integration.NewHooks(f.Journals, f.Periods, f.Mappings)

	entry, err := hooks.PostInvoice(context.Background(), invoice(20), 5)
	require.NoError(t, err)
	assert.Equal(t, journals.JournalStatusPosted, entry.Status)
	require.Len(t, entry.Lines, 3)
	assert.Equal(t, receivable.ID, entry.Lines[0].AccountID)
	assert.Equal(t, revenue.ID, entry.Lines[1].AccountID)
	assert.Equal(t, vat.ID, entry.Lines[2].AccountID)

	seeded, err := f.Mappings.List(context.Background(), tenant)
	require.NoError(t, err)
	assert.Len(t, seeded, 3, "fallback accounts are mapped on first use")

	pay := integration.Payment{ID: 20, TenantID: tenant, InvoiceID: 20, InvoiceNumber: "INV-001", Amount: d("40"), Method: "bank_transfer", PaymentDate: issueDate}
	_, err = hooks.PostPayment(context.Background(), pay, 5)
	require.ErrorIs(t, err, shared.ErrChartOfAccountsIncomplete)
	assert.Contains(t, err.Error(), "BANK (1110)")
	assert.NotContains(t, err.Error(), "CASH")

	cash := f.Account(t, tenant, "1100", "Cash", accounts.AccountTypeAsset, "", accounts.SideDebit)
	pay.ID, pay.Method = 21, "cash"
	paid, err := hooks.PostPayment(context.Background(), pay, 5)
	require.NoError(t, err)
	assert.Equal(t, cash.ID, paid.Lines[0].AccountID)
	assert.Equal(t, receivable.ID, paid.Lines[1].AccountID)
}

func TestConventionalCodeWithWrongTypeIsNotUsed(t *testing.T) {
	f := ledgertest.NewFixture(func() time.Time { return issueDate })
	f.OpenYear(t, tenant, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	f.Account(t, tenant, "1200", "Receivable", accounts.AccountTypeAsset, "", accounts.SideDebit)
	f.Account(t, tenant, "4000", "Owner Capital", accounts.AccountTypeEquity, "", accounts.SideCredit)
	f.Account(t, tenant, "2100", "VAT Payable", accounts.AccountTypeLiability, "", accounts.SideCredit)

	_, err := integration.NewHooks(f.Journals, f.Periods, f.Mappings).PostInvoice(context.Background(), invoice(22), 5)
	require.ErrorIs(t, err, shared.ErrChartOfAccountsIncomplete)
	assert.Contains(t, err.Error(), "DEFAULT_REVENUE (4000)")
	assert.Equal(t, 0, f.Store.EntryCount())
}

func TestMappingChangeReachesEveryHooksInstance(t *testing.T) {
	e := setup(t)
	other := integration.NewHooks(e.f.Journals, e.f.Periods, e.f.Mappings)

	first, err := e.hooks.PostInvoice(context.Background(), invoice(30), 5)
	require.NoError(t, err)
	assert.Equal(t, e.chart["4000"].ID, first.Lines[1].AccountID)
	_, err = other.PostInvoice(context.Background(), invoice(31), 5)
	require.NoError(t, err)

	_, err = e.f.Mappings.Set(context.Background(), tenant, mappings.RoleDefaultRevenue, e.chart["4100"].ID)
	require.NoError(t, err)

	for i, h := range []*integration.Hooks{e.hooks, other} {
		entry, err := h.PostInvoice(context.Background(), invoice(int64(32+i)), 5)
		require.NoError(t, err)
		assert.Equal(t, e.chart["4100"].ID, entry.Lines[1].AccountID)
	}
}

func TestPostInvoiceWithoutFiscalYear(t *testing.T) {
	e := setup(t)
	inv := invoice(6)
	inv.IssueDate = time.Date(2027, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := e.hooks.PostInvoice(context.Background(), inv, 5)
	require.ErrorIs(t, err, shared.ErrNoActiveFiscalYear)

	inv.TotalVAT = d("-1")
	_, err = e.hooks.PostInvoice(context.Background(), inv, 5)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestPostPaymentRoutesByMethod(t *testing.T) {
	e := setup(t)
	_, err := e.hooks.PostInvoice(context.Background(), invoice(7), 5)
	require.NoError(t, err)

	cash, err := e.hooks.PostPayment(context.Background(), integration.Payment{
		ID: 1, TenantID: tenant, InvoiceID: 7, InvoiceNumber: "INV-001", Amount: d("50"), Method: "cash", PaymentDate: issueDate,
	}, 5)
	require.NoError(t, err)
	assert.Equal(t, "INV-001", cash.Reference)
	assert.Equal(t, journals.OriginPayment, cash.Origin)
	require.Len(t, cash.Lines, 2)
	assert.Equal(t, e.chart["1100"].ID, cash.Lines[0].AccountID)

	bank, err := e.hooks.PostPayment(context.Background(), integration.Payment{
		ID: 2, TenantID: tenant, InvoiceID: 7, InvoiceNumber: "INV-001", TransactionID: "TRX-9",
		Amount: d("65"), Method: "bank_transfer", PaymentDate: issueDate,
	}, 5)
	require.NoError(t, err)
	assert.Equal(t, "TRX-9", bank.Reference)
	assert.Equal(t, e.chart["1110"].ID, bank.Lines[0].AccountID)

	assert.True(t, balance(t, e, "1100").Equal(d("50")))
	assert.True(t, balance(t, e, "1110").Equal(d("65")))
	assert.True(t, balance(t, e, "1200").IsZero())

	again, err := e.hooks.PostPayment(context.Background(), integration.Payment{
		ID: 2, TenantID: tenant, InvoiceNumber: "INV-001", Amount: d("65"), Method: "bank_transfer", PaymentDate: issueDate,
	}, 5)
	require.NoError(t, err)
	assert.Equal(t, bank.ID, again.ID)

	_, err = e.hooks.PostPayment(context.Background(), integration.Payment{ID: 3, TenantID: tenant, Amount: decimal.Zero, PaymentDate: issueDate}, 5)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}
