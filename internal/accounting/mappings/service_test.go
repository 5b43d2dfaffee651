package mappings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestSeedFromDefaultChart(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()
	chart, err := f.Accounts.CreateDefaultAccounts(ctx, 1, 1)
	require.NoError(t, err)

	seeded, err := f.Mappings.SeedFromChart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, seeded, len(mappings.Roles))

	conv, err := f.Mappings.Conventions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, chart["1200"].ID, conv.Receivable)
	assert.Equal(t, chart["4000"].ID, conv.Revenue)
	assert.Equal(t, chart["2100"].ID, conv.VATPayable)
	assert.Equal(t, chart["1100"].ID, conv.Cash)
	assert.Equal(t, chart["1110"].ID, conv.Bank)
	assert.Equal(t, conv.Bank, conv.Account(mappings.RoleBank))

	again, err := f.Mappings.SeedFromChart(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestConventionsReportMissingRoles(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()
	f.Account(t, 1, "1100", "Cash", accounts.AccountTypeAsset, "", accounts.SideDebit)
	f.Account(t, 1, "1200", "Receivable", accounts.AccountTypeAsset, "", accounts.SideDebit)

	seeded, err := f.Mappings.SeedFromChart(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, seeded, 2)

	_, err = f.Mappings.Conventions(ctx, 1)
	require.ErrorIs(t, err, shared.ErrChartOfAccountsIncomplete)
	assert.Contains(t, err.Error(), "VAT_PAYABLE (2100)")
	assert.Contains(t, err.Error(), "DEFAULT_REVENUE (4000)")
	assert.NotContains(t, err.Error(), "CASH")
}

func TestSetOverridesRole(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()
	_, err := f.Accounts.CreateDefaultAccounts(ctx, 1, 1)
	require.NoError(t, err)
	_, err = f.Mappings.SeedFromChart(ctx, 1)
	require.NoError(t, err)
	tuition := f.Account(t, 1, "4150", "Tuition Online", accounts.AccountTypeRevenue, "", accounts.SideCredit)
	foreign := f.Account(t, 2, "4150", "Tuition Online", accounts.AccountTypeRevenue, "", accounts.SideCredit)

	_, err = f.Mappings.Set(ctx, 1, mappings.Role("TUITION"), tuition.ID)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = f.Mappings.Set(ctx, 1, mappings.RoleDefaultRevenue, foreign.ID)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	m, err := f.Mappings.Set(ctx, 1, mappings.RoleDefaultRevenue, tuition.ID)
	require.NoError(t, err)
	assert.Equal(t, tuition.ID, m.AccountID)

	conv, err := f.Mappings.Conventions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, tuition.ID, conv.Revenue)

	require.ErrorIs(t, f.Accounts.Delete(ctx, tuition.ID, 1), shared.ErrProtectedAccount)
}

func TestConventionsResolveOnlyRequestedRoles(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()
	receivable := f.Account(t, 1, "1200", "Receivable", accounts.AccountTypeAsset, "", accounts.SideDebit)
	cash := f.Account(t, 1, "1100", "Cash", accounts.AccountTypeAsset, "", accounts.SideDebit)

	conv, err := f.Mappings.Conventions(ctx, 1, mappings.RoleCash, mappings.RoleAccountsReceivable)
	require.NoError(t, err)
	assert.Equal(t, cash.ID, conv.Cash)
	assert.Equal(t, receivable.ID, conv.Receivable)
	assert.Zero(t, conv.Bank)

	list, err := f.Mappings.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.Mappings.Conventions(ctx, 1, mappings.RoleBank)
	require.ErrorIs(t, err, shared.ErrChartOfAccountsIncomplete)
	_, err = f.Mappings.Conventions(ctx, 1, mappings.Role("PETTY_CASH"))
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestConventionsPreferExplicitMapping(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()
	f.Account(t, 1, "4000", "Revenue", accounts.AccountTypeRevenue, "", accounts.SideCredit)
	tuition := f.Account(t, 1, "4100", "Tuition", accounts.AccountTypeRevenue, "", accounts.SideCredit)
	_, err := f.Mappings.Set(ctx, 1, mappings.RoleDefaultRevenue, tuition.ID)
	require.NoError(t, err)

	conv, err := f.Mappings.Conventions(ctx, 1, mappings.RoleDefaultRevenue)
	require.NoError(t, err)
	assert.Equal(t, tuition.ID, conv.Revenue)
}
