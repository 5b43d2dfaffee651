package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const tenant = int64(3)

func TestCreateValidatesAndDetectsDuplicates(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()

	_, err := f.Accounts.Create(ctx, accounts.CreateAccountInput{TenantID: tenant, Code: "1100", Name: "Cash", Type: "BOGUS"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.Accounts.Create(ctx, accounts.CreateAccountInput{TenantID: tenant, Code: "1100", Name: "Cash",
		Type: accounts.AccountTypeAsset, OpeningBalance: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	cash, err := f.Accounts.Create(ctx, accounts.CreateAccountInput{TenantID: tenant, Code: " 1100 ", Name: " Cash ",
		Type: accounts.AccountTypeAsset, OpeningBalance: decimal.RequireFromString("100.004")})
	require.NoError(t, err)
	assert.Equal(t, "1100", cash.Code)
	assert.Equal(t, "Cash", cash.Name)
	assert.Equal(t, accounts.SideDebit, cash.OpeningSide)
	assert.True(t, cash.OpeningBalance.Equal(decimal.NewFromInt(100)))
	assert.True(t, cash.CurrentBalance.Equal(decimal.NewFromInt(100)))

	_, err = f.Accounts.Create(ctx, accounts.CreateAccountInput{TenantID: tenant, Code: "1100", Name: "Petty Cash", Type: accounts.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateCode)

	_, err = f.Accounts.Create(ctx, accounts.CreateAccountInput{TenantID: tenant, Code: "1101", Name: "Cash", Type: accounts.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateName)

	_, err = f.Accounts.Create(ctx, accounts.CreateAccountInput{TenantID: 4, Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset})
	require.NoError(t, err, "codes are unique per tenant")
}

func TestUpdateRejectsParentCycle(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()
	parent := f.Account(t, tenant, "1000", "Assets", accounts.AccountTypeAsset, "", accounts.SideDebit)
	child, err := f.Accounts.Create(ctx, accounts.CreateAccountInput{TenantID: tenant, Code: "1100", Name: "Cash",
		Type: accounts.AccountTypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)

	_, err = f.Accounts.Update(ctx, accounts.UpdateAccountInput{ID: parent.ID, Name: "Assets", ParentID: &child.ID, IsActive: true})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	updated, err := f.Accounts.Update(ctx, accounts.UpdateAccountInput{ID: child.ID, Name: "Cash on Hand", ParentID: &parent.ID,
		IsActive: true, AllowManualEntries: true, OpeningBalance: decimal.NewFromInt(40)})
	require.NoError(t, err)
	assert.Equal(t, "Cash on Hand", updated.Name)
	assert.True(t, updated.CurrentBalance.Equal(decimal.NewFromInt(40)))

	tree, err := f.Accounts.Tree(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
}

func TestDeleteProtection(t *testing.T) {
	day := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	f := ledgertest.NewFixture(func() time.Time { return day })
	ctx := context.Background()
	fy, _ := f.OpenYear(t, tenant, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))

	chart, err := f.Accounts.CreateDefaultAccounts(ctx, tenant, 1)
	require.NoError(t, err)
	require.ErrorIs(t, f.Accounts.Delete(ctx, chart["1100"].ID, 1), shared.ErrProtectedAccount)

	cash := f.Account(t, tenant, "1190", "Petty Cash", accounts.AccountTypeAsset, "", accounts.SideDebit)
	spare := f.Account(t, tenant, "1195", "Spare", accounts.AccountTypeAsset, "", accounts.SideDebit)
	f.Post(t, tenant, fy, day, ledgertest.Line(cash.ID, "10", ""), ledgertest.Line(chart["4100"].ID, "", "10"))

	require.ErrorIs(t, f.Accounts.Delete(ctx, cash.ID, 1), shared.ErrProtectedAccount)
	require.NoError(t, f.Accounts.Delete(ctx, spare.ID, 1))
	_, err = f.Accounts.Get(ctx, spare.ID)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestCreateDefaultAccountsIsIdempotent(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()

	first, err := f.Accounts.CreateDefaultAccounts(ctx, tenant, 1)
	require.NoError(t, err)
	require.Len(t, first, 26)
	assert.True(t, first["1100"].IsSystem)
	require.NotNil(t, first["1100"].ParentID)
	assert.Equal(t, first["1000"].ID, *first["1100"].ParentID)

	second, err := f.Accounts.CreateDefaultAccounts(ctx, tenant, 1)
	require.NoError(t, err)
	assert.Equal(t, first["2100"].ID, second["2100"].ID)

	list, err := f.Accounts.List(ctx, tenant, accounts.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 26)
}

func TestBalancesAndRefresh(t *testing.T) {
	day := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	f := ledgertest.NewFixture(func() time.Time { return day })
	ctx := context.Background()
	fy, _ := f.OpenYear(t, tenant, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	cash := f.Account(t, tenant, "1000", "Cash", accounts.AccountTypeAsset, "100", accounts.SideDebit)
	revenue := f.Account(t, tenant, "4000", "Revenue", accounts.AccountTypeRevenue, "", accounts.SideCredit)

	f.Post(t, tenant, fy, day, ledgertest.Line(cash.ID, "50", ""), ledgertest.Line(revenue.ID, "", "50"))
	f.Post(t, tenant, fy, day.AddDate(0, 1, 0), ledgertest.Line(cash.ID, "", "30"), ledgertest.Line(revenue.ID, "30", ""))

	balance, err := f.Accounts.GetBalance(ctx, cash.ID, nil)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(120)))

	asOf := day
	balance, err = f.Accounts.GetBalance(ctx, cash.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(150)))

	f.Store.SetCachedBalance(cash.ID, decimal.NewFromInt(1))
	drifted, err := f.Accounts.RefreshTenant(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, drifted, 1)
	assert.Equal(t, cash.ID, drifted[0].ID)

	stored, err := f.Accounts.Get(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentBalance.Equal(decimal.NewFromInt(120)))
}
