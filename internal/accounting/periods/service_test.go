package periods_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestCreateFiscalYear(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	_, _, err := f.Periods.CreateFiscalYear(ctx, periods.CreateFiscalYearInput{TenantID: 1, Name: "bad", StartDate: end, EndDate: start})
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)

	_, _, err = f.Periods.CreateFiscalYear(ctx, periods.CreateFiscalYearInput{TenantID: 1, Name: "same", StartDate: start, EndDate: start})
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)

	fy, ps, err := f.Periods.CreateFiscalYear(ctx, periods.CreateFiscalYearInput{
		TenantID: 1, Name: " 2025/2026 ", StartDate: start, EndDate: end, IsActive: true, GeneratePeriods: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025/2026", fy.Name)
	require.Len(t, ps, 12)

	stored, err := f.Periods.ListPeriods(ctx, fy.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 12)

	_, _, err = f.Periods.CreateFiscalYear(ctx, periods.CreateFiscalYearInput{TenantID: 1, Name: "2025/2026", StartDate: start, EndDate: end})
	require.ErrorIs(t, err, shared.ErrDuplicateFiscalYear)

	_, _, err = f.Periods.CreateFiscalYear(ctx, periods.CreateFiscalYearInput{TenantID: 2, Name: "2025/2026", StartDate: start, EndDate: end})
	require.NoError(t, err, "names are unique per tenant")
}

func TestFindActiveFiscalYear(t *testing.T) {
	f := ledgertest.NewFixture(nil)
	ctx := context.Background()
	fy, _ := f.OpenYear(t, 1, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))

	found, err := f.Periods.FindActiveFiscalYear(ctx, 1, time.Date(2026, 1, 15, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, fy.ID, found.ID)

	_, err = f.Periods.FindActiveFiscalYear(ctx, 1, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, shared.ErrNoActiveFiscalYear)

	_, err = f.Periods.FindActiveFiscalYear(ctx, 2, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, shared.ErrNoActiveFiscalYear)
}

func TestCloseFiscalYearClosesPeriods(t *testing.T) {
	closedAt := time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC)
	f := ledgertest.NewFixture(func() time.Time { return closedAt })
	ctx := context.Background()
	fy, ps := f.OpenYear(t, 1, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))

	period, err := f.Periods.ClosePeriod(ctx, ps[0].ID, 9)
	require.NoError(t, err)
	assert.True(t, period.IsClosed)
	_, err = f.Periods.ClosePeriod(ctx, ps[0].ID, 9)
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	year, err := f.Periods.CloseFiscalYear(ctx, fy.ID, 9)
	require.NoError(t, err)
	assert.True(t, year.IsClosed)
	require.NotNil(t, year.ClosedBy)
	assert.Equal(t, int64(9), *year.ClosedBy)
	assert.Equal(t, closedAt, *year.ClosedAt)

	stored, err := f.Periods.ListPeriods(ctx, fy.ID)
	require.NoError(t, err)
	for _, p := range stored {
		assert.True(t, p.IsClosed, p.Name)
	}

	_, err = f.Periods.CloseFiscalYear(ctx, fy.ID, 9)
	require.ErrorIs(t, err, shared.ErrFiscalYearClosed)
	assert.Contains(t, f.Audit.Actions(), "fiscal_year.close")
}
