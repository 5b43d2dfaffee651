package periods

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthlyPeriodsSchoolYear(t *testing.T) {
	ps := MonthlyPeriods(date(2025, 9, 1), date(2026, 8, 31))
	require.Len(t, ps, 12)
	assert.Equal(t, 1, ps[0].Number)
	assert.Equal(t, "September 2025", ps[0].Name)
	assert.Equal(t, date(2025, 9, 30), ps[0].EndDate)
	assert.Equal(t, date(2026, 2, 28), ps[5].EndDate)
	assert.Equal(t, 12, ps[11].Number)
	assert.Equal(t, date(2026, 8, 31), ps[11].EndDate)
}

func TestMonthlyPeriodsClipsToBounds(t *testing.T) {
	ps := MonthlyPeriods(date(2025, 9, 15), date(2025, 11, 10))
	require.Len(t, ps, 3)
	assert.Equal(t, date(2025, 9, 15), ps[0].StartDate)
	assert.Equal(t, date(2025, 9, 30), ps[0].EndDate)
	assert.Equal(t, date(2025, 10, 1), ps[1].StartDate)
	assert.Equal(t, date(2025, 11, 1), ps[2].StartDate)
	assert.Equal(t, date(2025, 11, 10), ps[2].EndDate)

	for i := 1; i < len(ps); i++ {
		assert.Equal(t, ps[i-1].EndDate.AddDate(0, 0, 1), ps[i].StartDate, "periods are contiguous")
	}
}

func TestCheckPostingAllowed(t *testing.T) {
	year := FiscalYear{StartDate: date(2025, 9, 1), EndDate: date(2026, 8, 31)}
	ps := MonthlyPeriods(year.StartDate, year.EndDate)
	ps[1].IsClosed = true

	require.NoError(t, CheckPostingAllowed(year, ps, date(2025, 9, 30)))
	require.NoError(t, CheckPostingAllowed(year, ps, date(2026, 8, 31)))

	err := CheckPostingAllowed(year, ps, date(2026, 9, 1))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, err, shared.ErrDateOutOfRange)

	require.ErrorIs(t, CheckPostingAllowed(year, ps, date(2025, 10, 31)), shared.ErrPeriodClosed)

	year.IsClosed = true
	require.ErrorIs(t, CheckPostingAllowed(year, ps, date(2025, 9, 2)), shared.ErrFiscalYearClosed)
}
