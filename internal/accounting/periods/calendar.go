package periods

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func within(date, start, end time.Time) bool {
	return shared.Within(date, start, end)
}

// MonthlyPeriods splits [start, end] into calendar-month periods numbered from 1.
// The first and last periods are clipped to the year bounds.
func MonthlyPeriods(start, end time.Time) []Period {
	start = shared.DateOnly(start)
	end = shared.DateOnly(end)
	var out []Period
	for cur, n := start, 1; !cur.After(end); n++ {
		firstOfNext := time.Date(cur.Year(), cur.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		last := firstOfNext.AddDate(0, 0, -1)
		if last.After(end) {
			last = end
		}
		out = append(out, Period{
			Name:      cur.Format("January 2006"),
			Number:    n,
			StartDate: cur,
			EndDate:   last,
		})
		cur = firstOfNext
	}
	return out
}

// CheckPostingAllowed decides whether an entry dated date may be created or
// posted in year. A date outside the year is a validation failure; closed
// years and closed periods covering the date are state errors.
func CheckPostingAllowed(year FiscalYear, periods []Period, date time.Time) error {
	if !year.Contains(date) {
		return shared.NewValidationError(shared.ErrDateOutOfRange, 0, "%s not within %s..%s",
			date.Format(time.DateOnly), year.StartDate.Format(time.DateOnly), year.EndDate.Format(time.DateOnly))
	}
	if year.IsClosed {
		return shared.ErrFiscalYearClosed
	}
	for _, p := range periods {
		if p.IsClosed && p.Contains(date) {
			return shared.ErrPeriodClosed
		}
	}
	return nil
}
