package journals

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Validate applies the ledger rules to an entry and its lines and returns the
// first violation. Lines are checked in line-number order before the entry
// level balance, date and calendar rules.
func Validate(entry JournalEntry, accountsByID map[int64]accounts.Account, year periods.FiscalYear, calendar []periods.Period) error {
	if entry.ID != 0 && entry.Status == JournalStatusPosted {
		return shared.NewValidationError(shared.ErrPostedEntryImmutable, 0, "entry %s", entry.Number)
	}
	if year.TenantID != entry.TenantID {
		return fmt.Errorf("%w: %d", shared.ErrFiscalYearNotFound, entry.FiscalYearID)
	}
	for _, line := range entry.Lines {
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.NewValidationError(shared.ErrNegativeAmount, line.LineNumber, "")
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return shared.NewValidationError(shared.ErrUnbalancedLine, line.LineNumber, "debit %s credit %s",
				line.Debit.StringFixed(2), line.Credit.StringFixed(2))
		}
		acc, ok := accountsByID[line.AccountID]
		if !ok || acc.TenantID != entry.TenantID {
			return fmt.Errorf("%w: line %d account %d", shared.ErrAccountNotFound, line.LineNumber, line.AccountID)
		}
		if entry.Origin == OriginManual && !acc.AllowManualEntries {
			return shared.NewValidationError(shared.ErrManualEntryNotAllowed, line.LineNumber, "account %s", acc.Code)
		}
	}
	debit, credit := Totals(entry.Lines)
	if !shared.WithinTolerance(debit, credit) {
		return shared.NewValidationError(shared.ErrEntryNotBalanced, 0, "debit %s credit %s",
			debit.StringFixed(2), credit.StringFixed(2))
	}
	return periods.CheckPostingAllowed(year, calendar, entry.Date)
}
