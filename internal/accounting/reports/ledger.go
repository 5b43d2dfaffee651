package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// PostedLine is a posted journal line joined with its entry header.
type PostedLine struct {
	EntryID     int64           `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// LedgerRow is one ledger line with the running balance after it.
type LedgerRow struct {
	EntryID     int64           `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// Ledger is the account ledger for a date window.
type Ledger struct {
	AccountID      int64                `json:"account_id"`
	Code           string               `json:"code"`
	Name           string               `json:"name"`
	Type           accounts.AccountType `json:"type"`
	Start          *time.Time           `json:"start,omitempty"`
	End            *time.Time           `json:"end,omitempty"`
	OpeningBalance decimal.Decimal      `json:"opening_balance"`
	Rows           []LedgerRow          `json:"rows,omitempty"`
	ClosingBalance decimal.Decimal      `json:"closing_balance"`
}

// BuildLedger orders lines by (date, entry number) and carries a running
// balance from opening under the account type's sign convention.
func BuildLedger(acc accounts.Account, opening decimal.Decimal, lines []PostedLine) Ledger {
	sorted := append([]PostedLine(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].EntryNumber < sorted[j].EntryNumber
	})
	running := opening
	rows := make([]LedgerRow, 0, len(sorted))
	for _, l := range sorted {
		running = running.Add(accounts.Movement(acc.Type, l.Debit, l.Credit))
		rows = append(rows, LedgerRow{
			EntryID:     l.EntryID,
			EntryNumber: l.EntryNumber,
			Date:        l.Date,
			Description: l.Description,
			Reference:   l.Reference,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Balance:     running,
		})
	}
	return Ledger{
		AccountID:      acc.ID,
		Code:           acc.Code,
		Name:           acc.Name,
		Type:           acc.Type,
		OpeningBalance: opening,
		Rows:           rows,
		ClosingBalance: running,
	}
}
