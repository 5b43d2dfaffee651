package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft     JournalStatus = "DRAFT"
	JournalStatusPosted    JournalStatus = "POSTED"
	JournalStatusCancelled JournalStatus = "CANCELLED"
)

// Origin tells manual entries apart from entries derived from billing events.
type Origin string

const (
	OriginManual  Origin = "MANUAL"
	OriginInvoice Origin = "INVOICE"
	OriginPayment Origin = "PAYMENT"
)

// JournalEntry captures the header of a double-entry transaction.
type JournalEntry struct {
	ID               int64           `json:"id"`
	TenantID         int64           `json:"tenant_id"`
	FiscalYearID     int64           `json:"fiscal_year_id"`
	Number           string          `json:"number"`
	Date             time.Time       `json:"date"`
	Reference        string          `json:"reference"`
	Description      string          `json:"description"`
	Status           JournalStatus   `json:"status"`
	Origin           Origin          `json:"origin"`
	BillingInvoiceID *int64          `json:"billing_invoice_id,omitempty"`
	PaymentID        *int64          `json:"payment_id,omitempty"`
	TotalDebit       decimal.Decimal `json:"total_debit"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
	CreatedBy        int64           `json:"created_by"`
	PostedBy         *int64          `json:"posted_by,omitempty"`
	PostedAt         *time.Time      `json:"posted_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Lines            []JournalLine   `json:"lines,omitempty"`
}

// LineRefs holds optional drill-down references carried by a line.
type LineRefs struct {
	StudentID *int64 `json:"student_id,omitempty"`
}

// JournalLine stores a debit or credit amount for an account.
type JournalLine struct {
	ID          int64           `json:"id"`
	JournalID   int64           `json:"journal_id"`
	LineNumber  int             `json:"line_number"`
	AccountID   int64           `json:"account_id"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Refs        LineRefs        `json:"refs"`
}

// Source identifies the external event an entry was derived from.
type Source struct {
	Module string
	Ref    uuid.UUID
}

// Totals sums the line amounts.
func Totals(lines []JournalLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// AccountIDs returns the distinct accounts touched by lines in ascending order.
func AccountIDs(lines []JournalLine) []int64 {
	seen := make(map[int64]bool, len(lines))
	out := make([]int64, 0, len(lines))
	for _, l := range lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			out = append(out, l.AccountID)
		}
	}
	sortInt64s(out)
	return out
}
