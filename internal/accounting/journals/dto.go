package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LineInput describes one journal line of a create or update request.
type LineInput struct {
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	StudentID   *int64
}

// CreateEntryInput groups fields required to create a journal entry.
type CreateEntryInput struct {
	TenantID         int64
	FiscalYearID     int64
	Date             time.Time
	Description      string
	Reference        string
	Origin           Origin
	BillingInvoiceID *int64
	PaymentID        *int64
	Lines            []LineInput
	ActorID          int64
	AutoPost         bool
	Source           *Source
}

// Validate checks the request shape. Ledger rules run later against the
// locked fiscal year and accounts, before anything is written.
func (in CreateEntryInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant required", shared.ErrInvalidInput)
	}
	if in.FiscalYearID == 0 {
		return fmt.Errorf("%w: fiscal year required", shared.ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", shared.ErrInvalidInput)
	}
	if in.Source != nil && in.Source.Module == "" {
		return fmt.Errorf("%w: source module required", shared.ErrInvalidInput)
	}
	return validateLineShape(in.Lines)
}

// UpdateDraftInput replaces the header fields and lines of a draft entry.
type UpdateDraftInput struct {
	EntryID     int64
	Date        time.Time
	Description string
	Reference   string
	Lines       []LineInput
	ActorID     int64
}

// Validate checks the request shape.
func (in UpdateDraftInput) Validate() error {
	if in.EntryID == 0 {
		return fmt.Errorf("%w: entry id required", shared.ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", shared.ErrInvalidInput)
	}
	return validateLineShape(in.Lines)
}

func validateLineShape(lines []LineInput) error {
	if len(lines) < 2 {
		return fmt.Errorf("%w: at least two lines required", shared.ErrInvalidInput)
	}
	for idx, line := range lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", shared.ErrInvalidInput, idx+1)
		}
	}
	return nil
}

// ListFilter narrows entry listings.
type ListFilter struct {
	TenantID     int64
	FiscalYearID int64
	Status       JournalStatus
	Limit        int
	Offset       int
}

// toLines numbers inputs from 1 in input order and rounds amounts to currency precision.
func toLines(inputs []LineInput) []JournalLine {
	out := make([]JournalLine, 0, len(inputs))
	for idx, in := range inputs {
		out = append(out, JournalLine{
			LineNumber:  idx + 1,
			AccountID:   in.AccountID,
			Description: in.Description,
			Debit:       shared.Round2(in.Debit),
			Credit:      shared.Round2(in.Credit),
			Refs:        LineRefs{StudentID: in.StudentID},
		})
	}
	return out
}
