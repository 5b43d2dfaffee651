package shared

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every ValidationError regardless of kind.
var ErrValidation = errors.New("accounting: validation failed")

// Validation kinds. They are always wrapped in a *ValidationError.
var (
	// ErrUnbalancedLine indicates a line with both or neither of debit/credit set.
	ErrUnbalancedLine = errors.New("accounting: line must carry exactly one of debit or credit")
	// ErrManualEntryNotAllowed indicates a manual line against a restricted account.
	ErrManualEntryNotAllowed = errors.New("accounting: account does not allow manual entries")
	// ErrEntryNotBalanced indicates total debit != total credit.
	ErrEntryNotBalanced = errors.New("accounting: journal entry must balance")
	// ErrDateOutOfRange indicates the entry date is outside its fiscal year.
	ErrDateOutOfRange = errors.New("accounting: entry date outside fiscal year")
	// ErrPostedEntryImmutable indicates an attempt to modify a posted entry.
	ErrPostedEntryImmutable = errors.New("accounting: posted journal entries cannot be modified")
	// ErrNegativeAmount indicates a negative debit or credit.
	ErrNegativeAmount = errors.New("accounting: amounts cannot be negative")
)

// ErrInvalidInput flags malformed requests that never reach the ledger rules.
var ErrInvalidInput = errors.New("accounting: invalid input")

// Lookup and setup errors.
var (
	// ErrDuplicateCode indicates the (tenant, code) pair exists.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
	// ErrDuplicateName indicates the (tenant, name) pair exists.
	ErrDuplicateName = errors.New("accounting: account name already exists")
	// ErrProtectedAccount indicates a system account or one with journal lines.
	ErrProtectedAccount = errors.New("accounting: account is protected from deletion")
	// ErrNoActiveFiscalYear indicates no active year covers the date.
	ErrNoActiveFiscalYear = errors.New("accounting: no active fiscal year found for date")
	// ErrChartOfAccountsIncomplete indicates conventional accounts are missing.
	ErrChartOfAccountsIncomplete = errors.New("accounting: required accounts not found, set up chart of accounts first")
	// ErrInvalidDateRange indicates start >= end.
	ErrInvalidDateRange = errors.New("accounting: end date must be after start date")
	// ErrDuplicateFiscalYear indicates the (tenant, name) fiscal year exists.
	ErrDuplicateFiscalYear = errors.New("accounting: fiscal year name already exists")
	// ErrDuplicateBudgetLine indicates a budget already exists for the account and year.
	ErrDuplicateBudgetLine = errors.New("accounting: budget line already exists for account")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrFiscalYearNotFound indicates missing fiscal year.
	ErrFiscalYearNotFound = errors.New("accounting: fiscal year not found")
	// ErrPeriodNotFound indicates missing accounting period.
	ErrPeriodNotFound = errors.New("accounting: accounting period not found")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrBudgetLineNotFound indicates missing budget line.
	ErrBudgetLineNotFound = errors.New("accounting: budget line not found")
	// ErrDuplicateEntryNumber indicates an entry number is already taken.
	ErrDuplicateEntryNumber = errors.New("accounting: journal entry number already exists")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrSourceConflict indicates the source link already exists.
	ErrSourceConflict = errors.New("accounting: source link conflict")
)

// State errors.
var (
	// ErrAlreadyPosted indicates post was called on a posted entry.
	ErrAlreadyPosted = errors.New("accounting: entry is already posted")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrFiscalYearClosed indicates postings into a closed fiscal year.
	ErrFiscalYearClosed = errors.New("accounting: fiscal year is closed")
	// ErrPeriodClosed indicates postings into a closed accounting period.
	ErrPeriodClosed = errors.New("accounting: accounting period is closed")
	// ErrSequenceExhausted indicates a number prefix has used every sequence.
	ErrSequenceExhausted = errors.New("accounting: journal number sequence exhausted")
)

// ValidationError reports a single violated ledger rule.
type ValidationError struct {
	Kind   error
	Line   int
	Detail string
}

// NewValidationError builds a ValidationError for the kind; line is 0 for entry-level rules.
func NewValidationError(kind error, line int, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Line: line, Detail: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	msg := e.Kind.Error()
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes both the family sentinel and the specific kind to errors.Is.
func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Kind}
}

// KindOf returns a short label for metrics and logs.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrUnbalancedLine):
		return "unbalanced_line"
	case errors.Is(err, ErrManualEntryNotAllowed):
		return "manual_entry_not_allowed"
	case errors.Is(err, ErrEntryNotBalanced):
		return "entry_not_balanced"
	case errors.Is(err, ErrDateOutOfRange):
		return "date_out_of_range"
	case errors.Is(err, ErrPostedEntryImmutable):
		return "posted_entry_immutable"
	case errors.Is(err, ErrNegativeAmount):
		return "negative_amount"
	case errors.Is(err, ErrFiscalYearClosed):
		return "fiscal_year_closed"
	case errors.Is(err, ErrPeriodClosed):
		return "period_closed"
	default:
		return "other"
	}
}
