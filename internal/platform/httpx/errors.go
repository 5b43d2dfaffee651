// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrUnauthorized is returned when the caller identity is missing.
var ErrUnauthorized = errors.New("unauthorized")

type mapping struct {
	targets []error
	status  int
	title   string
}

// Order matters: validation failures also match their kind, and the
// state errors below must not shadow them.
var mappings = []mapping{
	{[]error{shared.ErrValidation}, http.StatusUnprocessableEntity, "Validation Failed"},
	{[]error{shared.ErrInvalidInput, shared.ErrInvalidDateRange}, http.StatusBadRequest, "Invalid Input"},
	{[]error{shared.ErrAccountNotFound, shared.ErrFiscalYearNotFound, shared.ErrPeriodNotFound,
		shared.ErrJournalNotFound, shared.ErrBudgetLineNotFound}, http.StatusNotFound, "Not Found"},
	{[]error{shared.ErrDuplicateCode, shared.ErrDuplicateName, shared.ErrDuplicateFiscalYear,
		shared.ErrDuplicateBudgetLine, shared.ErrDuplicateEntryNumber, shared.ErrSourceAlreadyLinked,
		internalShared.ErrIdempotencyConflict}, http.StatusConflict, "Duplicate"},
	{[]error{shared.ErrNoActiveFiscalYear, shared.ErrChartOfAccountsIncomplete}, http.StatusPreconditionFailed, "Setup Required"},
	{[]error{shared.ErrProtectedAccount, shared.ErrAlreadyPosted, shared.ErrInvalidStatus,
		shared.ErrFiscalYearClosed, shared.ErrPeriodClosed, shared.ErrSequenceExhausted}, http.StatusConflict, "Invalid State"},
	{[]error{ErrUnauthorized}, http.StatusUnauthorized, "Unauthorized"},
	{[]error{internalShared.ErrLockNotObtained, internalShared.ErrConcurrentUpdate}, http.StatusServiceUnavailable, "Busy"},
}

// StatusOf returns the HTTP status and problem title for err.
func StatusOf(err error) (int, string) {
	for _, m := range mappings {
		for _, target := range m.targets {
			if errors.Is(err, target) {
				return m.status, m.title
			}
		}
	}
	return http.StatusInternalServerError, "Internal Error"
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusOf(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, title, "")
		return
	}
	problem := ProblemDetail{Title: title, Status: status, Detail: err.Error()}
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		problem.Kind = shared.KindOf(verr)
		problem.Line = verr.Line
	} else if kind := shared.KindOf(err); kind != "other" {
		problem.Kind = kind
	}
	JSON(w, status, problem)
}
