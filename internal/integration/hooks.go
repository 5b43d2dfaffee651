package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Source modules recorded in source_links.
const (
	ModuleInvoice = "BILLING.INVOICE"
	ModulePayment = "BILLING.PAYMENT"
)

// Ledger exposes journal operations required by integrations.
type Ledger interface {
	CreateEntry(ctx context.Context, input journals.CreateEntryInput) (journals.JournalEntry, error)
	FindBySource(ctx context.Context, module string, ref uuid.UUID) (journals.JournalEntry, error)
}

// FiscalCalendar provides fiscal year lookups.
type FiscalCalendar interface {
	FindActiveFiscalYear(ctx context.Context, tenantID int64, date time.Time) (periods.FiscalYear, error)
}

// ConventionSource resolves the tenant's role to account mapping.
type ConventionSource interface {
	Conventions(ctx context.Context, tenantID int64, roles ...mappings.Role) (mappings.Conventions, error)
}

// Hooks turns billing events into posted journal entries. Conventions are
// read on every posting so a mapping change made through any instance
// applies to the next posting everywhere.
type Hooks struct {
	ledger      Ledger
	calendar    FiscalCalendar
	conventions ConventionSource

	flight singleflight.Group
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, calendar FiscalCalendar, conventions ConventionSource) *Hooks {
	return &Hooks{
		ledger:      ledger,
		calendar:    calendar,
		conventions: conventions,
	}
}

// resolve loads the accounts behind roles. Concurrent postings of one tenant
// share a single lookup.
func (h *Hooks) resolve(ctx context.Context, tenantID int64, roles ...mappings.Role) (mappings.Conventions, error) {
	key := make([]string, 0, len(roles)+1)
	key = append(key, strconv.FormatInt(tenantID, 10))
	for _, role := range roles {
		key = append(key, string(role))
	}
	v, err, _ := h.flight.Do(strings.Join(key, ":"), func() (any, error) {
		return h.conventions.Conventions(ctx, tenantID, roles...)
	})
	if err != nil {
		return mappings.Conventions{}, err
	}
	return v.(mappings.Conventions), nil
}

// InvoiceSourceID derives the idempotency key of an invoice posting.
func InvoiceSourceID(invoiceID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("INVOICE:%d", invoiceID)))
}

// PaymentSourceID derives the idempotency key of a payment posting.
func PaymentSourceID(paymentID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PAYMENT:%d", paymentID)))
}

// PostInvoice posts DR receivable / CR revenue / CR VAT for an issued invoice.
// A repeated call for the same invoice returns the entry posted first.
func (h *Hooks) PostInvoice(ctx context.Context, inv Invoice, actorID int64) (journals.JournalEntry, error) {
	if inv.ID == 0 || inv.TenantID == 0 {
		return journals.JournalEntry{}, fmt.Errorf("%w: invoice id and tenant required", shared.ErrInvalidInput)
	}
	if inv.IssueDate.IsZero() {
		return journals.JournalEntry{}, fmt.Errorf("%w: invoice issue date required", shared.ErrInvalidInput)
	}
	if inv.TotalAmount.IsNegative() || inv.TotalTaxableAmount.IsNegative() || inv.TotalVAT.IsNegative() {
		return journals.JournalEntry{}, fmt.Errorf("%w: invoice amounts cannot be negative", shared.ErrInvalidInput)
	}
	source := journals.Source{Module: ModuleInvoice, Ref: InvoiceSourceID(inv.ID)}
	if existing, ok, err := h.existing(ctx, source); err != nil || ok {
		return existing, err
	}
	year, err := h.calendar.FindActiveFiscalYear(ctx, inv.TenantID, inv.IssueDate)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	conv, err := h.resolve(ctx, inv.TenantID,
		mappings.RoleAccountsReceivable, mappings.RoleDefaultRevenue, mappings.RoleVATPayable)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	lines := nonZero([]journals.LineInput{
		{AccountID: conv.Receivable, Debit: inv.TotalAmount, StudentID: inv.StudentID,
			Description: fmt.Sprintf("Invoice %s - %s", inv.Number, inv.CustomerName)},
		{AccountID: conv.Revenue, Credit: inv.TotalTaxableAmount, StudentID: inv.StudentID,
			Description: fmt.Sprintf("Revenue - Invoice %s", inv.Number)},
		{AccountID: conv.VATPayable, Credit: inv.TotalVAT,
			Description: fmt.Sprintf("VAT Collected - Invoice %s", inv.Number)},
	})
	invoiceID := inv.ID
	return h.post(ctx, journals.CreateEntryInput{
		TenantID:         inv.TenantID,
		FiscalYearID:     year.ID,
		Date:             inv.IssueDate,
		Description:      fmt.Sprintf("Invoice %s - %s", inv.Number, inv.CustomerName),
		Reference:        inv.Number,
		Origin:           journals.OriginInvoice,
		BillingInvoiceID: &invoiceID,
		Lines:            lines,
		ActorID:          actorID,
		AutoPost:         true,
		Source:           &source,
	})
}

// PostPayment posts DR cash or bank / CR receivable for a received payment.
// A repeated call for the same payment returns the entry posted first.
func (h *Hooks) PostPayment(ctx context.Context, pay Payment, actorID int64) (journals.JournalEntry, error) {
	if pay.ID == 0 || pay.TenantID == 0 {
		return journals.JournalEntry{}, fmt.Errorf("%w: payment id and tenant required", shared.ErrInvalidInput)
	}
	if pay.PaymentDate.IsZero() {
		return journals.JournalEntry{}, fmt.Errorf("%w: payment date required", shared.ErrInvalidInput)
	}
	if !pay.Amount.IsPositive() {
		return journals.JournalEntry{}, fmt.Errorf("%w: payment amount must be positive", shared.ErrInvalidInput)
	}
	source := journals.Source{Module: ModulePayment, Ref: PaymentSourceID(pay.ID)}
	if existing, ok, err := h.existing(ctx, source); err != nil || ok {
		return existing, err
	}
	year, err := h.calendar.FindActiveFiscalYear(ctx, pay.TenantID, pay.PaymentDate)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	deposit := DepositRole(pay.Method)
	conv, err := h.resolve(ctx, pay.TenantID, deposit, mappings.RoleAccountsReceivable)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	reference := pay.TransactionID
	if reference == "" {
		reference = pay.InvoiceNumber
	}
	paymentID := pay.ID
	var invoiceID *int64
	if pay.InvoiceID != 0 {
		id := pay.InvoiceID
		invoiceID = &id
	}
	return h.post(ctx, journals.CreateEntryInput{
		TenantID:         pay.TenantID,
		FiscalYearID:     year.ID,
		Date:             pay.PaymentDate,
		Description:      fmt.Sprintf("Payment - Invoice %s", pay.InvoiceNumber),
		Reference:        reference,
		Origin:           journals.OriginPayment,
		PaymentID:        &paymentID,
		BillingInvoiceID: invoiceID,
		Lines: []journals.LineInput{
			{AccountID: conv.Account(deposit), Debit: pay.Amount, StudentID: pay.StudentID,
				Description: fmt.Sprintf("Payment received - %s - Invoice %s", pay.Method, pay.InvoiceNumber)},
			{AccountID: conv.Receivable, Credit: pay.Amount, StudentID: pay.StudentID,
				Description: fmt.Sprintf("Payment applied - Invoice %s", pay.InvoiceNumber)},
		},
		ActorID:  actorID,
		AutoPost: true,
		Source:   &source,
	})
}

func (h *Hooks) existing(ctx context.Context, source journals.Source) (journals.JournalEntry, bool, error) {
	entry, err := h.ledger.FindBySource(ctx, source.Module, source.Ref)
	if err == nil {
		return entry, true, nil
	}
	if errors.Is(err, shared.ErrJournalNotFound) {
		return journals.JournalEntry{}, false, nil
	}
	return journals.JournalEntry{}, false, err
}

func (h *Hooks) post(ctx context.Context, input journals.CreateEntryInput) (journals.JournalEntry, error) {
	entry, err := h.ledger.CreateEntry(ctx, input)
	if errors.Is(err, shared.ErrSourceAlreadyLinked) {
		return h.ledger.FindBySource(ctx, input.Source.Module, input.Source.Ref)
	}
	return entry, err
}

// nonZero drops lines with no amount, such as the VAT line of an untaxed invoice.
func nonZero(lines []journals.LineInput) []journals.LineInput {
	out := lines[:0]
	for _, l := range lines {
		if l.Debit.Equal(decimal.Zero) && l.Credit.Equal(decimal.Zero) {
			continue
		}
		out = append(out, l)
	}
	return out
}
