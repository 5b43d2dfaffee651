// Package accounting is the entry point other modules use to reach the ledger.
package accounting

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/budgets"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Components groups the ledger services behind the facade.
type Components struct {
	Accounts *accounts.Service
	Periods  *periods.Service
	Journals *journals.Service
	Mappings *mappings.Service
	Reports  *reports.Service
	Budgets  *budgets.Service
}

// NewComponents wires every ledger service to Postgres.
func NewComponents(pool *pgxpool.Pool, audit AuditPort) Components {
	accountSvc := accounts.NewService(accounts.NewRepository(pool), audit)
	periodSvc := periods.NewService(periods.NewRepository(pool), audit)
	mappingSvc := mappings.NewService(mappings.NewRepository(pool), accountSvc)
	return Components{
		Accounts: accountSvc,
		Periods:  periodSvc,
		Journals: journals.NewService(journals.NewRepository(pool), audit),
		Mappings: mappingSvc,
		Reports:  reports.NewService(reports.NewRepository(pool), mappingSvc),
		Budgets:  budgets.NewService(budgets.NewRepository(pool), accountSvc, periodSvc, audit),
	}
}

// Service exposes the ledger operations used by the web layer and billing.
type Service struct {
	Components
	hooks  *integration.Hooks
	logger *slog.Logger
}

// NewService builds the facade. logger may be nil.
func NewService(c Components, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Components: c,
		hooks:      integration.NewHooks(c.Journals, c.Periods, c.Mappings),
		logger:     logger,
	}
}

// CreateJournalEntry creates a manual entry and posts it when autoPost is set.
func (s *Service) CreateJournalEntry(ctx context.Context, in journals.CreateEntryInput) (journals.JournalEntry, error) {
	in.Origin = journals.OriginManual
	in.BillingInvoiceID, in.PaymentID, in.Source = nil, nil, nil
	entry, err := s.Journals.CreateEntry(ctx, in)
	if err != nil {
		s.logger.Warn("create journal entry", slog.Int64("tenant_id", in.TenantID), slog.Any("error", err))
		return journals.JournalEntry{}, err
	}
	return entry, nil
}

// PostJournalEntry posts a draft entry.
func (s *Service) PostJournalEntry(ctx context.Context, entryID, actorID int64) (journals.JournalEntry, error) {
	return s.Journals.Post(ctx, entryID, actorID)
}

// PostInvoiceToLedger records an issued invoice: DR receivable, CR revenue, CR VAT.
func (s *Service) PostInvoiceToLedger(ctx context.Context, inv integration.Invoice, actorID int64) (journals.JournalEntry, error) {
	entry, err := s.hooks.PostInvoice(ctx, inv, actorID)
	if err != nil {
		s.logger.Error("post invoice to ledger",
			slog.Int64("tenant_id", inv.TenantID), slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		return journals.JournalEntry{}, err
	}
	s.logger.Info("invoice posted", slog.Int64("invoice_id", inv.ID), slog.String("number", entry.Number))
	return entry, nil
}

// PostPaymentToLedger records a received payment: DR cash or bank, CR receivable.
func (s *Service) PostPaymentToLedger(ctx context.Context, pay integration.Payment, actorID int64) (journals.JournalEntry, error) {
	entry, err := s.hooks.PostPayment(ctx, pay, actorID)
	if err != nil {
		s.logger.Error("post payment to ledger",
			slog.Int64("tenant_id", pay.TenantID), slog.Int64("payment_id", pay.ID), slog.Any("error", err))
		return journals.JournalEntry{}, err
	}
	s.logger.Info("payment posted", slog.Int64("payment_id", pay.ID), slog.String("number", entry.Number))
	return entry, nil
}

// SetupChartOfAccounts installs the standard chart and maps the posting
// roles to it. It is safe to repeat.
func (s *Service) SetupChartOfAccounts(ctx context.Context, tenantID, actorID int64) (map[string]accounts.Account, error) {
	chart, err := s.Accounts.CreateDefaultAccounts(ctx, tenantID, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Mappings.SeedFromChart(ctx, tenantID); err != nil {
		return nil, err
	}
	return chart, nil
}

// SetAccountMapping points a posting role at another account of the tenant.
func (s *Service) SetAccountMapping(ctx context.Context, tenantID int64, role mappings.Role, accountID int64) (mappings.AccountMapping, error) {
	return s.Mappings.Set(ctx, tenantID, role, accountID)
}
