package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/budgets"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler wires the ledger JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	accounts *accounts.Handler
	journals *journals.Handler
	reports  singleflight.Group
}

// NewHandler builds a Handler instance. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency journals.IdempotencyGuard) *Handler {
	jh := journals.NewHandler(logger, service.Journals)
	if idempotency != nil {
		jh.WithIdempotency(idempotency)
	}
	return &Handler{
		logger:   logger,
		service:  service,
		accounts: accounts.NewHandler(logger, service.Accounts),
		journals: jh,
	}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		h.accounts.MountRoutes(r)
		r.Get("/{id}/ledger", h.handleLedger)
	})
	r.Route("/journals", h.journals.MountRoutes)

	r.Post("/setup", h.handleSetup)
	r.Get("/mappings", h.handleListMappings)
	r.Put("/mappings/{role}", h.handleSetMapping)

	r.Get("/fiscal-years", h.handleListFiscalYears)
	r.Post("/fiscal-years", h.handleCreateFiscalYear)
	r.Get("/fiscal-years/{id}/periods", h.handleListPeriods)
	r.Post("/fiscal-years/{id}/close", h.handleCloseFiscalYear)
	r.Post("/periods/{id}/close", h.handleClosePeriod)

	r.Post("/integrations/invoices", h.handlePostInvoice)
	r.Post("/integrations/payments", h.handlePostPayment)

	r.Get("/reports/trial-balance", h.handleTrialBalance)
	r.Get("/reports/balance-sheet", h.handleBalanceSheet)
	r.Get("/reports/income-statement", h.handleIncomeStatement)
	r.Get("/reports/dashboard", h.handleDashboard)

	r.Get("/budgets", h.handleListBudgets)
	r.Post("/budgets", h.handleCreateBudget)
	r.Post("/budgets/{id}/recalculate", h.handleRecalculateBudget)
	r.Get("/budgets/variance", h.handleVariance)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusOf(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// report collapses identical concurrent report requests of a tenant into one computation.
func (h *Handler) report(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, tenantID int64) (any, error)) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := fmt.Sprintf("%d:%s?%s", id.TenantID, r.URL.Path, r.URL.RawQuery)
	out, err, _ := h.reports.Do(key, func() (any, error) {
		return fn(context.WithoutCancel(r.Context()), id.TenantID)
	})
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	chart, err := h.service.SetupChartOfAccounts(r.Context(), id.TenantID, id.ActorID)
	if err != nil {
		h.fail(w, "setup chart of accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, chart)
}

func (h *Handler) handleListMappings(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.Mappings.List(r.Context(), id.TenantID)
	if err != nil {
		h.fail(w, "list mappings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type mappingRequest struct {
	AccountID int64 `json:"account_id" validate:"required,gt=0"`
}

func (h *Handler) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req mappingRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.SetAccountMapping(r.Context(), id.TenantID, mappings.Role(chi.URLParam(r, "role")), req.AccountID)
	if err != nil {
		h.fail(w, "set mapping", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleListFiscalYears(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	years, err := h.service.Periods.ListFiscalYears(r.Context(), id.TenantID)
	if err != nil {
		h.fail(w, "list fiscal years", err)
		return
	}
	httpx.JSON(w, http.StatusOK, years)
}

type fiscalYearRequest struct {
	Name            string `json:"name" validate:"required,max=50"`
	StartDate       string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IsActive        bool   `json:"is_active"`
	GeneratePeriods bool   `json:"generate_periods"`
}

func (h *Handler) handleCreateFiscalYear(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req fiscalYearRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, _ := httpx.ParseDate(req.StartDate)
	end, _ := httpx.ParseDate(req.EndDate)
	fy, ps, err := h.service.Periods.CreateFiscalYear(r.Context(), periods.CreateFiscalYearInput{
		TenantID:        id.TenantID,
		Name:            req.Name,
		StartDate:       start,
		EndDate:         end,
		IsActive:        req.IsActive,
		GeneratePeriods: req.GeneratePeriods,
		ActorID:         id.ActorID,
	})
	if err != nil {
		h.fail(w, "create fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"fiscal_year": fy, "periods": ps})
}

// fiscalYear resolves the {id} year of the caller's tenant.
func (h *Handler) fiscalYear(w http.ResponseWriter, r *http.Request) (periods.FiscalYear, int64, bool) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return periods.FiscalYear{}, 0, false
	}
	fyID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return periods.FiscalYear{}, 0, false
	}
	fy, err := h.service.Periods.GetFiscalYear(r.Context(), fyID)
	if err == nil && fy.TenantID != id.TenantID {
		err = fmt.Errorf("%w: %d", shared.ErrFiscalYearNotFound, fyID)
	}
	if err != nil {
		h.fail(w, "load fiscal year", err)
		return periods.FiscalYear{}, 0, false
	}
	return fy, id.ActorID, true
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	fy, _, ok := h.fiscalYear(w, r)
	if !ok {
		return
	}
	ps, err := h.service.Periods.ListPeriods(r.Context(), fy.ID)
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ps)
}

func (h *Handler) handleCloseFiscalYear(w http.ResponseWriter, r *http.Request) {
	fy, actorID, ok := h.fiscalYear(w, r)
	if !ok {
		return
	}
	closed, err := h.service.Periods.CloseFiscalYear(r.Context(), fy.ID, actorID)
	if err != nil {
		h.fail(w, "close fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, closed)
}

// handleClosePeriod closes a period after checking that its year belongs to the caller.
func (h *Handler) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	periodID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fyID, err := httpx.QueryID(r, "fiscal_year_id")
	if err != nil || fyID == 0 {
		httpx.RespondError(w, fmt.Errorf("%w: fiscal_year_id required", shared.ErrInvalidInput))
		return
	}
	fy, err := h.service.Periods.GetFiscalYear(r.Context(), fyID)
	if err == nil && fy.TenantID != id.TenantID {
		err = fmt.Errorf("%w: %d", shared.ErrFiscalYearNotFound, fyID)
	}
	if err != nil {
		h.fail(w, "load fiscal year", err)
		return
	}
	ps, err := h.service.Periods.ListPeriods(r.Context(), fy.ID)
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	found := false
	for _, p := range ps {
		found = found || p.ID == periodID
	}
	if !found {
		httpx.RespondError(w, fmt.Errorf("%w: %d", shared.ErrPeriodNotFound, periodID))
		return
	}
	period, err := h.service.Periods.ClosePeriod(r.Context(), periodID, id.ActorID)
	if err != nil {
		h.fail(w, "close period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

type invoiceRequest struct {
	ID                 int64           `json:"id" validate:"required,gt=0"`
	Number             string          `json:"number" validate:"required,max=50"`
	CustomerName       string          `json:"customer_name" validate:"max=200"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	TotalTaxableAmount decimal.Decimal `json:"total_taxable_amount"`
	TotalVAT           decimal.Decimal `json:"total_vat"`
	IssueDate          string          `json:"issue_date" validate:"required,datetime=2006-01-02"`
	StudentID          *int64          `json:"student_id" validate:"omitempty,gt=0"`
}

func (h *Handler) handlePostInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req invoiceRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	issued, _ := httpx.ParseDate(req.IssueDate)
	entry, err := h.service.PostInvoiceToLedger(r.Context(), integration.Invoice{
		ID:                 req.ID,
		TenantID:           id.TenantID,
		Number:             req.Number,
		CustomerName:       req.CustomerName,
		TotalAmount:        req.TotalAmount,
		TotalTaxableAmount: req.TotalTaxableAmount,
		TotalVAT:           req.TotalVAT,
		IssueDate:          issued,
		StudentID:          req.StudentID,
	}, id.ActorID)
	if err != nil {
		h.fail(w, "post invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type paymentRequest struct {
	ID            int64           `json:"id" validate:"required,gt=0"`
	InvoiceID     int64           `json:"invoice_id" validate:"omitempty,gt=0"`
	InvoiceNumber string          `json:"invoice_number" validate:"max=50"`
	TransactionID string          `json:"transaction_id" validate:"max=100"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"payment_method" validate:"required,max=30"`
	PaymentDate   string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	StudentID     *int64          `json:"student_id" validate:"omitempty,gt=0"`
}

func (h *Handler) handlePostPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	paid, _ := httpx.ParseDate(req.PaymentDate)
	entry, err := h.service.PostPaymentToLedger(r.Context(), integration.Payment{
		ID:            req.ID,
		TenantID:      id.TenantID,
		InvoiceID:     req.InvoiceID,
		InvoiceNumber: req.InvoiceNumber,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Method:        req.Method,
		PaymentDate:   paid,
		StudentID:     req.StudentID,
	}, id.ActorID)
	if err != nil {
		h.fail(w, "post payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func requiredFiscalYear(r *http.Request) (int64, error) {
	fyID, err := httpx.QueryID(r, "fiscal_year_id")
	if err != nil {
		return 0, err
	}
	if fyID == 0 {
		return 0, fmt.Errorf("%w: fiscal_year_id required", shared.ErrInvalidInput)
	}
	return fyID, nil
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, "trial balance", func(ctx context.Context, tenantID int64) (any, error) {
		fyID, err := requiredFiscalYear(r)
		if err != nil {
			return nil, err
		}
		asOf, err := httpx.QueryDate(r, "as_of")
		if err != nil {
			return nil, err
		}
		return h.service.Reports.TrialBalance(ctx, tenantID, fyID, asOf)
	})
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, "balance sheet", func(ctx context.Context, tenantID int64) (any, error) {
		fyID, err := requiredFiscalYear(r)
		if err != nil {
			return nil, err
		}
		asOf, err := httpx.QueryDate(r, "as_of")
		if err != nil {
			return nil, err
		}
		return h.service.Reports.BalanceSheet(ctx, tenantID, fyID, asOf)
	})
}

func (h *Handler) handleIncomeStatement(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, "income statement", func(ctx context.Context, tenantID int64) (any, error) {
		fyID, err := requiredFiscalYear(r)
		if err != nil {
			return nil, err
		}
		start, end, err := dateWindow(r)
		if err != nil {
			return nil, err
		}
		return h.service.Reports.IncomeStatement(ctx, tenantID, fyID, start, end)
	})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, "account ledger", func(ctx context.Context, tenantID int64) (any, error) {
		accountID, err := httpx.PathID(r, "id")
		if err != nil {
			return nil, err
		}
		start, end, err := dateWindow(r)
		if err != nil {
			return nil, err
		}
		return h.service.Reports.Ledger(ctx, tenantID, accountID, start, end)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, "dashboard", func(ctx context.Context, tenantID int64) (any, error) {
		return h.service.Reports.Dashboard(ctx, tenantID)
	})
}

func dateWindow(r *http.Request) (start, end *time.Time, err error) {
	if start, err = httpx.QueryDate(r, "start_date"); err != nil {
		return nil, nil, err
	}
	if end, err = httpx.QueryDate(r, "end_date"); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func (h *Handler) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fyID, err := httpx.QueryID(r, "fiscal_year_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.Budgets.List(r.Context(), id.TenantID, fyID)
	if err != nil {
		h.fail(w, "list budgets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

type budgetRequest struct {
	FiscalYearID   int64           `json:"fiscal_year_id" validate:"required,gt=0"`
	AccountID      int64           `json:"account_id" validate:"required,gt=0"`
	BudgetedAmount decimal.Decimal `json:"budgeted_amount"`
	Notes          string          `json:"notes" validate:"max=2000"`
}

func (h *Handler) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req budgetRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.service.Budgets.Create(r.Context(), budgets.CreateInput{
		TenantID:       id.TenantID,
		FiscalYearID:   req.FiscalYearID,
		AccountID:      req.AccountID,
		BudgetedAmount: req.BudgetedAmount,
		Notes:          req.Notes,
		ActorID:        id.ActorID,
	})
	if err != nil {
		h.fail(w, "create budget", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) handleRecalculateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.service.Budgets.Get(r.Context(), lineID)
	if err == nil && line.TenantID != id.TenantID {
		err = fmt.Errorf("%w: %d", shared.ErrBudgetLineNotFound, lineID)
	}
	if err == nil {
		line, err = h.service.Budgets.Recalculate(r.Context(), lineID)
	}
	if err != nil {
		h.fail(w, "recalculate budget", err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) handleVariance(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	fyID, err := requiredFiscalYear(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var th budgets.Thresholds
	for name, dst := range map[string]**decimal.Decimal{"threshold_amount": &th.Amount, "threshold_percent": &th.Percent} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			httpx.RespondError(w, fmt.Errorf("%w: invalid %s", shared.ErrInvalidInput, name))
			return
		}
		*dst = &v
	}
	report, err := h.service.Budgets.VarianceReport(r.Context(), id.TenantID, fyID, th)
	if err != nil {
		h.fail(w, "budget variance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
