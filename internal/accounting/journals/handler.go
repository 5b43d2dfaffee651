package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const idempotencyModule = "accounting.journal.create"

// IdempotencyGuard remembers Idempotency-Key headers of create requests.
type IdempotencyGuard interface {
	Claim(ctx context.Context, tenantID int64, key, module string) error
	Release(ctx context.Context, tenantID int64, key, module string) error
}

// Handler serves journal entries over JSON.
type Handler struct {
	service     *Service
	logger      *slog.Logger
	idempotency IdempotencyGuard
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// WithIdempotency enables Idempotency-Key handling on create.
func (h *Handler) WithIdempotency(guard IdempotencyGuard) *Handler {
	h.idempotency = guard
	return h
}

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Description string          `json:"description" validate:"max=500"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	StudentID   *int64          `json:"student_id" validate:"omitempty,gt=0"`
}

type entryRequest struct {
	FiscalYearID int64         `json:"fiscal_year_id" validate:"required,gt=0"`
	Date         string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description  string        `json:"description" validate:"required,max=500"`
	Reference    string        `json:"reference" validate:"max=100"`
	Lines        []lineRequest `json:"lines" validate:"required,min=2,dive"`
	AutoPost     bool          `json:"auto_post"`
}

type updateRequest struct {
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description string        `json:"description" validate:"required,max=500"`
	Reference   string        `json:"reference" validate:"max=100"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

func toLineInputs(lines []lineRequest) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineInput{
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
			StudentID:   l.StudentID,
		})
	}
	return out
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
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
	status := JournalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", JournalStatusDraft, JournalStatusPosted, JournalStatusCancelled:
	default:
		httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, status))
		return
	}
	page := internalShared.ParsePage(r.URL.Query().Get("page"), r.URL.Query().Get("per_page"))
	entries, err := h.service.List(r.Context(), ListFilter{
		TenantID:     id.TenantID,
		FiscalYearID: fyID,
		Status:       status,
		Limit:        page.Limit(),
		Offset:       page.Offset(),
	})
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"page": page.Page, "per_page": page.PerPage, "entries": entries})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req entryRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := httpx.ParseDate(req.Date)

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.Claim(r.Context(), id.TenantID, key, idempotencyModule); err != nil {
			h.fail(w, "claim idempotency key", err)
			return
		}
	}
	entry, err := h.service.CreateEntry(r.Context(), CreateEntryInput{
		TenantID:     id.TenantID,
		FiscalYearID: req.FiscalYearID,
		Date:         date,
		Description:  req.Description,
		Reference:    req.Reference,
		Origin:       OriginManual,
		Lines:        toLineInputs(req.Lines),
		ActorID:      id.ActorID,
		AutoPost:     req.AutoPost,
	})
	if err != nil {
		if key != "" && h.idempotency != nil {
			if rerr := h.idempotency.Release(context.WithoutCancel(r.Context()), id.TenantID, key, idempotencyModule); rerr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", rerr))
			}
		}
		h.fail(w, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := httpx.ParseDate(req.Date)
	id, _ := httpx.Identity(r)
	updated, err := h.service.UpdateDraft(r.Context(), UpdateDraftInput{
		EntryID:     entry.ID,
		Date:        date,
		Description: req.Description,
		Reference:   req.Reference,
		Lines:       toLineInputs(req.Lines),
		ActorID:     id.ActorID,
	})
	if err != nil {
		h.fail(w, "update journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}
	id, _ := httpx.Identity(r)
	if err := h.service.DeleteDraft(r.Context(), entry.ID, id.ActorID); err != nil {
		h.fail(w, "delete journal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}
	id, _ := httpx.Identity(r)
	posted, err := h.service.Post(r.Context(), entry.ID, id.ActorID)
	if err != nil {
		h.fail(w, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, posted)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.load(w, r)
	if !ok {
		return
	}
	id, _ := httpx.Identity(r)
	cancelled, err := h.service.Cancel(r.Context(), entry.ID, id.ActorID)
	if err != nil {
		h.fail(w, "cancel journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cancelled)
}

// load resolves the {id} entry and hides entries of other tenants.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (JournalEntry, bool) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return JournalEntry{}, false
	}
	entryID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return JournalEntry{}, false
	}
	entry, err := h.service.Get(r.Context(), entryID)
	if err == nil && entry.TenantID != id.TenantID {
		err = fmt.Errorf("%w: %d", shared.ErrJournalNotFound, entryID)
	}
	if err != nil {
		h.fail(w, "load journal", err)
		return JournalEntry{}, false
	}
	return entry, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status, _ := httpx.StatusOf(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error(op, slog.Any("error", err))
	case errors.Is(err, shared.ErrValidation):
		h.logger.Info(op, slog.String("kind", shared.KindOf(err)), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
