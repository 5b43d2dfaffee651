package accounts

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler serves the chart of accounts over JSON.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/tree", h.Tree)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/balance", h.Balance)
}

type accountRequest struct {
	Code               string          `json:"code" validate:"required,max=20"`
	Name               string          `json:"name" validate:"required,max=200"`
	NameArabic         string          `json:"name_arabic" validate:"max=200"`
	Type               AccountType     `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID           *int64          `json:"parent_id" validate:"omitempty,gt=0"`
	AllowManualEntries *bool           `json:"allow_manual_entries"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningSide        BalanceSide     `json:"opening_side" validate:"omitempty,oneof=DEBIT CREDIT"`
	Description        string          `json:"description" validate:"max=1000"`
}

type updateRequest struct {
	Name               string          `json:"name" validate:"required,max=200"`
	NameArabic         string          `json:"name_arabic" validate:"max=200"`
	ParentID           *int64          `json:"parent_id" validate:"omitempty,gt=0"`
	IsActive           bool            `json:"is_active"`
	AllowManualEntries bool            `json:"allow_manual_entries"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningSide        BalanceSide     `json:"opening_side" validate:"omitempty,oneof=DEBIT CREDIT"`
	Description        string          `json:"description" validate:"max=1000"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{ActiveOnly: r.URL.Query().Get("active") == "true"}
	if typ := AccountType(r.URL.Query().Get("type")); typ != "" {
		if !typ.Valid() {
			httpx.RespondError(w, fmt.Errorf("%w: unknown account type %q", shared.ErrInvalidInput, typ))
			return
		}
		filter.Types = []AccountType{typ}
	}
	list, err := h.service.List(r.Context(), id.TenantID, filter)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tree, err := h.service.Tree(r.Context(), id.TenantID)
	if err != nil {
		h.fail(w, "account tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req accountRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	manual := true
	if req.AllowManualEntries != nil {
		manual = *req.AllowManualEntries
	}
	acc, err := h.service.Create(r.Context(), CreateAccountInput{
		TenantID:           id.TenantID,
		Code:               req.Code,
		Name:               req.Name,
		NameArabic:         req.NameArabic,
		Type:               req.Type,
		ParentID:           req.ParentID,
		AllowManualEntries: manual,
		OpeningBalance:     req.OpeningBalance,
		OpeningSide:        req.OpeningSide,
		Description:        req.Description,
		ActorID:            id.ActorID,
	})
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.load(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, _ := httpx.Identity(r)
	updated, err := h.service.Update(r.Context(), UpdateAccountInput{
		ID:                 acc.ID,
		Name:               req.Name,
		NameArabic:         req.NameArabic,
		ParentID:           req.ParentID,
		IsActive:           req.IsActive,
		AllowManualEntries: req.AllowManualEntries,
		OpeningBalance:     req.OpeningBalance,
		OpeningSide:        req.OpeningSide,
		Description:        req.Description,
		ActorID:            id.ActorID,
	})
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.load(w, r)
	if !ok {
		return
	}
	id, _ := httpx.Identity(r)
	if err := h.service.Delete(r.Context(), acc.ID, id.ActorID); err != nil {
		h.fail(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.load(w, r)
	if !ok {
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.GetBalance(r.Context(), acc.ID, asOf)
	if err != nil {
		h.fail(w, "account balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"account_id":     acc.ID,
		"code":           acc.Code,
		"as_of":          asOf,
		"balance":        balance,
		"cached_balance": acc.CurrentBalance,
		"cache_is_stale": !balance.Equal(acc.CurrentBalance) && asOf == nil,
	})
}

// load resolves the {id} account and hides accounts of other tenants.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Account, bool) {
	id, err := httpx.Identity(r)
	if err != nil {
		httpx.RespondError(w, err)
		return Account{}, false
	}
	accountID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return Account{}, false
	}
	acc, err := h.service.Get(r.Context(), accountID)
	if err == nil && acc.TenantID != id.TenantID {
		err = fmt.Errorf("%w: %d", shared.ErrAccountNotFound, accountID)
	}
	if err != nil {
		h.fail(w, "load account", err)
		return Account{}, false
	}
	return acc, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusOf(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
