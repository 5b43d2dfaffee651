package accounting_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

const tenant = int64(42)

var today = time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*accounting.Service, *ledgertest.Fixture, int64) {
	t.Helper()
	f := ledgertest.NewFixture(func() time.Time { return today })
	fy, _ := f.OpenYear(t, tenant, "2025/2026", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	svc := accounting.NewService(accounting.Components{
		Accounts: f.Accounts,
		Periods:  f.Periods,
		Journals: f.Journals,
		Mappings: f.Mappings,
		Reports:  f.Reports,
		Budgets:  f.Budgets,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, f, fy.ID
}

func TestSetupThenPostInvoiceAndPayment(t *testing.T) {
	svc, f, _ := newService(t)
	ctx := context.Background()
	inv := integration.Invoice{ID: 1, TenantID: tenant, Number: "INV-1", TotalAmount: dec("115"),
		TotalTaxableAmount: dec("100"), TotalVAT: dec("15"), IssueDate: today}

	_, err := svc.PostInvoiceToLedger(ctx, inv, 1)
	require.ErrorIs(t, err, shared.ErrChartOfAccountsIncomplete)

	chart, err := svc.SetupChartOfAccounts(ctx, tenant, 1)
	require.NoError(t, err)
	require.Len(t, chart, 26)

	entry, err := svc.PostInvoiceToLedger(ctx, inv, 1)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 3)

	_, err = svc.PostPaymentToLedger(ctx, integration.Payment{ID: 1, TenantID: tenant, InvoiceID: 1, InvoiceNumber: "INV-1",
		Amount: dec("115"), Method: "cash", PaymentDate: today}, 1)
	require.NoError(t, err)

	cash, err := f.Accounts.GetBalance(ctx, chart["1100"].ID, nil)
	require.NoError(t, err)
	assert.True(t, cash.Equal(dec("115")))
	receivable, err := f.Accounts.GetBalance(ctx, chart["1200"].ID, nil)
	require.NoError(t, err)
	assert.True(t, receivable.IsZero())
}

func TestSetAccountMappingRedirectsPostings(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	chart, err := svc.SetupChartOfAccounts(ctx, tenant, 1)
	require.NoError(t, err)

	_, err = svc.PostInvoiceToLedger(ctx, integration.Invoice{ID: 1, TenantID: tenant, Number: "INV-1",
		TotalAmount: dec("50"), TotalTaxableAmount: dec("50"), IssueDate: today}, 1)
	require.NoError(t, err)

	_, err = svc.SetAccountMapping(ctx, tenant, "DEFAULT_REVENUE", chart["4100"].ID)
	require.NoError(t, err)
	entry, err := svc.PostInvoiceToLedger(ctx, integration.Invoice{ID: 2, TenantID: tenant, Number: "INV-2",
		TotalAmount: dec("50"), TotalTaxableAmount: dec("50"), IssueDate: today}, 1)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
	assert.Equal(t, chart["4100"].ID, entry.Lines[1].AccountID)
}

type client struct {
	t      *testing.T
	router http.Handler
}

func newClient(t *testing.T, svc *accounting.Service, id *internalShared.Identity) client {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id != nil {
				req = req.WithContext(internalShared.ContextWithIdentity(req.Context(), *id))
			}
			next.ServeHTTP(w, req)
		})
	})
	handler := accounting.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, nil)
	r.Route("/accounting", handler.MountRoutes)
	return client{t: t, router: r}
}

func (c client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	out := map[string]any{}
	if rr.Body.Len() > 0 && rr.Body.Bytes()[0] == '{' {
		require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &out))
	}
	return rr.Code, out
}

func TestHTTPJournalFlow(t *testing.T) {
	svc, _, fyID := newService(t)
	c := newClient(t, svc, &internalShared.Identity{TenantID: tenant, ActorID: 7})

	status, body := c.do(http.MethodPost, "/accounting/setup", nil)
	require.Equal(t, http.StatusOK, status, body)
	cashID := body["1100"].(map[string]any)["id"]
	revenueID := body["4100"].(map[string]any)["id"]

	status, body = c.do(http.MethodPost, "/accounting/journals", map[string]any{
		"fiscal_year_id": fyID, "date": "2025-10-20", "description": "fees",
		"lines": []map[string]any{
			{"account_id": cashID, "debit": "100"},
			{"account_id": revenueID, "credit": "90"},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, status, body)
	assert.Equal(t, "entry_not_balanced", body["kind"])

	status, body = c.do(http.MethodPost, "/accounting/journals", map[string]any{
		"fiscal_year_id": fyID, "date": "2025-10-20", "description": "fees", "auto_post": true,
		"lines": []map[string]any{
			{"account_id": cashID, "debit": "100"},
			{"account_id": revenueID, "credit": "100"},
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "POSTED", body["status"])
	assert.Equal(t, "JE2025000001", body["number"])
	entryPath := fmt.Sprintf("/accounting/journals/%v", body["id"])

	status, body = c.do(http.MethodPost, entryPath+"/post", nil)
	require.Equal(t, http.StatusConflict, status, body)

	status, body = c.do(http.MethodGet, fmt.Sprintf("/accounting/reports/trial-balance?fiscal_year_id=%d", fyID), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["is_balanced"])
	assert.Equal(t, "100", body["total_debit"])

	status, body = c.do(http.MethodGet, fmt.Sprintf("/accounting/accounts/%v/ledger", cashID), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "100", body["closing_balance"])

	other := newClient(t, svc, &internalShared.Identity{TenantID: tenant + 1, ActorID: 8})
	status, _ = other.do(http.MethodGet, entryPath, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHTTPRequiresIdentity(t *testing.T) {
	svc, _, _ := newService(t)
	c := newClient(t, svc, nil)
	status, _ := c.do(http.MethodGet, "/accounting/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTPInvoiceBeforeSetup(t *testing.T) {
	svc, _, _ := newService(t)
	c := newClient(t, svc, &internalShared.Identity{TenantID: tenant, ActorID: 7})
	status, body := c.do(http.MethodPost, "/accounting/integrations/invoices", map[string]any{
		"id": 9, "number": "INV-9", "total_amount": "115", "total_taxable_amount": "100", "total_vat": "15", "issue_date": "2025-10-20",
	})
	assert.Equal(t, http.StatusPreconditionFailed, status, body)

	status, _ = c.do(http.MethodPost, "/accounting/journals", map[string]any{"description": "missing fields"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
