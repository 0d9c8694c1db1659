package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/service"
	"storefront/backend/internal/store/memory"
)

const testManagerPIN = "739154"

// newTestAPI builds the full stack on the in-memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, service.Options{ShopWhatsApp: "5511999990000"})
	t.Cleanup(svc.Close)
	auth := NewAuthManager(context.Background(), "test-secret-key-0123456789abcdef", time.Hour, testManagerPIN, repo)

	return New(svc, auth, Options{AllowedOrigin: "*", StoreName: "Loja Teste"})
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
	csrf    string
}

func newClient(t *testing.T, username string, password string) *client {
	t.Helper()
	handler := newTestAPI(t).Handler()
	return &client{
		t:       t,
		handler: handler,
		token:   loginAs(t, handler, username, password),
		csrf:    fetchCSRFToken(t, handler),
	}
}

func (c *client) do(method string, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-CSRF-Token", c.csrf)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestProductsRequireAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCashierCannotManageProducts(t *testing.T) {
	c := newClient(t, "cashier", "cashier123")

	rec := c.do(http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{Name: "Cinto", Category: "acessorios", PriceCents: 100})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterAndPosSaleFlow(t *testing.T) {
	c := newClient(t, "admin", "admin123")

	rec := c.do(http.MethodPost, "/api/v1/sales/pos", domain.PosSaleRequest{
		Items: []domain.CartItem{{ProductID: "prd-camiseta-basica", Qty: 1}},
	})
	require.Equal(t, http.StatusConflict, rec.Code, "register closed")

	rec = c.do(http.MethodPost, "/api/v1/register/open", domain.RegisterOpenRequest{Amount: "100,00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/v1/register/open", domain.RegisterOpenRequest{AmountCents: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/sales/pos", domain.PosSaleRequest{
		Items: []domain.CartItem{{ProductID: "prd-bolsa-couro", Qty: 9}},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	stock := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "prd-bolsa-couro", stock["product_id"])
	assert.EqualValues(t, 6, stock["available"])

	rec = c.do(http.MethodPost, "/api/v1/sales/pos", domain.PosSaleRequest{
		Items: []domain.CartItem{{ProductID: "prd-camiseta-basica", Qty: 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[map[string]domain.Sale](t, rec)["sale"]
	assert.Equal(t, int64(9980), sale.TotalCents)

	rec = c.do(http.MethodGet, "/api/v1/register", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[domain.RegisterState](t, rec)
	assert.True(t, state.IsOpen)
	assert.Equal(t, int64(19980), state.BalanceCents)

	rec = c.do(http.MethodPost, "/api/v1/register/movements", domain.CashMovementRequest{Type: domain.EntryOut, AmountCents: 50000})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/sales/"+sale.ID+"/cancel", domain.CancelSaleRequest{ManagerPIN: "000000"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/sales/"+sale.ID+"/cancel", domain.CancelSaleRequest{ManagerPIN: testManagerPIN})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decodeBody[domain.CancelSaleResponse](t, rec)
	assert.Equal(t, 2, cancelled.RestoredItems)

	rec = c.do(http.MethodGet, "/api/v1/register/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[map[string]domain.SessionSummary](t, rec)["summary"]
	assert.Equal(t, 1, summary.CancelledSalesCount)
	assert.Equal(t, int64(10000), summary.FinalBalanceCents)

	rec = c.do(http.MethodPost, "/api/v1/register/close", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/v1/register/close-receipt.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = c.do(http.MethodGet, "/api/v1/register/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
}

func TestStorefrontOrderIsPublic(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/store/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"investment_cents":2200`)

	body, _ := json.Marshal(domain.OnlineOrderRequest{
		Items:         []domain.CartItem{{ProductID: "prd-sandalia", Qty: 1}},
		CustomerName:  "Bruna",
		CustomerPhone: "(11) 98888-7777",
		PaymentMethod: "pix",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/store/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[domain.OnlineOrderResponse](t, rec)
	assert.Equal(t, domain.SaleStatusPending, resp.Sale.Status)
	assert.True(t, strings.HasPrefix(resp.WhatsAppURL, "https://wa.me/5511999990000?text="))
}

func TestMovementEditOnSaleEntryConflicts(t *testing.T) {
	c := newClient(t, "admin", "admin123")

	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/register/open", domain.RegisterOpenRequest{AmountCents: 0}).Code)
	rec := c.do(http.MethodPost, "/api/v1/sales/pos", domain.PosSaleRequest{
		Items: []domain.CartItem{{ProductID: "prd-brinco-prata", Qty: 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	state := decodeBody[domain.RegisterState](t, c.do(http.MethodGet, "/api/v1/register", nil))
	saleEntry := state.History[len(state.History)-1]
	require.NotEmpty(t, saleEntry.SaleID)

	rec = c.do(http.MethodDelete, "/api/v1/register/movements/"+saleEntry.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/register/movements", domain.CashMovementRequest{Type: domain.EntryIn, Amount: "12,50", Description: "Troco"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	event := decodeBody[map[string]domain.CashEvent](t, rec)["event"]
	assert.Equal(t, int64(1250), event.AmountCents)

	rec = c.do(http.MethodDelete, "/api/v1/register/movements/"+event.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReplayAndAuditAreAdminOnly(t *testing.T) {
	cashier := newClient(t, "cashier", "cashier123")
	rec := cashier.do(http.MethodPost, "/api/v1/register/replay", []map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := newClient(t, "admin", "admin123")
	rec = admin.do(http.MethodPost, "/api/v1/register/replay", []map[string]any{
		{"id": "a", "entry_type": "open", "amount_cents": 500, "created_at": "2026-03-01T09:00:00Z"},
		{"id": "b", "entry_type": "exit", "amount_cents": 200, "created_at": "2026-03-01T10:00:00Z"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decodeBody[domain.RegisterState](t, rec)
	assert.Equal(t, int64(300), state.BalanceCents)

	rec = admin.do(http.MethodGet, "/api/v1/audit-logs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCashierThroughAPI(t *testing.T) {
	admin := newClient(t, "admin", "admin123")

	rec := admin.do(http.MethodPost, "/api/v1/users/cashiers", domain.CashierCreateRequest{Username: "caixa02", Password: "senha123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = admin.do(http.MethodPost, "/api/v1/users/cashiers", domain.CashierCreateRequest{Username: "caixa02", Password: "senha123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = admin.do(http.MethodGet, "/api/v1/users/cashiers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "caixa02")
}
