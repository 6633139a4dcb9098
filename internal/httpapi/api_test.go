package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/service"
	"github.com/itqanpos/backend/internal/store"
)

type apiFixture struct {
	server       *httptest.Server
	adminToken   string
	cashierToken string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	repo := newUserStore(t, true) // admin "kareem" in tenant "acme"
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repo.CreateUser(ctx, domain.UserAccount{
		ID: "u-2", TenantID: "acme", Username: "laila", Password: string(hash),
		Role: "cashier", BranchID: "riyadh-01", Active: true,
	}))

	_, err = repo.CreateTenant(ctx, domain.TenantSettings{
		TenantID: "acme", Name: "Acme Retail", InvoicePrefix: "INV", InvoiceStart: 1000,
		DefaultTaxRate: decimal.NewFromInt(15), Currency: "SAR",
	})
	require.NoError(t, err)

	_, err = repo.CreateProduct(ctx, domain.Product{
		ID: "p-coffee", TenantID: "acme", SKU: "COF-01", Name: "Coffee",
		CostPrice: decimal.RequireFromString("6.00"),
		SellingPrice: decimal.RequireFromString("10.00"),
		MinQuantity: 3, Active: true,
	})
	require.NoError(t, err)

	cost := decimal.RequireFromString("6.00")
	_, _, err = repo.ApplyStockMovement(ctx, store.MovementParams{
		TenantID: "acme", ProductID: "p-coffee", LocationID: "riyadh-01",
		Kind: domain.MovementIn, Delta: 20, ReferenceType: domain.ReferencePurchase,
		UnitCost: &cost, Actor: "seed", At: time.Now().UTC(),
	})
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := service.New(repo, service.Options{Logger: log})
	auth := NewAuthManager(testSecret, time.Hour, repo)
	api := New(svc, auth, log, "http://localhost:3000")

	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	fixture := &apiFixture{server: server}
	fixture.adminToken = fixture.login(t, "kareem")
	fixture.cashierToken = fixture.login(t, "laila")
	return fixture
}

func (f *apiFixture) login(t *testing.T, username string) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"tenant_id": "acme", "username": username, "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, status, "login body: %s", body)

	var resp domain.LoginResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (f *apiFixture) do(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var parsed errorBody
	require.NoError(t, json.Unmarshal(body, &parsed), "error body: %s", body)
	return parsed.Error.Code
}

func saleBody(qty int64, paid string) map[string]any {
	return map[string]any{
		"branch_id":      "riyadh-01",
		"lines":          []map[string]any{{"product_id": "p-coffee", "quantity": qty}},
		"payment_method": "cash",
		"paid_amount":    paid,
	}
}

func TestHealthzIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAuthMiddleware(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/products", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/products", f.cashierToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminOnlyRoutes(t *testing.T) {
	f := newAPIFixture(t)

	body := map[string]any{
		"product_id": "p-coffee", "location_id": "riyadh-01", "delta": -1, "reason": "count",
	}
	status, raw := f.do(t, http.MethodPost, "/api/v1/stock/adjustments", f.cashierToken, body)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", errorCode(t, raw))

	status, _ = f.do(t, http.MethodPost, "/api/v1/stock/adjustments", f.adminToken, body)
	assert.Equal(t, http.StatusOK, status)
}

func TestLoginRejectsBadCredentialsOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"tenant_id": "acme", "username": "kareem", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(t, raw))

	// Missing fields fail struct validation before any lookup.
	status, raw = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"username": "kareem",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", errorCode(t, raw))
}

func TestCommitSaleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, http.MethodPost, "/api/v1/sales", f.cashierToken, saleBody(5, "57.50"))
	require.Equal(t, http.StatusCreated, status, "body: %s", raw)

	var sale domain.Sale
	require.NoError(t, json.Unmarshal(raw, &sale))
	assert.Equal(t, "INV-001000", sale.InvoiceNumber)
	assert.Equal(t, "acme", sale.TenantID)
	assert.Equal(t, domain.PaymentStatusPaid, sale.PaymentStatus)
	assert.Equal(t, "laila", sale.CreatedBy, "attribution comes from the token")

	status, raw = f.do(t, http.MethodGet, "/api/v1/sales/"+sale.ID, f.cashierToken, nil)
	require.Equal(t, http.StatusOK, status)
	var fetched domain.Sale
	require.NoError(t, json.Unmarshal(raw, &fetched))
	assert.Equal(t, sale.InvoiceNumber, fetched.InvoiceNumber)

	status, _ = f.do(t, http.MethodGet, "/api/v1/sales/invoice/INV-001000", f.cashierToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCommitSaleErrorCodes(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, http.MethodPost, "/api/v1/sales", f.cashierToken, saleBody(100, "0"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "insufficient_stock", errorCode(t, raw))

	status, raw = f.do(t, http.MethodPost, "/api/v1/sales", f.cashierToken, map[string]any{
		"branch_id": "riyadh-01", "payment_method": "cash",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", errorCode(t, raw))

	body := saleBody(1, "0")
	body["lines"] = []map[string]any{{"product_id": "p-ghost", "quantity": 1}}
	status, raw = f.do(t, http.MethodPost, "/api/v1/sales", f.cashierToken, body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "product_not_found", errorCode(t, raw))

	// Unknown JSON fields are rejected outright.
	body = saleBody(1, "0")
	body["surprise"] = true
	status, raw = f.do(t, http.MethodPost, "/api/v1/sales", f.cashierToken, body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_failed", errorCode(t, raw))
}

func TestRefundOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, http.MethodPost, "/api/v1/sales", f.cashierToken, saleBody(5, "57.50"))
	require.Equal(t, http.StatusCreated, status)
	var sale domain.Sale
	require.NoError(t, json.Unmarshal(raw, &sale))

	status, raw = f.do(t, http.MethodPost, "/api/v1/sales/"+sale.ID+"/refund", f.cashierToken,
		map[string]any{"reason": "customer return"})
	require.Equal(t, http.StatusOK, status, "body: %s", raw)
	var result domain.RefundResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, result.Sale.IsRefunded)

	status, raw = f.do(t, http.MethodPost, "/api/v1/sales/"+sale.ID+"/refund", f.cashierToken,
		map[string]any{"reason": "again"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_refunded", errorCode(t, raw))
}

func TestPartialPaymentOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, http.MethodPost, "/api/v1/sales", f.cashierToken, saleBody(5, "20.00"))
	require.Equal(t, http.StatusCreated, status)
	var sale domain.Sale
	require.NoError(t, json.Unmarshal(raw, &sale))
	require.Equal(t, domain.PaymentStatusPartial, sale.PaymentStatus)

	status, raw = f.do(t, http.MethodPost, "/api/v1/sales/"+sale.ID+"/payments", f.cashierToken,
		map[string]any{"amount": "37.50", "method": "card"})
	require.Equal(t, http.StatusOK, status, "body: %s", raw)
	var result domain.PaymentResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, domain.PaymentStatusPaid, result.Status)

	status, raw = f.do(t, http.MethodPost, "/api/v1/sales/"+sale.ID+"/payments", f.cashierToken,
		map[string]any{"amount": "-1", "method": "cash"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_amount", errorCode(t, raw))
}

func TestStockEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, http.MethodGet, "/api/v1/stock/p-coffee/riyadh-01", f.cashierToken, nil)
	require.Equal(t, http.StatusOK, status)
	var rec domain.StockRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.EqualValues(t, 20, rec.Quantity)

	status, raw = f.do(t, http.MethodPut, "/api/v1/stock/p-coffee/riyadh-01/settings", f.adminToken,
		map[string]any{"min_quantity": 25})
	require.Equal(t, http.StatusOK, status, "body: %s", raw)
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.EqualValues(t, 25, rec.MinQuantity)
	assert.Equal(t, domain.StockStatusLowStock, rec.Status)

	status, raw = f.do(t, http.MethodPost, "/api/v1/stock/transfers", f.adminToken, map[string]any{
		"product_id": "p-coffee", "from_location_id": "riyadh-01", "to_location_id": "warehouse",
		"quantity": 5,
	})
	require.Equal(t, http.StatusOK, status, "body: %s", raw)
	var transfer domain.TransferResult
	require.NoError(t, json.Unmarshal(raw, &transfer))
	assert.EqualValues(t, 15, transfer.From.Quantity)
	assert.EqualValues(t, 5, transfer.To.Quantity)

	status, raw = f.do(t, http.MethodGet,
		"/api/v1/stock/movements?reference_type=transfer", f.cashierToken, nil)
	require.Equal(t, http.StatusOK, status)
	var movements []domain.StockMovement
	require.NoError(t, json.Unmarshal(raw, &movements))
	assert.Len(t, movements, 2)
}

func TestSessionEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	status, raw := f.do(t, http.MethodPost, "/api/v1/sessions/open", f.cashierToken, map[string]any{
		"branch_id": "riyadh-01", "register_id": "reg-1", "opening_cash": "100.00",
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", raw)
	var session domain.Session
	require.NoError(t, json.Unmarshal(raw, &session))
	assert.Equal(t, "laila", session.CashierID)

	status, raw = f.do(t, http.MethodPost, "/api/v1/sessions/open", f.cashierToken, map[string]any{
		"branch_id": "riyadh-01", "register_id": "reg-1", "opening_cash": "50.00",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "session_already_open", errorCode(t, raw))

	status, _ = f.do(t, http.MethodGet,
		"/api/v1/sessions/active?branch=riyadh-01&register=reg-1", f.cashierToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, raw = f.do(t, http.MethodPost, "/api/v1/sessions/"+session.ID+"/close", f.cashierToken,
		map[string]any{"closing_cash": "100.00"})
	require.Equal(t, http.StatusOK, status, "body: %s", raw)
	require.NoError(t, json.Unmarshal(raw, &session))
	assert.Equal(t, domain.SessionClosed, session.Status)

	status, raw = f.do(t, http.MethodGet,
		"/api/v1/sessions/active?branch=riyadh-01&register=reg-1", f.cashierToken, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "no_open_session", errorCode(t, raw))
}

func TestAuditLogEndpointIsAdminOnly(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodGet, "/api/v1/audit-logs", f.cashierToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	_, _ = f.do(t, http.MethodPost, "/api/v1/sales", f.cashierToken, saleBody(1, "0"))

	status, raw := f.do(t, http.MethodGet, "/api/v1/audit-logs", f.adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	var logs []domain.AuditLog
	require.NoError(t, json.Unmarshal(raw, &logs))
	assert.NotEmpty(t, logs)
}
