package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	respond(w, http.StatusOK, resp)
}

// --- catalog ---

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var product domain.Product
	if err := a.decode(r, &product); err != nil {
		a.writeServiceError(w, err)
		return
	}
	product.TenantID = a.tenantID(r)
	created, err := a.service.CreateProduct(r.Context(), product)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, created)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context(), a.tenantID(r))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, products)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), a.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, product)
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var customer domain.Customer
	if err := a.decode(r, &customer); err != nil {
		a.writeServiceError(w, err)
		return
	}
	customer.TenantID = a.tenantID(r)
	created, err := a.service.CreateCustomer(r.Context(), customer)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, created)
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), a.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, customer)
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.service.GetTenantSettings(r.Context(), a.tenantID(r))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, settings)
}

// --- sales ---

func (a *API) handleCommitSale(w http.ResponseWriter, r *http.Request) {
	var req domain.CommitSaleRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	sale, err := a.service.CommitSale(r.Context(), a.tenantID(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, sale)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SaleFilter{
		BranchID:      q.Get("branch"),
		CustomerID:    q.Get("customer"),
		SessionID:     q.Get("session"),
		PaymentStatus: domain.PaymentStatus(q.Get("payment_status")),
		Limit:         queryInt(q.Get("limit")),
	}
	sales, err := a.service.ListSales(r.Context(), a.tenantID(r), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, sales)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), a.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, sale)
}

func (a *API) handleGetSaleByInvoice(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSaleByInvoice(r.Context(), a.tenantID(r), chi.URLParam(r, "number"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, sale)
}

func (a *API) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.AddPaymentRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	result, err := a.service.AddPayment(r.Context(), a.tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (a *API) handleRefundSale(w http.ResponseWriter, r *http.Request) {
	var req domain.RefundRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	result, err := a.service.RefundSale(r.Context(), a.tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

// --- stock ---

func (a *API) handleListStock(w http.ResponseWriter, r *http.Request) {
	records, err := a.service.ListStockRecords(r.Context(), a.tenantID(r), r.URL.Query().Get("location"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, records)
}

func (a *API) handleGetStock(w http.ResponseWriter, r *http.Request) {
	rec, err := a.service.GetStockRecord(r.Context(), a.tenantID(r),
		chi.URLParam(r, "productID"), chi.URLParam(r, "locationID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, rec)
}

func (a *API) handleListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MovementFilter{
		ProductID:     q.Get("product"),
		LocationID:    q.Get("location"),
		ReferenceType: domain.ReferenceType(q.Get("reference_type")),
		ReferenceID:   q.Get("reference_id"),
		Limit:         queryInt(q.Get("limit")),
	}
	movements, err := a.service.ListStockMovements(r.Context(), a.tenantID(r), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, movements)
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustStockRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	result, err := a.service.AdjustStock(r.Context(), a.tenantID(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (a *API) handleTransferStock(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	result, err := a.service.TransferStock(r.Context(), a.tenantID(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (a *API) handleReceivePurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceivePurchaseRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	receipt, err := a.service.ReceivePurchase(r.Context(), a.tenantID(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, receipt)
}

type stockSettingsRequest struct {
	MinQuantity  *int64 `json:"min_quantity,omitempty"`
	MaxQuantity  *int64 `json:"max_quantity,omitempty"`
	ReorderPoint *int64 `json:"reorder_point,omitempty"`
}

func (a *API) handleUpdateStockSettings(w http.ResponseWriter, r *http.Request) {
	var req stockSettingsRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	var patch domain.StockRecordPatch
	if req.MinQuantity != nil {
		patch.MinQuantity = domain.Some(*req.MinQuantity)
	}
	if req.MaxQuantity != nil {
		patch.MaxQuantity = domain.Some(*req.MaxQuantity)
	}
	if req.ReorderPoint != nil {
		patch.ReorderPoint = domain.Some(*req.ReorderPoint)
	}
	rec, err := a.service.UpdateStockSettings(r.Context(), a.tenantID(r),
		chi.URLParam(r, "productID"), chi.URLParam(r, "locationID"), patch)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, rec)
}

// --- sessions ---

func (a *API) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenSessionRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	session, err := a.service.OpenSession(r.Context(), a.tenantID(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, session)
}

func (a *API) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	var req domain.CloseSessionRequest
	if err := a.decode(r, &req); err != nil {
		a.writeServiceError(w, err)
		return
	}
	session, err := a.service.CloseSession(r.Context(), a.tenantID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, session)
}

func (a *API) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session, err := a.service.GetActiveSession(r.Context(), a.tenantID(r), q.Get("branch"), q.Get("register"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, session)
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.service.GetSession(r.Context(), a.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, session)
}

// --- audit ---

func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.service.ListAuditLogs(r.Context(), a.tenantID(r), queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, logs)
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
