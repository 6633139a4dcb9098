package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/itqanpos/backend/internal/service"
	"github.com/itqanpos/backend/internal/store"
)

type API struct {
	service  *service.Service
	auth     *AuthManager
	validate *validator.Validate
	log      *logrus.Logger
	origin   string
}

func New(svc *service.Service, auth *AuthManager, log *logrus.Logger, allowedOrigin string) *API {
	if log == nil {
		log = logrus.New()
	}
	return &API{
		service:  svc,
		auth:     auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		origin:   allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{a.origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", a.handleHealth)
	r.Post("/api/v1/auth/login", a.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.requireAuth)

		r.Get("/settings", a.handleGetSettings)

		r.Group(func(r chi.Router) {
			r.Use(a.requireRole("admin"))
			r.Post("/products", a.handleCreateProduct)
			r.Post("/customers", a.handleCreateCustomer)
			r.Post("/stock/adjustments", a.handleAdjustStock)
			r.Post("/stock/transfers", a.handleTransferStock)
			r.Post("/stock/receipts", a.handleReceivePurchase)
			r.Put("/stock/{productID}/{locationID}/settings", a.handleUpdateStockSettings)
			r.Get("/audit-logs", a.handleListAuditLogs)
		})

		r.Get("/products", a.handleListProducts)
		r.Get("/products/{id}", a.handleGetProduct)
		r.Get("/customers/{id}", a.handleGetCustomer)

		r.Post("/sales", a.handleCommitSale)
		r.Get("/sales", a.handleListSales)
		r.Get("/sales/{id}", a.handleGetSale)
		r.Get("/sales/invoice/{number}", a.handleGetSaleByInvoice)
		r.Post("/sales/{id}/payments", a.handleAddPayment)
		r.Post("/sales/{id}/refund", a.handleRefundSale)

		r.Get("/stock", a.handleListStock)
		r.Get("/stock/movements", a.handleListMovements)
		r.Get("/stock/{productID}/{locationID}", a.handleGetStock)

		r.Post("/sessions/open", a.handleOpenSession)
		r.Post("/sessions/{id}/close", a.handleCloseSession)
		r.Get("/sessions/active", a.handleActiveSession)
		r.Get("/sessions/{id}", a.handleGetSession)
	})

	return r
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

type identityKey struct{}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		identity, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		ctx := service.WithActor(r.Context(), identity.Actor)
		ctx = contextWithIdentity(ctx, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := identityFromContext(r.Context())
			for _, role := range roles {
				if identity.Actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}

func contextWithIdentity(ctx context.Context, identity TokenIdentity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func identityFromContext(ctx context.Context) TokenIdentity {
	identity, _ := ctx.Value(identityKey{}).(TokenIdentity)
	return identity
}

func (a *API) tenantID(r *http.Request) string {
	return identityFromContext(r.Context()).TenantID
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses the JSON body into dst and runs struct validation. Malformed
// bodies and unknown fields surface as validation failures, not internals.
func (a *API) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return a.validate.Struct(dst)
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	respond(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeServiceError maps store sentinels onto stable machine-readable codes.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var valErrs validator.ValidationErrors
	switch {
	case errors.As(err, &valErrs), errors.Is(err, store.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, store.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, store.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrCrossTenant):
		writeError(w, http.StatusForbidden, "cross_tenant", err.Error())
	case errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, store.ErrAlreadyRefunded):
		writeError(w, http.StatusConflict, "already_refunded", err.Error())
	case errors.Is(err, store.ErrSessionOpen):
		writeError(w, http.StatusConflict, "session_already_open", err.Error())
	case errors.Is(err, store.ErrNoOpenSession):
		writeError(w, http.StatusConflict, "no_open_session", err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "conflict_retry", err.Error())
	default:
		a.log.WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
