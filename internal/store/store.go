package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/itqanpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrCrossTenant       = errors.New("cross-tenant access")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyRefunded   = errors.New("already refunded")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("transient store conflict")
	ErrSessionOpen       = errors.New("session already open")
	ErrNoOpenSession     = errors.New("no open session")
	ErrDuplicate         = errors.New("already exists")
)

// MovementParams describes one atomic quantity change: the read-modify-write
// of the stock record and the append of the matching movement are applied as
// a single unit of work. The store creates a zero-quantity record lazily if
// none exists for the (product, location) pair.
type MovementParams struct {
	TenantID      string
	ProductID     string
	LocationID    string
	Kind          domain.MovementKind
	Delta         int64
	ReferenceType domain.ReferenceType
	ReferenceID   string
	Reason        string
	UnitCost      *decimal.Decimal
	AllowNegative bool
	Actor         string
	At            time.Time
}

// SaleCommitOptions carries the tenant policy the store needs while it
// persists a sale: invoice numbering and the negative-stock rule. The whole
// commit — invoice sequence increment, every line debit with its movement,
// the sale row, the embedded payment, the customer delta — is one
// transaction; a failing line leaves no mutation behind.
type SaleCommitOptions struct {
	InvoicePrefix      string
	InvoiceStart       int64
	AllowNegativeStock bool
}

type MovementFilter struct {
	ProductID     string
	LocationID    string
	ReferenceType domain.ReferenceType
	ReferenceID   string
	Limit         int
}

type SaleFilter struct {
	BranchID      string
	CustomerID    string
	SessionID     string
	PaymentStatus domain.PaymentStatus
	From          time.Time
	To            time.Time
	Limit         int
}

type Repository interface {
	CreateTenant(ctx context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error)
	GetTenantSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
	UpdateTenantSettings(ctx context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error)
	ApplyCustomerDelta(ctx context.Context, tenantID string, customerID string, delta domain.CustomerDelta) (*domain.Customer, error)

	// NextSequence atomically increments the named per-tenant counter and
	// returns the new value, starting at 1.
	NextSequence(ctx context.Context, tenantID string, name string) (int64, error)

	GetStockRecord(ctx context.Context, tenantID string, productID string, locationID string) (*domain.StockRecord, error)
	ListStockRecords(ctx context.Context, tenantID string, locationID string) ([]domain.StockRecord, error)
	ApplyStockMovement(ctx context.Context, params MovementParams) (*domain.StockRecord, *domain.StockMovement, error)
	UpdateStockSettings(ctx context.Context, tenantID string, productID string, locationID string, patch domain.StockRecordPatch) (*domain.StockRecord, error)
	ListStockMovements(ctx context.Context, tenantID string, filter MovementFilter) ([]domain.StockMovement, error)

	CreateSale(ctx context.Context, sale domain.Sale, opts SaleCommitOptions) (*domain.Sale, error)
	GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error)
	GetSaleByInvoice(ctx context.Context, tenantID string, invoiceNumber string) (*domain.Sale, error)
	ListSales(ctx context.Context, tenantID string, filter SaleFilter) ([]domain.Sale, error)
	AddSalePayment(ctx context.Context, tenantID string, saleID string, payment domain.Payment) (*domain.Sale, error)
	ApplyRefund(ctx context.Context, tenantID string, saleID string, refund domain.Refund, credits []MovementParams) (*domain.Sale, *domain.Refund, error)

	CreatePurchaseReceipt(ctx context.Context, receipt domain.PurchaseReceipt) (*domain.PurchaseReceipt, error)
	GetPurchaseReceipt(ctx context.Context, tenantID string, receiptID string) (*domain.PurchaseReceipt, error)

	CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error)
	GetSession(ctx context.Context, tenantID string, sessionID string) (*domain.Session, error)
	GetActiveSession(ctx context.Context, tenantID string, branchID string, registerID string) (*domain.Session, error)
	CloseSession(ctx context.Context, tenantID string, sessionID string, closingCash decimal.Decimal, notes string, closedAt time.Time) (*domain.Session, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, tenantID string, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, tenantID string, username string) (*domain.UserAccount, error)
}
