package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusDraft      SaleStatus = "draft"
	SaleStatusPending    SaleStatus = "pending"
	SaleStatusConfirmed  SaleStatus = "confirmed"
	SaleStatusProcessing SaleStatus = "processing"
	SaleStatusShipped    SaleStatus = "shipped"
	SaleStatusDelivered  SaleStatus = "delivered"
	SaleStatusCompleted  SaleStatus = "completed"
	SaleStatusCancelled  SaleStatus = "cancelled"
	SaleStatusRefunded   SaleStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
	// PaymentStatusOverpaid is reserved. No operation produces it; overpayment
	// resolves to PaymentStatusPaid.
	PaymentStatusOverpaid PaymentStatus = "overpaid"
)

type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusOverstock  StockStatus = "overstock"
)

type MovementKind string

const (
	MovementIn          MovementKind = "in"
	MovementOut         MovementKind = "out"
	MovementAdjustment  MovementKind = "adjustment"
	MovementTransferIn  MovementKind = "transfer_in"
	MovementTransferOut MovementKind = "transfer_out"
)

type ReferenceType string

const (
	ReferenceSale       ReferenceType = "sale"
	ReferencePurchase   ReferenceType = "purchase"
	ReferenceReturn     ReferenceType = "return"
	ReferenceAdjustment ReferenceType = "adjustment"
	ReferenceTransfer   ReferenceType = "transfer"
)

type InventoryMethod string

const (
	InventoryFIFO    InventoryMethod = "fifo"
	InventoryLIFO    InventoryMethod = "lifo"
	InventoryAverage InventoryMethod = "average"
)

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

type TenantSettings struct {
	TenantID           string          `json:"tenant_id"`
	Name               string          `json:"name"`
	InvoicePrefix      string          `json:"invoice_prefix"`
	InvoiceStart       int64           `json:"invoice_start"`
	DefaultTaxRate     decimal.Decimal `json:"default_tax_rate"`
	AllowNegativeStock bool            `json:"allow_negative_stock"`
	InventoryMethod    InventoryMethod `json:"inventory_method"`
	Currency           string          `json:"currency"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type Product struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	MinQuantity  int64           `json:"min_quantity"`
	MaxQuantity  int64           `json:"max_quantity"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Customer struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
	TotalOrders    int64           `json:"total_orders"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	LastOrderAt    *time.Time      `json:"last_order_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CustomerDelta is applied as an increment on the customer's aggregate
// fields, never as an absolute overwrite.
type CustomerDelta struct {
	Orders      int64           `json:"orders"`
	Spent       decimal.Decimal `json:"spent"`
	Balance     decimal.Decimal `json:"balance"`
	LastOrderAt *time.Time      `json:"last_order_at,omitempty"`
}

type StockRecord struct {
	TenantID          string          `json:"tenant_id"`
	ProductID         string          `json:"product_id"`
	LocationID        string          `json:"location_id"`
	Quantity          int64           `json:"quantity"`
	ReservedQuantity  int64           `json:"reserved_quantity"`
	AvailableQuantity int64           `json:"available_quantity"`
	MinQuantity       int64           `json:"min_quantity"`
	MaxQuantity       int64           `json:"max_quantity"`
	ReorderPoint      int64           `json:"reorder_point"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	TotalValue        decimal.Decimal `json:"total_value"`
	Status            StockStatus     `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type StockMovement struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	ProductID        string           `json:"product_id"`
	LocationID       string           `json:"location_id"`
	Kind             MovementKind     `json:"kind"`
	Delta            int64            `json:"delta"`
	PreviousQuantity int64            `json:"previous_quantity"`
	NewQuantity      int64            `json:"new_quantity"`
	ReferenceType    ReferenceType    `json:"reference_type"`
	ReferenceID      string           `json:"reference_id,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	UnitCost         *decimal.Decimal `json:"unit_cost,omitempty"`
	TotalCost        *decimal.Decimal `json:"total_cost,omitempty"`
	Actor            string           `json:"actor"`
	CreatedAt        time.Time        `json:"created_at"`
}

type SaleLine struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	SKU             string          `json:"sku"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total"`
	ReturnedQty     int64           `json:"returned_qty,omitempty"`
}

type Payment struct {
	ID        string          `json:"id"`
	SaleID    string          `json:"sale_id"`
	TenantID  string          `json:"tenant_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	Actor     string          `json:"actor"`
	CreatedAt time.Time       `json:"created_at"`
}

type Sale struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	BranchID        string          `json:"branch_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	CustomerID      string          `json:"customer_id,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	Lines           []SaleLine      `json:"lines"`
	TotalItems      int64           `json:"total_items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DiscountTotal   decimal.Decimal `json:"discount_total"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Total           decimal.Decimal `json:"total"`
	PaymentMethod   string          `json:"payment_method"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Payments        []Payment       `json:"payments"`
	Status          SaleStatus      `json:"status"`
	IsRefunded      bool            `json:"is_refunded"`
	RefundAmount    decimal.Decimal `json:"refund_amount"`
	RefundReason    string          `json:"refund_reason,omitempty"`
	RefundedAt      *time.Time      `json:"refunded_at,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type RefundItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type Refund struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	SaleID        string          `json:"sale_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	Items         []RefundItem    `json:"items"`
	Actor         string          `json:"actor"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Session struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenant_id"`
	BranchID     string           `json:"branch_id"`
	RegisterID   string           `json:"register_id"`
	CashierID    string           `json:"cashier_id"`
	OpeningCash  decimal.Decimal  `json:"opening_cash"`
	ClosingCash  *decimal.Decimal `json:"closing_cash,omitempty"`
	ExpectedCash *decimal.Decimal `json:"expected_cash,omitempty"`
	CashDiff     *decimal.Decimal `json:"cash_diff,omitempty"`
	TotalSales   decimal.Decimal  `json:"total_sales"`
	TotalRefunds decimal.Decimal  `json:"total_refunds"`
	SaleCount    int64            `json:"sale_count"`
	Status       SessionStatus    `json:"status"`
	OpeningNotes string           `json:"opening_notes,omitempty"`
	ClosingNotes string           `json:"closing_notes,omitempty"`
	OpenedAt     time.Time        `json:"opened_at"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
}

type PurchaseReceiptLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type PurchaseReceipt struct {
	ID         string                `json:"id"`
	TenantID   string                `json:"tenant_id"`
	Number     string                `json:"number"`
	LocationID string                `json:"location_id"`
	Supplier   string                `json:"supplier,omitempty"`
	Lines      []PurchaseReceiptLine `json:"lines"`
	TotalCost  decimal.Decimal       `json:"total_cost"`
	Actor      string                `json:"actor"`
	CreatedAt  time.Time             `json:"created_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type UserAccount struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	BranchID  string    `json:"branch_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	ID   string
	Name string
	Role string
}

type LoginRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	TenantID    string `json:"tenant_id"`
	ExpiresAt   string `json:"expires_at"`
}
