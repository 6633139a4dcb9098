package domain

import "github.com/shopspring/decimal"

type SaleLineRequest struct {
	ProductID       string           `json:"product_id" validate:"required"`
	Quantity        int64            `json:"quantity" validate:"required,gt=0"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
}

type CommitSaleRequest struct {
	BranchID        string            `json:"branch_id" validate:"required"`
	CustomerID      string            `json:"customer_id,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
	Lines           []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
	DiscountPercent decimal.Decimal   `json:"discount_percent"`
	DiscountAmount  decimal.Decimal   `json:"discount_amount"`
	TaxRate         *decimal.Decimal  `json:"tax_rate,omitempty"`
	ShippingCost    decimal.Decimal   `json:"shipping_cost"`
	PaymentMethod   string            `json:"payment_method" validate:"required"`
	PaidAmount      decimal.Decimal   `json:"paid_amount"`
	Notes           string            `json:"notes,omitempty"`
}

type AddPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Method    string          `json:"method" validate:"required"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

type PaymentResult struct {
	Sale       Sale            `json:"sale"`
	Payment    Payment         `json:"payment"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Remaining  decimal.Decimal `json:"remaining"`
	Status     PaymentStatus   `json:"status"`
}

type RefundItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type RefundRequest struct {
	Items  []RefundItemRequest `json:"items,omitempty" validate:"dive"`
	Amount *decimal.Decimal    `json:"amount,omitempty"`
	Reason string              `json:"reason" validate:"required"`
}

type RefundResult struct {
	Sale   Sale   `json:"sale"`
	Refund Refund `json:"refund"`
}

type AdjustStockRequest struct {
	ProductID  string `json:"product_id" validate:"required"`
	LocationID string `json:"location_id" validate:"required"`
	Delta      int64  `json:"delta" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

type StockAdjustment struct {
	Record   StockRecord   `json:"record"`
	Movement StockMovement `json:"movement"`
}

type ReceiveLineRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type ReceivePurchaseRequest struct {
	LocationID string               `json:"location_id" validate:"required"`
	Supplier   string               `json:"supplier,omitempty"`
	Lines      []ReceiveLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type TransferRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	FromLocationID string `json:"from_location_id" validate:"required"`
	ToLocationID   string `json:"to_location_id" validate:"required"`
	Quantity       int64  `json:"quantity" validate:"required,gt=0"`
	Reason         string `json:"reason,omitempty"`
}

type TransferResult struct {
	TransferID string        `json:"transfer_id"`
	From       StockRecord   `json:"from"`
	To         StockRecord   `json:"to"`
	Out        StockMovement `json:"out"`
	In         StockMovement `json:"in"`
}

type OpenSessionRequest struct {
	BranchID    string          `json:"branch_id" validate:"required"`
	RegisterID  string          `json:"register_id" validate:"required"`
	OpeningCash decimal.Decimal `json:"opening_cash"`
	Notes       string          `json:"notes,omitempty"`
}

type CloseSessionRequest struct {
	ClosingCash decimal.Decimal `json:"closing_cash"`
	Notes       string          `json:"notes,omitempty"`
}
