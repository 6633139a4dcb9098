package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money rounds an amount to 2 decimal places. Every derived monetary value is
// passed through this before it is stored or compared.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PriceLine fills the computed fields of a sale line. The order is fixed:
// gross = unit price * quantity, then the percentage discount on the gross,
// then the fixed discount, then tax on the discounted amount. Line.Total is
// the discounted pre-tax amount; sale-level tax is derived from the subtotal.
func PriceLine(line *SaleLine, taxRate decimal.Decimal) {
	gross := line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
	discounted := gross.Sub(gross.Mul(line.DiscountPercent).Div(hundred))
	discounted = discounted.Sub(line.DiscountAmount)
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	line.Total = Money(discounted)
	line.TaxAmount = Money(discounted.Mul(taxRate).Div(hundred))
}

// ComputeSaleTotals derives the sale-level amounts from the accumulated
// subtotal: discountTotal = subtotal*(pct/100) + fixed, tax on the discounted
// subtotal, total = discounted subtotal + tax + shipping.
func ComputeSaleTotals(sale *Sale) {
	discountTotal := sale.Subtotal.Mul(sale.DiscountPercent).Div(hundred).Add(sale.DiscountAmount)
	sale.DiscountTotal = Money(discountTotal)
	discounted := sale.Subtotal.Sub(sale.DiscountTotal)
	sale.TaxAmount = Money(discounted.Mul(sale.TaxRate).Div(hundred))
	sale.Total = Money(discounted.Add(sale.TaxAmount).Add(sale.ShippingCost))
}

// ResolvePaymentStatus maps paid amount against total: paid when the total is
// covered (overpayment and zero-total sales included), partial for anything in
// between, pending at zero against an outstanding total.
func ResolvePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentStatusPaid
	case paid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}

// RemainingAmount is total - paid clamped at zero; it is always recomputed,
// never edited independently.
func RemainingAmount(total, paid decimal.Decimal) decimal.Decimal {
	remaining := total.Sub(paid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return Money(remaining)
}

// DeriveStockStatus is applied after every stock write.
func DeriveStockStatus(quantity, minQuantity, maxQuantity int64) StockStatus {
	switch {
	case quantity == 0:
		return StockStatusOutOfStock
	case quantity <= minQuantity:
		return StockStatusLowStock
	case maxQuantity > 0 && quantity > maxQuantity:
		return StockStatusOverstock
	default:
		return StockStatusInStock
	}
}

// Recalculate restores the derived fields after a quantity or cost mutation.
func (r *StockRecord) Recalculate(at time.Time) {
	r.AvailableQuantity = r.Quantity - r.ReservedQuantity
	r.TotalValue = Money(r.AverageCost.Mul(decimal.NewFromInt(r.Quantity)))
	r.Status = DeriveStockStatus(r.Quantity, r.MinQuantity, r.MaxQuantity)
	r.UpdatedAt = at
}

// WeightedAverageCost blends an incoming lot into the running average. With
// nothing on hand the incoming cost becomes the average.
func WeightedAverageCost(prevQty int64, prevCost decimal.Decimal, inQty int64, inCost decimal.Decimal) decimal.Decimal {
	if prevQty <= 0 {
		return inCost
	}
	total := prevCost.Mul(decimal.NewFromInt(prevQty)).Add(inCost.Mul(decimal.NewFromInt(inQty)))
	return total.DivRound(decimal.NewFromInt(prevQty+inQty), 4)
}

// FormatInvoiceNumber renders a tenant-scoped document number, e.g.
// "INV-000042".
func FormatInvoiceNumber(prefix string, n int64) string {
	if prefix == "" {
		prefix = "INV"
	}
	return fmt.Sprintf("%s-%06d", prefix, n)
}
