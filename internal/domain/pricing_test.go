package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceLineDiscountOrder(t *testing.T) {
	// 4 x 25.00 gross, 10% off, then 5.00 fixed: 100 -> 90 -> 85.
	line := SaleLine{
		Quantity:        4,
		UnitPrice:       dec("25.00"),
		DiscountPercent: dec("10"),
		DiscountAmount:  dec("5.00"),
	}
	PriceLine(&line, dec("15"))

	assert.True(t, line.Total.Equal(dec("85.00")), "total: %s", line.Total)
	assert.True(t, line.TaxAmount.Equal(dec("12.75")), "tax: %s", line.TaxAmount)
}

func TestPriceLineClampsAtZero(t *testing.T) {
	line := SaleLine{
		Quantity:       1,
		UnitPrice:      dec("3.00"),
		DiscountAmount: dec("10.00"),
	}
	PriceLine(&line, dec("15"))

	assert.True(t, line.Total.IsZero(), "over-discounted line must clamp at zero, got %s", line.Total)
	assert.True(t, line.TaxAmount.IsZero())
}

func TestComputeSaleTotals(t *testing.T) {
	sale := Sale{
		Subtotal:        dec("50.00"),
		DiscountPercent: decimal.Zero,
		DiscountAmount:  decimal.Zero,
		TaxRate:         dec("15"),
	}
	ComputeSaleTotals(&sale)

	assert.True(t, sale.DiscountTotal.IsZero())
	assert.True(t, sale.TaxAmount.Equal(dec("7.50")), "tax: %s", sale.TaxAmount)
	assert.True(t, sale.Total.Equal(dec("57.50")), "total: %s", sale.Total)
}

func TestComputeSaleTotalsWithDiscountAndShipping(t *testing.T) {
	sale := Sale{
		Subtotal:        dec("200.00"),
		DiscountPercent: dec("10"),
		DiscountAmount:  dec("5.00"),
		TaxRate:         dec("15"),
		ShippingCost:    dec("12.00"),
	}
	ComputeSaleTotals(&sale)

	// discountTotal = 200*0.10 + 5 = 25; tax = 175*0.15 = 26.25; total = 175+26.25+12.
	assert.True(t, sale.DiscountTotal.Equal(dec("25.00")))
	assert.True(t, sale.TaxAmount.Equal(dec("26.25")))
	assert.True(t, sale.Total.Equal(dec("213.25")), "total: %s", sale.Total)
}

func TestResolvePaymentStatus(t *testing.T) {
	total := dec("57.50")

	assert.Equal(t, PaymentStatusPaid, ResolvePaymentStatus(dec("57.50"), total))
	assert.Equal(t, PaymentStatusPaid, ResolvePaymentStatus(dec("60.00"), total), "overpayment resolves to paid")
	assert.Equal(t, PaymentStatusPartial, ResolvePaymentStatus(dec("20.00"), total))
	assert.Equal(t, PaymentStatusPending, ResolvePaymentStatus(decimal.Zero, total))
	assert.Equal(t, PaymentStatusPending, ResolvePaymentStatus(dec("-5.00"), total))
	assert.Equal(t, PaymentStatusPaid, ResolvePaymentStatus(decimal.Zero, decimal.Zero),
		"a zero-total sale has nothing outstanding")
}

func TestRemainingAmountClampsAtZero(t *testing.T) {
	assert.True(t, RemainingAmount(dec("57.50"), dec("20.00")).Equal(dec("37.50")))
	assert.True(t, RemainingAmount(dec("57.50"), dec("60.00")).IsZero())
}

func TestDeriveStockStatus(t *testing.T) {
	assert.Equal(t, StockStatusOutOfStock, DeriveStockStatus(0, 5, 0))
	assert.Equal(t, StockStatusLowStock, DeriveStockStatus(5, 5, 0))
	assert.Equal(t, StockStatusInStock, DeriveStockStatus(6, 5, 0))
	assert.Equal(t, StockStatusOverstock, DeriveStockStatus(11, 5, 10))
	assert.Equal(t, StockStatusInStock, DeriveStockStatus(1000, 5, 0), "no upper bound when max is zero")
}

func TestWeightedAverageCost(t *testing.T) {
	// 10 on hand at 4.00, receive 10 at 6.00 -> 5.00.
	got := WeightedAverageCost(10, dec("4.00"), 10, dec("6.00"))
	assert.True(t, got.Equal(dec("5.00")), "blended: %s", got)

	// Empty stock takes the incoming cost outright.
	got = WeightedAverageCost(0, dec("4.00"), 5, dec("6.00"))
	assert.True(t, got.Equal(dec("6.00")))

	// Negative on-hand (negative stock enabled) also resets to incoming cost.
	got = WeightedAverageCost(-3, dec("4.00"), 5, dec("6.00"))
	assert.True(t, got.Equal(dec("6.00")))
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-000042", FormatInvoiceNumber("", 42))
	assert.Equal(t, "POS-001000", FormatInvoiceNumber("POS", 1000))
}

func TestStockRecordPatch(t *testing.T) {
	rec := StockRecord{Quantity: 8, MinQuantity: 2}

	var empty StockRecordPatch
	assert.True(t, empty.IsZero())
	assert.False(t, empty.Apply(&rec))

	patch := StockRecordPatch{MinQuantity: Some(int64(10))}
	assert.False(t, patch.IsZero())
	assert.True(t, patch.Apply(&rec))
	assert.EqualValues(t, 10, rec.MinQuantity)
	assert.EqualValues(t, 0, rec.MaxQuantity, "unset fields stay untouched")
}
