package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
)

const (
	testTenant = "acme"
	testBranch = "riyadh-01"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	ctx := context.Background()

	_, err := s.CreateTenant(ctx, domain.TenantSettings{
		TenantID:       testTenant,
		Name:           "Acme Retail",
		InvoicePrefix:  "INV",
		InvoiceStart:   1000,
		DefaultTaxRate: decimal.NewFromInt(15),
		Currency:       "SAR",
	})
	require.NoError(t, err)

	for _, p := range []domain.Product{
		{ID: "p-coffee", SKU: "COF-01", Name: "Coffee", CostPrice: dec("6.00"), SellingPrice: dec("10.00"), MinQuantity: 3, Active: true},
		{ID: "p-sugar", SKU: "SUG-01", Name: "Sugar", CostPrice: dec("1.00"), SellingPrice: dec("2.50"), MinQuantity: 5, Active: true},
	} {
		p.TenantID = testTenant
		_, err := s.CreateProduct(ctx, p)
		require.NoError(t, err)
	}
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func receive(t *testing.T, s *Store, productID string, qty int64, cost string) {
	t.Helper()
	unitCost := dec(cost)
	_, _, err := s.ApplyStockMovement(context.Background(), store.MovementParams{
		TenantID:      testTenant,
		ProductID:     productID,
		LocationID:    testBranch,
		Kind:          domain.MovementIn,
		Delta:         qty,
		ReferenceType: domain.ReferencePurchase,
		ReferenceID:   "po-test",
		UnitCost:      &unitCost,
		Actor:         "tester",
		At:            time.Now().UTC(),
	})
	require.NoError(t, err)
}

func testSale(lines ...domain.SaleLine) domain.Sale {
	sale := domain.Sale{
		TenantID:  testTenant,
		BranchID:  testBranch,
		Lines:     lines,
		Status:    domain.SaleStatusCompleted,
		CreatedBy: "tester",
		CreatedAt: time.Now().UTC(),
	}
	for _, line := range lines {
		sale.Subtotal = sale.Subtotal.Add(line.Total)
		sale.TotalItems += line.Quantity
	}
	sale.TaxRate = dec("15")
	domain.ComputeSaleTotals(&sale)
	return sale
}

func commitOpts() store.SaleCommitOptions {
	return store.SaleCommitOptions{InvoicePrefix: "INV", InvoiceStart: 1000}
}

func TestApplyStockMovementCreatesRecordAndMovement(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 10, "6.00")

	rec, err := s.GetStockRecord(context.Background(), testTenant, "p-coffee", testBranch)
	require.NoError(t, err)
	assert.EqualValues(t, 10, rec.Quantity)
	assert.EqualValues(t, 10, rec.AvailableQuantity)
	assert.Equal(t, domain.StockStatusInStock, rec.Status)
	assert.True(t, rec.AverageCost.Equal(dec("6.00")))
	assert.True(t, rec.TotalValue.Equal(dec("60.00")))

	movs, err := s.ListStockMovements(context.Background(), testTenant, store.MovementFilter{ProductID: "p-coffee"})
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, movs[0].NewQuantity, movs[0].PreviousQuantity+movs[0].Delta)
}

func TestApplyStockMovementRejectsNegativeStock(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 2, "6.00")

	_, _, err := s.ApplyStockMovement(context.Background(), store.MovementParams{
		TenantID:      testTenant,
		ProductID:     "p-coffee",
		LocationID:    testBranch,
		Kind:          domain.MovementAdjustment,
		Delta:         -3,
		ReferenceType: domain.ReferenceAdjustment,
		Reason:        "shrinkage",
		At:            time.Now().UTC(),
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	// Nothing changed and no movement was appended.
	rec, err := s.GetStockRecord(context.Background(), testTenant, "p-coffee", testBranch)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.Quantity)
	movs, err := s.ListStockMovements(context.Background(), testTenant, store.MovementFilter{ProductID: "p-coffee"})
	require.NoError(t, err)
	assert.Len(t, movs, 1)
}

func TestApplyStockMovementBlendsAverageCost(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 10, "4.00")
	receive(t, s, "p-coffee", 10, "6.00")

	rec, err := s.GetStockRecord(context.Background(), testTenant, "p-coffee", testBranch)
	require.NoError(t, err)
	assert.True(t, rec.AverageCost.Equal(dec("5.00")), "blended cost: %s", rec.AverageCost)
}

func TestGetProductCrossTenant(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateTenant(context.Background(), domain.TenantSettings{TenantID: "other"})
	require.NoError(t, err)

	_, err = s.GetProduct(context.Background(), "other", "p-coffee")
	assert.ErrorIs(t, err, store.ErrCrossTenant)

	_, err = s.GetProduct(context.Background(), testTenant, "p-nope")
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestCreateSaleDebitsStockAndAllocatesInvoice(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 20, "6.00")

	line := domain.SaleLine{ProductID: "p-coffee", Quantity: 5, UnitPrice: dec("10.00")}
	domain.PriceLine(&line, dec("15"))
	sale := testSale(line)

	created, err := s.CreateSale(context.Background(), sale, commitOpts())
	require.NoError(t, err)
	assert.Equal(t, "INV-001000", created.InvoiceNumber)

	rec, err := s.GetStockRecord(context.Background(), testTenant, "p-coffee", testBranch)
	require.NoError(t, err)
	assert.EqualValues(t, 15, rec.Quantity)

	movs, err := s.ListStockMovements(context.Background(), testTenant, store.MovementFilter{
		ReferenceType: domain.ReferenceSale,
		ReferenceID:   created.ID,
	})
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, domain.MovementOut, movs[0].Kind)
	assert.EqualValues(t, -5, movs[0].Delta)

	byInvoice, err := s.GetSaleByInvoice(context.Background(), testTenant, "INV-001000")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byInvoice.ID)
}

func TestCreateSaleFailingLineLeavesNoMutation(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 20, "6.00")
	receive(t, s, "p-sugar", 1, "1.00")

	lineA := domain.SaleLine{ProductID: "p-coffee", Quantity: 5, UnitPrice: dec("10.00")}
	lineB := domain.SaleLine{ProductID: "p-sugar", Quantity: 3, UnitPrice: dec("2.50")}
	domain.PriceLine(&lineA, dec("15"))
	domain.PriceLine(&lineB, dec("15"))

	_, err := s.CreateSale(context.Background(), testSale(lineA, lineB), commitOpts())
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	// First line's debit must not have landed.
	rec, err := s.GetStockRecord(context.Background(), testTenant, "p-coffee", testBranch)
	require.NoError(t, err)
	assert.EqualValues(t, 20, rec.Quantity)

	movs, err := s.ListStockMovements(context.Background(), testTenant, store.MovementFilter{ReferenceType: domain.ReferenceSale})
	require.NoError(t, err)
	assert.Empty(t, movs)

	// The failed commit must not consume an invoice number.
	line := domain.SaleLine{ProductID: "p-coffee", Quantity: 1, UnitPrice: dec("10.00")}
	domain.PriceLine(&line, dec("15"))
	created, err := s.CreateSale(context.Background(), testSale(line), commitOpts())
	require.NoError(t, err)
	assert.Equal(t, "INV-001000", created.InvoiceNumber)
}

func TestCreateSaleConcurrentInvoicesAreDistinctAndGapFree(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 1000, "6.00")

	const n = 40
	invoices := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			line := domain.SaleLine{ProductID: "p-coffee", Quantity: 1, UnitPrice: dec("10.00")}
			domain.PriceLine(&line, dec("15"))
			created, err := s.CreateSale(context.Background(), testSale(line), commitOpts())
			if err != nil {
				t.Error(err)
				return
			}
			invoices <- created.InvoiceNumber
		}()
	}
	wg.Wait()
	close(invoices)

	seen := make(map[string]bool, n)
	for inv := range invoices {
		assert.False(t, seen[inv], "duplicate invoice %s", inv)
		seen[inv] = true
	}
	require.Len(t, seen, n)
	for i := 0; i < n; i++ {
		assert.True(t, seen[fmt.Sprintf("INV-%06d", 1000+i)], "missing invoice at offset %d", i)
	}
}

func TestConcurrentDebitsNoLostUpdate(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 100, "6.00")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.ApplyStockMovement(context.Background(), store.MovementParams{
				TenantID:      testTenant,
				ProductID:     "p-coffee",
				LocationID:    testBranch,
				Kind:          domain.MovementOut,
				Delta:         -1,
				ReferenceType: domain.ReferenceSale,
				At:            time.Now().UTC(),
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	rec, err := s.GetStockRecord(context.Background(), testTenant, "p-coffee", testBranch)
	require.NoError(t, err)
	assert.EqualValues(t, 50, rec.Quantity)
}

func TestCreateSaleUpdatesCustomerAggregates(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 20, "6.00")
	_, err := s.CreateCustomer(context.Background(), domain.Customer{
		ID: "c-1", TenantID: testTenant, Code: "CUST-0001", Name: "Walk In",
	})
	require.NoError(t, err)

	line := domain.SaleLine{ProductID: "p-coffee", Quantity: 5, UnitPrice: dec("10.00")}
	domain.PriceLine(&line, dec("15"))
	sale := testSale(line)
	sale.CustomerID = "c-1"

	created, err := s.CreateSale(context.Background(), sale, commitOpts())
	require.NoError(t, err)

	customer, err := s.GetCustomer(context.Background(), testTenant, "c-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, customer.TotalOrders)
	assert.True(t, customer.TotalSpent.Equal(created.Total))
	require.NotNil(t, customer.LastOrderAt)
}

func TestAddSalePaymentReconciles(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 20, "6.00")

	line := domain.SaleLine{ProductID: "p-coffee", Quantity: 5, UnitPrice: dec("10.00")}
	domain.PriceLine(&line, dec("15"))
	sale := testSale(line)
	sale.PaidAmount = dec("20.00")
	sale.RemainingAmount = domain.RemainingAmount(sale.Total, sale.PaidAmount)
	sale.PaymentStatus = domain.ResolvePaymentStatus(sale.PaidAmount, sale.Total)

	created, err := s.CreateSale(context.Background(), sale, commitOpts())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPartial, created.PaymentStatus)

	updated, err := s.AddSalePayment(context.Background(), testTenant, created.ID, domain.Payment{
		Amount: dec("37.50"), Method: "card", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.True(t, updated.RemainingAmount.IsZero())
	assert.True(t, updated.PaidAmount.Add(updated.RemainingAmount).GreaterThanOrEqual(updated.Total))

	_, err = s.AddSalePayment(context.Background(), testTenant, created.ID, domain.Payment{Amount: decimal.Zero, Method: "cash"})
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestApplyRefundOnceOnly(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 20, "6.00")

	line := domain.SaleLine{ProductID: "p-coffee", Quantity: 5, UnitPrice: dec("10.00")}
	domain.PriceLine(&line, dec("15"))
	created, err := s.CreateSale(context.Background(), testSale(line), commitOpts())
	require.NoError(t, err)

	refund := domain.Refund{
		Amount:    created.Total,
		Reason:    "customer return",
		Items:     []domain.RefundItem{{ProductID: "p-coffee", Quantity: 5}},
		Actor:     "tester",
		CreatedAt: time.Now().UTC(),
	}
	credits := []store.MovementParams{{
		TenantID:      testTenant,
		ProductID:     "p-coffee",
		LocationID:    testBranch,
		Kind:          domain.MovementIn,
		Delta:         5,
		ReferenceType: domain.ReferenceReturn,
		AllowNegative: true,
		At:            time.Now().UTC(),
	}}

	sale, got, err := s.ApplyRefund(context.Background(), testTenant, created.ID, refund, credits)
	require.NoError(t, err)
	assert.True(t, sale.IsRefunded)
	assert.Equal(t, domain.SaleStatusRefunded, sale.Status)
	assert.Equal(t, created.InvoiceNumber, got.InvoiceNumber)
	assert.EqualValues(t, 5, sale.Lines[0].ReturnedQty)

	rec, err := s.GetStockRecord(context.Background(), testTenant, "p-coffee", testBranch)
	require.NoError(t, err)
	assert.EqualValues(t, 20, rec.Quantity, "refund restores the debited quantity")

	// Second refund must fail and must not credit stock again.
	_, _, err = s.ApplyRefund(context.Background(), testTenant, created.ID, refund, credits)
	require.ErrorIs(t, err, store.ErrAlreadyRefunded)
	rec, err = s.GetStockRecord(context.Background(), testTenant, "p-coffee", testBranch)
	require.NoError(t, err)
	assert.EqualValues(t, 20, rec.Quantity)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	receive(t, s, "p-coffee", 20, "6.00")
	ctx := context.Background()

	opened, err := s.CreateSession(ctx, domain.Session{
		TenantID: testTenant, BranchID: testBranch, RegisterID: "reg-1",
		CashierID: "tester", OpeningCash: dec("100.00"), Status: domain.SessionOpen,
		OpenedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, domain.Session{
		TenantID: testTenant, BranchID: testBranch, RegisterID: "reg-1",
		Status: domain.SessionOpen, OpenedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, store.ErrSessionOpen)

	line := domain.SaleLine{ProductID: "p-coffee", Quantity: 5, UnitPrice: dec("10.00")}
	domain.PriceLine(&line, dec("15"))
	sale := testSale(line)
	sale.SessionID = opened.ID
	sale.PaymentMethod = "cash"
	sale.PaidAmount = sale.Total
	sale.PaymentStatus = domain.PaymentStatusPaid
	_, err = s.CreateSale(ctx, sale, commitOpts())
	require.NoError(t, err)

	closed, err := s.CloseSession(ctx, testTenant, opened.ID, dec("157.50"), "till counted", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionClosed, closed.Status)
	assert.EqualValues(t, 1, closed.SaleCount)
	require.NotNil(t, closed.ExpectedCash)
	assert.True(t, closed.ExpectedCash.Equal(dec("157.50")), "expected cash: %s", closed.ExpectedCash)
	require.NotNil(t, closed.CashDiff)
	assert.True(t, closed.CashDiff.IsZero())

	_, err = s.GetActiveSession(ctx, testTenant, testBranch, "reg-1")
	assert.ErrorIs(t, err, store.ErrNoOpenSession)

	_, err = s.CloseSession(ctx, testTenant, opened.ID, dec("157.50"), "", time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrNoOpenSession)
}

func TestNextSequenceMonotonicUnderConcurrency(t *testing.T) {
	s := newTestStore(t)

	const n = 60
	values := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.NextSequence(context.Background(), testTenant, "po")
			if err != nil {
				t.Error(err)
				return
			}
			values <- v
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int64]bool, n)
	for v := range values {
		assert.False(t, seen[v], "duplicate sequence value %d", v)
		seen[v] = true
	}
	require.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i])
	}
}

func TestNewSeededHasWorkingDemoData(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	settings, err := s.GetTenantSettings(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "INV", settings.InvoicePrefix)

	products, err := s.ListProducts(ctx, "demo")
	require.NoError(t, err)
	require.NotEmpty(t, products)

	rec, err := s.GetStockRecord(ctx, "demo", products[0].ID, "main")
	require.NoError(t, err)
	assert.EqualValues(t, 100, rec.Quantity)

	user, err := s.GetUserByUsername(ctx, "demo", "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)
}
