package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
	"github.com/itqanpos/backend/internal/store/memory"
)

const (
	testTenant = "acme"
	testLoc    = "riyadh-01"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T, allowNegative bool) (*Ledger, *memory.Store) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()

	_, err := repo.CreateTenant(ctx, domain.TenantSettings{
		TenantID:           testTenant,
		Name:               "Acme Retail",
		InvoicePrefix:      "INV",
		InvoiceStart:       1,
		AllowNegativeStock: allowNegative,
	})
	require.NoError(t, err)

	_, err = repo.CreateProduct(ctx, domain.Product{
		ID: "p-1", TenantID: testTenant, SKU: "SKU-1", Name: "Widget",
		CostPrice: dec("4.00"), SellingPrice: dec("9.00"), Active: true,
	})
	require.NoError(t, err)

	return New(repo, func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }), repo
}

func seed(t *testing.T, l *Ledger, qty int64, cost string) {
	t.Helper()
	c := dec(cost)
	_, _, err := l.Credit(context.Background(), testTenant, "p-1", testLoc, qty,
		domain.ReferencePurchase, "po-seed", &c, "seed")
	require.NoError(t, err)
}

func TestDebitHonorsNegativeStockPolicy(t *testing.T) {
	l, _ := newTestLedger(t, false)
	seed(t, l, 5, "4.00")

	_, _, err := l.Debit(context.Background(), testTenant, "p-1", testLoc, 6,
		domain.ReferenceSale, "s-1", "tester")
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	rec, mov, err := l.Debit(context.Background(), testTenant, "p-1", testLoc, 5,
		domain.ReferenceSale, "s-1", "tester")
	require.NoError(t, err)
	assert.EqualValues(t, 0, rec.Quantity)
	assert.Equal(t, domain.StockStatusOutOfStock, rec.Status)
	assert.EqualValues(t, -5, mov.Delta)
	assert.Equal(t, domain.MovementOut, mov.Kind)
}

func TestDebitBelowZeroWhenTenantAllowsIt(t *testing.T) {
	l, _ := newTestLedger(t, true)
	seed(t, l, 2, "4.00")

	rec, _, err := l.Debit(context.Background(), testTenant, "p-1", testLoc, 5,
		domain.ReferenceSale, "s-1", "tester")
	require.NoError(t, err)
	assert.EqualValues(t, -3, rec.Quantity)
}

func TestDebitRejectsNonPositiveQuantity(t *testing.T) {
	l, _ := newTestLedger(t, false)

	for _, qty := range []int64{0, -1} {
		_, _, err := l.Debit(context.Background(), testTenant, "p-1", testLoc, qty,
			domain.ReferenceSale, "s-1", "tester")
		assert.ErrorIs(t, err, store.ErrValidation)
	}
}

func TestCreditBlendsAverageCost(t *testing.T) {
	l, _ := newTestLedger(t, false)
	seed(t, l, 10, "4.00")
	seed(t, l, 10, "6.00")

	rec, err := l.store.GetStockRecord(context.Background(), testTenant, "p-1", testLoc)
	require.NoError(t, err)
	assert.EqualValues(t, 20, rec.Quantity)
	assert.True(t, rec.AverageCost.Equal(dec("5.00")), "avg cost: %s", rec.AverageCost)
}

func TestCreditWithoutCostKeepsAverage(t *testing.T) {
	l, _ := newTestLedger(t, false)
	seed(t, l, 10, "4.00")

	rec, _, err := l.Credit(context.Background(), testTenant, "p-1", testLoc, 10,
		domain.ReferenceReturn, "r-1", nil, "tester")
	require.NoError(t, err)
	assert.EqualValues(t, 20, rec.Quantity)
	assert.True(t, rec.AverageCost.Equal(dec("4.00")), "avg cost: %s", rec.AverageCost)
}

func TestAdjust(t *testing.T) {
	l, _ := newTestLedger(t, false)
	seed(t, l, 8, "4.00")

	_, _, err := l.Adjust(context.Background(), testTenant, "p-1", testLoc, 0, "noop", "tester")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, _, err = l.Adjust(context.Background(), testTenant, "p-1", testLoc, -9, "count", "tester")
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	rec, mov, err := l.Adjust(context.Background(), testTenant, "p-1", testLoc, -3, "damage", "tester")
	require.NoError(t, err)
	assert.EqualValues(t, 5, rec.Quantity)
	assert.Equal(t, domain.MovementAdjustment, mov.Kind)
	assert.Equal(t, "damage", mov.Reason)
}

func TestTransferMovesQuantityAndCost(t *testing.T) {
	l, repo := newTestLedger(t, false)
	seed(t, l, 10, "4.00")

	result, err := l.Transfer(context.Background(), testTenant, domain.TransferRequest{
		ProductID: "p-1", FromLocationID: testLoc, ToLocationID: "warehouse", Quantity: 4,
	}, "tester")
	require.NoError(t, err)

	assert.EqualValues(t, 6, result.From.Quantity)
	assert.EqualValues(t, 4, result.To.Quantity)
	assert.True(t, result.To.AverageCost.Equal(dec("4.00")), "valuation follows the goods")
	assert.Equal(t, result.TransferID, result.Out.ReferenceID)
	assert.Equal(t, result.TransferID, result.In.ReferenceID)
	assert.EqualValues(t, -4, result.Out.Delta)
	assert.EqualValues(t, 4, result.In.Delta)

	movs, err := repo.ListStockMovements(context.Background(), testTenant, store.MovementFilter{
		ReferenceType: domain.ReferenceTransfer, ReferenceID: result.TransferID,
	})
	require.NoError(t, err)
	assert.Len(t, movs, 2)
}

func TestTransferValidation(t *testing.T) {
	l, _ := newTestLedger(t, false)
	seed(t, l, 10, "4.00")

	_, err := l.Transfer(context.Background(), testTenant, domain.TransferRequest{
		ProductID: "p-1", FromLocationID: testLoc, ToLocationID: testLoc, Quantity: 1,
	}, "tester")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = l.Transfer(context.Background(), testTenant, domain.TransferRequest{
		ProductID: "p-1", FromLocationID: testLoc, ToLocationID: "warehouse", Quantity: 0,
	}, "tester")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = l.Transfer(context.Background(), testTenant, domain.TransferRequest{
		ProductID: "p-1", FromLocationID: testLoc, ToLocationID: "warehouse", Quantity: 11,
	}, "tester")
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
}

// failAfter lets the inbound leg of a transfer fail so the compensating
// reversal path can be exercised.
type failAfter struct {
	Store
	failOn domain.MovementKind
}

func (f *failAfter) ApplyStockMovement(ctx context.Context, params store.MovementParams) (*domain.StockRecord, *domain.StockMovement, error) {
	if params.Kind == f.failOn {
		return nil, nil, errors.New("storage unavailable")
	}
	return f.Store.ApplyStockMovement(ctx, params)
}

func TestTransferCompensatesFailedInboundLeg(t *testing.T) {
	l, repo := newTestLedger(t, false)
	seed(t, l, 10, "4.00")

	l.store = &failAfter{Store: repo, failOn: domain.MovementTransferIn}

	_, err := l.Transfer(context.Background(), testTenant, domain.TransferRequest{
		ProductID: "p-1", FromLocationID: testLoc, ToLocationID: "warehouse", Quantity: 4,
	}, "tester")
	require.Error(t, err)

	// The reversal is also a transfer_in, so it fails too and the error says so.
	assert.Contains(t, err.Error(), "reversal failed")
}

func TestTransferReversalRestoresSource(t *testing.T) {
	l, repo := newTestLedger(t, false)
	seed(t, l, 10, "4.00")

	// Fail only genuine inbound legs at the destination; let the reversal
	// (which lands back at the source) succeed.
	l.store = &destFailure{Store: repo, dest: "warehouse"}

	_, err := l.Transfer(context.Background(), testTenant, domain.TransferRequest{
		ProductID: "p-1", FromLocationID: testLoc, ToLocationID: "warehouse", Quantity: 4,
	}, "tester")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "reversal failed")

	rec, err := repo.GetStockRecord(context.Background(), testTenant, "p-1", testLoc)
	require.NoError(t, err)
	assert.EqualValues(t, 10, rec.Quantity, "source balance restored after reversal")
}

type destFailure struct {
	Store
	dest string
}

func (f *destFailure) ApplyStockMovement(ctx context.Context, params store.MovementParams) (*domain.StockRecord, *domain.StockMovement, error) {
	if params.LocationID == f.dest {
		return nil, nil, errors.New("destination unavailable")
	}
	return f.Store.ApplyStockMovement(ctx, params)
}
