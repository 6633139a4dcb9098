// Package ledger owns every quantity change outside the sale-commit path:
// manual adjustments, purchase receipts, and inter-location transfers. Each
// mutation writes the stock record and exactly one movement entry in a single
// store unit of work; quantity is never edited any other way.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
	"github.com/itqanpos/backend/internal/xid"
)

type Store interface {
	GetTenantSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
	GetStockRecord(ctx context.Context, tenantID string, productID string, locationID string) (*domain.StockRecord, error)
	ApplyStockMovement(ctx context.Context, params store.MovementParams) (*domain.StockRecord, *domain.StockMovement, error)
}

type Ledger struct {
	store Store
	now   func() time.Time
	ids   func(prefix string) string
}

func New(s Store, now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{store: s, now: now, ids: xid.New}
}

// Debit removes qty units, failing with ErrInsufficientStock when the tenant
// disallows negative stock and the balance would go below zero.
func (l *Ledger) Debit(ctx context.Context, tenantID, productID, locationID string, qty int64, refType domain.ReferenceType, refID string, actor string) (*domain.StockRecord, *domain.StockMovement, error) {
	if qty <= 0 {
		return nil, nil, fmt.Errorf("%w: debit quantity must be positive", store.ErrValidation)
	}
	allowNegative, err := l.negativeStockAllowed(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return l.store.ApplyStockMovement(ctx, store.MovementParams{
		TenantID:      tenantID,
		ProductID:     productID,
		LocationID:    locationID,
		Kind:          domain.MovementOut,
		Delta:         -qty,
		ReferenceType: refType,
		ReferenceID:   refID,
		AllowNegative: allowNegative,
		Actor:         actor,
		At:            l.now(),
	})
}

// Credit adds qty units. Crediting cannot violate the non-negative invariant
// and therefore always succeeds for an existing product. A non-nil unitCost
// folds the incoming lot into the record's weighted average cost.
func (l *Ledger) Credit(ctx context.Context, tenantID, productID, locationID string, qty int64, refType domain.ReferenceType, refID string, unitCost *decimal.Decimal, actor string) (*domain.StockRecord, *domain.StockMovement, error) {
	if qty <= 0 {
		return nil, nil, fmt.Errorf("%w: credit quantity must be positive", store.ErrValidation)
	}
	kind := domain.MovementIn
	return l.store.ApplyStockMovement(ctx, store.MovementParams{
		TenantID:      tenantID,
		ProductID:     productID,
		LocationID:    locationID,
		Kind:          kind,
		Delta:         qty,
		ReferenceType: refType,
		ReferenceID:   refID,
		UnitCost:      unitCost,
		AllowNegative: true,
		Actor:         actor,
		At:            l.now(),
	})
}

// Adjust moves quantity by an arbitrary signed delta in one call, used for
// counts and corrections. Negative adjustments respect the tenant's
// negative-stock policy.
func (l *Ledger) Adjust(ctx context.Context, tenantID, productID, locationID string, delta int64, reason string, actor string) (*domain.StockRecord, *domain.StockMovement, error) {
	if delta == 0 {
		return nil, nil, fmt.Errorf("%w: adjustment delta must be non-zero", store.ErrValidation)
	}
	allowNegative := true
	if delta < 0 {
		var err error
		allowNegative, err = l.negativeStockAllowed(ctx, tenantID)
		if err != nil {
			return nil, nil, err
		}
	}
	return l.store.ApplyStockMovement(ctx, store.MovementParams{
		TenantID:      tenantID,
		ProductID:     productID,
		LocationID:    locationID,
		Kind:          domain.MovementAdjustment,
		Delta:         delta,
		ReferenceType: domain.ReferenceAdjustment,
		Reason:        reason,
		AllowNegative: allowNegative,
		Actor:         actor,
		At:            l.now(),
	})
}

// Transfer moves qty between two locations of the same tenant: one
// transfer_out and one transfer_in movement sharing a transfer reference id.
// The outbound leg enforces the negative-stock policy; the inbound leg
// carries the source record's average cost so valuation follows the goods.
func (l *Ledger) Transfer(ctx context.Context, tenantID string, req domain.TransferRequest, actor string) (*domain.TransferResult, error) {
	if req.FromLocationID == req.ToLocationID {
		return nil, fmt.Errorf("%w: transfer requires distinct locations", store.ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: transfer quantity must be positive", store.ErrValidation)
	}
	allowNegative, err := l.negativeStockAllowed(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	transferID := l.ids("tfr")
	at := l.now()

	fromRec, outMov, err := l.store.ApplyStockMovement(ctx, store.MovementParams{
		TenantID:      tenantID,
		ProductID:     req.ProductID,
		LocationID:    req.FromLocationID,
		Kind:          domain.MovementTransferOut,
		Delta:         -req.Quantity,
		ReferenceType: domain.ReferenceTransfer,
		ReferenceID:   transferID,
		Reason:        req.Reason,
		AllowNegative: allowNegative,
		Actor:         actor,
		At:            at,
	})
	if err != nil {
		return nil, err
	}

	cost := fromRec.AverageCost
	toRec, inMov, err := l.store.ApplyStockMovement(ctx, store.MovementParams{
		TenantID:      tenantID,
		ProductID:     req.ProductID,
		LocationID:    req.ToLocationID,
		Kind:          domain.MovementTransferIn,
		Delta:         req.Quantity,
		ReferenceType: domain.ReferenceTransfer,
		ReferenceID:   transferID,
		Reason:        req.Reason,
		UnitCost:      &cost,
		AllowNegative: true,
		Actor:         actor,
		At:            at,
	})
	if err != nil {
		// The outbound leg already committed; compensate so the transfer
		// nets to zero rather than leaving goods in transit forever.
		if _, _, compErr := l.store.ApplyStockMovement(ctx, store.MovementParams{
			TenantID:      tenantID,
			ProductID:     req.ProductID,
			LocationID:    req.FromLocationID,
			Kind:          domain.MovementTransferIn,
			Delta:         req.Quantity,
			ReferenceType: domain.ReferenceTransfer,
			ReferenceID:   transferID,
			Reason:        "transfer reversal",
			AllowNegative: true,
			Actor:         actor,
			At:            l.now(),
		}); compErr != nil {
			return nil, fmt.Errorf("transfer %s inbound failed (%v) and reversal failed: %w", transferID, err, compErr)
		}
		return nil, err
	}

	return &domain.TransferResult{
		TransferID: transferID,
		From:       *fromRec,
		To:         *toRec,
		Out:        *outMov,
		In:         *inMov,
	}, nil
}

func (l *Ledger) negativeStockAllowed(ctx context.Context, tenantID string) (bool, error) {
	settings, err := l.store.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("resolve tenant settings: %w", err)
	}
	return settings.AllowNegativeStock, nil
}
