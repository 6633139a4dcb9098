package store

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/itqanpos/backend/internal/domain"
)

// ApplyMovement is the ledger arithmetic shared by every Repository
// implementation: previous/new quantity capture, the negative-stock rule,
// average-cost blending on costed credits, and derived-field recomputation.
// It is pure — the caller persists the returned record and movement as one
// unit of work.
func ApplyMovement(rec domain.StockRecord, movementID string, params MovementParams) (domain.StockRecord, domain.StockMovement, error) {
	previous := rec.Quantity
	next := previous + params.Delta
	if next < 0 && !params.AllowNegative {
		return domain.StockRecord{}, domain.StockMovement{}, fmt.Errorf("product %s at %s: have %d, need %d: %w",
			params.ProductID, params.LocationID, previous, -params.Delta, ErrInsufficientStock)
	}
	if params.Delta > 0 && params.UnitCost != nil {
		rec.AverageCost = domain.WeightedAverageCost(previous, rec.AverageCost, params.Delta, *params.UnitCost)
	}
	rec.Quantity = next
	rec.Recalculate(params.At)

	mov := domain.StockMovement{
		ID:               movementID,
		TenantID:         params.TenantID,
		ProductID:        params.ProductID,
		LocationID:       params.LocationID,
		Kind:             params.Kind,
		Delta:            params.Delta,
		PreviousQuantity: previous,
		NewQuantity:      next,
		ReferenceType:    params.ReferenceType,
		ReferenceID:      params.ReferenceID,
		Reason:           params.Reason,
		Actor:            params.Actor,
		CreatedAt:        params.At,
	}
	if params.UnitCost != nil {
		unit := *params.UnitCost
		total := domain.Money(unit.Mul(decimal.NewFromInt(params.Delta).Abs()))
		mov.UnitCost = &unit
		mov.TotalCost = &total
	}
	return rec, mov, nil
}
