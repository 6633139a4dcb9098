package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/sequence"
	"github.com/itqanpos/backend/internal/store"
)

// AdjustStock applies a manual signed correction (counts, damage, shrinkage)
// through the ledger. Negative adjustments respect the tenant's
// negative-stock policy; a rejected adjustment writes nothing.
func (s *Service) AdjustStock(ctx context.Context, tenantID string, req domain.AdjustStockRequest) (*domain.StockAdjustment, error) {
	if req.Delta == 0 {
		return nil, fmt.Errorf("%w: delta must be non-zero", store.ErrValidation)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: reason required", store.ErrValidation)
	}
	if _, err := s.repo.GetProduct(ctx, tenantID, req.ProductID); err != nil {
		return nil, err
	}

	rec, mov, err := s.ledger.Adjust(ctx, tenantID, req.ProductID, req.LocationID, req.Delta, req.Reason, s.actorName(ctx))
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"product_id": req.ProductID,
		"location":   req.LocationID,
		"delta":      req.Delta,
		"quantity":   rec.Quantity,
	}).Info("stock adjusted")

	s.logAudit(ctx, tenantID, "stock_adjust", "stock", req.ProductID,
		fmt.Sprintf("location=%s,delta=%d,reason=%s,qty=%d", req.LocationID, req.Delta, req.Reason, rec.Quantity))
	s.notifyStockLevel(ctx, rec)

	return &domain.StockAdjustment{Record: *rec, Movement: *mov}, nil
}

// ReceivePurchase books incoming goods: allocates a receipt number, credits
// each line into stock with its unit cost folded into the weighted average,
// and persists the receipt document.
func (s *Service) ReceivePurchase(ctx context.Context, tenantID string, req domain.ReceivePurchaseRequest) (*domain.PurchaseReceipt, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line required", store.ErrValidation)
	}
	for i, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", store.ErrValidation, i)
		}
		if line.UnitCost.IsNegative() {
			return nil, fmt.Errorf("%w: line %d unit cost negative", store.ErrValidation, i)
		}
		if _, err := s.repo.GetProduct(ctx, tenantID, line.ProductID); err != nil {
			return nil, fmt.Errorf("resolve line product: %w", err)
		}
	}

	number, err := s.sequences.NextNumber(ctx, tenantID, sequence.NamePurchase, "PO", 1)
	if err != nil {
		return nil, err
	}

	receipt := domain.PurchaseReceipt{
		ID:         s.ids("rcpt"),
		TenantID:   tenantID,
		Number:     number,
		LocationID: req.LocationID,
		Supplier:   strings.TrimSpace(req.Supplier),
		Actor:      s.actorName(ctx),
		CreatedAt:  s.now(),
	}

	for _, line := range req.Lines {
		cost := line.UnitCost
		if _, _, err := s.ledger.Credit(ctx, tenantID, line.ProductID, req.LocationID, line.Quantity, domain.ReferencePurchase, receipt.ID, &cost, receipt.Actor); err != nil {
			return nil, fmt.Errorf("credit line %s: %w", line.ProductID, err)
		}
		total := domain.Money(cost.Mul(decimal.NewFromInt(line.Quantity)))
		receipt.Lines = append(receipt.Lines, domain.PurchaseReceiptLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  cost,
			TotalCost: total,
		})
		receipt.TotalCost = domain.Money(receipt.TotalCost.Add(total))
	}

	created, err := s.repo.CreatePurchaseReceipt(ctx, receipt)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, tenantID, "purchase_receive", "receipt", created.ID,
		fmt.Sprintf("number=%s,lines=%d,total=%s", created.Number, len(created.Lines), created.TotalCost.String()))

	return created, nil
}

// TransferStock moves quantity between two locations of the same tenant.
func (s *Service) TransferStock(ctx context.Context, tenantID string, req domain.TransferRequest) (*domain.TransferResult, error) {
	if _, err := s.repo.GetProduct(ctx, tenantID, req.ProductID); err != nil {
		return nil, err
	}
	result, err := s.ledger.Transfer(ctx, tenantID, req, s.actorName(ctx))
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, tenantID, "stock_transfer", "stock", req.ProductID,
		fmt.Sprintf("transfer=%s,from=%s,to=%s,qty=%d", result.TransferID, req.FromLocationID, req.ToLocationID, req.Quantity))
	s.notifyStockLevel(ctx, &result.From)

	return result, nil
}

// UpdateStockSettings patches threshold fields on a stock record. Quantity
// itself is untouchable here; it only moves through movements.
func (s *Service) UpdateStockSettings(ctx context.Context, tenantID string, productID string, locationID string, patch domain.StockRecordPatch) (*domain.StockRecord, error) {
	if patch.IsZero() {
		return nil, fmt.Errorf("%w: empty patch", store.ErrValidation)
	}
	rec, err := s.repo.UpdateStockSettings(ctx, tenantID, productID, locationID, patch)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "stock_settings_update", "stock", productID,
		fmt.Sprintf("location=%s,min=%d,max=%d,reorder=%d", locationID, rec.MinQuantity, rec.MaxQuantity, rec.ReorderPoint))
	return rec, nil
}

func (s *Service) GetStockRecord(ctx context.Context, tenantID string, productID string, locationID string) (*domain.StockRecord, error) {
	return s.repo.GetStockRecord(ctx, tenantID, productID, locationID)
}

func (s *Service) ListStockRecords(ctx context.Context, tenantID string, locationID string) ([]domain.StockRecord, error) {
	return s.repo.ListStockRecords(ctx, tenantID, locationID)
}

func (s *Service) ListStockMovements(ctx context.Context, tenantID string, filter store.MovementFilter) ([]domain.StockMovement, error) {
	return s.repo.ListStockMovements(ctx, tenantID, filter)
}
