package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/notify"
	"github.com/itqanpos/backend/internal/store"
)

// RefundSale reverses part or all of a committed sale: each returned
// quantity is credited back to stock with a return movement, the sale is
// atomically marked refunded (the store rejects a second refund), an
// immutable refund record is written, and the customer's spent total is
// decremented by the refund amount.
func (s *Service) RefundSale(ctx context.Context, tenantID string, saleID string, req domain.RefundRequest) (*domain.RefundResult, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: refund reason required", store.ErrValidation)
	}

	sale, err := s.repo.GetSale(ctx, tenantID, saleID)
	if err != nil {
		return nil, err
	}
	if sale.IsRefunded {
		return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrAlreadyRefunded)
	}

	items, err := resolveRefundItems(sale, req.Items)
	if err != nil {
		return nil, err
	}

	amount := sale.Total
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			return nil, fmt.Errorf("refund amount negative: %w", store.ErrInvalidAmount)
		}
		amount = domain.Money(*req.Amount)
	}

	now := s.now()
	refund := domain.Refund{
		ID:            s.ids("rfnd"),
		TenantID:      tenantID,
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		Amount:        amount,
		Reason:        strings.TrimSpace(req.Reason),
		Items:         items,
		Actor:         s.actorName(ctx),
		CreatedAt:     now,
	}

	credits := make([]store.MovementParams, 0, len(items))
	for _, item := range items {
		credits = append(credits, store.MovementParams{
			TenantID:      tenantID,
			ProductID:     item.ProductID,
			LocationID:    sale.BranchID,
			Kind:          domain.MovementIn,
			Delta:         item.Quantity,
			ReferenceType: domain.ReferenceReturn,
			ReferenceID:   refund.ID,
			Reason:        refund.Reason,
			AllowNegative: true,
			Actor:         refund.Actor,
			At:            now,
		})
	}

	updated, created, err := s.repo.ApplyRefund(ctx, tenantID, saleID, refund, credits)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"sale_id":   saleID,
		"refund_id": created.ID,
		"amount":    created.Amount.String(),
		"items":     len(created.Items),
	}).Info("sale refunded")

	s.logAudit(ctx, tenantID, "sale_refund", "sale", saleID,
		fmt.Sprintf("refund=%s,amount=%s,reason=%s", created.ID, created.Amount.String(), created.Reason))
	s.publish(ctx, notify.EventSaleRefunded, tenantID, saleID, created)

	return &domain.RefundResult{Sale: *updated, Refund: *created}, nil
}

// resolveRefundItems validates the requested items against the sale's lines,
// capping each at the not-yet-returned quantity. An empty request means a
// full refund of every remaining quantity.
func resolveRefundItems(sale *domain.Sale, requested []domain.RefundItemRequest) ([]domain.RefundItem, error) {
	remaining := make(map[string]int64, len(sale.Lines))
	for _, line := range sale.Lines {
		remaining[line.ProductID] += line.Quantity - line.ReturnedQty
	}

	if len(requested) == 0 {
		items := make([]domain.RefundItem, 0, len(sale.Lines))
		for _, line := range sale.Lines {
			qty := remaining[line.ProductID]
			if qty <= 0 {
				continue
			}
			items = append(items, domain.RefundItem{ProductID: line.ProductID, Quantity: qty})
			remaining[line.ProductID] = 0
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: nothing left to return", store.ErrValidation)
		}
		return items, nil
	}

	items := make([]domain.RefundItem, 0, len(requested))
	for _, item := range requested {
		avail, ok := remaining[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s is not on the sale", store.ErrValidation, item.ProductID)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: return quantity must be positive", store.ErrValidation)
		}
		if item.Quantity > avail {
			return nil, fmt.Errorf("%w: product %s has only %d left to return", store.ErrValidation, item.ProductID, avail)
		}
		remaining[item.ProductID] = avail - item.Quantity
		items = append(items, domain.RefundItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items, nil
}
