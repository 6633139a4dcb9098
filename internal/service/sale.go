package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/notify"
	"github.com/itqanpos/backend/internal/store"
)

// CommitSale turns a proposed sale into a persisted one: lines are priced,
// an invoice number is allocated, stock is debited per line, the payment is
// recorded, and the customer's aggregates are incremented. All of it commits
// as one store transaction — a failing line leaves nothing behind.
func (s *Service) CommitSale(ctx context.Context, tenantID string, req domain.CommitSaleRequest) (*domain.Sale, error) {
	if err := validateCommitRequest(tenantID, req); err != nil {
		return nil, err
	}

	settings, err := s.repo.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant settings: %w", err)
	}

	taxRate := settings.DefaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}

	if req.CustomerID != "" {
		if _, err := s.repo.GetCustomer(ctx, tenantID, req.CustomerID); err != nil {
			return nil, fmt.Errorf("resolve customer: %w", err)
		}
	}
	if req.SessionID != "" {
		session, err := s.repo.GetSession(ctx, tenantID, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("resolve session: %w", err)
		}
		if session.Status != domain.SessionOpen {
			return nil, fmt.Errorf("session %s is closed: %w", req.SessionID, store.ErrValidation)
		}
	}

	now := s.now()
	sale := domain.Sale{
		ID:              s.ids("sale"),
		TenantID:        tenantID,
		BranchID:        req.BranchID,
		CustomerID:      req.CustomerID,
		SessionID:       req.SessionID,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,
		TaxRate:         taxRate,
		ShippingCost:    domain.Money(req.ShippingCost),
		PaymentMethod:   req.PaymentMethod,
		Status:          domain.SaleStatusCompleted,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedBy:       s.actorName(ctx),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, lineReq := range req.Lines {
		product, err := s.repo.GetProduct(ctx, tenantID, lineReq.ProductID)
		if err != nil {
			return nil, fmt.Errorf("resolve line product: %w", err)
		}
		unitPrice := product.SellingPrice
		if lineReq.UnitPrice != nil {
			unitPrice = *lineReq.UnitPrice
		}
		line := domain.SaleLine{
			ProductID:       product.ID,
			ProductName:     product.Name,
			SKU:             product.SKU,
			Quantity:        lineReq.Quantity,
			UnitPrice:       unitPrice,
			DiscountPercent: lineReq.DiscountPercent,
			DiscountAmount:  lineReq.DiscountAmount,
		}
		domain.PriceLine(&line, taxRate)
		sale.Lines = append(sale.Lines, line)
		sale.TotalItems += line.Quantity
		sale.Subtotal = domain.Money(sale.Subtotal.Add(line.Total))
	}

	domain.ComputeSaleTotals(&sale)

	sale.PaidAmount = domain.Money(req.PaidAmount)
	sale.RemainingAmount = domain.RemainingAmount(sale.Total, sale.PaidAmount)
	sale.PaymentStatus = domain.ResolvePaymentStatus(sale.PaidAmount, sale.Total)
	if sale.PaidAmount.IsPositive() {
		sale.Payments = []domain.Payment{{
			ID:        s.ids("pay"),
			SaleID:    sale.ID,
			TenantID:  tenantID,
			Amount:    sale.PaidAmount,
			Method:    req.PaymentMethod,
			Actor:     sale.CreatedBy,
			CreatedAt: now,
		}}
	}

	created, err := s.repo.CreateSale(ctx, sale, store.SaleCommitOptions{
		InvoicePrefix:      settings.InvoicePrefix,
		InvoiceStart:       settings.InvoiceStart,
		AllowNegativeStock: settings.AllowNegativeStock,
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"sale_id":   created.ID,
		"invoice":   created.InvoiceNumber,
		"total":     created.Total.String(),
		"lines":     len(created.Lines),
	}).Info("sale committed")

	s.logAudit(ctx, tenantID, "sale_commit", "sale", created.ID,
		fmt.Sprintf("invoice=%s,total=%s,status=%s", created.InvoiceNumber, created.Total.String(), created.PaymentStatus))
	s.publish(ctx, notify.EventSaleCreated, tenantID, created.ID, created)

	for _, line := range created.Lines {
		rec, err := s.repo.GetStockRecord(ctx, tenantID, line.ProductID, created.BranchID)
		if err != nil {
			continue
		}
		s.notifyStockLevel(ctx, rec)
	}

	return created, nil
}

func (s *Service) GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, tenantID, saleID)
}

func (s *Service) GetSaleByInvoice(ctx context.Context, tenantID string, invoiceNumber string) (*domain.Sale, error) {
	return s.repo.GetSaleByInvoice(ctx, tenantID, invoiceNumber)
}

func (s *Service) ListSales(ctx context.Context, tenantID string, filter store.SaleFilter) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, tenantID, filter)
}

func validateCommitRequest(tenantID string, req domain.CommitSaleRequest) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: tenant id required", store.ErrValidation)
	}
	if strings.TrimSpace(req.BranchID) == "" {
		return fmt.Errorf("%w: branch id required", store.ErrValidation)
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return fmt.Errorf("%w: payment method required", store.ErrValidation)
	}
	if len(req.Lines) == 0 {
		return fmt.Errorf("%w: at least one line required", store.ErrValidation)
	}
	for i, line := range req.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return fmt.Errorf("%w: line %d missing product id", store.ErrValidation, i)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", store.ErrValidation, i)
		}
		if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: line %d discount percent out of range", store.ErrValidation, i)
		}
		if line.DiscountAmount.IsNegative() {
			return fmt.Errorf("%w: line %d discount amount negative", store.ErrValidation, i)
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: line %d unit price negative", store.ErrValidation, i)
		}
	}
	if req.PaidAmount.IsNegative() {
		return fmt.Errorf("%w: paid amount negative", store.ErrValidation)
	}
	if req.DiscountPercent.IsNegative() || req.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: discount percent out of range", store.ErrValidation)
	}
	if req.DiscountAmount.IsNegative() || req.ShippingCost.IsNegative() {
		return fmt.Errorf("%w: negative amount", store.ErrValidation)
	}
	if req.TaxRate != nil && req.TaxRate.IsNegative() {
		return fmt.Errorf("%w: tax rate negative", store.ErrValidation)
	}
	return nil
}
