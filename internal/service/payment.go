package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
)

// AddPayment records an additional payment against a committed sale and
// rederives paid/remaining/status. The appended payment's amount always
// equals the delta applied to the sale's paid amount. Overpayment is
// accepted and resolves to status paid.
func (s *Service) AddPayment(ctx context.Context, tenantID string, saleID string, req domain.AddPaymentRequest) (*domain.PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive: %w", store.ErrInvalidAmount)
	}
	if strings.TrimSpace(req.Method) == "" {
		return nil, fmt.Errorf("%w: payment method required", store.ErrValidation)
	}

	// Resolve first so cross-tenant access fails before any write.
	if _, err := s.repo.GetSale(ctx, tenantID, saleID); err != nil {
		return nil, err
	}

	payment := domain.Payment{
		ID:        s.ids("pay"),
		SaleID:    saleID,
		TenantID:  tenantID,
		Amount:    domain.Money(req.Amount),
		Method:    req.Method,
		Reference: strings.TrimSpace(req.Reference),
		Notes:     strings.TrimSpace(req.Notes),
		Actor:     s.actorName(ctx),
		CreatedAt: s.now(),
	}

	sale, err := s.repo.AddSalePayment(ctx, tenantID, saleID, payment)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, tenantID, "payment_add", "sale", saleID,
		fmt.Sprintf("amount=%s,method=%s,status=%s", payment.Amount.String(), payment.Method, sale.PaymentStatus))

	return &domain.PaymentResult{
		Sale:       *sale,
		Payment:    payment,
		PaidAmount: sale.PaidAmount,
		Remaining:  sale.RemainingAmount,
		Status:     sale.PaymentStatus,
	}, nil
}
