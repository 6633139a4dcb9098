package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/sequence"
	"github.com/itqanpos/backend/internal/store"
)

// The catalog surface below is the minimum the core consumes: product and
// customer lookup plus creation for bootstrapping. Full catalog
// administration lives outside this service.

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Name = strings.TrimSpace(product.Name)
	if product.SKU == "" || product.Name == "" {
		return nil, fmt.Errorf("%w: sku and name required", store.ErrValidation)
	}
	if product.SellingPrice.IsNegative() || product.CostPrice.IsNegative() {
		return nil, fmt.Errorf("%w: negative price", store.ErrValidation)
	}
	if product.ID == "" {
		product.ID = s.ids("prod")
	}
	now := s.now()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, product.TenantID, "product_create", "product", created.ID,
		fmt.Sprintf("sku=%s,price=%s", created.SKU, created.SellingPrice.String()))
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, tenantID, productID)
}

func (s *Service) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, tenantID)
}

// CreateCustomer assigns a tenant-scoped customer code from the sequence
// allocator when none is supplied.
func (s *Service) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, fmt.Errorf("%w: name required", store.ErrValidation)
	}
	if customer.ID == "" {
		customer.ID = s.ids("cust")
	}
	if customer.Code == "" {
		seq, err := s.sequences.Next(ctx, customer.TenantID, sequence.NameCustomer)
		if err != nil {
			return nil, err
		}
		customer.Code = fmt.Sprintf("CUST-%04d", seq)
	}
	now := s.now()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, customer.TenantID, "customer_create", "customer", created.ID, "code="+created.Code)
	return created, nil
}

func (s *Service) GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, tenantID, customerID)
}

func (s *Service) GetTenantSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	return s.repo.GetTenantSettings(ctx, tenantID)
}

func (s *Service) ListAuditLogs(ctx context.Context, tenantID string, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, tenantID, limit)
}
