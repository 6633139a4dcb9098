package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
	"github.com/itqanpos/backend/internal/xid"
)

// Store is the in-memory Repository used for tests and for running the
// server without a database. All multi-record operations hold the write lock
// for their full duration, which gives the same all-or-nothing visibility the
// Postgres store gets from transactions.
type Store struct {
	mu            sync.RWMutex
	tenants       map[string]domain.TenantSettings
	products      map[string]map[string]domain.Product
	customers     map[string]map[string]domain.Customer
	sequences     map[string]map[string]int64
	stock         map[string]map[string]domain.StockRecord
	movements     map[string][]domain.StockMovement
	sales         map[string]map[string]*domain.Sale
	saleByInvoice map[string]map[string]string
	refunds       map[string]map[string]domain.Refund
	receipts      map[string]map[string]domain.PurchaseReceipt
	sessions      map[string]map[string]domain.Session
	activeSession map[string]string
	auditLogs     map[string][]domain.AuditLog
	users         map[string]map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		tenants:       make(map[string]domain.TenantSettings),
		products:      make(map[string]map[string]domain.Product),
		customers:     make(map[string]map[string]domain.Customer),
		sequences:     make(map[string]map[string]int64),
		stock:         make(map[string]map[string]domain.StockRecord),
		movements:     make(map[string][]domain.StockMovement),
		sales:         make(map[string]map[string]*domain.Sale),
		saleByInvoice: make(map[string]map[string]string),
		refunds:       make(map[string]map[string]domain.Refund),
		receipts:      make(map[string]map[string]domain.PurchaseReceipt),
		sessions:      make(map[string]map[string]domain.Session),
		activeSession: make(map[string]string),
		auditLogs:     make(map[string][]domain.AuditLog),
		users:         make(map[string]map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a demo tenant, products with
// opening stock, and two user accounts. Used when the server runs without
// DATABASE_URL.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	tenant := domain.TenantSettings{
		TenantID:           "demo",
		Name:               "Demo Retail",
		InvoicePrefix:      "INV",
		InvoiceStart:       1000,
		DefaultTaxRate:     decimal.NewFromInt(15),
		AllowNegativeStock: false,
		InventoryMethod:    domain.InventoryAverage,
		Currency:           "SAR",
	}
	if _, err := s.CreateTenant(ctx, tenant); err != nil {
		log.Fatalf("[memory-store] seed tenant: %v", err)
	}

	products := []domain.Product{
		{ID: "prod-espresso", SKU: "BEV-ESP-01", Name: "Espresso Beans 1kg", Category: "beverage", CostPrice: decimal.NewFromInt(38), SellingPrice: decimal.NewFromInt(55), MinQuantity: 10},
		{ID: "prod-dates", SKU: "GRO-DAT-01", Name: "Khalas Dates 500g", Category: "grocery", CostPrice: decimal.NewFromInt(12), SellingPrice: decimal.NewFromInt(19), MinQuantity: 20},
		{ID: "prod-water", SKU: "BEV-WTR-01", Name: "Mineral Water 600ml", Category: "beverage", CostPrice: decimal.NewFromFloat(0.8), SellingPrice: decimal.NewFromFloat(1.5), MinQuantity: 48},
		{ID: "prod-oil", SKU: "GRO-OIL-01", Name: "Olive Oil 750ml", Category: "grocery", CostPrice: decimal.NewFromInt(24), SellingPrice: decimal.NewFromInt(34), MinQuantity: 8},
		{ID: "prod-soap", SKU: "HSH-SOP-01", Name: "Hand Soap 500ml", Category: "household", CostPrice: decimal.NewFromFloat(4.5), SellingPrice: decimal.NewFromFloat(7.25), MinQuantity: 12},
		{ID: "prod-tea", SKU: "BEV-TEA-01", Name: "Loose Leaf Tea 250g", Category: "beverage", CostPrice: decimal.NewFromInt(9), SellingPrice: decimal.NewFromInt(14), MinQuantity: 15},
	}
	for _, p := range products {
		p.TenantID = "demo"
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		if _, err := s.CreateProduct(ctx, p); err != nil {
			log.Fatalf("[memory-store] seed product %s: %v", p.SKU, err)
		}
		cost := p.CostPrice
		_, _, err := s.ApplyStockMovement(ctx, store.MovementParams{
			TenantID:      "demo",
			ProductID:     p.ID,
			LocationID:    "main",
			Kind:          domain.MovementIn,
			Delta:         100,
			ReferenceType: domain.ReferencePurchase,
			ReferenceID:   "seed",
			Reason:        "opening stock",
			UnitCost:      &cost,
			Actor:         "system",
			At:            now,
		})
		if err != nil {
			log.Fatalf("[memory-store] seed stock %s: %v", p.SKU, err)
		}
	}

	for _, u := range seedUsers() {
		if err := s.CreateUser(ctx, u); err != nil {
			log.Fatalf("[memory-store] seed user %s: %v", u.Username, err)
		}
	}
	return s
}

// seedUsers builds the initial demo accounts. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; hardcoded dev defaults are
// used with a warning when unset. Never reached in production (the server
// uses PostgreSQL when DATABASE_URL is set).
func seedUsers() []domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	var users []domain.UserAccount
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] hash seed password for %s: %v", u.username, err)
		}
		users = append(users, domain.UserAccount{
			ID:        xid.New("user"),
			TenantID:  "demo",
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			BranchID:  "main",
			Active:    true,
			CreatedAt: now,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func stockKey(productID, locationID string) string {
	return productID + "|" + locationID
}

func sessionKey(tenantID, branchID, registerID string) string {
	return tenantID + "|" + branchID + "|" + registerID
}

// --- tenants ---

func (s *Store) CreateTenant(_ context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error) {
	if strings.TrimSpace(settings.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[settings.TenantID]; ok {
		return nil, fmt.Errorf("tenant %s: %w", settings.TenantID, store.ErrDuplicate)
	}
	if settings.InvoicePrefix == "" {
		settings.InvoicePrefix = "INV"
	}
	if settings.InvoiceStart <= 0 {
		settings.InvoiceStart = 1
	}
	if settings.InventoryMethod == "" {
		settings.InventoryMethod = domain.InventoryAverage
	}
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = time.Now().UTC()
	}
	settings.UpdatedAt = settings.CreatedAt
	s.tenants[settings.TenantID] = settings
	out := settings
	return &out, nil
}

func (s *Store) GetTenantSettings(_ context.Context, tenantID string) (*domain.TenantSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, store.ErrNotFound)
	}
	out := settings
	return &out, nil
}

func (s *Store) UpdateTenantSettings(_ context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tenants[settings.TenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", settings.TenantID, store.ErrNotFound)
	}
	settings.CreatedAt = current.CreatedAt
	settings.UpdatedAt = time.Now().UTC()
	s.tenants[settings.TenantID] = settings
	out := settings
	return &out, nil
}

// --- products ---

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.TenantID) == "" || strings.TrimSpace(product.SKU) == "" {
		return nil, fmt.Errorf("%w: tenant id and sku required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	byID := s.products[product.TenantID]
	if byID == nil {
		byID = make(map[string]domain.Product)
		s.products[product.TenantID] = byID
	}
	for _, existing := range byID {
		if existing.SKU == product.SKU {
			return nil, fmt.Errorf("sku %s: %w", product.SKU, store.ErrDuplicate)
		}
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt
	byID[product.ID] = product
	out := product
	return &out, nil
}

func (s *Store) GetProduct(_ context.Context, tenantID string, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[tenantID][productID]
	if !ok {
		for owner, byID := range s.products {
			if owner == tenantID {
				continue
			}
			if _, exists := byID[productID]; exists {
				return nil, fmt.Errorf("product %s: %w", productID, store.ErrCrossTenant)
			}
		}
		return nil, fmt.Errorf("product %s: %w", productID, store.ErrProductNotFound)
	}
	out := product
	return &out, nil
}

func (s *Store) ListProducts(_ context.Context, tenantID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.products[tenantID]))
	for _, p := range s.products[tenantID] {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		return strings.Compare(a.SKU, b.SKU)
	})
	return out, nil
}

// --- customers ---

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.TenantID) == "" || strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: tenant id and name required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.Code == "" {
		seq := s.nextSequenceLocked(customer.TenantID, "customer")
		customer.Code = fmt.Sprintf("CUST-%04d", seq)
	}
	byID := s.customers[customer.TenantID]
	if byID == nil {
		byID = make(map[string]domain.Customer)
		s.customers[customer.TenantID] = byID
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt
	byID[customer.ID] = customer
	out := customer
	return &out, nil
}

func (s *Store) GetCustomer(_ context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[tenantID][customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
	}
	out := customer
	return &out, nil
}

func (s *Store) ApplyCustomerDelta(_ context.Context, tenantID string, customerID string, delta domain.CustomerDelta) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, err := s.applyCustomerDeltaLocked(tenantID, customerID, delta)
	if err != nil {
		return nil, err
	}
	out := customer
	return &out, nil
}

func (s *Store) applyCustomerDeltaLocked(tenantID string, customerID string, delta domain.CustomerDelta) (domain.Customer, error) {
	customer, ok := s.customers[tenantID][customerID]
	if !ok {
		return domain.Customer{}, fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
	}
	customer.TotalOrders += delta.Orders
	customer.TotalSpent = domain.Money(customer.TotalSpent.Add(delta.Spent))
	customer.CurrentBalance = domain.Money(customer.CurrentBalance.Add(delta.Balance))
	if delta.LastOrderAt != nil {
		at := *delta.LastOrderAt
		customer.LastOrderAt = &at
	}
	customer.UpdatedAt = time.Now().UTC()
	s.customers[tenantID][customerID] = customer
	return customer, nil
}

// --- sequences ---

func (s *Store) NextSequence(_ context.Context, tenantID string, name string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: tenant id and sequence name required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSequenceLocked(tenantID, name), nil
}

func (s *Store) nextSequenceLocked(tenantID string, name string) int64 {
	byName := s.sequences[tenantID]
	if byName == nil {
		byName = make(map[string]int64)
		s.sequences[tenantID] = byName
	}
	byName[name]++
	return byName[name]
}

// --- stock ---

func (s *Store) GetStockRecord(_ context.Context, tenantID string, productID string, locationID string) (*domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.stock[tenantID][stockKey(productID, locationID)]
	if !ok {
		return nil, fmt.Errorf("stock %s@%s: %w", productID, locationID, store.ErrNotFound)
	}
	out := rec
	return &out, nil
}

func (s *Store) ListStockRecords(_ context.Context, tenantID string, locationID string) ([]domain.StockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StockRecord
	for _, rec := range s.stock[tenantID] {
		if locationID != "" && rec.LocationID != locationID {
			continue
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.StockRecord) int {
		if c := strings.Compare(a.LocationID, b.LocationID); c != 0 {
			return c
		}
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return out, nil
}

func (s *Store) ApplyStockMovement(_ context.Context, params store.MovementParams) (*domain.StockRecord, *domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, mov, err := s.applyMovementLocked(params)
	if err != nil {
		return nil, nil, err
	}
	s.stock[params.TenantID][stockKey(params.ProductID, params.LocationID)] = rec
	s.movements[params.TenantID] = append(s.movements[params.TenantID], mov)
	recOut, movOut := rec, mov
	return &recOut, &movOut, nil
}

// applyMovementLocked computes the updated record and the ledger entry
// without persisting either, so multi-movement operations can stage all
// writes and fail as a unit. Callers must hold the write lock and persist
// both return values together.
func (s *Store) applyMovementLocked(params store.MovementParams) (domain.StockRecord, domain.StockMovement, error) {
	if params.Delta == 0 {
		return domain.StockRecord{}, domain.StockMovement{}, fmt.Errorf("%w: zero delta", store.ErrValidation)
	}
	rec, err := s.stockForUpdateLocked(params.TenantID, params.ProductID, params.LocationID, params.At)
	if err != nil {
		return domain.StockRecord{}, domain.StockMovement{}, err
	}
	return applyMovement(rec, params)
}

// stockForUpdateLocked returns the current record, lazily creating a
// zero-quantity one (thresholds copied from the product) on first movement.
func (s *Store) stockForUpdateLocked(tenantID, productID, locationID string, at time.Time) (domain.StockRecord, error) {
	if rec, ok := s.stock[tenantID][stockKey(productID, locationID)]; ok {
		return rec, nil
	}
	product, ok := s.products[tenantID][productID]
	if !ok {
		return domain.StockRecord{}, fmt.Errorf("product %s: %w", productID, store.ErrProductNotFound)
	}
	rec := domain.StockRecord{
		TenantID:    tenantID,
		ProductID:   productID,
		LocationID:  locationID,
		MinQuantity: product.MinQuantity,
		MaxQuantity: product.MaxQuantity,
		AverageCost: product.CostPrice,
		Status:      domain.StockStatusOutOfStock,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if s.stock[tenantID] == nil {
		s.stock[tenantID] = make(map[string]domain.StockRecord)
	}
	return rec, nil
}

func applyMovement(rec domain.StockRecord, params store.MovementParams) (domain.StockRecord, domain.StockMovement, error) {
	return store.ApplyMovement(rec, xid.New("mov"), params)
}

func (s *Store) UpdateStockSettings(_ context.Context, tenantID string, productID string, locationID string, patch domain.StockRecordPatch) (*domain.StockRecord, error) {
	if patch.IsZero() {
		return nil, fmt.Errorf("%w: empty patch", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stock[tenantID][stockKey(productID, locationID)]
	if !ok {
		return nil, fmt.Errorf("stock %s@%s: %w", productID, locationID, store.ErrNotFound)
	}
	if patch.Apply(&rec) {
		rec.Recalculate(time.Now().UTC())
		s.stock[tenantID][stockKey(productID, locationID)] = rec
	}
	out := rec
	return &out, nil
}

func (s *Store) ListStockMovements(_ context.Context, tenantID string, filter store.MovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StockMovement
	for _, mov := range s.movements[tenantID] {
		if filter.ProductID != "" && mov.ProductID != filter.ProductID {
			continue
		}
		if filter.LocationID != "" && mov.LocationID != filter.LocationID {
			continue
		}
		if filter.ReferenceType != "" && mov.ReferenceType != filter.ReferenceType {
			continue
		}
		if filter.ReferenceID != "" && mov.ReferenceID != filter.ReferenceID {
			continue
		}
		out = append(out, mov)
	}
	slices.SortFunc(out, func(a, b domain.StockMovement) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- sales ---

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, opts store.SaleCommitOptions) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale has no lines", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, ok := s.sales[sale.TenantID][sale.ID]; ok {
		return nil, fmt.Errorf("sale %s: %w", sale.ID, store.ErrDuplicate)
	}

	// Stage every line debit before touching shared state so a failing line
	// leaves nothing behind.
	stagedStock := make(map[string]domain.StockRecord)
	stagedMovs := make([]domain.StockMovement, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		key := stockKey(line.ProductID, sale.BranchID)
		rec, ok := stagedStock[key]
		if !ok {
			var err error
			rec, err = s.stockForUpdateLocked(sale.TenantID, line.ProductID, sale.BranchID, sale.CreatedAt)
			if err != nil {
				return nil, err
			}
		}
		rec, mov, err := applyMovement(rec, store.MovementParams{
			TenantID:      sale.TenantID,
			ProductID:     line.ProductID,
			LocationID:    sale.BranchID,
			Kind:          domain.MovementOut,
			Delta:         -line.Quantity,
			ReferenceType: domain.ReferenceSale,
			ReferenceID:   sale.ID,
			AllowNegative: opts.AllowNegativeStock,
			Actor:         sale.CreatedBy,
			At:            sale.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
		stagedStock[key] = rec
		stagedMovs = append(stagedMovs, mov)
	}

	seq := s.nextSequenceLocked(sale.TenantID, "invoice")
	sale.InvoiceNumber = domain.FormatInvoiceNumber(opts.InvoicePrefix, opts.InvoiceStart+seq-1)

	for key, rec := range stagedStock {
		if s.stock[sale.TenantID] == nil {
			s.stock[sale.TenantID] = make(map[string]domain.StockRecord)
		}
		s.stock[sale.TenantID][key] = rec
	}
	s.movements[sale.TenantID] = append(s.movements[sale.TenantID], stagedMovs...)

	if sale.CustomerID != "" {
		at := sale.CreatedAt
		if _, err := s.applyCustomerDeltaLocked(sale.TenantID, sale.CustomerID, domain.CustomerDelta{
			Orders:      1,
			Spent:       sale.Total,
			LastOrderAt: &at,
		}); err != nil {
			return nil, err
		}
	}

	if s.sales[sale.TenantID] == nil {
		s.sales[sale.TenantID] = make(map[string]*domain.Sale)
		s.saleByInvoice[sale.TenantID] = make(map[string]string)
	}
	stored := cloneSale(sale)
	s.sales[sale.TenantID][sale.ID] = &stored
	s.saleByInvoice[sale.TenantID][sale.InvoiceNumber] = sale.ID

	out := cloneSale(stored)
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[tenantID][saleID]
	if !ok {
		for owner, byID := range s.sales {
			if owner == tenantID {
				continue
			}
			if _, exists := byID[saleID]; exists {
				return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrCrossTenant)
			}
		}
		return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
	}
	out := cloneSale(*sale)
	return &out, nil
}

func (s *Store) GetSaleByInvoice(_ context.Context, tenantID string, invoiceNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	saleID, ok := s.saleByInvoice[tenantID][invoiceNumber]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", invoiceNumber, store.ErrNotFound)
	}
	out := cloneSale(*s.sales[tenantID][saleID])
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, tenantID string, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Sale
	for _, sale := range s.sales[tenantID] {
		if filter.BranchID != "" && sale.BranchID != filter.BranchID {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.SessionID != "" && sale.SessionID != filter.SessionID {
			continue
		}
		if filter.PaymentStatus != "" && sale.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sale.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, cloneSale(*sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) AddSalePayment(_ context.Context, tenantID string, saleID string, payment domain.Payment) (*domain.Sale, error) {
	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive: %w", store.ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[tenantID][saleID]
	if !ok {
		return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	payment.SaleID = sale.ID
	payment.TenantID = tenantID
	sale.Payments = append(sale.Payments, payment)
	sale.PaidAmount = domain.Money(sale.PaidAmount.Add(payment.Amount))
	sale.RemainingAmount = domain.RemainingAmount(sale.Total, sale.PaidAmount)
	sale.PaymentStatus = domain.ResolvePaymentStatus(sale.PaidAmount, sale.Total)
	sale.UpdatedAt = payment.CreatedAt
	out := cloneSale(*sale)
	return &out, nil
}

func (s *Store) ApplyRefund(_ context.Context, tenantID string, saleID string, refund domain.Refund, credits []store.MovementParams) (*domain.Sale, *domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[tenantID][saleID]
	if !ok {
		return nil, nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
	}
	if sale.IsRefunded {
		return nil, nil, fmt.Errorf("sale %s: %w", saleID, store.ErrAlreadyRefunded)
	}

	stagedStock := make(map[string]domain.StockRecord)
	stagedMovs := make([]domain.StockMovement, 0, len(credits))
	for _, params := range credits {
		key := stockKey(params.ProductID, params.LocationID)
		rec, ok := stagedStock[key]
		if !ok {
			var err error
			rec, err = s.stockForUpdateLocked(tenantID, params.ProductID, params.LocationID, params.At)
			if err != nil {
				return nil, nil, err
			}
		}
		rec, mov, err := applyMovement(rec, params)
		if err != nil {
			return nil, nil, err
		}
		stagedStock[key] = rec
		stagedMovs = append(stagedMovs, mov)
	}
	for key, rec := range stagedStock {
		s.stock[tenantID][key] = rec
	}
	s.movements[tenantID] = append(s.movements[tenantID], stagedMovs...)

	if refund.ID == "" {
		refund.ID = xid.New("rfnd")
	}
	refund.TenantID = tenantID
	refund.SaleID = sale.ID
	refund.InvoiceNumber = sale.InvoiceNumber
	if s.refunds[tenantID] == nil {
		s.refunds[tenantID] = make(map[string]domain.Refund)
	}
	s.refunds[tenantID][refund.ID] = refund

	at := refund.CreatedAt
	sale.IsRefunded = true
	sale.Status = domain.SaleStatusRefunded
	sale.RefundAmount = refund.Amount
	sale.RefundReason = refund.Reason
	sale.RefundedAt = &at
	sale.UpdatedAt = at
	for i := range sale.Lines {
		for _, item := range refund.Items {
			if sale.Lines[i].ProductID == item.ProductID {
				sale.Lines[i].ReturnedQty += item.Quantity
			}
		}
	}

	if sale.CustomerID != "" {
		if _, err := s.applyCustomerDeltaLocked(tenantID, sale.CustomerID, domain.CustomerDelta{
			Spent: refund.Amount.Neg(),
		}); err != nil {
			return nil, nil, err
		}
	}

	saleOut := cloneSale(*sale)
	refundOut := refund
	refundOut.Items = slices.Clone(refund.Items)
	return &saleOut, &refundOut, nil
}

// --- purchase receipts ---

func (s *Store) CreatePurchaseReceipt(_ context.Context, receipt domain.PurchaseReceipt) (*domain.PurchaseReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if receipt.ID == "" {
		receipt.ID = xid.New("rcpt")
	}
	if s.receipts[receipt.TenantID] == nil {
		s.receipts[receipt.TenantID] = make(map[string]domain.PurchaseReceipt)
	}
	stored := receipt
	stored.Lines = slices.Clone(receipt.Lines)
	s.receipts[receipt.TenantID][receipt.ID] = stored
	out := stored
	out.Lines = slices.Clone(stored.Lines)
	return &out, nil
}

func (s *Store) GetPurchaseReceipt(_ context.Context, tenantID string, receiptID string) (*domain.PurchaseReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[tenantID][receiptID]
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, store.ErrNotFound)
	}
	out := receipt
	out.Lines = slices.Clone(receipt.Lines)
	return &out, nil
}

// --- sessions ---

func (s *Store) CreateSession(_ context.Context, session domain.Session) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(session.TenantID, session.BranchID, session.RegisterID)
	if activeID, ok := s.activeSession[key]; ok {
		return nil, fmt.Errorf("register %s has open session %s: %w", session.RegisterID, activeID, store.ErrSessionOpen)
	}
	if session.ID == "" {
		session.ID = xid.New("sess")
	}
	session.Status = domain.SessionOpen
	if s.sessions[session.TenantID] == nil {
		s.sessions[session.TenantID] = make(map[string]domain.Session)
	}
	s.sessions[session.TenantID][session.ID] = session
	s.activeSession[key] = session.ID
	out := session
	return &out, nil
}

func (s *Store) GetSession(_ context.Context, tenantID string, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[tenantID][sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, store.ErrNotFound)
	}
	out := session
	return &out, nil
}

func (s *Store) GetActiveSession(_ context.Context, tenantID string, branchID string, registerID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.activeSession[sessionKey(tenantID, branchID, registerID)]
	if !ok {
		return nil, fmt.Errorf("register %s: %w", registerID, store.ErrNoOpenSession)
	}
	out := s.sessions[tenantID][sessionID]
	return &out, nil
}

func (s *Store) CloseSession(_ context.Context, tenantID string, sessionID string, closingCash decimal.Decimal, notes string, closedAt time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[tenantID][sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, store.ErrNotFound)
	}
	if session.Status != domain.SessionOpen {
		return nil, fmt.Errorf("session %s: %w", sessionID, store.ErrNoOpenSession)
	}

	cashIn := decimal.Zero
	cashRefunds := decimal.Zero
	for _, sale := range s.sales[tenantID] {
		if sale.SessionID != sessionID {
			continue
		}
		session.TotalSales = domain.Money(session.TotalSales.Add(sale.Total))
		session.SaleCount++
		if sale.IsRefunded {
			session.TotalRefunds = domain.Money(session.TotalRefunds.Add(sale.RefundAmount))
		}
		if sale.PaymentMethod == "cash" {
			cashIn = cashIn.Add(sale.PaidAmount)
			if sale.IsRefunded {
				cashRefunds = cashRefunds.Add(sale.RefundAmount)
			}
		}
	}

	expected := domain.Money(session.OpeningCash.Add(cashIn).Sub(cashRefunds))
	diff := domain.Money(closingCash.Sub(expected))
	closing := closingCash
	session.ClosingCash = &closing
	session.ExpectedCash = &expected
	session.CashDiff = &diff
	session.ClosingNotes = notes
	session.Status = domain.SessionClosed
	session.ClosedAt = &closedAt

	s.sessions[tenantID][sessionID] = session
	delete(s.activeSession, sessionKey(tenantID, session.BranchID, session.RegisterID))
	out := session
	return &out, nil
}

// --- audit / users ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	s.auditLogs[entry.TenantID] = append(s.auditLogs[entry.TenantID], entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, tenantID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := slices.Clone(s.auditLogs[tenantID])
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if strings.TrimSpace(user.Username) == "" || user.Password == "" {
		return fmt.Errorf("%w: username and password required", store.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byName := s.users[user.TenantID]
	if byName == nil {
		byName = make(map[string]domain.UserAccount)
		s.users[user.TenantID] = byName
	}
	if _, ok := byName[user.Username]; ok {
		return fmt.Errorf("user %s: %w", user.Username, store.ErrDuplicate)
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	byName[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, tenantID string, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[tenantID][username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	out := user
	return &out, nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	out := sale
	out.Lines = slices.Clone(sale.Lines)
	out.Payments = slices.Clone(sale.Payments)
	if sale.RefundedAt != nil {
		at := *sale.RefundedAt
		out.RefundedAt = &at
	}
	return out
}
