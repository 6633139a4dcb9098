package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
	"github.com/itqanpos/backend/internal/xid"
)

// maxTxAttempts bounds the retry loop on serialization failures before
// ErrConflict is surfaced to the caller.
const maxTxAttempts = 3

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for migrations at startup.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withSerializableTx runs fn inside a serializable transaction, retrying a
// bounded number of times on serialization failures and deadlocks.
func (s *Store) withSerializableTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxTxAttempts, store.ErrConflict)
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- tenants ---

func (s *Store) CreateTenant(ctx context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error) {
	if strings.TrimSpace(settings.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id required", store.ErrValidation)
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, invoice_prefix, invoice_start, default_tax_rate, allow_negative_stock, inventory_method, currency, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, settings.TenantID, settings.Name, settings.InvoicePrefix, settings.InvoiceStart, settings.DefaultTaxRate,
		settings.AllowNegativeStock, settings.InventoryMethod, settings.Currency, settings.CreatedAt, settings.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("tenant %s: %w", settings.TenantID, store.ErrDuplicate)
		}
		return nil, err
	}
	out := settings
	return &out, nil
}

func (s *Store) GetTenantSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	var settings domain.TenantSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, invoice_prefix, invoice_start, default_tax_rate, allow_negative_stock, inventory_method, currency, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&settings.TenantID, &settings.Name, &settings.InvoicePrefix, &settings.InvoiceStart,
		&settings.DefaultTaxRate, &settings.AllowNegativeStock, &settings.InventoryMethod, &settings.Currency,
		&settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, store.ErrNotFound)
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpdateTenantSettings(ctx context.Context, settings domain.TenantSettings) (*domain.TenantSettings, error) {
	settings.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants
		SET name = $2, invoice_prefix = $3, invoice_start = $4, default_tax_rate = $5,
		    allow_negative_stock = $6, inventory_method = $7, currency = $8, updated_at = $9
		WHERE id = $1
	`, settings.TenantID, settings.Name, settings.InvoicePrefix, settings.InvoiceStart, settings.DefaultTaxRate,
		settings.AllowNegativeStock, settings.InventoryMethod, settings.Currency, settings.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("tenant %s: %w", settings.TenantID, store.ErrNotFound)
	}
	out := settings
	return &out, nil
}

// --- products ---

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.TenantID) == "" || strings.TrimSpace(product.SKU) == "" {
		return nil, fmt.Errorf("%w: tenant id and sku required", store.ErrValidation)
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.UpdatedAt = product.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, sku, name, category, cost_price, selling_price, min_quantity, max_quantity, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, product.ID, product.TenantID, product.SKU, product.Name, product.Category, product.CostPrice,
		product.SellingPrice, product.MinQuantity, product.MaxQuantity, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sku %s: %w", product.SKU, store.ErrDuplicate)
		}
		return nil, err
	}
	out := product
	return &out, nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, sku, name, category, cost_price, selling_price, min_quantity, max_quantity, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Category, &p.CostPrice, &p.SellingPrice,
		&p.MinQuantity, &p.MaxQuantity, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", productID, store.ErrProductNotFound)
		}
		return nil, err
	}
	if p.TenantID != tenantID {
		return nil, fmt.Errorf("product %s: %w", productID, store.ErrCrossTenant)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, sku, name, category, cost_price, selling_price, min_quantity, max_quantity, active, created_at, updated_at
		FROM products
		WHERE tenant_id = $1
		ORDER BY sku
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Category, &p.CostPrice, &p.SellingPrice,
			&p.MinQuantity, &p.MaxQuantity, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// --- customers ---

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.TenantID) == "" || strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: tenant id and name required", store.ErrValidation)
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.UpdatedAt = customer.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, tenant_id, code, name, phone, email, total_orders, total_spent, current_balance, last_order_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, customer.ID, customer.TenantID, customer.Code, customer.Name, customer.Phone, customer.Email,
		customer.TotalOrders, customer.TotalSpent, customer.CurrentBalance, nullTime(customer.LastOrderAt),
		customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("customer code %s: %w", customer.Code, store.ErrDuplicate)
		}
		return nil, err
	}
	out := customer
	return &out, nil
}

func (s *Store) GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	var lastOrder sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, code, name, phone, email, total_orders, total_spent, current_balance, last_order_at, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, customerID).Scan(&c.ID, &c.TenantID, &c.Code, &c.Name, &c.Phone, &c.Email,
		&c.TotalOrders, &c.TotalSpent, &c.CurrentBalance, &lastOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
		}
		return nil, err
	}
	if c.TenantID != tenantID {
		return nil, fmt.Errorf("customer %s: %w", customerID, store.ErrCrossTenant)
	}
	if lastOrder.Valid {
		c.LastOrderAt = &lastOrder.Time
	}
	return &c, nil
}

func (s *Store) ApplyCustomerDelta(ctx context.Context, tenantID string, customerID string, delta domain.CustomerDelta) (*domain.Customer, error) {
	var c domain.Customer
	var lastOrder sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET total_orders = total_orders + $3,
		    total_spent = total_spent + $4,
		    current_balance = current_balance + $5,
		    last_order_at = COALESCE($6, last_order_at),
		    updated_at = now()
		WHERE id = $2 AND tenant_id = $1
		RETURNING id, tenant_id, code, name, phone, email, total_orders, total_spent, current_balance, last_order_at, created_at, updated_at
	`, tenantID, customerID, delta.Orders, delta.Spent, delta.Balance, nullTime(delta.LastOrderAt)).
		Scan(&c.ID, &c.TenantID, &c.Code, &c.Name, &c.Phone, &c.Email,
			&c.TotalOrders, &c.TotalSpent, &c.CurrentBalance, &lastOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
		}
		return nil, err
	}
	if lastOrder.Valid {
		c.LastOrderAt = &lastOrder.Time
	}
	return &c, nil
}

// --- sequences ---

func (s *Store) NextSequence(ctx context.Context, tenantID string, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (tenant_id, name, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, name) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, tenantID, name).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func nextSequenceTx(ctx context.Context, tx *sql.Tx, tenantID string, name string) (int64, error) {
	var value int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO sequences (tenant_id, name, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, name) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, tenantID, name).Scan(&value)
	return value, err
}

// --- stock ---

const stockColumns = `tenant_id, product_id, location_id, quantity, reserved_quantity, available_quantity,
	min_quantity, max_quantity, reorder_point, average_cost, total_value, status, created_at, updated_at`

func scanStock(row interface{ Scan(...any) error }) (domain.StockRecord, error) {
	var rec domain.StockRecord
	err := row.Scan(&rec.TenantID, &rec.ProductID, &rec.LocationID, &rec.Quantity, &rec.ReservedQuantity,
		&rec.AvailableQuantity, &rec.MinQuantity, &rec.MaxQuantity, &rec.ReorderPoint, &rec.AverageCost,
		&rec.TotalValue, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func (s *Store) GetStockRecord(ctx context.Context, tenantID string, productID string, locationID string) (*domain.StockRecord, error) {
	rec, err := scanStock(s.db.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock_records
		WHERE tenant_id = $1 AND product_id = $2 AND location_id = $3
	`, tenantID, productID, locationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stock %s@%s: %w", productID, locationID, store.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListStockRecords(ctx context.Context, tenantID string, locationID string) ([]domain.StockRecord, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_records WHERE tenant_id = $1`
	args := []any{tenantID}
	if locationID != "" {
		query += ` AND location_id = $2`
		args = append(args, locationID)
	}
	query += ` ORDER BY location_id, product_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.StockRecord
	for rows.Next() {
		rec, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// stockForUpdateTx locks the stock row, lazily creating a zero-quantity one
// (thresholds copied from the product) on first movement. The product lookup
// doubles as the referential check.
func stockForUpdateTx(ctx context.Context, tx *sql.Tx, tenantID, productID, locationID string, at time.Time) (domain.StockRecord, error) {
	rec, err := scanStock(tx.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock_records
		WHERE tenant_id = $1 AND product_id = $2 AND location_id = $3
		FOR UPDATE
	`, tenantID, productID, locationID))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.StockRecord{}, err
	}

	var productTenant string
	var minQty, maxQty int64
	var costPrice decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT tenant_id, min_quantity, max_quantity, cost_price
		FROM products
		WHERE id = $1
	`, productID).Scan(&productTenant, &minQty, &maxQty, &costPrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StockRecord{}, fmt.Errorf("product %s: %w", productID, store.ErrProductNotFound)
		}
		return domain.StockRecord{}, err
	}
	if productTenant != tenantID {
		return domain.StockRecord{}, fmt.Errorf("product %s: %w", productID, store.ErrCrossTenant)
	}

	rec = domain.StockRecord{
		TenantID:    tenantID,
		ProductID:   productID,
		LocationID:  locationID,
		MinQuantity: minQty,
		MaxQuantity: maxQty,
		AverageCost: costPrice,
		Status:      domain.StockStatusOutOfStock,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_records (tenant_id, product_id, location_id, quantity, reserved_quantity, available_quantity,
			min_quantity, max_quantity, reorder_point, average_cost, total_value, status, created_at, updated_at)
		VALUES ($1,$2,$3,0,0,0,$4,$5,0,$6,0,$7,$8,$8)
	`, tenantID, productID, locationID, minQty, maxQty, costPrice, rec.Status, at)
	if err != nil {
		return domain.StockRecord{}, err
	}
	return rec, nil
}

// applyMovementTx performs one atomic quantity change inside tx: row lock,
// shared ledger arithmetic, stock update, movement insert.
func applyMovementTx(ctx context.Context, tx *sql.Tx, params store.MovementParams) (domain.StockRecord, domain.StockMovement, error) {
	rec, err := stockForUpdateTx(ctx, tx, params.TenantID, params.ProductID, params.LocationID, params.At)
	if err != nil {
		return domain.StockRecord{}, domain.StockMovement{}, err
	}
	rec, mov, err := store.ApplyMovement(rec, xid.New("mov"), params)
	if err != nil {
		return domain.StockRecord{}, domain.StockMovement{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE stock_records
		SET quantity = $4, available_quantity = $5, average_cost = $6, total_value = $7, status = $8, updated_at = $9
		WHERE tenant_id = $1 AND product_id = $2 AND location_id = $3
	`, rec.TenantID, rec.ProductID, rec.LocationID, rec.Quantity, rec.AvailableQuantity, rec.AverageCost,
		rec.TotalValue, rec.Status, rec.UpdatedAt)
	if err != nil {
		return domain.StockRecord{}, domain.StockMovement{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, tenant_id, product_id, location_id, kind, delta, previous_quantity, new_quantity,
			reference_type, reference_id, reason, unit_cost, total_cost, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, mov.ID, mov.TenantID, mov.ProductID, mov.LocationID, mov.Kind, mov.Delta, mov.PreviousQuantity,
		mov.NewQuantity, mov.ReferenceType, nullIfEmpty(mov.ReferenceID), nullIfEmpty(mov.Reason),
		nullDecimal(mov.UnitCost), nullDecimal(mov.TotalCost), mov.Actor, mov.CreatedAt)
	if err != nil {
		return domain.StockRecord{}, domain.StockMovement{}, err
	}
	return rec, mov, nil
}

func (s *Store) ApplyStockMovement(ctx context.Context, params store.MovementParams) (*domain.StockRecord, *domain.StockMovement, error) {
	var rec domain.StockRecord
	var mov domain.StockMovement
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, mov, err = applyMovementTx(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &rec, &mov, nil
}

func (s *Store) UpdateStockSettings(ctx context.Context, tenantID string, productID string, locationID string, patch domain.StockRecordPatch) (*domain.StockRecord, error) {
	if patch.IsZero() {
		return nil, fmt.Errorf("%w: empty patch", store.ErrValidation)
	}
	var out domain.StockRecord
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		rec, err := scanStock(tx.QueryRowContext(ctx, `
			SELECT `+stockColumns+`
			FROM stock_records
			WHERE tenant_id = $1 AND product_id = $2 AND location_id = $3
			FOR UPDATE
		`, tenantID, productID, locationID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("stock %s@%s: %w", productID, locationID, store.ErrNotFound)
			}
			return err
		}
		if patch.Apply(&rec) {
			rec.Recalculate(time.Now().UTC())
			_, err = tx.ExecContext(ctx, `
				UPDATE stock_records
				SET min_quantity = $4, max_quantity = $5, reorder_point = $6, status = $7, updated_at = $8
				WHERE tenant_id = $1 AND product_id = $2 AND location_id = $3
			`, tenantID, productID, locationID, rec.MinQuantity, rec.MaxQuantity, rec.ReorderPoint, rec.Status, rec.UpdatedAt)
			if err != nil {
				return err
			}
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListStockMovements(ctx context.Context, tenantID string, filter store.MovementFilter) ([]domain.StockMovement, error) {
	query := `
		SELECT id, tenant_id, product_id, location_id, kind, delta, previous_quantity, new_quantity,
			reference_type, COALESCE(reference_id, ''), COALESCE(reason, ''), unit_cost, total_cost, actor, created_at
		FROM stock_movements
		WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		query += fmt.Sprintf(" AND location_id = $%d", len(args))
	}
	if filter.ReferenceType != "" {
		args = append(args, filter.ReferenceType)
		query += fmt.Sprintf(" AND reference_type = $%d", len(args))
	}
	if filter.ReferenceID != "" {
		args = append(args, filter.ReferenceID)
		query += fmt.Sprintf(" AND reference_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []domain.StockMovement
	for rows.Next() {
		var mov domain.StockMovement
		var unitCost, totalCost decimal.NullDecimal
		if err := rows.Scan(&mov.ID, &mov.TenantID, &mov.ProductID, &mov.LocationID, &mov.Kind, &mov.Delta,
			&mov.PreviousQuantity, &mov.NewQuantity, &mov.ReferenceType, &mov.ReferenceID, &mov.Reason,
			&unitCost, &totalCost, &mov.Actor, &mov.CreatedAt); err != nil {
			return nil, err
		}
		if unitCost.Valid {
			mov.UnitCost = &unitCost.Decimal
		}
		if totalCost.Valid {
			mov.TotalCost = &totalCost.Decimal
		}
		movements = append(movements, mov)
	}
	return movements, rows.Err()
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
