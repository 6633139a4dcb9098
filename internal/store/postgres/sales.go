package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
	"github.com/itqanpos/backend/internal/xid"
)

// CreateSale persists a committed sale in one transaction: every line debit
// with its movement, the invoice sequence increment, the sale row with its
// lines and embedded payment, and the customer aggregate delta. A failing
// line rolls back the whole commit, so successful invoices stay gap-free.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, opts store.SaleCommitOptions) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale has no lines", store.ErrValidation)
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}

	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		for _, line := range sale.Lines {
			_, _, err := applyMovementTx(ctx, tx, store.MovementParams{
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
				return err
			}
		}

		seq, err := nextSequenceTx(ctx, tx, sale.TenantID, "invoice")
		if err != nil {
			return err
		}
		sale.InvoiceNumber = domain.FormatInvoiceNumber(opts.InvoicePrefix, opts.InvoiceStart+seq-1)

		if err := insertSaleTx(ctx, tx, &sale); err != nil {
			return err
		}

		if sale.CustomerID != "" {
			at := sale.CreatedAt
			if err := applyCustomerDeltaTx(ctx, tx, sale.TenantID, sale.CustomerID, domain.CustomerDelta{
				Orders:      1,
				Spent:       sale.Total,
				LastOrderAt: &at,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := sale
	return &out, nil
}

func insertSaleTx(ctx context.Context, tx *sql.Tx, sale *domain.Sale) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, tenant_id, branch_id, invoice_number, customer_id, session_id, total_items,
			subtotal, discount_percent, discount_amount, discount_total, tax_rate, tax_amount, shipping_cost, total,
			payment_method, paid_amount, remaining_amount, payment_status, status,
			is_refunded, refund_amount, refund_reason, refunded_at, notes, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
	`, sale.ID, sale.TenantID, sale.BranchID, sale.InvoiceNumber, nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.SessionID),
		sale.TotalItems, sale.Subtotal, sale.DiscountPercent, sale.DiscountAmount, sale.DiscountTotal,
		sale.TaxRate, sale.TaxAmount, sale.ShippingCost, sale.Total,
		sale.PaymentMethod, sale.PaidAmount, sale.RemainingAmount, sale.PaymentStatus, sale.Status,
		sale.IsRefunded, sale.RefundAmount, nullIfEmpty(sale.RefundReason), nullTime(sale.RefundedAt),
		nullIfEmpty(sale.Notes), sale.CreatedBy, sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sale %s: %w", sale.ID, store.ErrDuplicate)
		}
		return err
	}

	for i, line := range sale.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, tenant_id, position, product_id, product_name, sku, quantity,
				unit_price, discount_percent, discount_amount, tax_amount, total, returned_qty)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`, sale.ID, sale.TenantID, i, line.ProductID, line.ProductName, line.SKU, line.Quantity,
			line.UnitPrice, line.DiscountPercent, line.DiscountAmount, line.TaxAmount, line.Total, line.ReturnedQty)
		if err != nil {
			return err
		}
	}

	for _, payment := range sale.Payments {
		if err := insertPaymentTx(ctx, tx, payment); err != nil {
			return err
		}
	}
	return nil
}

func insertPaymentTx(ctx context.Context, tx *sql.Tx, payment domain.Payment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, sale_id, tenant_id, amount, method, reference, notes, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, payment.ID, payment.SaleID, payment.TenantID, payment.Amount, payment.Method,
		nullIfEmpty(payment.Reference), nullIfEmpty(payment.Notes), payment.Actor, payment.CreatedAt)
	return err
}

func applyCustomerDeltaTx(ctx context.Context, tx *sql.Tx, tenantID, customerID string, delta domain.CustomerDelta) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET total_orders = total_orders + $3,
		    total_spent = total_spent + $4,
		    current_balance = current_balance + $5,
		    last_order_at = COALESCE($6, last_order_at),
		    updated_at = now()
		WHERE id = $2 AND tenant_id = $1
	`, tenantID, customerID, delta.Orders, delta.Spent, delta.Balance, nullTime(delta.LastOrderAt))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
	}
	return nil
}

const saleColumns = `id, tenant_id, branch_id, invoice_number, COALESCE(customer_id, ''), COALESCE(session_id, ''),
	total_items, subtotal, discount_percent, discount_amount, discount_total, tax_rate, tax_amount, shipping_cost, total,
	payment_method, paid_amount, remaining_amount, payment_status, status,
	is_refunded, refund_amount, COALESCE(refund_reason, ''), refunded_at, COALESCE(notes, ''), created_by, created_at, updated_at`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	var refundedAt sql.NullTime
	err := row.Scan(&sale.ID, &sale.TenantID, &sale.BranchID, &sale.InvoiceNumber, &sale.CustomerID, &sale.SessionID,
		&sale.TotalItems, &sale.Subtotal, &sale.DiscountPercent, &sale.DiscountAmount, &sale.DiscountTotal,
		&sale.TaxRate, &sale.TaxAmount, &sale.ShippingCost, &sale.Total,
		&sale.PaymentMethod, &sale.PaidAmount, &sale.RemainingAmount, &sale.PaymentStatus, &sale.Status,
		&sale.IsRefunded, &sale.RefundAmount, &sale.RefundReason, &refundedAt, &sale.Notes,
		&sale.CreatedBy, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return domain.Sale{}, err
	}
	if refundedAt.Valid {
		sale.RefundedAt = &refundedAt.Time
	}
	return sale, nil
}

func (s *Store) loadSaleDetails(ctx context.Context, sale *domain.Sale) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, sku, quantity, unit_price, discount_percent, discount_amount, tax_amount, total, returned_qty
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY position
	`, sale.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.SKU, &line.Quantity, &line.UnitPrice,
			&line.DiscountPercent, &line.DiscountAmount, &line.TaxAmount, &line.Total, &line.ReturnedQty); err != nil {
			return err
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payRows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, tenant_id, amount, method, COALESCE(reference, ''), COALESCE(notes, ''), actor, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY created_at, id
	`, sale.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p domain.Payment
		if err := payRows.Scan(&p.ID, &p.SaleID, &p.TenantID, &p.Amount, &p.Method, &p.Reference, &p.Notes, &p.Actor, &p.CreatedAt); err != nil {
			return err
		}
		sale.Payments = append(sale.Payments, p)
	}
	return payRows.Err()
}

func (s *Store) GetSale(ctx context.Context, tenantID string, saleID string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, saleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
		}
		return nil, err
	}
	if sale.TenantID != tenantID {
		return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrCrossTenant)
	}
	if err := s.loadSaleDetails(ctx, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSaleByInvoice(ctx context.Context, tenantID string, invoiceNumber string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+` FROM sales WHERE tenant_id = $1 AND invoice_number = $2
	`, tenantID, invoiceNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", invoiceNumber, store.ErrNotFound)
		}
		return nil, err
	}
	if err := s.loadSaleDetails(ctx, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, tenantID string, filter store.SaleFilter) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.BranchID != "" {
		args = append(args, filter.BranchID)
		query += fmt.Sprintf(" AND branch_id = $%d", len(args))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		query += fmt.Sprintf(" AND session_id = $%d", len(args))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		query += fmt.Sprintf(" AND payment_status = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
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

	var sales []domain.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range sales {
		if err := s.loadSaleDetails(ctx, &sales[i]); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

func (s *Store) AddSalePayment(ctx context.Context, tenantID string, saleID string, payment domain.Payment) (*domain.Sale, error) {
	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive: %w", store.ErrInvalidAmount)
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	payment.SaleID = saleID
	payment.TenantID = tenantID

	var out domain.Sale
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		sale, err := scanSale(tx.QueryRowContext(ctx, `
			SELECT `+saleColumns+` FROM sales WHERE id = $1 AND tenant_id = $2 FOR UPDATE
		`, saleID, tenantID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
			}
			return err
		}

		if err := insertPaymentTx(ctx, tx, payment); err != nil {
			return err
		}

		sale.PaidAmount = domain.Money(sale.PaidAmount.Add(payment.Amount))
		sale.RemainingAmount = domain.RemainingAmount(sale.Total, sale.PaidAmount)
		sale.PaymentStatus = domain.ResolvePaymentStatus(sale.PaidAmount, sale.Total)
		sale.UpdatedAt = payment.CreatedAt
		_, err = tx.ExecContext(ctx, `
			UPDATE sales
			SET paid_amount = $2, remaining_amount = $3, payment_status = $4, updated_at = $5
			WHERE id = $1
		`, sale.ID, sale.PaidAmount, sale.RemainingAmount, sale.PaymentStatus, sale.UpdatedAt)
		if err != nil {
			return err
		}
		out = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.loadSaleDetails(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyRefund flips the refunded flag exactly once: the row lock plus the
// is_refunded check make a second concurrent refund fail with
// ErrAlreadyRefunded, and its stock credits never apply.
func (s *Store) ApplyRefund(ctx context.Context, tenantID string, saleID string, refund domain.Refund, credits []store.MovementParams) (*domain.Sale, *domain.Refund, error) {
	if refund.ID == "" {
		refund.ID = xid.New("rfnd")
	}
	refund.TenantID = tenantID
	refund.SaleID = saleID

	var out domain.Sale
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		sale, err := scanSale(tx.QueryRowContext(ctx, `
			SELECT `+saleColumns+` FROM sales WHERE id = $1 AND tenant_id = $2 FOR UPDATE
		`, saleID, tenantID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
			}
			return err
		}
		if sale.IsRefunded {
			return fmt.Errorf("sale %s: %w", saleID, store.ErrAlreadyRefunded)
		}
		refund.InvoiceNumber = sale.InvoiceNumber

		for _, params := range credits {
			if _, _, err := applyMovementTx(ctx, tx, params); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO refunds (id, tenant_id, sale_id, invoice_number, amount, reason, actor, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, refund.ID, refund.TenantID, refund.SaleID, refund.InvoiceNumber, refund.Amount, refund.Reason,
			refund.Actor, refund.CreatedAt)
		if err != nil {
			return err
		}
		for _, item := range refund.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO refund_items (refund_id, tenant_id, product_id, quantity)
				VALUES ($1,$2,$3,$4)
			`, refund.ID, refund.TenantID, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE sale_lines
				SET returned_qty = returned_qty + $3
				WHERE sale_id = $1 AND product_id = $2
			`, saleID, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
		}

		at := refund.CreatedAt
		sale.IsRefunded = true
		sale.Status = domain.SaleStatusRefunded
		sale.RefundAmount = refund.Amount
		sale.RefundReason = refund.Reason
		sale.RefundedAt = &at
		sale.UpdatedAt = at
		_, err = tx.ExecContext(ctx, `
			UPDATE sales
			SET is_refunded = TRUE, status = $2, refund_amount = $3, refund_reason = $4, refunded_at = $5, updated_at = $5
			WHERE id = $1
		`, sale.ID, sale.Status, sale.RefundAmount, sale.RefundReason, at)
		if err != nil {
			return err
		}

		if sale.CustomerID != "" {
			if err := applyCustomerDeltaTx(ctx, tx, tenantID, sale.CustomerID, domain.CustomerDelta{
				Spent: refund.Amount.Neg(),
			}); err != nil {
				return err
			}
		}
		out = sale
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.loadSaleDetails(ctx, &out); err != nil {
		return nil, nil, err
	}
	refundOut := refund
	return &out, &refundOut, nil
}

// --- purchase receipts ---

func (s *Store) CreatePurchaseReceipt(ctx context.Context, receipt domain.PurchaseReceipt) (*domain.PurchaseReceipt, error) {
	if receipt.ID == "" {
		receipt.ID = xid.New("rcpt")
	}
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_receipts (id, tenant_id, number, location_id, supplier, total_cost, actor, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, receipt.ID, receipt.TenantID, receipt.Number, receipt.LocationID, nullIfEmpty(receipt.Supplier),
			receipt.TotalCost, receipt.Actor, receipt.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("receipt %s: %w", receipt.Number, store.ErrDuplicate)
			}
			return err
		}
		for i, line := range receipt.Lines {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO purchase_receipt_lines (receipt_id, tenant_id, position, product_id, quantity, unit_cost, total_cost)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
			`, receipt.ID, receipt.TenantID, i, line.ProductID, line.Quantity, line.UnitCost, line.TotalCost)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := receipt
	return &out, nil
}

func (s *Store) GetPurchaseReceipt(ctx context.Context, tenantID string, receiptID string) (*domain.PurchaseReceipt, error) {
	var receipt domain.PurchaseReceipt
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, number, location_id, COALESCE(supplier, ''), total_cost, actor, created_at
		FROM purchase_receipts
		WHERE id = $1 AND tenant_id = $2
	`, receiptID, tenantID).Scan(&receipt.ID, &receipt.TenantID, &receipt.Number, &receipt.LocationID,
		&receipt.Supplier, &receipt.TotalCost, &receipt.Actor, &receipt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("receipt %s: %w", receiptID, store.ErrNotFound)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_cost, total_cost
		FROM purchase_receipt_lines
		WHERE receipt_id = $1
		ORDER BY position
	`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line domain.PurchaseReceiptLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitCost, &line.TotalCost); err != nil {
			return nil, err
		}
		receipt.Lines = append(receipt.Lines, line)
	}
	return &receipt, rows.Err()
}

// --- sessions ---

const sessionColumns = `id, tenant_id, branch_id, register_id, cashier_id, opening_cash, closing_cash, expected_cash,
	cash_diff, total_sales, total_refunds, sale_count, status, COALESCE(opening_notes, ''), COALESCE(closing_notes, ''),
	opened_at, closed_at`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var sess domain.Session
	var closingCash, expectedCash, cashDiff decimal.NullDecimal
	var closedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.TenantID, &sess.BranchID, &sess.RegisterID, &sess.CashierID, &sess.OpeningCash,
		&closingCash, &expectedCash, &cashDiff, &sess.TotalSales, &sess.TotalRefunds, &sess.SaleCount,
		&sess.Status, &sess.OpeningNotes, &sess.ClosingNotes, &sess.OpenedAt, &closedAt)
	if err != nil {
		return domain.Session{}, err
	}
	if closingCash.Valid {
		sess.ClosingCash = &closingCash.Decimal
	}
	if expectedCash.Valid {
		sess.ExpectedCash = &expectedCash.Decimal
	}
	if cashDiff.Valid {
		sess.CashDiff = &cashDiff.Decimal
	}
	if closedAt.Valid {
		sess.ClosedAt = &closedAt.Time
	}
	return sess, nil
}

func (s *Store) CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	if session.ID == "" {
		session.ID = xid.New("sess")
	}
	session.Status = domain.SessionOpen
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, tenant_id, branch_id, register_id, cashier_id, opening_cash, total_sales,
			total_refunds, sale_count, status, opening_notes, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, session.ID, session.TenantID, session.BranchID, session.RegisterID, session.CashierID, session.OpeningCash,
		session.TotalSales, session.TotalRefunds, session.SaleCount, session.Status,
		nullIfEmpty(session.OpeningNotes), session.OpenedAt)
	if err != nil {
		// The partial unique index on open sessions rejects a second open
		// register.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("register %s at %s: %w", session.RegisterID, session.BranchID, store.ErrSessionOpen)
		}
		return nil, err
	}
	out := session
	return &out, nil
}

func (s *Store) GetSession(ctx context.Context, tenantID string, sessionID string) (*domain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND tenant_id = $2
	`, sessionID, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, store.ErrNotFound)
		}
		return nil, err
	}
	return &sess, nil
}

func (s *Store) GetActiveSession(ctx context.Context, tenantID string, branchID string, registerID string) (*domain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE tenant_id = $1 AND branch_id = $2 AND register_id = $3 AND status = 'open'
	`, tenantID, branchID, registerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("register %s at %s: %w", registerID, branchID, store.ErrNoOpenSession)
		}
		return nil, err
	}
	return &sess, nil
}

// CloseSession aggregates the session's sales inside the closing transaction
// so the expected-cash figure and the recorded totals come from one snapshot.
func (s *Store) CloseSession(ctx context.Context, tenantID string, sessionID string, closingCash decimal.Decimal, notes string, closedAt time.Time) (*domain.Session, error) {
	var out domain.Session
	err := s.withSerializableTx(ctx, func(tx *sql.Tx) error {
		sess, err := scanSession(tx.QueryRowContext(ctx, `
			SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND tenant_id = $2 FOR UPDATE
		`, sessionID, tenantID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("session %s: %w", sessionID, store.ErrNotFound)
			}
			return err
		}
		if sess.Status != domain.SessionOpen {
			return fmt.Errorf("session %s: %w", sessionID, store.ErrNoOpenSession)
		}

		var totalSales, totalRefunds, cashIn, cashRefunds decimal.Decimal
		var saleCount int64
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(total), 0),
			       COALESCE(SUM(refund_amount) FILTER (WHERE is_refunded), 0),
			       COALESCE(SUM(paid_amount) FILTER (WHERE payment_method = 'cash'), 0),
			       COALESCE(SUM(refund_amount) FILTER (WHERE is_refunded AND payment_method = 'cash'), 0),
			       COUNT(*)
			FROM sales
			WHERE tenant_id = $1 AND session_id = $2
		`, tenantID, sessionID).Scan(&totalSales, &totalRefunds, &cashIn, &cashRefunds, &saleCount)
		if err != nil {
			return err
		}

		expected := domain.Money(sess.OpeningCash.Add(cashIn).Sub(cashRefunds))
		diff := domain.Money(closingCash.Sub(expected))
		closing := domain.Money(closingCash)
		sess.TotalSales = domain.Money(totalSales)
		sess.TotalRefunds = domain.Money(totalRefunds)
		sess.SaleCount = saleCount
		sess.ClosingCash = &closing
		sess.ExpectedCash = &expected
		sess.CashDiff = &diff
		sess.ClosingNotes = notes
		sess.Status = domain.SessionClosed
		sess.ClosedAt = &closedAt

		_, err = tx.ExecContext(ctx, `
			UPDATE sessions
			SET closing_cash = $2, expected_cash = $3, cash_diff = $4, total_sales = $5, total_refunds = $6,
			    sale_count = $7, status = $8, closing_notes = $9, closed_at = $10
			WHERE id = $1
		`, sess.ID, closing, expected, diff, sess.TotalSales, sess.TotalRefunds, sess.SaleCount,
			sess.Status, nullIfEmpty(notes), closedAt)
		if err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- audit / users ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, tenant_id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.TenantID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID,
		nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, tenantID string, limit int) ([]domain.AuditLog, error) {
	query := `
		SELECT id, tenant_id, actor, action, entity_type, entity_id, COALESCE(detail, ''), created_at
		FROM audit_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id`
	args := []any{tenantID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.Actor, &entry.Action, &entry.EntityType,
			&entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, username, password_hash, role, branch_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, user.ID, user.TenantID, user.Username, user.Password, user.Role, nullIfEmpty(user.BranchID),
		user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.Username, store.ErrDuplicate)
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, tenantID string, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, username, password_hash, role, COALESCE(branch_id, ''), active, created_at
		FROM users
		WHERE tenant_id = $1 AND username = $2
	`, tenantID, username).Scan(&user.ID, &user.TenantID, &user.Username, &user.Password, &user.Role,
		&user.BranchID, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}
