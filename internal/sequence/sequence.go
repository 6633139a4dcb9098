// Package sequence issues per-tenant document numbers (invoices, purchase
// receipts, customer codes) from atomic store-backed counters. Counters never
// live in process memory; every increment is one atomic store operation, so
// concurrent writers can neither collide nor lose an increment.
package sequence

import (
	"context"
	"fmt"

	"github.com/itqanpos/backend/internal/domain"
)

// Counter is the single store primitive the allocator needs.
type Counter interface {
	NextSequence(ctx context.Context, tenantID string, name string) (int64, error)
}

const (
	NameInvoice  = "invoice"
	NamePurchase = "purchase"
	NameCustomer = "customer"
	NameTransfer = "transfer"
)

type Allocator struct {
	counter Counter
}

func NewAllocator(counter Counter) *Allocator {
	return &Allocator{counter: counter}
}

// Next returns the next value of the named tenant counter, starting at 1.
func (a *Allocator) Next(ctx context.Context, tenantID string, name string) (int64, error) {
	n, err := a.counter.NextSequence(ctx, tenantID, name)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence for tenant %s: %w", name, tenantID, err)
	}
	return n, nil
}

// NextNumber allocates and formats in one step, offsetting by the tenant's
// configured start value: the first number issued is {prefix}-{start}.
func (a *Allocator) NextNumber(ctx context.Context, tenantID string, name string, prefix string, start int64) (string, error) {
	n, err := a.Next(ctx, tenantID, name)
	if err != nil {
		return "", err
	}
	if start <= 0 {
		start = 1
	}
	return Format(prefix, start+n-1), nil
}

func Format(prefix string, n int64) string {
	return domain.FormatInvoiceNumber(prefix, n)
}
