// Package notify publishes domain events to interested consumers
// (dashboards, alerting). Delivery is fire-and-forget: a failed publish is
// logged by the caller and never rolls back the operation that produced it.
package notify

import (
	"context"
	"time"
)

const (
	EventSaleCreated  = "sale.created"
	EventSaleRefunded = "sale.refunded"
	EventStockLow     = "stock.low"
	EventStockOut     = "stock.out"
)

type Event struct {
	Kind      string    `json:"kind"`
	TenantID  string    `json:"tenant_id"`
	EntityID  string    `json:"entity_id"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}
