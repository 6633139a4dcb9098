// Package service implements the sale commit and inventory ledger core:
// committing sales, reconciling payments, processing refunds, and moving
// stock, always scoped to one tenant per call.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/ledger"
	"github.com/itqanpos/backend/internal/notify"
	"github.com/itqanpos/backend/internal/sequence"
	"github.com/itqanpos/backend/internal/store"
	"github.com/itqanpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	ledger    *ledger.Ledger
	sequences *sequence.Allocator
	events    notify.Publisher
	log       *logrus.Logger
	now       func() time.Time
	ids       func(prefix string) string
}

// Options carries the injected collaborators. Clock and IDGen default to the
// real implementations; overriding them makes tests deterministic.
type Options struct {
	Events notify.Publisher
	Logger *logrus.Logger
	Clock  func() time.Time
	IDGen  func(prefix string) string
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.IDGen == nil {
		opts.IDGen = xid.New
	}
	if opts.Events == nil {
		opts.Events = notify.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Service{
		repo:      repo,
		ledger:    ledger.New(repo, opts.Clock),
		sequences: sequence.NewAllocator(repo),
		events:    opts.Events,
		log:       opts.Logger,
		now:       opts.Clock,
		ids:       opts.IDGen,
	}
}

func (s *Service) actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		if actor.Name != "" {
			return actor.Name
		}
		return actor.ID
	}
	return "system"
}

// logAudit records an audit entry; failures are logged and swallowed so a
// broken audit sink never fails the business operation.
func (s *Service) logAudit(ctx context.Context, tenantID, action, entityType, entityID, detail string) {
	entry := domain.AuditLog{
		ID:         s.ids("audit"),
		TenantID:   tenantID,
		Actor:      s.actorName(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"action":    action,
			"entity_id": entityID,
		}).Warn("audit log write failed")
	}
}

// publish emits a fire-and-forget event; a broken publisher never fails the
// business operation.
func (s *Service) publish(ctx context.Context, kind, tenantID, entityID string, payload any) {
	event := notify.Event{
		Kind:      kind,
		TenantID:  tenantID,
		EntityID:  entityID,
		Payload:   payload,
		Timestamp: s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"kind":      kind,
		}).Warn("event publish failed")
	}
}

// notifyStockLevel emits a low/out-of-stock event when a write left the
// record below its threshold.
func (s *Service) notifyStockLevel(ctx context.Context, rec *domain.StockRecord) {
	switch rec.Status {
	case domain.StockStatusOutOfStock:
		s.publish(ctx, notify.EventStockOut, rec.TenantID, rec.ProductID, rec)
	case domain.StockStatusLowStock:
		s.publish(ctx, notify.EventStockLow, rec.TenantID, rec.ProductID, rec)
	}
}
