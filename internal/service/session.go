package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/itqanpos/backend/internal/domain"
	"github.com/itqanpos/backend/internal/store"
)

// OpenSession starts a cash session on a register. One open session per
// (branch, register) at a time.
func (s *Service) OpenSession(ctx context.Context, tenantID string, req domain.OpenSessionRequest) (*domain.Session, error) {
	if strings.TrimSpace(req.BranchID) == "" || strings.TrimSpace(req.RegisterID) == "" {
		return nil, fmt.Errorf("%w: branch and register required", store.ErrValidation)
	}
	if req.OpeningCash.IsNegative() {
		return nil, fmt.Errorf("opening cash negative: %w", store.ErrInvalidAmount)
	}

	session := domain.Session{
		ID:           s.ids("sess"),
		TenantID:     tenantID,
		BranchID:     req.BranchID,
		RegisterID:   req.RegisterID,
		CashierID:    s.actorName(ctx),
		OpeningCash:  domain.Money(req.OpeningCash),
		Status:       domain.SessionOpen,
		OpeningNotes: strings.TrimSpace(req.Notes),
		OpenedAt:     s.now(),
	}

	created, err := s.repo.CreateSession(ctx, session)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "session_open", "session", created.ID,
		fmt.Sprintf("branch=%s,register=%s,opening=%s", created.BranchID, created.RegisterID, created.OpeningCash.String()))
	return created, nil
}

// CloseSession settles a session: the store totals its sales, derives the
// expected cash (opening plus cash receipts minus cash refunds), and records
// the counted difference.
func (s *Service) CloseSession(ctx context.Context, tenantID string, sessionID string, req domain.CloseSessionRequest) (*domain.Session, error) {
	if req.ClosingCash.IsNegative() {
		return nil, fmt.Errorf("closing cash negative: %w", store.ErrInvalidAmount)
	}
	closed, err := s.repo.CloseSession(ctx, tenantID, sessionID, domain.Money(req.ClosingCash), strings.TrimSpace(req.Notes), s.now())
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tenantID, "session_close", "session", closed.ID,
		fmt.Sprintf("expected=%s,counted=%s,diff=%s", closed.ExpectedCash.String(), closed.ClosingCash.String(), closed.CashDiff.String()))
	return closed, nil
}

func (s *Service) GetActiveSession(ctx context.Context, tenantID string, branchID string, registerID string) (*domain.Session, error) {
	return s.repo.GetActiveSession(ctx, tenantID, branchID, registerID)
}

func (s *Service) GetSession(ctx context.Context, tenantID string, sessionID string) (*domain.Session, error) {
	return s.repo.GetSession(ctx, tenantID, sessionID)
}
