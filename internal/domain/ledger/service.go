package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Reserve holds amount credits from the user's balance for a recharge in
// flight. Returns the PENDING SPEND transaction to track it with.
func (s *Service) Reserve(ctx context.Context, tenantID, userID uuid.UUID, amount int64, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	spend, err := s.repo.Reserve(ctx, tenantID, userID, amount, description)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", spend.ID.String()).
		Str("tenant_id", tenantID.String()).
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msg("Credits reserved")
	return spend, nil
}

// Commit finalizes a reservation after the provider confirmed the recharge.
func (s *Service) Commit(ctx context.Context, transactionID uuid.UUID) error {
	if err := s.repo.Commit(ctx, transactionID); err != nil {
		return err
	}
	log.Info().Str("transaction_id", transactionID.String()).Msg("Reservation committed")
	return nil
}

// Compensate refunds a reservation after the provider call failed.
func (s *Service) Compensate(ctx context.Context, transactionID uuid.UUID, reason string) error {
	if err := s.repo.Compensate(ctx, transactionID, reason); err != nil {
		return err
	}
	log.Info().
		Str("transaction_id", transactionID.String()).
		Str("reason", reason).
		Msg("Reservation compensated")
	return nil
}

// GetTransaction loads a transaction scoped to the tenant that owns it.
func (s *Service) GetTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) (*Transaction, error) {
	t, err := s.repo.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.TenantID != tenantID {
		return nil, ErrTransactionNotFound
	}
	return t, nil
}

// GetBalance returns the user's current credit balance.
func (s *Service) GetBalance(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, tenantID, userID)
}

// ListTransactions returns the user's ledger history, newest first.
func (s *Service) ListTransactions(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, tenantID, userID, limit, offset)
}
