package recharge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/domain/ledger"
	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/pkg/queue"
	"github.com/credithub/credithub-api/internal/pkg/vault"
	"github.com/credithub/credithub-api/internal/pkg/warez"
)

// Ledger is the slice of the ledger service the execution worker needs.
type Ledger interface {
	GetTransaction(ctx context.Context, tenantID, transactionID uuid.UUID) (*ledger.Transaction, error)
	Commit(ctx context.Context, transactionID uuid.UUID) error
	Compensate(ctx context.Context, transactionID uuid.UUID, reason string) error
}

// TenantSource loads tenants with their encrypted credential blobs.
type TenantSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// Provider executes the external recharge.
type Provider interface {
	Recharge(ctx context.Context, in warez.RechargeInput) error
}

// Processor executes recharge jobs. Delivery is at-least-once; the
// transaction status guard in ProcessTask is what makes redelivery safe, so
// the provider is never called for a transaction that already reached a
// terminal state.
type Processor struct {
	ledger   Ledger
	tenants  TenantSource
	vault    *vault.Vault
	provider Provider
}

func NewProcessor(ledgerSvc Ledger, tenants TenantSource, v *vault.Vault, provider Provider) *Processor {
	return &Processor{ledger: ledgerSvc, tenants: tenants, vault: v, provider: provider}
}

// ProcessTask handles one recharge:execute delivery.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.RechargeExecutePayload
	if err := queue.UnmarshalPayload(t.Payload(), &payload); err != nil {
		return err
	}

	txn, err := p.ledger.GetTransaction(ctx, payload.TenantID, payload.TransactionID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			// A job for a transaction that was never reserved is garbage,
			// not something a retry can fix.
			return fmt.Errorf("recharge: unknown transaction %s: %w", payload.TransactionID, asynq.SkipRetry)
		}
		return fmt.Errorf("recharge: load transaction: %w", err)
	}

	if txn.Status != ledger.StatusPending {
		log.Debug().
			Str("transaction_id", txn.ID.String()).
			Str("status", string(txn.Status)).
			Msg("Skipping redelivered recharge job, transaction already terminal")
		return nil
	}

	ten, err := p.tenants.GetByID(ctx, payload.TenantID)
	if err != nil {
		return fmt.Errorf("recharge: load tenant: %w", err)
	}
	if !ten.HasWarezCredentials() {
		return p.fail(ctx, payload.TransactionID, errors.New("warez credentials not configured"))
	}

	username, err := p.vault.Decrypt(ten.WarezUsername.String)
	if err != nil {
		return p.fail(ctx, payload.TransactionID, fmt.Errorf("decrypt warez username: %w", err))
	}
	password, err := p.vault.Decrypt(ten.WarezPassword.String)
	if err != nil {
		return p.fail(ctx, payload.TransactionID, fmt.Errorf("decrypt warez password: %w", err))
	}

	err = p.provider.Recharge(ctx, warez.RechargeInput{
		Credentials: warez.Credentials{
			TenantID: payload.TenantID,
			Username: username,
			Password: password,
		},
		TargetUser: payload.TargetUser,
		Amount:     payload.Amount,
	})
	if err != nil {
		return p.fail(ctx, payload.TransactionID, err)
	}

	if err := p.ledger.Commit(ctx, payload.TransactionID); err != nil {
		return fmt.Errorf("recharge: commit: %w", err)
	}

	log.Info().
		Str("transaction_id", payload.TransactionID.String()).
		Str("tenant_id", payload.TenantID.String()).
		Str("target_user", payload.TargetUser).
		Int64("amount", payload.Amount).
		Msg("Recharge completed")
	return nil
}

// fail compensates the reservation and re-raises the cause. The retried job
// finds the transaction FAILED and stops at the guard, so retries never
// refund twice or re-call the provider.
func (p *Processor) fail(ctx context.Context, transactionID uuid.UUID, cause error) error {
	log.Error().
		Err(cause).
		Str("transaction_id", transactionID.String()).
		Msg("Recharge execution failed, compensating")

	if err := p.ledger.Compensate(ctx, transactionID, cause.Error()); err != nil {
		// The reservation is still held. Returning the compensation error
		// keeps the job retrying until the refund lands or retries exhaust.
		return fmt.Errorf("recharge: compensate: %w", err)
	}
	return fmt.Errorf("recharge: execution failed: %w", cause)
}
