package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `id, tenant_id, user_id, order_id, type, amount, status, description, created_at, updated_at`

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// Reserve debits the user's balance and records a PENDING SPEND in one
// atomic unit. The FOR UPDATE lock serializes concurrent reservations on the
// same user: two reservations whose sum exceeds the balance can never both
// succeed.
func (r *Repository) Reserve(ctx context.Context, tenantID, userID uuid.UUID, amount int64, description string) (*Transaction, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.GetContext(ctx, &balance, `
		SELECT balance FROM users WHERE id = $1 AND tenant_id = $2 FOR UPDATE
	`, userID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if balance < amount {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = balance - $1, updated_at = now() WHERE id = $2
	`, amount, userID); err != nil {
		return nil, err
	}

	var spend Transaction
	err = tx.GetContext(ctx, &spend, `
		INSERT INTO transactions (id, tenant_id, user_id, type, amount, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+transactionColumns+`
	`, uuid.New(), tenantID, userID, TypeSpend, amount, StatusPending, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &spend, nil
}

// Commit marks a PENDING SPEND as COMPLETED. Funds were already debited at
// reservation, so no balance change happens here. Idempotent: committing an
// already COMPLETED transaction is a successful no-op.
func (r *Repository) Commit(ctx context.Context, transactionID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, updated_at = now()
		WHERE id = $2 AND type = $3 AND status = $4
	`, StatusCompleted, transactionID, TypeSpend, StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing transitioned: either the row is missing or already terminal.
	current, err := r.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if current.Status != StatusCompleted {
		// Commit raced a compensation. The refund already happened; marking
		// COMPLETED now would break the SPEND/REFUND pairing, so absorb it.
		log.Warn().
			Str("transaction_id", transactionID.String()).
			Str("status", string(current.Status)).
			Msg("Commit on non-pending transaction absorbed")
	}
	return nil
}

// Compensate reverses a PENDING SPEND: marks it FAILED, restores the user's
// balance and records a COMPLETED REFUND, all in one atomic unit. Idempotent:
// a transaction that is already terminal is left untouched, which is what
// makes queue redelivery safe against double refunds.
func (r *Repository) Compensate(ctx context.Context, transactionID uuid.UUID, reason string) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var spend Transaction
	err = tx.GetContext(ctx, &spend, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE
	`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTransactionNotFound
	}
	if err != nil {
		return err
	}

	if spend.IsTerminal() || spend.Type != TypeSpend {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $1, updated_at = now() WHERE id = $2
	`, StatusFailed, transactionID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = balance + $1, updated_at = now() WHERE id = $2
	`, spend.Amount, spend.UserID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, tenant_id, user_id, type, amount, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), spend.TenantID, spend.UserID, TypeRefund, spend.Amount, StatusCompleted, reason); err != nil {
		return err
	}

	return tx.Commit()
}

// Get loads a transaction by id.
func (r *Repository) Get(ctx context.Context, transactionID uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := r.db.GetContext(ctx, &t, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1
	`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreditInTx credits a user's balance and records a COMPLETED CREDIT_IN
// inside a caller-owned transaction. Order fulfillment uses it so the credit
// commits or rolls back together with the order's PAID transition.
func (r *Repository) CreditInTx(ctx context.Context, tx *sqlx.Tx, tenantID, userID, orderID uuid.UUID, amount int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = balance + $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3
	`, amount, userID, tenantID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, tenant_id, user_id, order_id, type, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), tenantID, userID, orderID, TypeCreditIn, amount, StatusCompleted)
	return err
}

// GetBalance returns the user's current balance.
func (r *Repository) GetBalance(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `
		SELECT balance FROM users WHERE id = $1 AND tenant_id = $2
	`, userID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return balance, err
}

// ListByUser returns a user's transaction history, newest first.
func (r *Repository) ListByUser(ctx context.Context, tenantID, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	transactions := []Transaction{}
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, tenantID, userID, limit, offset)
	return transactions, err
}
