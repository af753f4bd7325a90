package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const orderColumns = `id, tenant_id, user_id, product_id, status, amount_cents, credits_amount, payment_id, created_at, updated_at`

// Create inserts a PENDING order.
func (r *Repository) Create(ctx context.Context, o *Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, tenant_id, user_id, product_id, status, amount_cents, credits_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.TenantID, o.UserID, o.ProductID, o.Status, o.AmountCents, o.CreditsAmount)
	return err
}

func (r *Repository) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1 AND tenant_id = $2
	`, orderID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdateTx locks the order row for the duration of the caller's
// transaction. Fulfillment serializes on this lock.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, tenantID, orderID uuid.UUID) (*Order, error) {
	var o Order
	err := tx.GetContext(ctx, &o, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1 AND tenant_id = $2 FOR UPDATE
	`, orderID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkPaidTx transitions PENDING→PAID inside the caller's transaction. The
// status condition is the idempotency guard against concurrent redelivery.
func (r *Repository) MarkPaidTx(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, paymentID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, payment_id = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, StatusPaid, paymentID, orderID, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
