package order

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the order lifecycle. PAID is terminal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
)

// Order is a credit pack purchase awaiting payment confirmation.
type Order struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	TenantID      uuid.UUID      `db:"tenant_id" json:"tenant_id"`
	UserID        uuid.UUID      `db:"user_id" json:"user_id"`
	ProductID     uuid.UUID      `db:"product_id" json:"product_id"`
	Status        Status         `db:"status" json:"status"`
	AmountCents   int64          `db:"amount_cents" json:"amount_cents"`
	CreditsAmount int64          `db:"credits_amount" json:"credits_amount"`
	PaymentID     sql.NullString `db:"payment_id" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
