package product

import (
	"time"

	"github.com/google/uuid"
)

// Product is a credit pack a tenant sells through checkout.
type Product struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TenantID      uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name          string    `db:"name" json:"name"`
	PriceCents    int64     `db:"price_cents" json:"price_cents"`
	CreditsAmount int64     `db:"credits_amount" json:"credits_amount"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
