package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("product not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const productColumns = `id, tenant_id, name, price_cents, credits_amount, active, created_at, updated_at`

// GetActive loads a product checkout can sell. Inactive products are
// invisible, not an error class of their own.
func (r *Repository) GetActive(ctx context.Context, tenantID, productID uuid.UUID) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, `
		SELECT `+productColumns+` FROM products
		WHERE id = $1 AND tenant_id = $2 AND active = true
	`, productID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActive returns a tenant's storefront catalog.
func (r *Repository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]Product, error) {
	products := []Product{}
	err := r.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+` FROM products
		WHERE tenant_id = $1 AND active = true
		ORDER BY price_cents ASC
	`, tenantID)
	return products, err
}

// Create adds a product to a tenant's catalog.
func (r *Repository) Create(ctx context.Context, p *Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, name, price_cents, credits_amount, active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.TenantID, p.Name, p.PriceCents, p.CreditsAmount, p.Active)
	return err
}
