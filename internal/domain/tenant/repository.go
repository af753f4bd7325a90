package tenant

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const tenantColumns = `id, name, slug, brand_color, warez_username, warez_password, monnify_token, monnify_webhook_secret, created_at, updated_at`

// GetBySlug loads a tenant by its public slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	var t Tenant
	err := r.db.GetContext(ctx, &t, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID loads a tenant by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	err := r.db.GetContext(ctx, &t, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// WebhookSecretByID reads the Monnify webhook secret straight from Postgres.
// Signature verification must never see a cached snapshot: a rotation window
// would otherwise accept signatures made with a retired secret.
func (r *Repository) WebhookSecretByID(ctx context.Context, id uuid.UUID) (string, error) {
	var secret sql.NullString
	err := r.db.GetContext(ctx, &secret, `SELECT monnify_webhook_secret FROM tenants WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !secret.Valid || secret.String == "" {
		return "", ErrNoCredentials
	}
	return secret.String, nil
}

// CreateTx inserts a tenant inside a caller-owned transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, name, slug string) (*Tenant, error) {
	var t Tenant
	err := tx.GetContext(ctx, &t, `
		INSERT INTO tenants (id, name, slug)
		VALUES ($1, $2, $3)
		RETURNING `+tenantColumns+`
	`, uuid.New(), name, slug)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return &t, nil
}

// UpdateMonnifyConfig persists a new encrypted Monnify token and webhook
// secret.
func (r *Repository) UpdateMonnifyConfig(ctx context.Context, id uuid.UUID, encryptedToken, webhookSecret string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants
		SET monnify_token = $1, monnify_webhook_secret = $2, updated_at = now()
		WHERE id = $3
	`, encryptedToken, webhookSecret, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateWarezCredentials persists new encrypted warez credentials.
func (r *Repository) UpdateWarezCredentials(ctx context.Context, id uuid.UUID, encryptedUsername, encryptedPassword string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants
		SET warez_username = $1, warez_password = $2, updated_at = now()
		WHERE id = $3
	`, encryptedUsername, encryptedPassword, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
