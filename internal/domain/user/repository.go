package user

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

const userColumns = `id, tenant_id, email, username, password_hash, role, balance, created_at, updated_at`

// CreateTx inserts a user inside a caller-owned transaction. Tenant signup
// creates the tenant and its owner in one unit.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, u *User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, username, password_hash, role, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.TenantID, u.Email, u.Username, u.PasswordHash, u.Role, u.Balance)
	return mapUniqueViolation(err)
}

// Create inserts a standalone user, used for reseller registration.
func (r *Repository) Create(ctx context.Context, u *User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, username, password_hash, role, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.TenantID, u.Email, u.Username, u.PasswordHash, u.Role, u.Balance)
	return mapUniqueViolation(err)
}

// GetByEmail looks a user up within a tenant. Emails are unique per tenant,
// not globally.
func (r *Repository) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2
	`, tenantID, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}
