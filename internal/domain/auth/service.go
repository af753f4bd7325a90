package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/domain/user"
	"github.com/credithub/credithub-api/internal/pkg/jwt"
	"github.com/credithub/credithub-api/internal/pkg/password"
)

type Service struct {
	db      *sqlx.DB
	tenants *tenant.Repository
	users   *user.Repository
	jwt     *jwt.Service
}

func NewService(db *sqlx.DB, tenants *tenant.Repository, users *user.Repository, jwtService *jwt.Service) *Service {
	return &Service{db: db, tenants: tenants, users: users, jwt: jwtService}
}

// SignupInput creates a tenant and its owner account.
type SignupInput struct {
	TenantName string
	TenantSlug string
	Email      string
	Username   string
	Password   string
}

// SignupTenant creates the tenant and its ADMIN owner in one transaction:
// a tenant without an owner is unreachable, so neither survives alone.
func (s *Service) SignupTenant(ctx context.Context, in SignupInput) (*tenant.Tenant, string, error) {
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback()

	ten, err := s.tenants.CreateTx(ctx, tx, in.TenantName, in.TenantSlug)
	if err != nil {
		return nil, "", err
	}

	owner := &user.User{
		ID:           uuid.New(),
		TenantID:     ten.ID,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
	}
	if err := s.users.CreateTx(ctx, tx, owner); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(); err != nil {
		return nil, "", err
	}

	token, err := s.jwt.GenerateAccessToken(owner.ID, ten.ID, string(owner.Role))
	if err != nil {
		return nil, "", err
	}

	log.Info().
		Str("tenant_id", ten.ID.String()).
		Str("slug", ten.Slug).
		Msg("Tenant created")
	return ten, token, nil
}

// RegisterInput creates a reseller account under an existing tenant.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

func (s *Service) Register(ctx context.Context, tenantID uuid.UUID, in RegisterInput) (*user.User, string, error) {
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}

	u := &user.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         user.RoleReseller,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := s.jwt.GenerateAccessToken(u.ID, tenantID, string(u.Role))
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials within the tenant and issues an access token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, tenantID uuid.UUID, email, plaintext string) (*user.User, string, error) {
	u, err := s.users.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !password.Verify(plaintext, u.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(u.ID, tenantID, string(u.Role))
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Me loads the authenticated user's profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}
