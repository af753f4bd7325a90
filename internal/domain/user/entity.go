package user

import (
	"time"

	"github.com/google/uuid"
)

// Role matches the user_role enum.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleReseller Role = "RESELLER"
)

// User is an account inside a tenant. Admins configure the tenant; resellers
// hold a credit balance and trigger recharges.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TenantID     uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	Balance      int64     `db:"balance" json:"balance"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
