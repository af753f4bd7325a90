package tenant

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Tenant is a storefront. Provider credentials are stored as opaque vault
// blobs; nothing outside the admin and recharge flows ever decrypts them.
type Tenant struct {
	ID                   uuid.UUID      `db:"id" json:"id"`
	Name                 string         `db:"name" json:"name"`
	Slug                 string         `db:"slug" json:"slug"`
	BrandColor           string         `db:"brand_color" json:"brand_color"`
	WarezUsername        sql.NullString `db:"warez_username" json:"-"`
	WarezPassword        sql.NullString `db:"warez_password" json:"-"`
	MonnifyToken         sql.NullString `db:"monnify_token" json:"-"`
	MonnifyWebhookSecret sql.NullString `db:"monnify_webhook_secret" json:"-"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// HasWarezCredentials reports whether recharge execution can run for this
// tenant.
func (t *Tenant) HasWarezCredentials() bool {
	return t.WarezUsername.Valid && t.WarezUsername.String != "" &&
		t.WarezPassword.Valid && t.WarezPassword.String != ""
}

// HasMonnifyToken reports whether checkout can create Monnify charges.
func (t *Tenant) HasMonnifyToken() bool {
	return t.MonnifyToken.Valid && t.MonnifyToken.String != ""
}
