// Package audit persists the outbound provider call trail. The external_logs
// table is the reconciliation input when a provider outcome is ambiguous.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/pkg/warez"
)

// ExternalLog is one recorded provider exchange.
type ExternalLog struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	TenantID       uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	Endpoint       string          `db:"endpoint" json:"endpoint"`
	RequestPayload json.RawMessage `db:"request_payload" json:"request_payload"`
	ResponseData   json.RawMessage `db:"response_data" json:"response_data"`
	StatusCode     int             `db:"status_code" json:"status_code"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Record implements warez.AuditSink. Failures are logged and swallowed: the
// trail must never change the outcome of the call it records.
func (r *Repository) Record(ctx context.Context, entry warez.AuditEntry) {
	request, err := json.Marshal(entry.RequestPayload)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode external log request payload")
		request = []byte("{}")
	}
	responseData := entry.ResponseData
	if len(responseData) == 0 {
		responseData = json.RawMessage("null")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO external_logs (id, tenant_id, endpoint, request_payload, response_data, status_code)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), entry.TenantID, entry.Endpoint, request, responseData, entry.StatusCode)
	if err != nil {
		log.Warn().
			Err(err).
			Str("tenant_id", entry.TenantID.String()).
			Str("endpoint", entry.Endpoint).
			Msg("Failed to record external log")
	}
}

// ListByTenant returns recent provider exchanges for a tenant, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]ExternalLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs := []ExternalLog{}
	err := r.db.SelectContext(ctx, &logs, `
		SELECT id, tenant_id, endpoint, request_payload, response_data, status_code, created_at
		FROM external_logs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	return logs, err
}
