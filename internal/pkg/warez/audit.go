package warez

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// AuditEntry is one outbound provider exchange. StatusCode is zero when the
// request never produced a response (transport error or timeout).
type AuditEntry struct {
	TenantID       uuid.UUID
	Endpoint       string
	RequestPayload map[string]interface{}
	ResponseData   json.RawMessage
	StatusCode     int
}

// AuditSink records provider exchanges. Implementations are fire-and-forget:
// a sink failure must never change the outcome of the provider call.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// NopSink discards audit entries. Used in tests.
type NopSink struct{}

func (NopSink) Record(context.Context, AuditEntry) {}
