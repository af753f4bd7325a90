package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Queue names. Each queue has its own worker weight (see cmd/worker).
const (
	QueueRecharge = "recharge"
	QueuePayment  = "payment"
)

// Task type names.
const (
	TypeRechargeExecute = "recharge:execute"
	TypePaymentConfirm  = "payment:confirm"
)

// PayloadVersion is bumped whenever a payload shape changes. Workers reject
// versions they do not understand instead of guessing at untyped fields.
const PayloadVersion = 1

// RechargeExecutePayload is the closed schema of a recharge execution job.
// TransactionID is the logical idempotency key: redelivery of the same
// transaction id must be a no-op once the transaction is terminal.
type RechargeExecutePayload struct {
	Version       int       `json:"v"`
	TenantID      uuid.UUID `json:"tenant_id"`
	UserID        uuid.UUID `json:"user_id"`
	TargetUser    string    `json:"target_user"`
	Amount        int64     `json:"amount"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// PaymentConfirmPayload is the closed schema of a payment confirmation job.
type PaymentConfirmPayload struct {
	Version       int       `json:"v"`
	TenantID      uuid.UUID `json:"tenant_id"`
	OrderID       uuid.UUID `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	CreditsAmount int64     `json:"credits_amount"`
}

// UnmarshalPayload decodes a task payload and enforces the schema version.
// Unknown shapes dead-letter (SkipRetry) rather than burning retries.
func UnmarshalPayload(data []byte, v interface{ version() int }) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("queue: malformed payload: %v: %w", err, asynq.SkipRetry)
	}
	if v.version() != PayloadVersion {
		return fmt.Errorf("queue: unsupported payload version %d: %w", v.version(), asynq.SkipRetry)
	}
	return nil
}

func (p *RechargeExecutePayload) version() int { return p.Version }
func (p *PaymentConfirmPayload) version() int  { return p.Version }
