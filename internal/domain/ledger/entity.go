package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	// TypeSpend debits a reseller's balance for a recharge. Its status is
	// the recharge saga's state.
	TypeSpend TransactionType = "SPEND"
	// TypeRefund reverses a SPEND after a failed recharge. At most one
	// REFUND exists per SPEND.
	TypeRefund TransactionType = "REFUND"
	// TypeCreditIn credits a balance after a confirmed payment.
	TypeCreditIn TransactionType = "CREDIT_IN"
	// TypeCreditOut records credits leaving the platform ledger.
	TypeCreditOut TransactionType = "CREDIT_OUT"
)

// TransactionStatus is the lifecycle of a ledger entry. The only allowed
// transition is PENDING to COMPLETED or FAILED; terminal rows are immutable.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

// Transaction is one immutable audit record of a balance change.
type Transaction struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	TenantID    uuid.UUID         `db:"tenant_id" json:"tenant_id"`
	UserID      uuid.UUID         `db:"user_id" json:"user_id"`
	OrderID     uuid.NullUUID     `db:"order_id" json:"order_id,omitempty"`
	Type        TransactionType   `db:"type" json:"type"`
	Amount      int64             `db:"amount" json:"amount"`
	Status      TransactionStatus `db:"status" json:"status"`
	Description sql.NullString    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the transaction reached a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
