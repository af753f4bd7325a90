package order

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/domain/ledger"
)

// Fulfillment confirms paid orders. Webhooks and the payment confirmation
// queue both land here; Fulfill must therefore stay idempotent under any
// interleaving of duplicate deliveries.
type Fulfillment struct {
	db     *sqlx.DB
	orders *Repository
	ledger *ledger.Repository
}

func NewFulfillment(db *sqlx.DB, orders *Repository, ledgerRepo *ledger.Repository) *Fulfillment {
	return &Fulfillment{db: db, orders: orders, ledger: ledgerRepo}
}

// Fulfill marks the order PAID and credits the buyer in one transaction. An
// order that is already PAID is left untouched and reported as success, so a
// redelivered webhook can never credit twice.
func (f *Fulfillment) Fulfill(ctx context.Context, tenantID, orderID uuid.UUID, paymentID string, creditsAmount int64) error {
	tx, err := f.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	o, err := f.orders.GetForUpdateTx(ctx, tx, tenantID, orderID)
	if err != nil {
		return err
	}

	if o.Status == StatusPaid {
		log.Debug().
			Str("order_id", orderID.String()).
			Msg("Skipping fulfillment, order already paid")
		return nil
	}

	// The order row is the authority on the credit amount. A payload that
	// disagrees gets logged and overridden, never trusted.
	if creditsAmount != 0 && creditsAmount != o.CreditsAmount {
		log.Warn().
			Str("order_id", orderID.String()).
			Int64("payload_credits", creditsAmount).
			Int64("order_credits", o.CreditsAmount).
			Msg("Fulfillment payload credits mismatch, using order amount")
	}

	transitioned, err := f.orders.MarkPaidTx(ctx, tx, orderID, paymentID)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	if err := f.ledger.CreditInTx(ctx, tx, tenantID, o.UserID, orderID, o.CreditsAmount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().
		Str("order_id", orderID.String()).
		Str("tenant_id", tenantID.String()).
		Str("payment_id", paymentID).
		Int64("credits", o.CreditsAmount).
		Msg("Order fulfilled")
	return nil
}
