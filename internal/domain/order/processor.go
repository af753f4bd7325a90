package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/pkg/queue"
)

// ConfirmProcessor applies queued payment confirmations. Fulfill is
// idempotent, so the processor needs no guard of its own.
type ConfirmProcessor struct {
	fulfillment *Fulfillment
}

func NewConfirmProcessor(fulfillment *Fulfillment) *ConfirmProcessor {
	return &ConfirmProcessor{fulfillment: fulfillment}
}

// ProcessTask handles one payment:confirm delivery.
func (p *ConfirmProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.PaymentConfirmPayload
	if err := queue.UnmarshalPayload(t.Payload(), &payload); err != nil {
		return err
	}

	err := p.fulfillment.Fulfill(ctx, payload.TenantID, payload.OrderID, payload.PaymentID, payload.CreditsAmount)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The gateway confirmed a payment for an order we never created.
			// Retrying cannot make the order appear.
			return fmt.Errorf("payment confirm: unknown order %s: %w", payload.OrderID, asynq.SkipRetry)
		}
		return fmt.Errorf("payment confirm: %w", err)
	}

	log.Info().
		Str("order_id", payload.OrderID.String()).
		Str("payment_id", payload.PaymentID).
		Msg("Payment confirmation applied")
	return nil
}
