package order

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/pkg/mercadopago"
	"github.com/credithub/credithub-api/internal/pkg/queue"
	"github.com/credithub/credithub-api/internal/pkg/response"
	"github.com/credithub/credithub-api/internal/pkg/webhook"
)

const maxWebhookBody = 1 << 20

// monnifyEventPaid is the only Monnify event that credits an order.
const monnifyEventPaid = "transaction.successful"

// SecretSource reads a tenant's webhook secret. Secret reads go straight to
// the database so a rotated secret takes effect on the very next delivery.
type SecretSource interface {
	WebhookSecretByID(ctx context.Context, id uuid.UUID) (string, error)
}

// PaymentFetcher looks up a Mercado Pago payment by id.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// Fulfiller credits a paid order.
type Fulfiller interface {
	Fulfill(ctx context.Context, tenantID, orderID uuid.UUID, paymentID string, creditsAmount int64) error
}

// Enqueuer hands payment confirmations to the queue.
type Enqueuer interface {
	EnqueuePaymentConfirmation(ctx context.Context, p queue.PaymentConfirmPayload) error
}

// WebhookHandler receives gateway callbacks. Signatures are verified over the
// exact raw bytes before any payload parsing.
type WebhookHandler struct {
	secrets        SecretSource
	fulfillment    Fulfiller
	payments       PaymentFetcher
	jobs           Enqueuer
	platformSecret string
}

func NewWebhookHandler(secrets SecretSource, fulfillment Fulfiller, payments PaymentFetcher, jobs Enqueuer, platformSecret string) *WebhookHandler {
	return &WebhookHandler{
		secrets:        secrets,
		fulfillment:    fulfillment,
		payments:       payments,
		jobs:           jobs,
		platformSecret: platformSecret,
	}
}

type monnifyEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		PaymentID string            `json:"payment_id"`
		Metadata  map[string]string `json:"metadata"`
	} `json:"data"`
}

// Monnify handles POST /webhooks/monnify/{tenantID}. The tenant id rides in
// the URL the webhook was registered with, so the secret lookup needs no
// payload parsing.
func (h *WebhookHandler) Monnify(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.NotFound(w, "unknown webhook endpoint")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	secret, err := h.secrets.WebhookSecretByID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) || errors.Is(err, tenant.ErrNoCredentials) {
			response.NotFound(w, "unknown webhook endpoint")
			return
		}
		response.InternalError(w)
		return
	}

	if err := webhook.Verify(raw, r.Header.Get("monnify-signature"), secret); err != nil {
		log.Warn().Str("tenant_id", tenantID.String()).Msg("Rejected webhook with invalid signature")
		response.Unauthorized(w, "invalid signature")
		return
	}

	var event monnifyEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		response.BadRequest(w, "invalid payload")
		return
	}
	if event.EventType != monnifyEventPaid {
		response.OK(w, map[string]interface{}{"ignored": true})
		return
	}

	orderID, credits, err := parseFulfillmentMetadata(event.Data.Metadata)
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("Webhook metadata unusable")
		response.BadRequest(w, "invalid metadata")
		return
	}

	if err := h.fulfillment.Fulfill(r.Context(), tenantID, orderID, event.Data.PaymentID, credits); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "order not found")
			return
		}
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("Fulfillment failed")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"received": true})
}

type mercadoPagoEvent struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// MercadoPago handles POST /webhooks/mercadopago. The notification only
// carries a payment id; the authoritative status and metadata come from the
// payment lookup, and crediting is deferred to the payment queue.
func (h *WebhookHandler) MercadoPago(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	if err := webhook.Verify(raw, r.Header.Get("x-signature"), h.platformSecret); err != nil {
		log.Warn().Msg("Rejected webhook with invalid signature")
		response.Unauthorized(w, "invalid signature")
		return
	}

	var event mercadoPagoEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		response.BadRequest(w, "invalid payload")
		return
	}
	if event.Type != "payment" || event.Data.ID == "" {
		response.OK(w, map[string]interface{}{"ignored": true})
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), event.Data.ID)
	if err != nil {
		log.Error().Err(err).Str("payment_id", event.Data.ID).Msg("Payment lookup failed")
		response.InternalError(w)
		return
	}
	if payment.Status != mercadopago.PaymentStatusApproved {
		response.OK(w, map[string]interface{}{"ignored": true})
		return
	}

	tenantID, err := uuid.Parse(payment.Metadata["tenant_id"])
	if err != nil {
		response.BadRequest(w, "invalid metadata")
		return
	}
	orderID, credits, err := parseFulfillmentMetadata(payment.Metadata)
	if err != nil {
		log.Warn().Err(err).Str("payment_id", event.Data.ID).Msg("Payment metadata unusable")
		response.BadRequest(w, "invalid metadata")
		return
	}

	err = h.jobs.EnqueuePaymentConfirmation(r.Context(), queue.PaymentConfirmPayload{
		Version:       queue.PayloadVersion,
		TenantID:      tenantID,
		OrderID:       orderID,
		PaymentID:     event.Data.ID,
		CreditsAmount: credits,
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("Failed to enqueue payment confirmation")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"received": true})
}

func parseFulfillmentMetadata(metadata map[string]string) (orderID uuid.UUID, credits int64, err error) {
	orderID, err = uuid.Parse(metadata["order_id"])
	if err != nil {
		return uuid.Nil, 0, errors.New("missing or invalid order_id")
	}
	if v := metadata["credits_amount"]; v != "" {
		credits, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return uuid.Nil, 0, errors.New("invalid credits_amount")
		}
	}
	return orderID, credits, nil
}
