package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/domain/product"
	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/middleware"
	"github.com/credithub/credithub-api/internal/pkg/mercadopago"
	"github.com/credithub/credithub-api/internal/pkg/monnify"
	"github.com/credithub/credithub-api/internal/pkg/response"
	"github.com/credithub/credithub-api/internal/pkg/validator"
	"github.com/credithub/credithub-api/internal/pkg/vault"
)

const (
	methodMonnify = "monnify"
	methodPix     = "pix"
)

type Handler struct {
	products    *product.Repository
	orders      *Repository
	vault       *vault.Vault
	mercadopago *mercadopago.Client
}

func NewHandler(products *product.Repository, orders *Repository, v *vault.Vault, mp *mercadopago.Client) *Handler {
	return &Handler{products: products, orders: orders, vault: v, mercadopago: mp}
}

type checkoutRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Method    string    `json:"method" validate:"omitempty,oneof=monnify pix"`
	Email     string    `json:"email" validate:"omitempty,email"`
}

// Checkout creates a PENDING order and a charge on the selected gateway. The
// order is only credited later, when the gateway confirms payment by webhook.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req checkoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}
	if req.Method == "" {
		req.Method = methodMonnify
	}

	p, err := h.products.GetActive(r.Context(), ten.ID, req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			response.NotFound(w, "product not found")
			return
		}
		response.InternalError(w)
		return
	}

	o := &Order{
		ID:            uuid.New(),
		TenantID:      ten.ID,
		UserID:        userID,
		ProductID:     p.ID,
		Status:        StatusPending,
		AmountCents:   p.PriceCents,
		CreditsAmount: p.CreditsAmount,
	}
	if err := h.orders.Create(r.Context(), o); err != nil {
		log.Error().Err(err).Msg("Failed to create order")
		response.InternalError(w)
		return
	}

	metadata := map[string]string{
		"tenant_id":      ten.ID.String(),
		"order_id":       o.ID.String(),
		"user_id":        userID.String(),
		"credits_amount": strconv.FormatInt(p.CreditsAmount, 10),
	}

	switch req.Method {
	case methodPix:
		h.checkoutPix(w, r, o, p, req.Email, metadata)
	default:
		h.checkoutMonnify(w, r, ten, o, p, metadata)
	}
}

func (h *Handler) checkoutMonnify(w http.ResponseWriter, r *http.Request, ten *tenant.Tenant, o *Order, p *product.Product, metadata map[string]string) {
	if !ten.HasMonnifyToken() {
		response.UnprocessableEntity(w, "GATEWAY_NOT_CONFIGURED", "payment gateway not configured for this tenant")
		return
	}

	token, err := h.vault.Decrypt(ten.MonnifyToken.String)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", ten.ID.String()).Msg("Failed to decrypt gateway token")
		response.InternalError(w)
		return
	}

	charge, err := monnify.NewClient(token).CreateCharge(r.Context(), monnify.ChargeInput{
		Amount:   p.PriceCents,
		Metadata: metadata,
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", o.ID.String()).Msg("Failed to create charge")
		response.InternalError(w)
		return
	}

	response.Created(w, map[string]interface{}{
		"order_id": o.ID,
		"charge":   charge,
	})
}

func (h *Handler) checkoutPix(w http.ResponseWriter, r *http.Request, o *Order, p *product.Product, email string, metadata map[string]string) {
	if h.mercadopago == nil {
		response.UnprocessableEntity(w, "GATEWAY_NOT_CONFIGURED", "pix payments are not enabled")
		return
	}

	payment, err := h.mercadopago.CreatePayment(r.Context(), mercadopago.CreatePaymentInput{
		Amount:      p.PriceCents,
		Description: p.Name,
		Payer:       mercadopago.Payer{Email: email},
		Metadata:    metadata,
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", o.ID.String()).Msg("Failed to create pix payment")
		response.InternalError(w)
		return
	}

	response.Created(w, map[string]interface{}{
		"order_id":       o.ID,
		"payment_id":     payment.PaymentID,
		"status":         payment.Status,
		"qr_code":        payment.QRCode,
		"qr_code_base64": payment.QRCodeBase64,
	})
}

// GetOrder returns one of the caller's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}
	userID := middleware.GetUserID(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	o, err := h.orders.Get(r.Context(), ten.ID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "order not found")
			return
		}
		response.InternalError(w)
		return
	}
	if o.UserID != userID && middleware.GetRole(r.Context()) != middleware.RoleAdmin {
		response.NotFound(w, "order not found")
		return
	}

	response.OK(w, o)
}
