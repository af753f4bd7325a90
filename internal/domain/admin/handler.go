package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/domain/audit"
	"github.com/credithub/credithub-api/internal/domain/ledger"
	"github.com/credithub/credithub-api/internal/domain/product"
	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/pkg/monnify"
	"github.com/credithub/credithub-api/internal/pkg/response"
	"github.com/credithub/credithub-api/internal/pkg/validator"
	"github.com/credithub/credithub-api/internal/pkg/vault"
	"github.com/credithub/credithub-api/internal/pkg/webhook"
)

// Handler serves tenant administration: gateway and provider credentials,
// catalog management and the operational ledger endpoints.
type Handler struct {
	tenants           *tenant.Repository
	vault             *vault.Vault
	ledger            *ledger.Service
	logs              *audit.Repository
	products          *product.Repository
	monnifyWebhookURL string
}

func NewHandler(tenants *tenant.Repository, v *vault.Vault, ledgerSvc *ledger.Service, logs *audit.Repository, products *product.Repository, monnifyWebhookURL string) *Handler {
	return &Handler{
		tenants:           tenants,
		vault:             v,
		ledger:            ledgerSvc,
		logs:              logs,
		products:          products,
		monnifyWebhookURL: monnifyWebhookURL,
	}
}

type configPaymentRequest struct {
	APIToken string `json:"api_token" validate:"required,min=10"`
}

// ConfigPayment stores the tenant's Monnify token encrypted, generates a
// fresh webhook secret and registers the webhook endpoint with Monnify. The
// token only ever touches the database as a vault blob.
func (h *Handler) ConfigPayment(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}

	var req configPaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}

	encToken, err := h.vault.Encrypt(req.APIToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encrypt gateway token")
		response.InternalError(w)
		return
	}

	secret, err := webhook.GenerateSecret(ten.ID.String())
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate webhook secret")
		response.InternalError(w)
		return
	}

	err = monnify.NewClient(req.APIToken).SetupWebhook(r.Context(), monnify.WebhookConfig{
		URL:    h.monnifyWebhookURL + "/" + ten.ID.String(),
		Secret: secret,
		Events: []string{"transaction.successful"},
		Status: "active",
	})
	if err != nil {
		log.Error().Err(err).Str("tenant_id", ten.ID.String()).Msg("Failed to register webhook with gateway")
		response.UnprocessableEntity(w, "GATEWAY_REJECTED", "gateway rejected the webhook registration")
		return
	}

	if err := h.tenants.UpdateMonnifyConfig(r.Context(), ten.ID, encToken, secret); err != nil {
		log.Error().Err(err).Msg("Failed to persist gateway config")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"configured": true})
}

type configWarezRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=3"`
}

// ConfigWarez stores the tenant's provider reseller credentials encrypted.
func (h *Handler) ConfigWarez(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}

	var req configWarezRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}

	encUsername, err := h.vault.Encrypt(req.Username)
	if err != nil {
		response.InternalError(w)
		return
	}
	encPassword, err := h.vault.Encrypt(req.Password)
	if err != nil {
		response.InternalError(w)
		return
	}

	if err := h.tenants.UpdateWarezCredentials(r.Context(), ten.ID, encUsername, encPassword); err != nil {
		log.Error().Err(err).Msg("Failed to persist provider credentials")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"configured": true})
}

type compensateRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=255"`
}

// CompensateTransaction manually refunds a stuck reservation. This is the
// operator path for jobs that exhausted their retries with the SPEND still
// PENDING; Compensate itself absorbs terminal transactions.
func (h *Handler) CompensateTransaction(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}

	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	var req compensateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}

	// Scope check before the mutation: compensation must not cross tenants.
	if _, err := h.ledger.GetTransaction(r.Context(), ten.ID, transactionID); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			response.NotFound(w, "transaction not found")
			return
		}
		response.InternalError(w)
		return
	}

	if err := h.ledger.Compensate(r.Context(), transactionID, "manual: "+req.Reason); err != nil {
		log.Error().Err(err).Str("transaction_id", transactionID.String()).Msg("Manual compensation failed")
		response.InternalError(w)
		return
	}

	txn, err := h.ledger.GetTransaction(r.Context(), ten.ID, transactionID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, txn)
}

// ExternalLogs returns the tenant's recent provider call trail.
func (h *Handler) ExternalLogs(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.logs.ListByTenant(r.Context(), ten.ID, limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"logs": logs})
}

type createProductRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=100"`
	PriceCents    int64  `json:"price_cents" validate:"required,gt=0"`
	CreditsAmount int64  `json:"credits_amount" validate:"required,gt=0"`
}

// CreateProduct adds a credit pack to the tenant's catalog.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}

	var req createProductRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}

	p := &product.Product{
		ID:            uuid.New(),
		TenantID:      ten.ID,
		Name:          req.Name,
		PriceCents:    req.PriceCents,
		CreditsAmount: req.CreditsAmount,
		Active:        true,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		log.Error().Err(err).Msg("Failed to create product")
		response.InternalError(w)
		return
	}

	response.Created(w, p)
}
