package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/credithub/credithub-api/internal/domain/tenant"
)

// Routes returns the storefront checkout router, mounted under /{tenantSlug}.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(tenant.RequireMember)
		r.Post("/checkout", h.Checkout)
		r.Get("/orders/{orderID}", h.GetOrder)
	})

	return r
}

// WebhookRoutes returns the unauthenticated gateway callback router, mounted
// at /webhooks. Signature verification is the only gate on these routes.
func (h *WebhookHandler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/monnify/{tenantID}", h.Monnify)
	r.Post("/mercadopago", h.MercadoPago)

	return r
}
