package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/middleware"
)

// Routes returns the admin router, mounted under /{tenantSlug}/admin. Every
// route requires an authenticated ADMIN of the resolved tenant.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(tenant.RequireMember)
		r.Use(middleware.RequireRole(middleware.RoleAdmin))

		r.Post("/config-payment", h.ConfigPayment)
		r.Post("/config-warez", h.ConfigWarez)
		r.Post("/products", h.CreateProduct)
		r.Post("/transactions/{transactionID}/compensate", h.CompensateTransaction)
		r.Get("/external-logs", h.ExternalLogs)
	})

	return r
}
