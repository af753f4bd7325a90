package recharge

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/credithub/credithub-api/internal/domain/tenant"
)

// Routes returns the reseller-facing router, mounted under
// /{tenantSlug}/reseller.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(tenant.RequireMember)
		r.Post("/recharge", h.Recharge)
		r.Get("/balance", h.Balance)
		r.Get("/transactions", h.Transactions)
		r.Get("/transactions/{transactionID}", h.TransactionStatus)
	})

	return r
}
