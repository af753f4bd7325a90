package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// TenantRoutes returns the tenant-scoped auth router, mounted under
// /{tenantSlug}/auth.
func (h *Handler) TenantRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/me", h.Me)
	})

	return r
}

// PlatformRoutes returns the tenant-less router, mounted at /auth. Signup
// happens before a tenant exists to resolve.
func (h *Handler) PlatformRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.Signup)

	return r
}
