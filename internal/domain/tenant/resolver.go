package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/credithub/credithub-api/internal/middleware"
	"github.com/credithub/credithub-api/internal/pkg/response"
)

type contextKey string

const tenantKey contextKey = "tenant"

// Resolver is middleware that resolves the {tenantSlug} path parameter
// through the directory cache and attaches the tenant to the context.
func Resolver(directory *Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := chi.URLParam(r, "tenantSlug")
			if slug == "" {
				response.BadRequest(w, "Tenant slug is required")
				return
			}

			t, err := directory.Resolve(r.Context(), slug)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					response.NotFound(w, "Tenant not found")
					return
				}
				response.InternalError(w)
				return
			}

			ctx := context.WithValue(r.Context(), tenantKey, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the tenant attached by Resolver, or nil.
func FromContext(ctx context.Context) *Tenant {
	if t, ok := ctx.Value(tenantKey).(*Tenant); ok {
		return t
	}
	return nil
}

// RequireMember rejects tokens issued for a different tenant than the one
// the slug resolved to. Must run after both Resolver and the auth middleware.
func RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := FromContext(r.Context())
		if t == nil || middleware.GetTenantID(r.Context()) != t.ID {
			response.Forbidden(w, "token does not belong to this tenant")
			return
		}
		next.ServeHTTP(w, r)
	})
}
