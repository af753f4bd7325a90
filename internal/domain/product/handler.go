package product

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/pkg/response"
)

type Handler struct {
	products *Repository
}

func NewHandler(products *Repository) *Handler {
	return &Handler{products: products}
}

// List returns the tenant's active catalog. Public: the storefront renders
// it before any login.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}

	products, err := h.products.ListActive(r.Context(), ten.ID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"products": products})
}

// Routes returns the catalog router, mounted under /{tenantSlug}/products.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}
