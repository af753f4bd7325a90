package auth

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/domain/user"
	"github.com/credithub/credithub-api/internal/middleware"
	"github.com/credithub/credithub-api/internal/pkg/response"
	"github.com/credithub/credithub-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type signupRequest struct {
	TenantName string `json:"tenant_name" validate:"required,min=2,max=100"`
	TenantSlug string `json:"tenant_slug" validate:"required,slug,min=3,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Signup creates a new storefront tenant with its ADMIN owner.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}

	ten, token, err := h.svc.SignupTenant(r.Context(), SignupInput{
		TenantName: req.TenantName,
		TenantSlug: req.TenantSlug,
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrSlugTaken):
			response.Conflict(w, "slug already taken")
		case errors.Is(err, user.ErrEmailTaken):
			response.Conflict(w, "email already registered")
		default:
			log.Error().Err(err).Msg("Tenant signup failed")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, map[string]interface{}{
		"tenant": ten,
		"token":  token,
	})
}

// Register creates a reseller account under the resolved tenant.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}

	var req registerRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}

	u, token, err := h.svc.Register(r.Context(), ten.ID, RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			response.Conflict(w, "email already registered")
			return
		}
		log.Error().Err(err).Msg("Reseller registration failed")
		response.InternalError(w)
		return
	}

	response.Created(w, map[string]interface{}{
		"user":  u,
		"token": token,
	})
}

// Login authenticates within the resolved tenant.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}

	var req loginRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}

	u, token, err := h.svc.Login(r.Context(), ten.ID, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(w, "invalid email or password")
			return
		}
		log.Error().Err(err).Msg("Login failed")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"user":  u,
		"token": token,
	})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}
