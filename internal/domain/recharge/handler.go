package recharge

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/domain/ledger"
	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/middleware"
	"github.com/credithub/credithub-api/internal/pkg/queue"
	"github.com/credithub/credithub-api/internal/pkg/response"
	"github.com/credithub/credithub-api/internal/pkg/validator"
)

// Enqueuer hands recharge jobs to the queue.
type Enqueuer interface {
	EnqueueRechargeExecution(ctx context.Context, p queue.RechargeExecutePayload) error
}

type Handler struct {
	ledger *ledger.Service
	jobs   Enqueuer
}

func NewHandler(ledgerSvc *ledger.Service, jobs Enqueuer) *Handler {
	return &Handler{ledger: ledgerSvc, jobs: jobs}
}

type rechargeRequest struct {
	TargetUsername string `json:"target_username" validate:"required,min=3,max=64"`
	Amount         int64  `json:"amount" validate:"required,gt=0"`
}

// Recharge reserves credits and enqueues the provider call. The response is
// 202: the outcome arrives later through transaction status polling.
func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
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

	var req rechargeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request", details)
		return
	}

	spend, err := h.ledger.Reserve(r.Context(), ten.ID, userID, req.Amount, "recharge "+req.TargetUsername)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			response.UnprocessableEntity(w, "INSUFFICIENT_FUNDS", "insufficient credit balance")
		case errors.Is(err, ledger.ErrInvalidAmount):
			response.BadRequest(w, "amount must be positive")
		case errors.Is(err, ledger.ErrUserNotFound):
			response.NotFound(w, "user not found")
		default:
			log.Error().Err(err).Msg("Failed to reserve credits")
			response.InternalError(w)
		}
		return
	}

	err = h.jobs.EnqueueRechargeExecution(r.Context(), queue.RechargeExecutePayload{
		Version:       queue.PayloadVersion,
		TenantID:      ten.ID,
		UserID:        userID,
		TargetUser:    req.TargetUsername,
		Amount:        req.Amount,
		TransactionID: spend.ID,
	})
	if err != nil {
		// The reservation must not outlive a job that was never queued.
		log.Error().Err(err).Str("transaction_id", spend.ID.String()).Msg("Failed to enqueue recharge")
		if cerr := h.ledger.Compensate(r.Context(), spend.ID, "enqueue failed"); cerr != nil {
			log.Error().Err(cerr).Str("transaction_id", spend.ID.String()).Msg("Failed to compensate unqueued reservation")
		}
		response.InternalError(w)
		return
	}

	response.Accepted(w, map[string]interface{}{
		"transaction_id": spend.ID,
		"status":         "PROCESSING",
	})
}

// TransactionStatus returns the ledger state of one transaction. This is the
// polling channel resellers use to observe the recharge outcome.
func (h *Handler) TransactionStatus(w http.ResponseWriter, r *http.Request) {
	ten := tenant.FromContext(r.Context())
	if ten == nil {
		response.NotFound(w, "tenant not found")
		return
	}
	userID := middleware.GetUserID(r.Context())

	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		response.BadRequest(w, "invalid transaction id")
		return
	}

	txn, err := h.ledger.GetTransaction(r.Context(), ten.ID, transactionID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			response.NotFound(w, "transaction not found")
			return
		}
		response.InternalError(w)
		return
	}
	if txn.UserID != userID && middleware.GetRole(r.Context()) != middleware.RoleAdmin {
		response.NotFound(w, "transaction not found")
		return
	}

	response.OK(w, txn)
}

// Balance returns the caller's current credit balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
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

	balance, err := h.ledger.GetBalance(r.Context(), ten.ID, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"balance": balance})
}

// Transactions lists the caller's ledger history.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
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

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.ledger.ListTransactions(r.Context(), ten.ID, userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"transactions": transactions})
}
