package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/domain/user"
	"github.com/datamart-payments-ledger/internal/payments_api/middleware"
	"github.com/datamart-payments-ledger/internal/payments_api/service"
	"github.com/gin-gonic/gin"
)

// DepositHandler handles deposit initiation and verification requests
type DepositHandler struct {
	depositService service.DepositService
	logger         *slog.Logger
}

// NewDepositHandler creates a new deposit handler
func NewDepositHandler(logger *slog.Logger, depositService service.DepositService) *DepositHandler {
	return &DepositHandler{
		depositService: depositService,
		logger:         logger,
	}
}

// Create initiates a deposit for the authenticated user and returns the
// reference plus the hosted checkout URL
func (h *DepositHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	var req CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	dep, err := h.depositService.CreateDeposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		if errors.Is(err, shared.ErrNonPositiveAmount) || errors.Is(err, shared.ErrTooPrecise) {
			RespondBadRequest(c, "Amount must be a positive GHS value with at most two decimal places")
			return
		}
		var userNotFound user.ErrUserNotFound
		if errors.As(err, &userNotFound) {
			RespondNotFound(c, "User not found")
			return
		}
		if service.IsUpstreamError(err) {
			RespondBadGateway(c, "")
			return
		}
		h.logger.Error("Failed to create deposit", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapDepositToResponse(dep))
}

// Verify resolves the settlement state of the caller's deposit, crediting the
// wallet when the provider confirms payment that the webhook has not yet
// delivered
func (h *DepositHandler) Verify(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	reference := c.Query("reference")
	if reference == "" {
		RespondBadRequest(c, "Missing reference")
		return
	}

	result, err := h.depositService.VerifyDeposit(c.Request.Context(), userID, reference, middleware.GetCorrelationID(c))
	if err != nil {
		var depNotFound deposit.ErrNotFound
		if errors.As(err, &depNotFound) {
			RespondNotFound(c, "Deposit not found")
			return
		}
		if service.IsUpstreamError(err) {
			RespondBadGateway(c, "")
			return
		}
		h.logger.Error("Failed to verify deposit", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}

	response := VerificationResponse{
		Reference: result.Reference,
		Status:    string(result.Status),
		Flagged:   result.Flagged,
	}
	if result.NewBalance != nil {
		balance := shared.FromPesewas(*result.NewBalance).StringFixed(2)
		response.NewBalance = &balance
	}

	RespondOK(c, response)
}

// mapDepositToResponse maps a deposit entity to a response DTO
func mapDepositToResponse(dep *deposit.Request) DepositResponse {
	return DepositResponse{
		Reference:   dep.Reference,
		Amount:      shared.FromPesewas(dep.Amount).StringFixed(2),
		Currency:    dep.Currency,
		Status:      string(dep.Status),
		CheckoutURL: dep.CheckoutURL,
		CreatedAt:   dep.CreatedAt.Format(time.RFC3339),
	}
}
