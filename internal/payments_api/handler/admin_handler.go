package handler

import (
	"errors"
	"log/slog"

	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/domain/user"
	"github.com/datamart-payments-ledger/internal/domain/wallet"
	"github.com/datamart-payments-ledger/internal/payments_api/middleware"
	"github.com/datamart-payments-ledger/internal/payments_api/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdminHandler handles operator balance adjustments
type AdminHandler struct {
	adminService service.AdminService
	logger       *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(logger *slog.Logger, adminService service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

type adjustFunc func(c *gin.Context, userID uuid.UUID, amount decimal.Decimal, reason, correlationID string) (*shared.WalletEvent, error)

func (h *AdminHandler) adjust(c *gin.Context, apply adjustFunc) {
	idParam := c.Param("id")
	userID, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	var req AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	event, err := apply(c, userID, req.Amount, req.Reason, middleware.GetCorrelationID(c))
	if err != nil {
		if errors.Is(err, shared.ErrNonPositiveAmount) || errors.Is(err, shared.ErrTooPrecise) {
			RespondBadRequest(c, "Amount must be a positive GHS value with at most two decimal places")
			return
		}
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			RespondBadRequest(c, "Insufficient funds for deduction")
			return
		}
		var userNotFound user.ErrUserNotFound
		if errors.As(err, &userNotFound) {
			RespondNotFound(c, "User not found")
			return
		}
		var walletNotFound wallet.ErrWalletNotFound
		if errors.As(err, &walletNotFound) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to apply adjustment", "user_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, AdjustmentResponse{
		Reference:  event.Reference,
		UserID:     event.UserID.String(),
		NewBalance: shared.FromPesewas(event.BalanceAfter).StringFixed(2),
	})
}

// AddMoney credits a user's wallet
func (h *AdminHandler) AddMoney(c *gin.Context) {
	h.adjust(c, func(c *gin.Context, userID uuid.UUID, amount decimal.Decimal, reason, correlationID string) (*shared.WalletEvent, error) {
		return h.adminService.AddMoney(c.Request.Context(), userID, amount, reason, correlationID)
	})
}

// DeductMoney debits a user's wallet
func (h *AdminHandler) DeductMoney(c *gin.Context) {
	h.adjust(c, func(c *gin.Context, userID uuid.UUID, amount decimal.Decimal, reason, correlationID string) (*shared.WalletEvent, error) {
		return h.adminService.DeductMoney(c.Request.Context(), userID, amount, reason, correlationID)
	})
}
