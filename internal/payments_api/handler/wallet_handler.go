package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/datamart-payments-ledger/internal/domain/history"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/domain/wallet"
	"github.com/datamart-payments-ledger/internal/payments_api/middleware"
	"github.com/datamart-payments-ledger/internal/payments_api/service"
	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet read requests
type WalletHandler struct {
	walletService service.WalletService
	logger        *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// GetBalance returns the authenticated user's wallet balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	account, err := h.walletService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		var walletNotFound wallet.ErrWalletNotFound
		if errors.As(err, &walletNotFound) {
			RespondNotFound(c, "Wallet not found")
			return
		}
		h.logger.Error("Failed to get wallet balance", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, BalanceResponse{
		UserID:    account.UserID.String(),
		Balance:   shared.FromPesewas(account.Balance).StringFixed(2),
		Currency:  account.Currency,
		UpdatedAt: account.UpdatedAt.Format(time.RFC3339),
	})
}

// GetTransactions returns a page of the authenticated user's wallet history
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	entries, total, err := h.walletService.GetTransactions(c.Request.Context(), userID, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to get wallet transactions", "user_id", userID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	response := TransactionListResponse{Transactions: make([]TransactionResponse, 0, len(entries))}
	for _, entry := range entries {
		response.Transactions = append(response.Transactions, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, 200, response, params.Page, params.PerPage, int(total))
}

// mapEntryToResponse maps a history entry to a response DTO
func mapEntryToResponse(entry *history.Entry) TransactionResponse {
	return TransactionResponse{
		Reference:    entry.Reference,
		Type:         string(entry.Type),
		Amount:       shared.FromPesewas(entry.Amount).StringFixed(2),
		Currency:     entry.Currency,
		BalanceAfter: shared.FromPesewas(entry.BalanceAfter).StringFixed(2),
		Reason:       entry.Reason,
		OccurredAt:   entry.OccurredAt.Format(time.RFC3339),
	}
}
