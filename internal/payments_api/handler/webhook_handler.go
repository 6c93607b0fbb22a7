package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/ledger"
	"github.com/datamart-payments-ledger/internal/payments_api/middleware"
	"github.com/datamart-payments-ledger/internal/payments_api/service"
	"github.com/datamart-payments-ledger/internal/platform/paystack"
	"github.com/gin-gonic/gin"
)

// Webhook event names Paystack delivers for charges
const (
	webhookEventChargeSuccess = "charge.success"
	webhookEventChargeFailed  = "charge.failed"
)

// WebhookHandler receives Paystack webhook deliveries. Authentication is the
// HMAC signature over the raw body; there is no user session on this route.
type WebhookHandler struct {
	secretKey string
	settler   service.SettlementApplier
	logger    *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, secretKey string, settler service.SettlementApplier) *WebhookHandler {
	return &WebhookHandler{
		secretKey: secretKey,
		settler:   settler,
		logger:    logger,
	}
}

// Receive validates the delivery signature and applies the settlement it
// describes. Retried deliveries converge on the idempotent credit path, so
// answering 200 to a duplicate is always safe.
func (h *WebhookHandler) Receive(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", "error", err)
		RespondBadRequest(c, "Unreadable request body")
		return
	}

	signature := c.GetHeader(paystack.SignatureHeader)
	if err := paystack.VerifySignature(rawBody, signature, h.secretKey); err != nil {
		h.logger.Warn("Webhook signature rejected",
			"client_ip", c.ClientIP(),
			"error", err,
		)
		RespondBadRequest(c, "Invalid signature")
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		h.logger.Error("Failed to decode webhook payload", "error", err)
		RespondBadRequest(c, "Malformed payload")
		return
	}

	switch payload.Event {
	case webhookEventChargeSuccess, webhookEventChargeFailed:
	default:
		// Signed but irrelevant event type. Acknowledge so the provider
		// stops redelivering it.
		h.logger.Debug("Ignoring webhook event", "event", payload.Event)
		RespondOK(c, gin.H{"received": true})
		return
	}

	if payload.Data.Reference == "" {
		RespondBadRequest(c, "Missing reference")
		return
	}

	report := &ledger.SettlementReport{
		Reference:     payload.Data.Reference,
		Succeeded:     payload.Event == webhookEventChargeSuccess,
		Amount:        payload.Data.Amount,
		Currency:      payload.Data.Currency,
		Source:        "webhook",
		CorrelationID: middleware.GetCorrelationID(c),
	}
	if paidAt, err := time.Parse(time.RFC3339, payload.Data.PaidAt); err == nil {
		report.PaidAt = paidAt
	}

	outcome, err := h.settler.ApplySettlement(c.Request.Context(), report)
	if err != nil {
		var depNotFound deposit.ErrNotFound
		if errors.As(err, &depNotFound) {
			h.logger.Warn("Webhook for unknown reference", "reference", payload.Data.Reference)
			RespondNotFound(c, "Deposit not found")
			return
		}
		h.logger.Error("Failed to apply webhook settlement",
			"reference", payload.Data.Reference,
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	if outcome == ledger.OutcomeFlagged {
		RespondBadRequest(c, "Amount mismatch, deposit flagged for review")
		return
	}

	RespondOK(c, gin.H{"received": true, "outcome": string(outcome)})
}
