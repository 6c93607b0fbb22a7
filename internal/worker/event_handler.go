package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/platform/messaging/producers"
)

// WalletEventHandler handles incoming wallet event messages from Kafka
type WalletEventHandler struct {
	projection ProjectionService
	producer   producers.DeadLetterPublisher
	logger     *slog.Logger
}

// NewWalletEventHandler creates a new handler
func NewWalletEventHandler(
	logger *slog.Logger,
	projection ProjectionService,
	producer producers.DeadLetterPublisher,
) *WalletEventHandler {
	return &WalletEventHandler{
		projection: projection,
		producer:   producer,
		logger:     logger,
	}
}

// HandleMessage processes Kafka messages
func (h *WalletEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.WalletEvent
	if err := json.Unmarshal(value, &event); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal wallet event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Poison messages go to the DLQ so the partition keeps moving
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received wallet event for projection",
		"event_id", event.EventID,
		"type", event.Type,
		"user_id", event.UserID.String(),
		"amount", event.Amount,
	)

	if err := h.projection.ProjectEvent(ctx, &event); err != nil {
		logger.Error("Failed to project wallet event",
			"event_id", event.EventID,
			"user_id", event.UserID.String(),
			"error", err,
		)
		return fmt.Errorf("projecting wallet event %s failed: %w", event.EventID, err)
	}

	logger.Info("Successfully handled wallet event", "event_id", event.EventID)
	return nil // Success, commit offset
}
