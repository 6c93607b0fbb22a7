package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/datamart-payments-ledger/internal/domain/outbox"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/platform/messaging/producers"
)

// OutboxPoller drains pending wallet_outbox rows into Kafka
type OutboxPoller struct {
	outboxRepo       outbox.Repository
	eventPublisher   producers.MessagePublisher
	dlqPublisher     producers.DeadLetterPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewOutboxPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	eventPublisher producers.MessagePublisher,
	dlqPublisher producers.DeadLetterPublisher,
	logger *slog.Logger,
) *OutboxPoller {
	return &OutboxPoller{
		outboxRepo:       outboxRepo,
		eventPublisher:   eventPublisher,
		dlqPublisher:     dlqPublisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *OutboxPoller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Outbox poller tick: processing pending messages")
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *OutboxPoller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		if err := p.publishMessage(ctx, msg); err != nil {
			p.handlePublishFailure(ctx, msg, err)
			continue
		}

		if err := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusProcessed); err != nil {
			// The event is already on the topic. Leaving the row pending means a
			// duplicate publish on the next tick, which the projector absorbs.
			p.logger.Error("Failed to mark outbox message as PROCESSED after publish",
				"outbox_id", msg.ID, "event_id", msg.EventID, "error", err,
			)
			continue
		}
		p.logger.Info("Published outbox message", "outbox_id", msg.ID, "event_id", msg.EventID)
	}
	return nil
}

func (p *OutboxPoller) publishMessage(ctx context.Context, msg *outbox.Message) error {
	event, err := msg.GetWalletEvent()
	if err != nil {
		return fmt.Errorf("failed to unmarshal wallet event from outbox %d: %w", msg.ID, err)
	}

	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}
	logger.Debug("Publishing wallet event",
		"outbox_id", msg.ID,
		"event_id", event.EventID,
		"type", event.Type,
	)

	// Keyed by user so one wallet's events stay ordered on a single partition.
	return p.eventPublisher.Publish(ctx, msg.UserID.String(), event)
}

func (p *OutboxPoller) handlePublishFailure(ctx context.Context, msg *outbox.Message, publishErr error) {
	p.logger.Error("Failed to publish outbox message",
		"outbox_id", msg.ID, "event_id", msg.EventID, "current_attempts", msg.Attempts, "error", publishErr,
	)

	if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
		p.logger.Error("Failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", errInc)
		return
	}

	if msg.Attempts+1 < p.maxRetryAttempts {
		return
	}

	p.logger.Warn("Max retry attempts reached for outbox message, marking as FAILED_TO_PUBLISH",
		"outbox_id", msg.ID, "event_id", msg.EventID, "attempts_made", msg.Attempts+1,
	)
	if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
		p.logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "outbox_id", msg.ID, "error", errUpdate)
		return
	}

	if p.dlqPublisher != nil {
		reason := fmt.Sprintf("outbox publish exhausted after %d attempts: %s", msg.Attempts+1, publishErr.Error())
		if dlqErr := p.dlqPublisher.PublishToDLQ(ctx, msg.UserID.String(), []byte(msg.Payload), reason); dlqErr != nil {
			p.logger.Error("Failed to publish exhausted outbox message to DLQ", "outbox_id", msg.ID, "dlq_error", dlqErr)
		}
	}
}
