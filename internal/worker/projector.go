package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datamart-payments-ledger/internal/domain/history"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// ProjectionService applies a wallet event to the read-side history store
type ProjectionService interface {
	ProjectEvent(ctx context.Context, event *shared.WalletEvent) error
}

// CacheInvalidator drops stale projection cache entries after a write
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// HistoryProjector writes wallet events into the Mongo history collection.
// Replays are absorbed through the event ID uniqueness check, so the same
// event can arrive any number of times.
type HistoryProjector struct {
	historyRepo history.Repository
	cache       CacheInvalidator
	logger      *slog.Logger
}

func NewHistoryProjector(
	historyRepo history.Repository,
	cache CacheInvalidator,
	logger *slog.Logger,
) *HistoryProjector {
	return &HistoryProjector{
		historyRepo: historyRepo,
		cache:       cache,
		logger:      logger,
	}
}

// ProjectEvent appends the event to the user's history
func (p *HistoryProjector) ProjectEvent(ctx context.Context, event *shared.WalletEvent) error {
	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}

	entry := history.FromEvent(event)
	if err := p.historyRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, history.ErrDuplicateEntry{EventID: event.EventID}) {
			logger.Info("Wallet event already projected, skipping",
				"event_id", event.EventID,
				"reference", event.Reference,
			)
			return nil
		}
		return fmt.Errorf("failed to project wallet event %s: %w", event.EventID, err)
	}

	logger.Info("Projected wallet event",
		"event_id", event.EventID,
		"type", event.Type,
		"user_id", event.UserID.String(),
		"reference", event.Reference,
	)

	if p.cache != nil {
		if err := p.cache.InvalidateUser(ctx, event.UserID); err != nil {
			// The cache entry expires on its own TTL; the projection is the
			// source of truth and is already written.
			logger.Warn("Failed to invalidate projection cache", "user_id", event.UserID.String(), "error", err)
		}
	}
	return nil
}
