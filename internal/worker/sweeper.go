package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/ledger"
)

const sweepBatchSize = 500

// ExpirySweeper fails deposits that stayed pending past the expiry window.
// A deposit the provider never settled within the window is abandoned; the
// failure goes through the normal settlement path so the status flip and the
// DEPOSIT_FAILED event stay transactional.
type ExpirySweeper struct {
	depositRepo deposit.Repository
	settler     SettlementApplier
	logger      *slog.Logger
	interval    time.Duration
	expiry      time.Duration
}

func NewExpirySweeper(
	cfg *config.DepositConfig,
	depositRepo deposit.Repository,
	settler SettlementApplier,
	logger *slog.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		depositRepo: depositRepo,
		settler:     settler,
		logger:      logger,
		interval:    cfg.SweepInterval,
		expiry:      cfg.PendingExpiry,
	}
}

// Start begins the sweep loop until context is canceled
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.logger.Info("Starting deposit expiry sweeper",
		"interval", s.interval.String(),
		"pending_expiry", s.expiry.String(),
	)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Deposit expiry sweeper stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := s.sweepBatch(ctx); err != nil {
				s.logger.Error("Error during deposit expiry sweep", "error", err)
			}
		}
	}
}

func (s *ExpirySweeper) sweepBatch(ctx context.Context) error {
	cutoff := time.Now().Add(-s.expiry)
	expired, err := s.depositRepo.GetStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch expired pending deposits: %w", err)
	}

	if len(expired) == 0 {
		s.logger.Debug("No expired pending deposits found.")
		return nil
	}

	s.logger.Info("Sweeping expired pending deposits", "count", len(expired))

	for _, dep := range expired {
		outcome, err := s.settler.ApplySettlement(ctx, &ledger.SettlementReport{
			Reference: dep.Reference,
			Succeeded: false,
			Source:    "expiry_sweep",
		})
		if err != nil {
			s.logger.Error("Failed to expire deposit", "reference", dep.Reference, "error", err)
			continue
		}
		s.logger.Info("Expired pending deposit",
			"reference", dep.Reference,
			"age", time.Since(dep.CreatedAt).String(),
			"outcome", string(outcome),
		)
	}
	return nil
}
