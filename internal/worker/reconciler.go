package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/ledger"
	"github.com/datamart-payments-ledger/internal/platform/paystack"
)

const reconcileBatchSize = 100

// SettlementApplier is the ledger entry point the background jobs settle through
type SettlementApplier interface {
	ApplySettlement(ctx context.Context, report *ledger.SettlementReport) (ledger.CreditOutcome, error)
}

// TransactionVerifier is the slice of the Paystack client reconciliation needs
type TransactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// Reconciler re-verifies deposits that stayed pending past the reconcile
// window. It covers webhooks that never arrived: the provider is asked for the
// authoritative status and the answer goes through the same settlement path as
// a webhook would.
type Reconciler struct {
	depositRepo deposit.Repository
	verifier    TransactionVerifier
	settler     SettlementApplier
	logger      *slog.Logger
	interval    time.Duration
	minAge      time.Duration
}

func NewReconciler(
	cfg *config.DepositConfig,
	depositRepo deposit.Repository,
	verifier TransactionVerifier,
	settler SettlementApplier,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		depositRepo: depositRepo,
		verifier:    verifier,
		settler:     settler,
		logger:      logger,
		interval:    cfg.ReconcileInterval,
		minAge:      cfg.ReconcileAfter,
	}
}

// Start begins the reconcile loop until context is canceled
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting deposit reconciler",
		"interval", r.interval.String(),
		"min_age", r.minAge.String(),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Deposit reconciler stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := r.reconcileBatch(ctx); err != nil {
				r.logger.Error("Error during deposit reconciliation batch", "error", err)
			}
		}
	}
}

func (r *Reconciler) reconcileBatch(ctx context.Context) error {
	cutoff := time.Now().Add(-r.minAge)
	stale, err := r.depositRepo.GetStalePending(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch stale pending deposits: %w", err)
	}

	if len(stale) == 0 {
		r.logger.Debug("No stale pending deposits to reconcile.")
		return nil
	}

	r.logger.Info("Reconciling stale pending deposits", "count", len(stale))

	for _, dep := range stale {
		if err := r.reconcileOne(ctx, dep); err != nil {
			r.logger.Error("Failed to reconcile deposit", "reference", dep.Reference, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, dep *deposit.Request) error {
	tx, err := r.verifier.VerifyTransaction(ctx, dep.Reference)
	if err != nil {
		// Unreachable provider proves nothing. Leave the row pending and try
		// again on the next tick.
		return fmt.Errorf("failed to verify deposit with provider: %w", err)
	}

	switch tx.Status {
	case paystack.TxStatusSuccess:
		paidAt := time.Now()
		if tx.PaidAt != nil {
			paidAt = *tx.PaidAt
		}
		outcome, err := r.settler.ApplySettlement(ctx, &ledger.SettlementReport{
			Reference: dep.Reference,
			Succeeded: true,
			Amount:    tx.Amount,
			Currency:  tx.Currency,
			PaidAt:    paidAt,
			Source:    "reconciler",
		})
		if err != nil {
			return fmt.Errorf("failed to settle reconciled deposit: %w", err)
		}
		r.logger.Info("Reconciled deposit", "reference", dep.Reference, "outcome", string(outcome))
		return nil

	case paystack.TxStatusFailed, paystack.TxStatusAbandoned:
		if _, err := r.settler.ApplySettlement(ctx, &ledger.SettlementReport{
			Reference: dep.Reference,
			Succeeded: false,
			Source:    "reconciler",
		}); err != nil {
			return fmt.Errorf("failed to settle failed deposit: %w", err)
		}
		r.logger.Info("Marked reconciled deposit failed", "reference", dep.Reference, "provider_status", tx.Status)
		return nil

	default:
		// Still processing on the provider side; the expiry sweep bounds how
		// long it can stay that way.
		r.logger.Debug("Deposit still pending at provider", "reference", dep.Reference)
		return nil
	}
}
