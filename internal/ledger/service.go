// Package ledger holds the balance mutation engine. Every pesewa that enters
// or leaves a wallet flows through this package, inside a single database
// transaction that pairs the deposit/adjustment state change with the balance
// update and the outbox event describing it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/domain/outbox"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/domain/wallet"
	"github.com/datamart-payments-ledger/internal/platform/messaging/producers"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Common errors
var (
	ErrInvalidAdjustment = errors.New("adjustment amount must be positive")
	ErrEmptyReason       = errors.New("adjustment reason cannot be empty")
)

// CreditOutcome reports what a settlement report did to a deposit
type CreditOutcome string

const (
	// OutcomeCredited means this call won the pending -> completed transition
	// and the wallet was credited exactly once.
	OutcomeCredited CreditOutcome = "credited"

	// OutcomeAlreadyFinal means the deposit had already reached a terminal
	// state. Webhook retries and racing verification polls land here.
	OutcomeAlreadyFinal CreditOutcome = "already_final"

	// OutcomeMarkedFailed means the provider reported a failure and the
	// deposit was transitioned to failed without touching the wallet.
	OutcomeMarkedFailed CreditOutcome = "marked_failed"

	// OutcomeFlagged means the provider-reported amount or currency did not
	// match the deposit. The wallet is never touched; a human resolves it.
	OutcomeFlagged CreditOutcome = "flagged"
)

// SettlementReport is a provider-confirmed result for a deposit reference,
// whether it arrived by webhook or by an explicit verification call.
type SettlementReport struct {
	Reference     string
	Succeeded     bool
	Amount        int64 // Pesewas, as reported by the provider
	Currency      string
	PaidAt        time.Time
	Source        string // "webhook" or "verification"
	CorrelationID string
}

// TxRunner executes a function inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// CacheInvalidator drops cached projections for a user after a balance change
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// Service applies settlement reports and admin adjustments to wallets
type Service struct {
	txRunner    TxRunner
	depositRepo deposit.Repository
	walletRepo  wallet.Repository
	outboxRepo  outbox.Repository
	reviewPub   producers.MessagePublisher
	cache       CacheInvalidator
	logger      *slog.Logger
}

// NewService creates the ledger service. reviewPub and cache may be nil when
// the deployment runs without Kafka review flags or Redis.
func NewService(
	txRunner TxRunner,
	depositRepo deposit.Repository,
	walletRepo wallet.Repository,
	outboxRepo outbox.Repository,
	reviewPub producers.MessagePublisher,
	cache CacheInvalidator,
	logger *slog.Logger,
) *Service {
	return &Service{
		txRunner:    txRunner,
		depositRepo: depositRepo,
		walletRepo:  walletRepo,
		outboxRepo:  outboxRepo,
		reviewPub:   reviewPub,
		cache:       cache,
		logger:      logger,
	}
}

// ApplySettlement is the single entry point for provider-confirmed deposit
// results. Both the webhook handler and the verification path call it, so a
// webhook retry, a replayed event, and a racing verification poll all converge
// on the same conditional update: whichever caller flips the deposit from
// pending to completed credits the wallet, everyone else no-ops.
func (s *Service) ApplySettlement(ctx context.Context, report *SettlementReport) (CreditOutcome, error) {
	logger := s.logger
	if report.CorrelationID != "" {
		logger = s.logger.With("correlation_id", report.CorrelationID)
	}

	dep, err := s.depositRepo.GetByReference(ctx, report.Reference)
	if err != nil {
		return "", err
	}

	if dep.IsFinal() {
		logger.Info("Settlement report for finalized deposit, ignoring",
			"reference", report.Reference,
			"status", string(dep.Status),
			"source", report.Source,
		)
		return OutcomeAlreadyFinal, nil
	}

	// Flagged deposits are frozen until an operator resolves them. Settling
	// one here would either repeat the review flag or terminally fail a
	// deposit a human is still looking at.
	if dep.Flagged {
		logger.Info("Settlement report for flagged deposit, awaiting manual review",
			"reference", report.Reference,
			"source", report.Source,
		)
		return OutcomeFlagged, nil
	}

	if !report.Succeeded {
		return s.markFailed(ctx, logger, dep, report)
	}

	// A success report that does not match what the deposit was created for is
	// never credited. Flag it and hand it to a human.
	if !dep.MatchesAmount(report.Amount) || !strings.EqualFold(dep.Currency, report.Currency) {
		return s.flagForReview(ctx, logger, dep, report)
	}

	return s.credit(ctx, logger, dep, report)
}

func (s *Service) credit(ctx context.Context, logger *slog.Logger, dep *deposit.Request, report *SettlementReport) (CreditOutcome, error) {
	outcome := OutcomeAlreadyFinal

	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		depositRepoTx := s.depositRepo.WithTx(tx)
		walletRepoTx := s.walletRepo.WithTx(tx)
		outboxRepoTx := s.outboxRepo.WithTx(tx)

		paidAt := report.PaidAt
		if paidAt.IsZero() {
			paidAt = time.Now()
		}

		won, err := depositRepoTx.MarkCompleted(ctx, dep.Reference, paidAt)
		if err != nil {
			return err
		}
		if !won {
			// Another webhook delivery or the verification poller got here
			// first. Nothing to do; the wallet was already credited.
			logger.Info("Lost settlement race, deposit already completed",
				"reference", dep.Reference,
				"source", report.Source,
			)
			return nil
		}

		// The first credit for a user provisions the wallet row; Create is a
		// no-op when one already exists.
		if err := walletRepoTx.Create(ctx, wallet.NewAccount(dep.UserID, dep.Currency)); err != nil {
			return err
		}

		balance, err := walletRepoTx.AddToBalance(ctx, dep.UserID, dep.Amount)
		if err != nil {
			return err
		}

		event := &shared.WalletEvent{
			EventID:       uuid.New(),
			Type:          shared.EventTypeDepositCredited,
			UserID:        dep.UserID,
			Reference:     dep.Reference,
			Amount:        dep.Amount,
			Currency:      dep.Currency,
			BalanceAfter:  balance,
			CorrelationID: report.CorrelationID,
			OccurredAt:    paidAt,
		}

		message, err := outbox.NewMessage(event)
		if err != nil {
			return fmt.Errorf("failed to build outbox message for %s: %w", dep.Reference, err)
		}
		if err := outboxRepoTx.Create(ctx, message); err != nil {
			return err
		}

		outcome = OutcomeCredited
		logger.Info("Wallet credited",
			"reference", dep.Reference,
			"user_id", dep.UserID.String(),
			"amount", dep.Amount,
			"balance_after", balance,
			"source", report.Source,
		)
		return nil
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeCredited {
		s.invalidateAsync(dep.UserID)
	}
	return outcome, nil
}

func (s *Service) markFailed(ctx context.Context, logger *slog.Logger, dep *deposit.Request, report *SettlementReport) (CreditOutcome, error) {
	outcome := OutcomeAlreadyFinal

	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		depositRepoTx := s.depositRepo.WithTx(tx)
		outboxRepoTx := s.outboxRepo.WithTx(tx)

		marked, err := depositRepoTx.MarkFailed(ctx, dep.Reference)
		if err != nil {
			return err
		}
		if !marked {
			return nil
		}

		event := &shared.WalletEvent{
			EventID:       uuid.New(),
			Type:          shared.EventTypeDepositFailed,
			UserID:        dep.UserID,
			Reference:     dep.Reference,
			Amount:        dep.Amount,
			Currency:      dep.Currency,
			CorrelationID: report.CorrelationID,
			OccurredAt:    time.Now(),
		}
		message, err := outbox.NewMessage(event)
		if err != nil {
			return fmt.Errorf("failed to build outbox message for %s: %w", dep.Reference, err)
		}
		if err := outboxRepoTx.Create(ctx, message); err != nil {
			return err
		}

		outcome = OutcomeMarkedFailed
		logger.Info("Deposit marked failed",
			"reference", dep.Reference,
			"source", report.Source,
		)
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *Service) flagForReview(ctx context.Context, logger *slog.Logger, dep *deposit.Request, report *SettlementReport) (CreditOutcome, error) {
	logger.Warn("Settlement report does not match deposit, flagging for review",
		"reference", dep.Reference,
		"expected_amount", dep.Amount,
		"reported_amount", report.Amount,
		"expected_currency", dep.Currency,
		"reported_currency", report.Currency,
		"source", report.Source,
	)

	if err := s.depositRepo.SetFlagged(ctx, dep.Reference); err != nil {
		return "", err
	}

	if s.reviewPub != nil {
		flag := &shared.ReviewFlag{
			Reference:      dep.Reference,
			UserID:         dep.UserID,
			ExpectedAmount: dep.Amount,
			ReportedAmount: report.Amount,
			Currency:       report.Currency,
			Source:         report.Source,
			FlaggedAt:      time.Now(),
		}
		if err := s.reviewPub.Publish(ctx, dep.Reference, flag); err != nil {
			// The flag is already durable on the deposit row. Losing the
			// Kafka copy degrades alerting, not correctness.
			logger.Error("Failed to publish review flag", "reference", dep.Reference, "error", err)
		}
	}

	return OutcomeFlagged, nil
}

// NewAdjustmentReference generates a reference of the form ADJ-<random>-<timestamp>
func NewAdjustmentReference() string {
	random := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("ADJ-%s-%d", random, time.Now().UnixMilli())
}

// Adjustment is a manual balance correction made by an operator
type Adjustment struct {
	Reference     string
	UserID        uuid.UUID
	Amount        int64 // Pesewas, always positive; Debit picks the direction
	Debit         bool
	Reason        string
	CorrelationID string
}

// ApplyAdjustment credits or debits a wallet outside the deposit flow. Debits
// lock the wallet row first so the sufficient-funds check and the balance
// change are atomic; a debit can never take a balance negative.
func (s *Service) ApplyAdjustment(ctx context.Context, adj *Adjustment) (*shared.WalletEvent, error) {
	if adj.Amount <= 0 {
		return nil, ErrInvalidAdjustment
	}
	if adj.Reason == "" {
		return nil, ErrEmptyReason
	}

	logger := s.logger
	if adj.CorrelationID != "" {
		logger = s.logger.With("correlation_id", adj.CorrelationID)
	}

	if adj.Reference == "" {
		adj.Reference = NewAdjustmentReference()
	}

	var event *shared.WalletEvent
	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		walletRepoTx := s.walletRepo.WithTx(tx)
		outboxRepoTx := s.outboxRepo.WithTx(tx)

		delta := adj.Amount
		eventType := shared.EventTypeAdminCredit
		if !adj.Debit {
			// An admin credit may land before the user ever deposited.
			if err := walletRepoTx.Create(ctx, wallet.NewAccount(adj.UserID, shared.CurrencyGHS)); err != nil {
				return err
			}
		}
		if adj.Debit {
			locked, err := walletRepoTx.LockForUpdate(ctx, adj.UserID)
			if err != nil {
				return err
			}
			if !locked.CanDebit(adj.Amount) {
				return wallet.ErrInsufficientFunds
			}
			delta = -adj.Amount
			eventType = shared.EventTypeAdminDebit
		}

		balance, err := walletRepoTx.AddToBalance(ctx, adj.UserID, delta)
		if err != nil {
			return err
		}

		event = &shared.WalletEvent{
			EventID:       uuid.New(),
			Type:          eventType,
			UserID:        adj.UserID,
			Reference:     adj.Reference,
			Amount:        adj.Amount,
			Currency:      shared.CurrencyGHS,
			BalanceAfter:  balance,
			Reason:        adj.Reason,
			CorrelationID: adj.CorrelationID,
			OccurredAt:    time.Now(),
		}

		message, err := outbox.NewMessage(event)
		if err != nil {
			return fmt.Errorf("failed to build outbox message for %s: %w", adj.Reference, err)
		}
		return outboxRepoTx.Create(ctx, message)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Adjustment applied",
		"reference", adj.Reference,
		"user_id", adj.UserID.String(),
		"type", string(event.Type),
		"amount", adj.Amount,
		"balance_after", event.BalanceAfter,
	)

	s.invalidateAsync(adj.UserID)
	return event, nil
}

// invalidateAsync drops the user's cached projections without blocking the
// request path. The cache carries a short TTL, so a lost invalidation heals
// itself.
func (s *Service) invalidateAsync(userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			s.logger.Error("Failed to invalidate cache after balance change",
				"user_id", userID.String(),
				"error", err,
			)
		}
	}()
}
