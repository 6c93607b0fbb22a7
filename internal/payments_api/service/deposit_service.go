package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cache "github.com/datamart-payments-ledger/internal/data/redis"
	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/domain/user"
	"github.com/datamart-payments-ledger/internal/domain/wallet"
	"github.com/datamart-payments-ledger/internal/ledger"
	"github.com/datamart-payments-ledger/internal/platform/paystack"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutInitializer is the slice of the Paystack client deposit creation needs
type CheckoutInitializer interface {
	InitializeTransaction(ctx context.Context, email string, amount int64, currency, reference string) (*paystack.Checkout, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// DepositServiceImpl implements DepositService
type DepositServiceImpl struct {
	depositRepo deposit.Repository
	userRepo    user.Repository
	walletRepo  wallet.Repository
	provider    CheckoutInitializer
	settler     SettlementApplier
	cache       ProjectionCache
	userTTL     time.Duration
	logger      *slog.Logger
}

// NewDepositService creates a new deposit service. cache may be nil when the
// deployment runs without Redis.
func NewDepositService(
	depositRepo deposit.Repository,
	userRepo user.Repository,
	walletRepo wallet.Repository,
	provider CheckoutInitializer,
	settler SettlementApplier,
	cacheStore ProjectionCache,
	userTTL time.Duration,
	logger *slog.Logger,
) DepositService {
	return &DepositServiceImpl{
		depositRepo: depositRepo,
		userRepo:    userRepo,
		walletRepo:  walletRepo,
		provider:    provider,
		settler:     settler,
		cache:       cacheStore,
		userTTL:     userTTL,
		logger:      logger,
	}
}

// lookupUser resolves a user through the projection cache. User records change
// rarely, so they carry a longer TTL than wallet data; cache failures fall
// through to Postgres and never fail the request.
func (s *DepositServiceImpl) lookupUser(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	if s.cache != nil {
		var cached user.User
		err := s.cache.Get(ctx, cache.UserKey(userID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("User cache read failed, falling through", "user_id", userID.String(), "error", err)
		}
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.UserKey(userID), u, s.userTTL); err != nil {
			s.logger.Warn("User cache write failed", "user_id", userID.String(), "error", err)
		}
	}

	return u, nil
}

// CreateDeposit inserts a pending deposit and obtains a checkout URL.
// The wallet is not touched here; the credit happens only when the provider
// confirms payment via webhook or verification.
func (s *DepositServiceImpl) CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*deposit.Request, error) {
	pesewas, err := shared.ToPesewas(amount)
	if err != nil {
		return nil, err
	}

	u, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	dep, err := deposit.NewRequest(u.ID, pesewas, shared.CurrencyGHS, u.Email)
	if err != nil {
		return nil, err
	}

	if err := s.depositRepo.Create(ctx, dep); err != nil {
		return nil, err
	}

	checkout, err := s.provider.InitializeTransaction(ctx, dep.Email, dep.Amount, dep.Currency, dep.Reference)
	if err != nil {
		// The provider never saw this reference, so the row can never settle.
		// Fail it now rather than leaving it for the expiry sweep.
		if _, markErr := s.depositRepo.MarkFailed(ctx, dep.Reference); markErr != nil {
			s.logger.Error("Failed to mark deposit failed after checkout initialization error",
				"reference", dep.Reference,
				"error", markErr,
			)
		}
		return nil, err
	}

	if err := s.depositRepo.SetCheckoutURL(ctx, dep.Reference, checkout.AuthorizationURL); err != nil {
		// The checkout still works; the stored URL is only for support lookups.
		s.logger.Error("Failed to store checkout URL", "reference", dep.Reference, "error", err)
	}
	dep.CheckoutURL = checkout.AuthorizationURL

	s.logger.Info("Deposit initiated",
		"reference", dep.Reference,
		"user_id", userID.String(),
		"amount", dep.Amount,
	)
	return dep, nil
}

// VerifyDeposit resolves the settlement state of the caller's deposit. Lookup
// is scoped to the calling user so references never leak across accounts.
func (s *DepositServiceImpl) VerifyDeposit(ctx context.Context, userID uuid.UUID, reference string, correlationID string) (*VerificationResult, error) {
	dep, err := s.depositRepo.GetByReferenceForUser(ctx, reference, userID)
	if err != nil {
		return nil, err
	}

	// Terminal deposits answer from local state without a provider round trip.
	if dep.IsFinal() {
		result := &VerificationResult{Reference: dep.Reference, Status: dep.Status, Flagged: dep.Flagged}
		return result, nil
	}

	tx, err := s.provider.VerifyTransaction(ctx, reference)
	if err != nil {
		// Unreachable provider leaves the deposit pending. The reconciler or a
		// later poll settles it.
		return nil, err
	}

	switch tx.Status {
	case paystack.TxStatusSuccess:
		paidAt := time.Now()
		if tx.PaidAt != nil {
			paidAt = *tx.PaidAt
		}
		outcome, err := s.settler.ApplySettlement(ctx, &ledger.SettlementReport{
			Reference:     reference,
			Succeeded:     true,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			PaidAt:        paidAt,
			Source:        "verification",
			CorrelationID: correlationID,
		})
		if err != nil {
			return nil, err
		}

		switch outcome {
		case ledger.OutcomeCredited:
			account, err := s.walletRepo.GetByUserID(ctx, userID)
			if err != nil {
				// The credit committed; only the balance readback failed.
				s.logger.Error("Failed to read balance after credit", "reference", reference, "error", err)
				return &VerificationResult{Reference: reference, Status: deposit.StatusCompleted}, nil
			}
			balance := account.Balance
			return &VerificationResult{Reference: reference, Status: deposit.StatusCompleted, NewBalance: &balance}, nil
		case ledger.OutcomeFlagged:
			return &VerificationResult{Reference: reference, Status: deposit.StatusPending, Flagged: true}, nil
		default:
			return &VerificationResult{Reference: reference, Status: deposit.StatusCompleted}, nil
		}

	case paystack.TxStatusFailed, paystack.TxStatusAbandoned:
		if _, err := s.settler.ApplySettlement(ctx, &ledger.SettlementReport{
			Reference:     reference,
			Succeeded:     false,
			Source:        "verification",
			CorrelationID: correlationID,
		}); err != nil {
			return nil, err
		}
		return &VerificationResult{Reference: reference, Status: deposit.StatusFailed}, nil

	default:
		// Still processing on the provider side.
		return &VerificationResult{Reference: reference, Status: deposit.StatusPending}, nil
	}
}

// IsUpstreamError reports whether the error came from the provider being unreachable
func IsUpstreamError(err error) bool {
	return errors.Is(err, paystack.ErrUpstream)
}
