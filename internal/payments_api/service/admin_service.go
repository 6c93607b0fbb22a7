package service

import (
	"context"
	"log/slog"

	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/domain/user"
	"github.com/datamart-payments-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdminServiceImpl implements AdminService
type AdminServiceImpl struct {
	userRepo user.Repository
	adjuster AdjustmentApplier
	logger   *slog.Logger
}

// NewAdminService creates a new admin adjustment service
func NewAdminService(userRepo user.Repository, adjuster AdjustmentApplier, logger *slog.Logger) AdminService {
	return &AdminServiceImpl{
		userRepo: userRepo,
		adjuster: adjuster,
		logger:   logger,
	}
}

func (s *AdminServiceImpl) adjust(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, debit bool, reason, correlationID string) (*shared.WalletEvent, error) {
	pesewas, err := shared.ToPesewas(amount)
	if err != nil {
		return nil, err
	}

	// Resolve the user first so a typo'd ID reads as 404, not a missing wallet.
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	return s.adjuster.ApplyAdjustment(ctx, &ledger.Adjustment{
		UserID:        userID,
		Amount:        pesewas,
		Debit:         debit,
		Reason:        reason,
		CorrelationID: correlationID,
	})
}

// AddMoney credits the user's wallet outside the deposit flow
func (s *AdminServiceImpl) AddMoney(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, correlationID string) (*shared.WalletEvent, error) {
	return s.adjust(ctx, userID, amount, false, reason, correlationID)
}

// DeductMoney debits the user's wallet, rejecting debits the balance cannot cover
func (s *AdminServiceImpl) DeductMoney(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, correlationID string) (*shared.WalletEvent, error) {
	return s.adjust(ctx, userID, amount, true, reason, correlationID)
}
