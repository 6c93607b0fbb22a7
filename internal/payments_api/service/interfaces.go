package service

import (
	"context"

	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/domain/history"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/domain/wallet"
	"github.com/datamart-payments-ledger/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VerificationResult is the outcome of checking a deposit's settlement state
type VerificationResult struct {
	Reference string
	Status    deposit.Status
	Flagged   bool

	// NewBalance is set only when this verification call completed the deposit
	// and credited the wallet.
	NewBalance *int64
}

// DepositService defines deposit initiation and verification operations
type DepositService interface {
	// CreateDeposit validates the amount and user, inserts a pending deposit
	// and obtains a hosted checkout URL from the payment provider.
	// Returns user.ErrUserNotFound for unknown users and
	// shared.ErrNonPositiveAmount / shared.ErrTooPrecise for bad amounts.
	CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*deposit.Request, error)

	// VerifyDeposit resolves the current settlement state of the caller's
	// deposit, consulting the provider only while the deposit is pending.
	// Returns deposit.ErrNotFound when the reference does not belong to the
	// caller and paystack.ErrUpstream when the provider cannot be reached.
	VerifyDeposit(ctx context.Context, userID uuid.UUID, reference string, correlationID string) (*VerificationResult, error)
}

// SettlementApplier is the slice of the ledger engine the API needs
type SettlementApplier interface {
	ApplySettlement(ctx context.Context, report *ledger.SettlementReport) (ledger.CreditOutcome, error)
}

// AdjustmentApplier is the slice of the ledger engine the admin surface needs
type AdjustmentApplier interface {
	ApplyAdjustment(ctx context.Context, adj *ledger.Adjustment) (*shared.WalletEvent, error)
}

// WalletService defines wallet read operations
type WalletService interface {
	// GetBalance returns the user's wallet, read through the projection cache
	GetBalance(ctx context.Context, userID uuid.UUID) (*wallet.Account, error)

	// GetTransactions returns a page of wallet history entries, newest first,
	// together with the total entry count.
	GetTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*history.Entry, int64, error)
}

// AdminService defines operator balance adjustments
type AdminService interface {
	// AddMoney credits the user's wallet outside the deposit flow.
	// Returns the adjustment event carrying the new balance.
	AddMoney(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, correlationID string) (*shared.WalletEvent, error)

	// DeductMoney debits the user's wallet. Returns wallet.ErrInsufficientFunds
	// when the balance cannot cover the debit.
	DeductMoney(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, correlationID string) (*shared.WalletEvent, error)
}
