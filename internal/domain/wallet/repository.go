package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines wallet persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Account, error)

	// AddToBalance applies a signed delta and returns the resulting balance.
	// Callers are responsible for holding the row lock (or running inside the
	// ledger's conditional-update transaction) so the delta is applied exactly
	// once per reference.
	AddToBalance(ctx context.Context, userID uuid.UUID, delta int64) (int64, error)

	// LockForUpdate acquires a pessimistic lock for debit processing
	LockForUpdate(ctx context.Context, userID uuid.UUID) (*Account, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrWalletNotFound indicates a missing wallet
type ErrWalletNotFound struct {
	UserID uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found for user: " + e.UserID.String()
}

// Is implements the errors.Is interface for ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	if t.UserID == uuid.Nil {
		return true
	}
	return e.UserID == t.UserID
}
