package deposit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines deposit persistence operations
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByReference(ctx context.Context, reference string) (*Request, error)

	// GetByReferenceForUser scopes the lookup to the owning user so one
	// customer can never observe another customer's deposit.
	GetByReferenceForUser(ctx context.Context, reference string, userID uuid.UUID) (*Request, error)

	// MarkCompleted atomically transitions pending -> completed. It reports
	// true only for the single caller that wins the transition; every other
	// caller (webhook retry, racing verification poll) gets false.
	MarkCompleted(ctx context.Context, reference string, completedAt time.Time) (bool, error)

	// MarkFailed atomically transitions pending -> failed.
	MarkFailed(ctx context.Context, reference string) (bool, error)

	// SetFlagged records that the provider reported a mismatched amount.
	SetFlagged(ctx context.Context, reference string) error

	// GetStalePending returns pending deposits created before the cutoff,
	// oldest first, for the background reconciler and the expiry sweep.
	GetStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Request, error)

	SetCheckoutURL(ctx context.Context, reference string, checkoutURL string) error
	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing deposit
type ErrNotFound struct {
	Reference string
}

func (e ErrNotFound) Error() string {
	return "deposit not found: " + e.Reference
}

// Is implements the errors.Is interface for ErrNotFound
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	// An empty target reference matches any ErrNotFound
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}

// ErrDuplicateReference indicates a reference uniqueness violation
type ErrDuplicateReference struct {
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "duplicate deposit reference: " + e.Reference
}
