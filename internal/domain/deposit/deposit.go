package deposit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrEmptyEmail      = errors.New("email cannot be empty")
	ErrAmountMismatch  = errors.New("provider-reported amount does not match deposit")
	ErrAlreadyFinal    = errors.New("deposit is already in a terminal state")
	ErrStillProcessing = errors.New("deposit is still processing")
)

// Status represents a deposit's lifecycle state. Pending transitions to exactly
// one of the terminal states, never back.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Request is a customer's intent to fund their wallet via the hosted checkout.
// The reference doubles as the idempotency key for the eventual credit: the
// wallet is mutated at most once per reference no matter how many webhook
// retries or verification polls arrive.
type Request struct {
	Reference   string     `json:"reference"`
	UserID      uuid.UUID  `json:"user_id"`
	Amount      int64      `json:"amount"` // Pesewas (minor units)
	Currency    string     `json:"currency"`
	Email       string     `json:"email"`
	Status      Status     `json:"status"`
	Flagged     bool       `json:"flagged"` // Set when the provider reported a mismatched amount
	CheckoutURL string     `json:"checkout_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRequest creates a pending deposit with a freshly generated reference.
func NewRequest(userID uuid.UUID, amount int64, currency, email string) (*Request, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if email == "" {
		return nil, ErrEmptyEmail
	}

	return &Request{
		Reference: NewReference(),
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Email:     email,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}, nil
}

// NewReference generates a deposit reference of the form
// DEP-<random>-<timestamp>. The random segment keeps references unguessable;
// the timestamp keeps them roughly sortable for support staff.
func NewReference() string {
	random := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("DEP-%s-%d", random, time.Now().UnixMilli())
}

// IsFinal reports whether the deposit has reached a terminal state.
func (r *Request) IsFinal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// MatchesAmount checks the provider-reported minor-unit amount against the
// amount the deposit was created for.
func (r *Request) MatchesAmount(reported int64) bool {
	return r.Amount == reported
}
