package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidEventType = errors.New("invalid wallet event type")
	ErrInvalidCurrency  = errors.New("invalid currency")
)

// EventType defines the kinds of wallet events flowing through the outbox
type EventType string

const (
	EventTypeDepositCredited  EventType = "DEPOSIT_CREDITED"
	EventTypeDepositFailed    EventType = "DEPOSIT_FAILED"
	EventTypeAdminCredit      EventType = "ADMIN_CREDIT"
	EventTypeAdminDebit       EventType = "ADMIN_DEBIT"
	EventTypeFlaggedForReview EventType = "FLAGGED_FOR_REVIEW"
)

// WalletEvent describes a single balance-affecting occurrence. Events are
// written to the transactional outbox in the same database transaction as the
// balance change, then published to Kafka and projected into the history store.
type WalletEvent struct {
	EventID       uuid.UUID `json:"event_id"`
	Type          EventType `json:"type"`
	UserID        uuid.UUID `json:"user_id"`
	Reference     string    `json:"reference"`
	Amount        int64     `json:"amount"` // Pesewas (minor units)
	Currency      string    `json:"currency"`
	BalanceAfter  int64     `json:"balance_after"`
	Reason        string    `json:"reason,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// IsCredit reports whether the event increased the wallet balance.
func (e *WalletEvent) IsCredit() bool {
	return e.Type == EventTypeDepositCredited || e.Type == EventTypeAdminCredit
}

// ReviewFlag is published to the review topic when a provider-reported amount
// does not match the deposit's expected amount. It is never applied to a
// wallet; a human resolves it.
type ReviewFlag struct {
	Reference      string    `json:"reference"`
	UserID         uuid.UUID `json:"user_id"`
	ExpectedAmount int64     `json:"expected_amount"`
	ReportedAmount int64     `json:"reported_amount"`
	Currency       string    `json:"currency"`
	Source         string    `json:"source"` // "webhook" or "verification"
	FlaggedAt      time.Time `json:"flagged_at"`
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
