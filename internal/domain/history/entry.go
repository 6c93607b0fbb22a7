package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/datamart-payments-ledger/internal/domain/shared"
)

// Entry is the read-side projection of a wallet event, stored in MongoDB and
// served by the transaction-history endpoint. It is written by the worker's
// event consumer, never by request handlers.
type Entry struct {
	EventID      uuid.UUID        `json:"event_id" bson:"event_id"`
	UserID       uuid.UUID        `json:"user_id" bson:"user_id"`
	Reference    string           `json:"reference" bson:"reference"`
	Type         shared.EventType `json:"type" bson:"type"`
	Amount       int64            `json:"amount" bson:"amount"` // Pesewas (minor units)
	Currency     string           `json:"currency" bson:"currency"`
	BalanceAfter int64            `json:"balance_after" bson:"balance_after"`
	Reason       string           `json:"reason,omitempty" bson:"reason,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at" bson:"occurred_at"`
	ProjectedAt  time.Time        `json:"projected_at" bson:"projected_at"`
}

// FromEvent builds a history entry from a wallet event.
func FromEvent(ev *shared.WalletEvent) *Entry {
	return &Entry{
		EventID:      ev.EventID,
		UserID:       ev.UserID,
		Reference:    ev.Reference,
		Type:         ev.Type,
		Amount:       ev.Amount,
		Currency:     ev.Currency,
		BalanceAfter: ev.BalanceAfter,
		Reason:       ev.Reason,
		OccurredAt:   ev.OccurredAt,
		ProjectedAt:  time.Now(),
	}
}
