package history

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages history entry persistence with pagination support
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*Entry, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ErrEntryNotFound indicates a missing history entry
type ErrEntryNotFound struct {
	EventID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "history entry not found: " + e.EventID.String()
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.EventID == uuid.Nil {
		return true
	}
	return e.EventID == t.EventID
}

// ErrDuplicateEntry indicates event uniqueness violation (idempotent replay)
type ErrDuplicateEntry struct {
	EventID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate history entry: " + e.EventID.String()
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.EventID == uuid.Nil {
		return true
	}
	return e.EventID == t.EventID
}
