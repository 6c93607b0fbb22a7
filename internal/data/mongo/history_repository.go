package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/datamart-payments-ledger/internal/domain/history"
)

const (
	// HistoryCollectionName is the name of the wallet history collection in MongoDB
	HistoryCollectionName = "wallet_history"
)

// HistoryRepository implements the history.Repository interface for MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique index on event_id that makes history
// writes idempotent under concurrent Kafka redelivery. Called once at worker
// startup.
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(HistoryCollectionName)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		r.logger.Error("Failed to create history indexes", "error", err)
		return fmt.Errorf("failed to create history indexes: %w", err)
	}

	return nil
}

// Create stores a new history entry. The unique index on event_id turns a
// concurrent redelivery into a duplicate-key error, which is mapped to
// ErrDuplicateEntry so the consumer treats it as a no-op.
func (r *HistoryRepository) Create(ctx context.Context, entry *history.Entry) error {
	collection := r.db.Collection(HistoryCollectionName)

	_, err := collection.InsertOne(ctx, entry)
	if err != nil {
		mapped := mapInsertError(err, entry.EventID)
		if !errors.Is(mapped, history.ErrDuplicateEntry{}) {
			r.logger.Error("Failed to create history entry",
				"event_id", entry.EventID.String(),
				"error", err)
		}
		return mapped
	}

	return nil
}

// mapInsertError translates a duplicate-key violation on the event_id index
// into ErrDuplicateEntry; anything else is a real write failure.
func mapInsertError(err error, eventID uuid.UUID) error {
	if mongo.IsDuplicateKeyError(err) {
		return history.ErrDuplicateEntry{EventID: eventID}
	}
	return fmt.Errorf("failed to create history entry: %w", err)
}

// GetByEventID retrieves a history entry by its event ID.
// Returns ErrEntryNotFound if no entry exists for the given event.
func (r *HistoryRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*history.Entry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"event_id": eventID}
	var entry history.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, history.ErrEntryNotFound{EventID: eventID}
		}
		r.logger.Error("Failed to get history entry",
			"event_id", eventID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}

	return &entry, nil
}

// GetByUserID retrieves paginated history entries for a user.
// Results are sorted by occurrence time in descending order (newest first).
func (r *HistoryRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*history.Entry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"user_id": userID}
	opts := options.Find().
		SetSort(bson.M{"occurred_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get history entries",
			"user_id", userID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*history.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode history entries",
			"user_id", userID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}

	return entries, nil
}

// CountByUserID counts the total number of history entries for a user
func (r *HistoryRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"user_id": userID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count history entries",
			"user_id", userID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	return count, nil
}
