package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/datamart-payments-ledger/internal/domain/history"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"
)

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Create(ctx context.Context, entry *history.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*history.Entry, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*history.Entry), args.Error(1)
}

func (m *MockHistoryRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*history.Entry, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*history.Entry), args.Error(1)
}

func (m *MockHistoryRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewHistoryRepository(t *testing.T) {
	db := &mongo.Database{}
	logger := slog.Default()

	repo := NewHistoryRepository(logger, db)

	assert.NotNil(t, repo)
	assert.IsType(t, &HistoryRepository{}, repo)
}

func TestMapInsertError(t *testing.T) {
	eventID := uuid.New()

	t.Run("duplicate key maps to ErrDuplicateEntry", func(t *testing.T) {
		// The shape the driver returns when the unique event_id index
		// rejects a redelivered projection write.
		writeErr := mongo.WriteException{
			WriteErrors: mongo.WriteErrors{
				{Code: 11000, Message: "E11000 duplicate key error"},
			},
		}

		err := mapInsertError(writeErr, eventID)

		var dup history.ErrDuplicateEntry
		assert.ErrorAs(t, err, &dup)
		assert.Equal(t, eventID, dup.EventID)
	})

	t.Run("other errors pass through wrapped", func(t *testing.T) {
		cause := errors.New("connection reset")

		err := mapInsertError(cause, eventID)

		assert.NotErrorIs(t, err, history.ErrDuplicateEntry{})
		assert.ErrorIs(t, err, cause)
	})
}

func TestHistoryRepository_Create(t *testing.T) {
	mockRepo := &MockHistoryRepository{}

	eventID := uuid.New()
	userID := uuid.New()
	entry := &history.Entry{
		EventID:      eventID,
		UserID:       userID,
		Reference:    "DEP-abc123-1700000000",
		Type:         shared.EventTypeDepositCredited,
		Amount:       1050,
		Currency:     shared.CurrencyGHS,
		BalanceAfter: 2050,
		OccurredAt:   time.Now(),
	}

	tests := []struct {
		name          string
		setupMocks    func()
		expectedError error
	}{
		{
			name: "successful creation",
			setupMocks: func() {
				mockRepo.On("Create", mock.Anything, entry).Return(nil)
			},
			expectedError: nil,
		},
		{
			name: "duplicate entry",
			setupMocks: func() {
				mockRepo.On("Create", mock.Anything, entry).Return(history.ErrDuplicateEntry{EventID: eventID})
			},
			expectedError: history.ErrDuplicateEntry{EventID: eventID},
		},
		{
			name: "database error",
			setupMocks: func() {
				mockRepo.On("Create", mock.Anything, entry).Return(errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo = &MockHistoryRepository{}
			tt.setupMocks()

			ctx := context.Background()
			err := mockRepo.Create(ctx, entry)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestHistoryRepository_GetByEventID(t *testing.T) {
	mockRepo := &MockHistoryRepository{}

	eventID := uuid.New()
	userID := uuid.New()
	entry := &history.Entry{
		EventID:      eventID,
		UserID:       userID,
		Reference:    "DEP-abc123-1700000000",
		Type:         shared.EventTypeDepositCredited,
		Amount:       1050,
		Currency:     shared.CurrencyGHS,
		BalanceAfter: 2050,
		OccurredAt:   time.Now(),
	}

	tests := []struct {
		name          string
		setupMocks    func()
		expectedEntry *history.Entry
		expectedError error
	}{
		{
			name: "entry found",
			setupMocks: func() {
				mockRepo.On("GetByEventID", mock.Anything, eventID).Return(entry, nil)
			},
			expectedEntry: entry,
			expectedError: nil,
		},
		{
			name: "entry not found",
			setupMocks: func() {
				mockRepo.On("GetByEventID", mock.Anything, eventID).Return(nil, history.ErrEntryNotFound{EventID: eventID})
			},
			expectedEntry: nil,
			expectedError: history.ErrEntryNotFound{EventID: eventID},
		},
		{
			name: "database error",
			setupMocks: func() {
				mockRepo.On("GetByEventID", mock.Anything, eventID).Return(nil, errors.New("db error"))
			},
			expectedEntry: nil,
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo = &MockHistoryRepository{}
			tt.setupMocks()

			ctx := context.Background()
			result, err := mockRepo.GetByEventID(ctx, eventID)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedEntry, result)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestHistoryRepository_GetByUserID(t *testing.T) {
	mockRepo := &MockHistoryRepository{}

	userID := uuid.New()
	entries := []*history.Entry{
		{
			EventID:      uuid.New(),
			UserID:       userID,
			Reference:    "DEP-aaa111-1700000000",
			Type:         shared.EventTypeDepositCredited,
			Amount:       2500,
			Currency:     shared.CurrencyGHS,
			BalanceAfter: 7500,
			OccurredAt:   time.Now(),
		},
		{
			EventID:      uuid.New(),
			UserID:       userID,
			Reference:    "ADJ-bbb222-1700000100",
			Type:         shared.EventTypeAdminCredit,
			Amount:       1000,
			Currency:     shared.CurrencyGHS,
			BalanceAfter: 8500,
			OccurredAt:   time.Now(),
		},
	}

	tests := []struct {
		name            string
		setupMocks      func()
		expectedEntries []*history.Entry
		expectedError   error
	}{
		{
			name: "entries found",
			setupMocks: func() {
				mockRepo.On("GetByUserID", mock.Anything, userID, 10, 0).Return(entries, nil)
			},
			expectedEntries: entries,
			expectedError:   nil,
		},
		{
			name: "no entries",
			setupMocks: func() {
				mockRepo.On("GetByUserID", mock.Anything, userID, 10, 0).Return([]*history.Entry{}, nil)
			},
			expectedEntries: []*history.Entry{},
			expectedError:   nil,
		},
		{
			name: "database error",
			setupMocks: func() {
				mockRepo.On("GetByUserID", mock.Anything, userID, 10, 0).Return(nil, errors.New("db error"))
			},
			expectedEntries: nil,
			expectedError:   errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo = &MockHistoryRepository{}
			tt.setupMocks()

			ctx := context.Background()
			result, err := mockRepo.GetByUserID(ctx, userID, 10, 0)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedEntries, result)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}
