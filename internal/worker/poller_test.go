package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/datamart-payments-ledger/internal/domain/outbox"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockOutboxRepo for testing
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByEventID(ctx context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

// MockEventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockDLQPublisher for testing
type MockDLQPublisher struct {
	mock.Mock
}

func (m *MockDLQPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDLQPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func pendingOutboxMessage(t *testing.T, id int64) *outbox.Message {
	t.Helper()
	userID := uuid.New()
	event := &shared.WalletEvent{
		EventID:      uuid.New(),
		Type:         shared.EventTypeDepositCredited,
		UserID:       userID,
		Reference:    "DEP-abc-1",
		Amount:       1050,
		Currency:     shared.CurrencyGHS,
		BalanceAfter: 1050,
		OccurredAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	assert.NoError(t, err)

	return &outbox.Message{
		ID:        id,
		EventID:   event.EventID,
		UserID:    userID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
}

func TestOutboxPoller_ProcessPendingMessages(t *testing.T) {
	logger := slog.Default()
	cfg := &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}

	t.Run("publishes pending messages keyed by user and marks them processed", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		publisher := &MockEventPublisher{}
		poller := NewOutboxPoller(cfg, outboxRepo, publisher, nil, logger)

		msg1 := pendingOutboxMessage(t, 1)
		msg2 := pendingOutboxMessage(t, 2)

		outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{msg1, msg2}, nil).Once()
		publisher.On("Publish", mock.Anything, msg1.UserID.String(), mock.Anything).Return(nil).Once()
		publisher.On("Publish", mock.Anything, msg2.UserID.String(), mock.Anything).Return(nil).Once()
		outboxRepo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusProcessed).Return(nil).Once()
		outboxRepo.On("UpdateStatus", mock.Anything, int64(2), shared.OutboxStatusProcessed).Return(nil).Once()

		err := poller.processPendingMessages(context.Background())
		assert.NoError(t, err)
		outboxRepo.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("publish failure increments attempts and keeps the row pending", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		publisher := &MockEventPublisher{}
		poller := NewOutboxPoller(cfg, outboxRepo, publisher, nil, logger)

		msg := pendingOutboxMessage(t, 7)

		outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{msg}, nil).Once()
		publisher.On("Publish", mock.Anything, msg.UserID.String(), mock.Anything).Return(errors.New("broker down")).Once()
		outboxRepo.On("IncrementAttempts", mock.Anything, int64(7)).Return(nil).Once()

		err := poller.processPendingMessages(context.Background())
		assert.NoError(t, err)
		outboxRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, int64(7), shared.OutboxStatusProcessed)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("exhausted retries mark FAILED_TO_PUBLISH and route to DLQ", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		publisher := &MockEventPublisher{}
		dlq := &MockDLQPublisher{}
		poller := NewOutboxPoller(cfg, outboxRepo, publisher, dlq, logger)

		msg := pendingOutboxMessage(t, 9)
		msg.Attempts = 2 // one short of the limit

		outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{msg}, nil).Once()
		publisher.On("Publish", mock.Anything, msg.UserID.String(), mock.Anything).Return(errors.New("broker down")).Once()
		outboxRepo.On("IncrementAttempts", mock.Anything, int64(9)).Return(nil).Once()
		outboxRepo.On("UpdateStatus", mock.Anything, int64(9), shared.OutboxStatusFailedToPublish).Return(nil).Once()
		dlq.On("PublishToDLQ", mock.Anything, msg.UserID.String(), []byte(msg.Payload), mock.AnythingOfType("string")).Return(nil).Once()

		err := poller.processPendingMessages(context.Background())
		assert.NoError(t, err)
		outboxRepo.AssertExpectations(t)
		dlq.AssertExpectations(t)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		publisher := &MockEventPublisher{}
		poller := NewOutboxPoller(cfg, outboxRepo, publisher, nil, logger)

		outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil).Once()

		err := poller.processPendingMessages(context.Background())
		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fetch failure is surfaced", func(t *testing.T) {
		outboxRepo := &MockOutboxRepo{}
		publisher := &MockEventPublisher{}
		poller := NewOutboxPoller(cfg, outboxRepo, publisher, nil, logger)

		outboxRepo.On("GetPending", mock.Anything, 10).Return(nil, errors.New("db down")).Once()

		err := poller.processPendingMessages(context.Background())
		assert.Error(t, err)
	})
}
