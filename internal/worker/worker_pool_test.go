package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWorkerPoolProjectionService_ProjectEvent(t *testing.T) {
	logger := slog.Default()

	event := creditedEvent()

	tests := []struct {
		name          string
		setupMocks    func(m *MockProjectionService)
		expectedError error
	}{
		{
			name: "successful projection",
			setupMocks: func(m *MockProjectionService) {
				m.On("ProjectEvent", mock.Anything, event).Return(nil).Once()
			},
			expectedError: nil,
		},
		{
			name: "projection error",
			setupMocks: func(m *MockProjectionService) {
				m.On("ProjectEvent", mock.Anything, event).Return(errors.New("projection error")).Once()
			},
			expectedError: errors.New("projection error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBaseService := &MockProjectionService{}

			poolService, err := NewWorkerPoolProjectionService(
				mockBaseService,
				WorkerPoolConfig{
					Size: 2,
				},
				logger,
			)
			assert.NoError(t, err)
			defer poolService.Shutdown()

			tt.setupMocks(mockBaseService)
			ctx := context.Background()

			err = poolService.ProjectEvent(ctx, event)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
			}

			mockBaseService.AssertExpectations(t)
		})
	}
}

func TestWorkerPoolProjectionService_Concurrency(t *testing.T) {
	mockBaseService := &MockProjectionService{}
	logger := slog.Default()

	poolService, err := NewWorkerPoolProjectionService(
		mockBaseService,
		WorkerPoolConfig{
			Size: 5,
		},
		logger,
	)
	assert.NoError(t, err)
	defer poolService.Shutdown()

	var mu sync.Mutex
	counter := 0

	mockBaseService.On("ProjectEvent", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		// Simulate projection work
		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		counter++
		mu.Unlock()
	}).Return(nil)

	numEvents := 10
	var wg sync.WaitGroup
	wg.Add(numEvents)

	for i := 0; i < numEvents; i++ {
		go func(i int) {
			defer wg.Done()

			event := &shared.WalletEvent{
				EventID:      uuid.New(),
				Type:         shared.EventTypeDepositCredited,
				UserID:       uuid.New(),
				Reference:    fmt.Sprintf("DEP-conc-%d", i),
				Amount:       1050,
				Currency:     shared.CurrencyGHS,
				BalanceAfter: 1050,
			}

			ctx := context.Background()
			err := poolService.ProjectEvent(ctx, event)
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	assert.Equal(t, numEvents, counter)

	// The pool survives the burst at its configured capacity
	assert.True(t, poolService.Running() > 0)
	assert.Equal(t, 5, poolService.Capacity())
}
