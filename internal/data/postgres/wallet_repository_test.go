package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datamart-payments-ledger/internal/domain/shared"
	"github.com/datamart-payments-ledger/internal/domain/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	account := wallet.NewAccount(uuid.New(), shared.CurrencyGHS)

	query := `
		INSERT INTO wallets \(user_id, balance, currency, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5\)
		ON CONFLICT \(user_id\) DO NOTHING
	`

	t.Run("creates a fresh wallet", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(account.UserID, account.Balance, account.Currency, account.CreatedAt, account.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, account))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing wallet is left untouched", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(account.UserID, account.Balance, account.Currency, account.CreatedAt, account.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		assert.NoError(t, repo.Create(ctx, account))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(account.UserID, account.Balance, account.Currency, account.CreatedAt, account.UpdatedAt).
			WillReturnError(errors.New("connection refused"))

		assert.Error(t, repo.Create(ctx, account))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_GetByUserID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	userID := uuid.New()
	now := time.Now()

	expected := &wallet.Account{
		UserID:    userID,
		Balance:   12500,
		Currency:  shared.CurrencyGHS,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		SELECT user_id, balance, currency, created_at, updated_at
		FROM wallets
		WHERE user_id = \$1
	`
	rows := pgxmock.NewRows([]string{"user_id", "balance", "currency", "created_at", "updated_at"}).
		AddRow(expected.UserID, expected.Balance, expected.Currency, expected.CreatedAt, expected.UpdatedAt)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID).WillReturnRows(rows)

		got, err := repo.GetByUserID(ctx, userID)
		assert.NoError(t, err)
		assert.Equal(t, expected, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID).WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByUserID(ctx, userID)
		assert.Error(t, err)
		assert.Nil(t, got)
		var notFoundErr wallet.ErrWalletNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, userID, notFoundErr.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_AddToBalance(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	userID := uuid.New()

	query := `
		UPDATE wallets
		SET balance = balance \+ \$1, updated_at = NOW\(\)
		WHERE user_id = \$2
		RETURNING balance
	`

	t.Run("credit returns new balance", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"balance"}).AddRow(int64(17500))
		mock.ExpectQuery(query).WithArgs(int64(5000), userID).WillReturnRows(rows)

		balance, err := repo.AddToBalance(ctx, userID, 5000)
		assert.NoError(t, err)
		assert.Equal(t, int64(17500), balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debit applies negative delta", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"balance"}).AddRow(int64(12500))
		mock.ExpectQuery(query).WithArgs(int64(-5000), userID).WillReturnRows(rows)

		balance, err := repo.AddToBalance(ctx, userID, -5000)
		assert.NoError(t, err)
		assert.Equal(t, int64(12500), balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wallet missing", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(int64(5000), userID).WillReturnError(pgx.ErrNoRows)

		balance, err := repo.AddToBalance(ctx, userID, 5000)
		assert.Error(t, err)
		assert.Zero(t, balance)
		var notFoundErr wallet.ErrWalletNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectQuery(query).WithArgs(int64(5000), userID).WillReturnError(expectedErr)

		_, err := repo.AddToBalance(ctx, userID, 5000)
		assert.Error(t, err)
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	userID := uuid.New()
	now := time.Now()

	query := `
		SELECT user_id, balance, currency, created_at, updated_at
		FROM wallets
		WHERE user_id = \$1
		FOR UPDATE
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"user_id", "balance", "currency", "created_at", "updated_at"}).
			AddRow(userID, int64(12500), shared.CurrencyGHS, now, now)
		mock.ExpectQuery(query).WithArgs(userID).WillReturnRows(rows)

		account, err := repo.LockForUpdate(ctx, userID)
		assert.NoError(t, err)
		assert.Equal(t, int64(12500), account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID).WillReturnError(pgx.ErrNoRows)

		account, err := repo.LockForUpdate(ctx, userID)
		assert.Error(t, err)
		assert.Nil(t, account)
		var notFoundErr wallet.ErrWalletNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
