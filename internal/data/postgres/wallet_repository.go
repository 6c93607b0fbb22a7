package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datamart-payments-ledger/internal/domain/wallet"
	"github.com/datamart-payments-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new wallet account with a zero balance. Creation is
// idempotent: a wallet that already exists is left untouched, so the ledger
// can provision lazily on the first credit without a separate existence check.
func (r *WalletRepository) Create(ctx context.Context, account *wallet.Account) error {
	query := `
		INSERT INTO wallets (user_id, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query,
		account.UserID,
		account.Balance,
		account.Currency,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create wallet", "user_id", account.UserID.String(), "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByUserID retrieves a wallet by its owning user
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*wallet.Account, error) {
	query := `
		SELECT user_id, balance, currency, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`

	var account wallet.Account
	err := r.querier.QueryRow(ctx, query, userID).Scan(
		&account.UserID,
		&account.Balance,
		&account.Currency,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{UserID: userID}
		}
		r.logger.Error("Failed to get wallet", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &account, nil
}

// AddToBalance applies a signed delta to the wallet balance and returns the
// resulting balance. The increment happens in a single statement so concurrent
// credits never lose an update.
func (r *WalletRepository) AddToBalance(ctx context.Context, userID uuid.UUID, delta int64) (int64, error) {
	query := `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING balance
	`

	var balance int64
	err := r.querier.QueryRow(ctx, query, delta, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, wallet.ErrWalletNotFound{UserID: userID}
		}
		r.logger.Error("Failed to update wallet balance", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	return balance, nil
}

// LockForUpdate obtains a pessimistic lock on the wallet and returns its current
// state. Debits take this lock inside a transaction so the sufficient-funds
// check and the balance change are atomic.
func (r *WalletRepository) LockForUpdate(ctx context.Context, userID uuid.UUID) (*wallet.Account, error) {
	query := `
		SELECT user_id, balance, currency, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`

	var account wallet.Account
	err := r.querier.QueryRow(ctx, query, userID).Scan(
		&account.UserID,
		&account.Balance,
		&account.Currency,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{UserID: userID}
		}
		r.logger.Error("Failed to lock wallet for update", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet for update: %w", err)
	}

	return &account, nil
}
