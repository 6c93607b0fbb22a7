// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the payments ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// DepositRepository implements the deposit.Repository interface for PostgreSQL
type DepositRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewDepositRepository creates a new PostgreSQL deposit repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewDepositRepository(logger *slog.Logger, db *persistence.PostgresDB) deposit.Repository {
	return &DepositRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *DepositRepository) WithTx(tx pgx.Tx) deposit.Repository {
	return &DepositRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new pending deposit. The reference column carries a unique
// constraint, so a generated-reference collision surfaces as ErrDuplicateReference.
func (r *DepositRepository) Create(ctx context.Context, req *deposit.Request) error {
	query := `
		INSERT INTO deposits (reference, user_id, amount, currency, email, status, flagged, checkout_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		req.Reference,
		req.UserID,
		req.Amount,
		req.Currency,
		req.Email,
		req.Status,
		req.Flagged,
		req.CheckoutURL,
		req.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return deposit.ErrDuplicateReference{Reference: req.Reference}
		}
		r.logger.Error("Failed to create deposit", "reference", req.Reference, "error", err)
		return fmt.Errorf("failed to create deposit: %w", err)
	}

	return nil
}

// GetByReference retrieves a deposit by its reference
func (r *DepositRepository) GetByReference(ctx context.Context, reference string) (*deposit.Request, error) {
	query := `
		SELECT reference, user_id, amount, currency, email, status, flagged, checkout_url, created_at, completed_at
		FROM deposits
		WHERE reference = $1
	`

	var req deposit.Request
	err := r.querier.QueryRow(ctx, query, reference).Scan(
		&req.Reference,
		&req.UserID,
		&req.Amount,
		&req.Currency,
		&req.Email,
		&req.Status,
		&req.Flagged,
		&req.CheckoutURL,
		&req.CreatedAt,
		&req.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, deposit.ErrNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get deposit", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return &req, nil
}

// GetByReferenceForUser retrieves a deposit only when it belongs to the given
// user. A reference owned by someone else reads the same as a missing one.
func (r *DepositRepository) GetByReferenceForUser(ctx context.Context, reference string, userID uuid.UUID) (*deposit.Request, error) {
	query := `
		SELECT reference, user_id, amount, currency, email, status, flagged, checkout_url, created_at, completed_at
		FROM deposits
		WHERE reference = $1 AND user_id = $2
	`

	var req deposit.Request
	err := r.querier.QueryRow(ctx, query, reference, userID).Scan(
		&req.Reference,
		&req.UserID,
		&req.Amount,
		&req.Currency,
		&req.Email,
		&req.Status,
		&req.Flagged,
		&req.CheckoutURL,
		&req.CreatedAt,
		&req.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, deposit.ErrNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get deposit for user", "reference", reference, "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get deposit for user: %w", err)
	}

	return &req, nil
}

// MarkCompleted transitions a pending deposit to completed. The status guard in
// the WHERE clause is what makes the credit path idempotent: only one caller
// ever sees RowsAffected() == 1 for a given reference.
func (r *DepositRepository) MarkCompleted(ctx context.Context, reference string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE deposits
		SET status = $1, completed_at = $2
		WHERE reference = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, deposit.StatusCompleted, completedAt, reference, deposit.StatusPending)
	if err != nil {
		r.logger.Error("Failed to mark deposit completed", "reference", reference, "error", err)
		return false, fmt.Errorf("failed to mark deposit completed: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkFailed transitions a pending deposit to failed. Completed deposits are
// never demoted, so a late failure report after a successful credit is a no-op.
func (r *DepositRepository) MarkFailed(ctx context.Context, reference string) (bool, error) {
	query := `
		UPDATE deposits
		SET status = $1
		WHERE reference = $2 AND status = $3
	`

	result, err := r.querier.Exec(ctx, query, deposit.StatusFailed, reference, deposit.StatusPending)
	if err != nil {
		r.logger.Error("Failed to mark deposit failed", "reference", reference, "error", err)
		return false, fmt.Errorf("failed to mark deposit failed: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// SetFlagged records that the provider reported an amount that does not match
// the deposit. Flagged rows stay pending until an operator resolves them.
func (r *DepositRepository) SetFlagged(ctx context.Context, reference string) error {
	query := `
		UPDATE deposits
		SET flagged = TRUE
		WHERE reference = $1
	`

	result, err := r.querier.Exec(ctx, query, reference)
	if err != nil {
		r.logger.Error("Failed to flag deposit", "reference", reference, "error", err)
		return fmt.Errorf("failed to flag deposit: %w", err)
	}

	if result.RowsAffected() == 0 {
		return deposit.ErrNotFound{Reference: reference}
	}

	return nil
}

// GetStalePending returns pending deposits created before the cutoff, oldest
// first. Used by the reconciler and the expiry sweep. Flagged deposits are
// excluded: they sit with manual review, not with the background loops.
func (r *DepositRepository) GetStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*deposit.Request, error) {
	query := `
		SELECT reference, user_id, amount, currency, email, status, flagged, checkout_url, created_at, completed_at
		FROM deposits
		WHERE status = $1 AND flagged = FALSE AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, deposit.StatusPending, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to get stale pending deposits", "error", err)
		return nil, fmt.Errorf("failed to get stale pending deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*deposit.Request
	for rows.Next() {
		var req deposit.Request
		err := rows.Scan(
			&req.Reference,
			&req.UserID,
			&req.Amount,
			&req.Currency,
			&req.Email,
			&req.Status,
			&req.Flagged,
			&req.CheckoutURL,
			&req.CreatedAt,
			&req.CompletedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan stale pending deposit", "error", err)
			return nil, fmt.Errorf("failed to scan stale pending deposit: %w", err)
		}
		deposits = append(deposits, &req)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over stale pending deposits", "error", err)
		return nil, fmt.Errorf("error iterating over stale pending deposits: %w", err)
	}

	return deposits, nil
}

// SetCheckoutURL stores the provider's hosted checkout URL after initialization
func (r *DepositRepository) SetCheckoutURL(ctx context.Context, reference string, checkoutURL string) error {
	query := `
		UPDATE deposits
		SET checkout_url = $1
		WHERE reference = $2
	`

	result, err := r.querier.Exec(ctx, query, checkoutURL, reference)
	if err != nil {
		r.logger.Error("Failed to set deposit checkout URL", "reference", reference, "error", err)
		return fmt.Errorf("failed to set deposit checkout URL: %w", err)
	}

	if result.RowsAffected() == 0 {
		return deposit.ErrNotFound{Reference: reference}
	}

	return nil
}
