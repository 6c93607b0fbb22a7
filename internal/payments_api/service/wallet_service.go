package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cache "github.com/datamart-payments-ledger/internal/data/redis"
	"github.com/datamart-payments-ledger/internal/domain/history"
	"github.com/datamart-payments-ledger/internal/domain/wallet"
	"github.com/google/uuid"
)

// ProjectionCache is the slice of the Redis cache wallet reads need
type ProjectionCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// WalletServiceImpl implements WalletService
type WalletServiceImpl struct {
	walletRepo  wallet.Repository
	historyRepo history.Repository
	cache       ProjectionCache
	walletTTL   time.Duration
	logger      *slog.Logger
}

// NewWalletService creates a new wallet read service. cache may be nil when
// the deployment runs without Redis.
func NewWalletService(
	walletRepo wallet.Repository,
	historyRepo history.Repository,
	cache ProjectionCache,
	walletTTL time.Duration,
	logger *slog.Logger,
) WalletService {
	return &WalletServiceImpl{
		walletRepo:  walletRepo,
		historyRepo: historyRepo,
		cache:       cache,
		walletTTL:   walletTTL,
		logger:      logger,
	}
}

// GetBalance returns the user's wallet, read through the projection cache.
// Cache failures fall through to Postgres; they never fail the request.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*wallet.Account, error) {
	if s.cache != nil {
		var cached wallet.Account
		err := s.cache.Get(ctx, cache.WalletKey(userID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Wallet cache read failed, falling through", "user_id", userID.String(), "error", err)
		}
	}

	account, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.WalletKey(userID), account, s.walletTTL); err != nil {
			s.logger.Warn("Wallet cache write failed", "user_id", userID.String(), "error", err)
		}
	}

	return account, nil
}

// GetTransactions returns a page of the user's wallet history, newest first
func (s *WalletServiceImpl) GetTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*history.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.historyRepo.GetByUserID(ctx, userID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.historyRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
