package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	store  ports.Store
	cache  ports.WalletCache
	atomic atomicRunner
	hooks  []ports.CommitHook
	log    zerolog.Logger
}

var _ ports.WalletService = (*WalletServiceImpl)(nil)

// NewWalletService creates a WalletServiceImpl. cache may be nil.
func NewWalletService(
	store ports.Store,
	cache ports.WalletCache,
	retry RetryPolicy,
	log zerolog.Logger,
	hooks ...ports.CommitHook,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		store:  store,
		cache:  cache,
		atomic: atomicRunner{store: store, retry: retry, log: log},
		hooks:  hooks,
		log:    log,
	}
}

func (s *WalletServiceImpl) CreateWallet(ctx context.Context, label string) (*domain.Wallet, error) {
	wallet, err := domain.NewWallet(label)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	if err := s.store.CreateWallet(ctx, wallet); err != nil {
		err = toAppError(fmt.Errorf("create wallet: %w", err))
		logFailure(s.log, "create_wallet", err).Msg("wallet not created")
		return nil, err
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("label", wallet.Label).
		Msg("wallet created")

	notify(ctx, s.hooks, domain.LedgerEvent{
		Type:       domain.EventWalletCreated,
		WalletID:   wallet.ID,
		Balance:    wallet.Balance,
		OccurredAt: time.Now().UTC(),
	})
	return wallet, nil
}

// GetWallet serves wallet details from the cache when possible. A cache
// failure is treated as a miss. The loaded snapshot is cached only if no
// commit invalidated the wallet since the cache lookup.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, id uuid.UUID) (*ports.WalletDetails, error) {
	cacheable := s.cache != nil
	var generation int64
	if s.cache != nil {
		cached, gen, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("wallet_id", id.String()).Msg("wallet cache read failed, falling through to store")
			cacheable = false
		}
		if cached != nil {
			return cached, nil
		}
		generation = gen
	}

	details, err := s.store.LoadWallet(ctx, id)
	if err != nil {
		return nil, toAppError(fmt.Errorf("load wallet: %w", err))
	}
	if details == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if details.Transactions == nil {
		details.Transactions = []domain.Transaction{}
	}

	if cacheable {
		err := s.cache.Set(ctx, details, generation)
		switch {
		case errors.Is(err, ports.ErrCacheStale):
			s.log.Debug().Str("wallet_id", id.String()).Msg("wallet changed during load, not cached")
		case err != nil:
			s.log.Warn().Err(err).Str("wallet_id", id.String()).Msg("failed to cache wallet")
		}
	}
	return details, nil
}

func (s *WalletServiceImpl) ListWallets(ctx context.Context) ([]domain.Wallet, error) {
	wallets, err := s.store.ListWallets(ctx)
	if err != nil {
		return nil, toAppError(fmt.Errorf("list wallets: %w", err))
	}
	if wallets == nil {
		wallets = []domain.Wallet{}
	}
	return wallets, nil
}

// RenameWallet changes the label. The balance is never written here.
func (s *WalletServiceImpl) RenameWallet(ctx context.Context, id uuid.UUID, label string) (*domain.Wallet, error) {
	label, err := domain.NormalizeLabel(label)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	var renamed *domain.Wallet
	err = s.atomic.run(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		wallet, err := uow.LockWallet(ctx, id)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if wallet == nil {
			return apperror.ErrNotFound("wallet")
		}
		wallet.Label = label
		if err := uow.SaveWallet(ctx, wallet); err != nil {
			return fmt.Errorf("save wallet: %w", err)
		}
		renamed = wallet
		return nil
	})
	if err != nil {
		err = toAppError(err)
		logFailure(s.log, "rename_wallet", err).Str("wallet_id", id.String()).Msg("wallet not renamed")
		return nil, err
	}

	s.log.Info().Str("wallet_id", id.String()).Str("label", label).Msg("wallet renamed")
	notify(ctx, s.hooks, domain.LedgerEvent{
		Type:       domain.EventWalletRenamed,
		WalletID:   id,
		Balance:    renamed.Balance,
		OccurredAt: time.Now().UTC(),
	})
	return renamed, nil
}

// DeleteWallet removes a wallet together with all of its transactions.
func (s *WalletServiceImpl) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	var deleted *domain.Wallet
	err := s.atomic.run(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		wallet, err := uow.LockWallet(ctx, id)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if wallet == nil {
			return apperror.ErrNotFound("wallet")
		}
		if err := uow.DeleteWallet(ctx, id); err != nil {
			return fmt.Errorf("delete wallet: %w", err)
		}
		deleted = wallet
		return nil
	})
	if err != nil {
		err = toAppError(err)
		logFailure(s.log, "delete_wallet", err).Str("wallet_id", id.String()).Msg("wallet not deleted")
		return err
	}

	s.log.Info().Str("wallet_id", id.String()).Msg("wallet deleted")
	notify(ctx, s.hooks, domain.LedgerEvent{
		Type:       domain.EventWalletDeleted,
		WalletID:   id,
		Balance:    deleted.Balance,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

func (s *WalletServiceImpl) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, toAppError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	return txn, nil
}

// ListTransactions returns the wallet's transactions, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	details, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return details.Transactions, nil
}
