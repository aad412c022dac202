package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Reconciler implements ports.LedgerService. Every mutation runs in one unit
// of work that locks the owning wallet, changes the row, re-aggregates the
// wallet from scratch and rejects a negative result before committing.
type Reconciler struct {
	atomic atomicRunner
	hooks  []ports.CommitHook
	log    zerolog.Logger
}

var _ ports.LedgerService = (*Reconciler)(nil)

// NewReconciler creates a Reconciler. Hooks run after each successful commit.
func NewReconciler(store ports.Store, retry RetryPolicy, log zerolog.Logger, hooks ...ports.CommitHook) *Reconciler {
	return &Reconciler{
		atomic: atomicRunner{store: store, retry: retry, log: log},
		hooks:  hooks,
		log:    log,
	}
}

// CreateTransaction posts a new transaction to a wallet.
func (r *Reconciler) CreateTransaction(ctx context.Context, req ports.CreateTransactionRequest) (*ports.TransactionResult, error) {
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, apperror.ErrInvalidAmountDetail(err)
	}
	txid, err := domain.NormalizeTxID(req.TxID)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	var result *ports.TransactionResult
	err = r.atomic.run(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		wallet, err := uow.LockWallet(ctx, req.WalletID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if wallet == nil {
			return apperror.ErrNotFound("wallet")
		}

		txn := &domain.Transaction{WalletID: req.WalletID, TxID: txid, Amount: req.Amount}
		if err := uow.InsertTransaction(ctx, txn); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		_, balance, err := r.updateBalance(ctx, uow, req.WalletID)
		if err != nil {
			return err
		}
		result = &ports.TransactionResult{Transaction: *txn, Balance: balance}
		return nil
	})
	if err != nil {
		err = toAppError(err)
		logFailure(r.log, "create_transaction", err).
			Str("wallet_id", req.WalletID.String()).
			Str("txid", txid).
			Str("amount", req.Amount.String()).
			Msg("transaction rejected")
		return nil, err
	}

	r.log.Info().
		Str("tx_id", result.Transaction.ID.String()).
		Str("txid", txid).
		Str("wallet_id", req.WalletID.String()).
		Str("amount", req.Amount.String()).
		Str("balance", result.Balance.String()).
		Msg("transaction created")

	txn := result.Transaction
	notify(ctx, r.hooks, domain.LedgerEvent{
		Type:        domain.EventTransactionCreated,
		WalletID:    req.WalletID,
		Balance:     result.Balance,
		Transaction: &txn,
		OccurredAt:  time.Now().UTC(),
	})
	return result, nil
}

// UpdateTransaction changes amount, txid or owner of a transaction. When the
// owner changes both wallets are locked in ascending id order and both are
// re-aggregated in the same unit of work.
func (r *Reconciler) UpdateTransaction(ctx context.Context, id uuid.UUID, req ports.UpdateTransactionRequest) (*ports.TransactionResult, error) {
	if req.Amount != nil {
		if err := domain.ValidateAmount(*req.Amount); err != nil {
			return nil, apperror.ErrInvalidAmountDetail(err)
		}
	}
	var txid string
	if req.TxID != nil {
		normalized, err := domain.NormalizeTxID(*req.TxID)
		if err != nil {
			return nil, apperror.Validation(err.Error())
		}
		txid = normalized
	}

	var (
		result   *ports.TransactionResult
		previous uuid.UUID
	)
	err := r.atomic.run(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		result = nil

		current, err := uow.FindTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("find transaction: %w", err)
		}
		if current == nil {
			return apperror.ErrNotFound("transaction")
		}
		previous = current.WalletID
		owner := current.WalletID
		if req.WalletID != nil {
			owner = *req.WalletID
		}

		for _, walletID := range lockOrder(previous, owner) {
			wallet, err := uow.LockWallet(ctx, walletID)
			if err != nil {
				return fmt.Errorf("lock wallet: %w", err)
			}
			if wallet == nil {
				if walletID == previous {
					// owner deleted meanwhile; the transaction went with it
					return errOwnerChanged
				}
				return apperror.ErrNotFound("wallet")
			}
		}

		locked, err := uow.LockTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if locked == nil {
			return apperror.ErrNotFound("transaction")
		}
		if locked.WalletID != previous {
			return errOwnerChanged
		}

		updated := *locked
		updated.WalletID = owner
		if req.Amount != nil {
			updated.Amount = *req.Amount
		}
		if req.TxID != nil {
			updated.TxID = txid
		}
		if err := uow.UpdateTransaction(ctx, &updated); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		_, balance, err := r.updateBalance(ctx, uow, owner)
		if err != nil {
			return err
		}
		result = &ports.TransactionResult{Transaction: updated, Balance: balance}

		if owner != previous {
			_, released, err := r.updateBalance(ctx, uow, previous)
			if err != nil {
				return err
			}
			result.Released = &ports.WalletBalance{WalletID: previous, Balance: released}
		}
		return nil
	})
	if err != nil {
		err = toAppError(err)
		logFailure(r.log, "update_transaction", err).
			Str("tx_id", id.String()).
			Msg("transaction update rejected")
		return nil, err
	}

	txn := result.Transaction
	event := domain.LedgerEvent{
		Type:        domain.EventTransactionUpdated,
		WalletID:    txn.WalletID,
		Balance:     result.Balance,
		Transaction: &txn,
		OccurredAt:  time.Now().UTC(),
	}
	logEvent := r.log.Info().
		Str("tx_id", id.String()).
		Str("txid", txn.TxID).
		Str("wallet_id", txn.WalletID.String()).
		Str("amount", txn.Amount.String()).
		Str("balance", result.Balance.String())
	if result.Released != nil {
		event.PreviousWalletID = &result.Released.WalletID
		event.PreviousBalance = &result.Released.Balance
		logEvent = logEvent.
			Str("previous_wallet_id", previous.String()).
			Str("previous_balance", result.Released.Balance.String())
	}
	logEvent.Msg("transaction updated")

	notify(ctx, r.hooks, event)
	return result, nil
}

// DeleteTransaction removes a transaction. The owner's balance is validated
// like any other mutation, so a delete that would leave it negative fails and
// the row stays.
func (r *Reconciler) DeleteTransaction(ctx context.Context, id uuid.UUID) (*ports.WalletBalance, error) {
	var (
		result  *ports.WalletBalance
		deleted domain.Transaction
	)
	err := r.atomic.run(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		current, err := uow.FindTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("find transaction: %w", err)
		}
		if current == nil {
			return apperror.ErrNotFound("transaction")
		}

		wallet, err := uow.LockWallet(ctx, current.WalletID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		if wallet == nil {
			return errOwnerChanged
		}

		locked, err := uow.LockTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if locked == nil {
			return apperror.ErrNotFound("transaction")
		}
		if locked.WalletID != current.WalletID {
			return errOwnerChanged
		}

		if err := uow.DeleteTransaction(ctx, id); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}

		_, balance, err := r.updateBalance(ctx, uow, locked.WalletID)
		if err != nil {
			return err
		}
		deleted = *locked
		result = &ports.WalletBalance{WalletID: locked.WalletID, Balance: balance}
		return nil
	})
	if err != nil {
		err = toAppError(err)
		logFailure(r.log, "delete_transaction", err).
			Str("tx_id", id.String()).
			Msg("transaction delete rejected")
		return nil, err
	}

	r.log.Info().
		Str("tx_id", id.String()).
		Str("txid", deleted.TxID).
		Str("wallet_id", result.WalletID.String()).
		Str("balance", result.Balance.String()).
		Msg("transaction deleted")

	notify(ctx, r.hooks, domain.LedgerEvent{
		Type:        domain.EventTransactionDeleted,
		WalletID:    result.WalletID,
		Balance:     result.Balance,
		Transaction: &deleted,
		OccurredAt:  time.Now().UTC(),
	})
	return result, nil
}

// Recompute re-aggregates a wallet and stores the result. Running it on a
// consistent wallet changes nothing.
func (r *Reconciler) Recompute(ctx context.Context, walletID uuid.UUID) (*ports.RecomputeResult, error) {
	var result *ports.RecomputeResult
	err := r.atomic.run(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		previous, balance, err := r.updateBalance(ctx, uow, walletID)
		if err != nil {
			return err
		}
		result = &ports.RecomputeResult{WalletID: walletID, Previous: previous, Balance: balance}
		return nil
	})
	if err != nil {
		err = toAppError(err)
		logFailure(r.log, "recompute", err).
			Str("wallet_id", walletID.String()).
			Msg("recompute failed")
		return nil, err
	}

	if !result.Drifted() {
		r.log.Debug().Str("wallet_id", walletID.String()).Msg("wallet balance consistent")
		return result, nil
	}

	r.log.Warn().
		Str("wallet_id", walletID.String()).
		Str("stored", result.Previous.String()).
		Str("balance", result.Balance.String()).
		Msg("wallet balance drift corrected")

	prev := result.Previous
	notify(ctx, r.hooks, domain.LedgerEvent{
		Type:            domain.EventWalletRecomputed,
		WalletID:        walletID,
		Balance:         result.Balance,
		PreviousBalance: &prev,
		OccurredAt:      time.Now().UTC(),
	})
	return result, nil
}

// updateBalance locks the wallet (a no-op when already held), replaces its
// balance with the sum of its transactions and persists it.
func (r *Reconciler) updateBalance(ctx context.Context, uow ports.UnitOfWork, walletID uuid.UUID) (previous, total decimal.Decimal, err error) {
	wallet, err := uow.LockWallet(ctx, walletID)
	if err != nil {
		return previous, total, fmt.Errorf("lock wallet: %w", err)
	}
	if wallet == nil {
		return previous, total, apperror.ErrNotFound("wallet")
	}

	total, err = uow.SumTransactionAmounts(ctx, walletID)
	if err != nil {
		return previous, total, fmt.Errorf("sum transactions: %w", err)
	}

	previous = wallet.Balance
	if err := wallet.ApplyTotal(total); err != nil {
		return previous, total, err
	}
	if err := uow.SaveWallet(ctx, wallet); err != nil {
		return previous, total, fmt.Errorf("save wallet: %w", err)
	}
	return previous, total, nil
}

// lockOrder returns the distinct ids in ascending byte order.
func lockOrder(ids ...uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		dup := false
		for _, seen := range out {
			if seen == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
