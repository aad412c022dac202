package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T, s *Store, label string) *domain.Wallet {
	t.Helper()
	w := &domain.Wallet{Label: label}
	require.NoError(t, s.CreateWallet(context.Background(), w))
	return w
}

// post inserts a transaction and refreshes the wallet balance, the way the
// reconciler does.
func post(ctx context.Context, uow ports.UnitOfWork, walletID uuid.UUID, txid string, amount int64) error {
	w, err := uow.LockWallet(ctx, walletID)
	if err != nil {
		return err
	}
	if w == nil {
		return errors.New("wallet missing")
	}
	txn := &domain.Transaction{WalletID: walletID, TxID: txid, Amount: decimal.NewFromInt(amount)}
	if err := uow.InsertTransaction(ctx, txn); err != nil {
		return err
	}
	sum, err := uow.SumTransactionAmounts(ctx, walletID)
	if err != nil {
		return err
	}
	if err := w.ApplyTotal(sum); err != nil {
		return err
	}
	return uow.SaveWallet(ctx, w)
}

func TestStore_CreateWallet(t *testing.T) {
	s := New()
	w := newWallet(t, s, "main")

	assert.NotEqual(t, uuid.Nil, w.ID)
	assert.True(t, w.Balance.IsZero())
	assert.False(t, w.CreatedAt.IsZero())

	details, err := s.LoadWallet(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "main", details.Wallet.Label)
	assert.Empty(t, details.Transactions)
}

func TestStore_LoadWallet_NotFound(t *testing.T) {
	s := New()

	details, err := s.LoadWallet(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, details)

	txn, err := s.GetTransaction(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, txn)
}

func TestStore_RunAtomic_CommitsStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := newWallet(t, s, "main")

	err := s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		if err := post(ctx, uow, w.ID, "tx1", 100); err != nil {
			return err
		}

		// staged rows are invisible outside the unit of work
		details, err := s.LoadWallet(ctx, w.ID)
		require.NoError(t, err)
		assert.Empty(t, details.Transactions)
		assert.True(t, details.Wallet.Balance.IsZero())

		return post(ctx, uow, w.ID, "tx2", -30)
	})
	require.NoError(t, err)

	details, err := s.LoadWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, details.Wallet.Balance.Equal(decimal.NewFromInt(70)))
	require.Len(t, details.Transactions, 2)
	assert.Equal(t, "tx2", details.Transactions[0].TxID, "newest first")
	assert.Equal(t, "tx1", details.Transactions[1].TxID)
	assert.Zero(t, s.locks.size(), "locks released")
}

func TestStore_RunAtomic_ErrorDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := newWallet(t, s, "main")

	err := s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		if err := post(ctx, uow, w.ID, "tx1", 10); err != nil {
			return err
		}
		return post(ctx, uow, w.ID, "tx2", -50)
	})
	require.ErrorIs(t, err, domain.ErrNegativeBalance)

	details, err := s.LoadWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, details.Transactions)
	assert.True(t, details.Wallet.Balance.IsZero())
	assert.Zero(t, s.locks.size())
}

func TestStore_RunAtomic_PanicReleasesLocks(t *testing.T) {
	s := New()
	w := newWallet(t, s, "main")

	assert.Panics(t, func() {
		_ = s.RunAtomic(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
			_, _ = uow.LockWallet(ctx, w.ID)
			panic("boom")
		})
	})
	assert.Zero(t, s.locks.size())
}

func TestStore_LockWallet_Reentrant(t *testing.T) {
	s := New()
	w := newWallet(t, s, "main")

	err := s.RunAtomic(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		first, err := uow.LockWallet(ctx, w.ID)
		require.NoError(t, err)
		second, err := uow.LockWallet(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_LockWallet_MissingWallet(t *testing.T) {
	s := New()

	err := s.RunAtomic(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		w, err := uow.LockWallet(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, w)
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, s.locks.size())
}

func TestStore_LockWallet_TimesOutWhileHeld(t *testing.T) {
	s := New(WithLockTimeout(20 * time.Millisecond))
	w := newWallet(t, s, "main")

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.RunAtomic(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
			_, _ = uow.LockWallet(ctx, w.ID)
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := s.RunAtomic(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		_, err := uow.LockWallet(ctx, w.ID)
		return err
	})
	close(done)

	assert.ErrorIs(t, err, ports.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_InsertTransaction_RequiresLock(t *testing.T) {
	s := New()
	w := newWallet(t, s, "main")

	err := s.RunAtomic(context.Background(), func(ctx context.Context, uow ports.UnitOfWork) error {
		return uow.InsertTransaction(ctx, &domain.Transaction{WalletID: w.ID, TxID: "tx1", Amount: decimal.NewFromInt(1)})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not locked")
}

func TestStore_DuplicateTxID(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newWallet(t, s, "a")
	b := newWallet(t, s, "b")

	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		return post(ctx, uow, a.ID, "tx1", 5)
	}))

	t.Run("committed elsewhere", func(t *testing.T) {
		err := s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			return post(ctx, uow, b.ID, "tx1", 5)
		})
		assert.ErrorIs(t, err, ports.ErrDuplicateKey)
	})

	t.Run("staged in the same unit", func(t *testing.T) {
		err := s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			if err := post(ctx, uow, b.ID, "tx2", 5); err != nil {
				return err
			}
			return post(ctx, uow, b.ID, "tx2", 5)
		})
		assert.ErrorIs(t, err, ports.ErrDuplicateKey)
	})

	t.Run("freed by a delete in the same unit", func(t *testing.T) {
		details, err := s.LoadWallet(ctx, a.ID)
		require.NoError(t, err)
		old := details.Transactions[0]

		err = s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
			if _, err := uow.LockWallet(ctx, a.ID); err != nil {
				return err
			}
			if err := uow.DeleteTransaction(ctx, old.ID); err != nil {
				return err
			}
			return post(ctx, uow, a.ID, "tx1", 7)
		})
		require.NoError(t, err)

		details, err = s.LoadWallet(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, details.Transactions, 1)
		assert.True(t, details.Transactions[0].Amount.Equal(decimal.NewFromInt(7)))
		assert.True(t, details.Wallet.Balance.Equal(decimal.NewFromInt(7)))
	})
}

func TestStore_UpdateTransaction_MovesBetweenWallets(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := newWallet(t, s, "a")
	b := newWallet(t, s, "b")

	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		return post(ctx, uow, a.ID, "tx1", 40)
	}))
	details, err := s.LoadWallet(ctx, a.ID)
	require.NoError(t, err)
	txnID := details.Transactions[0].ID

	err = s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		for _, id := range []uuid.UUID{a.ID, b.ID} {
			if _, err := uow.LockWallet(ctx, id); err != nil {
				return err
			}
		}
		txn, err := uow.LockTransaction(ctx, txnID)
		require.NoError(t, err)
		txn.WalletID = b.ID
		require.NoError(t, uow.UpdateTransaction(ctx, txn))

		sumA, err := uow.SumTransactionAmounts(ctx, a.ID)
		require.NoError(t, err)
		sumB, err := uow.SumTransactionAmounts(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, sumA.IsZero())
		assert.True(t, sumB.Equal(decimal.NewFromInt(40)))
		return nil
	})
	require.NoError(t, err)

	moved, err := s.GetTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.WalletID)

	da, err := s.LoadWallet(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, da.Transactions)
	db, err := s.LoadWallet(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, db.Transactions, 1)
}

func TestStore_DeleteWallet_Cascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := newWallet(t, s, "main")

	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		return post(ctx, uow, w.ID, "tx1", 5)
	}))
	details, err := s.LoadWallet(ctx, w.ID)
	require.NoError(t, err)
	txnID := details.Transactions[0].ID

	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		if _, err := uow.LockWallet(ctx, w.ID); err != nil {
			return err
		}
		return uow.DeleteWallet(ctx, w.ID)
	}))

	gone, err := s.LoadWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	txn, err := s.GetTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Nil(t, txn)

	// the txid is free again
	other := newWallet(t, s, "other")
	require.NoError(t, s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
		return post(ctx, uow, other.ID, "tx1", 1)
	}))
}

func TestStore_ListWallets_NewestFirst(t *testing.T) {
	s := New()
	first := newWallet(t, s, "first")
	second := newWallet(t, s, "second")

	wallets, err := s.ListWallets(context.Background())
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, second.ID, wallets[0].ID)
	assert.Equal(t, first.ID, wallets[1].ID)
}

func TestStore_ConcurrentPostsSerialize(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := newWallet(t, s, "main")

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunAtomic(ctx, func(ctx context.Context, uow ports.UnitOfWork) error {
				return post(ctx, uow, w.ID, uuid.NewString(), 2)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	details, err := s.LoadWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, details.Transactions, workers)
	assert.True(t, details.Wallet.Balance.Equal(decimal.NewFromInt(2*workers)))
	assert.Zero(t, s.locks.size())
}
