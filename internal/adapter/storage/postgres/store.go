package postgres

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Store implements ports.Store on PostgreSQL. Wallet rows are locked with
// SELECT ... FOR UPDATE and held until the surrounding transaction ends.
type Store struct {
	pool        Pool
	wallets     *WalletRepo
	txns        *TransactionRepo
	lockTimeout time.Duration
	now         func() time.Time
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a Store. A positive lockTimeout bounds every lock wait.
func NewStore(pool Pool, lockTimeout time.Duration) *Store {
	return &Store{
		pool:        pool,
		wallets:     NewWalletRepo(pool),
		txns:        NewTransactionRepo(pool),
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RunAtomic runs fn inside one database transaction.
func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, uow ports.UnitOfWork) error) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := dbTx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			return classify(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	if err := fn(ctx, &unitOfWork{tx: dbTx, store: s}); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// CreateWallet assigns an ID and inserts the wallet with a zero balance.
func (s *Store) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	now := s.now()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.Balance = decimal.Zero
	w.CreatedAt, w.UpdatedAt = now, now

	return classify(s.wallets.Create(ctx, w))
}

// LoadWallet reads a wallet and its transactions from one snapshot.
func (s *Store) LoadWallet(ctx context.Context, id uuid.UUID) (*ports.WalletDetails, error) {
	dbTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("begin snapshot: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.wallets.Find(ctx, dbTx, id)
	if err != nil {
		return nil, classify(err)
	}
	if w == nil {
		return nil, nil
	}

	txns, err := s.txns.ListByWallet(ctx, dbTx, id)
	if err != nil {
		return nil, classify(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, classify(fmt.Errorf("commit snapshot: %w", err))
	}
	return &ports.WalletDetails{Wallet: *w, Transactions: txns}, nil
}

func (s *Store) ListWallets(ctx context.Context) ([]domain.Wallet, error) {
	wallets, err := s.wallets.List(ctx)
	return wallets, classify(err)
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := s.txns.GetByID(ctx, id)
	return t, classify(err)
}

// unitOfWork binds the repositories to one open pgx.Tx.
type unitOfWork struct {
	tx    pgx.Tx
	store *Store
}

func (u *unitOfWork) LockWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := u.store.wallets.GetByIDForUpdate(ctx, u.tx, id)
	return w, classify(err)
}

func (u *unitOfWork) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	return classify(u.store.wallets.Save(ctx, u.tx, w))
}

func (u *unitOfWork) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	return classify(u.store.wallets.Delete(ctx, u.tx, id))
}

func (u *unitOfWork) FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := u.store.txns.Find(ctx, u.tx, id)
	return t, classify(err)
}

func (u *unitOfWork) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := u.store.txns.GetByIDForUpdate(ctx, u.tx, id)
	return t, classify(err)
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	now := u.store.now()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt, t.UpdatedAt = now, now

	return classify(u.store.txns.Create(ctx, u.tx, t))
}

func (u *unitOfWork) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	t.UpdatedAt = u.store.now()
	return classify(u.store.txns.Update(ctx, u.tx, t))
}

func (u *unitOfWork) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	return classify(u.store.txns.Delete(ctx, u.tx, id))
}

func (u *unitOfWork) SumTransactionAmounts(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	total, err := u.store.txns.SumByWallet(ctx, u.tx, walletID)
	return total, classify(err)
}
