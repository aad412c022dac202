// Package memory is an in-process ledger store. It offers the same locking
// and atomicity contract as the PostgreSQL store and backs tests and
// single-node deployments without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps committed state in maps guarded by mu. Units of work stage
// their writes privately and apply them at commit, so readers only ever
// observe committed data.
type Store struct {
	mu       sync.RWMutex
	wallets  map[uuid.UUID]domain.Wallet
	txns     map[uuid.UUID]domain.Transaction
	byWallet map[uuid.UUID]map[uuid.UUID]struct{}
	byTxID   map[string]uuid.UUID

	locks       *lockTable
	lockTimeout time.Duration

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

var _ ports.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long LockWallet waits for a busy wallet.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		wallets:  make(map[uuid.UUID]domain.Wallet),
		txns:     make(map[uuid.UUID]domain.Transaction),
		byWallet: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		byTxID:   make(map[string]uuid.UUID),
		locks:    newLockTable(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tick returns a strictly increasing timestamp so creation order is total.
func (s *Store) tick() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// RunAtomic runs fn with a fresh unit of work. Staged writes are applied
// only when fn succeeds; wallet locks are released either way.
func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context, uow ports.UnitOfWork) error) error {
	u := newUnitOfWork(s)
	defer u.releaseLocks()

	if err := fn(ctx, u); err != nil {
		return err
	}
	return u.commit()
}

// CreateWallet assigns an ID and stores the wallet with a zero balance.
func (s *Store) CreateWallet(_ context.Context, w *domain.Wallet) error {
	now := s.tick()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.Balance = decimal.Zero
	w.CreatedAt, w.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.ID]; exists {
		return fmt.Errorf("%w: wallet %s", ports.ErrDuplicateKey, w.ID)
	}
	s.wallets[w.ID] = *w
	return nil
}

// LoadWallet returns a wallet and its transactions, newest first.
func (s *Store) LoadWallet(_ context.Context, id uuid.UUID) (*ports.WalletDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return nil, nil
	}

	txns := make([]domain.Transaction, 0, len(s.byWallet[id]))
	for txnID := range s.byWallet[id] {
		txns = append(txns, s.txns[txnID])
	}
	sort.Slice(txns, func(i, j int) bool {
		return newerThan(txns[i].CreatedAt, txns[i].ID, txns[j].CreatedAt, txns[j].ID)
	})
	return &ports.WalletDetails{Wallet: w, Transactions: txns}, nil
}

// ListWallets returns every wallet, newest first.
func (s *Store) ListWallets(_ context.Context) ([]domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wallets := make([]domain.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool {
		return newerThan(wallets[i].CreatedAt, wallets[i].ID, wallets[j].CreatedAt, wallets[j].ID)
	})
	return wallets, nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.txns[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func newerThan(at time.Time, id uuid.UUID, bt time.Time, bid uuid.UUID) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return id.String() > bid.String()
}

// index helpers; callers hold s.mu for writing.

func (s *Store) indexTxn(t domain.Transaction) {
	s.txns[t.ID] = t
	set, ok := s.byWallet[t.WalletID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.byWallet[t.WalletID] = set
	}
	set[t.ID] = struct{}{}
	s.byTxID[t.TxID] = t.ID
}

func (s *Store) unindexTxn(id uuid.UUID) {
	t, ok := s.txns[id]
	if !ok {
		return
	}
	delete(s.txns, id)
	if set := s.byWallet[t.WalletID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(s.byWallet, t.WalletID)
		}
	}
	if s.byTxID[t.TxID] == id {
		delete(s.byTxID, t.TxID)
	}
}
