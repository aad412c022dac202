package memory

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// unitOfWork stages writes over the committed state. A nil staged entry
// marks a deletion.
type unitOfWork struct {
	store   *Store
	held    map[uuid.UUID]struct{}
	wallets map[uuid.UUID]*domain.Wallet
	txns    map[uuid.UUID]*domain.Transaction
	order   []uuid.UUID // staged transaction ids in write order
}

func newUnitOfWork(s *Store) *unitOfWork {
	return &unitOfWork{
		store:   s,
		held:    make(map[uuid.UUID]struct{}),
		wallets: make(map[uuid.UUID]*domain.Wallet),
		txns:    make(map[uuid.UUID]*domain.Transaction),
	}
}

func (u *unitOfWork) releaseLocks() {
	for id := range u.held {
		u.store.locks.release(id)
	}
	u.held = nil
}

func (u *unitOfWork) requireLock(walletID uuid.UUID) error {
	if _, ok := u.held[walletID]; !ok {
		return fmt.Errorf("wallet %s is not locked by this unit of work", walletID)
	}
	return nil
}

func (u *unitOfWork) wallet(id uuid.UUID) (domain.Wallet, bool) {
	if w, staged := u.wallets[id]; staged {
		if w == nil {
			return domain.Wallet{}, false
		}
		return *w, true
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	w, ok := u.store.wallets[id]
	return w, ok
}

func (u *unitOfWork) txn(id uuid.UUID) (domain.Transaction, bool) {
	if t, staged := u.txns[id]; staged {
		if t == nil {
			return domain.Transaction{}, false
		}
		return *t, true
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	t, ok := u.store.txns[id]
	return t, ok
}

func (u *unitOfWork) stageTxn(id uuid.UUID, t *domain.Transaction) {
	if _, seen := u.txns[id]; !seen {
		u.order = append(u.order, id)
	}
	u.txns[id] = t
}

func (u *unitOfWork) LockWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	if _, ok := u.held[id]; !ok {
		lockCtx := ctx
		if u.store.lockTimeout > 0 {
			var cancel context.CancelFunc
			lockCtx, cancel = context.WithTimeout(ctx, u.store.lockTimeout)
			defer cancel()
		}
		if err := u.store.locks.acquire(lockCtx, id); err != nil {
			return nil, err
		}
		u.held[id] = struct{}{}
	}

	w, ok := u.wallet(id)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (u *unitOfWork) SaveWallet(_ context.Context, w *domain.Wallet) error {
	if err := u.requireLock(w.ID); err != nil {
		return err
	}
	if _, ok := u.wallet(w.ID); !ok {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	w.UpdatedAt = u.store.tick()
	staged := *w
	u.wallets[w.ID] = &staged
	return nil
}

func (u *unitOfWork) DeleteWallet(_ context.Context, id uuid.UUID) error {
	if err := u.requireLock(id); err != nil {
		return err
	}
	if _, ok := u.wallet(id); !ok {
		return fmt.Errorf("wallet not found: %s", id)
	}

	for _, txnID := range u.ownedBy(id) {
		u.stageTxn(txnID, nil)
	}
	u.wallets[id] = nil
	return nil
}

func (u *unitOfWork) FindTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, ok := u.txn(id)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// LockTransaction needs no row lock of its own: rows only change under
// their owner's wallet lock.
func (u *unitOfWork) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return u.FindTransaction(ctx, id)
}

func (u *unitOfWork) InsertTransaction(_ context.Context, t *domain.Transaction) error {
	if err := u.requireLock(t.WalletID); err != nil {
		return err
	}
	if _, ok := u.wallet(t.WalletID); !ok {
		return fmt.Errorf("wallet not found: %s", t.WalletID)
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if err := u.checkTxID(t.TxID, t.ID); err != nil {
		return err
	}

	now := u.store.tick()
	t.CreatedAt, t.UpdatedAt = now, now
	staged := *t
	u.stageTxn(t.ID, &staged)
	return nil
}

func (u *unitOfWork) UpdateTransaction(_ context.Context, t *domain.Transaction) error {
	current, ok := u.txn(t.ID)
	if !ok {
		return fmt.Errorf("transaction not found: %s", t.ID)
	}
	if err := u.requireLock(current.WalletID); err != nil {
		return err
	}
	if err := u.requireLock(t.WalletID); err != nil {
		return err
	}
	if _, ok := u.wallet(t.WalletID); !ok {
		return fmt.Errorf("wallet not found: %s", t.WalletID)
	}
	if err := u.checkTxID(t.TxID, t.ID); err != nil {
		return err
	}

	t.UpdatedAt = u.store.tick()
	staged := *t
	u.stageTxn(t.ID, &staged)
	return nil
}

func (u *unitOfWork) DeleteTransaction(_ context.Context, id uuid.UUID) error {
	current, ok := u.txn(id)
	if !ok {
		return fmt.Errorf("transaction not found: %s", id)
	}
	if err := u.requireLock(current.WalletID); err != nil {
		return err
	}
	u.stageTxn(id, nil)
	return nil
}

func (u *unitOfWork) SumTransactionAmounts(_ context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero

	u.store.mu.RLock()
	for id := range u.store.byWallet[walletID] {
		if _, staged := u.txns[id]; staged {
			continue
		}
		total = total.Add(u.store.txns[id].Amount)
	}
	u.store.mu.RUnlock()

	for _, t := range u.txns {
		if t != nil && t.WalletID == walletID {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

// ownedBy lists the ids of every transaction the wallet currently owns.
func (u *unitOfWork) ownedBy(walletID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID

	u.store.mu.RLock()
	for id := range u.store.byWallet[walletID] {
		if _, staged := u.txns[id]; !staged {
			ids = append(ids, id)
		}
	}
	u.store.mu.RUnlock()

	for id, t := range u.txns {
		if t != nil && t.WalletID == walletID {
			ids = append(ids, id)
		}
	}
	return ids
}

// checkTxID rejects a txid already used by a different transaction, either
// committed or staged here.
func (u *unitOfWork) checkTxID(txid string, self uuid.UUID) error {
	for id, t := range u.txns {
		if t != nil && id != self && t.TxID == txid {
			return fmt.Errorf("%w: txid %q", ports.ErrDuplicateKey, txid)
		}
	}

	u.store.mu.RLock()
	owner, taken := u.store.byTxID[txid]
	u.store.mu.RUnlock()
	if !taken || owner == self {
		return nil
	}
	if t, staged := u.txns[owner]; staged && (t == nil || t.TxID != txid) {
		return nil
	}
	return fmt.Errorf("%w: txid %q", ports.ErrDuplicateKey, txid)
}

// commit re-validates txid uniqueness against rows committed meanwhile and
// applies every staged write under the store's write lock.
func (u *unitOfWork) commit() error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range u.order {
		t := u.txns[id]
		if t == nil {
			continue
		}
		owner, taken := s.byTxID[t.TxID]
		if !taken || owner == id {
			continue
		}
		if other, staged := u.txns[owner]; staged && (other == nil || other.TxID != t.TxID) {
			continue
		}
		return fmt.Errorf("%w: txid %q", ports.ErrDuplicateKey, t.TxID)
	}

	for _, id := range u.order {
		s.unindexTxn(id)
	}
	for _, id := range u.order {
		if t := u.txns[id]; t != nil {
			s.indexTxn(*t)
		}
	}
	for id, w := range u.wallets {
		if w == nil {
			delete(s.wallets, id)
			delete(s.byWallet, id)
			continue
		}
		s.wallets[id] = *w
	}
	return nil
}
