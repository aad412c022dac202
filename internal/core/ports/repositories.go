package ports

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors reported by Store implementations.
var (
	// ErrDuplicateKey means the txid is already taken by another transaction.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStoreUnavailable marks transient failures: lost connections, lock
	// timeouts, deadlocks, serialization conflicts. The unit of work was
	// rolled back and may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is the durable ledger storage.
// Reads return (nil, nil) when the row does not exist.
type Store interface {
	// RunAtomic executes fn in a single unit of work. Every write made
	// through uow is committed if fn returns nil and discarded otherwise.
	// Locks taken through uow are held until the unit of work ends.
	RunAtomic(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error

	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	// LoadWallet reads a wallet and its transactions from one snapshot.
	LoadWallet(ctx context.Context, id uuid.UUID) (*WalletDetails, error)
	ListWallets(ctx context.Context) ([]domain.Wallet, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

// UnitOfWork is the view of the store inside RunAtomic.
type UnitOfWork interface {
	// LockWallet takes the exclusive lock on a wallet row and returns its
	// current state. Re-locking a wallet already held by this unit of work
	// does not block.
	LockWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	// SaveWallet persists label and balance of a locked wallet.
	SaveWallet(ctx context.Context, wallet *domain.Wallet) error
	// DeleteWallet removes a locked wallet and all of its transactions.
	DeleteWallet(ctx context.Context, id uuid.UUID) error

	// FindTransaction reads a transaction without locking it.
	FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// LockTransaction reads a transaction and locks its row. Callers must
	// hold the owning wallet's lock first.
	LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error
	UpdateTransaction(ctx context.Context, txn *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error

	// SumTransactionAmounts aggregates every amount owned by the wallet,
	// including writes made earlier in this unit of work. Zero when empty.
	SumTransactionAmounts(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
}

// WalletDetails is a wallet together with its transactions, newest first.
type WalletDetails struct {
	Wallet       domain.Wallet        `json:"wallet"`
	Transactions []domain.Transaction `json:"transactions"`
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
