package ports

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Infrastructure Ports ---

// WalletCache is the read-through cache for wallet details.
//
// Every Invalidate bumps a per-wallet generation. On a miss Get returns
// (nil, generation, nil); Set stores details only while that generation is
// still current, so a snapshot loaded before a commit is never cached after
// the commit invalidated it. A refused Set returns ErrCacheStale.
type WalletCache interface {
	Get(ctx context.Context, id uuid.UUID) (*WalletDetails, int64, error)
	Set(ctx context.Context, details *WalletDetails, generation int64) error
	Invalidate(ctx context.Context, ids ...uuid.UUID) error
}

// ErrCacheStale is returned by WalletCache.Set when the wallet was
// invalidated after the caller's Get.
var ErrCacheStale = errors.New("wallet cache generation changed")

// EventPublisher delivers committed ledger events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

// ErrLockNotAcquired is returned by Locker when another holder owns the lock.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker provides a cluster-wide mutual exclusion.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// CommitHook is notified after a unit of work commits. It is never called
// for aborted work and cannot fail the operation that triggered it.
type CommitHook interface {
	AfterCommit(ctx context.Context, event domain.LedgerEvent)
}

// HealthChecker is a dependency probed by the health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}

// --- Service Ports (Business Logic) ---

// LedgerService mutates transactions and keeps wallet balances consistent.
type LedgerService interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*TransactionResult, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, req UpdateTransactionRequest) (*TransactionResult, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) (*WalletBalance, error)
	Recompute(ctx context.Context, walletID uuid.UUID) (*RecomputeResult, error)
}

// CreateTransactionRequest holds input for a new transaction.
type CreateTransactionRequest struct {
	WalletID uuid.UUID
	TxID     string
	Amount   decimal.Decimal
}

// UpdateTransactionRequest holds the fields to change. Nil fields are kept.
type UpdateTransactionRequest struct {
	WalletID *uuid.UUID
	TxID     *string
	Amount   *decimal.Decimal
}

// TransactionResult is the outcome of a committed create or update.
type TransactionResult struct {
	Transaction domain.Transaction
	// Balance of the owning wallet after commit.
	Balance decimal.Decimal
	// Released is set when an update moved the transaction to another wallet.
	Released *WalletBalance
}

// WalletBalance pairs a wallet with its balance after commit.
type WalletBalance struct {
	WalletID uuid.UUID       `json:"wallet_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// RecomputeResult reports a full re-aggregation of one wallet.
type RecomputeResult struct {
	WalletID uuid.UUID
	Previous decimal.Decimal
	Balance  decimal.Decimal
}

// Drifted reports whether the stored balance disagreed with the aggregate.
func (r RecomputeResult) Drifted() bool {
	return !r.Previous.Equal(r.Balance)
}

// WalletService manages wallets and serves read models.
type WalletService interface {
	CreateWallet(ctx context.Context, label string) (*domain.Wallet, error)
	GetWallet(ctx context.Context, id uuid.UUID) (*WalletDetails, error)
	ListWallets(ctx context.Context) ([]domain.Wallet, error)
	RenameWallet(ctx context.Context, id uuid.UUID, label string) (*domain.Wallet, error)
	DeleteWallet(ctx context.Context, id uuid.UUID) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
}

// AuditService records audit trail entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
