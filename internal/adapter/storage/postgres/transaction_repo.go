package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, wallet_id, txid, amount, created_at, updated_at`

// TransactionRepo persists ledger transactions.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, wallet_id, txid, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, t.ID, t.WalletID, t.TxID, t.Amount, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, id), "get transaction by id")
}

// Find fetches a transaction inside a database transaction without locking it.
func (r *TransactionRepo) Find(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return scanTransaction(tx.QueryRow(ctx, query, id), "find transaction")
}

// GetByIDForUpdate fetches a transaction and locks its row.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	return scanTransaction(tx.QueryRow(ctx, query, id), "get transaction for update")
}

// ListByWallet returns a wallet's transactions, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE wallet_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := tx.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.TxID, &t.Amount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// Update rewrites owner, txid and amount of a locked transaction.
func (r *TransactionRepo) Update(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `UPDATE transactions SET wallet_id = $1, txid = $2, amount = $3, updated_at = $4 WHERE id = $5`

	tag, err := tx.Exec(ctx, query, t.WalletID, t.TxID, t.Amount, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", t.ID)
	}
	return nil
}

// Delete removes a transaction within a database transaction.
func (r *TransactionRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// SumByWallet aggregates all amounts owned by a wallet. Zero when it has none.
func (r *TransactionRepo) SumByWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE wallet_id = $1`

	var total decimal.Decimal
	if err := tx.QueryRow(ctx, query, walletID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum transaction amounts: %w", err)
	}
	return total, nil
}

func scanTransaction(row pgx.Row, op string) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(&t.ID, &t.WalletID, &t.TxID, &t.Amount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}
