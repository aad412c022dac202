package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet() *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		ID:        uuid.New(),
		Label:     "savings",
		Balance:   decimal.NewFromInt(70),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func walletCols() []string {
	return []string{"id", "label", "balance", "created_at", "updated_at"}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletCols()).AddRow(w.ID, w.Label, w.Balance, w.CreatedAt, w.UpdatedAt)
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.Label, w.Balance, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Find(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id = \\$1$").
		WithArgs(w.ID).
		WillReturnRows(walletRow(w))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.Find(context.Background(), dbTx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, "savings", result.Label)
	assert.True(t, w.Balance.Equal(result.Balance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Find_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(walletCols()))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.Find(context.Background(), dbTx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id .+ FOR UPDATE").
		WithArgs(w.ID).
		WillReturnRows(walletRow(w))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), dbTx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	a, b := newTestWallet(), newTestWallet()

	mock.ExpectQuery("SELECT .+ FROM wallets ORDER BY created_at DESC").
		WillReturnRows(pgxmock.NewRows(walletCols()).
			AddRow(a.ID, a.Label, a.Balance, a.CreatedAt, a.UpdatedAt).
			AddRow(b.ID, b.Label, b.Balance, b.CreatedAt, b.UpdatedAt))

	wallets, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, a.ID, wallets[0].ID)
	assert.Equal(t, b.ID, wallets[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_List_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM wallets").
		WillReturnRows(pgxmock.NewRows(walletCols()))

	wallets, err := NewWalletRepo(mock).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, wallets)
	assert.Empty(t, wallets)
}

func TestWalletRepo_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()
	updated := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallets SET label .+, balance .+ RETURNING updated_at").
		WithArgs(w.Label, w.Balance, w.ID).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(updated))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), dbTx, w))
	assert.Equal(t, updated, w.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Save_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	w := newTestWallet()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallets").
		WithArgs(w.Label, w.Balance, w.ID).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = NewWalletRepo(mock).Save(context.Background(), dbTx, w)
	assert.ErrorContains(t, err, "wallet not found")
}

func TestWalletRepo_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM wallets WHERE id").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM wallets WHERE id").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Delete(context.Background(), dbTx, id))
	assert.ErrorContains(t, repo.Delete(context.Background(), dbTx, id), "wallet not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
