package redis_test

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDetails() *ports.WalletDetails {
	now := time.Now().UTC().Truncate(time.Microsecond)
	w := domain.Wallet{ID: uuid.New(), Label: "main", Balance: decimal.RequireFromString("12.5"), CreatedAt: now, UpdatedAt: now}
	return &ports.WalletDetails{
		Wallet: w,
		Transactions: []domain.Transaction{
			{ID: uuid.New(), WalletID: w.ID, TxID: "tx1", Amount: decimal.RequireFromString("12.5"), CreatedAt: now, UpdatedAt: now},
		},
	}
}

func TestWalletCache_SetGetInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := redis.NewWalletCache(client, time.Minute, zerolog.Nop())
	ctx := context.Background()
	details := sampleDetails()

	miss, gen, err := cache.Get(ctx, details.Wallet.ID)
	require.NoError(t, err)
	assert.Nil(t, miss)
	assert.Zero(t, gen)

	require.NoError(t, cache.Set(ctx, details, gen))
	assert.True(t, mr.Exists("wallet:"+details.Wallet.ID.String()))

	got, _, err := cache.Get(ctx, details.Wallet.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, details.Wallet.ID, got.Wallet.ID)
	assert.True(t, got.Wallet.Balance.Equal(details.Wallet.Balance))
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "tx1", got.Transactions[0].TxID)

	require.NoError(t, cache.Invalidate(ctx, details.Wallet.ID, uuid.New()))
	got, gen, err = cache.Get(ctx, details.Wallet.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(1), gen)

	assert.NoError(t, cache.Invalidate(ctx))
}

func TestWalletCache_SetRefusedAfterInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := redis.NewWalletCache(client, time.Minute, zerolog.Nop())
	ctx := context.Background()
	stale := sampleDetails()
	id := stale.Wallet.ID

	_, gen, err := cache.Get(ctx, id)
	require.NoError(t, err)

	// a commit lands between the reader's Get and its Set
	require.NoError(t, cache.Invalidate(ctx, id))

	err = cache.Set(ctx, stale, gen)
	assert.ErrorIs(t, err, ports.ErrCacheStale)
	assert.False(t, mr.Exists("wallet:"+id.String()))

	_, fresh, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, gen+1, fresh)
	require.NoError(t, cache.Set(ctx, stale, fresh))
	assert.True(t, mr.Exists("wallet:"+id.String()))
}

func TestWalletCache_GenerationKeyExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := redis.NewWalletCache(client, time.Minute, zerolog.Nop())
	id := uuid.New()

	require.NoError(t, cache.Invalidate(context.Background(), id))
	genKey := "wallet:" + id.String() + ":gen"
	require.True(t, mr.Exists(genKey))
	assert.Equal(t, 24*time.Hour, mr.TTL(genKey))
}

func TestWalletCache_EntriesExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := redis.NewWalletCache(client, 30*time.Second, zerolog.Nop())
	ctx := context.Background()
	details := sampleDetails()

	require.NoError(t, cache.Set(ctx, details, 0))
	mr.FastForward(31 * time.Second)

	got, _, err := cache.Get(ctx, details.Wallet.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWalletCache_BreakerOpensWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	cache := redis.NewWalletCache(client, time.Minute, zerolog.Nop())
	ctx := context.Background()
	mr.Close()

	id := uuid.New()
	for i := 0; i < 5; i++ {
		_, _, err := cache.Get(ctx, id)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	_, _, err := cache.Get(ctx, id)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
