package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second

	// generationTTL must exceed the longest store read between Get and Set.
	generationTTL = 24 * time.Hour
)

// WalletCache stores wallet read models in Redis. Calls go through a circuit
// breaker so an unhealthy Redis degrades to cache misses instead of slow
// requests.
type WalletCache struct {
	client  *goredis.Client
	prefix  string
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
}

var _ ports.WalletCache = (*WalletCache)(nil)

func NewWalletCache(client *goredis.Client, ttl time.Duration, log zerolog.Logger) *WalletCache {
	settings := gobreaker.Settings{
		Name:        "redis-wallet-cache",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &WalletCache{
		client:  client,
		prefix:  "wallet:",
		ttl:     ttl,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (c *WalletCache) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

func (c *WalletCache) generationKey(id uuid.UUID) string {
	return c.prefix + id.String() + ":gen"
}

// Get returns the cached details. On a miss it returns the wallet's current
// generation, which a later Set must present.
func (c *WalletCache) Get(ctx context.Context, id uuid.UUID) (*ports.WalletDetails, int64, error) {
	type lookup struct {
		payload    []byte
		generation int64
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var dataCmd, genCmd *goredis.StringCmd
		_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			dataCmd = pipe.Get(ctx, c.key(id))
			genCmd = pipe.Get(ctx, c.generationKey(id))
			return nil
		})
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, err
		}

		var out lookup
		if out.payload, err = dataCmd.Bytes(); err != nil && !errors.Is(err, goredis.Nil) {
			return nil, err
		}
		if out.generation, err = genCmd.Int64(); err != nil && !errors.Is(err, goredis.Nil) {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("redis wallet cache get: %w", err)
	}

	found := res.(lookup)
	if found.payload == nil {
		return nil, found.generation, nil
	}

	var details ports.WalletDetails
	if err := json.Unmarshal(found.payload, &details); err != nil {
		return nil, found.generation, fmt.Errorf("decoding cached wallet %s: %w", id, err)
	}
	return &details, found.generation, nil
}

// setIfCurrent writes KEYS[1] only while KEYS[2] still holds the
// generation the reader saw. A missing generation key counts as 0.
var setIfCurrent = goredis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[2] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// Set caches details unless the wallet was invalidated since the Get that
// returned generation. In that case it returns ports.ErrCacheStale.
func (c *WalletCache) Set(ctx context.Context, details *ports.WalletDetails, generation int64) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding wallet %s: %w", details.Wallet.ID, err)
	}

	id := details.Wallet.ID
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return setIfCurrent.Run(ctx, c.client,
			[]string{c.key(id), c.generationKey(id)},
			payload, strconv.FormatInt(generation, 10), c.ttl.Milliseconds(),
		).Int64()
	})
	if err != nil {
		return fmt.Errorf("redis wallet cache set: %w", err)
	}
	if res.(int64) == 0 {
		return ports.ErrCacheStale
	}
	return nil
}

// Invalidate drops the cached details and bumps the generation of every id.
func (c *WalletCache) Invalidate(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for _, id := range ids {
				pipe.Del(ctx, c.key(id))
				pipe.Incr(ctx, c.generationKey(id))
				pipe.PExpire(ctx, c.generationKey(id), generationTTL)
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("redis wallet cache invalidate: %w", err)
	}
	return nil
}
