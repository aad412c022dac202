package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RateLimitStore keeps a sliding-window request log per key in a Redis
// sorted set scored by request time in milliseconds.
type RateLimitStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// Allow records one request against key and reports whether it fits in
// the last window. Rejected requests are not recorded.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - window.Milliseconds()
	redisKey := s.prefix + key
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	var count *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, redisKey, goredis.Z{Score: float64(nowMs), Member: member})
		count = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit window: %w", err)
	}

	result := &RateLimitResult{
		Allowed: count.Val() <= limit,
		Limit:   limit,
		ResetAt: now.Add(window).Unix(),
	}
	if result.Allowed {
		result.Remaining = limit - count.Val()
		return result, nil
	}

	if err := s.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return nil, fmt.Errorf("redis rate limit rollback: %w", err)
	}
	// the window frees up when its oldest request ages out
	oldest, err := s.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit oldest: %w", err)
	}
	if len(oldest) == 1 {
		result.ResetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window).Unix()
	}
	return result, nil
}
