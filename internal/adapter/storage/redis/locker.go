package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/go-redsync/redsync/v4"
	redsyncgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Locker is a Redis mutex shared by every instance of the service.
// Acquisition is attempted once; a busy lock yields ports.ErrLockNotAcquired.
type Locker struct {
	rs     *redsync.Redsync
	prefix string
	log    zerolog.Logger
}

var _ ports.Locker = (*Locker)(nil)

func NewLocker(client *goredis.Client, log zerolog.Logger) *Locker {
	return &Locker{
		rs:     redsync.New(redsyncgoredis.NewPool(client)),
		prefix: "lock:",
		log:    log,
	}
}

func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(l.prefix+key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return fmt.Errorf("%w: %s", ports.ErrLockNotAcquired, key)
		}
		return fmt.Errorf("acquiring lock %s: %w", key, err)
	}

	defer func() {
		// release even when ctx was cancelled during fn
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			l.log.Warn().Err(err).Str("lock", key).Msg("Failed to release lock")
		}
	}()

	return fn(ctx)
}
