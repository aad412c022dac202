package service

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// errOwnerChanged is returned inside a unit of work when a transaction was
// moved to another wallet between the unlocked lookup and the row lock.
var errOwnerChanged = errors.New("transaction owner changed concurrently")

// RetryPolicy bounds how often a unit of work is re-run after a transient
// failure. Business errors are never retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy matches the ledger.max_attempts and ledger.retry_backoff defaults.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 50 * time.Millisecond}

type atomicRunner struct {
	store ports.Store
	retry RetryPolicy
	log   zerolog.Logger
}

func (r atomicRunner) run(ctx context.Context, fn func(ctx context.Context, uow ports.UnitOfWork) error) error {
	attempts := r.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := r.retry.Backoff

	for attempt := 1; ; attempt++ {
		err := r.store.RunAtomic(ctx, fn)
		if err == nil || !isTransient(err) || attempt == attempts || ctx.Err() != nil {
			return err
		}

		r.log.Warn().Err(err).Int("attempt", attempt).Msg("Retrying ledger unit of work")
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
			delay *= 2
		}
	}
}

func isTransient(err error) bool {
	return errors.Is(err, ports.ErrStoreUnavailable) || errors.Is(err, errOwnerChanged)
}

// toAppError translates store and domain errors into client-facing errors.
func toAppError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, ports.ErrDuplicateKey):
		return apperror.ErrDuplicateTxID()
	case errors.Is(err, domain.ErrNegativeBalance):
		return apperror.ErrNegativeBalance()
	case isTransient(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return apperror.ErrStoreUnavailable(err)
	case errors.Is(err, domain.ErrAmountZero),
		errors.Is(err, domain.ErrAmountFormat),
		errors.Is(err, domain.ErrAmountPrecision),
		errors.Is(err, domain.ErrAmountOutOfRange):
		return apperror.ErrInvalidAmountDetail(err)
	default:
		return apperror.InternalError(err)
	}
}

// logFailure logs rejected requests at Warn and unexpected failures at Error.
func logFailure(log zerolog.Logger, op string, err error) *zerolog.Event {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < 500 {
		return log.Warn().Str("op", op).Str("error_code", appErr.Code).Err(err)
	}
	return log.Error().Str("op", op).Err(err)
}

func notify(ctx context.Context, hooks []ports.CommitHook, event domain.LedgerEvent) {
	for _, h := range hooks {
		h.AfterCommit(ctx, event)
	}
}
