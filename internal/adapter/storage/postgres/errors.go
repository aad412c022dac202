package postgres

import (
	"errors"
	"fmt"
	"io"
	"net"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the ledger reacts to.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgNumericOutOfRange    = "22003"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgAdminShutdown        = "57P01"
	pgCannotConnectNow     = "57P03"
)

// Constraint names from the migrations.
const (
	constraintBalanceNonNegative = "wallets_balance_non_negative"
	constraintAmountNonZero      = "transactions_amount_non_zero"
)

// classify translates driver errors into the sentinels of ports and domain,
// keeping the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", ports.ErrDuplicateKey, err)
		case pgCheckViolation:
			switch pgErr.ConstraintName {
			case constraintBalanceNonNegative:
				return fmt.Errorf("%w: %w", domain.ErrNegativeBalance, err)
			case constraintAmountNonZero:
				return fmt.Errorf("%w: %w", domain.ErrAmountZero, err)
			}
		case pgNumericOutOfRange:
			return fmt.Errorf("%w: %w", domain.ErrAmountOutOfRange, err)
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable,
			pgQueryCanceled, pgAdminShutdown, pgCannotConnectNow:
			return fmt.Errorf("%w: %w", ports.ErrStoreUnavailable, err)
		}
		return err
	}

	if isConnectionError(err) {
		return fmt.Errorf("%w: %w", ports.ErrStoreUnavailable, err)
	}
	return err
}

func isConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
