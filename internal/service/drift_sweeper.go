package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const sweepLockKey = "ledger:drift-sweep"

// SweepReport summarises one pass of the drift sweeper.
type SweepReport struct {
	Checked   int
	Corrected int
	Failed    int
}

// DriftSweeper periodically recomputes every wallet so that a stored balance
// which drifted from its transactions is corrected. With a Locker only one
// instance sweeps at a time.
type DriftSweeper struct {
	store    ports.Store
	ledger   ports.LedgerService
	locker   ports.Locker
	interval time.Duration
	lockTTL  time.Duration
	log      zerolog.Logger
}

// NewDriftSweeper creates a sweeper. locker may be nil for single-instance
// deployments.
func NewDriftSweeper(
	store ports.Store,
	ledger ports.LedgerService,
	locker ports.Locker,
	interval, lockTTL time.Duration,
	log zerolog.Logger,
) *DriftSweeper {
	return &DriftSweeper{
		store:    store,
		ledger:   ledger,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		log:      log,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *DriftSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("drift sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("drift sweeper stopped")
			return
		case <-ticker.C:
			s.sweepGuarded(ctx)
		}
	}
}

func (s *DriftSweeper) sweepGuarded(ctx context.Context) {
	if s.locker == nil {
		_, _ = s.SweepOnce(ctx)
		return
	}

	err := s.locker.WithLock(ctx, sweepLockKey, s.lockTTL, func(ctx context.Context) error {
		_, err := s.SweepOnce(ctx)
		return err
	})
	switch {
	case errors.Is(err, ports.ErrLockNotAcquired):
		s.log.Debug().Msg("drift sweep skipped, another instance holds the lock")
	case err != nil:
		s.log.Error().Err(err).Msg("drift sweep failed")
	}
}

// SweepOnce recomputes all wallets once. Wallets deleted during the sweep are
// skipped; other per-wallet failures are counted and logged.
func (s *DriftSweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	wallets, err := s.store.ListWallets(ctx)
	if err != nil {
		return report, fmt.Errorf("list wallets: %w", err)
	}

	for _, w := range wallets {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		res, err := s.ledger.Recompute(ctx, w.ID)
		if apperror.HasCode(err, apperror.CodeNotFound) {
			continue
		}
		report.Checked++
		if err != nil {
			report.Failed++
			s.log.Error().Err(err).Str("wallet_id", w.ID.String()).Msg("wallet recompute failed")
			continue
		}
		if res.Drifted() {
			report.Corrected++
		}
	}

	s.log.Info().
		Int("checked", report.Checked).
		Int("corrected", report.Corrected).
		Int("failed", report.Failed).
		Msg("drift sweep finished")
	return report, nil
}
