package service

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// publishTimeout bounds how long a commit waits on the event broker.
const publishTimeout = 5 * time.Second

// CacheInvalidator drops cached read models of every wallet an event touched.
type CacheInvalidator struct {
	cache ports.WalletCache
	log   zerolog.Logger
}

var _ ports.CommitHook = (*CacheInvalidator)(nil)

func NewCacheInvalidator(cache ports.WalletCache, log zerolog.Logger) *CacheInvalidator {
	return &CacheInvalidator{cache: cache, log: log}
}

func (h *CacheInvalidator) AfterCommit(ctx context.Context, event domain.LedgerEvent) {
	ids := event.AffectedWallets()
	if err := h.cache.Invalidate(context.WithoutCancel(ctx), ids...); err != nil {
		h.log.Warn().Err(err).
			Str("event", string(event.Type)).
			Str("wallet_id", event.WalletID.String()).
			Msg("failed to invalidate wallet cache")
	}
}

// PublishHook forwards committed events to the event publisher.
type PublishHook struct {
	publisher ports.EventPublisher
	log       zerolog.Logger
}

var _ ports.CommitHook = (*PublishHook)(nil)

func NewPublishHook(publisher ports.EventPublisher, log zerolog.Logger) *PublishHook {
	return &PublishHook{publisher: publisher, log: log}
}

func (h *PublishHook) AfterCommit(ctx context.Context, event domain.LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := h.publisher.Publish(ctx, event); err != nil {
		h.log.Warn().Err(err).
			Str("event", string(event.Type)).
			Str("wallet_id", event.WalletID.String()).
			Msg("failed to publish ledger event")
	}
}
