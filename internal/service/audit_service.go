package service

import (
	"context"
	"encoding/json"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditService records audit entries and turns committed ledger events
// into audit rows.
type AuditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

var (
	_ ports.AuditService = (*AuditService)(nil)
	_ ports.CommitHook   = (*AuditService)(nil)
)

// NewAuditService creates a new audit service.
// If repo is nil, audit entries are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

// Log records an audit entry asynchronously (fire-and-forget).
func (s *AuditService) Log(_ context.Context, entry *domain.AuditLog) {
	go func() {
		s.log.Info().
			Str("action", string(entry.Action)).
			Str("resource_type", entry.ResourceType).
			Str("resource_id", entry.ResourceID).
			Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), entry); err != nil {
				s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
			}
		}
	}()
}

// AfterCommit turns a committed ledger event into an audit entry.
func (s *AuditService) AfterCommit(ctx context.Context, event domain.LedgerEvent) {
	action, ok := domain.AuditActionFor(event.Type)
	if !ok {
		s.log.Warn().Str("event", string(event.Type)).Msg("no audit action for event")
		return
	}

	details, err := json.Marshal(event)
	if err != nil {
		s.log.Warn().Err(err).Str("event", string(event.Type)).Msg("failed to encode audit details")
		details = nil
	}

	walletID := event.WalletID
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		WalletID:     &walletID,
		Action:       action,
		ResourceType: "wallet",
		ResourceID:   walletID.String(),
		Details:      string(details),
		CreatedAt:    event.OccurredAt,
	}
	if event.Transaction != nil {
		entry.ResourceType = "transaction"
		entry.ResourceID = event.Transaction.ID.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.Log(ctx, entry)
}
