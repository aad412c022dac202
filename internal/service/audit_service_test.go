package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async call")
	}
}

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionWalletCreated, log.Action)
			close(done)
			return nil
		},
	)

	walletID := uuid.New()
	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		WalletID:     &walletID,
		Action:       domain.AuditActionWalletCreated,
		ResourceType: "wallet",
		ResourceID:   walletID.String(),
		CreatedAt:    time.Now(),
	})

	waitFor(t, done)
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &domain.AuditLog{
			ID:        uuid.New(),
			Action:    domain.AuditActionWalletDeleted,
			CreatedAt: time.Now(),
		})
		time.Sleep(50 * time.Millisecond) // let goroutine run
	})
}

func TestAuditService_AfterCommit_TransactionEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	walletID := uuid.New()
	txn := &domain.Transaction{ID: uuid.New(), WalletID: walletID, TxID: "tx1", Amount: decimal.NewFromInt(100)}
	occurred := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			defer close(done)
			assert.Equal(t, domain.AuditActionTransactionCreated, log.Action)
			assert.Equal(t, "transaction", log.ResourceType)
			assert.Equal(t, txn.ID.String(), log.ResourceID)
			require.NotNil(t, log.WalletID)
			assert.Equal(t, walletID, *log.WalletID)
			assert.Equal(t, occurred, log.CreatedAt)

			var details map[string]any
			assert.NoError(t, json.Unmarshal([]byte(log.Details), &details))
			assert.Equal(t, "transaction.created", details["type"])
			return nil
		},
	)

	svc.AfterCommit(context.Background(), domain.LedgerEvent{
		Type:        domain.EventTransactionCreated,
		WalletID:    walletID,
		Balance:     decimal.NewFromInt(100),
		Transaction: txn,
		OccurredAt:  occurred,
	})

	waitFor(t, done)
}

func TestAuditService_AfterCommit_WalletEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())
	walletID := uuid.New()

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			defer close(done)
			assert.Equal(t, domain.AuditActionWalletRenamed, log.Action)
			assert.Equal(t, "wallet", log.ResourceType)
			assert.Equal(t, walletID.String(), log.ResourceID)
			assert.False(t, log.CreatedAt.IsZero())
			return nil
		},
	)

	svc.AfterCommit(context.Background(), domain.LedgerEvent{Type: domain.EventWalletRenamed, WalletID: walletID})
	waitFor(t, done)
}

func TestAuditService_AfterCommit_UnknownEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no Create expected
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	svc.AfterCommit(context.Background(), domain.LedgerEvent{Type: "wallet.frozen", WalletID: uuid.New()})
	time.Sleep(20 * time.Millisecond)
}
