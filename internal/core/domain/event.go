package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a committed ledger change.
type EventType string

const (
	EventWalletCreated      EventType = "wallet.created"
	EventWalletRenamed      EventType = "wallet.renamed"
	EventWalletDeleted      EventType = "wallet.deleted"
	EventWalletRecomputed   EventType = "wallet.recomputed"
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
)

// LedgerEvent describes a change after it has been committed.
// Balance is the owning wallet's balance at commit time.
type LedgerEvent struct {
	Type             EventType        `json:"type"`
	WalletID         uuid.UUID        `json:"wallet_id"`
	Balance          decimal.Decimal  `json:"balance"`
	Transaction      *Transaction     `json:"transaction,omitempty"`
	PreviousWalletID *uuid.UUID       `json:"previous_wallet_id,omitempty"`
	PreviousBalance  *decimal.Decimal `json:"previous_balance,omitempty"`
	OccurredAt       time.Time        `json:"occurred_at"`
}

// AffectedWallets lists every wallet whose state changed.
func (e LedgerEvent) AffectedWallets() []uuid.UUID {
	ids := []uuid.UUID{e.WalletID}
	if e.PreviousWalletID != nil && *e.PreviousWalletID != e.WalletID {
		ids = append(ids, *e.PreviousWalletID)
	}
	return ids
}
