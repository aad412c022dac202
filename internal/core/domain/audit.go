package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWalletCreated      AuditAction = "WALLET_CREATED"
	AuditActionWalletRenamed      AuditAction = "WALLET_RENAMED"
	AuditActionWalletDeleted      AuditAction = "WALLET_DELETED"
	AuditActionWalletRecomputed   AuditAction = "WALLET_RECOMPUTED"
	AuditActionTransactionCreated AuditAction = "TRANSACTION_CREATED"
	AuditActionTransactionUpdated AuditAction = "TRANSACTION_UPDATED"
	AuditActionTransactionDeleted AuditAction = "TRANSACTION_DELETED"
)

var auditActions = map[EventType]AuditAction{
	EventWalletCreated:      AuditActionWalletCreated,
	EventWalletRenamed:      AuditActionWalletRenamed,
	EventWalletDeleted:      AuditActionWalletDeleted,
	EventWalletRecomputed:   AuditActionWalletRecomputed,
	EventTransactionCreated: AuditActionTransactionCreated,
	EventTransactionUpdated: AuditActionTransactionUpdated,
	EventTransactionDeleted: AuditActionTransactionDeleted,
}

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	WalletID     *uuid.UUID  `json:"wallet_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time   `json:"created_at"`
}

// AuditActionFor maps an event type to its audit action.
func AuditActionFor(t EventType) (AuditAction, bool) {
	a, ok := auditActions[t]
	return a, ok
}
