package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const MaxTxIDLength = 255

var (
	ErrTxIDRequired = errors.New("txid is required")
	ErrTxIDTooLong  = errors.New("txid must be at most 255 characters")
)

// Transaction is a signed ledger entry owned by exactly one wallet.
// TxID is the caller-supplied identifier and is unique across all wallets.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	WalletID  uuid.UUID       `json:"wallet_id"`
	TxID      string          `json:"txid"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NormalizeTxID trims surrounding whitespace and enforces the length limit.
func NormalizeTxID(txid string) (string, error) {
	txid = strings.TrimSpace(txid)
	if txid == "" {
		return "", ErrTxIDRequired
	}
	if utf8.RuneCountInString(txid) > MaxTxIDLength {
		return "", ErrTxIDTooLong
	}
	return txid, nil
}
