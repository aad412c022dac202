package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const MaxLabelLength = 255

var (
	ErrLabelRequired   = errors.New("label is required")
	ErrLabelTooLong    = errors.New("label must be at most 255 characters")
	ErrNegativeBalance = errors.New("wallet balance cannot be negative")
)

// Wallet is a named container whose balance is derived from its transactions.
// Balance is written only by the reconciler.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	Label     string          `json:"label"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewWallet returns an unsaved wallet with a zero balance.
func NewWallet(label string) (*Wallet, error) {
	label, err := NormalizeLabel(label)
	if err != nil {
		return nil, err
	}
	return &Wallet{Label: label, Balance: decimal.Zero}, nil
}

// NormalizeLabel trims surrounding whitespace and enforces the length limit.
func NormalizeLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", ErrLabelRequired
	}
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return "", ErrLabelTooLong
	}
	return label, nil
}

// ApplyTotal sets the balance to a freshly aggregated total.
// The wallet is left untouched when the total is negative or out of range.
func (w *Wallet) ApplyTotal(total decimal.Decimal) error {
	if total.IsNegative() {
		return ErrNegativeBalance
	}
	if err := CheckRange(total); err != nil {
		return err
	}
	w.Balance = total
	return nil
}
