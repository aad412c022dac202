package dto

import (
	"bytes"
	"encoding/json"
)

// Amount is a decimal amount as sent by clients. Both JSON strings ("12.50")
// and JSON numbers (12.50) are accepted; the literal text is kept so no
// precision is lost before parsing.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	// numbers and anything else are validated by decimal_amount
	*a = Amount(data)
	return nil
}

// CreateWalletRequest is the request body for wallet creation.
type CreateWalletRequest struct {
	Label string `json:"label" binding:"required,max=255"`
}

// RenameWalletRequest is the request body for PATCH /wallets/:id.
type RenameWalletRequest struct {
	Label string `json:"label" binding:"required,max=255"`
}

// CreateTransactionRequest is the request body for posting a transaction.
type CreateTransactionRequest struct {
	WalletID string `json:"wallet_id" binding:"required,uuid"`
	TxID     string `json:"txid" binding:"required,max=255"`
	Amount   Amount `json:"amount" binding:"required,decimal_amount"`
}

// UpdateTransactionRequest is the request body for PATCH /transactions/:id.
// Omitted fields keep their value.
type UpdateTransactionRequest struct {
	WalletID *string `json:"wallet_id,omitempty" binding:"omitempty,uuid"`
	TxID     *string `json:"txid,omitempty" binding:"omitempty,max=255"`
	Amount   *Amount `json:"amount,omitempty" binding:"omitempty,decimal_amount"`
}

// WalletResponse is a wallet without its transactions.
type WalletResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// WalletDetailResponse is a wallet with its transactions, newest first.
type WalletDetailResponse struct {
	WalletResponse
	Transactions []TransactionResponse `json:"transactions"`
}

// TransactionResponse is the response body for a single transaction.
type TransactionResponse struct {
	ID        string `json:"id"`
	WalletID  string `json:"wallet_id"`
	TxID      string `json:"txid"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// BalanceResponse pairs a wallet with its balance after a change.
type BalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Balance  string `json:"balance"`
}

// TransactionResultResponse is returned by create and update. PreviousWallet
// is set when the transaction moved to another wallet.
type TransactionResultResponse struct {
	Transaction    TransactionResponse `json:"transaction"`
	Balance        string              `json:"balance"`
	PreviousWallet *BalanceResponse    `json:"previous_wallet,omitempty"`
}

// RecomputeResponse reports a balance recomputation.
type RecomputeResponse struct {
	WalletID        string `json:"wallet_id"`
	PreviousBalance string `json:"previous_balance"`
	Balance         string `json:"balance"`
	Drifted         bool   `json:"drifted"`
}
