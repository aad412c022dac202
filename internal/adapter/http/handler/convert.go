package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseID reads a UUID path parameter.
func parseID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid " + name + ": must be a UUID")
	}
	return id, nil
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:        w.ID.String(),
		Label:     w.Label,
		Balance:   domain.FormatAmount(w.Balance),
		CreatedAt: formatTime(w.CreatedAt),
		UpdatedAt: formatTime(w.UpdatedAt),
	}
}

func toWalletDetailResponse(d *ports.WalletDetails) dto.WalletDetailResponse {
	return dto.WalletDetailResponse{
		WalletResponse: toWalletResponse(&d.Wallet),
		Transactions:   toTransactionResponses(d.Transactions),
	}
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:        t.ID.String(),
		WalletID:  t.WalletID.String(),
		TxID:      t.TxID,
		Amount:    domain.FormatAmount(t.Amount),
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

func toTransactionResponses(txns []domain.Transaction) []dto.TransactionResponse {
	out := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	return out
}

func toBalanceResponse(b *ports.WalletBalance) dto.BalanceResponse {
	return dto.BalanceResponse{
		WalletID: b.WalletID.String(),
		Balance:  domain.FormatAmount(b.Balance),
	}
}

func toTransactionResultResponse(r *ports.TransactionResult) dto.TransactionResultResponse {
	resp := dto.TransactionResultResponse{
		Transaction: toTransactionResponse(&r.Transaction),
		Balance:     domain.FormatAmount(r.Balance),
	}
	if r.Released != nil {
		prev := toBalanceResponse(r.Released)
		resp.PreviousWallet = &prev
	}
	return resp
}
