package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransactionHandler handles transaction endpoints.
type TransactionHandler struct {
	ledgerSvc ports.LedgerService
	walletSvc ports.WalletService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerSvc ports.LedgerService, walletSvc ports.WalletService) *TransactionHandler {
	return &TransactionHandler{
		ledgerSvc: ledgerSvc,
		walletSvc: walletSvc,
	}
}

// Create handles POST /api/v1/transactions.
func (h *TransactionHandler) Create(c *gin.Context) {
	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("wallet_id must be a UUID"))
		return
	}
	amount, err := domain.ParseAmount(string(req.Amount))
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmountDetail(err))
		return
	}

	result, err := h.ledgerSvc.CreateTransaction(c.Request.Context(), ports.CreateTransactionRequest{
		WalletID: walletID,
		TxID:     req.TxID,
		Amount:   amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResultResponse(result))
}

// Get handles GET /api/v1/transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	txn, err := h.walletSvc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// Update handles PATCH /api/v1/transactions/:id.
func (h *TransactionHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}

	var update ports.UpdateTransactionRequest
	if req.WalletID != nil {
		walletID, err := uuid.Parse(*req.WalletID)
		if err != nil {
			response.Error(c, apperror.Validation("wallet_id must be a UUID"))
			return
		}
		update.WalletID = &walletID
	}
	if req.Amount != nil {
		amount, err := domain.ParseAmount(string(*req.Amount))
		if err != nil {
			response.Error(c, apperror.ErrInvalidAmountDetail(err))
			return
		}
		update.Amount = &amount
	}
	update.TxID = req.TxID

	result, err := h.ledgerSvc.UpdateTransaction(c.Request.Context(), id, update)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResultResponse(result))
}

// Delete handles DELETE /api/v1/transactions/:id and returns the owning
// wallet's new balance.
func (h *TransactionHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	balance, err := h.ledgerSvc.DeleteTransaction(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toBalanceResponse(balance))
}
