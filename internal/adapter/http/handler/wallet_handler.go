package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{
		walletSvc: walletSvc,
		ledgerSvc: ledgerSvc,
	}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), req.Label)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// List handles GET /api/v1/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	wallets, err := h.walletSvc.ListWallets(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, toWalletResponse(&wallets[i]))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	details, err := h.walletSvc.GetWallet(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletDetailResponse(details))
}

// Rename handles PATCH /api/v1/wallets/:id. Only the label can change.
func (h *WalletHandler) Rename(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.RenameWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	wallet, err := h.walletSvc.RenameWallet(c.Request.Context(), id, req.Label)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// Delete handles DELETE /api/v1/wallets/:id.
func (h *WalletHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.walletSvc.DeleteWallet(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ListTransactions handles GET /api/v1/wallets/:id/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	txns, err := h.walletSvc.ListTransactions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponses(txns))
}

// Recompute handles POST /api/v1/wallets/:id/recompute.
func (h *WalletHandler) Recompute(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.ledgerSvc.Recompute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RecomputeResponse{
		WalletID:        result.WalletID.String(),
		PreviousBalance: domain.FormatAmount(result.Previous),
		Balance:         domain.FormatAmount(result.Balance),
		Drifted:         result.Drifted(),
	})
}
