package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/metrics"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type WalletHandler struct {
	wallet *services.WalletService
}

func NewWalletHandler(wallet *services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	var req models.WithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}

	wd, err := h.wallet.RequestWithdrawal(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "Withdrawal failed", err)
		return
	}
	metrics.RecordWithdrawal(string(wd.Status))

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"withdrawal": wd,
	})
}

func (h *WalletHandler) GetWithdrawals(c *gin.Context) {
	list, err := h.wallet.UserWithdrawals(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get withdrawals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

func (h *WalletHandler) ConvertDiamonds(c *gin.Context) {
	var req models.ConvertDiamondsRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.wallet.ConvertDiamonds(c.Request.Context(), middleware.UserID(c), req.Diamonds)
	if err != nil {
		respondError(c, "Conversion failed", err)
		return
	}
	metrics.RecordCoins("conversion", result.CoinsCredited)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *WalletHandler) GetPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": h.wallet.Packages()})
}

func (h *WalletHandler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.wallet.Checkout(c.Request.Context(), middleware.UserID(c), req.PackageID)
	if err != nil {
		respondError(c, "Checkout failed", err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *WalletHandler) GetPurchases(c *gin.Context) {
	list, err := h.wallet.UserPurchases(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get purchases", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": list})
}

// PaymentSuccess and PaymentFailure are the gateway return URLs. They carry
// no session, the signature is the only proof.
func (h *WalletHandler) PaymentSuccess(c *gin.Context) {
	h.settle(c, models.PurchaseCompleted)
}

func (h *WalletHandler) PaymentFailure(c *gin.Context) {
	h.settle(c, models.PurchaseFailed)
}

func (h *WalletHandler) settle(c *gin.Context, status models.PurchaseStatus) {
	id := c.Query("purchase_id")
	sig := c.Query("signature")
	if id == "" || sig == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": "purchase_id and signature are required",
		})
		return
	}

	purchase, err := h.wallet.SettlePurchase(c.Request.Context(), id, sig, status)
	if err != nil {
		respondError(c, "Payment could not be settled", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  purchase.Status == models.PurchaseCompleted,
		"purchase": purchase,
	})
}
