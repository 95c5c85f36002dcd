package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/metrics"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type AdminHandler struct {
	admin   *services.AdminService
	users   *services.UserService
	wallet  *services.WalletService
	lottery *services.LotteryService
	shop    *services.ShopService
	notes   *services.NotificationService
	fair    *services.FairService
}

type AdminDeps struct {
	Admin   *services.AdminService
	Users   *services.UserService
	Wallet  *services.WalletService
	Lottery *services.LotteryService
	Shop    *services.ShopService
	Notes   *services.NotificationService
	Fair    *services.FairService
}

func NewAdminHandler(d AdminDeps) *AdminHandler {
	return &AdminHandler{
		admin:   d.Admin,
		users:   d.Users,
		wallet:  d.Wallet,
		lottery: d.Lottery,
		shop:    d.Shop,
		notes:   d.Notes,
		fair:    d.Fair,
	}
}

func (h *AdminHandler) audit(c *gin.Context, action string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"admin_id": middleware.UserID(c),
		"action":   action,
	})
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to load dashboard", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) BanUser(c *gin.Context) {
	var req models.BanRequest
	if !bindJSON(c, &req) {
		return
	}

	id := c.Param("id")
	if id == middleware.UserID(c) {
		respondError(c, "Cannot ban yourself", services.ErrSelfAction)
		return
	}
	if err := h.users.SetBanned(c.Request.Context(), id, req.Ban); err != nil {
		respondError(c, "Failed to update ban", err)
		return
	}
	h.audit(c, "ban").WithFields(logrus.Fields{"user_id": id, "banned": req.Ban}).Info("user ban updated")
	c.JSON(http.StatusOK, gin.H{"success": true, "banned": req.Ban})
}

func (h *AdminHandler) SetSpinLimit(c *gin.Context) {
	var req models.SpinLimitRequest
	if !bindJSON(c, &req) {
		return
	}

	id := c.Param("id")
	if err := h.users.SetSpinLimit(c.Request.Context(), id, req.Limit); err != nil {
		respondError(c, "Failed to update spin limit", err)
		return
	}
	h.audit(c, "spin_limit").WithFields(logrus.Fields{"user_id": id, "limit": req.Limit}).Info("spin limit updated")
	c.JSON(http.StatusOK, gin.H{"success": true, "daily_spin_limit": req.Limit})
}

func (h *AdminHandler) PendingWithdrawals(c *gin.Context) {
	list, err := h.wallet.PendingWithdrawals(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get withdrawals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	h.decideWithdrawal(c, h.wallet.ApproveWithdrawal, "approve")
}

func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	h.decideWithdrawal(c, h.wallet.RejectWithdrawal, "reject")
}

func (h *AdminHandler) decideWithdrawal(c *gin.Context, decide func(context.Context, string, string) (*models.Withdrawal, error), action string) {
	var req models.DecisionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	wd, err := decide(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		respondError(c, "Failed to "+action+" withdrawal", err)
		return
	}
	metrics.RecordWithdrawal(string(wd.Status))
	h.audit(c, action).WithFields(logrus.Fields{
		"withdrawal_id": wd.ID,
		"user_id":       wd.UserID,
		"amount":        wd.Amount,
	}).Info("withdrawal decided")

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"withdrawal": wd,
	})
}

func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req models.BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.admin.Broadcast(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "Broadcast failed", err)
		return
	}
	h.audit(c, "broadcast").WithField("recipients", msg.Recipients).Info("broadcast sent")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": msg,
	})
}

func (h *AdminHandler) Messages(c *gin.Context) {
	list, err := h.admin.Messages(c.Request.Context(), queryLimit(c, 20, 100))
	if err != nil {
		respondError(c, "Failed to get messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

func (h *AdminHandler) CreateLottery(c *gin.Context) {
	var req models.CreateLotteryRequest
	if !bindJSON(c, &req) {
		return
	}

	game, err := h.lottery.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to create lottery", err)
		return
	}
	h.audit(c, "lottery_create").WithField("lottery_id", game.ID).Info("lottery created")
	c.JSON(http.StatusCreated, gin.H{"lottery": game})
}

// DrawLottery draws immediately, ignoring the scheduled draw time.
func (h *AdminHandler) DrawLottery(c *gin.Context) {
	result, err := h.lottery.Draw(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		respondError(c, "Draw failed", err)
		return
	}
	for _, w := range result.Winners {
		metrics.RecordCoins("lottery", w.Prize)
	}
	h.audit(c, "lottery_draw").WithFields(logrus.Fields{
		"lottery_id": result.LotteryID,
		"winners":    len(result.Winners),
	}).Info("lottery drawn")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *AdminHandler) SaveShopItem(c *gin.Context) {
	var item models.ShopItem
	if !bindJSON(c, &item) {
		return
	}
	if item.ID == "" || item.Price <= 0 ||
		(item.Currency != models.CurrencyCoins && item.Currency != models.CurrencyDiamonds) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": "id, positive price and a coins or diamonds currency are required",
		})
		return
	}

	if err := h.shop.SaveItem(c.Request.Context(), &item); err != nil {
		respondError(c, "Failed to save item", err)
		return
	}
	h.audit(c, "shop_item").WithField("item_id", item.ID).Info("shop item saved")
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *AdminHandler) Reports(c *gin.Context) {
	reports, err := h.notes.OpenReports(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (h *AdminHandler) ResolveReport(c *gin.Context) {
	report, err := h.notes.ResolveReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to resolve report", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// RotateSeed publishes the retiring server seed so past rounds can be
// verified.
func (h *AdminHandler) RotateSeed(c *gin.Context) {
	previous, err := h.fair.Rotate(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to rotate seed", err)
		return
	}
	hash, err := h.fair.ServerHash(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to rotate seed", err)
		return
	}
	h.audit(c, "rotate_seed").Info("server seed rotated")
	c.JSON(http.StatusOK, gin.H{
		"previous_seed": previous,
		"server_hash":   hash,
	})
}
