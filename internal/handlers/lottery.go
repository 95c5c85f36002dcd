package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type LotteryHandler struct {
	lottery *services.LotteryService
}

func NewLotteryHandler(lottery *services.LotteryService) *LotteryHandler {
	return &LotteryHandler{lottery: lottery}
}

func (h *LotteryHandler) ListOpen(c *gin.Context) {
	games, err := h.lottery.Open(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list lotteries", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lotteries": games})
}

func (h *LotteryHandler) ListRecent(c *gin.Context) {
	games, err := h.lottery.Recent(c.Request.Context(), queryLimit(c, 10, 50))
	if err != nil {
		respondError(c, "Failed to list lotteries", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lotteries": games})
}

func (h *LotteryHandler) GetLottery(c *gin.Context) {
	ctx := c.Request.Context()
	game, err := h.lottery.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, "Lottery not found", err)
		return
	}

	resp := gin.H{"lottery": game}
	if game.Status == models.LotteryDrawn {
		winners, err := h.lottery.Winners(ctx, game.ID)
		if err != nil {
			respondError(c, "Failed to load winners", err)
			return
		}
		resp["winners"] = winners
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LotteryHandler) BuyTicket(c *gin.Context) {
	var req models.BuyTicketRequest
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.lottery.BuyTicket(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Numbers)
	if err != nil {
		respondError(c, "Failed to buy ticket", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"ticket":  ticket,
	})
}

func (h *LotteryHandler) GetMyTickets(c *gin.Context) {
	tickets, err := h.lottery.UserTickets(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get tickets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}
