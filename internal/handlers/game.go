package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/metrics"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type GameHandler struct {
	gameEngine *services.GameEngine
	fair       *services.FairService
	spins      *services.SpinService
}

func NewGameHandler(gameEngine *services.GameEngine, fair *services.FairService, spins *services.SpinService) *GameHandler {
	return &GameHandler{
		gameEngine: gameEngine,
		fair:       fair,
		spins:      spins,
	}
}

func (h *GameHandler) PlayDice(c *gin.Context) {
	var req models.DicePlayRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.gameEngine.PlayDice(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "Failed to play dice", err)
		return
	}
	h.settled(c, session)
}

func (h *GameHandler) FlipCoin(c *gin.Context) {
	var req models.CoinFlipRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.gameEngine.FlipCoin(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "Failed to flip coin", err)
		return
	}
	h.settled(c, session)
}

func (h *GameHandler) settled(c *gin.Context, session *models.GameSession) {
	metrics.RecordBet(string(session.GameType), session.Win)
	metrics.RecordCoins("game", session.Payout)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result": gin.H{
			"game_id":     session.ID,
			"game_type":   session.GameType,
			"win":         session.Win,
			"multiplier":  session.Multiplier,
			"bet_amount":  session.BetAmount,
			"payout":      session.Payout,
			"outcome":     session.Outcome,
			"new_balance": session.Balance,
			"server_hash": session.ServerHash,
			"client_seed": session.ClientSeed,
			"nonce":       session.Nonce,
		},
	})
}

func (h *GameHandler) GetGame(c *gin.Context) {
	session, err := h.gameEngine.GetGameSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Game not found", err)
		return
	}
	if session.UserID != middleware.UserID(c) && !middleware.IsAdmin(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *GameHandler) GetGameHistory(c *gin.Context) {
	history, err := h.gameEngine.GetGameHistory(c.Request.Context(), middleware.UserID(c), queryLimit(c, 50, 100))
	if err != nil {
		respondError(c, "Failed to get game history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": history})
}

func (h *GameHandler) GetVerificationData(c *gin.Context) {
	data, err := h.fair.VerificationData(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get verification data", err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *GameHandler) SetClientSeed(c *gin.Context) {
	var req models.ClientSeedRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.fair.SetClientSeed(c.Request.Context(), middleware.UserID(c), req.ClientSeed); err != nil {
		respondError(c, "Failed to set client seed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "client_seed": req.ClientSeed})
}

// VerifyGame recomputes a round from seeds the player supplies, so it needs
// no stored state.
func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req models.VerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.fair.Verify(&req, h.spins.Wheel()))
}
