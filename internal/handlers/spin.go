package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/metrics"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type SpinHandler struct {
	spins *services.SpinService
}

func NewSpinHandler(spins *services.SpinService) *SpinHandler {
	return &SpinHandler{spins: spins}
}

func (h *SpinHandler) Spin(c *gin.Context) {
	var req models.SpinRequest
	if !bindJSON(c, &req) {
		return
	}

	spin, err := h.spins.Spin(c.Request.Context(), middleware.UserID(c), req.RequestID)
	if err != nil {
		respondError(c, "Spin failed", err)
		return
	}
	metrics.RecordSpin(string(spin.Tier), spin.Reward)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"spin":    spin,
	})
}

func (h *SpinHandler) GetStatus(c *gin.Context) {
	status, err := h.spins.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get spin status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *SpinHandler) GetHistory(c *gin.Context) {
	spins, err := h.spins.History(c.Request.Context(), middleware.UserID(c), queryLimit(c, 20, 100))
	if err != nil {
		respondError(c, "Failed to get spin history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spins": spins})
}

func (h *SpinHandler) GetWheel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"segments": h.spins.Wheel(), "tiers": models.Tiers()})
}
