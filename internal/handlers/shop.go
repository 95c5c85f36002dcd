package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type ShopHandler struct {
	shop *services.ShopService
}

func NewShopHandler(shop *services.ShopService) *ShopHandler {
	return &ShopHandler{shop: shop}
}

func (h *ShopHandler) ListItems(c *gin.Context) {
	items, err := h.shop.Items(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ShopHandler) Purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.shop.Purchase(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "Purchase failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *ShopHandler) Equip(c *gin.Context) {
	var req models.EquipRequest
	if !bindJSON(c, &req) {
		return
	}

	equipped, err := h.shop.Equip(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "Failed to equip item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"equipped": equipped,
	})
}

func (h *ShopHandler) GetInventory(c *gin.Context) {
	inv, err := h.shop.Inventory(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get inventory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inventory": inv})
}
