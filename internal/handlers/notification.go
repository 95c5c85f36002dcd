package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type NotificationHandler struct {
	notes *services.NotificationService
}

func NewNotificationHandler(notes *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notes: notes}
}

func (h *NotificationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	list, err := h.notes.List(ctx, uid, queryLimit(c, 50, 100))
	if err != nil {
		respondError(c, "Failed to get notifications", err)
		return
	}
	unread, err := h.notes.UnreadCount(ctx, uid)
	if err != nil {
		respondError(c, "Failed to get notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"unread":        unread,
	})
}

// MarkRead marks the given ids, or every notification when ids is empty.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	marked, err := h.notes.MarkRead(c.Request.Context(), middleware.UserID(c), req.IDs)
	if err != nil {
		respondError(c, "Failed to mark notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"marked":  marked,
	})
}

func (h *NotificationHandler) FileReport(c *gin.Context) {
	var req models.ReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.notes.FileReport(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "Failed to file report", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"report":  report,
	})
}
