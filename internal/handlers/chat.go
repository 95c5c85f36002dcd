package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) GetFriends(c *gin.Context) {
	friends, err := h.chat.Friends(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get friends", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *ChatHandler) GetFriendRequests(c *gin.Context) {
	requests, err := h.chat.FriendRequests(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get friend requests", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *ChatHandler) SendFriendRequest(c *gin.Context) {
	var req models.FriendRequest
	if !bindJSON(c, &req) {
		return
	}

	accepted, err := h.chat.SendFriendRequest(c.Request.Context(), middleware.UserID(c), req.UserID)
	if err != nil {
		respondError(c, "Failed to send friend request", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"accepted": accepted,
	})
}

func (h *ChatHandler) AcceptFriend(c *gin.Context) {
	if err := h.chat.AcceptFriend(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, "Failed to accept friend request", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) DeclineFriend(c *gin.Context) {
	if err := h.chat.DeclineFriend(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, "Failed to decline friend request", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) RemoveFriend(c *gin.Context) {
	if err := h.chat.RemoveFriend(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, "Failed to remove friend", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, "Failed to send message", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": msg,
	})
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	var req models.MarkReadRequest
	if !bindJSON(c, &req) {
		return
	}

	cleared, err := h.chat.MarkRead(c.Request.Context(), middleware.UserID(c), req.SenderID)
	if err != nil {
		respondError(c, "Failed to mark messages read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"marked":  cleared,
	})
}

func (h *ChatHandler) GetConversations(c *gin.Context) {
	convs, err := h.chat.Conversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get conversations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	msgs, err := h.chat.Messages(c.Request.Context(), middleware.UserID(c), c.Param("id"), queryLimit(c, 50, 200))
	if err != nil {
		respondError(c, "Failed to get messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
