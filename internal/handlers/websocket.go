package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/metrics"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/realtime"
	"spin-earn-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams change events to the client so it can keep its
// cache current without polling.
type WebSocketHandler struct {
	hub   *realtime.Hub
	users *services.UserService
}

func NewWebSocketHandler(hub *realtime.Hub, users *services.UserService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, users: users}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	log := logrus.WithField("user_id", userID)

	profile, err := h.users.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Failed to open realtime channel", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("failed to upgrade to websocket")
		return
	}

	client := realtime.NewClient(userID, conn)
	// The snapshot goes out first so events that follow apply on top of it.
	client.Send(realtime.Message{Type: "SNAPSHOT", Data: profile})

	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	metrics.ConnectionOpened()
	defer func() {
		h.hub.Unregister(client)
		metrics.ConnectionClosed()
	}()

	go client.WritePump()
	client.ReadPump(func(msg realtime.Message) {
		h.handleMessage(client, msg)
	})
}

func (h *WebSocketHandler) handleMessage(client *realtime.Client, msg realtime.Message) {
	switch msg.Type {
	case "PING":
		h.hub.Reply(client, realtime.Message{
			Type: "PONG",
			Data: gin.H{"timestamp": time.Now().Unix()},
		})
	}
}
