package models

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	// Seq orders messages within a conversation; read cursors store it.
	Seq            int64  `json:"seq"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	Content        string `json:"content"`
	Read           bool   `json:"read"`
	CreatedAt      int64  `json:"created_at"`
}

type Conversation struct {
	ID            string `json:"id" redis:"id"`
	UserA         string `json:"user_a" redis:"user_a"`
	UserB         string `json:"user_b" redis:"user_b"`
	LastMessage   string `json:"last_message" redis:"last_message"`
	LastMessageAt int64  `json:"last_message_at" redis:"last_message_at"`
	Seq           int64  `json:"-" redis:"seq"`
	Unread        int64  `json:"unread" redis:"-"`
	Peer          string `json:"peer" redis:"-"`
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required,max=2000"`
}

type MarkReadRequest struct {
	SenderID string `json:"sender_id" binding:"required"`
}

type FriendRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type Friend struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Coins    int64    `json:"coins"`
	Tier     TierName `json:"tier"`
}
