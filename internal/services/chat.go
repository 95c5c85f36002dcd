package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
)

const maxConversationMessages = 500

type ChatService struct {
	store *RedisService
	notes *NotificationService
}

func NewChatService(store *RedisService, notes *NotificationService) *ChatService {
	return &ChatService{store: store, notes: notes}
}

// conversationID is stable for a pair regardless of who writes first.
func conversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func (c *ChatService) areFriends(ctx context.Context, a, b string) (bool, error) {
	return c.store.client.SIsMember(ctx, fmt.Sprintf(KeyFriends, a), b).Result()
}

// SendFriendRequest files a request, or accepts straight away when the other
// user already asked us.
func (c *ChatService) SendFriendRequest(ctx context.Context, fromID, toID string) (accepted bool, err error) {
	if fromID == toID {
		return false, ErrSelfAction
	}
	target, err := c.store.GetUser(ctx, toID)
	if err != nil {
		return false, err
	}
	friends, err := c.areFriends(ctx, fromID, toID)
	if err != nil {
		return false, err
	}
	if friends {
		return true, nil
	}

	reverse, err := c.store.client.SIsMember(ctx, fmt.Sprintf(KeyFriendRequests, fromID), toID).Result()
	if err != nil {
		return false, err
	}
	if reverse {
		return true, c.AcceptFriend(ctx, fromID, toID)
	}

	if err := c.store.client.SAdd(ctx, fmt.Sprintf(KeyFriendRequests, toID), fromID).Err(); err != nil {
		return false, err
	}
	sender, err := c.store.GetUser(ctx, fromID)
	if err == nil {
		c.notes.notify(ctx, target.ID, models.NotificationFriend, "Friend request",
			fmt.Sprintf("%s wants to be your friend.", sender.Username))
	}
	return false, nil
}

// AcceptFriend accepts the pending request from fromID.
func (c *ChatService) AcceptFriend(ctx context.Context, userID, fromID string) error {
	removed, err := c.store.client.SRem(ctx, fmt.Sprintf(KeyFriendRequests, userID), fromID).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotFound
	}

	pipe := c.store.client.TxPipeline()
	pipe.SAdd(ctx, fmt.Sprintf(KeyFriends, userID), fromID)
	pipe.SAdd(ctx, fmt.Sprintf(KeyFriends, fromID), userID)
	pipe.SRem(ctx, fmt.Sprintf(KeyFriendRequests, fromID), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("accept friend: %w", err)
	}

	c.store.publish(ctx, realtime.NewEvent(realtime.TableFriends, realtime.ChangeInsert, fromID, userID, nil))
	c.store.publish(ctx, realtime.NewEvent(realtime.TableFriends, realtime.ChangeInsert, userID, fromID, nil))
	c.notes.notify(ctx, fromID, models.NotificationFriend, "Friend request accepted", "You have a new friend.")
	return nil
}

func (c *ChatService) DeclineFriend(ctx context.Context, userID, fromID string) error {
	removed, err := c.store.client.SRem(ctx, fmt.Sprintf(KeyFriendRequests, userID), fromID).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *ChatService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	pipe := c.store.client.TxPipeline()
	removed := pipe.SRem(ctx, fmt.Sprintf(KeyFriends, userID), friendID)
	pipe.SRem(ctx, fmt.Sprintf(KeyFriends, friendID), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if removed.Val() == 0 {
		return ErrNotFriends
	}
	c.store.publish(ctx, realtime.NewEvent(realtime.TableFriends, realtime.ChangeDelete, friendID, userID, nil))
	c.store.publish(ctx, realtime.NewEvent(realtime.TableFriends, realtime.ChangeDelete, userID, friendID, nil))
	return nil
}

func (c *ChatService) friendList(ctx context.Context, key string) ([]*models.Friend, error) {
	ids, err := c.store.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	users, err := c.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Friend, 0, len(users))
	for _, u := range users {
		out = append(out, friendView(u))
	}
	return out, nil
}

func (c *ChatService) Friends(ctx context.Context, userID string) ([]*models.Friend, error) {
	return c.friendList(ctx, fmt.Sprintf(KeyFriends, userID))
}

func (c *ChatService) FriendRequests(ctx context.Context, userID string) ([]*models.Friend, error) {
	return c.friendList(ctx, fmt.Sprintf(KeyFriendRequests, userID))
}

// canMessage allows friends, and anyone talking to or from an admin.
func (c *ChatService) canMessage(ctx context.Context, sender, receiver *models.User) (bool, error) {
	if sender.IsAdmin || receiver.IsAdmin {
		return true, nil
	}
	return c.areFriends(ctx, sender.ID, receiver.ID)
}

// SendMessage is send_message.
func (c *ChatService) SendMessage(ctx context.Context, senderID string, req *models.SendMessageRequest) (*models.Message, error) {
	if senderID == req.ReceiverID {
		return nil, ErrSelfAction
	}
	sender, err := c.store.GetUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender.Banned {
		return nil, ErrUserBanned
	}
	receiver, err := c.store.GetUser(ctx, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	ok, err := c.canMessage(ctx, sender, receiver)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFriends
	}

	convID := conversationID(senderID, req.ReceiverID)
	convKey := fmt.Sprintf(KeyConversation, convID)
	seq, err := c.store.client.HIncrBy(ctx, convKey, "seq", 1).Result()
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:             models.NewID(),
		ConversationID: convID,
		Seq:            seq,
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		CreatedAt:      time.Now().Unix(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	userA, userB := senderID, req.ReceiverID
	if userA > userB {
		userA, userB = userB, userA
	}

	msgsKey := fmt.Sprintf(KeyConvMessages, convID)
	pipe := c.store.client.TxPipeline()
	pipe.RPush(ctx, msgsKey, data)
	pipe.LTrim(ctx, msgsKey, -maxConversationMessages, -1)
	pipe.HSet(ctx, convKey,
		"id", convID,
		"user_a", userA,
		"user_b", userB,
		"last_message", msg.Content,
		"last_message_at", msg.CreatedAt,
	)
	pipe.HIncrBy(ctx, fmt.Sprintf(KeyConvUnread, convID), req.ReceiverID, 1)
	pipe.ZAdd(ctx, fmt.Sprintf(KeyUserConversations, senderID), redis.Z{Score: float64(msg.CreatedAt), Member: convID})
	pipe.ZAdd(ctx, fmt.Sprintf(KeyUserConversations, req.ReceiverID), redis.Z{Score: float64(msg.CreatedAt), Member: convID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	event := realtime.NewEvent(realtime.TableMessages, realtime.ChangeInsert, msg.ID, req.ReceiverID, msg)
	c.store.publish(ctx, event)
	event.UserID = senderID
	c.store.publish(ctx, event)

	return msg, nil
}

// MarkRead is mark_messages_read: it clears everything senderID sent to
// userID so far and returns how many messages were unread.
func (c *ChatService) MarkRead(ctx context.Context, userID, senderID string) (int64, error) {
	convID := conversationID(userID, senderID)
	vals, err := scriptStrings(markReadScript.Run(ctx, c.store.client,
		[]string{
			fmt.Sprintf(KeyConversation, convID),
			fmt.Sprintf(KeyConvUnread, convID),
			fmt.Sprintf(KeyConvReadAt, convID),
		},
		userID,
	))
	if err != nil {
		return 0, err
	}
	nums, err := parseInts(vals)
	if err != nil {
		return 0, err
	}
	cleared, seq := nums[0], nums[1]

	if cleared > 0 {
		c.store.publish(ctx, realtime.NewEvent(realtime.TableConversations, realtime.ChangeUpdate, convID, userID,
			map[string]interface{}{"id": convID, "unread": 0}))
		c.store.publish(ctx, realtime.NewEvent(realtime.TableMessages, realtime.ChangeUpdate, convID, senderID,
			map[string]interface{}{"conversation_id": convID, "read_by": userID, "read_seq": seq}))
	}
	return cleared, nil
}

func (c *ChatService) Conversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	ids, err := c.store.client.ZRevRange(ctx, fmt.Sprintf(KeyUserConversations, userID), 0, HistoryLimit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Conversation, 0, len(ids))
	for _, id := range ids {
		var conv models.Conversation
		if err := c.store.loadHash(ctx, fmt.Sprintf(KeyConversation, id), &conv); err != nil {
			continue
		}
		conv.Unread, _ = c.store.client.HGet(ctx, fmt.Sprintf(KeyConvUnread, id), userID).Int64()
		conv.Peer = conv.UserA
		if conv.Peer == userID {
			conv.Peer = conv.UserB
		}
		out = append(out, &conv)
	}
	return out, nil
}

// Messages returns the latest messages with peerID, oldest first. Read is
// set from the receiver's read cursor.
func (c *ChatService) Messages(ctx context.Context, userID, peerID string, limit int64) ([]*models.Message, error) {
	if limit <= 0 || limit > maxConversationMessages {
		limit = 50
	}
	convID := conversationID(userID, peerID)
	raw, err := c.store.client.LRange(ctx, fmt.Sprintf(KeyConvMessages, convID), -limit, -1).Result()
	if err != nil {
		return nil, err
	}
	cursors, err := c.store.client.HGetAll(ctx, fmt.Sprintf(KeyConvReadAt, convID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*models.Message, 0, len(raw))
	for _, r := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		readSeq, _ := strconv.ParseInt(cursors[m.ReceiverID], 10, 64)
		m.Read = m.Seq <= readSeq
		out = append(out, &m)
	}
	return out, nil
}
