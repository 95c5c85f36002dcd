// Package realtime carries row-change events from the services to connected
// websocket clients. Events travel over Redis pub/sub so every API instance
// sees every change.
package realtime

import (
	"context"
	"encoding/json"
	"time"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Table names as the client caches them.
const (
	TableUsers         = "users"
	TableSpins         = "spins"
	TableTransactions  = "transactions"
	TableWithdrawals   = "withdrawals"
	TableInventory     = "inventory"
	TablePurchases     = "diamond_purchases"
	TableLotteries     = "lottery_games"
	TableTickets       = "lottery_tickets"
	TableMessages      = "messages"
	TableConversations = "conversations"
	TableFriends       = "friends"
	TableNotifications = "notifications"
	TableGames         = "game_sessions"
)

// Event is one row change. Row holds the full new row keyed by ID so a
// client can patch its cache without refetching. An empty UserID fans the
// event out to every connection.
type Event struct {
	Table  string      `json:"table"`
	Type   ChangeType  `json:"type"`
	ID     string      `json:"id"`
	UserID string      `json:"user_id,omitempty"`
	Row    interface{} `json:"row,omitempty"`
	At     int64       `json:"at"`
}

func NewEvent(table string, typ ChangeType, id, userID string, row interface{}) Event {
	return Event{
		Table:  table,
		Type:   typ,
		ID:     id,
		UserID: userID,
		Row:    row,
		At:     time.Now().Unix(),
	}
}

// Publisher is the side the services write to.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func decodeEvent(payload string) (Event, error) {
	var e Event
	err := json.Unmarshal([]byte(payload), &e)
	return e, err
}
