package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Message is the envelope written to websocket clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Client struct {
	UserID string
	conn   *websocket.Conn
	send   chan []byte
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
}

// Hub tracks connected clients per user. A user may hold several
// connections (tabs, devices); each gets every event for that user.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	direct     chan directMessage
	count      chan countQuery
	done       chan struct{}
	log        *logrus.Entry
}

type directMessage struct {
	client *Client
	data   []byte
}

type countQuery struct {
	userID string
	reply  chan int
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		direct:     make(chan directMessage, 64),
		count:      make(chan countQuery),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return

		case c := <-h.register:
			set, ok := h.clients[c.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.UserID] = set
			}
			set[c] = struct{}{}
			h.log.WithField("user_id", c.UserID).Debug("client registered")

		case c := <-h.unregister:
			h.remove(c)

		case event := <-h.broadcast:
			h.dispatch(event)

		case m := <-h.direct:
			if _, ok := h.clients[m.client.UserID][m.client]; ok {
				h.deliver(m.client, m.data)
			}

		case q := <-h.count:
			q.reply <- len(h.clients[q.userID])
		}
	}
}

// Dispatch queues an event for delivery. It never blocks the caller; a full
// queue drops the event and the clients resync on their next fetch.
func (h *Hub) Dispatch(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.WithField("table", event.Table).Warn("realtime queue full, dropping event")
	}
}

// Reply sends msg to one registered client. Unlike Send it is safe to call
// while the hub may be removing the client.
func (h *Hub) Reply(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.direct <- directMessage{client: c, data: data}:
	case <-h.done:
	default:
		h.log.WithField("user_id", c.UserID).Warn("realtime reply queue full")
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	h.log.WithField("user_id", c.UserID).Debug("client unregistered")
}

func (h *Hub) dispatch(event Event) {
	data, err := json.Marshal(Message{Type: "CHANGE", Data: event})
	if err != nil {
		h.log.WithError(err).Error("marshal realtime event")
		return
	}

	if event.UserID != "" {
		for c := range h.clients[event.UserID] {
			h.deliver(c, data)
		}
		return
	}
	for _, set := range h.clients {
		for c := range set {
			h.deliver(c, data)
		}
	}
}

// deliver drops slow clients instead of stalling the hub.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.remove(c)
	}
}

// Connections reports how many sockets a user has open.
func (h *Hub) Connections(userID string) int {
	q := countQuery{userID: userID, reply: make(chan int, 1)}
	select {
	case h.count <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}

// WritePump forwards queued messages to the socket and keeps it alive with
// pings. It returns when the hub closes the send channel.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues a direct message to this client, outside the hub fan-out. It
// must be called before the client is registered.
func (c *Client) Send(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump consumes client frames until the socket closes. onMessage gets
// every decoded frame.
func (c *Client) ReadPump(onMessage func(Message)) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		onMessage(msg)
	}
}
