// Package ws pushes server events to browsers over websockets.
//
// The dashboard subscribes to the dataset reload topic so that open pages
// can offer a refresh when the dataset config changes.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// queueSize is the number of events buffered per subscriber.
	queueSize = 16

	// DefaultMaxSubscribers caps concurrent subscribers.
	DefaultMaxSubscribers = 1000
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON frame sent to subscribers.
type Message struct {
	Type  string `json:"type"`
	Data  any    `json:"data"`
	Topic string `json:"topic,omitempty"`
}

// Hub fans events out to subscribers of a topic.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc

	maxSubscribers int
}

// Client is one subscribed browser page.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	id    string
	topic string
}

// NewHub returns a hub. Run must be called before subscribers connect.
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		logger:         logger,
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		ctx:            ctx,
		cancel:         cancel,
		maxSubscribers: DefaultMaxSubscribers,
	}
}

// Run tracks subscribers until Stop is called.
func (h *Hub) Run() {
	defer h.cancel()

	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			h.logger.Debug("Event hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			metrics.RecordWebSocketConnection(client.topic)
			h.logger.Debug("Subscribed", zap.String("id", client.id), zap.String("topic", client.topic))

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
			h.logger.Debug("Unsubscribed", zap.String("id", client.id), zap.String("topic", client.topic))
		}
	}
}

// drop forgets client and closes its queue. h.mu must be held.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	metrics.RecordWebSocketDisconnection(client.topic)
}

// Broadcast sends an event to the subscribers of topic. A subscriber whose
// queue is full is disconnected; the page reconnects and catches up on the
// next event.
func (h *Hub) Broadcast(topic, messageType string, data any) {
	payload, err := json.Marshal(Message{Type: messageType, Data: data, Topic: topic})
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", messageType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var sent, lagging int
	for client := range h.clients {
		if client.topic != topic {
			continue
		}
		select {
		case client.send <- payload:
			sent++
		default:
			h.drop(client)
			lagging++
		}
	}
	h.logger.Debug("Event published",
		zap.String("topic", topic),
		zap.String("type", messageType),
		zap.Int("subscribers", sent),
		zap.Int("disconnected", lagging))
}

// Stop disconnects all subscribers.
func (h *Hub) Stop() {
	h.cancel()
}

// ClientCount returns the number of subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes the page to topic.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string) {
	if h.ClientCount() >= h.maxSubscribers {
		http.Error(w, "Too many subscribers", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, queueSize),
		id:    uuid.NewString(),
		topic: topic,
	}
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards incoming frames and keeps the read deadline fresh.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Subscriber closed", zap.String("id", c.id), zap.Error(err))
			}
			return
		}
	}
}

// writePump writes queued events and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
