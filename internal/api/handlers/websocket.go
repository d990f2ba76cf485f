package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/onnwee/nstore/internal/logger"
	"github.com/onnwee/nstore/internal/metrics"
	"github.com/onnwee/nstore/internal/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The ops API is not browser-facing; accept any origin.
		return true
	},
}

// Client is one connected event subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans store lifecycle events (flush, prune, clear) out to every
// connected websocket client. Wire it to the stores through Broadcast
// as the server's event callback.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan store.Event
	stop       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex
}

// NewHub creates an event hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan store.Event, 256),
		stop:       make(chan struct{}),
	}
}

// Broadcast queues a store event for delivery to every client. Safe to
// call from store goroutines; a full queue drops the event rather than
// blocking a flush.
func (h *Hub) Broadcast(ev store.Event) {
	select {
	case h.events <- ev:
	default:
		logger.Warn("Event queue full, dropping event", "namespace", ev.Namespace, "type", ev.Type)
	}
}

// Run is the hub's main loop. Returns when ctx is cancelled or Stop is
// called.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-h.stop:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.EventClients.Inc()
			logger.Info("Event client connected", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.EventClients.Dec()
				logger.Info("Event client disconnected", "total_clients", len(h.clients))
			}
			h.mu.Unlock()

		case ev := <-h.events:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Error("Failed to marshal store event", "error", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client's send buffer is full, close the connection
					close(client.send)
					delete(h.clients, client)
					metrics.EventClients.Dec()
				}
			}
			h.mu.Unlock()
			metrics.EventsBroadcast.Inc()
		}
	}
}

// Stop shuts the hub down. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// readPump discards client messages, keeping the read side alive for
// pong handling.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Event client unexpected close", "error", err)
			}
			break
		}
	}
}

// writePump pumps events from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// HandleEvents upgrades the connection and subscribes it to store
// events.
// GET /v1/events
func (h *Hub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		logger.Error("Failed to upgrade to websocket", "error", err)
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
