package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/queryguard/pkg/metrics"
)

// MessageType identifies a change-stream message.
type MessageType string

// MessageSearch carries the current search string.
const MessageSearch MessageType = "search"

// Message is sent to change-stream clients as JSON.
type Message struct {
	Type   MessageType `json:"type"`
	Search string      `json:"search"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// enqueue queues data without blocking. It reports false when the queue
// is full or the client is gone.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub fans search changes out to WebSocket clients. Each client has its
// own queue and writer goroutine, so Broadcast never waits on the network.
type Hub struct {
	clients      map[*client]bool
	mu           sync.RWMutex
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	sendBuffer   int
	current      func() string
	metrics      *metrics.Collector
	logger       *slog.Logger
}

// NewHub creates a Hub. current returns the search sent to new clients.
func NewHub(cfg *Config, current func() string, m *metrics.Collector) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		writeTimeout: cfg.WriteTimeout,
		sendBuffer:   cfg.SendBufferSize,
		current:      current,
		metrics:      m,
		logger:       cfg.Logger.With("component", "hub"),
	}
}

// HandleWebSocket upgrades the request, sends the current search, and
// keeps the connection registered until the client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}

	// The greeting is queued while registering so that every later
	// broadcast is delivered after it.
	h.mu.Lock()
	h.clients[c] = true
	if data, err := encode(h.current()); err == nil {
		c.enqueue(data)
	}
	h.mu.Unlock()
	h.metrics.ClientConnected()

	go h.writeLoop(c)

	// Clients never send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(c)
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("dropping stream client", "error", err)
				h.drop(c)
				return
			}
		}
	}
}

// Broadcast queues search for every connected client. Clients whose
// queue is full are disconnected.
func (h *Hub) Broadcast(search string) {
	data, err := encode(search)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			h.logger.Debug("dropping slow stream client")
			h.drop(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]bool)
	h.mu.Unlock()

	for c := range clients {
		c.close()
		h.metrics.ClientDisconnected()
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
	if ok {
		h.metrics.ClientDisconnected()
	}
}

func encode(search string) ([]byte, error) {
	return json.Marshal(Message{Type: MessageSearch, Search: search})
}
