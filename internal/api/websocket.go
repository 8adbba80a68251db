package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aier/aier/internal/logging"
)

// WebSocket message types
const (
	MessageState = "state" // full snapshot; sent on connect and after every save point
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// WebSocketMessage is the envelope pushed to clients
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub fans messages out to connected clients. A client that falls
// behind by more than its send buffer is dropped.
type WebSocketHub struct {
	upgrader websocket.Upgrader

	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{}

	wg sync.WaitGroup
	mu sync.RWMutex
}

// NewWebSocketHub creates a hub. Call Start before serving clients.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop until ctx is cancelled.
func (h *WebSocketHub) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Run(ctx)
	}()
}

// Run is the hub loop. On exit every client's send channel is closed, which
// makes its writer close the connection.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Wait blocks until the hub loop and every client goroutine have exited.
func (h *WebSocketHub) Wait() {
	h.wg.Wait()
}

// ClientCount returns the number of registered clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. It never blocks: when the queue is
// full or the hub has stopped the message is dropped.
func (h *WebSocketHub) Broadcast(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Warn("marshal websocket message: %v", err)
		return
	}

	select {
	case <-h.done:
	case h.broadcast <- data:
	default:
		logging.Debug("websocket broadcast queue full, dropping %s", msg.Type)
	}
}

// Serve upgrades the request and registers the connection. greeting, when
// non-nil, is the first message the client receives.
func (h *WebSocketHub) Serve(w http.ResponseWriter, r *http.Request, greeting *WebSocketMessage) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	if greeting != nil {
		if data, err := json.Marshal(greeting); err == nil {
			c.send <- data
		}
	}

	h.wg.Add(2)
	select {
	case h.register <- c:
	case <-h.done:
		h.wg.Add(-2)
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client input and detects disconnects.
func (h *WebSocketHub) readPump(c *wsClient) {
	defer h.wg.Done()
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
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
			return
		}
	}
}

func (h *WebSocketHub) writePump(c *wsClient) {
	defer h.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
