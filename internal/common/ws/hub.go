package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"locshare/internal/common/logger"
)

// Hub stores active WebSocket connections keyed by user ID. Writes to a
// connection are serialized through a per-connection mutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     *logger.Logger
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		log:     log,
	}
}

// Add registers a connection under a user ID, closing any previous one.
func (h *Hub) Add(ctx context.Context, id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[id]; ok {
		_ = old.conn.Close()
	}
	h.clients[id] = &client{conn: conn}
	h.log.Info(ctx, "ws_registered", "WebSocket connection registered", map[string]any{"id": id})
}

// Remove deletes and closes the connection registered under id, but only if
// it is still the same connection. A reconnect that replaced it is left alone.
func (h *Hub) Remove(ctx context.Context, id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok || c.conn != conn {
		return
	}
	_ = c.conn.Close()
	delete(h.clients, id)
	h.log.Info(ctx, "ws_removed", "WebSocket connection removed", map[string]any{"id": id})
}

// Send transmits a JSON message to a connected user. Unknown ids are a no-op.
func (h *Hub) Send(id string, msg any) error {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// ListConnected returns all connected IDs.
func (h *Hub) ListConnected() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.clients))
	for k := range h.clients {
		keys = append(keys, k)
	}
	return keys
}
