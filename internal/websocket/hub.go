package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Message is a planner event broadcast to all connected clients, e.g.
// plan_generated, entry_approval, regenerate_progress, plan_committed.
type Message struct {
	Event string         `json:"event"`
	Extra map[string]any `json:"extra,omitempty"`
	At    time.Time      `json:"at"`
}

// Hub maintains the set of active WebSocket clients and broadcasts
// planner events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a planner event to all connected clients.
func (h *Hub) Broadcast(event string, extra map[string]any) {
	data, err := json.Marshal(Message{Event: event, Extra: extra, At: time.Now().UTC()})
	if err != nil {
		h.logger.Error("marshal broadcast", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
