// Package websocket pushes activity records to connected browsers so open
// feed and calendar views update without polling.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dperrin/gather/internal/model"
)

// Message is one real-time notification broadcast to all clients.
type Message struct {
	Type    string `json:"type"`
	UserID  int64  `json:"user_id"`
	GroupID int64  `json:"group_id,omitempty"`
	EventID int64  `json:"event_id"`
	Link    string `json:"link,omitempty"`
}

// ActivityMessage converts an activity record to its wire form.
func ActivityMessage(a model.Activity) Message {
	return Message{
		Type:    a.Type,
		UserID:  a.UserID,
		GroupID: a.ItemID,
		EventID: a.SecondaryItemID,
		Link:    a.PrimaryLink,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
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

// Unregister removes a client from the hub and closes its outbox.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.outbox)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.outbox <- data:
		default:
			// Viewer is not draining its outbox; drop rather than block
			// the broadcast.
		}
	}
}

// ActivityRecorded broadcasts newly recorded activity. Records hidden from
// the sitewide stream stay off the wire too; clients viewing a group refetch
// that group's feed instead.
func (h *Hub) ActivityRecorded(a model.Activity) {
	if a.HideSitewide {
		return
	}
	h.Broadcast(ActivityMessage(a))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
