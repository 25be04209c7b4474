package ws

import (
	"sync"

	"github.com/orgball2608/moments-playback-service/internal/events"
	"github.com/orgball2608/moments-playback-service/pkg/logger"
)

// Hub maintains the set of active viewer connections, keyed by user ID, and
// routes engagement events to authors.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage
	done       chan struct{}
	mu         sync.RWMutex
	logger     logger.Logger
}

type broadcastMessage struct {
	userIDs []string
	event   *events.Event
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 64),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run starts the hub's main loop. Blocks until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			// A user gets one connection; a newer one replaces the old.
			if existing, ok := h.clients[client.userID]; ok {
				existing.shutdown()
				h.logger.Info("Replaced existing viewer connection", "user_id", client.userID)
			}
			h.clients[client.userID] = client
			h.mu.Unlock()
			h.logger.Info("Viewer connected", "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				client.shutdown()
				h.logger.Info("Viewer disconnected", "user_id", client.userID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.deliver(message.userIDs, message.event)
		}
	}
}

// Stop terminates the hub loop and drops all connections.
func (h *Hub) Stop() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.shutdown()
		delete(h.clients, id)
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// BroadcastToUsers sends an event to specific users. Never blocks the caller.
func (h *Hub) BroadcastToUsers(userIDs []string, event *events.Event) {
	select {
	case h.broadcast <- &broadcastMessage{userIDs: userIDs, event: event}:
	default:
		h.logger.Warn("Broadcast channel is full, dropping event", "type", string(event.Type))
	}
}

func (h *Hub) BroadcastToUser(userID string, event *events.Event) {
	h.BroadcastToUsers([]string{userID}, event)
}

func (h *Hub) deliver(userIDs []string, event *events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range userIDs {
		client, ok := h.clients[userID]
		if !ok {
			continue
		}
		if err := client.SendEvent(event); err != nil {
			h.logger.Error("Failed to send event to viewer", "user_id", userID, "error", err)
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
