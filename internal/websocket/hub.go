package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client wraps a WebSocket connection.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Hub manages active WebSocket connections per user and pushes sync events
// to them. It supports multiple connections per user (e.g., multiple tabs).
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{} // userID -> set of clients
	maxPerUser int
}

// NewHub creates a new Hub with a per-user connection limit.
func NewHub(maxPerUser int) *Hub {
	if maxPerUser <= 0 {
		maxPerUser = 10
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxPerUser: maxPerUser,
	}
}

// Register adds a WebSocket connection for the given user.
// If the per-user limit is exceeded, the new connection is closed and nil is returned.
func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[userID]
	if !ok {
		userClients = make(map[*Client]struct{})
		h.clients[userID] = userClients
	}

	if len(userClients) >= h.maxPerUser {
		log.Printf("websocket: user %s exceeded max connections (%d), closing new connection", userID, h.maxPerUser)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections for this user"),
			time.Time{},
		)
		_ = conn.Close()
		return nil
	}

	client := &Client{conn: conn}
	userClients[client] = struct{}{}
	return client
}

// Unregister removes a client for the given user and closes the connection.
func (h *Hub) Unregister(userID string, client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if userClients, ok := h.clients[userID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.clients, userID)
		}
	}

	_ = client.conn.Close()
}

// SyncCompletedEvent is pushed to a user's connections when a sync run
// lands new messages for one of their accounts.
type SyncCompletedEvent struct {
	Type         string `json:"type"`
	AccountID    string `json:"account_id"`
	MessageCount int    `json:"message_count"`
}

// NotifySyncCompleted broadcasts a sync-completed event to all of the user's
// connections. Connections that fail to write are dropped.
func (h *Hub) NotifySyncCompleted(userID, accountID string, messageCount int) {
	event := SyncCompletedEvent{
		Type:         "sync_completed",
		AccountID:    accountID,
		MessageCount: messageCount,
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.mu.Lock()
		err := client.conn.WriteJSON(event)
		client.mu.Unlock()

		if err != nil {
			log.Printf("websocket: failed to push sync event to user %s: %v", userID, err)
			h.Unregister(userID, client)
		}
	}
}

// ClientCount returns the number of active connections for a user.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
