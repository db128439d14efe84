package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/hithere-devs/email-saas/internal/auth"
	"github.com/hithere-devs/email-saas/internal/db"
	ws "github.com/hithere-devs/email-saas/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebSocketHandler handles the /api/v1/ws endpoint for sync event pushes.
type WebSocketHandler struct {
	pool *pgxpool.Pool
	hub  *ws.Hub
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(pool *pgxpool.Pool, hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{pool: pool, hub: hub}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// This server is expected to run behind a reverse proxy in a
		// trusted environment.
		return true
	},
}

// Handle upgrades the HTTP connection to a WebSocket and registers it with
// the hub. Authentication uses a query parameter (?token=...) since browsers
// cannot set headers on WebSocket connections; the Authorization header is
// accepted as a fallback for non-browser clients.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			fields := strings.Fields(authHeader)
			if len(fields) >= 2 && strings.EqualFold(fields[0], "Bearer") {
				token = strings.TrimSpace(strings.Join(fields[1:], " "))
			}
		}
	}

	if token == "" {
		log.Printf("WebSocketHandler: No token provided")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userEmail, err := auth.ValidateToken(token)
	if err != nil {
		log.Printf("WebSocketHandler: Token validation failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := db.GetOrCreateUser(ctx, h.pool, userEmail)
	if err != nil {
		log.Printf("WebSocketHandler: Failed to get/create user: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocketHandler: Upgrade failed: %v", err)
		return
	}

	client := h.hub.Register(userID, conn)
	if client == nil {
		return
	}

	// Drain the connection until the client goes away; the read loop is
	// what detects the close.
	go func() {
		defer h.hub.Unregister(userID, client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
