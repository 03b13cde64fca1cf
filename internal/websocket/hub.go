// Package websocket is the device transport. Each connected phone gets a
// Client that doubles as the audio device and the event sink of its own turn
// controller: binary frames feed the active capture, JSON control messages
// drive the conversation, and turn events stream back as JSON.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/somiapp/somi-core/internal/turn"
	"github.com/somiapp/somi-core/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of connected devices and the shared turn
// dependencies their controllers are built from.
type Hub struct {
	// Registered clients by user ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	services      turn.Services
	turnConfig    turn.Config
	conversations *usecase.ConversationService

	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(
	services turn.Services,
	turnConfig turn.Config,
	conversations *usecase.ConversationService,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		services:      services,
		turnConfig:    turnConfig,
		conversations: conversations,
		logger:        logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.userID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
			}
			h.mu.Unlock()

			// The phone went away; its conversation must not stay open
			// server-side. Tear it down before closing the send channel so
			// the turn events it emits still have a live sink.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			h.conversations.Release(ctx, client.controller)
			cancel()

			client.closeSend()

			h.logger.Info("Client unregistered", zap.String("userID", client.userID))
		}
	}
}

// ClientCount returns the number of connected devices.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades an authenticated request and starts the client's
// pumps. userID comes from the validated token, never from the request body.
func HandleWebSocket(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client, err := newClient(hub, conn, userID, logger)
	if err != nil {
		logger.Error("Failed to create client", zap.Error(err))
		conn.Close()
		return err
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}
