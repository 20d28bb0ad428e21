// WebSocket hub pushing engine state changes to the capture shell.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wayfound/trailbook/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon only serves the local shell
		return strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1")
	},
}

// Event types pushed to shell clients.
const (
	EventQueueUpdated        = "queue.updated"
	EventSyncStarted         = "sync.started"
	EventSyncCompleted       = "sync.completed"
	EventSyncFailed          = "sync.failed"
	EventConnectivityChanged = "connectivity.changed"
)

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// WSClient represents one connected shell.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub maintains active client connections and broadcasts messages.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// NewWSHub creates a hub and starts its dispatch loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("Shell connected",
				map[string]interface{}{"client_id": client.id, "total": total})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("Shell disconnected",
				map[string]interface{}{"client_id": client.id, "total": total})

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client send buffer is full, drop the connection
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to every connected shell.
func (h *WSHub) Broadcast(eventType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("Failed to marshal WebSocket event", err,
			map[string]interface{}{"type": eventType})
		return
	}

	h.broadcast <- bytes
}

// BroadcastQueueUpdated notifies shells that the backlog changed.
func (h *WSHub) BroadcastQueueUpdated(pendingCount int) {
	h.Broadcast(EventQueueUpdated, map[string]interface{}{
		"pending_count": pendingCount,
	})
}

// BroadcastSyncStarted notifies shells that a drain began.
func (h *WSHub) BroadcastSyncStarted() {
	h.Broadcast(EventSyncStarted, map[string]interface{}{
		"status": "started",
	})
}

// BroadcastSyncCompleted notifies shells of a finished drain.
func (h *WSHub) BroadcastSyncCompleted(synced, failed int, duration string) {
	h.Broadcast(EventSyncCompleted, map[string]interface{}{
		"synced_count": synced,
		"failed_count": failed,
		"duration":     duration,
		"status":       "completed",
	})
}

// BroadcastSyncFailed notifies shells that a drain left failures behind.
func (h *WSHub) BroadcastSyncFailed(synced, failed int) {
	h.Broadcast(EventSyncFailed, map[string]interface{}{
		"synced_count": synced,
		"failed_count": failed,
		"status":       "failed",
	})
}

// BroadcastConnectivityChanged notifies shells of a reachability edge.
func (h *WSHub) BroadcastConnectivityChanged(online bool) {
	h.Broadcast(EventConnectivityChanged, map[string]interface{}{
		"is_online": online,
	})
}

// readPump drains inbound messages until the connection dies. The shell has
// nothing to say to the hub; reading is only for close/pong handling.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("WebSocket read error",
					map[string]interface{}{"client_id": c.id, "error": err.Error()})
			}
			return
		}
	}
}

// writePump pumps messages to the WebSocket connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleWebSocket upgrades a shell connection and attaches it to the hub.
func HandleWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("Failed to upgrade WebSocket",
				map[string]interface{}{"error": err.Error()})
			return
		}

		client := &WSClient{
			id:   fmt.Sprintf("%s-%s", time.Now().Format("20060102150405"), r.RemoteAddr),
			conn: conn,
			send: make(chan []byte, 256),
			hub:  hub,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
