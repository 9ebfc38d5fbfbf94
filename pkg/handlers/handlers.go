package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"contract-editor/pkg/room"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20 // imports carry whole documents
)

// Handlers contains the HTTP and WebSocket handlers.
type Handlers struct {
	manager *room.Manager
}

// NewHandlers creates a new handlers instance.
func NewHandlers(manager *room.Manager) *Handlers {
	return &Handlers{manager: manager}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// HandleWebSocket upgrades the connection and joins the client to the room
// named by the "session" query parameter. Without a session key the client
// lands in the legacy room.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sessionKey := r.URL.Query().Get("session")

	client := &room.Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	// Join before the pumps start so INIT is the first queued message.
	h.manager.Join(sessionKey, client)

	go h.writePump(client)
	go h.readPump(client)
}

// readPump reads client messages and feeds them to the room until the
// connection dies.
func (h *Handlers) readPump(c *room.Client) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("panic in readPump for %s: %v\n%s", c.ID, rec, debug.Stack())
		}
		h.manager.Leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket unexpected close for %s: %v", c.ID, err)
			}
			break
		}
		c.Room.HandleMessage(c, message)
	}
}

// writePump drains the client's send channel onto the connection and keeps
// the connection alive with pings.
func (h *Handlers) writePump(c *room.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.manager.Leave(c)
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The room closed the channel: the client was dropped.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ExportData returns the legacy room's current document as JSON.
func (h *Handlers) ExportData(w http.ResponseWriter, r *http.Request) {
	legacy := h.manager.Legacy()
	if legacy == nil {
		http.Error(w, "No document available", http.StatusNotFound)
		return
	}
	snapshot, err := legacy.Snapshot()
	if err != nil {
		http.Error(w, "Failed to export document", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(snapshot)
}

// ListSessions returns the live keyed rooms with their participant counts.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.Sessions()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}
