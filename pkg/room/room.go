package room

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"contract-editor/pkg/document"
	"contract-editor/pkg/protocol"

	"github.com/gorilla/websocket"
)

// Client represents a connected participant in a room.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Room *Room
	Send chan []byte
}

// Room is one isolated collaborative document session. The room mutex is
// held across a full mutation-plus-broadcast step, which serializes edits
// and guarantees every subscriber observes document versions in the same
// order.
type Room struct {
	Key       string
	CreatedAt time.Time

	mu      sync.Mutex
	store   *document.Store
	clients map[string]*Client
	persist func(snapshot []byte) // nil for ephemeral keyed rooms
}

func newRoom(key string, store *document.Store, persist func([]byte)) *Room {
	return &Room{
		Key:       key,
		CreatedAt: time.Now(),
		store:     store,
		clients:   make(map[string]*Client),
		persist:   persist,
	}
}

// Join registers a client, sends it the current document as an INIT
// message and broadcasts the new participant count to the whole room.
func (r *Room) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c.ID] = c
	c.Room = r

	snapshot, err := r.store.Snapshot()
	if err != nil {
		log.Printf("room %q: snapshot for init failed: %v", r.Key, err)
	} else if init, err := protocol.Init(snapshot); err == nil {
		r.sendLocked(c, init)
	}
	r.broadcastLocked(protocol.ClientCount(len(r.clients)))
	log.Printf("client %s joined room %q (%d connected)", c.ID, r.Key, len(r.clients))
}

// Leave removes a client and broadcasts the updated participant count to
// the remaining subscribers. It reports how many clients remain and
// whether the client was actually registered, so double leaves from the
// read and write pumps stay harmless.
func (r *Room) Leave(c *Client) (remaining int, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID]; !ok {
		return len(r.clients), false
	}
	delete(r.clients, c.ID)
	close(c.Send)
	r.broadcastLocked(protocol.ClientCount(len(r.clients)))
	log.Printf("client %s left room %q (%d connected)", c.ID, r.Key, len(r.clients))
	return len(r.clients), true
}

// HandleMessage applies one inbound client message. A successful mutation
// is broadcast to every subscriber, the sender included; a failure is
// reported to the sender only and leaves the document unchanged.
func (r *Room) HandleMessage(c *Client, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := protocol.Dispatch(r.store, raw)
	if err != nil {
		log.Printf("room %q: message from %s rejected: %v", r.Key, c.ID, err)
		r.sendLocked(c, protocol.Error(err))
		return
	}
	if doc == nil {
		log.Printf("room %q: ignoring unrecognized message from %s", r.Key, c.ID)
		return
	}

	snapshot, err := json.Marshal(doc)
	if err != nil {
		log.Printf("room %q: snapshot after mutation failed: %v", r.Key, err)
		return
	}
	update, err := protocol.DataUpdate(snapshot)
	if err != nil {
		log.Printf("room %q: encoding update failed: %v", r.Key, err)
		return
	}
	r.broadcastLocked(update)

	// Persistence is decoupled from the broadcast path; the gateway queues
	// the write so a slow disk never delays or reorders updates.
	if r.persist != nil {
		r.persist(snapshot)
	}
}

// Snapshot serializes the room's current document.
func (r *Room) Snapshot() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Snapshot()
}

// ClientCount returns the number of connected clients.
func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// broadcastLocked fans a message out to every client. Clients whose send
// buffer is full are dropped; their pumps observe the closed channel and
// tear the connection down.
func (r *Room) broadcastLocked(data []byte) {
	dropped := false
	for id, client := range r.clients {
		select {
		case client.Send <- data:
		default:
			close(client.Send)
			delete(r.clients, id)
			dropped = true
			log.Printf("client %s dropped from room %q: send buffer full", id, r.Key)
		}
	}
	// Survivors need to learn the new count when a drop shrinks the room.
	// Each pass removes at least one client, so this bottoms out.
	if dropped {
		r.broadcastLocked(protocol.ClientCount(len(r.clients)))
	}
}

// sendLocked delivers a message to a single client, dropping it on a full
// buffer rather than blocking the room. A client that already left (its
// Send channel is closed) is skipped.
func (r *Room) sendLocked(c *Client, data []byte) {
	if _, ok := r.clients[c.ID]; !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("client %s in room %q: send buffer full, message dropped", c.ID, r.Key)
	}
}
