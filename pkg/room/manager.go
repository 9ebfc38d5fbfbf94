package room

import (
	"log"
	"sync"
	"time"

	"contract-editor/pkg/document"
)

// DefaultTTL is how long a keyed room may sit with zero subscribers before
// it is evicted.
const DefaultTTL = 30 * time.Minute

// Manager owns every live room: the process-lifetime legacy room plus all
// keyed rooms, which are created lazily on first join and evicted after
// sitting empty for the idle timeout. Lock order is always manager before
// room; rooms never call back into the manager.
type Manager struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	timers map[string]*time.Timer
	ttl    time.Duration
	legacy *Room
}

// NewManager creates a manager evicting idle keyed rooms after ttl.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		rooms:  make(map[string]*Room),
		timers: make(map[string]*time.Timer),
		ttl:    ttl,
	}
}

// InitLegacy creates the unkeyed legacy room, optionally seeded with a
// previously persisted document and wired to a persistence hook. The
// legacy room lives for the whole process and is never evicted.
func (m *Manager) InitLegacy(doc *document.Document, persist func(snapshot []byte)) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy = newRoom("", document.NewStoreWith(doc), persist)
	return m.legacy
}

// Legacy returns the legacy room.
func (m *Manager) Legacy() *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.legacy
}

// Join resolves the room for key (the empty key means the legacy room),
// creating it with an empty document if needed, cancels any pending
// eviction and registers the client.
func (m *Manager) Join(key string, c *Client) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.resolveLocked(key)
	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
	// Registering under the manager lock closes the window in which a
	// just-fired eviction could observe the room empty.
	r.Join(c)
	return r
}

// Leave unregisters the client from its room. A keyed room left with zero
// subscribers is scheduled for eviction; rejoining before the timer fires
// keeps the room and its document intact.
func (m *Manager) Leave(c *Client) {
	if c.Room == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// The client may already be gone if a full send buffer got it dropped
	// mid-broadcast; what matters here is whether the room ended up empty.
	remaining, _ := c.Room.Leave(c)
	if remaining > 0 || c.Room.Key == "" {
		return
	}
	key := c.Room.Key
	if m.rooms[key] != c.Room {
		return
	}
	if t, ok := m.timers[key]; ok {
		t.Stop()
	}
	m.timers[key] = time.AfterFunc(m.ttl, func() { m.evict(key) })
}

// Has reports whether a keyed room currently exists.
func (m *Manager) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[key]
	return ok
}

// SessionInfo describes one live keyed room.
type SessionInfo struct {
	ID          string `json:"id"`
	ClientCount int    `json:"clientCount"`
	CreatedAt   int64  `json:"createdAt"`
}

// Sessions lists all live keyed rooms.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionInfo, 0, len(m.rooms))
	for key, r := range m.rooms {
		out = append(out, SessionInfo{
			ID:          key,
			ClientCount: r.ClientCount(),
			CreatedAt:   r.CreatedAt.UnixMilli(),
		})
	}
	return out
}

func (m *Manager) resolveLocked(key string) *Room {
	if key == "" {
		if m.legacy == nil {
			m.legacy = newRoom("", document.NewStore(), nil)
		}
		return m.legacy
	}
	if r, ok := m.rooms[key]; ok {
		return r
	}
	r := newRoom(key, document.NewStore(), nil)
	m.rooms[key] = r
	log.Printf("room %q created", key)
	return r
}

// evict discards a keyed room if it is still empty when its idle timer
// fires. A join racing with the timer wins: it either stopped the timer or
// repopulated the room before this check runs.
func (m *Manager) evict(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[key]
	if !ok || r.ClientCount() > 0 {
		return
	}
	delete(m.rooms, key)
	delete(m.timers, key)
	log.Printf("room %q evicted after idle timeout", key)
}
