package notification

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is what goes over the wire to connected clients.
type Event struct {
	Type    string    `json:"type"`
	Revoked int       `json:"revoked,omitempty"`
	At      time.Time `json:"at"`
}

const EventSessionsRevoked = "sessions.revoked"

// Hub tracks live websocket connections per user. A user may hold several
// (one per device), so revocation events reach every open tab.
type Hub struct {
	connections map[int64]map[*websocket.Conn]struct{}
	mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[int64]map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*websocket.Conn]struct{})
	}
	h.connections[userID][conn] = struct{}{}
}

func (h *Hub) Unregister(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if conns, exists := h.connections[userID]; exists {
		if _, ok := conns[conn]; ok {
			_ = conn.Close()
			delete(conns, conn)
		}
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
	}
}

// SendToUser delivers the event to every connection of the user and returns
// how many received it. Dead connections are dropped along the way.
func (h *Hub) SendToUser(userID int64, event Event) int {
	h.mutex.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections[userID]))
	for conn := range h.connections[userID] {
		conns = append(conns, conn)
	}
	h.mutex.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			h.Unregister(userID, conn)
			continue
		}
		delivered++
	}
	return delivered
}

// SessionsRevoked satisfies the auth service's notifier hook.
func (h *Hub) SessionsRevoked(userID int64, count int) {
	h.SendToUser(userID, Event{
		Type:    EventSessionsRevoked,
		Revoked: count,
		At:      time.Now().UTC(),
	})
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections[userID]) > 0
}

func (h *Hub) GetOnlineCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, conns := range h.connections {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.connections, userID)
	}
}
