package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub is the room membership registry: it maps room keys to the set of connected
// clients that joined them. Membership is ephemeral and in-memory only; a client
// disconnect removes it from every room. The hub is injected into the reflection
// service as its Publisher rather than reached for as a global.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]bool
	logger *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]bool),
		logger: logger,
	}
}

// Join adds the client to a room, creating the room on first join.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
}

// Remove drops the client from every room it joined. Empty rooms are deleted so
// old daily rooms don't accumulate across prompt rotations.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
}

// Publish fans an event out to every member of the room. A member whose send
// buffer is full is skipped; its write pump is already wedged and the read pump
// will clean it up on disconnect.
func (h *Hub) Publish(room string, event string, data any) {
	payload, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		if h.logger != nil {
			h.logger.Errorw("failed to marshal broadcast", "room", room, "event", event, "error", err)
		}
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			if h.logger != nil {
				h.logger.Warnw("dropping broadcast to slow client", "room", room, "event", event)
			}
		}
	}
}

// RoomSize reports current membership, for logging and tests.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
