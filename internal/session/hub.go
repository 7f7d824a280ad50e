package session

import (
	"sync"

	"github.com/mi-ganesh/Document-Editor/internal/models"
)

// Hub manages all active rooms and which rooms each client belongs to.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]*Room
	memberships map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]*Room),
		memberships: make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) getOrCreateLocked(id string) *Room {
	if r, ok := h.rooms[id]; ok {
		return r
	}
	r := NewRoom(id)
	h.rooms[id] = r
	return r
}

// Get returns the room named id if it has members.
func (h *Hub) Get(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[id]
	return r, ok
}

// Join adds c to the room named id, creating the room if needed.
func (h *Hub) Join(id string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.getOrCreateLocked(id).Join(c)
	rooms, ok := h.memberships[c]
	if !ok {
		rooms = make(map[string]struct{})
		h.memberships[c] = rooms
	}
	rooms[id] = struct{}{}
}

// Members lists the clients of room id in join order.
func (h *Hub) Members(id string) []*Client {
	room, ok := h.Get(id)
	if !ok {
		return nil
	}
	return room.Members()
}

// Broadcast sends frame to the members of room id except the given client.
// Unknown rooms are ignored.
func (h *Hub) Broadcast(id string, except *Client, frame models.WSFrame) {
	room, ok := h.Get(id)
	if !ok {
		return
	}
	room.Broadcast(except, frame)
}

// RoomsOf lists the rooms c currently belongs to.
func (h *Hub) RoomsOf(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.memberships[c]))
	for id := range h.memberships[c] {
		out = append(out, id)
	}
	return out
}

// LeaveAll removes c from every room and drops rooms that become empty.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.memberships[c] {
		room, ok := h.rooms[id]
		if !ok {
			continue
		}
		if left := room.Leave(c); left == 0 {
			delete(h.rooms, id)
		}
	}
	delete(h.memberships, c)
}

// Stats reports the number of rooms and connected clients.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.memberships)
}
