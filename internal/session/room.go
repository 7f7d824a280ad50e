package session

import (
	"sync"

	"github.com/mi-ganesh/Document-Editor/internal/models"
)

// Room is the set of connections grouped under one room key, kept in join order.
type Room struct {
	ID      string
	mu      sync.Mutex
	clients []*Client
}

func NewRoom(id string) *Room {
	return &Room{ID: id}
}

// Join adds c to the room; joining twice is a no-op.
func (r *Room) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.clients {
		if existing == c {
			return
		}
	}
	r.clients = append(r.clients, c)
}

// Leave removes c and returns the number of clients left.
func (r *Room) Leave(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.clients {
		if existing == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			break
		}
	}
	return len(r.clients)
}

// Members returns a copy of the current clients.
func (r *Room) Members() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, len(r.clients))
	copy(out, r.clients)
	return out
}

// Broadcast sends frame to every client except the given one (which may be nil).
func (r *Room) Broadcast(except *Client, frame models.WSFrame) {
	for _, c := range r.Members() {
		if c == except {
			continue
		}
		c.Send(frame)
	}
}
