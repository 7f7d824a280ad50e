package session

import "sync"

// Presence maps connection ids to the username declared on join.
type Presence struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewPresence() *Presence { return &Presence{names: make(map[string]string)} }

func (p *Presence) Set(id, username string) {
	p.mu.Lock()
	p.names[id] = username
	p.mu.Unlock()
}

// Username returns the last declared username for id, or "" when unknown.
func (p *Presence) Username(id string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.names[id]
}

func (p *Presence) Remove(id string) {
	p.mu.Lock()
	delete(p.names, id)
	p.mu.Unlock()
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.names)
}
