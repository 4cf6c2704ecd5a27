package websocket

import "sync"

// Presence is the process-wide registry of live connections per user. It is
// intentionally in-memory: presence dies with the process and clients
// re-register on reconnect. Running more than one server instance would need
// a shared store behind this same surface.
type Presence struct {
	mu    sync.RWMutex
	conns map[int64]map[*Client]struct{}
}

func NewPresence() *Presence {
	return &Presence{conns: make(map[int64]map[*Client]struct{})}
}

// Register adds a connection handle to the user's set, creating the set on
// first connect.
func (p *Presence) Register(userID int64, c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.conns[userID]
	if set == nil {
		set = make(map[*Client]struct{})
		p.conns[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes the handle from its user's set and drops the entry when
// the set empties. Returns true when that was the user's last connection.
func (p *Presence) Unregister(c *Client) (last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.conns[c.userID]
	if !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(p.conns, c.userID)
		return true
	}
	return false
}

func (p *Presence) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

// HandlesFor snapshots the user's live connection handles.
func (p *Presence) HandlesFor(userID int64) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	handles := make([]*Client, 0, len(p.conns[userID]))
	for c := range p.conns[userID] {
		handles = append(handles, c)
	}
	return handles
}
