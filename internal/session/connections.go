package session

import "sync"

// Binding ties a transport connection to the player it speaks for.
type Binding struct {
	ConnID   string
	PlayerID string
	RoomCode string
}

// Connections is the bidirectional conn <-> player map. A player has at
// most one live connection; binding a new one replaces the old.
type Connections struct {
	mu       sync.RWMutex
	byConn   map[string]Binding
	byPlayer map[string]string
}

func NewConnections() *Connections {
	return &Connections{
		byConn:   make(map[string]Binding),
		byPlayer: make(map[string]string),
	}
}

// Bind returns the connection id previously bound to the player, if any.
func (c *Connections) Bind(connID, playerID, roomCode string) (replaced string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byConn[connID]; ok && old.PlayerID != playerID {
		delete(c.byPlayer, old.PlayerID)
	}
	if prev, ok := c.byPlayer[playerID]; ok && prev != connID {
		delete(c.byConn, prev)
		replaced = prev
	}
	c.byConn[connID] = Binding{ConnID: connID, PlayerID: playerID, RoomCode: roomCode}
	c.byPlayer[playerID] = connID
	return replaced
}

func (c *Connections) ByConn(connID string) (Binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.byConn[connID]
	return b, ok
}

func (c *Connections) ConnOf(playerID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byPlayer[playerID]
	return id, ok
}

func (c *Connections) UnbindConn(connID string) (Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.byConn[connID]
	if !ok {
		return Binding{}, false
	}
	delete(c.byConn, connID)
	if c.byPlayer[b.PlayerID] == connID {
		delete(c.byPlayer, b.PlayerID)
	}
	return b, true
}

func (c *Connections) UnbindPlayer(playerID string) (Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	connID, ok := c.byPlayer[playerID]
	if !ok {
		return Binding{}, false
	}
	b := c.byConn[connID]
	delete(c.byPlayer, playerID)
	delete(c.byConn, connID)
	return b, true
}

func (c *Connections) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byConn)
}
