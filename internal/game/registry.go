package game

import "sync"

// Registry maps live connection IDs to the room key each is bound to. A
// connection is bound by exactly one create or join for its lifetime; the
// binding is removed when the connection closes or its room dies.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]string)}
}

// Bind records connID as a member of roomKey.
//
// Postcondition: Returns ErrAlreadyBound if the connection is already in a
// room; the existing binding is never overwritten.
func (reg *Registry) Bind(connID, roomKey string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, bound := reg.rooms[connID]; bound {
		return ErrAlreadyBound
	}
	reg.rooms[connID] = roomKey
	return nil
}

// Unbind removes the binding for connID, returning the room key it held.
// Idempotent: unbinding an unknown connection returns ok=false.
func (reg *Registry) Unbind(connID string) (roomKey string, ok bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	roomKey, ok = reg.rooms[connID]
	if ok {
		delete(reg.rooms, connID)
	}
	return roomKey, ok
}

// RoomFor looks up the room key connID is bound to.
func (reg *Registry) RoomFor(connID string) (roomKey string, ok bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	roomKey, ok = reg.rooms[connID]
	return roomKey, ok
}

// Len reports the number of bound connections.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
