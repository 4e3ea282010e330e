package game

import (
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/parlorgame/parlor/internal/protocol"
)

const (
	nicknameMinLen = 2
	nicknameMaxLen = 15
	roomKeyMaxLen  = 16
)

// Directory is the authority on room existence: it owns the key-to-room table
// and the connection registry, and is the only component that creates or
// destroys rooms. Lock order is directory before room, never the reverse.
type Directory struct {
	logger *zap.Logger

	mu       sync.RWMutex
	rooms    map[string]*Room
	registry *Registry
}

// NewDirectory creates an empty directory.
func NewDirectory(logger *zap.Logger) *Directory {
	return &Directory{
		logger:   logger,
		rooms:    make(map[string]*Room),
		registry: NewRegistry(),
	}
}

// NormalizeKey canonicalizes a client-supplied room key. Keys differing
// only in case or surrounding whitespace address the same room.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func validateNickname(nickname string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(nickname))
	if n < nicknameMinLen || n > nicknameMaxLen {
		return ErrBadNickname
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || len(key) > roomKeyMaxLen {
		return ErrBadRoomKey
	}
	return nil
}

// CreateRoom creates a room under the normalized key with the caller as
// host. The host starts ready and the connection is bound to the room.
//
// Postcondition: Returns the initial snapshot, or ErrBadNickname /
// ErrBadRoomKey / ErrAlreadyBound / ErrRoomExists with no state change.
func (d *Directory) CreateRoom(key, hostNickname string, conn Conn) (protocol.RoomSnapshot, error) {
	hostNickname = strings.TrimSpace(hostNickname)
	if err := validateNickname(hostNickname); err != nil {
		return protocol.RoomSnapshot{}, err
	}
	key = NormalizeKey(key)
	if err := validateKey(key); err != nil {
		return protocol.RoomSnapshot{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, bound := d.registry.RoomFor(conn.ID()); bound {
		return protocol.RoomSnapshot{}, ErrAlreadyBound
	}
	if _, exists := d.rooms[key]; exists {
		return protocol.RoomSnapshot{}, ErrRoomExists
	}

	room := newRoom(key, d.logger, d.RemoveConnection)
	snap := room.addHost(hostNickname, conn)
	d.rooms[key] = room
	if err := d.registry.Bind(conn.ID(), key); err != nil {
		// Unreachable given the check above, but never leave a half-made room.
		delete(d.rooms, key)
		return protocol.RoomSnapshot{}, err
	}

	d.logger.Info("room created",
		zap.String("room", key),
		zap.String("host", hostNickname),
	)
	return snap, nil
}

// JoinRoom adds the caller to an existing room and binds the connection.
//
// Postcondition: Returns the updated snapshot (already broadcast to the
// room), or ErrBadNickname / ErrAlreadyBound / ErrRoomNotFound /
// ErrGameInProgress / ErrNicknameTaken with no state change.
func (d *Directory) JoinRoom(key, nickname string, conn Conn) (protocol.RoomSnapshot, error) {
	nickname = strings.TrimSpace(nickname)
	if err := validateNickname(nickname); err != nil {
		return protocol.RoomSnapshot{}, err
	}
	key = NormalizeKey(key)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, bound := d.registry.RoomFor(conn.ID()); bound {
		return protocol.RoomSnapshot{}, ErrAlreadyBound
	}
	room, exists := d.rooms[key]
	if !exists {
		return protocol.RoomSnapshot{}, ErrRoomNotFound
	}

	snap, err := room.join(nickname, conn)
	if err != nil {
		return protocol.RoomSnapshot{}, err
	}
	if err := d.registry.Bind(conn.ID(), key); err != nil {
		return protocol.RoomSnapshot{}, err
	}

	d.logger.Info("player joined",
		zap.String("room", key),
		zap.String("nickname", nickname),
	)
	return snap, nil
}

// Room looks up a live room by normalized key.
func (d *Directory) Room(key string) (*Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[NormalizeKey(key)]
	return room, ok
}

// RoomFor returns the room a connection is bound to.
func (d *Directory) RoomFor(connID string) (*Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key, ok := d.registry.RoomFor(connID)
	if !ok {
		return nil, false
	}
	room, ok := d.rooms[key]
	return room, ok
}

// RemoveConnection unbinds a connection and removes it from its room,
// destroying the room when the last member leaves. Idempotent: removing an
// unknown connection is a no-op. This is the single cleanup path for both
// transport-level disconnects and mid-broadcast send failures.
func (d *Directory) RemoveConnection(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key, ok := d.registry.Unbind(connID)
	if !ok {
		return
	}
	room, exists := d.rooms[key]
	if !exists {
		return
	}

	removed, empty := room.removeByConn(connID)
	if empty {
		delete(d.rooms, key)
		d.logger.Info("room destroyed", zap.String("room", key))
		return
	}
	if removed {
		d.logger.Info("player left",
			zap.String("room", key),
			zap.String("connection", connID),
		)
	}
}

// RoomCount reports the number of live rooms.
func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// ConnectionCount reports the number of room-bound connections.
func (d *Directory) ConnectionCount() int {
	return d.registry.Len()
}
