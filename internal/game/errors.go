package game

import "errors"

// Validation errors are reported to the requesting connection only; room
// state is never changed by a request that fails validation. Authorization
// mismatches are not errors; those requests are silent no-ops.
var (
	// ErrRoomExists is returned by CreateRoom when the key is taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrRoomNotFound is returned when no room has the given key.
	ErrRoomNotFound = errors.New("room not found")
	// ErrGameInProgress is returned by JoinRoom once a game has started.
	ErrGameInProgress = errors.New("game already in progress")
	// ErrNicknameTaken is returned by JoinRoom on a nickname collision.
	ErrNicknameTaken = errors.New("nickname already taken")
	// ErrAlreadySent rejects a second chat message in the same round.
	ErrAlreadySent = errors.New("message already sent this round")
	// ErrWrongRound rejects chat outside the phase that permits it.
	ErrWrongRound = errors.New("chat not allowed in this round")
	// ErrNotInRoom rejects chat whose sender does not match a member's
	// recorded connection.
	ErrNotInRoom = errors.New("not in room")
	// ErrAlreadyBound rejects create/join from a connection that is
	// already bound to a room.
	ErrAlreadyBound = errors.New("connection already in a room")
	// ErrBadNickname rejects nicknames outside the 2-15 character range.
	ErrBadNickname = errors.New("nickname must be between 2 and 15 characters")
	// ErrBadRoomKey rejects empty or oversized room keys.
	ErrBadRoomKey = errors.New("invalid room key")
)
