// Package gameserver dispatches decoded wire messages to the session core.
// It is transport-agnostic: the websocket layer hands it connections and
// raw frames, and it replies through the same connection handles.
package gameserver

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/parlorgame/parlor/internal/game"
	"github.com/parlorgame/parlor/internal/protocol"
)

// Server is the protocol front door: one instance serves every connection.
type Server struct {
	dir       *game.Directory
	gateway   *game.Gateway
	scheduler *game.Scheduler
	logger    *zap.Logger
}

// NewServer wires the dispatcher to the session core.
func NewServer(dir *game.Directory, gateway *game.Gateway, scheduler *game.Scheduler, logger *zap.Logger) *Server {
	return &Server{dir: dir, gateway: gateway, scheduler: scheduler, logger: logger}
}

// HandleOpen is called once when a connection is accepted. Connections hold
// no room state until their first create or join.
func (s *Server) HandleOpen(conn game.Conn) {
	s.logger.Debug("connection opened", zap.String("connection", conn.ID()))
}

// HandleClose is called once when a connection goes away, for any reason.
// Departure cleanup is idempotent with the mid-broadcast eviction path.
func (s *Server) HandleClose(connID string) {
	s.logger.Debug("connection closed", zap.String("connection", connID))
	s.dir.RemoveConnection(connID)
}

// HandleMessage decodes and dispatches one inbound frame. A malformed frame
// earns the sender a single ERROR reply; an unknown message type is logged
// and ignored. Neither ever disturbs room state.
func (s *Server) HandleMessage(conn game.Conn, raw []byte) {
	env, err := protocol.DecodeClient(raw)
	if err != nil {
		s.logger.Debug("malformed message",
			zap.String("connection", conn.ID()),
			zap.Error(err),
		)
		s.reply(conn, protocol.Error("malformed message"))
		return
	}

	switch env.Type {
	case protocol.TypeCreateRoom:
		s.handleCreate(conn, env)
	case protocol.TypeJoinRoom:
		s.handleJoin(conn, env)
	case protocol.TypePlayerReady:
		s.handleReady(conn, env)
	case protocol.TypeStartGame:
		s.handleStart(conn, env)
	case protocol.TypeChatMessage:
		s.handleChat(conn, env)
	case protocol.TypeResetGame:
		s.handleReset(conn, env)
	default:
		s.logger.Debug("unknown message type",
			zap.String("connection", conn.ID()),
			zap.String("type", string(env.Type)),
		)
	}
}

func (s *Server) handleCreate(conn game.Conn, env *protocol.ClientEnvelope) {
	snap, err := s.dir.CreateRoom(env.RoomID, env.PlayerNickname, conn)
	if err != nil {
		s.replyError(conn, err)
		return
	}
	s.reply(conn, protocol.RoomCreated(snap))
	s.reply(conn, protocol.GameState(snap))
}

func (s *Server) handleJoin(conn game.Conn, env *protocol.ClientEnvelope) {
	if _, err := s.dir.JoinRoom(env.RoomID, env.PlayerNickname, conn); err != nil {
		s.replyError(conn, err)
	}
	// The join itself broadcast the snapshot, the joiner included.
}

// roomFor resolves the target room: by key when the message names one, by
// the connection's binding otherwise (PLAYER_READY and RESET_GAME omit it).
func (s *Server) roomFor(conn game.Conn, key string) (*game.Room, bool) {
	if key != "" {
		return s.dir.Room(key)
	}
	return s.dir.RoomFor(conn.ID())
}

func (s *Server) handleReady(conn game.Conn, env *protocol.ClientEnvelope) {
	room, ok := s.roomFor(conn, env.RoomID)
	if !ok {
		s.replyError(conn, game.ErrRoomNotFound)
		return
	}
	room.SetReady(env.PlayerNickname, conn.ID(), env.IsReady)
}

func (s *Server) handleStart(conn game.Conn, env *protocol.ClientEnvelope) {
	room, ok := s.roomFor(conn, env.RoomID)
	if !ok {
		s.replyError(conn, game.ErrRoomNotFound)
		return
	}
	if room.StartGame(env.PlayerNickname, conn.ID()) {
		s.logger.Info("game started",
			zap.String("room", room.Key()),
			zap.String("host", env.PlayerNickname),
		)
		s.scheduler.Begin(room.Key())
	}
}

func (s *Server) handleChat(conn game.Conn, env *protocol.ClientEnvelope) {
	payload, err := env.ChatData()
	if err != nil {
		s.reply(conn, protocol.Error("malformed chat payload"))
		return
	}
	roomKey := payload.RoomKey
	if roomKey == "" {
		if room, ok := s.dir.RoomFor(conn.ID()); ok {
			roomKey = room.Key()
		}
	}
	ts := payload.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	if err := s.gateway.SendChat(roomKey, payload.Sender, conn.ID(), payload.Text, ts); err != nil {
		s.replyError(conn, err)
	}
}

func (s *Server) handleReset(conn game.Conn, env *protocol.ClientEnvelope) {
	room, ok := s.roomFor(conn, env.RoomID)
	if !ok {
		s.replyError(conn, game.ErrRoomNotFound)
		return
	}
	nickname := env.PlayerNickname
	if nickname == "" {
		if nickname, ok = room.NicknameFor(conn.ID()); !ok {
			return
		}
	}
	room.Reset(nickname, conn.ID())
}

// replyError maps a session error to an ERROR message for the requester.
// Only known validation errors cross the wire; anything else becomes a
// generic message so internal details stay internal.
func (s *Server) replyError(conn game.Conn, err error) {
	switch {
	case errors.Is(err, game.ErrRoomExists),
		errors.Is(err, game.ErrRoomNotFound),
		errors.Is(err, game.ErrGameInProgress),
		errors.Is(err, game.ErrNicknameTaken),
		errors.Is(err, game.ErrAlreadySent),
		errors.Is(err, game.ErrWrongRound),
		errors.Is(err, game.ErrNotInRoom),
		errors.Is(err, game.ErrAlreadyBound),
		errors.Is(err, game.ErrBadNickname),
		errors.Is(err, game.ErrBadRoomKey):
		s.reply(conn, protocol.Error(err.Error()))
	default:
		s.logger.Error("request failed", zap.String("connection", conn.ID()), zap.Error(err))
		s.reply(conn, protocol.Error("internal error"))
	}
}

func (s *Server) reply(conn game.Conn, msg protocol.ServerMessage) {
	data, err := msg.Encode()
	if err != nil {
		s.logger.Error("encoding reply", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}
	if err := conn.Send(data); err != nil {
		s.logger.Debug("reply dropped", zap.String("connection", conn.ID()), zap.Error(err))
	}
}
