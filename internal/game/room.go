// Package game implements the in-memory session core: rooms, membership,
// the round state machine, and the chat gating rules. All state lives in
// process memory; the Directory is the single authority for room lifetime.
package game

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parlorgame/parlor/internal/protocol"
)

// Status is a room's lifecycle state.
type Status string

const (
	// StatusWaiting accepts joins; players mark themselves ready.
	StatusWaiting Status = "waiting"
	// StatusPlaying is terminal: the round sub-state cycles but the room
	// never returns to waiting except through a host reset.
	StatusPlaying Status = "playing"
)

// Round is the phase of an in-progress game. Phases repeat in a fixed
// cycle: question, answer, translation.
type Round string

const (
	RoundQuestion    Round = "question"
	RoundAnswer      Round = "answer"
	RoundTranslation Round = "translation"
)

// NoMessageSentinel stands in for a player who sent nothing during the
// answer phase. Every non-host player appears in a batch exactly once,
// silent players with this marker.
const NoMessageSentinel = "(no message)"

// Conn is the abstract bidirectional channel the core holds per connection.
// The core references connections, never owns them; Send must not block.
type Conn interface {
	// ID is the opaque identity assigned at accept time.
	ID() string
	// Send enqueues one wire message. A non-nil error means the
	// connection is unusable and will be evicted.
	Send(data []byte) error
	// Close tears down the connection.
	Close() error
}

// BatchEntry is one player's staged answer (or the no-message sentinel)
// collected at the end of an answer phase.
type BatchEntry struct {
	Nickname string
	Text     string
}

// Player is a room member. The nickname is the player's sole identity
// within the room; the connection on file guards against spoofing.
type Player struct {
	Nickname       string
	Ready          bool
	HasSentMessage bool

	conn Conn
}

// Room owns one room's state: membership in insertion order (the first
// player is the host), the round state machine, the staged answer buffer,
// and the live phase timer. All mutation goes through Room methods; the
// internal mutex is the room's single serialization point.
type Room struct {
	key    string
	logger *zap.Logger

	// evictFn is invoked (on its own goroutine) with the connection ID of
	// any member whose send failed mid-broadcast.
	evictFn func(connID string)

	mu       sync.Mutex
	status   Status
	round    Round
	players  []*Player
	pending  map[string]string
	timer    *RoundTimer
	phaseSeq int
}

func newRoom(key string, logger *zap.Logger, evictFn func(connID string)) *Room {
	return &Room{
		key:     key,
		logger:  logger,
		evictFn: evictFn,
		status:  StatusWaiting,
		pending: make(map[string]string),
	}
}

// Key returns the room's normalized key.
func (r *Room) Key() string { return r.key }

// Status returns the room's current lifecycle state.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Round returns the current phase, or "" while waiting.
func (r *Room) Round() Round {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round
}

// PlayerCount returns the number of members.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// NicknameFor returns the nickname of the member bound to connID.
func (r *Room) NicknameFor(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.conn != nil && p.conn.ID() == connID {
			return p.Nickname, true
		}
	}
	return "", false
}

// HostNickname returns the host's nickname, or "" if the room is empty.
// The host is always the first-inserted surviving member.
func (r *Room) HostNickname() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.players) == 0 {
		return ""
	}
	return r.players[0].Nickname
}

// Snapshot returns the client-visible state of the room.
func (r *Room) Snapshot() protocol.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() protocol.RoomSnapshot {
	snap := protocol.RoomSnapshot{
		ID:      r.key,
		Status:  string(r.status),
		Round:   string(r.round),
		Players: make(map[string]protocol.PlayerSnapshot, len(r.players)),
	}
	if len(r.players) > 0 {
		snap.Host = r.players[0].Nickname
	}
	for _, p := range r.players {
		snap.Players[p.Nickname] = protocol.PlayerSnapshot{
			Nickname:       p.Nickname,
			Ready:          p.Ready,
			HasSentMessage: p.HasSentMessage,
		}
	}
	return snap
}

func (r *Room) playerLocked(nickname string) *Player {
	for _, p := range r.players {
		if p.Nickname == nickname {
			return p
		}
	}
	return nil
}

// addHost inserts the creating player. Called by the Directory exactly once,
// immediately after construction. The host starts ready.
func (r *Room) addHost(nickname string, conn Conn) protocol.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = append(r.players, &Player{Nickname: nickname, Ready: true, conn: conn})
	return r.snapshotLocked()
}

// join inserts a new player and broadcasts the updated snapshot to every
// member, the joiner included.
//
// Postcondition: Returns the new snapshot, or ErrGameInProgress /
// ErrNicknameTaken with the room unchanged.
func (r *Room) join(nickname string, conn Conn) (protocol.RoomSnapshot, error) {
	r.mu.Lock()
	if r.status != StatusWaiting {
		r.mu.Unlock()
		return protocol.RoomSnapshot{}, ErrGameInProgress
	}
	if r.playerLocked(nickname) != nil {
		r.mu.Unlock()
		return protocol.RoomSnapshot{}, ErrNicknameTaken
	}
	r.players = append(r.players, &Player{Nickname: nickname, conn: conn})
	snap := r.snapshotLocked()
	failed := r.broadcastLocked(protocol.GameState(snap))
	r.mu.Unlock()

	r.evict(failed)
	return snap, nil
}

// SetReady updates a player's ready flag and broadcasts the new snapshot.
// The request is a silent no-op when the connection identity does not match
// the one on file for the nickname (spoofing guard).
func (r *Room) SetReady(nickname, connID string, ready bool) {
	r.mu.Lock()
	p := r.playerLocked(nickname)
	if p == nil || p.conn == nil || p.conn.ID() != connID {
		r.mu.Unlock()
		return
	}
	p.Ready = ready
	failed := r.broadcastLocked(protocol.GameState(r.snapshotLocked()))
	r.mu.Unlock()

	r.evict(failed)
}

// StartGame transitions the room to playing. Only the host's recorded
// connection may start, and only when every player is ready; anything else
// is a silent no-op. On success the room enters the question phase and the
// new snapshot is broadcast.
//
// Postcondition: Returns true exactly when the transition happened; the
// caller is responsible for arming the round scheduler.
func (r *Room) StartGame(nickname, connID string) bool {
	r.mu.Lock()
	if r.status != StatusWaiting || len(r.players) == 0 {
		r.mu.Unlock()
		return false
	}
	host := r.players[0]
	if host.Nickname != nickname || host.conn == nil || host.conn.ID() != connID {
		r.mu.Unlock()
		return false
	}
	for _, p := range r.players {
		if !p.Ready {
			r.mu.Unlock()
			return false
		}
	}
	r.status = StatusPlaying
	r.round = RoundQuestion
	r.phaseSeq++
	failed := r.broadcastLocked(protocol.GameState(r.snapshotLocked()))
	r.mu.Unlock()

	r.evict(failed)
	return true
}

// Reset returns a playing room to the waiting state: the timer is cancelled,
// staged messages are dropped, and every guest's ready flag is cleared.
// Host-only; a non-host request is a silent no-op.
//
// Postcondition: Returns true exactly when the reset happened.
func (r *Room) Reset(nickname, connID string) bool {
	r.mu.Lock()
	if len(r.players) == 0 {
		r.mu.Unlock()
		return false
	}
	host := r.players[0]
	if host.Nickname != nickname || host.conn == nil || host.conn.ID() != connID {
		r.mu.Unlock()
		return false
	}
	r.status = StatusWaiting
	r.round = ""
	r.phaseSeq++
	r.pending = make(map[string]string)
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	for i, p := range r.players {
		p.HasSentMessage = false
		if i > 0 {
			p.Ready = false
		}
	}
	failed := r.broadcastLocked(protocol.GameState(r.snapshotLocked()))
	r.mu.Unlock()

	r.evict(failed)
	return true
}

// Chat validates and routes one chat message. Host messages are broadcast
// room-wide verbatim; guest messages are accepted only during the answer
// phase, at most once per round, echoed privately to the sender and staged
// for batch processing. The host/public conflation is intentional.
//
// Postcondition: Returns nil, ErrNotInRoom, ErrWrongRound, or ErrAlreadySent;
// room state is unchanged on error.
func (r *Room) Chat(sender, connID, text, timestamp string) error {
	r.mu.Lock()
	p := r.playerLocked(sender)
	if p == nil || p.conn == nil || p.conn.ID() != connID {
		r.mu.Unlock()
		return ErrNotInRoom
	}
	if r.status != StatusPlaying {
		r.mu.Unlock()
		return ErrWrongRound
	}

	isHost := r.players[0] == p
	payload := protocol.ChatPayload{
		RoomKey:   r.key,
		Sender:    sender,
		Text:      text,
		Timestamp: timestamp,
		IsPrivate: !isHost,
	}

	if isHost {
		failed := r.broadcastLocked(protocol.Chat(payload))
		r.mu.Unlock()
		r.evict(failed)
		return nil
	}

	if r.round != RoundAnswer {
		r.mu.Unlock()
		return ErrWrongRound
	}
	if p.HasSentMessage {
		r.mu.Unlock()
		return ErrAlreadySent
	}
	p.HasSentMessage = true
	r.pending[sender] = text

	var failed []Conn
	if echo, err := protocol.Chat(payload).Encode(); err == nil {
		if sendErr := p.conn.Send(echo); sendErr != nil {
			failed = append(failed, p.conn)
		}
	}
	// Everyone sees who has answered via the snapshot; the text stays
	// private until translation.
	failed = append(failed, r.broadcastLocked(protocol.GameState(r.snapshotLocked()))...)
	r.mu.Unlock()

	r.evict(failed)
	return nil
}

// AdvanceRound moves the room to the next phase of the cycle and broadcasts
// the new snapshot. When the answer phase ends, the staged message batch is
// collected and returned: every guest appears exactly once, silent guests
// with the no-message sentinel. The pending buffer and all hasSentMessage
// flags are cleared at collection time, before any translation attempt, so
// a failed translation can never block the next round.
//
// Postcondition: Returns the new phase, the batch (nil except when entering
// translation), the new phase sequence number, and ok=false when the room
// is not playing.
func (r *Room) AdvanceRound() (next Round, batch []BatchEntry, seq int, ok bool) {
	r.mu.Lock()
	if r.status != StatusPlaying {
		r.mu.Unlock()
		return "", nil, 0, false
	}

	switch r.round {
	case RoundQuestion:
		r.round = RoundAnswer
	case RoundAnswer:
		r.round = RoundTranslation
		batch = r.collectBatchLocked()
	default:
		r.round = RoundQuestion
	}
	r.phaseSeq++
	next = r.round
	seq = r.phaseSeq

	failed := r.broadcastLocked(protocol.GameState(r.snapshotLocked()))
	r.mu.Unlock()

	r.evict(failed)
	return next, batch, seq, true
}

func (r *Room) collectBatchLocked() []BatchEntry {
	var batch []BatchEntry
	for i, p := range r.players {
		if i == 0 {
			continue // host prompts are already public
		}
		text, sent := r.pending[p.Nickname]
		if !sent {
			text = NoMessageSentinel
		}
		batch = append(batch, BatchEntry{Nickname: p.Nickname, Text: text})
		p.HasSentMessage = false
	}
	r.pending = make(map[string]string)
	return batch
}

// BroadcastSystemChat delivers the translator's output room-wide as a
// public chat message from the given sender name.
func (r *Room) BroadcastSystemChat(sender, text string) {
	r.mu.Lock()
	payload := protocol.ChatPayload{
		RoomKey:   r.key,
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	failed := r.broadcastLocked(protocol.Chat(payload))
	r.mu.Unlock()

	r.evict(failed)
}

// CountdownTick broadcasts one TRANSLATION_COUNTDOWN update. The tick is
// dropped (false returned) once the phase sequence has moved on or the room
// left the translation phase, so a stale ticker goroutine can never touch a
// later round.
func (r *Room) CountdownTick(seq, remaining int) bool {
	r.mu.Lock()
	if r.phaseSeq != seq || r.status != StatusPlaying || r.round != RoundTranslation {
		r.mu.Unlock()
		return false
	}
	failed := r.broadcastLocked(protocol.TranslationCountdown(r.key, remaining))
	r.mu.Unlock()

	r.evict(failed)
	return true
}

// ArmTimer replaces the room's phase timer. Never two concurrent timers:
// any existing timer is stopped first.
func (r *Room) ArmTimer(duration time.Duration, onFire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = NewRoundTimer(duration, onFire)
}

// removeByConn removes the member bound to connID, broadcasting the updated
// snapshot to the remaining members. When the last member leaves, the timer
// is stopped and empty=true is returned so the Directory can destroy the
// room.
func (r *Room) removeByConn(connID string) (removed bool, empty bool) {
	r.mu.Lock()
	idx := -1
	for i, p := range r.players {
		if p.conn != nil && p.conn.ID() == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return false, len(r.players) == 0
	}
	nickname := r.players[idx].Nickname
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	delete(r.pending, nickname)

	if len(r.players) == 0 {
		r.shutdownLocked()
		r.mu.Unlock()
		return true, true
	}
	failed := r.broadcastLocked(protocol.GameState(r.snapshotLocked()))
	r.mu.Unlock()

	r.evict(failed)
	return true, false
}

// shutdownLocked cancels the timer and invalidates any in-flight countdown.
func (r *Room) shutdownLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.phaseSeq++
}

// broadcastLocked fans one encoded message out to every member. A failed
// send never aborts the broadcast; the offending connections are returned
// for eviction once the room lock is released.
func (r *Room) broadcastLocked(msg protocol.ServerMessage) []Conn {
	data, err := msg.Encode()
	if err != nil {
		r.logger.Error("encoding broadcast",
			zap.String("room", r.key),
			zap.String("type", string(msg.Type)),
			zap.Error(err),
		)
		return nil
	}
	var failed []Conn
	for _, p := range r.players {
		if p.conn == nil {
			continue
		}
		if err := p.conn.Send(data); err != nil {
			r.logger.Warn("send failed, evicting member",
				zap.String("room", r.key),
				zap.String("nickname", p.Nickname),
				zap.Error(err),
			)
			failed = append(failed, p.conn)
		}
	}
	return failed
}

// evict closes failed connections and hands them to the Directory's removal
// path on separate goroutines. Must be called without the room lock held;
// the goroutine re-acquires locks in directory-then-room order.
func (r *Room) evict(conns []Conn) {
	for _, c := range conns {
		_ = c.Close()
		if r.evictFn != nil {
			go r.evictFn(c.ID())
		}
	}
}
