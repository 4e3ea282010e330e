package game

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/parlorgame/parlor/internal/protocol"
)

// fakeConn records everything sent to it. Setting fail makes every Send
// return an error, simulating a dead peer.
type fakeConn struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed {
		return errSendFailed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.sent = append(f.sent, buf)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

// messages decodes everything the connection received.
func (f *fakeConn) messages() []protocol.ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.ServerMessage, 0, len(f.sent))
	for _, raw := range f.sent {
		var msg protocol.ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// messagesOfType filters received messages by type.
func (f *fakeConn) messagesOfType(mt protocol.MessageType) []protocol.ServerMessage {
	var out []protocol.ServerMessage
	for _, msg := range f.messages() {
		if msg.Type == mt {
			out = append(out, msg)
		}
	}
	return out
}

// lastSnapshot decodes the payload of the last GAME_STATE the connection
// received.
func (f *fakeConn) lastSnapshot() (protocol.RoomSnapshot, bool) {
	states := f.messagesOfType(protocol.TypeGameState)
	if len(states) == 0 {
		return protocol.RoomSnapshot{}, false
	}
	data, err := json.Marshal(states[len(states)-1].Payload)
	if err != nil {
		return protocol.RoomSnapshot{}, false
	}
	var snap protocol.RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return protocol.RoomSnapshot{}, false
	}
	return snap, true
}

var errSendFailed = errors.New("send failed")

func testLogger() *zap.Logger {
	return zap.NewNop()
}
