// Package protocol defines the JSON wire messages exchanged between the
// session server and its clients. One message type per envelope; unknown
// types are the dispatcher's problem, not the codec's.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType tags a wire envelope.
type MessageType string

// Client-to-server message types.
const (
	TypeCreateRoom  MessageType = "CREATE_ROOM"
	TypeJoinRoom    MessageType = "JOIN_ROOM"
	TypePlayerReady MessageType = "PLAYER_READY"
	TypeStartGame   MessageType = "START_GAME"
	TypeChatMessage MessageType = "CHAT_MESSAGE"
	TypeResetGame   MessageType = "RESET_GAME"
)

// Server-to-client message types. TypeChatMessage is used in both directions.
const (
	TypeGameState            MessageType = "GAME_STATE"
	TypeRoomCreated          MessageType = "ROOM_CREATED"
	TypeError                MessageType = "ERROR"
	TypeTranslationCountdown MessageType = "TRANSLATION_COUNTDOWN"
)

// ClientEnvelope is the decoded form of an inbound message. The flat fields
// are populated for room and ready messages; chat messages carry their data
// in Payload.
type ClientEnvelope struct {
	Type           MessageType     `json:"type"`
	RoomID         string          `json:"roomId,omitempty"`
	PlayerNickname string          `json:"playerNickname,omitempty"`
	IsReady        bool            `json:"isReady,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// ChatPayload is the payload of a CHAT_MESSAGE in either direction.
// IsPrivate is set only on outbound messages.
type ChatPayload struct {
	RoomKey   string `json:"roomKey"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	IsPrivate bool   `json:"isPrivate,omitempty"`
}

// CountdownPayload is the payload of a TRANSLATION_COUNTDOWN message.
type CountdownPayload struct {
	Countdown int    `json:"countdown"`
	RoomKey   string `json:"roomKey"`
}

// PlayerSnapshot is the client-visible view of one player. Connection
// identities never appear here.
type PlayerSnapshot struct {
	Nickname       string `json:"nickname"`
	Ready          bool   `json:"ready"`
	HasSentMessage bool   `json:"hasSentMessage"`
}

// RoomSnapshot is the full client-visible state of a room, broadcast on
// every state change.
type RoomSnapshot struct {
	ID      string                    `json:"id"`
	Status  string                    `json:"status"`
	Round   string                    `json:"round,omitempty"`
	Host    string                    `json:"host"`
	Players map[string]PlayerSnapshot `json:"players"`
}

// ServerMessage is an outbound envelope. Payload must be JSON-marshalable.
type ServerMessage struct {
	Type    MessageType `json:"type"`
	RoomID  string      `json:"roomId,omitempty"`
	Payload any         `json:"payload,omitempty"`
}

// DecodeClient parses an inbound envelope.
//
// Precondition: data must be a JSON object.
// Postcondition: Returns an envelope with a non-empty Type, or a non-nil error.
func DecodeClient(data []byte) (*ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// ChatData parses the chat payload of a CHAT_MESSAGE envelope.
//
// Precondition: env.Type must be TypeChatMessage.
// Postcondition: Returns the payload or a non-nil error when absent/malformed.
func (env *ClientEnvelope) ChatData() (*ChatPayload, error) {
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("chat message missing payload")
	}
	var p ChatPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding chat payload: %w", err)
	}
	return &p, nil
}

// Encode marshals a server message for the wire.
func (m ServerMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.Type, err)
	}
	return data, nil
}

// GameState builds a GAME_STATE message carrying a room snapshot.
func GameState(snap RoomSnapshot) ServerMessage {
	return ServerMessage{Type: TypeGameState, Payload: snap}
}

// RoomCreated builds the ROOM_CREATED reply sent to a room's creator.
func RoomCreated(snap RoomSnapshot) ServerMessage {
	return ServerMessage{Type: TypeRoomCreated, RoomID: snap.ID, Payload: snap}
}

// Chat builds an outbound CHAT_MESSAGE.
func Chat(p ChatPayload) ServerMessage {
	return ServerMessage{Type: TypeChatMessage, Payload: p}
}

// Error builds an ERROR reply for a single connection.
func Error(msg string) ServerMessage {
	return ServerMessage{Type: TypeError, Payload: msg}
}

// TranslationCountdown builds a TRANSLATION_COUNTDOWN tick.
func TranslationCountdown(roomKey string, seconds int) ServerMessage {
	return ServerMessage{
		Type:    TypeTranslationCountdown,
		Payload: CountdownPayload{Countdown: seconds, RoomKey: roomKey},
	}
}
