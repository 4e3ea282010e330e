package game

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TranslatorSender is the nickname translated batches are attributed to in
// room-wide chat.
const TranslatorSender = "AI"

// Translator turns a round's collected answers into one piece of text for
// the whole room. Implementations talk to an external model; the gateway
// treats every failure as "no output this round".
type Translator interface {
	Translate(ctx context.Context, roomKey string, batch []BatchEntry) (string, error)
}

// Gateway routes chat into rooms and relays answer batches through the
// translator at round boundaries. Translation is strictly best-effort: no
// retries, no queueing, and no failure mode that can stall a room's round
// cycle.
type Gateway struct {
	dir        *Directory
	translator Translator
	timeout    time.Duration
	logger     *zap.Logger
}

// NewGateway creates a gateway. translator may be nil, in which case
// batches are dropped silently and rounds proceed without translations.
func NewGateway(dir *Directory, translator Translator, timeout time.Duration, logger *zap.Logger) *Gateway {
	return &Gateway{dir: dir, translator: translator, timeout: timeout, logger: logger}
}

// SendChat validates and delivers one chat message from a connection,
// applying the room's gating rules.
//
// Postcondition: Returns nil, ErrRoomNotFound, or a room chat error;
// the message is delivered to everyone it should reach and no one else.
func (g *Gateway) SendChat(roomKey, sender, connID, text, timestamp string) error {
	room, ok := g.dir.Room(roomKey)
	if !ok {
		return ErrRoomNotFound
	}
	return room.Chat(sender, connID, text, timestamp)
}

// ProcessPending runs one answer batch through the translator and, on
// success, broadcasts the output to the room as a public chat message.
// Failures are logged and swallowed: the round cycle has already moved on
// and must never wait on, or be broken by, the translator.
func (g *Gateway) ProcessPending(roomKey string, batch []BatchEntry) {
	if len(batch) == 0 || g.translator == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	text, err := g.translator.Translate(ctx, roomKey, batch)
	if err != nil {
		g.logger.Warn("translation failed",
			zap.String("room", roomKey),
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return
	}
	if text == "" {
		return
	}

	// The room may have died while the translator was out.
	room, ok := g.dir.Room(roomKey)
	if !ok {
		g.logger.Debug("room gone before translation returned", zap.String("room", roomKey))
		return
	}
	room.BroadcastSystemChat(TranslatorSender, text)
}
