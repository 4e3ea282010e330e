package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 256
)

// ErrConnClosed is returned by Send once a connection has shut down or its
// outbound queue is full. Either way the connection is done.
var ErrConnClosed = errors.New("connection closed")

// Conn wraps one websocket with an identity and a buffered outbound queue.
// Send never blocks: a slow or dead peer fills the queue, Send starts
// failing, and the session core evicts the connection.
type Conn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn, logger *zap.Logger) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, sendQueueSize),
		logger: logger,
		closed: make(chan struct{}),
	}
}

// ID returns the connection's identity, assigned at accept time.
func (c *Conn) ID() string { return c.id }

// Send enqueues one outbound frame.
//
// Postcondition: Returns nil if the frame was queued, ErrConnClosed if the
// connection is closed or its queue is full. Never blocks.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrConnClosed
	}
}

// Close shuts the connection down. Safe to call multiple times and from
// any goroutine.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
	return nil
}

// readPump reads inbound frames and hands them to onMessage until the
// connection dies, then fires onClose exactly once.
func (c *Conn) readPump(onMessage func(raw []byte), onClose func()) {
	defer func() {
		c.Close()
		onClose()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Debug("read error", zap.String("connection", c.id), zap.Error(err))
			}
			return
		}
		onMessage(raw)
	}
}

// writePump drains the outbound queue to the socket and keeps the peer
// alive with pings. Exits when the queue write fails or Close is called.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
