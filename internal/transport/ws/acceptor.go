// Package ws is the websocket transport: it accepts client connections,
// frames them as game.Conn handles, and pumps frames between the sockets
// and the protocol dispatcher.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parlorgame/parlor/internal/game"
)

// Handler receives transport events. The protocol dispatcher implements it.
type Handler interface {
	HandleOpen(conn game.Conn)
	HandleMessage(conn game.Conn, raw []byte)
	HandleClose(connID string)
}

// StatsSource reports live session counts for the health endpoint. The room
// directory implements it.
type StatsSource interface {
	RoomCount() int
	ConnectionCount() int
}

// Acceptor is the HTTP server hosting the websocket endpoint and the
// health probe. It satisfies server.Service.
type Acceptor struct {
	addr    string
	handler Handler
	stats   StatsSource
	logger  *zap.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewAcceptor creates an acceptor listening on addr.
//
// Precondition: handler, stats, and logger must be non-nil.
func NewAcceptor(addr string, handler Handler, stats StatsSource, logger *zap.Logger) *Acceptor {
	a := &Acceptor{
		addr:    addr,
		handler: handler,
		stats:   stats,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients connect from arbitrary origins; room keys are the
			// only admission control.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws", a.serveWS).Methods(http.MethodGet)
	router.HandleFunc("/healthz", a.serveHealth).Methods(http.MethodGet)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

// Start runs the HTTP server. Blocks until Stop is called or the listener
// fails.
func (a *Acceptor) Start() error {
	a.logger.Info("websocket acceptor listening", zap.String("addr", a.addr))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket acceptor: %w", err)
	}
	return nil
}

// Stop shuts the server down, giving in-flight upgrades a short grace
// period. Established connections are closed by their pumps.
func (a *Acceptor) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn("acceptor shutdown", zap.Error(err))
	}
}

func (a *Acceptor) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(ws, a.logger)
	a.logger.Debug("connection accepted",
		zap.String("connection", conn.ID()),
		zap.String("remote", r.RemoteAddr),
	)

	a.handler.HandleOpen(conn)
	go conn.writePump()
	go conn.readPump(
		func(raw []byte) { a.handler.HandleMessage(conn, raw) },
		func() { a.handler.HandleClose(conn.ID()) },
	)
}

func (a *Acceptor) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"rooms":       a.stats.RoomCount(),
		"connections": a.stats.ConnectionCount(),
	})
}
