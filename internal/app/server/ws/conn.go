package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Options tunes one websocket connection.
type Options struct {
	SendBuffer   int
	ReadLimit    int64
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 512 * 1024 // 512KB max message size
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// pongWait must exceed the ping interval or idle peers get cut.
func (o Options) pongWait() time.Duration {
	return o.PingInterval * 2
}

type WebSocket struct {
	*websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	log    *slog.Logger
}

func NewWebSocket(parent context.Context, log *slog.Logger, conn *websocket.Conn, opts Options) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{Conn: conn, ctx: ctx, cancel: cancel, opts: opts.withDefaults(), log: log}
}

// Context is cancelled once the socket is closed.
func (w *WebSocket) Context() context.Context {
	return w.ctx
}

func (w *WebSocket) WriteMessage(data []byte) error {
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WritePing() error {
	return w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.opts.WriteTimeout))
}

// ReadLoop blocks until the peer goes away. onMsg runs on the reading
// goroutine, so frames from one connection are handled in order.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	// Ensure cleanup happens when the loop breaks
	defer w.Close()

	// Configure Read Limits (Protects against memory exhaustion)
	w.Conn.SetReadLimit(w.opts.ReadLimit)
	_ = w.Conn.SetReadDeadline(time.Now().Add(w.opts.pongWait()))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(w.opts.pongWait()))
	})

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			// Check if it's a clean closure or an error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.log.Warn("ws - read loop - unexpected close", "err", err)
			}
			return
		}
		// any inbound frame proves liveness
		_ = w.Conn.SetReadDeadline(time.Now().Add(w.opts.pongWait()))
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
