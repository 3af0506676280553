package handlers

import (
	"context"
	"dmchat/internal/app/server/ws"
	"dmchat/internal/core/contracts"
	"dmchat/pkg/logging"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type EventDispatcher interface {
	HandleEvent(ctx context.Context, c contracts.Client, raw []byte) error
	HandleDisconnect(ctx context.Context, c contracts.Client) error
}

type WSHandler struct {
	log      *slog.Logger
	manager  EventDispatcher
	opts     ws.Options
	upgrader websocket.Upgrader
}

func NewWSHandler(log *slog.Logger, manager EventDispatcher, opts ws.Options) *WSHandler {
	return &WSHandler{
		log:     log,
		manager: manager,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler upgrades the request. The socket stays anonymous until the
// client sends a register event.
func (h *WSHandler) Handler(c *gin.Context) {
	reqCtx := c.Request.Context()
	log := logging.FromContext(reqCtx)
	span := trace.SpanFromContext(reqCtx)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(reqCtx, "ws handler - upgrade - failed", logging.Err(err))
		return
	}
	// the session outlives the upgrade request
	sessionCtx := logging.WithContext(context.WithoutCancel(reqCtx), log)
	socket := ws.NewWebSocket(sessionCtx, h.log, conn, h.opts)
	client := ws.NewClient(socket)
	span.SetAttributes(attribute.String("ws.client_id", client.ID()))
	sessionCtx = logging.With(sessionCtx, logging.Client(client.ID()))
	log = logging.FromContext(sessionCtx)
	log.InfoContext(sessionCtx, "ws handler - connection established")

	eventCtx := logging.With(socket.Context(), logging.Client(client.ID()))
	socket.ReadLoop(func(data []byte) {
		if err := h.manager.HandleEvent(eventCtx, client, data); err != nil {
			log.DebugContext(sessionCtx, "ws handler - event - rejected", logging.Err(err))
		}
	})

	if err := h.manager.HandleDisconnect(sessionCtx, client); err != nil {
		log.WarnContext(sessionCtx, "ws handler - disconnect - failed", logging.Err(err))
	}
	client.Close()
	log.InfoContext(sessionCtx, "ws handler - connection closed")
}
