package server

import (
	"context"
	"dmchat/internal/app/server/handlers"
	"dmchat/internal/app/server/ws"
	"dmchat/internal/core/contracts"
	"dmchat/pkg/middleware"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type TokenService interface {
	handlers.TokenIssuer
	middleware.TokenValidator
}

// Deps is everything the HTTP surface needs from the core.
type Deps struct {
	Users    handlers.UserService
	Tokens   TokenService
	Messages handlers.MessageService
	Chats    handlers.ChatService
	Presence handlers.LastSeenReader
	Mirror   contracts.PresenceMirror
	Manager  handlers.EventDispatcher
}

type Server struct {
	log    *slog.Logger
	name   string
	engine *gin.Engine
	http   *http.Server
}

func NewServer(log *slog.Logger, name, addr string, wsOpts ws.Options, deps Deps) *Server {
	s := &Server{
		log:    log,
		name:   name,
		engine: gin.New(),
	}
	s.routes(wsOpts, deps)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(wsOpts ws.Options, deps Deps) {
	s.engine.Use(gin.Recovery(), middleware.TracerMiddleware(s.name), middleware.RequestLogger(s.log))

	authH := handlers.NewAuthHandler(deps.Users, deps.Tokens)
	usersH := handlers.NewUsersHandler(deps.Users, deps.Presence)
	msgH := handlers.NewMessagesHandler(deps.Messages)
	chatsH := handlers.NewChatsHandler(deps.Chats)
	presH := handlers.NewPresenceHandler(deps.Mirror)
	wsH := handlers.NewWSHandler(s.log, deps.Manager, wsOpts)

	s.engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "chat backend running")
	})
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/ws", wsH.Handler)

	api := s.engine.Group("/api")
	api.POST("/register", authH.Register)
	api.POST("/login", authH.Login)

	protected := api.Group("", middleware.AuthMiddleware(deps.Tokens))
	protected.GET("/users", usersH.List)
	protected.GET("/users/:id/last-seen", usersH.LastSeen)
	protected.GET("/presence", presH.LastSeen)
	protected.GET("/messages", msgH.History)
	protected.POST("/messages/seen", msgH.MarkSeen)
	protected.POST("/messages/delete-batch", msgH.DeleteBatch)
	protected.DELETE("/messages/:id", msgH.Delete)
	protected.POST("/userlistwithchat", chatsH.Save)
	protected.GET("/userlistwithchat/:currentUserId", chatsH.Get)
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server - start - listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked websockets are not tracked
// by net/http and are closed by the caller through the registry loop.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
