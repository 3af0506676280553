package main

import (
	"context"
	"dmchat/internal/app/registry"
	"dmchat/internal/app/server"
	"dmchat/internal/app/server/ws"
	"dmchat/internal/app/worker"
	"dmchat/internal/config"
	"dmchat/internal/core/contracts"
	"dmchat/internal/core/domain"
	"dmchat/internal/core/services"
	"dmchat/internal/platform/logger"
	"dmchat/internal/platform/telemetry"
	mongoPlugin "dmchat/internal/plugins/mongo"
	"dmchat/internal/plugins/postgres"
	redisPlugin "dmchat/internal/plugins/redis"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

type stores struct {
	users    domain.UserRepository
	messages domain.MessageRepository
	chats    domain.UserChatRepository
	close    func(ctx context.Context) error
}

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	_ = godotenv.Load()
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application", "service", cfg.Service.Name, "env", cfg.Service.Env)
	if cfg.SecretToken == "" {
		log.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		if otelShutdown == nil {
			return
		}
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	st, err := openStores(ctx, log, cfg)
	if err != nil {
		log.Error("store connection failed", "driver", cfg.Store.Driver, "err", err)
		return
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Error("store close failed", "err", err)
		}
	}()

	var mirror contracts.PresenceMirror
	if cfg.Redis.URL != "" {
		rdb, err := redisPlugin.NewRedisClient(ctx, *cfg.Redis)
		if err != nil {
			log.Error("redis connection failed", "err", err)
			return
		}
		defer rdb.Close()
		mirror = redisPlugin.NewRedisPresenceMirror(rdb)
		log.Info("redis connected")
	}

	// Event loop
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loop := registry.NewLoop(log, cfg.Presence.LoopBacklog)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx)
	}()
	reg := registry.NewRegistry()

	// Core Services
	presenceSvc := services.NewPresenceService(log, loop, reg, st.users, mirror, cfg.Presence.WriteTimeout)
	msgSvc := services.NewMessageService(log, loop, reg, st.messages, st.users)
	typingSvc := services.NewTypingService(log, loop, reg)
	managerSvc := services.NewManagerService(log, presenceSvc, msgSvc, typingSvc)
	userSvc := services.NewUserService(log, st.users)
	chatSvc := services.NewUserChatService(log, st.chats)
	tokenSvc := services.NewTokenService(cfg.SecretToken, cfg.TokenTTL)

	wrkr := worker.NewLastSeenWorker(log, presenceSvc, cfg.Presence.RefreshInterval)
	go func() {
		if err := wrkr.Run(ctx); err != nil {
			log.Error("last seen worker stopped", "err", err)
		}
	}()

	// Server
	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Add, ws.Options{
		SendBuffer:   cfg.Transport.SendBuffer,
		ReadLimit:    cfg.Transport.ReadLimit,
		WriteTimeout: cfg.Transport.WriteTimeout,
		PingInterval: cfg.Transport.PingInterval,
	}, server.Deps{
		Users:    userSvc,
		Tokens:   tokenSvc,
		Messages: msgSvc,
		Chats:    chatSvc,
		Presence: presenceSvc,
		Mirror:   mirror,
		Manager:  managerSvc,
	})
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			log.Error("server stopped", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Transport.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}
	drainClients(shutdownCtx, log, loop, reg)
	if err := presenceSvc.Shutdown(shutdownCtx); err != nil {
		log.Error("presence shutdown failed", "err", err)
	}
	stopLoop()
	<-loopDone
	log.Info("shutdown complete")
}

func openStores(ctx context.Context, log *slog.Logger, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := postgres.New(ctx, *cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		log.Info("postgres connected")
		return &stores{
			users:    postgres.NewUserRepository(db),
			messages: postgres.NewMessageRepo(db),
			chats:    postgres.NewUserChatRepo(db),
			close:    func(context.Context) error { return db.Close() },
		}, nil
	case "mongo":
		db, err := mongoPlugin.New(ctx, *cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if err := mongoPlugin.EnsureIndexes(ctx, db); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		log.Info("mongo connected", "database", cfg.Mongo.Database)
		return &stores{
			users:    mongoPlugin.NewUserRepository(db),
			messages: mongoPlugin.NewMessageRepo(db),
			chats:    mongoPlugin.NewUserChatRepo(db),
			close:    db.Client().Disconnect,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// drainClients closes every live socket and waits for their disconnects
// to pass through the loop, so the final last-seen writes get scheduled.
func drainClients(ctx context.Context, log *slog.Logger, loop *registry.Loop, reg *registry.Registry) {
	if err := loop.Call(ctx, func() {
		for _, c := range reg.Clients() {
			c.Close()
		}
	}); err != nil {
		log.Warn("drain clients - close failed", "err", err)
		return
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		var online int
		if err := loop.Call(ctx, func() { online = len(reg.OnlineIDs()) }); err != nil {
			log.Warn("drain clients - gave up", "online", online, "err", err)
			return
		}
		if online == 0 {
			return
		}
		select {
		case <-ctx.Done():
			log.Warn("drain clients - timed out", "online", online)
			return
		case <-ticker.C:
		}
	}
}
