package services

import (
	"context"
	"dmchat/internal/core/contracts"
	"dmchat/internal/core/domain"
	"dmchat/pkg/logging"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("dmchat-services")
	meter  = otel.Meter("dmchat-services")
)

type IPresenceService interface {
	// Register binds userID to c, broadcasts the online set, refreshes
	// last-seen for userID and sends c the whole last-seen cache.
	Register(ctx context.Context, userID string, c contracts.Client) error
	// Disconnect unbinds c when it still owns a user id.
	Disconnect(ctx context.Context, c contracts.Client) error
	// ForceDisconnect unbinds userID and closes its connection.
	ForceDisconnect(ctx context.Context, userID string) error
	// PeriodicRefresh stamps every registered user as seen now.
	PeriodicRefresh(ctx context.Context) error
	// LastSeen reads the persisted value, not the cache.
	LastSeen(ctx context.Context, userID string) (time.Time, error)
}

// PresenceService owns the connection registry and the last-seen cache.
// Both are only touched from closures submitted to the event loop; the
// durable writes behind the cache run on their own goroutines.
type PresenceService struct {
	log          *slog.Logger
	loop         contracts.EventLoop
	registry     contracts.Registry
	users        domain.UserRepository
	mirror       contracts.PresenceMirror
	writeTimeout time.Duration
	now          func() time.Time

	lastSeen map[string]time.Time     // user_id → timestamp, loop-owned
	writes   map[string]chan struct{} // user_id → latest issued write, loop-owned
	stopped  bool                     // loop-owned
	pending  sync.WaitGroup

	broadcasts metric.Int64Counter
	failures   metric.Int64Counter
}

// NewPresenceService wires the tracker. mirror may be nil.
func NewPresenceService(
	log *slog.Logger,
	loop contracts.EventLoop,
	registry contracts.Registry,
	users domain.UserRepository,
	mirror contracts.PresenceMirror,
	writeTimeout time.Duration,
) *PresenceService {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	broadcasts, _ := meter.Int64Counter("presence_broadcasts_total",
		metric.WithDescription("Online-set broadcasts emitted"))
	failures, _ := meter.Int64Counter("last_seen_refresh_failures_total",
		metric.WithDescription("Durable last-seen writes that failed"))
	return &PresenceService{
		log:          log,
		loop:         loop,
		registry:     registry,
		users:        users,
		mirror:       mirror,
		writeTimeout: writeTimeout,
		now:          time.Now,
		lastSeen:     make(map[string]time.Time),
		writes:       make(map[string]chan struct{}),
		broadcasts:   broadcasts,
		failures:     failures,
	}
}

func (p *PresenceService) Register(ctx context.Context, userID string, c contracts.Client) error {
	ctx, span := tracer.Start(ctx, "PresenceService.Register", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("client_id", c.ID()),
	))
	defer span.End()
	if userID == "" {
		span.RecordError(domain.ErrInvalidUserID)
		return domain.ErrInvalidUserID
	}
	err := p.loop.Call(ctx, func() {
		displaced, rebound := p.registry.Register(userID, c)
		p.broadcastOnline(ctx)
		if rebound {
			p.log.InfoContext(ctx, "presence - register - connection rebound", logging.User(displaced), logging.Peer(userID))
			p.touch(ctx, displaced)
		}
		p.touch(ctx, userID)
		sendTo(ctx, p.log, c, domain.OutboundEvent{
			Event: domain.EventLastSeenTimes,
			Data:  p.snapshot(),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "loop call failed")
		p.log.ErrorContext(ctx, "presence - register - loop call failed", logging.User(userID), logging.Err(err))
		return err
	}
	p.log.InfoContext(ctx, "presence - register - success", logging.User(userID), logging.Client(c.ID()))
	return nil
}

func (p *PresenceService) Disconnect(ctx context.Context, c contracts.Client) error {
	var (
		userID string
		found  bool
	)
	err := p.loop.Call(ctx, func() {
		userID, found = p.registry.RemoveByClient(c)
		if !found {
			return
		}
		p.broadcastOnline(ctx)
		p.touch(ctx, userID)
	})
	if err != nil {
		p.log.ErrorContext(ctx, "presence - disconnect - loop call failed", logging.Client(c.ID()), logging.Err(err))
		return err
	}
	if found {
		p.log.InfoContext(ctx, "presence - disconnect - success", logging.User(userID), logging.Client(c.ID()))
	} else {
		p.log.DebugContext(ctx, "presence - disconnect - client not bound", logging.Client(c.ID()))
	}
	return nil
}

func (p *PresenceService) ForceDisconnect(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "PresenceService.ForceDisconnect", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()
	if userID == "" {
		return domain.ErrInvalidUserID
	}
	var found bool
	err := p.loop.Call(ctx, func() {
		var c contracts.Client
		c, found = p.registry.RemoveByUser(userID)
		if !found {
			return
		}
		p.broadcastOnline(ctx)
		p.touch(ctx, userID)
		c.Close()
	})
	if err != nil {
		span.RecordError(err)
		p.log.ErrorContext(ctx, "presence - force disconnect - loop call failed", logging.User(userID), logging.Err(err))
		return err
	}
	p.log.InfoContext(ctx, "presence - force disconnect - done", logging.User(userID), "found", found)
	return nil
}

func (p *PresenceService) PeriodicRefresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "PresenceService.PeriodicRefresh")
	defer span.End()
	var (
		ids []string
		at  time.Time
	)
	if err := p.loop.Call(ctx, func() {
		at = p.now()
		ids = p.registry.OnlineIDs()
		for _, id := range ids {
			p.lastSeen[id] = at
		}
	}); err != nil {
		span.RecordError(err)
		return err
	}
	failed := 0
	for _, id := range ids {
		if err := p.persist(ctx, id, at); err != nil {
			failed++
			p.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "refresh")))
			p.log.ErrorContext(ctx, "presence - periodic refresh - update last seen failed", logging.User(id), logging.Err(err))
		}
	}
	span.SetAttributes(attribute.Int("users", len(ids)), attribute.Int("failed", failed))
	p.log.InfoContext(ctx, "presence - periodic refresh - done", "users", len(ids), "failed", failed)
	return nil
}

func (p *PresenceService) LastSeen(ctx context.Context, userID string) (time.Time, error) {
	u, err := p.users.GetUserByID(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("last seen %s: %w", userID, err)
	}
	return u.LastSeen, nil
}

// Snapshot returns a copy of the last-seen cache.
func (p *PresenceService) Snapshot(ctx context.Context) (map[string]time.Time, error) {
	var out map[string]time.Time
	err := p.loop.Call(ctx, func() { out = p.snapshot() })
	return out, err
}

// Wait blocks until every pending durable last-seen write has finished.
// It must not race with new touches; use Shutdown while the loop runs.
func (p *PresenceService) Wait() {
	p.pending.Wait()
}

// Shutdown stops issuing durable writes and waits for the ones already
// issued. Touches after it still update the cache.
func (p *PresenceService) Shutdown(ctx context.Context) error {
	if err := p.loop.Call(ctx, func() { p.stopped = true }); err != nil {
		return err
	}
	p.pending.Wait()
	return nil
}

// broadcastOnline runs inside the loop.
func (p *PresenceService) broadcastOnline(ctx context.Context) {
	ids := p.registry.OnlineIDs()
	sent := broadcast(ctx, p.log, p.registry, domain.OutboundEvent{
		Event: domain.EventUsersOnline,
		Data:  ids,
	})
	p.broadcasts.Add(ctx, 1)
	p.log.DebugContext(ctx, "presence - broadcast online", "online", len(ids), "sent", sent)
}

// touch runs inside the loop: the cache is set immediately and the
// durable write is issued without waiting. Writes for one user are
// chained in issue order so a slow write never lands after a newer one.
func (p *PresenceService) touch(ctx context.Context, userID string) {
	at := p.now()
	p.lastSeen[userID] = at
	if p.stopped {
		p.log.DebugContext(ctx, "presence - touch - shutting down, write skipped", logging.User(userID))
		return
	}
	prev := p.writes[userID]
	done := make(chan struct{})
	p.writes[userID] = done
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		err := p.persist(ctx, userID, at)
		p.loop.Post(func() {
			if p.writes[userID] == done {
				delete(p.writes, userID)
			}
			if err != nil {
				return
			}
			broadcast(ctx, p.log, p.registry, domain.OutboundEvent{
				Event: domain.EventUserLastSeen,
				Data:  domain.UserLastSeen{UserID: userID, Timestamp: at},
			})
		})
		if err != nil {
			p.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "connection")))
			p.log.ErrorContext(ctx, "presence - touch - update last seen failed", logging.User(userID), logging.Err(err))
		}
	}()
}

// persist writes the durable record and mirrors it. Issued writes are
// never cancelled by the caller.
func (p *PresenceService) persist(ctx context.Context, userID string, at time.Time) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
	defer cancel()
	if err := p.users.UpdateLastSeen(wctx, userID, at); err != nil {
		return err
	}
	if p.mirror != nil {
		if err := p.mirror.Touch(wctx, userID, at); err != nil {
			p.log.WarnContext(ctx, "presence - persist - mirror touch failed", logging.User(userID), logging.Err(err))
		}
	}
	return nil
}

func (p *PresenceService) snapshot() map[string]time.Time {
	return maps.Clone(p.lastSeen)
}

var _ IPresenceService = (*PresenceService)(nil)
