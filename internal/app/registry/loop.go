package registry

import (
	"context"
	"dmchat/internal/core/contracts"
	"log/slog"
	"sync"
)

// Loop is the single event context that owns the Registry and the
// last-seen cache. Work is submitted as closures and executed one at a
// time in submission order.
type Loop struct {
	log  *slog.Logger
	ops  chan func()
	done chan struct{}
	once sync.Once
}

func NewLoop(log *slog.Logger, backlog int) *Loop {
	if backlog <= 0 {
		backlog = 1024
	}
	return &Loop{
		log:  log,
		ops:  make(chan func(), backlog),
		done: make(chan struct{}),
	}
}

// Run drains submitted closures until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	l.log.Info("registry - loop - started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info("registry - loop - stopped")
			return nil
		case fn := <-l.ops:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("registry - loop - recovered panic", "panic", r)
		}
	}()
	fn()
}

func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.ops <- wrapped:
	case <-l.done:
		return contracts.ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return contracts.ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.ops <- fn:
		return true
	case <-l.done:
		return false
	}
}

var _ contracts.EventLoop = (*Loop)(nil)
