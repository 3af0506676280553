package worker

import (
	"context"
	"dmchat/internal/core/contracts"
	"log/slog"
	"time"
)

// Refresher is the part of the presence service the worker drives.
type Refresher interface {
	PeriodicRefresh(ctx context.Context) error
}

// LastSeenWorker stamps every connected user as seen on a fixed tick so
// the persisted value heals after failed connect or disconnect writes.
type LastSeenWorker struct {
	log      *slog.Logger
	presence Refresher
	interval time.Duration
}

func NewLastSeenWorker(log *slog.Logger, presence Refresher, interval time.Duration) contracts.Worker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &LastSeenWorker{
		log:      log,
		presence: presence,
		interval: interval,
	}
}

func (w *LastSeenWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.InfoContext(ctx, "worker - last seen - started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker - last seen - stopped")
			return nil
		case <-ticker.C:
			if err := w.presence.PeriodicRefresh(ctx); err != nil {
				w.log.ErrorContext(ctx, "worker - last seen - periodic refresh failed", "err", err)
			}
		}
	}
}
