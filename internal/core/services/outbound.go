package services

import (
	"context"
	"dmchat/internal/core/contracts"
	"dmchat/internal/core/domain"
	"dmchat/pkg/logging"
	"errors"
	"log/slog"
)

// sendTo encodes ev and enqueues it on c. A dropped or closed client is
// logged, never returned: delivery absence is not an error.
func sendTo(ctx context.Context, log *slog.Logger, c contracts.Client, ev domain.OutboundEvent) bool {
	raw, err := ev.Encode()
	if err != nil {
		log.ErrorContext(ctx, "outbound - send - encode failed", logging.Event(ev.Event), logging.Err(err))
		return false
	}
	return deliver(ctx, log, c, ev.Event, raw)
}

// broadcast encodes ev once and enqueues it on every registered client.
// Must run inside the event loop.
func broadcast(ctx context.Context, log *slog.Logger, registry contracts.Registry, ev domain.OutboundEvent) int {
	raw, err := ev.Encode()
	if err != nil {
		log.ErrorContext(ctx, "outbound - broadcast - encode failed", logging.Event(ev.Event), logging.Err(err))
		return 0
	}
	sent := 0
	for _, c := range registry.Clients() {
		if deliver(ctx, log, c, ev.Event, raw) {
			sent++
		}
	}
	return sent
}

func deliver(ctx context.Context, log *slog.Logger, c contracts.Client, event string, raw []byte) bool {
	if err := c.Send(ctx, raw); err != nil {
		if errors.Is(err, contracts.ErrSendDropped) {
			log.WarnContext(ctx, "outbound - deliver - send buffer full", logging.Event(event), logging.Client(c.ID()))
		} else {
			log.DebugContext(ctx, "outbound - deliver - client gone", logging.Event(event), logging.Client(c.ID()), logging.Err(err))
		}
		return false
	}
	return true
}
