package services

import (
	"context"
	"dmchat/internal/core/contracts"
	"dmchat/internal/core/domain"
	"dmchat/pkg/logging"
	"log/slog"
)

type ITypingService interface {
	Typing(ctx context.Context, senderID, receiverID string) error
	StopTyping(ctx context.Context, senderID, receiverID string) error
}

// TypingService relays typing signals to the receiver only. Nothing is
// stored and an offline receiver is a silent no-op.
type TypingService struct {
	log      *slog.Logger
	loop     contracts.EventLoop
	registry contracts.Registry
}

func NewTypingService(log *slog.Logger, loop contracts.EventLoop, registry contracts.Registry) *TypingService {
	return &TypingService{log: log, loop: loop, registry: registry}
}

func (t *TypingService) Typing(ctx context.Context, senderID, receiverID string) error {
	return t.relay(ctx, domain.EventTyping, senderID, receiverID)
}

func (t *TypingService) StopTyping(ctx context.Context, senderID, receiverID string) error {
	return t.relay(ctx, domain.EventStopTyping, senderID, receiverID)
}

func (t *TypingService) relay(ctx context.Context, event, senderID, receiverID string) error {
	if err := validateStruct(domain.TypingIn{SenderID: senderID, ReceiverID: receiverID}); err != nil {
		return err
	}
	ev := domain.OutboundEvent{Event: event, Data: domain.TypingSignal{SenderID: senderID}}
	var online bool
	if err := t.loop.Call(ctx, func() {
		var c contracts.Client
		if c, online = t.registry.Lookup(receiverID); online {
			sendTo(ctx, t.log, c, ev)
		}
	}); err != nil {
		return err
	}
	t.log.DebugContext(ctx, "typing - relay", logging.Event(event), logging.User(senderID), logging.Peer(receiverID), "online", online)
	return nil
}

var _ ITypingService = (*TypingService)(nil)
