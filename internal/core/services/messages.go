package services

import (
	"context"
	"dmchat/internal/core/contracts"
	"dmchat/internal/core/domain"
	"dmchat/pkg/logging"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// seenAtLayout matches the millisecond ISO form clients already parse.
const seenAtLayout = "2006-01-02T15:04:05.000Z07:00"

type IMessageService interface {
	// Submit persists the message, then delivers it to the receiver and
	// echoes it to the sender. Nothing is delivered when the save fails.
	Submit(ctx context.Context, in domain.ChatMessageIn) (*domain.DeliveredMessage, error)
	// MarkSeen flips counterpart → viewer messages to seen and always
	// notifies the counterpart, even when nothing changed.
	MarkSeen(ctx context.Context, viewerID, counterpartID string) (int64, error)
	// DeleteSingle deletes messageID only when requesterID sent it.
	DeleteSingle(ctx context.Context, messageID, requesterID string) (bool, error)
	// DeleteBatch deletes the subset of ids sent by requesterID.
	DeleteBatch(ctx context.Context, ids []string, requesterID string) ([]string, error)
	// DeleteUnchecked deletes ids without an ownership check.
	DeleteUnchecked(ctx context.Context, ids []string) (int64, error)
	// History returns both directions between userID and chatWithID.
	History(ctx context.Context, userID, chatWithID string) ([]domain.Message, error)
}

type MessageService struct {
	log       *slog.Logger
	loop      contracts.EventLoop
	registry  contracts.Registry
	Repo      domain.MessageRepository
	users     domain.UserRepository
	now       func() time.Time
	delivered metric.Int64Counter
}

func NewMessageService(
	log *slog.Logger,
	loop contracts.EventLoop,
	registry contracts.Registry,
	repo domain.MessageRepository,
	users domain.UserRepository,
) *MessageService {
	delivered, _ := meter.Int64Counter("chat_messages_delivered_total",
		metric.WithDescription("Chat message events enqueued on a connection"))
	return &MessageService{
		log:       log,
		loop:      loop,
		registry:  registry,
		Repo:      repo,
		users:     users,
		now:       time.Now,
		delivered: delivered,
	}
}

func (s *MessageService) Submit(ctx context.Context, in domain.ChatMessageIn) (*domain.DeliveredMessage, error) {
	ctx, span := tracer.Start(ctx, "MessageService.Submit", trace.WithAttributes(
		attribute.String("sender_id", in.SenderID),
		attribute.String("receiver_id", in.ReceiverID),
	))
	defer span.End()
	if err := validateStruct(in); err != nil {
		span.RecordError(err)
		return nil, err
	}
	msg := domain.NewMessage(in.SenderID, in.ReceiverID, in.Message, domain.Attachments{
		ImageURLs:    in.ImageURLs,
		AudioURLs:    in.AudioURLs,
		DocumentURLs: in.DocumentURLs,
	})
	if err := s.Repo.CreateMessage(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save message failed")
		s.log.ErrorContext(ctx, "messages - submit - save message failed", logging.User(in.SenderID), logging.Peer(in.ReceiverID), logging.Err(err))
		return nil, fmt.Errorf("save message: %w", err)
	}
	out := domain.NewDeliveredMessage(msg, s.displayName(ctx, in))
	ev := domain.OutboundEvent{Event: domain.EventChatMessage, Data: out}
	// the save is done; delivery is attempted even if the caller went away
	var toReceiver, toSender bool
	if err := s.loop.Call(context.WithoutCancel(ctx), func() {
		if c, ok := s.registry.Lookup(msg.ReceiverID); ok {
			toReceiver = sendTo(ctx, s.log, c, ev)
		}
		if c, ok := s.registry.Lookup(msg.SenderID); ok {
			toSender = sendTo(ctx, s.log, c, ev)
		}
	}); err != nil {
		s.log.WarnContext(ctx, "messages - submit - delivery skipped", logging.Message(msg.ID), logging.Err(err))
		return &out, nil
	}
	if toReceiver {
		s.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("role", "receiver")))
	}
	if toSender {
		s.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("role", "sender")))
	}
	s.log.InfoContext(ctx, "messages - submit - success", logging.Message(msg.ID), "to_receiver", toReceiver, "to_sender", toSender)
	return &out, nil
}

func (s *MessageService) displayName(ctx context.Context, in domain.ChatMessageIn) string {
	if in.Username != "" || s.users == nil {
		return in.Username
	}
	u, err := s.users.GetUserByID(ctx, in.SenderID)
	if err != nil {
		s.log.DebugContext(ctx, "messages - display name - lookup failed", logging.User(in.SenderID), logging.Err(err))
		return ""
	}
	return u.Username
}

func (s *MessageService) MarkSeen(ctx context.Context, viewerID, counterpartID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "MessageService.MarkSeen", trace.WithAttributes(
		attribute.String("viewer_id", viewerID),
		attribute.String("counterpart_id", counterpartID),
	))
	defer span.End()
	if err := validateStruct(domain.MarkSeenIn{UserID: viewerID, ChatWithID: counterpartID}); err != nil {
		return 0, err
	}
	at := s.now()
	updated, err := s.Repo.MarkSeen(ctx, counterpartID, viewerID, at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark seen failed")
		s.log.ErrorContext(ctx, "messages - mark seen - update failed", logging.User(viewerID), logging.Peer(counterpartID), logging.Err(err))
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	ev := domain.OutboundEvent{Event: domain.EventMessagesSeen, Data: domain.MessagesSeen{
		By:      viewerID,
		At:      at.UTC().Format(seenAtLayout),
		Updated: updated,
	}}
	if err := s.loop.Call(context.WithoutCancel(ctx), func() {
		if c, ok := s.registry.Lookup(counterpartID); ok {
			sendTo(ctx, s.log, c, ev)
		}
	}); err != nil {
		s.log.WarnContext(ctx, "messages - mark seen - notify skipped", logging.Peer(counterpartID), logging.Err(err))
	}
	span.SetAttributes(attribute.Int64("updated", updated))
	s.log.InfoContext(ctx, "messages - mark seen - success", logging.User(viewerID), logging.Peer(counterpartID), logging.Count(updated))
	return updated, nil
}

func (s *MessageService) DeleteSingle(ctx context.Context, messageID, requesterID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "MessageService.DeleteSingle", trace.WithAttributes(
		attribute.String("message_id", messageID),
		attribute.String("requester_id", requesterID),
	))
	defer span.End()
	if err := validateStruct(domain.DeleteMessageIn{MessageID: messageID, SenderID: requesterID}); err != nil {
		return false, err
	}
	msg, err := s.Repo.GetMessageByID(ctx, messageID)
	if errors.Is(err, domain.ErrMessageNotFound) {
		s.log.DebugContext(ctx, "messages - delete single - not found", logging.Message(messageID))
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "messages - delete single - load failed", logging.Message(messageID), logging.Err(err))
		return false, fmt.Errorf("load message: %w", err)
	}
	if msg.SenderID != requesterID {
		s.log.DebugContext(ctx, "messages - delete single - requester is not the sender", logging.Message(messageID), logging.User(requesterID))
		return false, nil
	}
	err = s.Repo.DeleteMessage(ctx, messageID)
	if errors.Is(err, domain.ErrMessageNotFound) {
		s.log.DebugContext(ctx, "messages - delete single - already gone", logging.Message(messageID))
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		s.log.ErrorContext(ctx, "messages - delete single - delete failed", logging.Message(messageID), logging.Err(err))
		return false, fmt.Errorf("delete message: %w", err)
	}
	s.broadcastDeleted(ctx, deletedEvent([]string{messageID}, false))
	s.log.InfoContext(ctx, "messages - delete single - success", logging.Message(messageID), logging.User(requesterID))
	return true, nil
}

func (s *MessageService) DeleteBatch(ctx context.Context, ids []string, requesterID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "MessageService.DeleteBatch", trace.WithAttributes(
		attribute.Int("requested", len(ids)),
		attribute.String("requester_id", requesterID),
	))
	defer span.End()
	if err := validateStruct(domain.DeleteBatchIn{MessageIDs: ids, SenderID: requesterID}); err != nil {
		return nil, err
	}
	owned, err := s.Repo.FilterOwned(ctx, ids, requesterID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "messages - delete batch - filter owned failed", logging.User(requesterID), logging.Err(err))
		return nil, fmt.Errorf("filter owned: %w", err)
	}
	subset := inOrder(lo.Uniq(ids), owned)
	if len(subset) == 0 {
		s.log.DebugContext(ctx, "messages - delete batch - nothing owned", logging.User(requesterID), "requested", len(ids))
		return nil, nil
	}
	removed, err := s.Repo.DeleteMessages(ctx, subset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		s.log.ErrorContext(ctx, "messages - delete batch - delete failed", logging.User(requesterID), logging.Err(err))
		return nil, fmt.Errorf("delete messages: %w", err)
	}
	deleted := inOrder(subset, removed)
	if len(deleted) == 0 {
		s.log.DebugContext(ctx, "messages - delete batch - already gone", logging.User(requesterID), "requested", len(ids))
		return nil, nil
	}
	s.broadcastDeleted(ctx, deletedEvent(deleted, true))
	s.log.InfoContext(ctx, "messages - delete batch - success", logging.User(requesterID), "requested", len(ids), "deleted", len(deleted))
	return deleted, nil
}

func (s *MessageService) DeleteUnchecked(ctx context.Context, ids []string) (int64, error) {
	ctx, span := tracer.Start(ctx, "MessageService.DeleteUnchecked", trace.WithAttributes(
		attribute.Int("requested", len(ids)),
	))
	defer span.End()
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no message ids", domain.ErrValidation)
	}
	removed, err := s.Repo.DeleteMessages(ctx, ids)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "messages - delete unchecked - delete failed", logging.Err(err))
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	deleted := inOrder(ids, removed)
	if len(deleted) > 0 {
		s.broadcastDeleted(ctx, deletedEvent(deleted, len(ids) > 1))
	}
	n := int64(len(deleted))
	s.log.InfoContext(ctx, "messages - delete unchecked - success", "requested", len(ids), logging.Count(n))
	return n, nil
}

func (s *MessageService) History(ctx context.Context, userID, chatWithID string) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.History", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("chat_with_id", chatWithID),
	))
	defer span.End()
	if err := validateStruct(domain.MarkSeenIn{UserID: userID, ChatWithID: chatWithID}); err != nil {
		return nil, err
	}
	msgs, err := s.Repo.ListConversation(ctx, userID, chatWithID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db read failed")
		s.log.ErrorContext(ctx, "messages - history - list conversation failed", logging.User(userID), logging.Peer(chatWithID), logging.Err(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("message_count", len(msgs)))
	return msgs, nil
}

// inOrder keeps the ids of want that appear in got, in want's order.
func inOrder(want, got []string) []string {
	keep := lo.SliceToMap(got, func(id string) (string, struct{}) { return id, struct{}{} })
	return lo.Filter(want, func(id string, _ int) bool {
		_, ok := keep[id]
		return ok
	})
}

func deletedEvent(ids []string, batch bool) domain.OutboundEvent {
	if batch {
		return domain.OutboundEvent{Event: domain.EventMessagesBatchDeleted, Data: domain.MessagesBatchDeleted{MessageIDs: ids}}
	}
	return domain.OutboundEvent{Event: domain.EventMessageDeleted, Data: domain.MessageDeleted{MessageID: ids[0]}}
}

// broadcastDeleted notifies every connection, not only the two participants.
func (s *MessageService) broadcastDeleted(ctx context.Context, ev domain.OutboundEvent) {
	if err := s.loop.Call(context.WithoutCancel(ctx), func() {
		broadcast(ctx, s.log, s.registry, ev)
	}); err != nil {
		s.log.WarnContext(ctx, "messages - broadcast deleted - skipped", logging.Event(ev.Event), logging.Err(err))
	}
}

var _ IMessageService = (*MessageService)(nil)
