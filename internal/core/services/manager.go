package services

import (
	"context"
	"dmchat/internal/core/contracts"
	"dmchat/internal/core/domain"
	"dmchat/pkg/logging"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type IManagerService interface {
	// HandleEvent decodes one inbound frame from c and routes it. Failures
	// are reported back to c as an error event and returned for logging.
	HandleEvent(ctx context.Context, c contracts.Client, raw []byte) error
	// HandleDisconnect runs when c's socket closes.
	HandleDisconnect(ctx context.Context, c contracts.Client) error
}

// ManagerService is the inbound dispatcher behind every websocket.
type ManagerService struct {
	log      *slog.Logger
	presence IPresenceService
	message  IMessageService
	typing   ITypingService
}

func NewManagerService(
	log *slog.Logger,
	presence IPresenceService,
	message IMessageService,
	typing ITypingService,
) *ManagerService {
	return &ManagerService{
		log:      log,
		presence: presence,
		message:  message,
		typing:   typing,
	}
}

func (m *ManagerService) HandleEvent(ctx context.Context, c contracts.Client, raw []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		err = fmt.Errorf("%w: malformed frame", domain.ErrValidation)
		m.reply(ctx, c, domain.EventError, domain.ErrorMessage{Message: err.Error()})
		return err
	}
	ctx, span := tracer.Start(ctx, "ManagerService.HandleEvent", trace.WithAttributes(
		attribute.String("event", env.Event),
		attribute.String("client_id", c.ID()),
		attribute.Int("payload_size", len(raw)),
	))
	defer span.End()
	if err := m.route(ctx, c, env); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handle event failed")
		m.log.WarnContext(ctx, "manager - handle event - failed", logging.Event(env.Event), logging.Client(c.ID()), logging.Err(err))
		m.reply(ctx, c, domain.EventError, domain.ErrorMessage{Event: env.Event, Message: publicError(err)})
		return err
	}
	return nil
}

func (m *ManagerService) route(ctx context.Context, c contracts.Client, env domain.Envelope) error {
	switch env.Event {
	case domain.EventRegister:
		userID, err := decodeUserID(env.Data)
		if err != nil {
			return err
		}
		return m.presence.Register(ctx, userID, c)
	case domain.EventChatMessage:
		var in domain.ChatMessageIn
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		_, err := m.message.Submit(ctx, in)
		return err
	case domain.EventTyping, domain.EventStopTyping:
		var in domain.TypingIn
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		if env.Event == domain.EventTyping {
			return m.typing.Typing(ctx, in.SenderID, in.ReceiverID)
		}
		return m.typing.StopTyping(ctx, in.SenderID, in.ReceiverID)
	case domain.EventMarkMessagesSeen:
		var in domain.MarkSeenIn
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		_, err := m.message.MarkSeen(ctx, in.UserID, in.ChatWithID)
		return err
	case domain.EventDeleteMessage:
		var in domain.DeleteMessageIn
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		_, err := m.message.DeleteSingle(ctx, in.MessageID, in.SenderID)
		return err
	case domain.EventDeleteMessagesBatch:
		var in domain.DeleteBatchIn
		if err := decode(env.Data, &in); err != nil {
			return err
		}
		_, err := m.message.DeleteBatch(ctx, in.MessageIDs, in.SenderID)
		return err
	case domain.EventForceDisconnect:
		userID, err := decodeUserID(env.Data)
		if err != nil {
			return err
		}
		return m.presence.ForceDisconnect(ctx, userID)
	case domain.EventPing:
		m.reply(ctx, c, domain.EventPong, nil)
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Event)
	}
}

func (m *ManagerService) HandleDisconnect(ctx context.Context, c contracts.Client) error {
	return m.presence.Disconnect(ctx, c)
}

func (m *ManagerService) reply(ctx context.Context, c contracts.Client, event string, data any) {
	sendTo(ctx, m.log, c, domain.OutboundEvent{Event: event, Data: data})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", domain.ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// decodeUserID accepts a bare JSON string or {"userId": "..."}.
func decodeUserID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return id, nil
	}
	var obj struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.UserID != "" {
		return obj.UserID, nil
	}
	return "", domain.ErrInvalidUserID
}

// publicError hides persistence details from clients.
func publicError(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrUnknownEvent):
		return err.Error()
	case errors.Is(err, contracts.ErrLoopStopped):
		return "server shutting down"
	default:
		return "internal error"
	}
}

var _ IManagerService = (*ManagerService)(nil)
