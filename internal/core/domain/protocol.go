package domain

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventRegister            = "register"
	EventChatMessage         = "chat message"
	EventTyping              = "typing"
	EventStopTyping          = "stop typing"
	EventMarkMessagesSeen    = "mark messages seen"
	EventDeleteMessage       = "delete message"
	EventDeleteMessagesBatch = "delete messages batch"
	EventForceDisconnect     = "disconnectsingleuser"
	EventPing                = "ping"
)

// Outbound event names. chat message, typing and stop typing are shared
// with the inbound set.
const (
	EventUsersOnline          = "users online"
	EventLastSeenTimes        = "last seen times"
	EventUserLastSeen         = "user last seen"
	EventMessagesSeen         = "messages seen"
	EventMessageDeleted       = "message deleted"
	EventMessagesBatchDeleted = "messages batch deleted"
	EventPong                 = "pong"
	EventError                = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEvent is marshalled into an Envelope before it reaches a client.
type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func (e OutboundEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ChatMessageIn is the chat message payload sent by clients.
type ChatMessageIn struct {
	SenderID     string   `json:"senderId" validate:"required"`
	ReceiverID   string   `json:"receiverId" validate:"required"`
	Message      string   `json:"message"`
	Username     string   `json:"username"`
	ImageURLs    []string `json:"imageUrls" validate:"omitempty,max=5,dive,required"`
	AudioURLs    []string `json:"audioUrls" validate:"omitempty,max=3,dive,required"`
	DocumentURLs []string `json:"documentUrls" validate:"omitempty,max=5,dive,required"`
}

type TypingIn struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
}

type MarkSeenIn struct {
	UserID     string `json:"userId" validate:"required"`
	ChatWithID string `json:"chatWithId" validate:"required"`
}

type DeleteMessageIn struct {
	MessageID string `json:"messageId" validate:"required"`
	SenderID  string `json:"senderId" validate:"required"`
}

type DeleteBatchIn struct {
	MessageIDs []string `json:"messageIds" validate:"required,min=1,dive,required"`
	SenderID   string   `json:"senderId" validate:"required"`
}

// Participant is the user reference embedded in a delivered message.
type Participant struct {
	ID       string `json:"_id"`
	Username string `json:"username,omitempty"`
}

// DeliveredMessage is the chat message payload pushed to receiver and sender.
type DeliveredMessage struct {
	ID           string      `json:"_id"`
	Sender       Participant `json:"sender"`
	Receiver     Participant `json:"receiver"`
	Content      string      `json:"content"`
	ImageURLs    []string    `json:"imageUrls"`
	AudioURLs    []string    `json:"audioUrls"`
	DocumentURLs []string    `json:"documentUrls"`
	Timestamp    time.Time   `json:"timestamp"`
	Seen         bool        `json:"seen"`
}

func NewDeliveredMessage(m *Message, senderName string) DeliveredMessage {
	return DeliveredMessage{
		ID:           m.ID,
		Sender:       Participant{ID: m.SenderID, Username: senderName},
		Receiver:     Participant{ID: m.ReceiverID},
		Content:      m.Content,
		ImageURLs:    m.ImageURLs,
		AudioURLs:    m.AudioURLs,
		DocumentURLs: m.DocumentURLs,
		Timestamp:    m.Timestamp,
		Seen:         m.Seen,
	}
}

type UserLastSeen struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// MessagesSeen is sent to the counterpart even when Updated is zero.
type MessagesSeen struct {
	By      string `json:"by"`
	At      string `json:"at"`
	Updated int64  `json:"updated"`
}

type TypingSignal struct {
	SenderID string `json:"senderId"`
}

type MessageDeleted struct {
	MessageID string `json:"messageId"`
}

type MessagesBatchDeleted struct {
	MessageIDs []string `json:"messageIds"`
}

// ErrorMessage is a WS-safe error
type ErrorMessage struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
