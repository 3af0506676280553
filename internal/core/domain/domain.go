package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted identity. The realtime core only touches LastSeen.
type User struct {
	ID           string    `json:"_id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"password"`
	LastSeen     time.Time `json:"lastSeen" bson:"lastSeen"`
}

func NewUser(username, passwordHash string) *User {
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		LastSeen:     time.Now(),
	}
}

// Message is a direct message between two users. SeenAt is set only on
// the first unseen -> seen transition.
type Message struct {
	ID           string     `json:"_id" bson:"_id"`
	SenderID     string     `json:"sender" bson:"sender"`
	ReceiverID   string     `json:"receiver" bson:"receiver"`
	Content      string     `json:"content" bson:"content"`
	ImageURLs    []string   `json:"imageUrls" bson:"imageUrls"`
	AudioURLs    []string   `json:"audioUrls" bson:"audioUrls"`
	DocumentURLs []string   `json:"documentUrls" bson:"documentUrls"`
	Timestamp    time.Time  `json:"timestamp" bson:"timestamp"`
	Seen         bool       `json:"seen" bson:"seen"`
	SeenAt       *time.Time `json:"seenAt,omitempty" bson:"seenAt,omitempty"`
}

func NewMessage(senderID, receiverID, content string, attachments Attachments) *Message {
	return &Message{
		ID:           uuid.NewString(),
		SenderID:     senderID,
		ReceiverID:   receiverID,
		Content:      content,
		ImageURLs:    nonNil(attachments.ImageURLs),
		AudioURLs:    nonNil(attachments.AudioURLs),
		DocumentURLs: nonNil(attachments.DocumentURLs),
		Timestamp:    time.Now(),
	}
}

// Attachments groups the reference lists carried by a message.
type Attachments struct {
	ImageURLs    []string
	AudioURLs    []string
	DocumentURLs []string
}

// ChatPartner is one entry of a user's chat list.
type ChatPartner struct {
	ChatWithID string `json:"chatWithId" bson:"chatWithId" validate:"required"`
	Username   string `json:"username" bson:"username"`
}

// UserChat is the chat-partner list owned by one user.
type UserChat struct {
	UserID string        `json:"currentUserId" bson:"currentUserId"`
	Chats  []ChatPartner `json:"chats" bson:"chats"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
