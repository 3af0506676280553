package domain

import (
	"context"
	"time"
)

// UserRepository handles the persistent identity and its last-seen field.
type UserRepository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// UpdateLastSeen is the durable write behind the last-seen cache. It
	// never moves the stored value backwards.
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// MessageRepository handles message durability and the bulk transitions
// used by the seen and deletion paths.
type MessageRepository interface {
	CreateMessage(ctx context.Context, m *Message) error
	GetMessageByID(ctx context.Context, id string) (*Message, error)
	// ListConversation returns both directions between a and b ordered by timestamp.
	ListConversation(ctx context.Context, a, b string) ([]Message, error)
	// MarkSeen flips every unseen message from sender to receiver and
	// returns how many rows changed.
	MarkSeen(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error)
	// FilterOwned returns the subset of ids whose stored sender is senderID.
	FilterOwned(ctx context.Context, ids []string, senderID string) ([]string, error)
	DeleteMessage(ctx context.Context, id string) error
	// DeleteMessages removes the ids that exist and returns them.
	DeleteMessages(ctx context.Context, ids []string) ([]string, error)
}

// UserChatRepository stores chat-partner lists.
type UserChatRepository interface {
	GetUserChats(ctx context.Context, userID string) (*UserChat, error)
	// SaveUserChats inserts the list when created is true, otherwise replaces it.
	SaveUserChats(ctx context.Context, uc *UserChat, created bool) error
}
