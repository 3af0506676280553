package services

import (
	"context"
	"dmchat/internal/core/domain"
	"dmchat/pkg/logging"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

// ChatsOutcome tells the caller which branch SaveChats took.
type ChatsOutcome int

const (
	ChatsCreated ChatsOutcome = iota
	ChatsUpdated
	ChatsUnchanged
)

type SaveChatsIn struct {
	CurrentUserID string               `json:"currentUserId" validate:"required"`
	Chats         []domain.ChatPartner `json:"chats" validate:"dive"`
}

// UserChatService maintains per-user chat-partner lists.
type UserChatService struct {
	log  *slog.Logger
	repo domain.UserChatRepository
}

func NewUserChatService(log *slog.Logger, repo domain.UserChatRepository) *UserChatService {
	return &UserChatService{log: log, repo: repo}
}

// SaveChats creates the list, or appends the partners not already
// present by chat_with_id.
func (s *UserChatService) SaveChats(ctx context.Context, in SaveChatsIn) (*domain.UserChat, ChatsOutcome, error) {
	if err := validateStruct(in); err != nil {
		return nil, 0, err
	}
	existing, err := s.repo.GetUserChats(ctx, in.CurrentUserID)
	if errors.Is(err, domain.ErrUserChatNotFound) {
		uc := &domain.UserChat{
			UserID: in.CurrentUserID,
			Chats:  lo.UniqBy(in.Chats, func(c domain.ChatPartner) string { return c.ChatWithID }),
		}
		if err := s.repo.SaveUserChats(ctx, uc, true); err != nil {
			s.log.ErrorContext(ctx, "chats - save - create failed", logging.User(in.CurrentUserID), logging.Err(err))
			return nil, 0, fmt.Errorf("create chats: %w", err)
		}
		return uc, ChatsCreated, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load chats: %w", err)
	}
	known := lo.SliceToMap(existing.Chats, func(c domain.ChatPartner) (string, struct{}) { return c.ChatWithID, struct{}{} })
	fresh := lo.UniqBy(lo.Filter(in.Chats, func(c domain.ChatPartner, _ int) bool {
		_, ok := known[c.ChatWithID]
		return !ok
	}), func(c domain.ChatPartner) string { return c.ChatWithID })
	if len(fresh) == 0 {
		return existing, ChatsUnchanged, nil
	}
	existing.Chats = append(existing.Chats, fresh...)
	if err := s.repo.SaveUserChats(ctx, existing, false); err != nil {
		s.log.ErrorContext(ctx, "chats - save - update failed", logging.User(in.CurrentUserID), logging.Err(err))
		return nil, 0, fmt.Errorf("update chats: %w", err)
	}
	s.log.InfoContext(ctx, "chats - save - appended", logging.User(in.CurrentUserID), "added", len(fresh))
	return existing, ChatsUpdated, nil
}

func (s *UserChatService) GetChats(ctx context.Context, userID string) ([]domain.ChatPartner, error) {
	uc, err := s.repo.GetUserChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uc.Chats, nil
}
