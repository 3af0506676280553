package handlers

import (
	"context"
	"dmchat/internal/core/domain"
	"dmchat/internal/core/services"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ChatService interface {
	SaveChats(ctx context.Context, in services.SaveChatsIn) (*domain.UserChat, services.ChatsOutcome, error)
	GetChats(ctx context.Context, userID string) ([]domain.ChatPartner, error)
}

type ChatsHandler struct {
	chats ChatService
}

func NewChatsHandler(s ChatService) *ChatsHandler {
	return &ChatsHandler{chats: s}
}

func (h *ChatsHandler) Save(c *gin.Context) {
	var req services.SaveChatsIn
	if !bindJSON(c, &req) {
		return
	}
	uc, outcome, err := h.chats.SaveChats(c.Request.Context(), req)
	if err != nil {
		respondError(c, "chats handler - save", err)
		return
	}
	switch outcome {
	case services.ChatsCreated:
		c.JSON(http.StatusCreated, gin.H{"message": "Chat created", "data": uc})
	case services.ChatsUpdated:
		c.JSON(http.StatusOK, gin.H{"message": "Chats updated", "data": uc})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "No new chats to add", "data": uc})
	}
}

func (h *ChatsHandler) Get(c *gin.Context) {
	chats, err := h.chats.GetChats(c.Request.Context(), c.Param("currentUserId"))
	if errors.Is(err, domain.ErrUserChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "No chats found"})
		return
	}
	if err != nil {
		respondError(c, "chats handler - get", err)
		return
	}
	c.JSON(http.StatusOK, chats)
}
