package handlers

import (
	"context"
	"dmchat/internal/core/domain"
	"net/http"

	"github.com/gin-gonic/gin"
)

type MessageService interface {
	History(ctx context.Context, userID, chatWithID string) ([]domain.Message, error)
	MarkSeen(ctx context.Context, viewerID, counterpartID string) (int64, error)
	DeleteUnchecked(ctx context.Context, ids []string) (int64, error)
}

type MessagesHandler struct {
	messages MessageService
}

func NewMessagesHandler(m MessageService) *MessagesHandler {
	return &MessagesHandler{messages: m}
}

func (h *MessagesHandler) History(c *gin.Context) {
	msgs, err := h.messages.History(c.Request.Context(), c.Query("userId"), c.Query("chatWithId"))
	if err != nil {
		respondError(c, "messages handler - history", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *MessagesHandler) MarkSeen(c *gin.Context) {
	var req domain.MarkSeenIn
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.messages.MarkSeen(c.Request.Context(), req.UserID, req.ChatWithID)
	if err != nil {
		respondError(c, "messages handler - mark seen", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Delete and DeleteBatch do not check who sent the messages.
func (h *MessagesHandler) Delete(c *gin.Context) {
	n, err := h.messages.DeleteUnchecked(c.Request.Context(), []string{c.Param("id")})
	if err != nil {
		respondError(c, "messages handler - delete", err)
		return
	}
	if n == 0 {
		respondError(c, "messages handler - delete", domain.ErrMessageNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *MessagesHandler) DeleteBatch(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"messageIds" binding:"required,min=1"`
	}
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.messages.DeleteUnchecked(c.Request.Context(), req.MessageIDs)
	if err != nil {
		respondError(c, "messages handler - delete batch", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
