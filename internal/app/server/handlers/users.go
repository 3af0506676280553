package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type LastSeenReader interface {
	LastSeen(ctx context.Context, userID string) (time.Time, error)
}

type UsersHandler struct {
	userSvc  UserService
	presence LastSeenReader
}

func NewUsersHandler(u UserService, p LastSeenReader) *UsersHandler {
	return &UsersHandler{userSvc: u, presence: p}
}

func (h *UsersHandler) List(c *gin.Context) {
	users, err := h.userSvc.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, "users handler - list", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// LastSeen reads the persisted timestamp, not the in-memory cache.
func (h *UsersHandler) LastSeen(c *gin.Context) {
	userID := c.Param("id")
	at, err := h.presence.LastSeen(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "users handler - last seen", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "lastSeen": at})
}
