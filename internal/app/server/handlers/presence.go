package handlers

import (
	"dmchat/internal/core/contracts"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	mirror contracts.PresenceMirror
}

// NewPresenceHandler accepts a nil mirror; the endpoint then reports nothing.
func NewPresenceHandler(mirror contracts.PresenceMirror) *PresenceHandler {
	return &PresenceHandler{mirror: mirror}
}

func (h *PresenceHandler) LastSeen(c *gin.Context) {
	if h.mirror == nil {
		c.JSON(http.StatusOK, map[string]time.Time{})
		return
	}
	seen, err := h.mirror.LastSeen(c.Request.Context())
	if err != nil {
		respondError(c, "presence handler - last seen", err)
		return
	}
	c.JSON(http.StatusOK, seen)
}
