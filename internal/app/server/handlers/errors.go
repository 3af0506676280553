package handlers

import (
	"dmchat/internal/core/domain"
	"dmchat/pkg/logging"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto status codes and hides the rest.
func respondError(c *gin.Context, op string, err error) {
	log := logging.FromContext(c.Request.Context())
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrInvalidMessageID):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrUserChatNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUserAlreadyExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.ErrorContext(c.Request.Context(), op+" - failed", logging.Err(err))
		c.JSON(status, gin.H{"message": "internal error"})
		return
	}
	log.WarnContext(c.Request.Context(), op+" - rejected", logging.Err(err), "status", status)
	c.JSON(status, gin.H{"message": err.Error()})
}

// bindJSON decodes the body or answers 400.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return false
	}
	return true
}
