package handlers

import (
	"context"
	"dmchat/internal/core/domain"
	"dmchat/internal/core/services"
	"dmchat/pkg/logging"
	"net/http"

	"github.com/gin-gonic/gin"
)

type UserService interface {
	Register(ctx context.Context, in services.Credentials) (*domain.User, error)
	Login(ctx context.Context, in services.Credentials) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

type AuthHandler struct {
	userSvc  UserService
	tokenSvc TokenIssuer
}

func NewAuthHandler(u UserService, t TokenIssuer) *AuthHandler {
	return &AuthHandler{userSvc: u, tokenSvc: t}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.Credentials
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userSvc.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, "auth handler - register", err)
		return
	}
	logging.FromContext(c.Request.Context()).InfoContext(c.Request.Context(), "auth handler - register success", logging.User(user.ID))
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    gin.H{"id": user.ID, "username": user.Username},
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.Credentials
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userSvc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, "auth handler - login", err)
		return
	}
	token, err := h.tokenSvc.GenerateToken(user.ID)
	if err != nil {
		respondError(c, "auth handler - generate token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"id": user.ID, "username": user.Username},
	})
}
