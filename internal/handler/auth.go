package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthService is implemented by *service.AuthService.
type AuthService interface {
	Login(ctx context.Context, initData string) (string, time.Time, *models.User, error)
}

type AuthHandler interface {
	Login(c *gin.Context)
}

type authHandler struct {
	auth   AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth AuthService, logger *zap.Logger) AuthHandler {
	return &authHandler{auth: auth, logger: logger}
}

type loginRequest struct {
	InitData string `json:"initData" binding:"required"`
}

// Login handles POST /api/auth/telegram
func (h *authHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "initData is required"})
		return
	}

	token, expires, user, err := h.auth.Login(c.Request.Context(), req.InitData)
	if err != nil {
		respondError(c, h.logger, err, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expires,
		"user":      user,
	})
}
