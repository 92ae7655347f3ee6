package handler

import (
	"context"
	"net/http"

	"github.com/akash-mondal/feed-alpha/internal/telegram"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChannelDirectory validates and joins group channels. Implemented by
// *telegram.ScraperClient.
type ChannelDirectory interface {
	CheckChannel(ctx context.Context, name string) bool
	JoinPrivateChannel(ctx context.Context, inviteLink string) (*telegram.ChannelDetails, error)
}

// CodeSubmitter receives the login code for the user-account client.
// Implemented by *telegram.MTProtoClient.
type CodeSubmitter interface {
	SubmitCode(code string) error
	Ready() bool
}

type TelegramHandler interface {
	CheckChannel(c *gin.Context)
	JoinChannel(c *gin.Context)
	SubmitCode(c *gin.Context)
}

type telegramHandler struct {
	directory ChannelDirectory
	login     CodeSubmitter
	logger    *zap.Logger
}

// NewTelegramHandler accepts nil for either dependency when the configured
// group source does not support it.
func NewTelegramHandler(directory ChannelDirectory, login CodeSubmitter, logger *zap.Logger) TelegramHandler {
	return &telegramHandler{directory: directory, login: login, logger: logger}
}

func notSupported(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "Not supported by the configured Telegram source"})
}

// CheckChannel handles GET /api/telegram/check/:name
func (h *telegramHandler) CheckChannel(c *gin.Context) {
	if h.directory == nil {
		notSupported(c)
		return
	}
	name := c.Param("name")
	c.JSON(http.StatusOK, gin.H{"name": name, "validAndJoinable": h.directory.CheckChannel(c.Request.Context(), name)})
}

type joinRequest struct {
	InviteLink string `json:"inviteLink" binding:"required"`
}

// JoinChannel handles POST /api/telegram/join
func (h *telegramHandler) JoinChannel(c *gin.Context) {
	if h.directory == nil {
		notSupported(c)
		return
	}
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inviteLink is required"})
		return
	}

	details, err := h.directory.JoinPrivateChannel(c.Request.Context(), req.InviteLink)
	if err != nil {
		if statusFor(err) == 0 {
			h.logger.Warn("Failed to join channel", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		respondError(c, h.logger, err, "Failed to join channel")
		return
	}
	c.JSON(http.StatusOK, details)
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

// SubmitCode handles POST /api/telegram/auth/code
func (h *telegramHandler) SubmitCode(c *gin.Context) {
	if h.login == nil {
		notSupported(c)
		return
	}
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	if err := h.login.SubmitCode(req.Code); err != nil {
		respondError(c, h.logger, err, "Failed to submit code")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ready": h.login.Ready()})
}
