package handler

import (
	"errors"
	"net/http"

	"github.com/akash-mondal/feed-alpha/internal/service"
	"github.com/akash-mondal/feed-alpha/internal/telegram"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps service errors to HTTP status codes. Zero means the error
// is internal and its text must not reach the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidTopic),
		errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, telegram.ErrInvalidInvite):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidInitData),
		errors.Is(err, service.ErrInitDataExpired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRefreshInProgress),
		errors.Is(err, telegram.ErrNotWaitingCode):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnknownSocialUser):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSourceFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrSourceUnavailable),
		errors.Is(err, telegram.ErrNotReady):
		return http.StatusServiceUnavailable
	}
	return 0
}

func respondError(c *gin.Context, logger *zap.Logger, err error, internalMsg string) {
	if status := statusFor(err); status != 0 {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.Error(internalMsg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
}
