package handler

import (
	"context"
	"net/http"

	"github.com/akash-mondal/feed-alpha/internal/middleware"
	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FeedbackService is implemented by *service.FeedbackService.
type FeedbackService interface {
	Submit(ctx context.Context, userID int64, rating int, comment string) (*models.Feedback, error)
	Consent(ctx context.Context, userID int64) (*bool, error)
	SetConsent(ctx context.Context, userID int64, canDM bool) error
}

type FeedbackHandler interface {
	Submit(c *gin.Context)
	GetConsent(c *gin.Context)
	SetConsent(c *gin.Context)
}

type feedbackHandler struct {
	feedback FeedbackService
	logger   *zap.Logger
}

func NewFeedbackHandler(feedback FeedbackService, logger *zap.Logger) FeedbackHandler {
	return &feedbackHandler{feedback: feedback, logger: logger}
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Submit handles POST /api/feedback
func (h *feedbackHandler) Submit(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	fb, err := h.feedback.Submit(c.Request.Context(), middleware.UserID(c), req.Rating, req.Comment)
	if err != nil {
		respondError(c, h.logger, err, "Failed to save feedback")
		return
	}
	c.JSON(http.StatusCreated, fb)
}

// GetConsent handles GET /api/feedback/consent. canDm is null until the
// user has answered.
func (h *feedbackHandler) GetConsent(c *gin.Context) {
	consent, err := h.feedback.Consent(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err, "Failed to read consent")
		return
	}
	c.JSON(http.StatusOK, gin.H{"canDm": consent})
}

type consentRequest struct {
	CanDM *bool `json:"canDm" binding:"required"`
}

// SetConsent handles PUT /api/feedback/consent
func (h *feedbackHandler) SetConsent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "canDm is required"})
		return
	}

	if err := h.feedback.SetConsent(c.Request.Context(), middleware.UserID(c), *req.CanDM); err != nil {
		respondError(c, h.logger, err, "Failed to save consent")
		return
	}
	c.JSON(http.StatusOK, gin.H{"canDm": *req.CanDM})
}
