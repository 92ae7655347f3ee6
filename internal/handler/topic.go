package handler

import (
	"context"
	"net/http"

	"github.com/akash-mondal/feed-alpha/internal/middleware"
	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TopicService is implemented by *service.TopicService.
type TopicService interface {
	List(ctx context.Context, userID int64) ([]*models.Topic, error)
	Add(ctx context.Context, userID int64, req models.NewTopicRequest) (*service.TopicResult, error)
	Refresh(ctx context.Context, userID int64, id string) (*service.TopicResult, error)
	UpdateSettings(ctx context.Context, userID int64, id string, in models.TopicSettings) (*models.Topic, error)
	Delete(ctx context.Context, userID int64, id string) error
	Reorder(ctx context.Context, userID int64, draggedID, targetID string, pos service.Position) ([]*models.Topic, error)
}

type TopicHandler interface {
	List(c *gin.Context)
	Add(c *gin.Context)
	Refresh(c *gin.Context)
	UpdateSettings(c *gin.Context)
	Delete(c *gin.Context)
	Reorder(c *gin.Context)
}

type topicHandler struct {
	topics TopicService
	logger *zap.Logger
}

func NewTopicHandler(topics TopicService, logger *zap.Logger) TopicHandler {
	return &topicHandler{topics: topics, logger: logger}
}

// List handles GET /api/topics
func (h *topicHandler) List(c *gin.Context) {
	topics, err := h.topics.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve topics")
		return
	}
	if topics == nil {
		topics = []*models.Topic{}
	}
	c.JSON(http.StatusOK, topics)
}

// Add handles POST /api/topics
func (h *topicHandler) Add(c *gin.Context) {
	var req models.NewTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := h.topics.Add(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to add topic")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Refresh handles POST /api/topics/:id/refresh
func (h *topicHandler) Refresh(c *gin.Context) {
	res, err := h.topics.Refresh(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to refresh topic")
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateSettings handles PATCH /api/topics/:id
func (h *topicHandler) UpdateSettings(c *gin.Context) {
	var in models.TopicSettings
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	topic, err := h.topics.UpdateSettings(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update topic")
		return
	}
	c.JSON(http.StatusOK, topic)
}

// Delete handles DELETE /api/topics/:id
func (h *topicHandler) Delete(c *gin.Context) {
	if err := h.topics.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err, "Failed to delete topic")
		return
	}
	c.Status(http.StatusNoContent)
}

type reorderRequest struct {
	DraggedID string           `json:"draggedId" binding:"required"`
	TargetID  string           `json:"targetId" binding:"required"`
	Position  service.Position `json:"position" binding:"required"`
}

// Reorder handles POST /api/topics/reorder
func (h *topicHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "draggedId, targetId and position are required"})
		return
	}

	topics, err := h.topics.Reorder(c.Request.Context(), middleware.UserID(c), req.DraggedID, req.TargetID, req.Position)
	if err != nil {
		respondError(c, h.logger, err, "Failed to reorder topics")
		return
	}
	c.JSON(http.StatusOK, topics)
}
