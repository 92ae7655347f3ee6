package handler

import (
	"context"
	"net/http"

	"github.com/akash-mondal/feed-alpha/internal/middleware"
	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProfileService is implemented by *service.ProfileService.
type ProfileService interface {
	List(ctx context.Context, userID int64) ([]*models.Profile, error)
	Create(ctx context.Context, userID int64, req models.ProfileRequest) (*models.Profile, error)
	Update(ctx context.Context, userID int64, id string, req models.ProfileRequest) (*models.Profile, error)
	Delete(ctx context.Context, userID int64, id string) error
	Summary(ctx context.Context, userID int64, id string) (models.ProfileSummary, error)
}

type ProfileHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Summary(c *gin.Context)
}

type profileHandler struct {
	profiles ProfileService
	logger   *zap.Logger
}

func NewProfileHandler(profiles ProfileService, logger *zap.Logger) ProfileHandler {
	return &profileHandler{profiles: profiles, logger: logger}
}

// List handles GET /api/profiles
func (h *profileHandler) List(c *gin.Context) {
	profiles, err := h.profiles.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err, "Failed to retrieve profiles")
		return
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}
	c.JSON(http.StatusOK, profiles)
}

// Create handles POST /api/profiles
func (h *profileHandler) Create(c *gin.Context) {
	var req models.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	p, err := h.profiles.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create profile")
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update handles PUT /api/profiles/:id
func (h *profileHandler) Update(c *gin.Context) {
	var req models.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	p, err := h.profiles.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/profiles/:id
func (h *profileHandler) Delete(c *gin.Context) {
	if err := h.profiles.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err, "Failed to delete profile")
		return
	}
	c.Status(http.StatusNoContent)
}

// Summary handles GET /api/profiles/:id/summary
func (h *profileHandler) Summary(c *gin.Context) {
	summary, err := h.profiles.Summary(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to evaluate profile")
		return
	}
	if summary.Findings == nil {
		summary.Findings = []models.Finding{}
	}
	c.JSON(http.StatusOK, summary)
}
