package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/repository"

	"go.uber.org/zap"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

const maxCommentLength = 2000

type FeedbackService struct {
	users  repository.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewFeedbackService(users repository.UserRepository, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{users: users, logger: logger, now: time.Now}
}

func (s *FeedbackService) Submit(ctx context.Context, userID int64, rating int, comment string) (*models.Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	comment = strings.TrimSpace(comment)
	if r := []rune(comment); len(r) > maxCommentLength {
		comment = string(r[:maxCommentLength])
	}

	fb := &models.Feedback{UserID: userID, Rating: rating, Comment: comment, CreatedAt: s.now()}
	if err := s.users.AddFeedback(ctx, fb); err != nil {
		s.logger.Error("Failed to store feedback", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("store feedback: %w", err)
	}
	return fb, nil
}

// Consent returns nil when the user has never been asked.
func (s *FeedbackService) Consent(ctx context.Context, userID int64) (*bool, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u.CanDM, nil
}

func (s *FeedbackService) SetConsent(ctx context.Context, userID int64, canDM bool) error {
	return mapRepoErr(s.users.SetDMConsent(ctx, userID, canDM))
}
