package service

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/cache"
	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/repository"
	"github.com/akash-mondal/feed-alpha/internal/rules"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSummaryTTL = 10 * time.Minute

type ProfileService struct {
	profiles  repository.ProfileRepository
	topics    repository.TopicRepository
	evaluator ProfileEvaluator
	store     cache.Store
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewProfileService(
	profiles repository.ProfileRepository,
	topics repository.TopicRepository,
	evaluator ProfileEvaluator,
	store cache.Store,
	ttl time.Duration,
	logger *zap.Logger,
) *ProfileService {
	if ttl <= 0 {
		ttl = defaultSummaryTTL
	}
	return &ProfileService{
		profiles:  profiles,
		topics:    topics,
		evaluator: evaluator,
		store:     store,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

func (s *ProfileService) List(ctx context.Context, userID int64) ([]*models.Profile, error) {
	return s.profiles.List(ctx, userID)
}

func (s *ProfileService) Get(ctx context.Context, userID int64, id string) (*models.Profile, error) {
	p, err := s.profiles.Get(ctx, userID, id)
	return p, mapRepoErr(err)
}

// validate checks the payload and keeps only topic ids the user owns.
func (s *ProfileService) validate(ctx context.Context, userID int64, req models.ProfileRequest) (*models.Profile, error) {
	p, err := req.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	owned, err := s.topics.GetMany(ctx, userID, p.TopicIDs)
	if err != nil {
		return nil, err
	}
	p.TopicIDs = make([]string, len(owned))
	for i, t := range owned {
		p.TopicIDs[i] = t.ID
	}
	p.UserID = userID
	return p, nil
}

func (s *ProfileService) Create(ctx context.Context, userID int64, req models.ProfileRequest) (*models.Profile, error) {
	p, err := s.validate(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	p.ID = s.newID()
	p.CreatedAt = s.now()

	if err := s.profiles.Create(ctx, p); err != nil {
		s.logger.Error("Failed to create profile", zap.Error(err))
		return nil, fmt.Errorf("store profile: %w", err)
	}
	return p, nil
}

func (s *ProfileService) Update(ctx context.Context, userID int64, id string, req models.ProfileRequest) (*models.Profile, error) {
	p, err := s.validate(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	p.ID = id

	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, mapRepoErr(err)
	}
	return s.Get(ctx, userID, id)
}

func (s *ProfileService) Delete(ctx context.Context, userID int64, id string) error {
	return mapRepoErr(s.profiles.Delete(ctx, userID, id))
}

// Summary evaluates a profile over its member topics. Results are cached
// until a member topic or the profile itself changes.
func (s *ProfileService) Summary(ctx context.Context, userID int64, id string) (models.ProfileSummary, error) {
	p, err := s.profiles.Get(ctx, userID, id)
	if err != nil {
		return models.ProfileSummary{}, mapRepoErr(err)
	}
	return s.summarize(ctx, p)
}

// SummaryByName is the bot's entry point.
func (s *ProfileService) SummaryByName(ctx context.Context, userID int64, name string) (models.ProfileSummary, error) {
	p, err := s.profiles.GetByName(ctx, userID, name)
	if err != nil {
		return models.ProfileSummary{}, mapRepoErr(err)
	}
	return s.summarize(ctx, p)
}

func (s *ProfileService) summarize(ctx context.Context, p *models.Profile) (models.ProfileSummary, error) {
	topics, err := s.topics.GetMany(ctx, p.UserID, p.TopicIDs)
	if err != nil {
		return models.ProfileSummary{}, err
	}

	key := cache.ProfileKey(p.ID, profileVersion(p, topics))
	if raw, ok, err := s.store.Get(ctx, key); err != nil {
		s.logger.Warn("Profile cache read failed", zap.String("profile_id", p.ID), zap.Error(err))
	} else if ok {
		var cached models.ProfileSummary
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	}

	summary := s.evaluator.Evaluate(ctx, p, topics)
	if summary.Narrative == rules.FallbackSummary {
		return summary, nil
	}
	if b, err := json.Marshal(summary); err == nil {
		if err := s.store.Set(ctx, key, string(b), s.ttl); err != nil {
			s.logger.Warn("Profile cache write failed", zap.String("profile_id", p.ID), zap.Error(err))
		}
	}
	return summary, nil
}

// profileVersion fingerprints everything the evaluation depends on.
func profileVersion(p *models.Profile, topics []*models.Topic) string {
	h := fnv.New64a()
	b, _ := json.Marshal(struct {
		Name    string
		Rules   []models.Rule
		Tracked []string
	}{p.Name, p.Rules, p.TrackedSenders})
	h.Write(b)
	for _, t := range topics {
		h.Write([]byte(t.ID))
		h.Write([]byte(strconv.FormatInt(t.LastUpdated.UnixNano(), 10)))
	}
	return strconv.FormatUint(h.Sum64(), 36)
}
