package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/cache"
	"github.com/akash-mondal/feed-alpha/internal/metrics"
	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/repository"
	"github.com/akash-mondal/feed-alpha/internal/summarizer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRefreshTTL   = 5 * time.Minute
	privateGroupDisplay = "Private Group"
)

// TopicResult is a stored topic together with what the model saw and said.
type TopicResult struct {
	Topic *models.Topic    `json:"topic"`
	Debug summarizer.Debug `json:"debug"`
}

type TopicService struct {
	topics     repository.TopicRepository
	posts      PostFetcher
	messages   MessageFetcher
	engine     Summarizer
	store      cache.Store
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
	refreshTTL time.Duration
}

type TopicOption func(*TopicService)

func WithTopicClock(now func() time.Time) TopicOption {
	return func(s *TopicService) { s.now = now }
}

func WithTopicIDs(newID func() string) TopicOption {
	return func(s *TopicService) { s.newID = newID }
}

// WithRefreshTTL bounds how long an abandoned in-flight marker blocks refreshes.
func WithRefreshTTL(d time.Duration) TopicOption {
	return func(s *TopicService) {
		if d > 0 {
			s.refreshTTL = d
		}
	}
}

// NewTopicService wires the topic pipeline. posts or messages may be nil
// when that source is not configured; topics needing it are then rejected.
func NewTopicService(
	topics repository.TopicRepository,
	posts PostFetcher,
	messages MessageFetcher,
	engine Summarizer,
	store cache.Store,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...TopicOption,
) *TopicService {
	s := &TopicService{
		topics:     topics,
		posts:      posts,
		messages:   messages,
		engine:     engine,
		store:      store,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TopicService) List(ctx context.Context, userID int64) ([]*models.Topic, error) {
	return s.topics.List(ctx, userID)
}

func (s *TopicService) Get(ctx context.Context, userID int64, id string) (*models.Topic, error) {
	t, err := s.topics.Get(ctx, userID, id)
	return t, mapRepoErr(err)
}

// fetched is one round of raw records from the adapters.
type fetched struct {
	posts    []models.Post
	messages []models.Message
}

func (s *TopicService) fetch(ctx context.Context, kind models.TopicKind, handle, channel string) (fetched, error) {
	var out fetched
	if kind.HasSocial() && s.posts == nil {
		return out, fmt.Errorf("%w: X source is not configured", ErrSourceUnavailable)
	}
	if kind.HasGroup() && s.messages == nil {
		return out, fmt.Errorf("%w: Telegram source is not configured", ErrSourceUnavailable)
	}

	g, gctx := errgroup.WithContext(ctx)
	if kind.HasSocial() && handle != "" {
		g.Go(func() error {
			posts, err := s.posts.FetchPosts(gctx, handle)
			s.metrics.IncFetch("twitter", err)
			if err != nil {
				return fmt.Errorf("fetch posts for @%s: %w: %w", handle, ErrSourceFailed, err)
			}
			out.posts = posts
			return nil
		})
	}
	if kind.HasGroup() && channel != "" {
		g.Go(func() error {
			msgs, err := s.messages.FetchMessages(gctx, channel)
			s.metrics.IncFetch("telegram", err)
			if err != nil {
				return fmt.Errorf("fetch messages for %s: %w: %w", channel, ErrSourceFailed, err)
			}
			out.messages = msgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fetched{}, err
	}
	return out, nil
}

func summaryRequest(t *models.Topic, f fetched) summarizer.Request {
	req := summarizer.Request{
		Posts:          f.posts,
		Messages:       f.messages,
		Length:         t.SummaryLength,
		CustomWords:    t.CustomWords(),
		TrackedSenders: t.TrackedSenders,
	}
	if t.Kind.HasSocial() && t.TwitterUsername != nil {
		req.SocialLabel = *t.TwitterUsername
	}
	if t.Kind.HasGroup() {
		req.GroupLabel = t.GroupLabel()
	}
	return req
}

// Add fetches the sources, summarizes them and stores the new topic at the
// end of the user's list. Adapter failures abort the whole operation.
func (s *TopicService) Add(ctx context.Context, userID int64, req models.NewTopicRequest) (res *TopicResult, err error) {
	ctx, span := startSpan(ctx, "TopicService.Add", attribute.String("topic.type", string(req.Kind)))
	defer func() { endSpan(span, err) }()

	if err := req.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}

	t := &models.Topic{
		ID:             s.newID(),
		UserID:         userID,
		Kind:           req.Kind,
		SummaryLength:  req.SummaryLength,
		TrackedSenders: req.TrackedSenders,
	}
	if req.Kind.HasSocial() {
		t.TwitterUsername = &req.TwitterUsername
	}
	if req.Kind.HasGroup() {
		if req.TelegramChannelName != "" {
			t.TelegramChannelName = &req.TelegramChannelName
		}
		t.TelegramChannelID = req.TelegramChannelID
	}
	if req.SummaryLength == models.LengthCustom {
		t.CustomSummaryLength = req.CustomSummaryLength
	}

	f, err := s.fetch(ctx, t.Kind, req.TwitterUsername, t.GroupIdentifier())
	if err != nil {
		s.logger.Warn("Failed to fetch sources for new topic", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	if t.Kind.HasSocial() {
		if len(f.posts) > 0 {
			author := f.posts[0].Author
			t.DisplayName = firstNonEmpty(author.Name, req.TwitterUsername)
			if author.ProfilePicture != "" {
				pic := author.ProfilePicture
				t.ProfilePictureURL = &pic
			}
		} else if t.Kind == models.TopicTwitter {
			return nil, unknownUserError{handle: req.TwitterUsername}
		}
	}
	if t.DisplayName == "" && t.Kind.HasGroup() {
		t.DisplayName = firstNonEmpty(req.TelegramChannelName, privateGroupDisplay)
	}
	if t.DisplayName == "" {
		t.DisplayName = req.TwitterUsername
	}

	sum := s.engine.SummarizeChannels(ctx, summaryRequest(t, f))
	t.TwitterSummary = sum.SocialSummary
	t.TelegramSummary = sum.GroupSummary
	t.RawTweets = f.posts
	t.RawMessages = f.messages
	t.LastUpdated = s.now()

	if err := s.topics.Create(ctx, t); err != nil {
		s.logger.Error("Failed to store topic", zap.String("topic_id", t.ID), zap.Error(err))
		return nil, fmt.Errorf("store topic: %w", err)
	}

	s.logger.Info("Topic added",
		zap.String("topic_id", t.ID),
		zap.String("type", string(t.Kind)),
		zap.Int("posts", len(f.posts)),
		zap.Int("messages", len(f.messages)))
	return &TopicResult{Topic: t, Debug: sum.Debug}, nil
}

// Refresh refetches and resummarizes a topic and writes the new snapshot in
// one update. A second refresh of the same topic while one is running is
// rejected with ErrRefreshInProgress.
func (s *TopicService) Refresh(ctx context.Context, userID int64, id string) (res *TopicResult, err error) {
	ctx, span := startSpan(ctx, "TopicService.Refresh", attribute.String("topic.id", id))
	defer func() { endSpan(span, err) }()

	t, err := s.topics.Get(ctx, userID, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	key := cache.RefreshKey(id)
	ok, err := s.store.Acquire(ctx, key, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire refresh marker: %w", err)
	}
	if !ok {
		return nil, ErrRefreshInProgress
	}
	defer func() {
		if err := s.store.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn("Failed to release refresh marker", zap.String("topic_id", id), zap.Error(err))
		}
	}()

	handle := ""
	if t.TwitterUsername != nil {
		handle = *t.TwitterUsername
	}
	f, err := s.fetch(ctx, t.Kind, handle, t.GroupIdentifier())
	if err != nil {
		s.logger.Warn("Failed to fetch sources for refresh", zap.String("topic_id", id), zap.Error(err))
		return nil, err
	}

	snap := models.TopicSnapshot{
		DisplayName:       t.DisplayName,
		ProfilePictureURL: t.ProfilePictureURL,
		RawTweets:         t.RawTweets,
		RawMessages:       f.messages,
	}
	if len(f.posts) > 0 {
		author := f.posts[0].Author
		snap.DisplayName = firstNonEmpty(author.Name, snap.DisplayName)
		if author.ProfilePicture != "" {
			pic := author.ProfilePicture
			snap.ProfilePictureURL = &pic
		}
		snap.RawTweets = f.posts
	}

	sum := s.engine.SummarizeChannels(ctx, summaryRequest(t, f))
	snap.TwitterSummary = sum.SocialSummary
	snap.TelegramSummary = sum.GroupSummary
	snap.LastUpdated = s.now()

	if err := s.topics.UpdateSnapshot(ctx, userID, id, snap); err != nil {
		return nil, mapRepoErr(err)
	}

	t.DisplayName = snap.DisplayName
	t.ProfilePictureURL = snap.ProfilePictureURL
	t.TwitterSummary = snap.TwitterSummary
	t.TelegramSummary = snap.TelegramSummary
	t.RawTweets = snap.RawTweets
	t.RawMessages = snap.RawMessages
	t.LastUpdated = snap.LastUpdated
	return &TopicResult{Topic: t, Debug: sum.Debug}, nil
}

// UpdateSettings applies a partial settings change and returns the topic.
func (s *TopicService) UpdateSettings(ctx context.Context, userID int64, id string, in models.TopicSettings) (*models.Topic, error) {
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name must not be empty", ErrInvalidTopic)
		}
		in.DisplayName = &name
	}
	if in.SummaryLength != nil {
		l := models.ParseSummaryLength(string(*in.SummaryLength))
		in.SummaryLength = &l
	}
	if in.CustomSummaryLength != nil {
		v := models.ClampCustomWords(*in.CustomSummaryLength)
		in.CustomSummaryLength = &v
	}
	if in.TrackedSenders != nil {
		cleaned := models.CleanSenders(*in.TrackedSenders)
		if cleaned == nil {
			cleaned = []string{}
		}
		in.TrackedSenders = &cleaned
	}

	if err := s.topics.UpdateSettings(ctx, userID, id, in); err != nil {
		return nil, mapRepoErr(err)
	}
	return s.Get(ctx, userID, id)
}

func (s *TopicService) Delete(ctx context.Context, userID int64, id string) error {
	if err := s.topics.Delete(ctx, userID, id); err != nil {
		return mapRepoErr(err)
	}
	s.logger.Info("Topic deleted", zap.String("topic_id", id), zap.Int64("user_id", userID))
	return nil
}

// Reorder moves dragged before or after target and persists contiguous
// order indexes for the whole list.
func (s *TopicService) Reorder(ctx context.Context, userID int64, draggedID, targetID string, pos Position) ([]*models.Topic, error) {
	topics, err := s.topics.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(topics))
	byID := make(map[string]*models.Topic, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
		byID[t.ID] = t
	}

	ordered, err := Reposition(ids, draggedID, targetID, pos)
	if err != nil {
		return nil, err
	}
	if err := s.topics.Reorder(ctx, userID, ordered); err != nil {
		return nil, mapRepoErr(err)
	}

	out := make([]*models.Topic, len(ordered))
	for i, id := range ordered {
		out[i] = byID[id]
		out[i].Order = i
	}
	return out, nil
}

func mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
