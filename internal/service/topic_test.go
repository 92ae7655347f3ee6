package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/cache"
	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/repository"
	"github.com/akash-mondal/feed-alpha/internal/summarizer"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakePosts struct {
	posts []models.Post
	err   error
	calls int
}

func (f *fakePosts) FetchPosts(ctx context.Context, handle string) ([]models.Post, error) {
	f.calls++
	return f.posts, f.err
}

type fakeMessages struct {
	msgs    []models.Message
	err     error
	channel string
}

func (f *fakeMessages) FetchMessages(ctx context.Context, channel string) ([]models.Message, error) {
	f.channel = channel
	return f.msgs, f.err
}

type completerFunc func(system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(systemPrompt, userPrompt)
}

func newDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repository.NewDB(repository.DriverSQLite, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, zap.NewNop()))
	return db
}

type topicFixture struct {
	svc      *TopicService
	repo     repository.TopicRepository
	posts    *fakePosts
	messages *fakeMessages
	store    *cache.MemoryStore
}

func newTopicFixture(t *testing.T, reply string) *topicFixture {
	t.Helper()
	repo := repository.NewTopicRepository(newDB(t), zap.NewNop())
	engine := summarizer.New(completerFunc(func(system, user string) (string, error) {
		if reply == "" {
			return "", errors.New("model down")
		}
		return reply, nil
	}), nil, zap.NewNop(), summarizer.WithClock(func() time.Time { return now }))

	f := &topicFixture{
		repo:     repo,
		posts:    &fakePosts{},
		messages: &fakeMessages{},
		store:    cache.NewMemoryStore(),
	}
	ids := 0
	f.svc = NewTopicService(repo, f.posts, f.messages, engine, f.store, nil, zap.NewNop(),
		WithTopicClock(func() time.Time { return now }),
		WithTopicIDs(func() string { ids++; return fmt.Sprintf("t%d", ids) }))
	return f
}

func post(id, text string, age time.Duration) models.Post {
	return models.Post{
		ID:        id,
		Text:      text,
		CreatedAt: now.Add(-age),
		Author:    models.PostAuthor{UserName: "alice", Name: "Alice A", ProfilePicture: "https://pbs/alice.jpg"},
	}
}

func message(id int64, text string, age time.Duration) models.Message {
	return models.Message{MessageID: id, Text: text, Date: now.Add(-age), Sender: models.Sender{ID: 5, Type: models.SenderUser, Name: "Bob"}}
}

func TestAddTwitterTopic(t *testing.T) {
	f := newTopicFixture(t, "Alice shipped a release.")
	f.posts.posts = []models.Post{post("1", "shipping v2", time.Hour)}

	res, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: models.TopicTwitter, TwitterUsername: "@alice"})
	require.NoError(t, err)

	tp := res.Topic
	assert.Equal(t, "t1", tp.ID)
	assert.Equal(t, "Alice A", tp.DisplayName)
	assert.Equal(t, "https://pbs/alice.jpg", *tp.ProfilePictureURL)
	assert.Equal(t, "alice", *tp.TwitterUsername)
	assert.Equal(t, "Alice shipped a release.", *tp.TwitterSummary)
	assert.Nil(t, tp.TelegramSummary)
	assert.Equal(t, models.LengthDetailed, tp.SummaryLength)
	require.NotNil(t, res.Debug.Social)
	assert.Contains(t, res.Debug.Social.Prompt.User, "shipping v2")

	stored, err := f.repo.Get(context.Background(), 7, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Order)
	assert.Len(t, stored.RawTweets, 1)
}

func TestAddUnknownSocialUser(t *testing.T) {
	f := newTopicFixture(t, "x")

	_, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: models.TopicTwitter, TwitterUsername: "ghost"})

	require.ErrorIs(t, err, ErrUnknownSocialUser)
	assert.EqualError(t, err, `Unable to find X user "ghost".`)
	topics, _ := f.repo.List(context.Background(), 7)
	assert.Empty(t, topics)
}

func TestAddBothWithoutPostsStillSucceeds(t *testing.T) {
	f := newTopicFixture(t, "group summary")
	f.messages.msgs = []models.Message{message(1, "hello", time.Hour)}

	res, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{
		Kind:                models.TopicBoth,
		TwitterUsername:     "quiet",
		TelegramChannelName: "alpha",
	})
	require.NoError(t, err)

	assert.Equal(t, "alpha", res.Topic.DisplayName)
	assert.Nil(t, res.Topic.TwitterSummary)
	assert.Equal(t, "group summary", *res.Topic.TelegramSummary)
}

func TestAddPrivateGroupUsesChannelID(t *testing.T) {
	f := newTopicFixture(t, "ok")
	id := int64(-1009876)

	res, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: models.TopicTelegram, TelegramChannelID: &id})
	require.NoError(t, err)

	assert.Equal(t, "-1009876", f.messages.channel)
	assert.Equal(t, "Private Group", res.Topic.DisplayName)
	assert.Nil(t, res.Topic.TelegramSummary, "no records means no group summary")
}

func TestAddAdapterFailureAborts(t *testing.T) {
	f := newTopicFixture(t, "ok")
	f.posts.posts = []models.Post{post("1", "gm", time.Hour)}
	f.messages.err = errors.New("connection refused")

	_, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{
		Kind:                models.TopicBoth,
		TwitterUsername:     "alice",
		TelegramChannelName: "alpha",
	})

	require.ErrorIs(t, err, ErrSourceFailed)
	assert.ErrorContains(t, err, "connection refused")
	topics, _ := f.repo.List(context.Background(), 7)
	assert.Empty(t, topics)
}

func TestAddValidation(t *testing.T) {
	f := newTopicFixture(t, "ok")

	_, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: "instagram"})
	require.ErrorIs(t, err, ErrInvalidTopic)
	require.ErrorIs(t, err, models.ErrUnknownTopicKind)

	_, err = f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: models.TopicTwitter, SummaryLength: models.LengthCustom, TwitterUsername: "a"})
	require.ErrorIs(t, err, models.ErrCustomWordsMissing)
}

func TestAddModelFailureStoresFailureSentence(t *testing.T) {
	f := newTopicFixture(t, "")
	f.posts.posts = []models.Post{post("1", "gm", time.Hour)}

	res, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: models.TopicTwitter, TwitterUsername: "alice"})

	require.NoError(t, err)
	assert.Equal(t, summarizer.FailureSummary, *res.Topic.TwitterSummary)
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	f := newTopicFixture(t, "fresh")
	f.posts.posts = []models.Post{post("1", "old news", time.Hour)}
	_, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: models.TopicTwitter, TwitterUsername: "alice"})
	require.NoError(t, err)

	f.posts.posts = []models.Post{post("2", "new news", time.Minute)}
	f.posts.posts[0].Author.Name = "Alice Renamed"

	res, err := f.svc.Refresh(context.Background(), 7, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", res.Topic.DisplayName)

	stored, err := f.repo.Get(context.Background(), 7, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Renamed", stored.DisplayName)
	require.Len(t, stored.RawTweets, 1)
	assert.Equal(t, "2", stored.RawTweets[0].ID)

	ok, _ := f.store.Acquire(context.Background(), cache.RefreshKey("t1"), time.Minute)
	assert.True(t, ok, "marker must be released after refresh")
}

func TestRefreshRejectsConcurrentRefresh(t *testing.T) {
	f := newTopicFixture(t, "fresh")
	f.posts.posts = []models.Post{post("1", "gm", time.Hour)}
	_, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: models.TopicTwitter, TwitterUsername: "alice"})
	require.NoError(t, err)
	calls := f.posts.calls

	held, err := f.store.Acquire(context.Background(), cache.RefreshKey("t1"), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = f.svc.Refresh(context.Background(), 7, "t1")
	require.ErrorIs(t, err, ErrRefreshInProgress)
	assert.Equal(t, calls, f.posts.calls, "a rejected refresh must not fetch")
}

func TestRefreshUnknownTopic(t *testing.T) {
	f := newTopicFixture(t, "x")
	_, err := f.svc.Refresh(context.Background(), 7, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSettings(t *testing.T) {
	f := newTopicFixture(t, "x")
	f.posts.posts = []models.Post{post("1", "gm", time.Hour)}
	_, err := f.svc.Add(context.Background(), 7, models.NewTopicRequest{Kind: models.TopicTwitter, TwitterUsername: "alice"})
	require.NoError(t, err)

	length := models.LengthCustom
	words := 5000
	senders := []string{" @bob ", ""}
	tp, err := f.svc.UpdateSettings(context.Background(), 7, "t1", models.TopicSettings{
		SummaryLength:       &length,
		CustomSummaryLength: &words,
		TrackedSenders:      &senders,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LengthCustom, tp.SummaryLength)
	assert.Equal(t, models.MaxCustomWords, tp.CustomWords())
	assert.Equal(t, []string{"bob"}, tp.TrackedSenders)

	blank := "  "
	_, err = f.svc.UpdateSettings(context.Background(), 7, "t1", models.TopicSettings{DisplayName: &blank})
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestReorderFiveTopicsLastToFirst(t *testing.T) {
	f := newTopicFixture(t, "x")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.repo.Create(ctx, &models.Topic{
			ID: fmt.Sprintf("id%d", i), UserID: 7, Kind: models.TopicTwitter, DisplayName: "d", LastUpdated: now,
		}))
	}

	out, err := f.svc.Reorder(ctx, 7, "id4", "id0", Before)
	require.NoError(t, err)

	var ids []string
	var orders []int
	for _, tp := range out {
		ids = append(ids, tp.ID)
		orders = append(orders, tp.Order)
	}
	assert.Equal(t, []string{"id4", "id0", "id1", "id2", "id3"}, ids)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, orders)

	stored, err := f.repo.List(ctx, 7)
	require.NoError(t, err)
	for i, tp := range stored {
		assert.Equal(t, ids[i], tp.ID)
		assert.Equal(t, i, tp.Order)
	}
}

func TestDeleteTopic(t *testing.T) {
	f := newTopicFixture(t, "x")
	require.ErrorIs(t, f.svc.Delete(context.Background(), 7, "nope"), ErrNotFound)
}
