package service

import (
	"context"
	"testing"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/cache"
	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/repository"
	"github.com/akash-mondal/feed-alpha/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingEvaluator struct {
	calls     int
	narrative string
	seen      []string
}

func (e *countingEvaluator) Evaluate(ctx context.Context, p *models.Profile, topics []*models.Topic) models.ProfileSummary {
	e.calls++
	e.seen = e.seen[:0]
	for _, t := range topics {
		e.seen = append(e.seen, t.ID)
	}
	return models.ProfileSummary{ProfileID: p.ID, Narrative: e.narrative, GeneratedAt: now}
}

type profileFixture struct {
	svc    *ProfileService
	topics repository.TopicRepository
	eval   *countingEvaluator
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	db := newDB(t)
	topics := repository.NewTopicRepository(db, zap.NewNop())
	eval := &countingEvaluator{narrative: "BONK is trending."}
	svc := NewProfileService(repository.NewProfileRepository(db, zap.NewNop()), topics, eval, cache.NewMemoryStore(), time.Minute, zap.NewNop())

	ctx := context.Background()
	for _, tp := range []*models.Topic{
		{ID: "a", UserID: 7, Kind: models.TopicTelegram, DisplayName: "A", LastUpdated: now},
		{ID: "b", UserID: 7, Kind: models.TopicTelegram, DisplayName: "B", LastUpdated: now},
		{ID: "other", UserID: 8, Kind: models.TopicTelegram, DisplayName: "X", LastUpdated: now},
	} {
		require.NoError(t, topics.Create(ctx, tp))
	}
	return &profileFixture{svc: svc, topics: topics, eval: eval}
}

func TestProfileCreateKeepsOnlyOwnedTopics(t *testing.T) {
	f := newProfileFixture(t)

	p, err := f.svc.Create(context.Background(), 7, models.ProfileRequest{
		Name:     " Memes ",
		Rules:    []models.RuleInput{{Type: models.RuleTicker, Value: "BONK"}},
		TopicIDs: []string{"a", "other", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Memes", p.Name)
	assert.ElementsMatch(t, []string{"a", "b"}, p.TopicIDs)
	assert.Equal(t, models.DefaultMentionThreshold, p.Rules[0].MentionThreshold)
}

func TestProfileCreateRejectsBadRules(t *testing.T) {
	f := newProfileFixture(t)
	one := 1

	_, err := f.svc.Create(context.Background(), 7, models.ProfileRequest{
		Name:  "x",
		Rules: []models.RuleInput{{Type: models.RuleCustom, Value: "be brief", GroupThreshold: &one}},
	})
	require.ErrorIs(t, err, ErrInvalidProfile)
	require.ErrorIs(t, err, models.ErrCustomThreshold)

	_, err = f.svc.Create(context.Background(), 7, models.ProfileRequest{Name: "  "})
	require.ErrorIs(t, err, models.ErrProfileName)
}

func TestProfileSummaryIsCachedUntilTopicChanges(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, 7, models.ProfileRequest{Name: "Memes", TopicIDs: []string{"a", "b"}})
	require.NoError(t, err)

	first, err := f.svc.Summary(ctx, 7, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "BONK is trending.", first.Narrative)
	assert.ElementsMatch(t, []string{"a", "b"}, f.eval.seen)

	_, err = f.svc.Summary(ctx, 7, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.eval.calls)

	require.NoError(t, f.topics.UpdateSnapshot(ctx, 7, "a", models.TopicSnapshot{DisplayName: "A", LastUpdated: now.Add(time.Minute)}))
	_, err = f.svc.Summary(ctx, 7, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.eval.calls)
}

func TestProfileSummaryDoesNotCacheFallback(t *testing.T) {
	f := newProfileFixture(t)
	f.eval.narrative = rules.FallbackSummary
	ctx := context.Background()
	p, err := f.svc.Create(ctx, 7, models.ProfileRequest{Name: "Memes", TopicIDs: []string{"a"}})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		s, err := f.svc.Summary(ctx, 7, p.ID)
		require.NoError(t, err)
		assert.Equal(t, rules.FallbackSummary, s.Narrative)
	}
	assert.Equal(t, 2, f.eval.calls)
}

func TestProfileSummaryByName(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, 7, models.ProfileRequest{Name: "Memes", TopicIDs: []string{"a"}})
	require.NoError(t, err)

	s, err := f.svc.SummaryByName(ctx, 7, "memes")
	require.NoError(t, err)
	assert.Equal(t, "BONK is trending.", s.Narrative)

	_, err = f.svc.SummaryByName(ctx, 8, "memes")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileUpdateAndDelete(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, 7, models.ProfileRequest{Name: "Memes", TopicIDs: []string{"a"}})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, 7, p.ID, models.ProfileRequest{Name: "Dogs", TopicIDs: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, "Dogs", updated.Name)
	assert.Equal(t, []string{"b"}, updated.TopicIDs)

	require.NoError(t, f.svc.Delete(ctx, 7, p.ID))
	_, err = f.svc.Get(ctx, 7, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
