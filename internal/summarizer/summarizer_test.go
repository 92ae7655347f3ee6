package summarizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/metrics"
	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	mu      sync.Mutex
	calls   []string
	respond func(system, user string) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, userPrompt)
	f.mu.Unlock()
	return f.respond(systemPrompt, userPrompt)
}

func newEngine(c Completer, m *metrics.Metrics) *Engine {
	return New(c, m, zap.NewNop(), WithClock(func() time.Time { return now }))
}

func groupMessage(id int64, name, text string, age time.Duration) models.Message {
	return models.Message{
		MessageID: id,
		Text:      text,
		Date:      now.Add(-age),
		Sender:    models.Sender{ID: id, Type: models.SenderUser, Name: name},
	}
}

func TestSummarizeChannelsBothScenarioWithTrackedSenders(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) {
		return "<think>reasoning</think>Alice shared two updates.", nil
	}}
	e := newEngine(fc, nil)

	msgs := []models.Message{
		groupMessage(1, "alice", "first alice note", time.Hour),
		groupMessage(2, "bob", "bob chatter", time.Hour),
		groupMessage(3, "Alice", "second alice note", 2*time.Hour),
		groupMessage(4, "carol", "carol chatter", 3*time.Hour),
		groupMessage(5, "dave", "dave chatter", 4*time.Hour),
	}
	stale := []models.Post{{ID: "1", Text: "old", Author: models.PostAuthor{UserName: "handle"}, CreatedAt: now.Add(-48 * time.Hour)}}

	res := e.SummarizeChannels(context.Background(), Request{
		Posts:          stale,
		Messages:       msgs,
		SocialLabel:    "handle",
		GroupLabel:     "alpha chat",
		Length:         models.LengthDetailed,
		TrackedSenders: []string{"alice"},
	})

	require.NotNil(t, res.SocialSummary)
	require.Equal(t, "The tracked users in @handle have not posted in the last 24 hours.", *res.SocialSummary)

	require.NotNil(t, res.GroupSummary)
	require.Equal(t, "Alice shared two updates.", *res.GroupSummary)

	require.Len(t, fc.calls, 1)
	require.Contains(t, fc.calls[0], "first alice note")
	require.Contains(t, fc.calls[0], "second alice note")
	require.NotContains(t, fc.calls[0], "bob chatter")
	require.Equal(t, 2, res.Debug.Group.Selected)
}

func TestSummarizeChannelsSkipsChannelWithoutRecords(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) { return "summary", nil }}
	e := newEngine(fc, nil)

	res := e.SummarizeChannels(context.Background(), Request{
		Messages:    []models.Message{groupMessage(1, "a", "hi", time.Hour)},
		SocialLabel: "handle",
		GroupLabel:  "chan",
	})

	require.Nil(t, res.SocialSummary)
	require.NotNil(t, res.GroupSummary)
	require.Equal(t, "summary", *res.GroupSummary)
}

func TestSummarizeChannelsSkipsChannelWithoutLabel(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) { return "summary", nil }}
	e := newEngine(fc, nil)

	res := e.SummarizeChannels(context.Background(), Request{
		Messages: []models.Message{groupMessage(1, "a", "hi", time.Hour)},
	})

	require.Nil(t, res.GroupSummary)
	require.Empty(t, fc.calls)
}

func TestSummarizeChannelsFailureIsolatedPerChannel(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) {
		if strings.Contains(user, "X activity") {
			return "", errors.New("provider down")
		}
		return "group ok", nil
	}}
	m := metrics.New(prometheus.NewRegistry())
	e := newEngine(fc, m)

	res := e.SummarizeChannels(context.Background(), Request{
		Posts:       []models.Post{{ID: "1", Text: "gm", Author: models.PostAuthor{UserName: "h"}, CreatedAt: now.Add(-time.Hour)}},
		Messages:    []models.Message{groupMessage(1, "a", "hi", time.Hour)},
		SocialLabel: "h",
		GroupLabel:  "chan",
	})

	require.Equal(t, FailureSummary, *res.SocialSummary)
	require.Equal(t, "group ok", *res.GroupSummary)
	require.Equal(t, "provider down", res.Debug.Social.Error)
	require.Equal(t, float64(1), testutil.ToFloat64(m.SummaryOutcomes.WithLabelValues("social", "failed")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.SummaryOutcomes.WithLabelValues("group", "ai")))
}

func TestSummarizeChannelsRecoversFromPanic(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) { panic("unexpected") }}
	e := newEngine(fc, nil)

	res := e.SummarizeChannels(context.Background(), Request{
		Messages:   []models.Message{groupMessage(1, "a", "hi", time.Hour)},
		GroupLabel: "chan",
	})

	require.Equal(t, FailureSummary, *res.GroupSummary)
}

func TestSummarizeChannelsPlaceholdersWithoutTracking(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) { return "x", nil }}
	e := newEngine(fc, nil)

	res := e.SummarizeChannels(context.Background(), Request{
		Posts:       []models.Post{{ID: "1", Author: models.PostAuthor{UserName: "h"}, CreatedAt: now.Add(-30 * time.Hour)}},
		Messages:    []models.Message{groupMessage(1, "a", "hi", 30*time.Hour)},
		SocialLabel: "h",
		GroupLabel:  "chan",
	})

	require.Equal(t, "No new posts from @h in the last 24 hours.", *res.SocialSummary)
	require.Equal(t, `No new activity in the "chan" channel recently.`, *res.GroupSummary)
	require.Empty(t, fc.calls)
}

func TestSummarizeChannelsEmbedsWordRange(t *testing.T) {
	var system string
	fc := &fakeCompleter{respond: func(s, user string) (string, error) {
		system = s
		return "x", nil
	}}
	e := newEngine(fc, nil)

	e.SummarizeChannels(context.Background(), Request{
		Messages:    []models.Message{groupMessage(1, "a", "hi", time.Hour)},
		GroupLabel:  "chan",
		Length:      models.LengthCustom,
		CustomWords: 200,
	})

	require.Contains(t, system, "about 190-200 words")
}

func TestSummarizeChannelsEmptySanitizedOutputIsFailure(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) { return "<think>only thoughts</think>", nil }}
	e := newEngine(fc, nil)

	res := e.SummarizeChannels(context.Background(), Request{
		Messages:   []models.Message{groupMessage(1, "a", "hi", time.Hour)},
		GroupLabel: "chan",
	})

	require.Equal(t, FailureSummary, *res.GroupSummary)
}
