package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestWordCountRange(t *testing.T) {
	tests := []struct {
		name   string
		length models.SummaryLength
		custom int
		want   string
	}{
		{"concise", models.LengthConcise, 0, "30-40"},
		{"detailed", models.LengthDetailed, 0, "50-75"},
		{"comprehensive", models.LengthComprehensive, 0, "100-150"},
		{"custom", models.LengthCustom, 200, "190-200"},
		{"custom without count", models.LengthCustom, 0, "50-75"},
		{"custom below minimum", models.LengthCustom, 10, "40-50"},
		{"custom above maximum", models.LengthCustom, 5000, "990-1000"},
		{"unknown", models.SummaryLength("epic"), 0, "50-75"},
		{"empty", "", 0, "50-75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WordCountRange(tt.length, tt.custom))
		})
	}
}

func TestPostLineStripsRetweetPrefix(t *testing.T) {
	p := models.Post{
		Text:      "RT @someone_1: big news today",
		Author:    models.PostAuthor{UserName: "alice"},
		LikeCount: 42,
		CreatedAt: now.Add(-3*time.Hour - 20*time.Minute),
	}

	require.Equal(t, `From @alice: "big news today" (Likes: 42, ~3h ago)`, PostLine(p, now))
}

func TestMessageLine(t *testing.T) {
	m := models.Message{Text: "gm", Date: now.Add(-5 * time.Hour), Sender: models.Sender{Name: "Bob"}}
	require.Equal(t, `From Bob: "gm" (~5h ago)`, MessageLine(m, now))
}

func TestBuildSocialEmbedsRangeAndLines(t *testing.T) {
	lines := []string{"line one", "line two"}

	p := Build(Social, "vitalik", lines, "190-200", nil)

	require.Contains(t, p.System, "about 190-200 words")
	require.Contains(t, p.System, "Do not use lists.")
	require.Contains(t, p.System, "Synthesize the key themes")
	require.True(t, strings.HasPrefix(p.User, "Summarize the recent X activity for @vitalik."))
	require.True(t, strings.HasSuffix(p.User, "line one\n\nline two"))
}

func TestBuildFocusNamesTrackedSenders(t *testing.T) {
	social := Build(Social, "h", nil, "50-75", []string{"alice", "bob"})
	require.Contains(t, social.System, "Pay special attention to the posts from these users: alice, bob.")

	group := Build(Group, "alpha", nil, "50-75", []string{"carol"})
	require.Contains(t, group.System, "Focus on the conversation points from these specific members: carol.")
	require.Contains(t, group.User, `"alpha" Telegram channel`)
}

func TestBuildProfileListsAlertsAndAdvisories(t *testing.T) {
	p := BuildProfile("degen", []string{`ALERT: "PEPE" (ticker) was mentioned 4 times across 2 groups.`}, []string{"watch for rug pulls"}, []string{"l1"})

	require.Contains(t, p.User, `Signal profile: "degen"`)
	require.Contains(t, p.User, `- ALERT: "PEPE"`)
	require.Contains(t, p.User, "- watch for rug pulls")
	require.Contains(t, p.System, "lead with them")

	empty := BuildProfile("quiet", nil, nil, nil)
	require.Contains(t, empty.User, "Triggered alerts:\nNone.")
	require.NotContains(t, empty.User, "Custom rules")
}
