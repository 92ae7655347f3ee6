package telegram_bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/service"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeProfiles struct {
	byName map[string]models.ProfileSummary
	err    error
}

func (f *fakeProfiles) List(ctx context.Context, userID int64) ([]*models.Profile, error) {
	return nil, f.err
}

func (f *fakeProfiles) Summary(ctx context.Context, userID int64, id string) (models.ProfileSummary, error) {
	return models.ProfileSummary{}, f.err
}

func (f *fakeProfiles) SummaryByName(ctx context.Context, userID int64, name string) (models.ProfileSummary, error) {
	if f.err != nil {
		return models.ProfileSummary{}, f.err
	}
	s, ok := f.byName[strings.ToLower(name)]
	if !ok {
		return models.ProfileSummary{}, fmt.Errorf("%w: record not found", service.ErrNotFound)
	}
	return s, nil
}

func TestReply(t *testing.T) {
	profiles := &fakeProfiles{byName: map[string]models.ProfileSummary{
		"memes": {
			Narrative: "BONK dominated the chats.",
			Findings: []models.Finding{
				{Text: "BONK mentioned 5 times across 2 groups"},
				{Text: "Keep it short", Advisory: true},
			},
		},
	}}
	b := &Bot{profiles: profiles, logger: zap.NewNop()}
	ctx := context.Background()

	assert.Contains(t, b.reply(ctx, 1, "Ada", "start", ""), "Hi Ada!")
	assert.Equal(t, "Usage: /brief <profile name>", b.reply(ctx, 1, "", "brief", "  "))
	assert.Equal(t, `No profile named "dogs". Use /profiles to see yours.`, b.reply(ctx, 1, "", "brief", "dogs"))
	assert.Equal(t, "BONK dominated the chats.\n\nSignals:\n• BONK mentioned 5 times across 2 groups", b.reply(ctx, 1, "", "brief", "Memes"))
	assert.Contains(t, b.reply(ctx, 1, "", "nope", ""), "Unknown command")

	profiles.err = errors.New("db down")
	assert.Contains(t, b.reply(ctx, 1, "", "brief", "memes"), "Could not build the brief")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short"))

	long := strings.Repeat("a", 3000) + "\n" + strings.Repeat("b", 3000)
	parts := splitMessage(long)
	assert.Equal(t, []string{strings.Repeat("a", 3000), strings.Repeat("b", 3000)}, parts)

	runes := strings.Repeat("é", 3000)
	for _, p := range splitMessage(runes) {
		assert.LessOrEqual(t, len(p), maxMessageLength)
		assert.True(t, strings.HasPrefix(p, "é"))
	}
}

func TestProfileKeyboard(t *testing.T) {
	kb := profileKeyboard([]*models.Profile{{ID: "p1", Name: "Memes"}, {ID: "p2", Name: "Dogs"}})
	assert.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "brief:p2", *kb.InlineKeyboard[1][0].CallbackData)
}
