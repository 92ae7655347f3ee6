// Package prompt renders the instructions sent to the language model.
package prompt

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"
)

// Channel identifies which kind of source a prompt is written for.
type Channel string

const (
	Social Channel = "social"
	Group  Channel = "group"
)

// Prompt is a system/user pair ready for a completion call.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

var presetRanges = map[models.SummaryLength]string{
	models.LengthConcise:       "30-40",
	models.LengthDetailed:      "50-75",
	models.LengthComprehensive: "100-150",
}

// WordCountRange maps a length policy to the range embedded in prompts.
// Custom counts are clamped; custom without a count falls back to detailed.
func WordCountRange(length models.SummaryLength, custom int) string {
	if length == models.LengthCustom && custom > 0 {
		v := models.ClampCustomWords(custom)
		return fmt.Sprintf("%d-%d", v-10, v)
	}
	if r, ok := presetRanges[length]; ok {
		return r
	}
	return presetRanges[models.LengthDetailed]
}

var retweetPrefix = regexp.MustCompile(`^RT @[A-Za-z0-9_]+: `)

// hoursAgo rounds down, never below zero.
func hoursAgo(ts, now time.Time) int {
	h := math.Floor(now.Sub(ts).Hours())
	if h < 0 {
		return 0
	}
	return int(h)
}

// PostLine renders one social record.
func PostLine(p models.Post, now time.Time) string {
	text := retweetPrefix.ReplaceAllString(p.Text, "")
	return fmt.Sprintf("From @%s: %q (Likes: %d, ~%dh ago)", p.Author.UserName, text, p.LikeCount, hoursAgo(p.CreatedAt, now))
}

// MessageLine renders one group record.
func MessageLine(m models.Message, now time.Time) string {
	return fmt.Sprintf("From %s: %q (~%dh ago)", m.Sender.Name, m.Text, hoursAgo(m.Date, now))
}

// PostLines renders posts in order.
func PostLines(posts []models.Post, now time.Time) []string {
	lines := make([]string, len(posts))
	for i, p := range posts {
		lines[i] = PostLine(p, now)
	}
	return lines
}

// MessageLines renders messages in order.
func MessageLines(msgs []models.Message, now time.Time) []string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = MessageLine(m, now)
	}
	return lines
}

const (
	socialSystem = "You are a sharp social media analyst. Your goal is to synthesize raw X posts into a clear, engaging briefing of about %s words. %s Weave these details into a smooth, easy-to-read paragraph. Do not use lists."
	socialUser   = "Summarize the recent X activity for @%s. The most relevant posts from the last 24 hours are:\n\n%s"

	groupSystem = "You are an analyst summarizing a group chat. Synthesize key discussion points from a Telegram channel into a clear summary of about %s words. %s Weave details into a smooth paragraph. Do not use lists."
	groupUser   = "Summarize the recent discussion in the %q Telegram channel based on these key messages:\n\n%s"
)

// Build assembles the prompt for one channel. label is the handle or the
// channel name; lines are already rendered records.
func Build(ch Channel, label string, lines []string, wordRange string, tracked []string) Prompt {
	body := strings.Join(lines, "\n\n")
	switch ch {
	case Social:
		focus := "Synthesize the key themes, topics, and sentiment from the posts."
		if len(tracked) > 0 {
			focus = fmt.Sprintf("Pay special attention to the posts from these users: %s.", strings.Join(tracked, ", "))
		}
		return Prompt{
			System: fmt.Sprintf(socialSystem, wordRange, focus),
			User:   fmt.Sprintf(socialUser, label, body),
		}
	default:
		focus := "Identify the main themes of conversation from the channel."
		if len(tracked) > 0 {
			focus = fmt.Sprintf("Focus on the conversation points from these specific members: %s.", strings.Join(tracked, ", "))
		}
		return Prompt{
			System: fmt.Sprintf(groupSystem, wordRange, focus),
			User:   fmt.Sprintf(groupUser, label, body),
		}
	}
}

const profileSystem = "You are a signal analyst watching several Telegram communities for one user. Write a single flowing paragraph of about 75-100 words that tells them what matters right now. If triggered alerts are listed, lead with them and say why they stand out. Treat the user's custom rules as guidance on what to look for. Do not use lists."

// BuildProfile assembles the prompt for a profile-level narrative.
func BuildProfile(name string, alerts, advisories, lines []string) Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Signal profile: %q\n\n", name)

	sb.WriteString("Triggered alerts:\n")
	if len(alerts) == 0 {
		sb.WriteString("None.\n")
	}
	for _, a := range alerts {
		sb.WriteString("- " + a + "\n")
	}

	if len(advisories) > 0 {
		sb.WriteString("\nCustom rules to keep in mind:\n")
		for _, a := range advisories {
			sb.WriteString("- " + a + "\n")
		}
	}

	sb.WriteString("\nMost viewed messages from the last 24 hours:\n\n")
	sb.WriteString(strings.Join(lines, "\n\n"))

	return Prompt{System: profileSystem, User: sb.String()}
}

// ProfileLine renders a message with its source channel and view count.
func ProfileLine(m models.Message, channel string, now time.Time) string {
	return fmt.Sprintf("[%s] From %s: %q (views: %d, ~%dh ago)", channel, m.Sender.Name, m.Text, m.ViewCount(), hoursAgo(m.Date, now))
}
