package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// TopicKind selects which channels a topic follows.
type TopicKind string

const (
	TopicTwitter  TopicKind = "twitter"
	TopicTelegram TopicKind = "telegram"
	TopicBoth     TopicKind = "both"
)

func (k TopicKind) Valid() bool {
	switch k {
	case TopicTwitter, TopicTelegram, TopicBoth:
		return true
	}
	return false
}

// HasSocial reports whether the kind includes the X channel.
func (k TopicKind) HasSocial() bool { return k == TopicTwitter || k == TopicBoth }

// HasGroup reports whether the kind includes the Telegram channel.
func (k TopicKind) HasGroup() bool { return k == TopicTelegram || k == TopicBoth }

// SummaryLength is the length policy applied when summarizing a topic.
type SummaryLength string

const (
	LengthConcise       SummaryLength = "concise"
	LengthDetailed      SummaryLength = "detailed"
	LengthComprehensive SummaryLength = "comprehensive"
	LengthCustom        SummaryLength = "custom"
)

const (
	MinCustomWords = 50
	MaxCustomWords = 1000
)

// ParseSummaryLength maps unknown or empty values to LengthDetailed.
func ParseSummaryLength(s string) SummaryLength {
	switch l := SummaryLength(strings.ToLower(strings.TrimSpace(s))); l {
	case LengthConcise, LengthDetailed, LengthComprehensive, LengthCustom:
		return l
	}
	return LengthDetailed
}

// ClampCustomWords bounds a custom word count to [MinCustomWords, MaxCustomWords].
func ClampCustomWords(v int) int {
	if v < MinCustomWords {
		return MinCustomWords
	}
	if v > MaxCustomWords {
		return MaxCustomWords
	}
	return v
}

// Topic is one followed source pairing with its latest summaries.
type Topic struct {
	ID                  string        `json:"id"`
	UserID              int64         `json:"userId"`
	Kind                TopicKind     `json:"type"`
	DisplayName         string        `json:"displayName"`
	TwitterUsername     *string       `json:"twitterUsername,omitempty"`
	TelegramChannelName *string       `json:"telegramChannelName,omitempty"`
	TelegramChannelID   *int64        `json:"telegramChannelId,omitempty"`
	ProfilePictureURL   *string       `json:"profilePictureUrl,omitempty"`
	SummaryLength       SummaryLength `json:"summaryLength"`
	CustomSummaryLength *int          `json:"customSummaryLength,omitempty"`
	TrackedSenders      []string      `json:"trackedSenders,omitempty"`
	TwitterSummary      *string       `json:"twitterSummary,omitempty"`
	TelegramSummary     *string       `json:"telegramSummary,omitempty"`
	RawTweets           []Post        `json:"rawTweets"`
	RawMessages         []Message     `json:"rawTelegramMessages"`
	LastUpdated         time.Time     `json:"lastUpdated"`
	Order               int           `json:"order"`
}

// GroupIdentifier is what the group adapter is asked for: the numeric
// channel id when known, otherwise the channel name.
func (t *Topic) GroupIdentifier() string {
	if t.TelegramChannelID != nil {
		return strconv.FormatInt(*t.TelegramChannelID, 10)
	}
	if t.TelegramChannelName != nil {
		return *t.TelegramChannelName
	}
	return ""
}

// GroupLabel names the channel in prompts and placeholders.
func (t *Topic) GroupLabel() string {
	if t.TelegramChannelName != nil && *t.TelegramChannelName != "" {
		return *t.TelegramChannelName
	}
	return t.DisplayName
}

// CustomWords returns the custom word count or zero.
func (t *Topic) CustomWords() int {
	if t.CustomSummaryLength == nil {
		return 0
	}
	return *t.CustomSummaryLength
}

// TopicSnapshot is everything a refresh replaces. It is written as a unit.
type TopicSnapshot struct {
	DisplayName       string
	ProfilePictureURL *string
	TwitterSummary    *string
	TelegramSummary   *string
	RawTweets         []Post
	RawMessages       []Message
	LastUpdated       time.Time
}

// TopicSettings is a partial update: nil fields are left untouched.
type TopicSettings struct {
	DisplayName         *string        `json:"displayName"`
	SummaryLength       *SummaryLength `json:"summaryLength"`
	CustomSummaryLength *int           `json:"customSummaryLength"`
	TrackedSenders      *[]string      `json:"trackedSenders"`
}

// NewTopicRequest is the payload for adding a topic.
type NewTopicRequest struct {
	Kind                TopicKind     `json:"type"`
	TwitterUsername     string        `json:"twitterUsername"`
	TelegramChannelName string        `json:"telegramChannelName"`
	TelegramChannelID   *int64        `json:"telegramChannelId"`
	SummaryLength       SummaryLength `json:"summaryLength"`
	CustomSummaryLength *int          `json:"customSummaryLength"`
	TrackedSenders      []string      `json:"trackedSenders"`
}

var (
	ErrUnknownTopicKind   = errors.New("topic type must be twitter, telegram or both")
	ErrMissingHandle      = errors.New("twitter username is required for this topic type")
	ErrMissingChannel     = errors.New("telegram channel name or id is required for this topic type")
	ErrCustomWordsMissing = errors.New("custom summary length requires a word count")
)

// Normalize validates the request and fills boundary defaults.
func (r *NewTopicRequest) Normalize() error {
	if !r.Kind.Valid() {
		return ErrUnknownTopicKind
	}
	r.TwitterUsername = strings.TrimPrefix(strings.TrimSpace(r.TwitterUsername), "@")
	r.TelegramChannelName = strings.TrimPrefix(strings.TrimSpace(r.TelegramChannelName), "@")
	if r.Kind.HasSocial() && r.TwitterUsername == "" {
		return ErrMissingHandle
	}
	if r.Kind.HasGroup() && r.TelegramChannelName == "" && r.TelegramChannelID == nil {
		return ErrMissingChannel
	}
	r.SummaryLength = ParseSummaryLength(string(r.SummaryLength))
	if r.SummaryLength == LengthCustom {
		if r.CustomSummaryLength == nil {
			return ErrCustomWordsMissing
		}
		v := ClampCustomWords(*r.CustomSummaryLength)
		r.CustomSummaryLength = &v
	}
	r.TrackedSenders = CleanSenders(r.TrackedSenders)
	return nil
}

// CleanSenders trims entries, drops empties and a leading '@'.
func CleanSenders(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimPrefix(strings.TrimSpace(s), "@")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
