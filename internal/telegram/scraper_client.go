package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"go.uber.org/zap"
)

// ScraperClient talks to the channel scraping proxy.
type ScraperClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewScraperClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ScraperClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &ScraperClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type apiSender struct {
	ID       int64   `json:"id"`
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Username *string `json:"username"`
}

type apiMessage struct {
	MessageID int64     `json:"message_id"`
	Text      string    `json:"text"`
	Date      string    `json:"date"`
	Views     *int      `json:"views"`
	Sender    apiSender `json:"sender"`
}

func (m apiMessage) toMessage() models.Message {
	kind := models.SenderUser
	if m.Sender.Type == string(models.SenderChannel) {
		kind = models.SenderChannel
	}
	return models.Message{
		MessageID: m.MessageID,
		Text:      m.Text,
		Date:      parseDate(m.Date),
		Views:     m.Views,
		Sender: models.Sender{
			ID:       m.Sender.ID,
			Type:     kind,
			Name:     m.Sender.Name,
			Username: m.Sender.Username,
		},
	}
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// FetchMessages returns the channel's recent messages, unfiltered.
func (c *ScraperClient) FetchMessages(ctx context.Context, channel string) ([]models.Message, error) {
	body, status, err := c.get(ctx, "/scrape/"+url.PathEscape(channel))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("scrape %s: HTTP status %d", channel, status)
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var raw []apiMessage
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse messages: %w", err)
		}
		msgs := make([]models.Message, len(raw))
		for i, m := range raw {
			msgs[i] = m.toMessage()
		}
		return msgs, nil
	}

	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse scrape response: %w", err)
	}
	if !strings.Contains(envelope.Message, "No activity") {
		c.logger.Warn("Non-array response from scrape endpoint",
			zap.String("channel", channel),
			zap.String("message", envelope.Message))
	}
	return []models.Message{}, nil
}

// CheckChannel reports whether a public channel exists and can be joined.
// Any failure reads as false.
func (c *ScraperClient) CheckChannel(ctx context.Context, name string) bool {
	body, status, err := c.get(ctx, "/check/"+url.PathEscape(strings.TrimPrefix(name, "@")))
	if err != nil || status != http.StatusOK {
		return false
	}
	var data struct {
		ValidAndJoinable bool `json:"valid_and_joinable"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return false
	}
	return data.ValidAndJoinable
}

// ChannelDetails describes a channel joined through an invite link.
type ChannelDetails struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

var (
	ErrInvalidInvite = errors.New("invalid invite link format")
	ErrInviteRevoked = errors.New("the invite link has expired or been revoked")
)

// InviteHash extracts the hash from a t.me/+hash or t.me/joinchat/hash link.
func InviteHash(link string) string {
	link = strings.TrimRight(strings.TrimSpace(link), "/")
	last := link[strings.LastIndex(link, "/")+1:]
	return strings.Replace(last, "+", "", 1)
}

// JoinPrivateChannel joins via an invite link and returns the channel.
func (c *ScraperClient) JoinPrivateChannel(ctx context.Context, inviteLink string) (*ChannelDetails, error) {
	hash := InviteHash(inviteLink)
	if hash == "" {
		return nil, ErrInvalidInvite
	}

	body, status, err := c.get(ctx, "/join/"+url.PathEscape(hash))
	if err != nil {
		return nil, err
	}

	var data struct {
		Status  string          `json:"status"`
		Detail  string          `json:"detail"`
		Details *ChannelDetails `json:"details"`
	}
	_ = json.Unmarshal(body, &data)

	if status < 200 || status >= 300 || data.Status != "success" {
		if data.Detail != "" {
			return nil, errors.New(data.Detail)
		}
		return nil, ErrInviteRevoked
	}
	if data.Details == nil {
		return &ChannelDetails{}, nil
	}
	return data.Details, nil
}

func (c *ScraperClient) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("telegram scraper request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
