// Package twitter fetches recent posts from a twitterapi.io compatible API.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Client is the social source adapter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitterapi.io"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Timeline is a combined fetch result.
type Timeline struct {
	Tweets      []models.Post `json:"tweets"`
	HasNextPage bool          `json:"has_next_page"`
	NextCursor  string        `json:"next_cursor"`
}

type apiTweet struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Text          string `json:"text"`
	Source        string `json:"source"`
	RetweetCount  int    `json:"retweetCount"`
	ReplyCount    int    `json:"replyCount"`
	LikeCount     int    `json:"likeCount"`
	QuoteCount    int    `json:"quoteCount"`
	ViewCount     int    `json:"viewCount"`
	BookmarkCount int    `json:"bookmarkCount"`
	CreatedAt     string `json:"createdAt"`
	Lang          string `json:"lang"`
	IsReply       bool   `json:"isReply"`
	Author        struct {
		UserName       string `json:"userName"`
		Name           string `json:"name"`
		ProfilePicture string `json:"profilePicture"`
		IsBlueVerified bool   `json:"isBlueVerified"`
	} `json:"author"`
}

type apiResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
	Data   *struct {
		Tweets      []apiTweet `json:"tweets"`
		HasNextPage bool       `json:"has_next_page"`
		NextCursor  string     `json:"next_cursor"`
	} `json:"data"`
}

// FetchPosts returns the user's timeline, originals and replies combined.
func (c *Client) FetchPosts(ctx context.Context, handle string) ([]models.Post, error) {
	tl, err := c.GetUserTweets(ctx, handle)
	if err != nil {
		return nil, err
	}
	return tl.Tweets, nil
}

// GetUserTweets fetches with and without replies concurrently and appends
// the reply-inclusive batch to the main one. Overlapping posts are kept.
func (c *Client) GetUserTweets(ctx context.Context, handle string) (*Timeline, error) {
	var main, replies *Timeline

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		main, err = c.fetchTweets(gctx, handle, false)
		return err
	})
	g.Go(func() error {
		var err error
		replies, err = c.fetchTweets(gctx, handle, true)
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.Error("Failed to fetch tweet timeline", zap.String("handle", handle), zap.Error(err))
		return nil, err
	}

	combined := make([]models.Post, 0, len(main.Tweets)+len(replies.Tweets))
	combined = append(combined, main.Tweets...)
	combined = append(combined, replies.Tweets...)

	return &Timeline{
		Tweets:      combined,
		HasNextPage: main.HasNextPage || replies.HasNextPage,
		NextCursor:  main.NextCursor,
	}, nil
}

func (c *Client) fetchTweets(ctx context.Context, handle string, includeReplies bool) (*Timeline, error) {
	q := url.Values{}
	q.Set("userName", handle)
	q.Set("includeReplies", strconv.FormatBool(includeReplies))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/twitter/user/last_tweets?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tweets: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error fetching tweets: status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse tweets: %w", err)
	}

	tl := &Timeline{}
	if parsed.Data == nil {
		return tl, nil
	}
	tl.HasNextPage = parsed.Data.HasNextPage
	tl.NextCursor = parsed.Data.NextCursor
	tl.Tweets = make([]models.Post, 0, len(parsed.Data.Tweets))
	for _, t := range parsed.Data.Tweets {
		tl.Tweets = append(tl.Tweets, t.toPost())
	}
	return tl, nil
}

func (t apiTweet) toPost() models.Post {
	return models.Post{
		ID:     t.ID,
		URL:    t.URL,
		Text:   t.Text,
		Source: t.Source,
		Author: models.PostAuthor{
			UserName:       t.Author.UserName,
			Name:           t.Author.Name,
			ProfilePicture: t.Author.ProfilePicture,
			IsBlueVerified: t.Author.IsBlueVerified,
		},
		LikeCount:     t.LikeCount,
		RetweetCount:  t.RetweetCount,
		ReplyCount:    t.ReplyCount,
		QuoteCount:    t.QuoteCount,
		ViewCount:     t.ViewCount,
		BookmarkCount: t.BookmarkCount,
		CreatedAt:     parseTime(t.CreatedAt),
		Lang:          t.Lang,
		IsReply:       t.IsReply,
	}
}

// parseTime accepts the classic Twitter layout and RFC 3339. Unparseable
// values become the zero time, which no recency window admits.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RubyDate, time.RFC3339, time.RFC3339Nano} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
