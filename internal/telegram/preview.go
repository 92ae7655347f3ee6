package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// PreviewScraper reads public channels from their t.me/s web preview with
// a headless browser. It needs no Telegram account.
type PreviewScraper struct {
	ctx     context.Context
	cancel  context.CancelFunc
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

type PreviewConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Headless bool          `yaml:"headless"`
	Timeout  time.Duration `yaml:"timeout"`
}

func NewPreviewScraper(cfg PreviewConfig, logger *zap.Logger) *PreviewScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://t.me/s/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	return &PreviewScraper{
		ctx: ctx,
		cancel: func() {
			cancelCtx()
			cancelAlloc()
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/",
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Close shuts the browser down.
func (s *PreviewScraper) Close() {
	s.cancel()
}

type previewMessage struct {
	Post     string `json:"post"`
	Text     string `json:"text"`
	Date     string `json:"date"`
	Views    string `json:"views"`
	Author   string `json:"author"`
	AuthorID string `json:"authorId"`
}

const extractMessagesJS = `JSON.stringify(Array.from(document.querySelectorAll('.tgme_widget_message')).map(el => {
	const text = el.querySelector('.tgme_widget_message_text');
	const time = el.querySelector('.tgme_widget_message_date time');
	const views = el.querySelector('.tgme_widget_message_views');
	const author = el.querySelector('.tgme_widget_message_owner_name, .tgme_widget_message_from_author');
	const link = el.querySelector('.tgme_widget_message_from_author');
	return {
		post: el.getAttribute('data-post') || '',
		text: text ? text.innerText : '',
		date: time ? time.getAttribute('datetime') : '',
		views: views ? views.innerText : '',
		author: author ? author.innerText : '',
		authorId: link && link.getAttribute('href') ? link.getAttribute('href') : ''
	};
}))`

// FetchMessages loads the channel's preview page and returns its messages.
// Only public channels with a username have a preview.
func (s *PreviewScraper) FetchMessages(ctx context.Context, channel string) ([]models.Message, error) {
	name := strings.TrimPrefix(channel, "@")
	if _, numeric := channelID(name); numeric {
		return nil, fmt.Errorf("web preview needs a channel username, got %q", channel)
	}

	tabCtx, cancelTab := chromedp.NewContext(s.ctx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var raw string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(s.baseURL+url.PathEscape(name)),
		chromedp.WaitReady(`body`),
		chromedp.Evaluate(extractMessagesJS, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load preview for %s: %w", name, err)
	}

	msgs, err := parsePreview(name, raw)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Scraped channel preview", zap.String("channel", name), zap.Int("messages", len(msgs)))
	return msgs, nil
}

func parsePreview(channel, raw string) ([]models.Message, error) {
	var items []previewMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to parse preview messages: %w", err)
	}

	channelSender := models.Sender{
		ID:       nameID(channel),
		Type:     models.SenderChannel,
		Name:     channel,
		Username: &channel,
	}

	out := make([]models.Message, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Text) == "" {
			continue
		}
		msg := models.Message{
			MessageID: postID(it.Post),
			Text:      it.Text,
			Date:      parseDate(it.Date),
			Sender:    channelSender,
		}
		if it.Author != "" {
			msg.Sender.Name = it.Author
		}
		if it.AuthorID != "" {
			handle := it.AuthorID[strings.LastIndex(it.AuthorID, "/")+1:]
			msg.Sender = models.Sender{ID: nameID(handle), Type: models.SenderUser, Name: it.Author, Username: &handle}
		}
		if it.Views != "" {
			views := parseViews(it.Views)
			msg.Views = &views
		}
		out = append(out, msg)
	}
	return out, nil
}

// postID reads the numeric part of a "channel/123" data-post attribute.
func postID(post string) int64 {
	id, _ := strconv.ParseInt(post[strings.LastIndex(post, "/")+1:], 10, 64)
	return id
}

// nameID derives a stable id for senders the preview shows only by name.
func nameID(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(name)))
	return int64(h.Sum64() >> 1)
}

// parseViews understands the abbreviated counters the preview renders,
// such as "987", "1.2K" and "3M".
func parseViews(s string) int {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(v*mult + 0.5)
}
