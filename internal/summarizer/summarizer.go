// Package summarizer turns a topic's raw posts and messages into one
// summary per channel. The two channels never affect each other: an empty
// channel yields a placeholder, a failed model call yields a fixed sentence.
package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/content"
	"github.com/akash-mondal/feed-alpha/internal/llm"
	"github.com/akash-mondal/feed-alpha/internal/metrics"
	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/prompt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FailureSummary replaces a channel summary when the model call fails.
const FailureSummary = "Unable to generate summary at this time."

const DefaultWindow = 24 * time.Hour

// Completer is the language model as seen by the engine.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Request carries one topic's raw records and its summary settings.
type Request struct {
	Posts          []models.Post
	Messages       []models.Message
	SocialLabel    string
	GroupLabel     string
	Length         models.SummaryLength
	CustomWords    int
	TrackedSenders []string
}

// Result holds a summary for each channel that had any records.
type Result struct {
	SocialSummary *string
	GroupSummary  *string
	Debug         Debug
}

// Debug keeps what was sent and received per channel.
type Debug struct {
	Social *ChannelDebug `json:"social,omitempty"`
	Group  *ChannelDebug `json:"group,omitempty"`
}

type ChannelDebug struct {
	Prompt   prompt.Prompt `json:"prompt"`
	Records  int           `json:"records"`
	Selected int           `json:"selected"`
	Raw      string        `json:"raw,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Engine runs the per-channel pipeline.
type Engine struct {
	llm     Completer
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	window  time.Duration
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWindow sets the recency window applied to both channels.
func WithWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

func New(completer Completer, m *metrics.Metrics, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		llm:     completer,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		window:  DefaultWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SocialPlaceholder is the text used when no posts survive filtering.
func SocialPlaceholder(handle string, tracked bool) string {
	if tracked {
		return fmt.Sprintf("The tracked users in @%s have not posted in the last 24 hours.", handle)
	}
	return fmt.Sprintf("No new posts from @%s in the last 24 hours.", handle)
}

// GroupPlaceholder is the text used when no messages survive filtering.
func GroupPlaceholder(channel string, tracked bool) string {
	if tracked {
		return fmt.Sprintf("The tracked members in the %q channel have not sent messages recently.", channel)
	}
	return fmt.Sprintf("No new activity in the %q channel recently.", channel)
}

// SummarizeChannels summarizes both channels concurrently. It does not
// return an error: model failures and panics are contained per channel.
func (e *Engine) SummarizeChannels(ctx context.Context, req Request) Result {
	now := e.now()
	wordRange := prompt.WordCountRange(req.Length, req.CustomWords)
	tracked := len(req.TrackedSenders) > 0

	var res Result
	var g errgroup.Group

	if len(req.Posts) > 0 && req.SocialLabel != "" {
		g.Go(func() error {
			selected := content.Select(req.Posts, e.window, now, req.TrackedSenders)
			dbg := &ChannelDebug{Records: len(req.Posts), Selected: len(selected)}
			res.Debug.Social = dbg

			var summary string
			if len(selected) == 0 {
				summary = SocialPlaceholder(req.SocialLabel, tracked)
				e.metrics.IncSummary("social", "placeholder")
			} else {
				dbg.Prompt = prompt.Build(prompt.Social, req.SocialLabel, prompt.PostLines(selected, now), wordRange, req.TrackedSenders)
				summary = e.complete(ctx, "social", dbg)
			}
			res.SocialSummary = &summary
			return nil
		})
	}

	if len(req.Messages) > 0 && req.GroupLabel != "" {
		g.Go(func() error {
			selected := content.Select(req.Messages, e.window, now, req.TrackedSenders)
			dbg := &ChannelDebug{Records: len(req.Messages), Selected: len(selected)}
			res.Debug.Group = dbg

			var summary string
			if len(selected) == 0 {
				summary = GroupPlaceholder(req.GroupLabel, tracked)
				e.metrics.IncSummary("group", "placeholder")
			} else {
				dbg.Prompt = prompt.Build(prompt.Group, req.GroupLabel, prompt.MessageLines(selected, now), wordRange, req.TrackedSenders)
				summary = e.complete(ctx, "group", dbg)
			}
			res.GroupSummary = &summary
			return nil
		})
	}

	_ = g.Wait()
	return res
}

// complete calls the model once for a channel and never panics.
func (e *Engine) complete(ctx context.Context, channel string, dbg *ChannelDebug) (summary string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Summarization panicked", zap.String("channel", channel), zap.Any("panic", r))
			dbg.Error = fmt.Sprint(r)
			summary = FailureSummary
		}
		if summary == FailureSummary {
			e.metrics.IncSummary(channel, "failed")
		} else {
			e.metrics.IncSummary(channel, "ai")
		}
	}()

	raw, err := e.llm.Complete(ctx, dbg.Prompt.System, dbg.Prompt.User)
	if err != nil {
		e.logger.Warn("Summarization failed", zap.String("channel", channel), zap.Error(err))
		dbg.Error = err.Error()
		return FailureSummary
	}
	dbg.Raw = raw

	clean := llm.Sanitize(raw)
	if clean == "" {
		dbg.Error = "empty summary after sanitizing"
		return FailureSummary
	}
	return clean
}
