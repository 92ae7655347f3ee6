// Package rules evaluates signal profiles: threshold rules over the merged
// messages of several group topics, followed by a short narrative.
package rules

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/content"
	"github.com/akash-mondal/feed-alpha/internal/llm"
	"github.com/akash-mondal/feed-alpha/internal/metrics"
	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/prompt"

	"go.uber.org/zap"
)

const (
	NoActivitySummary = "No recent activity across this profile's sources in the last 24 hours."
	FallbackSummary   = "Could not generate profile summary at this time."

	DefaultWindow       = 24 * time.Hour
	DefaultContextLimit = 50
)

type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Evaluator runs profile rules and asks the model for a narrative.
type Evaluator struct {
	llm          Completer
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
	window       time.Duration
	contextLimit int
}

type Option func(*Evaluator)

func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithContextLimit bounds how many messages are shown to the model.
func WithContextLimit(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.contextLimit = n
		}
	}
}

func New(completer Completer, m *metrics.Metrics, logger *zap.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		llm:          completer,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
		window:       DefaultWindow,
		contextLimit: DefaultContextLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sourced is a message tagged with the channel it came from.
type sourced struct {
	models.Message
	channel string
}

// merge flattens the retained messages of the given topics.
func merge(topics []*models.Topic) []sourced {
	var out []sourced
	for _, t := range topics {
		if t == nil {
			continue
		}
		for _, m := range t.RawMessages {
			out = append(out, sourced{Message: m, channel: t.GroupLabel()})
		}
	}
	return out
}

func senderKey(m models.Message) string {
	if m.Sender.ID != 0 {
		return strconv.FormatInt(m.Sender.ID, 10)
	}
	return strings.ToLower(m.Sender.Name)
}

// Findings evaluates rules in order. Threshold rules appear only when both
// thresholds are met; custom rules always appear as advisories.
func Findings(rules []models.Rule, msgs []models.Message) []models.Finding {
	var findings []models.Finding
	for _, r := range rules {
		if r.IsCustom() {
			findings = append(findings, models.Finding{Rule: r, Text: r.Value, Advisory: true})
			continue
		}

		needle := strings.ToLower(r.Value)
		mentions := 0
		senders := make(map[string]struct{})
		for _, m := range msgs {
			n := strings.Count(strings.ToLower(m.Text), needle)
			if n == 0 {
				continue
			}
			mentions += n
			senders[senderKey(m)] = struct{}{}
		}

		if mentions >= r.MentionThreshold && len(senders) >= r.GroupThreshold {
			findings = append(findings, models.Finding{
				Rule:     r,
				Text:     fmt.Sprintf("ALERT: \"%s\" (%s) was mentioned %d times across %d groups.", r.Value, r.Type, mentions, len(senders)),
				Mentions: mentions,
				Groups:   len(senders),
			})
		}
	}
	return findings
}

// Evaluate produces the narrative and findings for a profile over its
// member topics. It never returns an error; failures become FallbackSummary.
func (e *Evaluator) Evaluate(ctx context.Context, profile *models.Profile, topics []*models.Topic) (summary models.ProfileSummary) {
	now := e.now()
	if profile == nil {
		e.metrics.IncProfile("failed")
		return models.ProfileSummary{Narrative: FallbackSummary, GeneratedAt: now}
	}
	summary = models.ProfileSummary{ProfileID: profile.ID, GeneratedAt: now}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Profile evaluation panicked", zap.String("profile_id", profile.ID), zap.Any("panic", r))
			summary.Narrative = FallbackSummary
			e.metrics.IncProfile("failed")
		}
	}()

	recent := content.Select(merge(topics), e.window, now, profile.TrackedSenders)
	if len(recent) == 0 {
		summary.Narrative = NoActivitySummary
		e.metrics.IncProfile("empty")
		return summary
	}

	plain := make([]models.Message, len(recent))
	for i, m := range recent {
		plain[i] = m.Message
	}
	summary.Findings = Findings(profile.Rules, plain)

	var alerts, advisories []string
	for _, f := range summary.Findings {
		if f.Advisory {
			advisories = append(advisories, f.Text)
		} else {
			alerts = append(alerts, f.Text)
		}
	}

	top := topByViews(recent, e.contextLimit)
	lines := make([]string, len(top))
	for i, m := range top {
		lines[i] = prompt.ProfileLine(m.Message, m.channel, now)
	}

	p := prompt.BuildProfile(profile.Name, alerts, advisories, lines)
	raw, err := e.llm.Complete(ctx, p.System, p.User)
	if err != nil {
		e.logger.Warn("Profile narrative failed", zap.String("profile_id", profile.ID), zap.Error(err))
		summary.Narrative = FallbackSummary
		e.metrics.IncProfile("failed")
		return summary
	}

	summary.Narrative = llm.Sanitize(raw)
	if summary.Narrative == "" {
		summary.Narrative = FallbackSummary
		e.metrics.IncProfile("failed")
		return summary
	}
	e.metrics.IncProfile("ok")
	return summary
}

// EvaluateProfile returns only the narrative.
func (e *Evaluator) EvaluateProfile(ctx context.Context, profile *models.Profile, topics []*models.Topic) string {
	return e.Evaluate(ctx, profile, topics).Narrative
}

func topByViews(msgs []sourced, limit int) []sourced {
	sorted := make([]sourced, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ViewCount() > sorted[j].ViewCount()
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
