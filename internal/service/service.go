package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/summarizer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/akash-mondal/feed-alpha/internal/service")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan marks the span failed when err is set and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var (
	ErrNotFound          = errors.New("not found")
	ErrRefreshInProgress = errors.New("a refresh of this topic is already running")
	ErrInvalidTopic      = errors.New("invalid topic")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrUnknownSocialUser = errors.New("unknown X user")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceFailed      = errors.New("source request failed")
)

type unknownUserError struct{ handle string }

func (e unknownUserError) Error() string { return fmt.Sprintf("Unable to find X user %q.", e.handle) }
func (e unknownUserError) Unwrap() error { return ErrUnknownSocialUser }

// PostFetcher is the social source adapter.
type PostFetcher interface {
	FetchPosts(ctx context.Context, handle string) ([]models.Post, error)
}

// MessageFetcher is the group source adapter.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, channel string) ([]models.Message, error)
}

// Summarizer is implemented by *summarizer.Engine.
type Summarizer interface {
	SummarizeChannels(ctx context.Context, req summarizer.Request) summarizer.Result
}

// ProfileEvaluator is implemented by *rules.Evaluator.
type ProfileEvaluator interface {
	Evaluate(ctx context.Context, profile *models.Profile, topics []*models.Topic) models.ProfileSummary
}
