package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestComplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama-3.3-70b-versatile", req.Model)
		require.Equal(t, float32(0.6), req.Temperature)
		require.Equal(t, []chatMessage{{Role: "system", Content: "sys"}, {Role: "user", Content: "usr"}}, req.Messages)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Quiet day."},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`))
	})

	text, err := c.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	require.Equal(t, "Quiet day.", text)
}

func TestCompleteRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(strings.Repeat("x", 2000)))
	})

	_, err := c.Complete(context.Background(), "s", "u")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.True(t, apiErr.RateLimited())
	require.Len(t, apiErr.Body, maxErrorBody)
}

func TestCompleteServerErrorIsNotRateLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Complete(context.Background(), "s", "u")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.False(t, apiErr.RateLimited())
	require.ErrorContains(t, err, "status 500")
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Complete(context.Background(), "s", "u")
	require.ErrorContains(t, err, "empty completion")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	require.Error(t, err)
}
