package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client calls the Groq OpenAI-compatible chat endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	modelName   string
	temperature float32
	httpClient  *http.Client
	logger      *zap.Logger
}

// Config for Groq client
type Config struct {
	APIKey      string
	ModelName   string // Default: "llama-3.3-70b-versatile"
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// APIError is a non-200 reply from Groq.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("groq: status %d: %s", e.Status, e.Body)
}

// RateLimited lets the provider switcher move on without counting failures.
func (e *APIError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "llama-3.3-70b-versatile"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.6
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	logger.Info("Groq provider ready", zap.String("model", cfg.ModelName), zap.Duration("timeout", cfg.Timeout))

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}, nil
}

func (c *Client) Close() error {
	return nil
}

// Complete sends one chat completion request.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("groq: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("groq: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode, Body: string(body)}
		c.logger.Warn("Groq request rejected", zap.Int("status", apiErr.Status), zap.String("body", apiErr.Body))
		return "", apiErr
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("groq: decode response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("groq: empty completion")
	}

	c.logger.Debug("Groq completion",
		zap.String("model", c.modelName),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.String("finish_reason", out.Choices[0].FinishReason))
	return out.Choices[0].Message.Content, nil
}

func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "groq",
		"model":    c.modelName,
		"base_url": c.baseURL,
	}
}
