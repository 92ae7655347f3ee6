package anthropic

import (
	"context"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Client wraps the Anthropic Messages API.
type Client struct {
	client    *anthropicsdk.Client
	model     anthropicsdk.Model
	maxTokens int64
	logger    *zap.Logger
}

type Config struct {
	APIKey    string
	ModelName string // Default: claude haiku 4.5
	MaxTokens int
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	model := anthropicsdk.ModelClaudeHaiku4_5
	if cfg.ModelName != "" {
		model = anthropicsdk.Model(cfg.ModelName)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(cfg.APIKey))

	logger.Info("Anthropic client initialized", zap.String("model", string(model)))

	return &Client{
		client:    &client,
		model:     model,
		maxTokens: int64(cfg.MaxTokens),
		logger:    logger,
	}, nil
}

func (c *Client) Close() error { return nil }

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropicsdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		sb.WriteString(block.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return sb.String(), nil
}

func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "anthropic",
		"model":    string(c.model),
	}
}
