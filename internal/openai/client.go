package openai

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Client wraps the official OpenAI SDK.
type Client struct {
	client *openaisdk.Client
	model  openaisdk.ChatModel
	logger *zap.Logger
}

type Config struct {
	APIKey    string
	ModelName string // Default: gpt-4o-mini
	BaseURL   string // optional, for OpenAI-compatible gateways
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	model := openaisdk.ChatModelGPT4oMini
	if cfg.ModelName != "" {
		model = openaisdk.ChatModel(cfg.ModelName)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openaisdk.NewClient(opts...)

	logger.Info("OpenAI client initialized", zap.String("model", string(model)))

	return &Client{client: &client, model: model, logger: logger}, nil
}

func (c *Client) Close() error { return nil }

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(systemPrompt),
			openaisdk.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response from openai")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "openai",
		"model":    string(c.model),
	}
}
