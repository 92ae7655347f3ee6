package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/anthropic"
	"github.com/akash-mondal/feed-alpha/internal/gemini"
	"github.com/akash-mondal/feed-alpha/internal/groq"
	"github.com/akash-mondal/feed-alpha/internal/metrics"
	"github.com/akash-mondal/feed-alpha/internal/openai"
	"github.com/akash-mondal/feed-alpha/internal/openrouter"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOpenAI     ProviderType = "openai"
	ProviderAnthropic  ProviderType = "anthropic"
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type        ProviderType  `yaml:"type"`
	APIKey      string        `yaml:"api_key"`
	ModelName   string        `yaml:"model_name"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`

	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider is a language model that turns a system/user prompt pair into text.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// RateLimitedProvider wraps a provider with a token bucket.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewRateLimitedProvider allows requestsPerMinute calls per minute, bursting up to the same number.
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 8
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	return p.provider.Complete(ctx, systemPrompt, userPrompt)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	return p.provider.GetModelInfo()
}

// NewProvider builds the concrete client for one config entry.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.APIKey,
			ModelName:   cfg.ModelName,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, logger)
	case ProviderGroq:
		return groq.NewClient(groq.Config{
			APIKey:      cfg.APIKey,
			ModelName:   cfg.ModelName,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
	case ProviderOpenRouter:
		return openrouter.NewClient(openrouter.Config{
			APIKey:      cfg.APIKey,
			ModelName:   cfg.ModelName,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
	case ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
			BaseURL:   cfg.BaseURL,
		}, logger)
	case ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
			MaxTokens: cfg.MaxTokens,
		}, logger)
	}
	return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
}

// MultiProviderClient manages multiple LLM providers. Each call makes a
// single attempt on the current provider; repeated failures move later
// calls to the next one.
type MultiProviderClient struct {
	providers   []Provider
	maxFailures int
	metrics     *metrics.Metrics
	logger      *zap.Logger

	mu       sync.RWMutex
	current  int
	failures []int // consecutive failures per provider
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // Max consecutive failures before switching provider
}

var ErrNoProviders = errors.New("no providers could be initialized")

// NewMultiProviderClient creates a new multi-provider client
func NewMultiProviderClient(cfg MultiProviderConfig, m *metrics.Metrics, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]Provider, 0, len(cfg.Providers))
	for i, providerCfg := range cfg.Providers {
		provider, err := NewProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		providers = append(providers, NewRateLimitedProvider(provider, providerCfg.RequestsPerMinute, logger))

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", providerCfg.RequestsPerMinute),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return NewMultiProviderFromProviders(providers, cfg.MaxFailures, m, logger), nil
}

// NewMultiProviderFromProviders wraps already constructed providers.
func NewMultiProviderFromProviders(providers []Provider, maxFailures int, m *metrics.Metrics, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers:    providers,
		logger:       logger,
		metrics:      m,
		failures:     make([]int, len(providers)),
		maxFailures:  maxFailures,
	}
}

func (c *MultiProviderClient) active() (Provider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.current], c.current
}

// switchFrom advances past index unless another caller already did.
func (c *MultiProviderClient) switchFrom(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != index || len(c.providers) == 1 {
		return
	}
	c.current = (c.current + 1) % len(c.providers)
	c.failures[c.current] = 0

	c.logger.Info("Switching summary provider",
		zap.String("from", providerName(c.providers[index])),
		zap.String("to", providerName(c.providers[c.current])))
}

// recordFailure reports whether the provider reached max failures.
func (c *MultiProviderClient) recordFailure(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures[index]++
	return c.failures[index] >= c.maxFailures
}

func (c *MultiProviderClient) recordSuccess(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[index] = 0
}

// Complete sends the prompt to the current provider once.
func (c *MultiProviderClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	provider, index := c.active()
	name := providerName(provider)

	text, err := provider.Complete(ctx, systemPrompt, userPrompt)
	if err == nil {
		c.recordSuccess(index)
		c.metrics.IncLLM(name, "ok")
		return text, nil
	}

	c.metrics.IncLLM(name, "error")
	exhausted := c.recordFailure(index)
	c.logger.Error("Summary provider failed",
		zap.String("provider", name),
		zap.Bool("exhausted", exhausted),
		zap.Error(err))

	if exhausted || isRateLimitError(err) {
		c.switchFrom(index)
	}
	return "", fmt.Errorf("%s: %w", name, err)
}

func providerName(p Provider) string {
	if name, ok := p.GetModelInfo()["provider"].(string); ok {
		return name
	}
	return "unknown"
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var rl interface{ RateLimited() bool }
	if errors.As(err, &rl) {
		return rl.RateLimited()
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetModelInfo describes the current provider.
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	provider, index := c.active()
	info := provider.GetModelInfo()

	c.mu.RLock()
	defer c.mu.RUnlock()
	info["provider_index"] = index
	info["total_providers"] = len(c.providers)
	info["failure_count"] = c.failures[index]
	return info
}
