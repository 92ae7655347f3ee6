package config

import (
	"fmt"
	"os"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/llm"
	"github.com/akash-mondal/feed-alpha/internal/telegram"
	"github.com/akash-mondal/feed-alpha/internal/tracing"
	"github.com/akash-mondal/feed-alpha/internal/twitter"

	"gopkg.in/yaml.v3"
)

// Group source modes.
const (
	TelegramScraper = "scraper"
	TelegramMTProto = "mtproto"
	TelegramPreview = "preview"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Logging struct {
		Development bool `yaml:"development"`
	} `yaml:"logging"`

	Tracing tracing.Config `yaml:"tracing"`

	Database struct {
		Type string `yaml:"type"` // "sqlite" or "postgres"
		URL  string `yaml:"url"`  // SQLite path or PostgreSQL URL
	} `yaml:"database"`

	// Redis is optional; without a URL an in-process store is used.
	Redis struct {
		URL    string `yaml:"url"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`

	Providers               []llm.ProviderConfig `yaml:"providers"`
	MaxFailuresBeforeSwitch int                  `yaml:"max_failures_before_switch"`

	Summaries struct {
		Window          time.Duration `yaml:"window"`
		ContextLimit    int           `yaml:"context_limit"`
		ProfileCacheTTL time.Duration `yaml:"profile_cache_ttl"`
		RefreshTTL      time.Duration `yaml:"refresh_ttl"`
	} `yaml:"summaries"`

	Twitter twitter.Config `yaml:"twitter"`

	Telegram struct {
		Mode    string `yaml:"mode"`
		Scraper struct {
			URL     string        `yaml:"url"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"scraper"`
		MTProto telegram.MTProtoConfig `yaml:"mtproto"`
		Preview telegram.PreviewConfig `yaml:"preview"`
	} `yaml:"telegram"`

	Bot struct {
		Enabled bool   `yaml:"enabled"`
		Token   string `yaml:"token"`
	} `yaml:"bot"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		TokenTTL       time.Duration `yaml:"token_ttl"`
		InitDataMaxAge time.Duration `yaml:"init_data_max_age"`
	} `yaml:"auth"`
}

// Path returns CONFIG_PATH or the default location.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yml"
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.expandEnv()
	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// expandEnv substitutes ${VAR} references in secrets and connection strings.
func (c *Config) expandEnv() {
	for i := range c.Providers {
		c.Providers[i].APIKey = os.ExpandEnv(c.Providers[i].APIKey)
	}
	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.Redis.URL = os.ExpandEnv(c.Redis.URL)
	c.Twitter.APIKey = os.ExpandEnv(c.Twitter.APIKey)
	c.Telegram.Scraper.URL = os.ExpandEnv(c.Telegram.Scraper.URL)
	c.Telegram.MTProto.APIHash = os.ExpandEnv(c.Telegram.MTProto.APIHash)
	c.Telegram.MTProto.Phone = os.ExpandEnv(c.Telegram.MTProto.Phone)
	c.Telegram.MTProto.SessionSecret = os.ExpandEnv(c.Telegram.MTProto.SessionSecret)
	c.Bot.Token = os.ExpandEnv(c.Bot.Token)
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.URL == "" {
		c.Database.URL = "./data/feed-alpha.db"
	}
	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}
	if c.Summaries.Window == 0 {
		c.Summaries.Window = 24 * time.Hour
	}
	if c.Summaries.ProfileCacheTTL == 0 {
		c.Summaries.ProfileCacheTTL = 10 * time.Minute
	}
	if c.Summaries.RefreshTTL == 0 {
		c.Summaries.RefreshTTL = 5 * time.Minute
	}
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = TelegramScraper
	}
	if c.Telegram.Scraper.Timeout == 0 {
		c.Telegram.Scraper.Timeout = 60 * time.Second
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.InitDataMaxAge == 0 {
		c.Auth.InitDataMaxAge = 24 * time.Hour
	}
}

func (c *Config) validate() error {
	switch c.Telegram.Mode {
	case TelegramScraper, TelegramMTProto, TelegramPreview:
	default:
		return fmt.Errorf("unknown telegram.mode %q", c.Telegram.Mode)
	}
	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return fmt.Errorf("unknown database.type %q", c.Database.Type)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Bot.Token == "" {
		return fmt.Errorf("bot.token is required to verify Mini App logins")
	}
	return nil
}
