package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("FA_GROQ_KEY", "gsk-123")
	t.Setenv("FA_JWT", "s3cret")
	t.Setenv("FA_BOT", "1:abc")

	cfg, err := LoadConfig(writeConfig(t, `
providers:
  - type: groq
    api_key: ${FA_GROQ_KEY}
    model_name: llama-3.3-70b-versatile
    requests_per_minute: 30
bot:
  token: ${FA_BOT}
auth:
  jwt_secret: ${FA_JWT}
summaries:
  profile_cache_ttl: 90s
`))
	require.NoError(t, err)

	assert.Equal(t, "gsk-123", cfg.Providers[0].APIKey)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "1:abc", cfg.Bot.Token)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, TelegramScraper, cfg.Telegram.Mode)
	assert.Equal(t, 90*time.Second, cfg.Summaries.ProfileCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Summaries.Window)
	assert.Equal(t, 3, cfg.MaxFailuresBeforeSwitch)
}

func TestLoadConfigRejects(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "telegram:\n  mode: carrier-pigeon\nauth:\n  jwt_secret: x\nbot:\n  token: y\n"))
	assert.ErrorContains(t, err, "carrier-pigeon")

	_, err = LoadConfig(writeConfig(t, "bot:\n  token: y\n"))
	assert.ErrorContains(t, err, "jwt_secret")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "configs/config.yml", Path())
	t.Setenv("CONFIG_PATH", "/etc/fa.yml")
	assert.Equal(t, "/etc/fa.yml", Path())
}
