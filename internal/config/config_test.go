package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "BOT_TOKEN", "CHAT_ID", "TELEGRAM_API_URL", "PUBLIC_BASE_URL", "MAX_UPLOAD_SIZE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BotTokenRequired, cfg.BotToken)
	assert.Equal(t, ChatIDRequired, cfg.ChatID)
	assert.Equal(t, "https://api.telegram.org", cfg.TelegramAPIURL)
	assert.Equal(t, int64(50_000_000), cfg.MaxUploadBytes)
	assert.False(t, cfg.HasBotToken())
	assert.False(t, cfg.HasChatID())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHAT_ID", "-1001")
	t.Setenv("TELEGRAM_API_URL", "http://localhost:8081/")
	t.Setenv("PUBLIC_BASE_URL", "https://files.example.com/")
	t.Setenv("MAX_UPLOAD_SIZE", "2MiB")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.True(t, cfg.HasBotToken())
	assert.True(t, cfg.HasChatID())
	assert.Equal(t, "http://localhost:8081", cfg.TelegramAPIURL)
	assert.Equal(t, "https://files.example.com", cfg.PublicBaseURL)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
	assert.True(t, cfg.IsProduction())
}

func TestLoadInvalidUploadSize(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE", "lots")

	cfg := Load()

	assert.Equal(t, int64(50_000_000), cfg.MaxUploadBytes)
}
