// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Sentinel values left in place when the bot settings are not provided.
const (
	BotTokenRequired = "BOT_TOKEN_REQUIRED"
	ChatIDRequired   = "CHAT_ID_REQUIRED"
)

const (
	defaultTelegramAPI   = "https://api.telegram.org"
	defaultMaxUploadSize = "50MB"
)

// Config holds all runtime configuration for the service.
// It is built once at startup and never mutated afterwards.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// Telegram Bot API, used as the document store
	BotToken       string
	ChatID         string
	TelegramAPIURL string

	// PublicBaseURL overrides the request origin when building stream URLs,
	// e.g. "https://files.example.com" behind a proxy that rewrites Host.
	PublicBaseURL string

	MaxUploadBytes int64
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, reading from environment")
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BotToken:       getEnv("BOT_TOKEN", BotTokenRequired),
		ChatID:         getEnv("CHAT_ID", ChatIDRequired),
		TelegramAPIURL: strings.TrimRight(getEnv("TELEGRAM_API_URL", defaultTelegramAPI), "/"),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		MaxUploadBytes: parseSize(getEnv("MAX_UPLOAD_SIZE", defaultMaxUploadSize)),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// HasBotToken reports whether a real bot token was supplied.
func (c *Config) HasBotToken() bool {
	return c.BotToken != "" && c.BotToken != BotTokenRequired
}

// HasChatID reports whether a real destination chat was supplied.
func (c *Config) HasChatID() bool {
	return c.ChatID != "" && c.ChatID != ChatIDRequired
}

func parseSize(s string) int64 {
	n, err := humanize.ParseBytes(s)
	if err != nil || n == 0 {
		log.Warn().Err(err).Str("value", s).Msgf("invalid MAX_UPLOAD_SIZE, defaulting to %s", defaultMaxUploadSize)
		n, _ = humanize.ParseBytes(defaultMaxUploadSize)
	}
	return int64(n)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
