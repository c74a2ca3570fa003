//	@title			File Relay API
//	@version		1.0
//	@description	Stores uploads in a Telegram chat and streams them back for inline display.
//
//	@host		localhost:8080
//	@BasePath	/

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/radif/filerelay/internal/config"
	"github.com/radif/filerelay/internal/relay"
	"github.com/radif/filerelay/internal/server"
	"github.com/radif/filerelay/internal/storage"

	_ "github.com/radif/filerelay/docs/swagger"
)

func main() {
	cfg := config.Load()
	logger := setupLogging(cfg)

	if !cfg.HasBotToken() || !cfg.HasChatID() {
		logger.Warn().Msg("BOT_TOKEN or CHAT_ID not set; uploads will be refused")
	}

	// Wire dependencies: storage → service → handler
	store := storage.NewTelegramStorage(cfg.TelegramAPIURL, cfg.BotToken, cfg.ChatID, &http.Client{})
	relaySvc := relay.NewService(cfg, store)
	relayHandler := relay.NewHandler(relaySvc, cfg)

	// No read or write timeout: uploads and streams may run for as long as
	// the file takes to move.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(relayHandler, logger),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.AppEnv).
			Str("max_upload", humanize.Bytes(uint64(cfg.MaxUploadBytes))).
			Msg("server listening")
		logger.Info().Msgf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("server stopped")
}

// setupLogging configures the global zerolog logger: JSON in production,
// console output otherwise.
func setupLogging(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "filerelay").Logger()
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}
