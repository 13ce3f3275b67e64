package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gallery-tg-bot/internal/batch"
	"gallery-tg-bot/internal/config"
	"gallery-tg-bot/internal/docstore"
	"gallery-tg-bot/internal/gallery"
	"gallery-tg-bot/internal/registry"
	"gallery-tg-bot/internal/server"
	"gallery-tg-bot/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	var logLevel slog.Level
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if cfg.Logging.JSONFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Open the document store shared by the registry and the batch state
	docs, err := docstore.Open(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	// Chapter image storage
	chapters, err := gallery.NewStore(cfg.Storage.UploadsDir, logger)
	if err != nil {
		logger.Error("failed to open chapter store", "error", err)
		os.Exit(1)
	}

	reg := registry.New(docs, logger)
	batchStore := batch.New(docs, chapters, logger)

	// Outbound Telegram surface. Without a token or admin chat id the
	// process still serves the webhook and the API, but notifications
	// and photo downloads are disabled.
	var notifier telegram.Notifier
	var files telegram.FileFetcher
	if cfg.TelegramConfigured() {
		client, err := telegram.NewClient(cfg.Telegram, logger)
		if err != nil {
			logger.Error("failed to create telegram client", "error", err)
			os.Exit(1)
		}
		notifier, files = client, client
	} else {
		disabled := telegram.NewDisabled(logger)
		notifier, files = disabled, disabled
	}

	dispatcher := telegram.NewDispatcher(reg, batchStore, chapters, notifier, files, cfg.Telegram.AdminChatID, logger)

	srv := server.New(*cfg, reg, chapters, dispatcher, notifier, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("gallery bot started",
		"port", cfg.Server.Port,
		"admin_chat_id", cfg.Telegram.AdminChatID,
		"uploads_dir", cfg.Storage.UploadsDir,
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
