package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"sms-hub/internal/checkpoint"
	"sms-hub/internal/config"
	"sms-hub/internal/credential"
	"sms-hub/internal/handlers"
	"sms-hub/internal/services/kavenegar"
	"sms-hub/internal/services/processor"
	"sms-hub/internal/services/telegram"
	"sms-hub/internal/trigger"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer func(logger *zap.Logger) {
		_ = logger.Sync() // Ignore sync errors for stdout/stderr
	}(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	credentials, err := credential.New(cfg)
	if err != nil {
		logger.Fatal("Failed to open credential store", zap.Error(err))
	}

	store, err := checkpoint.New(checkpoint.Options{
		Driver:      cfg.Checkpoint.Driver,
		Path:        cfg.Checkpoint.Path,
		RedisAddr:   cfg.Checkpoint.RedisAddr,
		RedisPrefix: cfg.Checkpoint.RedisPrefix,
	})
	if err != nil {
		logger.Fatal("Failed to open checkpoint store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close checkpoint store", zap.Error(err))
		}
	}()

	window := cfg.Checkpoint.Window
	if cfg.Checkpoint.Driver == "none" {
		window = 0
	}

	// Initialize services
	gateway := kavenegar.NewClient(cfg.Kavenegar, credentials, logger)

	var sender processor.MessageSender
	if cfg.Telegram.BotToken != "" {
		telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, logger)
		if err != nil {
			logger.Fatal("Failed to create Telegram client", zap.Error(err))
		}
		sender = telegramClient
	}

	processorManager := processor.NewProcessorManager(cfg.Triggers, sender, nil, logger)

	scheduler := trigger.NewScheduler(processorManager.HandleBatch, logger)
	for _, t := range cfg.Triggers {
		engine := trigger.NewEngine(t.PollConfiguration(), gateway, window, logger)
		scheduler.Register(trigger.NewInstance(engine, store, logger))
	}

	// Start SMS monitoring
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)

	// Setup HTTP server
	router := mux.NewRouter()
	handlers.NewHandler(gateway, scheduler, processorManager.HandleBatch, logger).Register(router)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Starting server", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	cancel()
	scheduler.Wait()

	logger.Info("Server exited")
}
