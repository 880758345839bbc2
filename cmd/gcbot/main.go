package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg-gcbot/internal/bot"
	"tg-gcbot/internal/collector"
	"tg-gcbot/internal/config"
	"tg-gcbot/internal/crash"
	"tg-gcbot/internal/handler"
	"tg-gcbot/internal/logger"
	"tg-gcbot/internal/storage"
)

func main() {
	// Define command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging first
	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	// Initialize database; the collector cannot run without it
	if err := storage.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	settingsRepo := storage.NewSettingsRepository(storage.DB)
	if err := settingsRepo.MigrateTable(); err != nil {
		log.Fatalf("Failed to migrate Settings table: %v", err)
	}

	messageRepo := storage.NewMessageRepository(storage.DB)
	if err := messageRepo.MigrateTable(); err != nil {
		log.Fatalf("Failed to migrate MessageRecord table: %v", err)
	}

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize bot with configuration
	botService, server, err := bot.Initialize(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize bot: %v", err)
	}

	// Initialize handler with configuration
	handler.Initialize(cfg)

	// Start the garbage collector sweep loop
	gc := collector.New(
		bot.NewClient(botService.Bot),
		settingsRepo,
		messageRepo,
		cfg.Collector.SweepInterval,
		cfg.Collector.MaxHours,
	)
	crash.SafeGoroutine("collector", func() {
		gc.Run(ctx)
	})

	// Start HTTP server when running in webhook mode
	if server != nil {
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("HTTP server error: %v", err)
			}
		}()

		// Give server time to start
		time.Sleep(500 * time.Millisecond)
		log.Println("HTTP server is ready, starting bot handler...")
	}

	// Setup and start message handlers
	handler.SetupMessageHandlers(botService.Handler, botService.Bot, gc)
	crash.SafeGoroutine("bot-handler", botService.Start)

	// Create a channel for receiving OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for signal
	sig := <-sigChan
	log.Printf("Received signal: %v, shutting down...", sig)

	botService.Stop()
	cancel()

	// Gracefully shutdown server
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	log.Println("Server gracefully stopped")
}
