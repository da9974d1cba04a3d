/*
Package main is the entry point for the CallBridge server.

It is responsible for loading configuration, initializing the global logging
system, connecting the room store and the media-provider clients, starting
the chat relay Hub, and gracefully handling operating system interrupt
signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callbridge/internal/app/chat"
	"callbridge/internal/app/rtc"
	"callbridge/internal/app/storage"
	"callbridge/internal/app/store"
	"callbridge/internal/configs"
	"callbridge/internal/handler"
	"callbridge/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("livekit_host", cfg.LiveKitHost).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect the room store and run pending migrations.
	roomStore, err := store.NewPostgresStore(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize room store")
	}
	defer roomStore.Close()

	rtcConfig := rtc.Config{
		Host:      cfg.LiveKitHost,
		APIKey:    cfg.LiveKitAPIKey,
		APISecret: cfg.LiveKitAPISecret,
	}

	issuer, err := rtc.NewIssuer(rtcConfig, roomStore)
	if err != nil {
		logx.Fatal(err, "Failed to initialize media token issuer")
	}

	roomService, err := rtc.NewRoomService(rtcConfig)
	if err != nil {
		logx.Fatal(err, "Failed to initialize media room service")
	}

	storageService, err := storage.NewStorageService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize storage service")
	}

	// Start the chat relay hub
	hub := chat.NewHub()

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Hub:            hub,
		Config:         cfg,
		Store:          roomStore,
		Issuer:         issuer,
		RoomService:    roomService,
		StorageService: storageService,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("CallBridge Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
