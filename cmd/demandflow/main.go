// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the DemandFlow API server.
// It loads configuration, connects to services, sets up routing, and
// starts the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"demandflow/internal/ai"
	"demandflow/internal/auth"
	"demandflow/internal/cache"
	"demandflow/internal/config"
	"demandflow/internal/database"
	"demandflow/internal/handlers"
	"demandflow/internal/imaging"
	"demandflow/internal/metrics"
	"demandflow/internal/router"
	"demandflow/internal/search"
	"demandflow/internal/storage"
	"demandflow/internal/store"
	"demandflow/internal/usage"
)

func main() {
	// Structured logger — outputs JSON in production, text in development.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (refresh tokens + approval page cache).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// libvips for media thumbnails.
	imaging.Startup(0)
	defer imaging.Shutdown()

	// Prometheus metrics.
	metrics.Init()

	// Initialize data stores.
	userStore := store.NewUserStore(db)
	clientStore := store.NewClientStore(db)
	demandStore := store.NewDemandStore(db)
	contractStore := store.NewContractStore(db)
	transactionStore := store.NewTransactionStore(db)
	conversationStore := store.NewConversationStore(db)
	mediaStore := store.NewMediaStore(db)
	generationStore := store.NewGenerationStore(db)
	usageStore := store.NewUsageStore(db)

	// Auth: HS256 access tokens + refresh tokens in Valkey.
	tokens := auth.NewTokens(cfg.AuthSecret)
	refreshStore := auth.NewRefreshStore(valkeyClient)

	// Approval page cache.
	approvalCache := cache.NewApprovalCache(valkeyClient, cache.DefaultApprovalTTL)

	// Connect to S3-compatible object storage (optional — app works without it).
	var storageClient *storage.Client
	if cfg.S3Endpoint != "" && cfg.S3AccessKey != "" {
		storageClient, err = storage.New(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3BucketPublic, cfg.S3BucketPrivate, cfg.S3PublicURL,
		)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		if storageClient != nil {
			slog.Info("s3 storage connected",
				"endpoint", cfg.S3Endpoint,
				"public_bucket", cfg.S3BucketPublic,
				"private_bucket", cfg.S3BucketPrivate,
			)
		}
	} else {
		slog.Warn("s3 storage not configured — media uploads and studio disabled")
	}

	// Meilisearch (optional — SQL fallback covers search when absent).
	var meiliClient *search.Meili
	if cfg.MeiliURL != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, db)
	if err := searchService.ReindexAll(context.Background()); err != nil {
		slog.Warn("initial search reindex failed", "error", err)
	}

	// Initialize the AI provider registry with all configured providers.
	aiRegistry := ai.NewRegistry(cfg.AIProvider, map[string]ai.ProviderConfig{
		"gemini":     {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, ModelImage: cfg.GeminiModelImage, BaseURL: cfg.GeminiBaseURL},
		"openrouter": {APIKey: cfg.OpenRouterKey, Model: cfg.OpenRouterModel, BaseURL: cfg.OpenRouterBaseURL},
		"openai":     {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL, AssistantID: cfg.OpenAIAssistantID},
		"freepik":    {APIKey: cfg.FreepikKey, BaseURL: cfg.FreepikBaseURL},
		"elevenlabs": {APIKey: cfg.ElevenLabsKey, Model: cfg.ElevenLabsModel, BaseURL: cfg.ElevenLabsBaseURL, VoiceID: cfg.ElevenLabsVoiceID},
	})
	aiRegistry.SetRecorder(usage.NewRecorder(usageStore))

	slog.Info("ai providers initialized",
		"active", aiRegistry.ActiveName(),
		"chat", aiRegistry.ChatProviders(),
		"image", aiRegistry.ImageProviders(),
		"speech", aiRegistry.SpeechProviders(),
	)

	// Create the API handler group with its dependencies.
	api := handlers.NewAPI(handlers.Deps{
		Users:         userStore,
		Clients:       clientStore,
		Demands:       demandStore,
		Contracts:     contractStore,
		Transactions:  transactionStore,
		Conversations: conversationStore,
		Media:         mediaStore,
		Generations:   generationStore,
		Usage:         usageStore,
		Tokens:        tokens,
		Refresh:       refreshStore,
		ApprovalCache: approvalCache,
		Storage:       storageClient,
		Registry:      aiRegistry,
		Search:        searchService,
	})

	// Set up the Chi router with all middleware and routes.
	r := router.New(api, tokens, cfg.CORSOrigin)

	// Create the HTTP server with sensible timeouts.
	// WriteTimeout must accommodate AI endpoints that wait on LLM and
	// image generation responses (image tasks can poll for minutes).
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
