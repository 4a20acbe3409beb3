package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/devroom-sh/devroom/internal/api"
	"github.com/devroom-sh/devroom/internal/config"
	"github.com/devroom-sh/devroom/internal/genai"
	"github.com/devroom-sh/devroom/internal/session"
	"github.com/devroom-sh/devroom/internal/store"
	"github.com/devroom-sh/devroom/internal/token"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the relational store. PostgreSQL when DATABASE_URL is
	// set, SQLite otherwise.
	var (
		db  store.DataStore
		err error
	)
	if cfg.DatabaseURL != "" {
		db, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		db, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite database")
	}
	defer db.Close()

	// Initialize Redis store (token revocation + room history)
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Token manager. Without Redis, logout revocation degrades to
	// expiry-only.
	var revoker token.Revoker
	var history session.History
	if redisStore != nil {
		revoker = redisStore
		history = redisStore
	}
	tokens := token.NewManager(cfg.JWTSecret, cfg.TokenTTL, revoker)

	// AI generation client
	gen := genai.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, cfg.GenerateTimeout)
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set, AI prompts will report errors")
	}

	// Session layer
	hub := session.NewHub(logger)
	go hub.Run()

	// One synchronizer for both apply paths: AI answers over the
	// session and manual edits over HTTP share the per-project lock.
	sync := session.NewSynchronizer(db)

	svc := session.NewService(session.Options{
		Logger:          logger,
		Hub:             hub,
		Authenticator:   session.NewAuthenticator(tokens, db),
		Store:           db,
		History:         history,
		Generator:       gen,
		Synchronizer:    sync,
		GenerateTimeout: cfg.GenerateTimeout,
		WorkspaceDir:    cfg.WorkspaceDir,
		BuildTimeout:    cfg.BuildTimeout,
	})

	// Create router
	router := api.NewRouter(api.Deps{
		Logger:      logger,
		Store:       db,
		Redis:       redisStore,
		Tokens:      tokens,
		Generator:   gen,
		Session:     svc,
		Sync:        sync,
		FrontendURL: cfg.FrontendURL,
	})

	// Create server. No global write timeout: websocket sessions are
	// long-lived.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting devroom server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Close remaining sessions after the HTTP listener stops accepting
	hub.Shutdown()

	logger.Info().Msg("server stopped")
}
