package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/edudesk/campus-chat/internal/auth"
	"github.com/edudesk/campus-chat/internal/config"
	"github.com/edudesk/campus-chat/internal/data"
	"github.com/edudesk/campus-chat/internal/db"
	"github.com/edudesk/campus-chat/internal/middleware"
)

func main() {
	cfg := config.Load()

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

	if cfg.MongoURI == "" {
		logger.Fatal().Msg("MONGODB_URI must be set")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET must be set")
	}

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("index creation failed")
	}
	logger.Info().Msg("connected to MongoDB")

	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	convsStore := data.NewConversationsStore(dbClient.ConversationsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())
	attsStore := data.NewAttachmentsStore(dbClient.AttachmentsCollection())

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)

	// Small burst to allow a couple of quick retries on register/login.
	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiter.Stop()

	hub := NewConnectionHub()
	srv := newServer(usersStore, convsStore, msgsStore, attsStore, jwtMgr, hub, logger, cfg.UploadDir)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv.routes(limiter),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting campus-chat server")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
