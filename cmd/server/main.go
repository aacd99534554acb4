package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"cardarb/internal/api"
	"cardarb/internal/auth"
	"cardarb/internal/config"
	"cardarb/internal/database"
	"cardarb/internal/orchestrator"
)

// Demo credentials registered at startup. Real deployments provision their
// own keys via API_KEY/API_SECRET.
const (
	defaultAPIKey    = "demo-api-key"
	defaultAPISecret = "demo-api-secret"
)

func init() {
	// Pretty logging outside production
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func main() {
	settings, markets, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.Open(settings.SQLitePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to open database")
	}
	store := database.NewStore(db, zlog.Logger)

	orch := orchestrator.New(settings, markets, store, zlog.Logger)

	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()
	if err := orch.Start(engineCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to start orchestrator")
	}

	authService := auth.NewService(settings.JWTSecret)
	apiKey := os.Getenv("API_KEY")
	apiSecret := os.Getenv("API_SECRET")
	if apiKey == "" {
		apiKey, apiSecret = defaultAPIKey, defaultAPISecret
	}
	authService.RegisterAPICredentials(apiKey, apiSecret)

	router := api.NewRouter(orch, authService, settings, zlog.Logger)

	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down engine...")

	orch.Stop()
	engineCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}
