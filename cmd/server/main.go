package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"social-scraper/internal/app"
	"social-scraper/internal/config"
	"social-scraper/internal/server"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load configuration
	configManager := config.NewManager()
	cfg, err := configManager.Load(os.Getenv("SS_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}
	defer configManager.Close()
	logger := configManager.GetLogger()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Error initializing scraper")
	}
	defer a.Close()

	srv, err := server.NewServer(cfg, server.Deps{
		Pipeline: a.Pipeline,
		Registry: a.Registry,
		Storage:  a.History(),
		Monitor:  a.Monitor,
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Error creating server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error running server")
	}
}
