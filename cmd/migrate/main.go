package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/credithub/credithub-api/internal/config"
	"github.com/credithub/credithub-api/internal/pkg/database"
	"github.com/credithub/credithub-api/internal/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if err := database.RunMigrations(context.Background(), cfg.DatabaseURL, command); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}

	log.Info().Str("command", command).Msg("Migrations applied")
}
