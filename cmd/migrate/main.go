package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketly/marketly-api/internal/config"
	"github.com/marketly/marketly-api/internal/pkg/database"
	"github.com/marketly/marketly-api/internal/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env, Service: "marketly-migrate"})

	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		fmt.Println("Error: migration command is required")
		fmt.Println("Usage: go run ./cmd/migrate [command] [args]")
		fmt.Println("Commands: up, down, status, redo, version")
		os.Exit(1)
	}

	command := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := database.RunMigrations(ctx, cfg.DatabaseURL, command, args[1:]...); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}

	log.Info().Str("command", command).Msg("Migration finished successfully")
}
