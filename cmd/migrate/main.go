package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"erp-asset-api/internal/migrations"
	"erp-asset-api/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("DB_DSN"), "Postgres connection string (defaults to DB_DSN)")
	list := flag.Bool("list", false, "print embedded migration files and exit")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	log.Logger = logger

	if *list {
		names, err := migrations.Files()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to list migrations")
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	if *dsn == "" {
		logger.Fatal().Msg("DB_DSN environment variable or -dsn flag is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := store.Open(ctx, *dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	n, err := migrations.Apply(ctx, db.DB())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}
	logger.Info().Int("applied", n).Msg("all migrations applied")
}
