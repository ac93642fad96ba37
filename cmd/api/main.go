package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"erp-asset-api/internal"
	"erp-asset-api/internal/config"
	"erp-asset-api/internal/handlers"
	"erp-asset-api/internal/migrations"
	"erp-asset-api/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply pending schema migrations before serving")
	flag.Parse()

	cfg := config.Load()
	logger := internal.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if *migrate {
		n, err := migrations.Apply(ctx, db.DB())
		if err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
		logger.Info().Int("applied", n).Msg("migrations complete")
	}

	// the importer writes through pgx directly for savepoint support
	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pgxpool")
	}
	defer pool.Close()

	srv := internal.NewServer(cfg, db,
		internal.WithLogger(logger),
		internal.WithImports(handlers.NewImportsHandler(pool, cfg.ImportMappingPath)),
	)
	if err := srv.JWTManager.ValidateConfig(); err != nil {
		logger.Fatal().Err(err).Msg("JWT configuration validation failed")
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("environment", cfg.Environment).
		Str("jwt_issuer", cfg.JWTIssuer).
		Dur("jwt_expiry", cfg.JWTExpiry).
		Bool("metrics", cfg.EnableMetrics).
		Msg("starting ERP asset API")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server stopped")
	}
	logger.Info().Msg("server stopped")
}
