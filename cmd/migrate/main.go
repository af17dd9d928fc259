package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/brojonat/ticketchain/service/db"
	"github.com/brojonat/ticketchain/service/soroban"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
)

type settings struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

// Applies the submissions schema, then checks that every stored signer is a
// valid account ID.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("starting schema migration")

	var s settings
	if err := envconfig.Process("", &s); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, s.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if err := db.NewStore(dbPool, nil).Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("schema applied")

	rows, err := dbPool.Query(ctx, "SELECT hash, signer FROM submissions ORDER BY submitted_at")
	if err != nil {
		logger.Error("failed to query submissions", "error", err)
		os.Exit(1)
	}
	defer rows.Close()

	total, invalid := 0, 0
	for rows.Next() {
		var hash, signer string
		if err := rows.Scan(&hash, &signer); err != nil {
			logger.Error("failed to scan submission row", "error", err)
			os.Exit(1)
		}
		total++
		if !soroban.IsAccountID(signer) {
			logger.Warn("submission has an invalid signer", "hash", hash, "signer", signer)
			invalid++
		}
	}
	if err := rows.Err(); err != nil {
		logger.Error("error iterating submission rows", "error", err)
		os.Exit(1)
	}

	logger.Info("migration complete",
		"submissions", total,
		"invalid_signers", invalid,
	)

	if invalid > 0 {
		os.Exit(1)
	}
}
