package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/ticketchain/service/config"
	"github.com/brojonat/ticketchain/service/db"
	"github.com/brojonat/ticketchain/service/metrics"
	natspkg "github.com/brojonat/ticketchain/service/nats"
	"github.com/brojonat/ticketchain/service/server"
	"github.com/brojonat/ticketchain/service/soroban"
	"github.com/brojonat/ticketchain/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Fails fast if SOROBAN_CONTRACT_ID is missing or malformed
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"contract_id", cfg.ContractID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil)

	rpc := soroban.NewRPCClient(cfg.RPCURL, cfg.RPCTimeout)
	tickets := soroban.NewService(rpc, cfg.ContractID, cfg.NetworkPassphrase, metricsCollector, logger)
	logger.Info("initialized soroban RPC client", "url", cfg.RPCURL)

	httpServer := server.New(cfg.ServerAddr, tickets, metricsCollector, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	if cfg.StoreEnabled() {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		store := db.NewStore(dbPool, metricsCollector)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		httpServer.WithStore(store)
		logger.Info("connected to database")
	}

	if cfg.EventsEnabled() {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		subscriber, err := natspkg.NewSubscriber(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create NATS subscriber", "error", err)
			os.Exit(1)
		}
		httpServer.WithPublisher(publisher).WithSubscriber(subscriber)
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	if cfg.ConfirmationsEnabled() {
		temporalClient, err := temporal.NewClient(
			cfg.TemporalHost,
			cfg.TemporalNamespace,
			cfg.TemporalTaskQueue,
			cfg.ConfirmationPollInterval,
			cfg.ConfirmationMaxPolls,
			logger,
		)
		if err != nil {
			logger.Error("failed to create temporal client", "error", err)
			os.Exit(1)
		}
		defer temporalClient.Close()
		httpServer.WithConfirmer(temporalClient)
		logger.Info("connected to temporal",
			"host", cfg.TemporalHost,
			"namespace", cfg.TemporalNamespace,
			"task_queue", cfg.TemporalTaskQueue,
		)
	}

	logger.Info("server initialized",
		"store", cfg.StoreEnabled(),
		"events", cfg.EventsEnabled(),
		"confirmations", cfg.ConfirmationsEnabled(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
