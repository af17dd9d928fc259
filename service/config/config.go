package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
)

// DefaultRPCURL is the public Soroban testnet RPC endpoint.
const DefaultRPCURL = "https://soroban-testnet.stellar.org"

// Config holds all application configuration loaded from environment variables.
// It is built once at startup and passed by pointer to every component that needs it.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Soroban configuration
	ContractID        string
	RPCURL            string
	NetworkPassphrase string
	RPCTimeout        time.Duration

	// Database configuration (optional, enables the submission store)
	DatabaseURL string

	// NATS configuration (optional, enables ticket events and the SSE stream)
	NATSURL string

	// Temporal configuration (optional, enables confirmation tracking)
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Confirmation polling
	ConfirmationPollInterval time.Duration
	ConfirmationMaxPolls     int
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Soroban configuration
	cfg.ContractID = os.Getenv("SOROBAN_CONTRACT_ID")
	if cfg.ContractID == "" {
		errs = append(errs, fmt.Errorf("SOROBAN_CONTRACT_ID is required"))
	} else if _, err := strkey.Decode(strkey.VersionByteContract, cfg.ContractID); err != nil {
		errs = append(errs, fmt.Errorf("SOROBAN_CONTRACT_ID %q is not a valid contract address: %w", cfg.ContractID, err))
	}
	cfg.RPCURL = getEnvOrDefault("SOROBAN_RPC_URL", DefaultRPCURL)
	cfg.NetworkPassphrase = getEnvOrDefault("STELLAR_NETWORK_PASSPHRASE", network.TestNetworkPassphrase)

	rpcTimeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = rpcTimeout
	}

	// Optional backends
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = os.Getenv("TEMPORAL_HOST")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "ticketchain-confirmations")

	// Confirmation polling
	pollInterval, err := parseDuration("CONFIRMATION_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmationPollInterval = pollInterval
	}

	maxPolls, err := parseInt("CONFIRMATION_MAX_POLLS", 30)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmationMaxPolls = maxPolls
	}

	if len(errs) == 0 {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ContractID == "" {
		errs = append(errs, fmt.Errorf("ContractID is required"))
	}

	if c.RPCURL == "" {
		errs = append(errs, fmt.Errorf("RPCURL is required"))
	}

	if c.NetworkPassphrase == "" {
		errs = append(errs, fmt.Errorf("NetworkPassphrase is required"))
	}

	if c.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RPCTimeout must be positive"))
	}

	if c.TemporalHost != "" && c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required when TemporalHost is set"))
	}

	if c.ConfirmationPollInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("ConfirmationPollInterval must be at least 100ms"))
	}

	if c.ConfirmationMaxPolls < 1 {
		errs = append(errs, fmt.Errorf("ConfirmationMaxPolls must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// StoreEnabled reports whether a database is configured.
func (c *Config) StoreEnabled() bool { return c.DatabaseURL != "" }

// EventsEnabled reports whether NATS is configured.
func (c *Config) EventsEnabled() bool { return c.NATSURL != "" }

// ConfirmationsEnabled reports whether Temporal is configured.
func (c *Config) ConfirmationsEnabled() bool { return c.TemporalHost != "" }

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
