// Package app holds the wallet-facing pages of the ticket client: connecting
// a wallet, minting tickets and showing totals.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stellar/go/network"
)

// Settings configures the client side. Every field is read from the
// environment with the TICKETCHAIN_ prefix.
type Settings struct {
	ServerURL         string        `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	ContractID        string        `envconfig:"CONTRACT_ID"`
	SessionFile       string        `envconfig:"SESSION_FILE"`
	KeystoreFile      string        `envconfig:"KEYSTORE_FILE"`
	NetworkPassphrase string        `envconfig:"NETWORK_PASSPHRASE"`
	RPCURL            string        `envconfig:"RPC_URL" default:"https://soroban-testnet.stellar.org"`
	RefreshDelay      time.Duration `envconfig:"REFRESH_DELAY" default:"2s"`
}

// LoadSettings reads Settings from the environment and fills in defaults.
// The contract ID falls back to SOROBAN_CONTRACT_ID, which the server uses.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("TICKETCHAIN", &s); err != nil {
		return nil, fmt.Errorf("failed to process settings: %w", err)
	}

	if s.ContractID == "" {
		s.ContractID = os.Getenv("SOROBAN_CONTRACT_ID")
	}
	if s.NetworkPassphrase == "" {
		s.NetworkPassphrase = network.TestNetworkPassphrase
	}
	if s.SessionFile == "" {
		s.SessionFile = filepath.Join(configDir(), "session.json")
	}
	if s.KeystoreFile == "" {
		s.KeystoreFile = filepath.Join(configDir(), "keystore.json")
	}
	if s.RefreshDelay < 0 {
		return nil, fmt.Errorf("TICKETCHAIN_REFRESH_DELAY must not be negative")
	}

	return &s, nil
}

// configDir returns $XDG_CONFIG_HOME/ticketchain, or ~/.config/ticketchain.
func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "ticketchain")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ticketchain")
}
