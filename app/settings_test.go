package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stellar/go/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	config := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", config)
	t.Setenv("SOROBAN_CONTRACT_ID", "")

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", s.ServerURL)
	assert.Equal(t, "", s.ContractID)
	assert.Equal(t, network.TestNetworkPassphrase, s.NetworkPassphrase)
	assert.Equal(t, filepath.Join(config, "ticketchain", "session.json"), s.SessionFile)
	assert.Equal(t, filepath.Join(config, "ticketchain", "keystore.json"), s.KeystoreFile)
	assert.Equal(t, 2*time.Second, s.RefreshDelay)
}

func TestLoadSettings_Overrides(t *testing.T) {
	t.Setenv("TICKETCHAIN_SERVER_URL", "http://tickets.example:9000")
	t.Setenv("TICKETCHAIN_CONTRACT_ID", "CPRIMARY")
	t.Setenv("SOROBAN_CONTRACT_ID", "CFALLBACK")
	t.Setenv("TICKETCHAIN_SESSION_FILE", "/tmp/s.json")
	t.Setenv("TICKETCHAIN_NETWORK_PASSPHRASE", network.PublicNetworkPassphrase)
	t.Setenv("TICKETCHAIN_REFRESH_DELAY", "500ms")

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "http://tickets.example:9000", s.ServerURL)
	assert.Equal(t, "CPRIMARY", s.ContractID)
	assert.Equal(t, "/tmp/s.json", s.SessionFile)
	assert.Equal(t, network.PublicNetworkPassphrase, s.NetworkPassphrase)
	assert.Equal(t, 500*time.Millisecond, s.RefreshDelay)
}

func TestLoadSettings_ContractFallback(t *testing.T) {
	t.Setenv("TICKETCHAIN_CONTRACT_ID", "")
	t.Setenv("SOROBAN_CONTRACT_ID", "CFALLBACK")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "CFALLBACK", s.ContractID)
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("TICKETCHAIN_REFRESH_DELAY", "soon")
		_, err := LoadSettings()
		assert.Error(t, err)
	})

	t.Run("negative delay", func(t *testing.T) {
		t.Setenv("TICKETCHAIN_REFRESH_DELAY", "-1s")
		_, err := LoadSettings()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be negative")
	})
}
