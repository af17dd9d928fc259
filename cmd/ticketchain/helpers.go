package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/brojonat/ticketchain/app"
	"github.com/brojonat/ticketchain/client"
	"github.com/itchyny/gojq"
	"github.com/stellar/go/network"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// loadSettings reads app settings from the environment and applies global
// flag overrides.
func loadSettings(c *cli.Context) (*app.Settings, error) {
	s, err := app.LoadSettings()
	if err != nil {
		return nil, err
	}
	if v := c.String("server-url"); v != "" {
		s.ServerURL = v
	}
	if v := c.String("contract-id"); v != "" {
		s.ContractID = v
	}
	if v := c.String("session-file"); v != "" {
		s.SessionFile = v
	}
	if v := c.String("keystore-file"); v != "" {
		s.KeystoreFile = v
	}
	return s, nil
}

// cliLogger logs errors only, to stderr.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newAPIClient(s *app.Settings) *client.Client {
	return client.NewClient(s.ServerURL, s.ContractID, nil, cliLogger())
}

func networkName(passphrase string) string {
	switch passphrase {
	case network.TestNetworkPassphrase:
		return "TESTNET"
	case network.PublicNetworkPassphrase:
		return "PUBLIC"
	default:
		return "CUSTOM"
	}
}

func newWallet(s *app.Settings, password app.PasswordFunc) *app.KeystoreWallet {
	return app.NewKeystoreWallet(s.KeystoreFile, app.NetworkDetails{
		Network:           networkName(s.NetworkPassphrase),
		NetworkPassphrase: s.NetworkPassphrase,
		SorobanRPCURL:     s.RPCURL,
	}, password)
}

// passwordSource uses TICKETCHAIN_KEYSTORE_PASSWORD when set and prompts
// on the terminal otherwise.
func passwordSource() app.PasswordFunc {
	if pw := os.Getenv("TICKETCHAIN_KEYSTORE_PASSWORD"); pw != "" {
		return app.StaticPassword(pw)
	}
	return app.TerminalPassword
}

func jsonRequested(c *cli.Context) bool {
	return c.Bool("json") || c.String("jq") != ""
}

// outputJSON writes v as indented JSON, filtered through --jq when given.
// Output to a terminal is syntax highlighted.
func outputJSON(c *cli.Context, v interface{}) error {
	if expr := c.String("jq"); expr != "" {
		results, err := applyJQ(expr, v)
		if err != nil {
			return err
		}
		for _, result := range results {
			if err := writeJSON(c.App.Writer, result); err != nil {
				return err
			}
		}
		return nil
	}
	return writeJSON(c.App.Writer, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if err := quick.Highlight(w, buf.String(), "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// applyJQ runs a jq expression over v and collects every result.
func applyJQ(expr string, v interface{}) ([]interface{}, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}

	// gojq only walks plain maps and slices.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	var results []interface{}
	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := result.(error); isErr {
			return nil, fmt.Errorf("jq filter %q failed: %w", expr, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func formatOptional(s *string) string {
	if s != nil && *s != "" {
		return *s
	}
	return "-"
}
