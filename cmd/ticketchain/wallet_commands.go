package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brojonat/ticketchain/app"
	"github.com/urfave/cli/v2"
)

func walletCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Generate a new keypair and store it in an encrypted keystore",
		Description: `Generate a random Stellar keypair and encrypt its secret seed with a
password (scrypt + AES-256-GCM). The password is read from
TICKETCHAIN_KEYSTORE_PASSWORD or prompted on the terminal.

Example:
  ticketchain wallet create`,
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			password, err := newPassword()
			if err != nil {
				return err
			}
			defer clear(password)

			address, err := app.CreateKeystore(s.KeystoreFile, password)
			if err != nil {
				return fmt.Errorf("failed to create keystore: %w", err)
			}
			return printKeystore(c, address, s.KeystoreFile)
		},
	}
}

func walletImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import an existing secret seed into an encrypted keystore",
		Description: `Encrypt an existing secret seed (S...). The seed is read from
TICKETCHAIN_SECRET_SEED or prompted on the terminal without echo.

Example:
  ticketchain wallet import`,
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			seed := os.Getenv("TICKETCHAIN_SECRET_SEED")
			if seed == "" {
				raw, err := app.TerminalPassword("Secret seed: ")
				if err != nil {
					return err
				}
				seed = strings.TrimSpace(string(raw))
				clear(raw)
			}

			password, err := newPassword()
			if err != nil {
				return err
			}
			defer clear(password)

			address, err := app.ImportKeystore(s.KeystoreFile, seed, password)
			if err != nil {
				return fmt.Errorf("failed to import keystore: %w", err)
			}
			return printKeystore(c, address, s.KeystoreFile)
		},
	}
}

// newPassword reads a new keystore password, asking twice on a terminal.
func newPassword() ([]byte, error) {
	if pw := os.Getenv("TICKETCHAIN_KEYSTORE_PASSWORD"); pw != "" {
		return []byte(pw), nil
	}

	first, err := app.TerminalPassword("New keystore password: ")
	if err != nil {
		return nil, err
	}
	second, err := app.TerminalPassword("Repeat password: ")
	if err != nil {
		clear(first)
		return nil, err
	}
	defer clear(second)

	if !bytes.Equal(first, second) {
		clear(first)
		return nil, fmt.Errorf("passwords do not match")
	}
	return first, nil
}

func printKeystore(c *cli.Context, address, path string) error {
	if jsonRequested(c) {
		return outputJSON(c, map[string]string{"address": address, "keystore": path})
	}
	fmt.Fprintf(c.App.Writer, "✓ Keystore written\n")
	fmt.Fprintf(c.App.Writer, "  Address:  %s\n", address)
	fmt.Fprintf(c.App.Writer, "  Keystore: %s\n", path)
	return nil
}

func walletAddressCommand() *cli.Command {
	return &cli.Command{
		Name:  "address",
		Usage: "Show the keystore address",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "qr",
				Usage: "Also print the address as a QR code",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			ks, err := app.ReadKeystore(s.KeystoreFile)
			if err != nil {
				return err
			}

			if jsonRequested(c) {
				return outputJSON(c, map[string]string{"address": ks.Address})
			}
			fmt.Fprintln(c.App.Writer, ks.Address)
			if c.Bool("qr") {
				qr, err := app.AddressQR(ks.Address)
				if err != nil {
					return err
				}
				fmt.Fprint(c.App.Writer, qr)
			}
			return nil
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Unlock the keystore and remember its address",
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			router := app.NewRouter(app.RouteHome)
			page := app.NewConnectPage(newWallet(s, passwordSource()), app.NewFileSessionStore(s.SessionFile), router, cliLogger())
			if err := page.Load(); err != nil {
				return err
			}
			if err := page.Connect(context.Background()); err != nil {
				return err
			}

			view := page.View()
			if jsonRequested(c) {
				return outputJSON(c, map[string]string{"publicKey": view.PublicKey, "state": view.State.String()})
			}
			fmt.Fprintf(c.App.Writer, "Connected: %s\n", view.PublicKey)
			return nil
		},
	}
}

func disconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Forget the connected address",
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			page := app.NewConnectPage(nil, app.NewFileSessionStore(s.SessionFile), app.NewRouter(app.RouteHome), cliLogger())
			if err := page.Disconnect(); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "Disconnected")
			return nil
		},
	}
}

type status struct {
	State      string `json:"state"`
	PublicKey  string `json:"publicKey,omitempty"`
	Keystore   string `json:"keystore,omitempty"`
	ContractID string `json:"contractId"`
	ServerURL  string `json:"serverUrl"`
	Network    string `json:"network"`
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the connected account and configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "qr",
				Usage: "Print the connected address as a QR code",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}

			page := app.NewConnectPage(nil, app.NewFileSessionStore(s.SessionFile), app.NewRouter(app.RouteHome), cliLogger())
			if err := page.Load(); err != nil {
				return err
			}
			view := page.View()

			st := status{
				State:      view.State.String(),
				PublicKey:  view.PublicKey,
				ContractID: s.ContractID,
				ServerURL:  s.ServerURL,
				Network:    networkName(s.NetworkPassphrase),
			}
			if ks, err := app.ReadKeystore(s.KeystoreFile); err == nil {
				st.Keystore = ks.Address
			}

			if jsonRequested(c) {
				return outputJSON(c, st)
			}

			w := c.App.Writer
			if st.PublicKey != "" {
				fmt.Fprintf(w, "Connected Account: %s\n", st.PublicKey)
			} else {
				fmt.Fprintf(w, "Connected Account: (not connected)\n")
			}
			fmt.Fprintf(w, "Keystore:          %s\n", orNone(st.Keystore))
			fmt.Fprintf(w, "Contract:          %s\n", orNone(st.ContractID))
			fmt.Fprintf(w, "Server:            %s\n", st.ServerURL)
			fmt.Fprintf(w, "Network:           %s\n", st.Network)

			if c.Bool("qr") && st.PublicKey != "" {
				qr, err := app.AddressQR(st.PublicKey)
				if err != nil {
					return err
				}
				fmt.Fprint(w, "\n"+qr)
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
