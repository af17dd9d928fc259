package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ticketchain",
		Usage: "Mint and track tickets on a Soroban contract",
		Description: `A command-line client for the ticketchain service.

Connect a keystore wallet, mint tickets through the server's /api/soroban
endpoint and watch totals and submissions. Operator commands inspect the
submission database, confirmation workflows and the NATS event stream.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Wallet and session commands
			{
				Name:  "wallet",
				Usage: "Keystore wallet commands",
				Subcommands: []*cli.Command{
					walletCreateCommand(),
					walletImportCommand(),
					walletAddressCommand(),
				},
			},
			connectCommand(),
			disconnectCommand(),
			statusCommand(),
			// Ticket commands (HTTP API)
			mintCommand(),
			totalsCommand(),
			submissionsCommand(),
			eventsCommand(),
			uiCommand(),
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					listSubmissionsCommand(),
					getSubmissionCommand(),
					migrateCommand(),
				},
			},
			// Temporal inspection commands
			{
				Name:  "temporal",
				Usage: "Confirmation workflow commands",
				Subcommands: []*cli.Command{
					describeConfirmationCommand(),
					startConfirmationCommand(),
				},
			},
			// NATS event stream commands
			{
				Name:  "nats",
				Usage: "NATS ticket event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: globalFlags(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "ticketchain server URL",
			EnvVars: []string{"TICKETCHAIN_SERVER_URL", "SERVER_URL"},
		},
		&cli.StringFlag{
			Name:    "contract-id",
			Usage:   "Soroban contract ID (C...)",
			EnvVars: []string{"TICKETCHAIN_CONTRACT_ID", "SOROBAN_CONTRACT_ID"},
		},
		&cli.StringFlag{
			Name:    "session-file",
			Usage:   "Session file holding the connected public key",
			EnvVars: []string{"TICKETCHAIN_SESSION_FILE"},
		},
		&cli.StringFlag{
			Name:    "keystore-file",
			Usage:   "Encrypted keystore file",
			EnvVars: []string{"TICKETCHAIN_KEYSTORE_FILE"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "temporal-host",
			Usage:   "Temporal server address",
			EnvVars: []string{"TEMPORAL_HOST"},
			Value:   "localhost:7233",
		},
		&cli.StringFlag{
			Name:    "temporal-namespace",
			Usage:   "Temporal namespace",
			EnvVars: []string{"TEMPORAL_NAMESPACE"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL",
			EnvVars: []string{"NATS_URL"},
			Value:   "nats://localhost:4222",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "Filter JSON output through a jq expression (implies --json)",
		},
	}
}
